// Package download fetches selected videos one at a time and converts them
// to mp3 or mp4 under a per-channel output directory.
package download

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/afero"

	"ytscrape/internal/retry"
	"ytscrape/progress"
	"ytscrape/youtube"
)

// AudioQuality is the mp3 bitrate in kbps.
const AudioQuality = "320"

var (
	// ErrRunInProgress is returned by Start while another download runs.
	ErrRunInProgress = errors.New("download: a download is already running")
	// ErrNoVideos is returned by Start when no usable video ID was given.
	ErrNoVideos = errors.New("download: no video IDs given")
)

// Format is an output container.
type Format string

const (
	FormatMP3 Format = "mp3"
	FormatMP4 Format = "mp4"
)

// ParseFormat parses an output format. Empty means mp3.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return FormatMP3, nil
	case FormatMP3, FormatMP4:
		return f, nil
	}
	return "", fmt.Errorf("invalid format %q (want mp3 or mp4)", s)
}

// ConversionError reports a video that could not be downloaded or
// converted after it was resolved.
type ConversionError struct {
	VideoID string
	Err     error
}

func (e *ConversionError) Error() string {
	return fmt.Sprintf("download: convert %s: %v", e.VideoID, e.Err)
}

func (e *ConversionError) Unwrap() error { return e.Err }

// Fetcher resolves a video ID to its media.
type Fetcher interface {
	Resolve(ctx context.Context, videoID string) (*youtube.MediaSource, error)
}

// Converter downloads src and writes it to dest in format.
type Converter interface {
	Convert(ctx context.Context, src *youtube.MediaSource, format, quality, dest string) error
}

// Catalog supplies titles and channel names of scraped videos.
type Catalog interface {
	Lookup(videoID string) (title, channel string, ok bool)
}

// Config configures a Service.
type Config struct {
	// OutputDir is the root of all output. Default: "output".
	OutputDir string
	// Retry applies to transient failures of each fetch and conversion.
	Retry   retry.Config
	Tracker *progress.DownloadTracker
	Catalog Catalog
	Logger  *slog.Logger
}

// Service downloads videos strictly one after another. Only one run may
// be active; Start rejects a second with ErrRunInProgress.
type Service struct {
	fs        afero.Fs
	fetcher   Fetcher
	converter Converter
	cfg       Config
	log       *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	running bool
}

// NewService creates a Service writing to the OS filesystem.
func NewService(fetcher Fetcher, converter Converter, cfg Config) *Service {
	return NewServiceWithFS(afero.NewOsFs(), fetcher, converter, cfg)
}

// NewServiceWithFS creates a Service on fsys. The converter is expected to
// write to the same filesystem.
func NewServiceWithFS(fsys afero.Fs, fetcher Fetcher, converter Converter, cfg Config) *Service {
	if cfg.OutputDir == "" {
		cfg.OutputDir = "output"
	}
	if cfg.Tracker == nil {
		cfg.Tracker = progress.NewDownloadTracker()
	}
	log := cfg.Logger
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Service{
		fs:        fsys,
		fetcher:   fetcher,
		converter: converter,
		cfg:       cfg,
		log:       log,
		ctx:       ctx,
		cancel:    cancel,
	}
}

// OutputDir returns the absolute output root.
func (s *Service) OutputDir() string {
	if abs, err := filepath.Abs(s.cfg.OutputDir); err == nil {
		return abs
	}
	return s.cfg.OutputDir
}

// Files lists finished output files, newest first.
func (s *Service) Files() ([]File, error) {
	return ListFiles(s.fs, s.cfg.OutputDir)
}

// Snapshot returns the current progress.
func (s *Service) Snapshot() progress.DownloadSnapshot {
	return s.cfg.Tracker.Snapshot()
}

// Wait blocks until the running download, if any, has finished.
func (s *Service) Wait() {
	s.wg.Wait()
}

// Close cancels a running download and waits for it to stop.
func (s *Service) Close() error {
	s.cancel()
	s.wg.Wait()
	return nil
}

// dedupe trims ids and drops empty and repeated ones, keeping order.
func dedupe(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

// Start begins downloading ids in the background and returns the run ID.
func (s *Service) Start(ids []string, format Format) (string, error) {
	ids = dedupe(ids)
	if len(ids) == 0 {
		return "", ErrNoVideos
	}
	if format == "" {
		format = FormatMP3
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return "", ErrRunInProgress
	}
	if err := s.ctx.Err(); err != nil {
		return "", fmt.Errorf("download: service closed: %w", err)
	}
	s.running = true

	runID := uuid.NewString()
	s.cfg.Tracker.Reset(runID, len(ids), string(format))
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.run(s.ctx, runID, ids, format)
	}()
	return runID, nil
}

func (s *Service) run(ctx context.Context, runID string, ids []string, format Format) {
	log := s.log.With(slog.String("run_id", runID))
	log.Info("download started", slog.Int("videos", len(ids)), slog.String("format", string(format)))
	start := time.Now()

	var ok, failed int
	for i, id := range ids {
		if ctx.Err() != nil {
			log.Warn("download cancelled", slog.Int("remaining", len(ids)-i))
			break
		}
		title, channel := id, ""
		if s.cfg.Catalog != nil {
			if t, c, found := s.cfg.Catalog.Lookup(id); found {
				title, channel = coalesce(t, id), c
			}
		}
		s.cfg.Tracker.Begin(i+1, title)

		name, err := s.downloadOne(ctx, log, id, title, channel, format)
		if err != nil {
			failed++
			log.Error("download failed", slog.String("video_id", id), slog.Any("error", err))
			s.cfg.Tracker.Failed(name)
			continue
		}
		ok++
		s.cfg.Tracker.Succeeded(name)
	}

	s.mu.Lock()
	s.cfg.Tracker.Complete()
	s.running = false
	s.mu.Unlock()

	log.Info("download completed", slog.Int("ok", ok), slog.Int("failed", failed),
		slog.Duration("took", time.Since(start)))
}

// downloadOne fetches and converts one video. It returns the title to
// report, which is the resolved title when resolution got that far.
func (s *Service) downloadOne(ctx context.Context, log *slog.Logger, id, title, channel string, format Format) (string, error) {
	log = log.With(slog.String("video_id", id))

	// A known title and channel allow skipping without touching the network.
	if channel != "" && title != id {
		if dest := OutputPath(s.cfg.OutputDir, channel, title, id, format); s.exists(dest) {
			log.Info("already downloaded", slog.String("path", dest))
			return title, nil
		}
	}

	var src *youtube.MediaSource
	err := retry.Do(ctx, s.retryConfig(log, "resolve"), youtube.IsTransient, func(ctx context.Context) error {
		var err error
		src, err = s.fetcher.Resolve(ctx, id)
		return err
	})
	if err != nil {
		return title, err
	}

	title = coalesce(src.Title, title)
	channel = coalesce(src.Channel, channel)
	dest := OutputPath(s.cfg.OutputDir, channel, title, id, format)
	if s.exists(dest) {
		log.Info("already downloaded", slog.String("path", dest))
		return title, nil
	}
	if err := s.fs.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return title, fmt.Errorf("create output directory: %w", err)
	}

	err = retry.Do(ctx, s.retryConfig(log, "convert"), youtube.IsTransient, func(ctx context.Context) error {
		return s.converter.Convert(ctx, src, string(format), AudioQuality, dest)
	})
	if err != nil {
		if ctx.Err() != nil {
			return title, err
		}
		return title, &ConversionError{VideoID: id, Err: err}
	}
	if !s.exists(dest) {
		return title, &ConversionError{VideoID: id, Err: fmt.Errorf("output %s was not written", dest)}
	}

	log.Info("downloaded", slog.String("path", dest))
	return title, nil
}

func (s *Service) retryConfig(log *slog.Logger, op string) retry.Config {
	cfg := s.cfg.Retry
	cfg.OnRetry = func(next int, err error, wait time.Duration) {
		log.Warn("retrying "+op, slog.Int("attempt", next), slog.Duration("wait", wait), slog.Any("error", err))
	}
	return cfg
}

func (s *Service) exists(path string) bool {
	ok, err := afero.Exists(s.fs, path)
	return err == nil && ok
}

func coalesce(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
