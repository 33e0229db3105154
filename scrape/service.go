// Package scrape runs channel scrapes in the background: resolve the
// channel, enumerate its uploads, classify and filter them, and publish
// progress for polling.
package scrape

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"ytscrape/progress"
	"ytscrape/youtube"
)

// ErrRunInProgress is returned by Start while another scrape is running.
var ErrRunInProgress = errors.New("scrape: a scrape is already running")

// Request describes one scrape.
type Request struct {
	// Channel is the channel reference as the user typed it.
	Channel        string
	Type           youtube.VideoType
	Frame          youtube.TimeFrame
	ExcludeReplays bool
}

// Config holds service dependencies and policy.
type Config struct {
	// Resolver resolves channel references for the primary path.
	Resolver *youtube.Resolver
	// FallbackResolver, when set, is used if Resolver runs out of quota.
	FallbackResolver *youtube.Resolver
	Enumerators      *EnumeratorFactory
	Classifier       *youtube.Classifier
	Tracker          *progress.ScrapeTracker
	// Catalog, when set, remembers every processed video.
	Catalog *Catalog
	// FallbackOnQuota continues a run on the fallback path when the Data
	// API reports a quota or key problem. When false the run fails.
	FallbackOnQuota bool
	Logger          *slog.Logger
	// Now is the clock used for time frame filtering. Default: time.Now.
	Now func() time.Time
}

// Service runs at most one scrape at a time. A second Start while a run
// is active is rejected with ErrRunInProgress.
type Service struct {
	cfg Config
	log *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	running bool
}

// NewService creates a scrape service.
func NewService(cfg Config) (*Service, error) {
	if cfg.Resolver == nil || cfg.Enumerators == nil || cfg.Enumerators.Primary() == nil {
		return nil, errors.New("scrape: resolver and enumerator are required")
	}
	if cfg.Classifier == nil {
		cfg.Classifier = youtube.DefaultClassifier(nil, youtube.DefaultShortMax, cfg.Logger)
	}
	if cfg.Tracker == nil {
		cfg.Tracker = progress.NewScrapeTracker()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	log := cfg.Logger
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Service{cfg: cfg, log: log, ctx: ctx, cancel: cancel}, nil
}

// Start validates req and begins a scrape in the background, returning
// its run ID. Progress is read with Snapshot.
func (s *Service) Start(req Request) (string, error) {
	if _, err := youtube.ParseReference(req.Channel); err != nil {
		return "", err
	}
	if req.Type == "" {
		req.Type = youtube.TypeAll
	}
	if req.Frame == "" {
		req.Frame = youtube.FrameAll
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return "", ErrRunInProgress
	}
	if err := s.ctx.Err(); err != nil {
		return "", fmt.Errorf("scrape: service closed: %w", err)
	}
	s.running = true

	runID := uuid.NewString()
	s.cfg.Tracker.Reset(runID)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.run(s.ctx, runID, req)
	}()
	return runID, nil
}

// Snapshot returns the current progress.
func (s *Service) Snapshot() progress.ScrapeSnapshot {
	return s.cfg.Tracker.Snapshot()
}

// Wait blocks until the running scrape, if any, has finished.
func (s *Service) Wait() {
	s.wg.Wait()
}

// Close cancels a running scrape and waits for it to stop.
func (s *Service) Close() error {
	s.cancel()
	s.wg.Wait()
	return nil
}

func (s *Service) run(ctx context.Context, runID string, req Request) {
	log := s.log.With(slog.String("run_id", runID), slog.String("channel", req.Channel))
	start := time.Now()

	ch, err := s.resolve(ctx, req.Channel)
	if err != nil {
		log.Error("channel resolution failed", slog.Any("error", err))
		s.finish(func() { s.cfg.Tracker.Fail(err.Error()) })
		return
	}
	log = log.With(slog.String("channel_id", ch.ID))
	log.Info("scrape started", slog.String("type", string(req.Type)), slog.String("frame", string(req.Frame)))

	filter := youtube.Filter{Type: req.Type, Frame: req.Frame, ExcludeReplays: req.ExcludeReplays}
	col := newCollector(ch, s.cfg.Classifier, filter, s.cfg.Now(), s.cfg.Tracker, log)

	enum := s.cfg.Enumerators.Primary()
	source := enum.Name()
	err = enum.Enumerate(ctx, ch, col.hooks(ctx))

	if youtube.IsQuotaError(err) && s.cfg.FallbackOnQuota {
		if fb := s.cfg.Enumerators.Fallback(); fb != nil {
			log.Warn("api unavailable, continuing with fallback",
				slog.Any("error", err), slog.Int("processed", col.processed))
			col.switchPath()
			if col.processed > 0 {
				source += "+" + fb.Name()
			} else {
				source = fb.Name()
			}
			err = fb.Enumerate(ctx, col.ch, col.hooks(ctx))
		}
	}

	var warning string
	if err != nil {
		if col.processed == 0 {
			err = fmt.Errorf("%w: %w", youtube.ErrNoVideos, err)
			log.Error("scrape failed", slog.Any("error", err))
			s.finish(func() { s.cfg.Tracker.Fail(err.Error()) })
			return
		}
		warning = fmt.Sprintf("listing stopped early: %v", err)
		log.Warn("scrape incomplete", slog.Any("error", err), slog.Int("processed", col.processed))
	}

	result := col.result(source)
	result.Warning = warning
	if s.cfg.Catalog != nil {
		s.cfg.Catalog.Remember(col.ch, col.all)
	}
	s.finish(func() { s.cfg.Tracker.Complete(result) })

	log.Info("scrape completed",
		slog.String("source", source),
		slog.Int("found", result.TotalFound),
		slog.Int("kept", result.FilteredCount),
		slog.Int("skipped", col.skipped),
		slog.Duration("took", time.Since(start)))
}

// finish publishes the terminal snapshot and frees the service under one
// lock. Once a poller sees the run end, Start succeeds.
func (s *Service) finish(publish func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	publish()
	s.running = false
}

// resolve resolves ref, retrying on the fallback resolver when the
// primary one has no quota left.
func (s *Service) resolve(ctx context.Context, ref string) (youtube.Channel, error) {
	ch, err := s.cfg.Resolver.Resolve(ctx, ref)
	if youtube.IsQuotaError(err) && s.cfg.FallbackOnQuota && s.cfg.FallbackResolver != nil {
		s.log.Warn("api unavailable for resolution, using channel page", slog.Any("error", err))
		ch, err = s.cfg.FallbackResolver.Resolve(ctx, ref)
	}
	if err != nil {
		return youtube.Channel{}, err
	}
	return ch, nil
}
