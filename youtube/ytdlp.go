package youtube

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/lrstanley/go-ytdlp"
)

const (
	defaultYtdlpPath    = "yt-dlp"
	defaultYtdlpTimeout = 5 * time.Minute
	// defaultYtdlpWaitDelay is how long run waits for output pipes to close
	// once the deadline has killed yt-dlp. Children it spawned (ffmpeg, the
	// one-file bundle's unpacked interpreter) survive the kill and hold the
	// pipes open.
	defaultYtdlpWaitDelay = 5 * time.Second
)

// YtdlpConfig configures the yt-dlp collaborator.
type YtdlpConfig struct {
	// Path is the yt-dlp executable. Defaults to "yt-dlp" on PATH.
	Path string
	// Timeout bounds each invocation. Downloads get four times as long.
	Timeout time.Duration
	Logger  *slog.Logger
}

// YtdlpExtractor drives yt-dlp through go-ytdlp. It lists channel pages
// and fetches per-video details for the fallback path, and fetches and
// converts media for downloads.
type YtdlpExtractor struct {
	path      string
	timeout   time.Duration
	waitDelay time.Duration
	log       *slog.Logger
}

// NewYtdlpExtractor creates an extractor from cfg.
func NewYtdlpExtractor(cfg YtdlpConfig) *YtdlpExtractor {
	if cfg.Path == "" {
		cfg.Path = defaultYtdlpPath
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultYtdlpTimeout
	}
	log := cfg.Logger
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &YtdlpExtractor{path: cfg.Path, timeout: cfg.Timeout, waitDelay: defaultYtdlpWaitDelay, log: log}
}

// CheckInstalled reports ErrYtdlpNotInstalled when the executable cannot
// be found.
func (y *YtdlpExtractor) CheckInstalled() error {
	if _, err := exec.LookPath(y.path); err != nil {
		return fmt.Errorf("%w: %s", ErrYtdlpNotInstalled, y.path)
	}
	return nil
}

func (y *YtdlpExtractor) command() *ytdlp.Command {
	return ytdlp.New().SetExecutable(y.path).NoWarnings().IgnoreConfig()
}

// run executes cmd against target and returns its stdout, translating
// failures into the package's error taxonomy.
func (y *YtdlpExtractor) run(ctx context.Context, op string, timeout time.Duration, cmd *ytdlp.Command, target string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type outcome struct {
		res *ytdlp.Result
		err error
	}
	done := make(chan outcome, 1)
	start := time.Now()
	go func() {
		res, err := cmd.Run(ctx, target)
		done <- outcome{res, err}
	}()

	var (
		res *ytdlp.Result
		err error
	)
	select {
	case o := <-done:
		res, err = o.res, o.err
	case <-ctx.Done():
		// The process is killed on ctx.Done; only wait a little for Run to
		// notice. A grandchild holding stdout leaves the goroutine behind
		// until it exits.
		select {
		case o := <-done:
			res, err = o.res, o.err
		case <-time.After(y.waitDelay):
			y.log.Warn("yt-dlp output still open after kill", slog.String("op", op),
				slog.Duration("wait_delay", y.waitDelay))
			err = ctx.Err()
		}
	}
	y.log.Debug("yt-dlp finished", slog.String("op", op), slog.String("target", target),
		slog.Duration("took", time.Since(start)), slog.Any("error", err))
	if err == nil {
		if res == nil {
			return "", fmt.Errorf("%s: no result", op)
		}
		return res.Stdout, nil
	}

	// go-ytdlp flattens the exec error into text, so look the executable
	// up again instead of unwrapping.
	if errors.Is(err, exec.ErrNotFound) {
		return "", ErrYtdlpNotInstalled
	}
	if installErr := y.CheckInstalled(); installErr != nil {
		return "", installErr
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return "", &TransientFetchError{Op: op, Err: fmt.Errorf("timed out after %v", timeout)}
	}
	if ctx.Err() != nil {
		return "", ctx.Err()
	}
	stderr := ""
	if res != nil {
		stderr = res.Stderr
	}
	return "", classifyStderr(op, stderr, err)
}

// ListPage lists entries start..end (1-based, inclusive) of a channel tab
// without visiting each video.
func (y *YtdlpExtractor) ListPage(ctx context.Context, tabURL string, start, end int) (*Listing, error) {
	cmd := y.command().
		FlatPlaylist().
		DumpSingleJSON().
		PlaylistItems(fmt.Sprintf("%d-%d", start, end))

	out, err := y.run(ctx, "list "+tabURL, y.timeout, cmd, tabURL)
	if err != nil {
		return nil, err
	}
	info, err := parseYtdlpInfo([]byte(out))
	if err != nil {
		return nil, err
	}

	l := &Listing{
		ChannelID:    coalesce(info.ChannelID, info.UploaderID),
		ChannelTitle: coalesce(info.Channel, info.Uploader, strings.TrimSuffix(info.Title, " - Videos")),
	}
	for _, e := range info.Entries {
		if e.ID == "" {
			continue
		}
		isLive, _ := e.liveState()
		l.Entries = append(l.Entries, ListingEntry{
			ID:       e.ID,
			Title:    e.Title,
			Duration: time.Duration(e.Duration) * time.Second,
			IsLive:   isLive,
		})
	}
	return l, nil
}

// Detail fetches the full metadata of one video.
func (y *YtdlpExtractor) Detail(ctx context.Context, videoID string) (*Video, error) {
	target := "https://www.youtube.com/watch?v=" + videoID
	cmd := y.command().DumpSingleJSON().NoPlaylist()

	out, err := y.run(ctx, "detail "+videoID, y.timeout, cmd, target)
	if err != nil {
		return nil, err
	}
	info, err := parseYtdlpInfo([]byte(out))
	if err != nil {
		return nil, err
	}
	if info.ID == "" {
		return nil, fmt.Errorf("detail %s: %w: empty metadata", videoID, ErrVideoUnavailable)
	}
	return info.video(Channel{}), nil
}

// MediaSource identifies what a download will fetch.
type MediaSource struct {
	VideoID string
	Title   string
	Channel string
	// PageURL is the player page yt-dlp resolves streams from.
	PageURL string
}

// Resolve looks up the media behind a video ID.
func (y *YtdlpExtractor) Resolve(ctx context.Context, videoID string) (*MediaSource, error) {
	v, err := y.Detail(ctx, videoID)
	if err != nil {
		return nil, err
	}
	if v.IsLive {
		return nil, fmt.Errorf("resolve %s: %w: broadcast is live or upcoming", videoID, ErrVideoUnavailable)
	}
	return &MediaSource{
		VideoID: v.ID,
		Title:   coalesce(v.Title, v.ID),
		Channel: v.ChannelName,
		PageURL: v.WatchURL(),
	}, nil
}

// Convert downloads src and writes it to dest in the given format ("mp3"
// or "mp4"). For mp3, quality is the target bitrate in kbps.
func (y *YtdlpExtractor) Convert(ctx context.Context, src *MediaSource, format, quality, dest string) error {
	template := strings.TrimSuffix(dest, filepath.Ext(dest)) + ".%(ext)s"
	cmd := y.command().NoPlaylist().NoProgress().Output(template)

	switch format {
	case "mp3":
		cmd = cmd.Format("bestaudio/best").ExtractAudio().AudioFormat("mp3").AudioQuality(quality + "K")
	case "mp4":
		cmd = cmd.Format("bestvideo[ext=mp4]+bestaudio[ext=m4a]/best[ext=mp4]/best").MergeOutputFormat("mp4")
	default:
		return fmt.Errorf("convert %s: unsupported format %q", src.VideoID, format)
	}

	_, err := y.run(ctx, "download "+src.VideoID, 4*y.timeout, cmd, src.PageURL)
	return err
}
