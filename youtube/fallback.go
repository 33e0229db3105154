package youtube

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"ytscrape/internal/retry"
)

const (
	// DefaultFallbackMaxItems caps how many uploads the fallback path
	// collects. Larger channels are truncated.
	DefaultFallbackMaxItems = 360
	DefaultFallbackPageSize = 50
)

// Extractor lists channel tabs and fetches video details without the
// Data API.
type Extractor interface {
	ListPage(ctx context.Context, tabURL string, start, end int) (*Listing, error)
	Detail(ctx context.Context, videoID string) (*Video, error)
}

// Listing is one page of a channel tab.
type Listing struct {
	ChannelID    string
	ChannelTitle string
	Entries      []ListingEntry
}

// ListingEntry is a shallow listing record.
type ListingEntry struct {
	ID       string
	Title    string
	Duration time.Duration
	IsLive   bool
}

// FallbackConfig configures a FallbackEnumerator.
type FallbackConfig struct {
	PageSize int
	MaxItems int
	// Retry applies to per-video detail fetches.
	Retry  retry.Config
	Logger *slog.Logger
}

// FallbackEnumerator enumerates a channel's uploads through an Extractor.
// It is used when the Data API is unconfigured or out of quota.
type FallbackEnumerator struct {
	x        Extractor
	pageSize int
	maxItems int
	retry    retry.Config
	log      *slog.Logger
}

// NewFallbackEnumerator creates a FallbackEnumerator.
func NewFallbackEnumerator(x Extractor, cfg FallbackConfig) *FallbackEnumerator {
	if cfg.PageSize <= 0 {
		cfg.PageSize = DefaultFallbackPageSize
	}
	if cfg.MaxItems <= 0 {
		cfg.MaxItems = DefaultFallbackMaxItems
	}
	log := cfg.Logger
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &FallbackEnumerator{
		x:        x,
		pageSize: cfg.PageSize,
		maxItems: cfg.MaxItems,
		retry:    cfg.Retry,
		log:      log,
	}
}

// Name implements Enumerator.
func (f *FallbackEnumerator) Name() string { return "ytdlp" }

// Enumerate implements Enumerator.
func (f *FallbackEnumerator) Enumerate(ctx context.Context, ch Channel, h Hooks) error {
	entries, err := f.list(ctx, &ch, h)
	if err != nil {
		if ctx.Err() != nil || errors.Is(err, ErrYtdlpNotInstalled) {
			return err
		}
		return &ListerError{Source: f.Name(), Channel: ch.ID, Err: err}
	}

	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return err
		}

		// Live and upcoming entries have nothing to fetch yet.
		if e.IsLive {
			if err := h.video(&Video{
				ID:          e.ID,
				Title:       e.Title,
				ChannelID:   ch.ID,
				ChannelName: ch.Title,
				IsLive:      true,
			}); err != nil {
				return err
			}
			continue
		}

		v, err := f.detail(ctx, e.ID)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if errors.Is(err, ErrYtdlpNotInstalled) {
				return err
			}
			f.log.Warn("skipping video", slog.String("video_id", e.ID), slog.Any("error", err))
			h.skipped(e.ID, &EnumerationItemError{VideoID: e.ID, Err: err})
			continue
		}

		v.ChannelID = coalesce(v.ChannelID, ch.ID)
		v.ChannelName = coalesce(v.ChannelName, ch.Title)
		v.Title = coalesce(v.Title, e.Title)
		if v.Duration == 0 {
			v.Duration = e.Duration
		}
		if err := h.video(v); err != nil {
			return err
		}
	}
	return nil
}

// list pages through the uploads tab until it runs dry or the cap is hit.
func (f *FallbackEnumerator) list(ctx context.Context, ch *Channel, h Hooks) ([]ListingEntry, error) {
	var (
		entries []ListingEntry
		seen    = make(map[string]bool)
	)

	for start := 1; start <= f.maxItems; start += f.pageSize {
		end := min(start+f.pageSize-1, f.maxItems)

		page, err := f.x.ListPage(ctx, ch.UploadsURL(), start, end)
		if err != nil {
			if start == 1 {
				return nil, fmt.Errorf("list uploads: %w", err)
			}
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			f.log.Warn("listing stopped early", slog.String("channel_id", ch.ID),
				slog.Int("collected", len(entries)), slog.Any("error", err))
			break
		}

		if start == 1 {
			ch.Title = coalesce(ch.Title, page.ChannelTitle)
			h.channel(*ch)
		}

		for _, e := range page.Entries {
			if seen[e.ID] || h.seen(e.ID) {
				continue
			}
			seen[e.ID] = true
			entries = append(entries, e)
		}
		h.discovered(len(entries))

		if len(page.Entries) < end-start+1 {
			break
		}
	}

	if len(entries) >= f.maxItems {
		f.log.Info("fallback listing capped", slog.String("channel_id", ch.ID), slog.Int("max_items", f.maxItems))
	}
	return entries, nil
}

func (f *FallbackEnumerator) detail(ctx context.Context, id string) (*Video, error) {
	var v *Video
	err := retry.Do(ctx, f.retry, IsTransient, func(ctx context.Context) error {
		var err error
		v, err = f.x.Detail(ctx, id)
		return err
	})
	return v, err
}
