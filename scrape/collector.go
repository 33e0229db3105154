package scrape

import (
	"context"
	"log/slog"
	"time"

	"ytscrape/progress"
	"ytscrape/youtube"
)

// collector classifies and filters videos as an enumerator delivers them,
// keeping the tracker current.
type collector struct {
	classifier *youtube.Classifier
	filter     youtube.Filter
	now        time.Time
	tracker    *progress.ScrapeTracker
	log        *slog.Logger

	ch        youtube.Channel
	seen      map[string]bool
	all       []*youtube.Video
	kept      []*youtube.Video
	base      int // processed before the current enumerator started
	total     int
	processed int
	skipped   int
}

func newCollector(ch youtube.Channel, c *youtube.Classifier, f youtube.Filter, now time.Time,
	tracker *progress.ScrapeTracker, log *slog.Logger) *collector {
	return &collector{
		classifier: c,
		filter:     f,
		now:        now,
		tracker:    tracker,
		log:        log,
		ch:         ch,
		seen:       make(map[string]bool),
	}
}

// switchPath starts counting discoveries of a new enumerator on top of
// what was already processed.
func (c *collector) switchPath() {
	c.base = c.processed
	c.total = c.processed
	c.publish("")
}

func (c *collector) publish(current string) {
	c.tracker.UpdateCounts(c.total, c.processed, len(c.kept), current)
}

func (c *collector) hooks(ctx context.Context) youtube.Hooks {
	return youtube.Hooks{
		Channel: func(ch youtube.Channel) {
			if c.ch.Title == "" {
				c.ch.Title = ch.Title
			}
		},
		Discovered: func(n int) {
			c.total = c.base + n
			c.tracker.Discovered(c.total)
		},
		Video: func(v *youtube.Video) error {
			if c.seen[v.ID] {
				return nil
			}
			c.seen[v.ID] = true

			// Broadcasts are filtered out whatever they are, so don't spend a probe.
			if !v.IsLive {
				by := c.classifier.Classify(ctx, v)
				c.log.Debug("classified", slog.String("video_id", v.ID),
					slog.Bool("short", v.IsShort), slog.String("by", by))
			}

			c.all = append(c.all, v)
			c.processed++
			if c.filter.Match(v, c.now) {
				c.kept = append(c.kept, v)
			}
			c.publish(v.Title)
			return nil
		},
		Skipped: func(id string, err error) {
			c.seen[id] = true
			c.skipped++
			c.processed++
			c.log.Warn("video skipped", slog.String("video_id", id), slog.Any("error", err))
			c.publish("")
		},
		Seen: func(id string) bool {
			return c.seen[id]
		},
	}
}

func (c *collector) result(source string) *progress.ScrapeResult {
	r := &progress.ScrapeResult{
		ChannelID:     c.ch.ID,
		ChannelName:   c.ch.Title,
		Videos:        make([]progress.Video, 0, len(c.kept)),
		TotalFound:    max(c.total, c.processed),
		FilteredCount: len(c.kept),
		Source:        source,
	}
	for _, v := range c.kept {
		r.Videos = append(r.Videos, summarize(v))
	}
	return r
}

// summarize reduces a video to its public fields.
func summarize(v *youtube.Video) progress.Video {
	return progress.Video{
		ID:        v.ID,
		Title:     v.Title,
		Duration:  int(v.Duration / time.Second),
		Thumbnail: v.Thumbnail,
		URL:       v.URL(),
		IsShort:   v.IsShort,
		Published: v.Published,
	}
}
