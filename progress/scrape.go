package progress

import (
	"slices"
	"sync"
	"sync/atomic"
	"time"
)

// Video is the public subset of a scraped video.
type Video struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Duration  int       `json:"duration"`
	Thumbnail string    `json:"thumbnail"`
	URL       string    `json:"url"`
	IsShort   bool      `json:"is_short"`
	Published time.Time `json:"published_at,omitzero"`
}

// ScrapeResult is the outcome of a completed scrape.
type ScrapeResult struct {
	ChannelID   string  `json:"channel_id"`
	ChannelName string  `json:"channel_name"`
	Videos      []Video `json:"videos"`
	// TotalFound counts every upload seen before filtering.
	TotalFound    int `json:"total_found"`
	FilteredCount int `json:"filtered_count"`
	// Source names the enumeration path that produced the result.
	Source string `json:"source"`
	// Warning is set when listing stopped early and the result is partial.
	Warning string `json:"warning,omitempty"`
}

func (r *ScrapeResult) clone() *ScrapeResult {
	if r == nil {
		return nil
	}
	c := *r
	c.Videos = slices.Clone(r.Videos)
	return &c
}

// ScrapeSnapshot is a point-in-time view of a scrape run.
type ScrapeSnapshot struct {
	RunID           string        `json:"run_id,omitempty"`
	Status          Status        `json:"status"`
	TotalVideos     int           `json:"total_videos"`
	ProcessedVideos int           `json:"processed_videos"`
	FilteredVideos  int           `json:"filtered_videos"`
	CurrentVideo    string        `json:"current_video,omitempty"`
	Percentage      float64       `json:"percentage"`
	Error           string        `json:"error,omitempty"`
	Result          *ScrapeResult `json:"result,omitempty"`
	StartedAt       time.Time     `json:"started_at,omitzero"`
	FinishedAt      time.Time     `json:"finished_at,omitzero"`
}

// ScrapeTracker publishes ScrapeSnapshots.
type ScrapeTracker struct {
	mu   sync.Mutex // serializes writers
	snap atomic.Pointer[ScrapeSnapshot]
	now  func() time.Time
}

// NewScrapeTracker returns an idle tracker.
func NewScrapeTracker() *ScrapeTracker {
	t := &ScrapeTracker{now: time.Now}
	t.snap.Store(&ScrapeSnapshot{Status: StatusIdle})
	return t
}

// Snapshot returns a copy of the current snapshot.
func (t *ScrapeTracker) Snapshot() ScrapeSnapshot {
	s := *t.snap.Load()
	s.Result = s.Result.clone()
	return s
}

// Active reports whether a scrape is running.
func (t *ScrapeTracker) Active() bool {
	return t.snap.Load().Status == StatusScraping
}

func (t *ScrapeTracker) update(fn func(s *ScrapeSnapshot)) {
	t.mu.Lock()
	defer t.mu.Unlock()

	next := *t.snap.Load()
	fn(&next)
	next.Percentage = percentage(next.ProcessedVideos, next.TotalVideos)
	t.snap.Store(&next)
}

// Reset starts run runID with all counters zeroed.
func (t *ScrapeTracker) Reset(runID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.snap.Store(&ScrapeSnapshot{RunID: runID, Status: StatusScraping, StartedAt: t.now()})
}

// Discovered raises the total to n. The total never shrinks within a run.
func (t *ScrapeTracker) Discovered(n int) {
	t.update(func(s *ScrapeSnapshot) {
		s.TotalVideos = max(s.TotalVideos, n)
	})
}

// UpdateCounts records pipeline progress. processed and filtered never
// decrease within a run, and total is never reported below processed.
func (t *ScrapeTracker) UpdateCounts(total, processed, filtered int, current string) {
	t.update(func(s *ScrapeSnapshot) {
		s.ProcessedVideos = max(s.ProcessedVideos, processed)
		s.FilteredVideos = max(s.FilteredVideos, filtered)
		s.TotalVideos = max(total, s.ProcessedVideos)
		s.CurrentVideo = current
	})
}

// Complete finishes the run with result.
func (t *ScrapeTracker) Complete(result *ScrapeResult) {
	t.update(func(s *ScrapeSnapshot) {
		s.Status = StatusCompleted
		s.CurrentVideo = ""
		s.Result = result.clone()
		if result != nil {
			s.FilteredVideos = result.FilteredCount
		}
		s.FinishedAt = t.now()
	})
}

// Fail finishes the run with an error message.
func (t *ScrapeTracker) Fail(msg string) {
	t.update(func(s *ScrapeSnapshot) {
		s.Status = StatusError
		s.CurrentVideo = ""
		s.Error = msg
		s.FinishedAt = t.now()
	})
}
