package progress

import (
	"slices"
	"sync"
	"sync/atomic"
	"time"
)

// DownloadSnapshot is a point-in-time view of a download run.
type DownloadSnapshot struct {
	RunID           string    `json:"run_id,omitempty"`
	Current         int       `json:"current"`
	Total           int       `json:"total"`
	Percentage      float64   `json:"percentage"`
	Status          Status    `json:"status"`
	Format          string    `json:"format,omitempty"`
	CurrentVideo    string    `json:"current_video,omitempty"`
	CompletedVideos []string  `json:"completed_videos"`
	FailedVideos    []string  `json:"failed_videos"`
	StartedAt       time.Time `json:"started_at,omitzero"`
	FinishedAt      time.Time `json:"finished_at,omitzero"`
}

// DownloadTracker publishes DownloadSnapshots.
type DownloadTracker struct {
	mu   sync.Mutex
	snap atomic.Pointer[DownloadSnapshot]
	now  func() time.Time
}

// NewDownloadTracker returns an idle tracker.
func NewDownloadTracker() *DownloadTracker {
	t := &DownloadTracker{now: time.Now}
	t.snap.Store(&DownloadSnapshot{Status: StatusIdle, CompletedVideos: []string{}, FailedVideos: []string{}})
	return t
}

// Snapshot returns a copy of the current snapshot.
func (t *DownloadTracker) Snapshot() DownloadSnapshot {
	s := *t.snap.Load()
	s.CompletedVideos = slices.Clone(s.CompletedVideos)
	s.FailedVideos = slices.Clone(s.FailedVideos)
	return s
}

// Active reports whether a download run is in progress.
func (t *DownloadTracker) Active() bool {
	return t.snap.Load().Status == StatusDownloading
}

func (t *DownloadTracker) update(fn func(s *DownloadSnapshot)) {
	t.mu.Lock()
	defer t.mu.Unlock()

	next := *t.snap.Load()
	// Clip so appends never write into a published snapshot's array.
	next.CompletedVideos = slices.Clip(next.CompletedVideos)
	next.FailedVideos = slices.Clip(next.FailedVideos)
	fn(&next)
	if next.Status != StatusCompleted {
		next.Percentage = percentage(len(next.CompletedVideos)+len(next.FailedVideos), next.Total)
	}
	t.snap.Store(&next)
}

// Reset starts run runID over total items.
func (t *DownloadTracker) Reset(runID string, total int, format string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.snap.Store(&DownloadSnapshot{
		RunID:           runID,
		Total:           total,
		Status:          StatusDownloading,
		Format:          format,
		CompletedVideos: []string{},
		FailedVideos:    []string{},
		StartedAt:       t.now(),
	})
}

// Begin marks item index (1-based) as the one being processed.
func (t *DownloadTracker) Begin(index int, title string) {
	t.update(func(s *DownloadSnapshot) {
		s.Current = max(s.Current, index)
		s.CurrentVideo = title
	})
}

// Succeeded records a finished item.
func (t *DownloadTracker) Succeeded(title string) {
	t.update(func(s *DownloadSnapshot) {
		s.CompletedVideos = append(s.CompletedVideos, title)
	})
}

// Failed records an item that could not be downloaded.
func (t *DownloadTracker) Failed(title string) {
	t.update(func(s *DownloadSnapshot) {
		s.FailedVideos = append(s.FailedVideos, title)
	})
}

// Complete ends the run. A download run always completes; failures are
// listed in FailedVideos.
func (t *DownloadTracker) Complete() {
	t.update(func(s *DownloadSnapshot) {
		s.Status = StatusCompleted
		s.CurrentVideo = ""
		s.Percentage = 100
		s.FinishedAt = t.now()
	})
}
