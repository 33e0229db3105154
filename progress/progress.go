// Package progress holds the pollable snapshots of scrape and download
// runs.
//
// Each tracker has one writer (the run that owns it) and any number of
// readers. Every write builds a complete new snapshot and publishes it
// atomically, so a reader never observes a half-applied update.
package progress

// Status is the lifecycle state of a run.
type Status string

const (
	StatusIdle        Status = "idle"
	StatusScraping    Status = "scraping"
	StatusDownloading Status = "downloading"
	StatusCompleted   Status = "completed"
	StatusError       Status = "error"
)

// percentage returns done/total as a percentage in [0, 100], or 0 when
// total is not positive.
func percentage(done, total int) float64 {
	if total <= 0 {
		return 0
	}
	p := float64(done) / float64(total) * 100
	switch {
	case p < 0:
		return 0
	case p > 100:
		return 100
	}
	return p
}
