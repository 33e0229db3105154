package progress

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPercentage(t *testing.T) {
	testCases := []struct {
		done, total int
		want        float64
	}{
		{0, 0, 0},
		{5, 0, 0},
		{0, 10, 0},
		{5, 10, 50},
		{10, 10, 100},
		{15, 10, 100},
		{-1, 10, 0},
	}

	for _, tc := range testCases {
		require.Equal(t, tc.want, percentage(tc.done, tc.total), "percentage(%d, %d)", tc.done, tc.total)
	}
}

func TestScrapeTrackerLifecycle(t *testing.T) {
	tr := NewScrapeTracker()
	require.Equal(t, StatusIdle, tr.Snapshot().Status)
	require.False(t, tr.Active())

	tr.Reset("run-1")
	s := tr.Snapshot()
	require.Equal(t, StatusScraping, s.Status)
	require.Equal(t, "run-1", s.RunID)
	require.False(t, s.StartedAt.IsZero())
	require.True(t, tr.Active())

	tr.Discovered(50)
	tr.Discovered(40)
	require.Equal(t, 50, tr.Snapshot().TotalVideos, "total never shrinks")

	tr.UpdateCounts(50, 10, 4, "Video 10")
	s = tr.Snapshot()
	require.Equal(t, 10, s.ProcessedVideos)
	require.Equal(t, 4, s.FilteredVideos)
	require.Equal(t, "Video 10", s.CurrentVideo)
	require.Equal(t, 20.0, s.Percentage)

	tr.Complete(&ScrapeResult{ChannelName: "Chan", Videos: []Video{{ID: "a"}}, TotalFound: 50, FilteredCount: 1})
	s = tr.Snapshot()
	require.Equal(t, StatusCompleted, s.Status)
	require.Empty(t, s.CurrentVideo)
	require.NotNil(t, s.Result)
	require.Equal(t, "Chan", s.Result.ChannelName)
	require.Equal(t, 1, s.FilteredVideos)
	require.False(t, s.FinishedAt.IsZero())
	require.False(t, tr.Active())
}

func TestScrapeTrackerFail(t *testing.T) {
	tr := NewScrapeTracker()
	tr.Reset("run-1")
	tr.UpdateCounts(10, 3, 1, "x")
	tr.Fail("could not resolve channel")

	s := tr.Snapshot()
	require.Equal(t, StatusError, s.Status)
	require.Equal(t, "could not resolve channel", s.Error)
	require.Empty(t, s.CurrentVideo)
	require.Nil(t, s.Result)

	tr.Reset("run-2")
	s = tr.Snapshot()
	require.Equal(t, "run-2", s.RunID)
	require.Empty(t, s.Error)
	require.Zero(t, s.ProcessedVideos)
	require.Zero(t, s.TotalVideos)
}

func TestScrapeTrackerProcessedIsMonotonic(t *testing.T) {
	tr := NewScrapeTracker()
	tr.Reset("run")

	tr.UpdateCounts(10, 6, 3, "a")
	tr.UpdateCounts(10, 4, 2, "b")
	s := tr.Snapshot()
	require.Equal(t, 6, s.ProcessedVideos)
	require.Equal(t, 3, s.FilteredVideos)

	tr.UpdateCounts(7, 8, 3, "c")
	s = tr.Snapshot()
	require.Equal(t, 8, s.TotalVideos)
	require.GreaterOrEqual(t, s.TotalVideos, s.ProcessedVideos)

	tr.UpdateCounts(5, 12, 3, "d")
	s = tr.Snapshot()
	require.Equal(t, 12, s.TotalVideos, "total is raised to processed")
	require.Equal(t, 100.0, s.Percentage)
}

func TestScrapeSnapshotIsACopy(t *testing.T) {
	tr := NewScrapeTracker()
	tr.Reset("run")
	tr.Complete(&ScrapeResult{Videos: []Video{{ID: "a"}}})

	s := tr.Snapshot()
	s.Result.Videos[0].ID = "mutated"
	require.Equal(t, "a", tr.Snapshot().Result.Videos[0].ID)
}

// TestScrapeTrackerConcurrentReaders checks that pollers running alongside
// the writer always see whole snapshots with non-decreasing progress.
func TestScrapeTrackerConcurrentReaders(t *testing.T) {
	tr := NewScrapeTracker()
	tr.Reset("run")
	const n = 500

	var wg sync.WaitGroup
	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			last := 0
			for i := 0; i < n; i++ {
				s := tr.Snapshot()
				if s.ProcessedVideos < last {
					t.Errorf("processed went from %d to %d", last, s.ProcessedVideos)
					return
				}
				if s.Percentage < 0 || s.Percentage > 100 {
					t.Errorf("percentage = %v", s.Percentage)
					return
				}
				if s.ProcessedVideos > s.TotalVideos {
					t.Errorf("processed %d > total %d", s.ProcessedVideos, s.TotalVideos)
					return
				}
				last = s.ProcessedVideos
			}
		}()
	}

	for i := 1; i <= n; i++ {
		tr.UpdateCounts(n, i, i/2, "v")
	}
	wg.Wait()
}

func TestDownloadTrackerLifecycle(t *testing.T) {
	tr := NewDownloadTracker()
	s := tr.Snapshot()
	require.Equal(t, StatusIdle, s.Status)
	require.NotNil(t, s.CompletedVideos)
	require.NotNil(t, s.FailedVideos)

	tr.Reset("run-1", 3, "mp3")
	require.True(t, tr.Active())

	tr.Begin(1, "One")
	s = tr.Snapshot()
	require.Equal(t, 1, s.Current)
	require.Equal(t, "One", s.CurrentVideo)
	require.Zero(t, s.Percentage)

	tr.Succeeded("One")
	tr.Begin(2, "Two")
	tr.Failed("Two")
	tr.Begin(3, "Three")
	tr.Succeeded("Three")

	s = tr.Snapshot()
	require.Equal(t, []string{"One", "Three"}, s.CompletedVideos)
	require.Equal(t, []string{"Two"}, s.FailedVideos)
	require.Equal(t, 3, s.Current)
	require.Equal(t, 100.0, s.Percentage)

	tr.Complete()
	s = tr.Snapshot()
	require.Equal(t, StatusCompleted, s.Status)
	require.Empty(t, s.CurrentVideo)
	require.Equal(t, 100.0, s.Percentage)
	require.Equal(t, "mp3", s.Format)
	require.False(t, tr.Active())
}

func TestDownloadTrackerCurrentIsMonotonic(t *testing.T) {
	tr := NewDownloadTracker()
	tr.Reset("run", 5, "mp3")
	tr.Begin(3, "c")
	tr.Begin(2, "b")
	require.Equal(t, 3, tr.Snapshot().Current)
}

func TestDownloadSnapshotsDoNotShareLists(t *testing.T) {
	tr := NewDownloadTracker()
	tr.Reset("run", 3, "mp3")
	tr.Succeeded("a")
	before := tr.Snapshot()

	tr.Succeeded("b")
	before.CompletedVideos[0] = "mutated"

	after := tr.Snapshot()
	require.Equal(t, []string{"a", "b"}, after.CompletedVideos)
	require.Len(t, before.CompletedVideos, 1)
}
