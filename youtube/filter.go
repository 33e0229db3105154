package youtube

import (
	"fmt"
	"strings"
	"time"
)

// VideoType selects long-form, short-form or both.
type VideoType string

const (
	TypeAll    VideoType = "all"
	TypeShorts VideoType = "shorts"
	TypeVideos VideoType = "videos"
)

// ParseVideoType parses a video type selector. Empty means all.
func ParseVideoType(s string) (VideoType, error) {
	switch t := VideoType(strings.ToLower(strings.TrimSpace(s))); t {
	case "":
		return TypeAll, nil
	case TypeAll, TypeShorts, TypeVideos:
		return t, nil
	}
	return "", fmt.Errorf("invalid video type %q (want all, shorts or videos)", s)
}

// TimeFrame selects a recency window.
type TimeFrame string

const (
	FrameAll   TimeFrame = "all"
	FrameWeek  TimeFrame = "week"
	FrameMonth TimeFrame = "month"
	FrameYear  TimeFrame = "year"
)

// ParseTimeFrame parses a time frame selector. Empty means all.
func ParseTimeFrame(s string) (TimeFrame, error) {
	switch f := TimeFrame(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return FrameAll, nil
	case FrameAll, FrameWeek, FrameMonth, FrameYear:
		return f, nil
	}
	return "", fmt.Errorf("invalid time frame %q (want all, week, month or year)", s)
}

// Window returns the frame's fixed length, or 0 for all.
func (f TimeFrame) Window() time.Duration {
	switch f {
	case FrameWeek:
		return 7 * 24 * time.Hour
	case FrameMonth:
		return 30 * 24 * time.Hour
	case FrameYear:
		return 365 * 24 * time.Hour
	}
	return 0
}

// Cutoff returns the oldest publish time the frame admits at now, or the
// zero time for all.
func (f TimeFrame) Cutoff(now time.Time) time.Time {
	w := f.Window()
	if w == 0 {
		return time.Time{}
	}
	return now.Add(-w)
}

// Filter selects classified videos for delivery.
type Filter struct {
	Type  VideoType
	Frame TimeFrame
	// ExcludeReplays also drops finished broadcasts.
	ExcludeReplays bool
}

// Match reports whether v passes the filter at now. Live and upcoming
// broadcasts never pass.
func (f Filter) Match(v *Video, now time.Time) bool {
	if v.IsLive {
		return false
	}
	if f.ExcludeReplays && v.WasLive {
		return false
	}
	switch f.Type {
	case TypeVideos:
		if v.IsShort {
			return false
		}
	case TypeShorts:
		if !v.IsShort {
			return false
		}
	}
	if cutoff := f.Frame.Cutoff(now); !cutoff.IsZero() && v.Published.Before(cutoff) {
		return false
	}
	return true
}

// Apply returns the videos that match, in input order.
func (f Filter) Apply(videos []*Video, now time.Time) []*Video {
	out := make([]*Video, 0, len(videos))
	for _, v := range videos {
		if f.Match(v, now) {
			out = append(out, v)
		}
	}
	return out
}
