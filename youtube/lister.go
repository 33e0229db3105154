// Package youtube resolves channels, enumerates their uploads through the
// Data API or yt-dlp, and classifies and filters the resulting videos.
package youtube

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
)

// Sentinel errors.
var (
	ErrChannelNotFound   = errors.New("youtube: channel not found")
	ErrInvalidReference  = errors.New("youtube: invalid channel reference")
	ErrVideoUnavailable  = errors.New("youtube: video unavailable")
	ErrNoVideos          = errors.New("youtube: no videos could be listed")
	ErrYtdlpNotInstalled = errors.New("youtube: yt-dlp not installed")
)

// channelIDRegex matches a canonical channel ID.
var channelIDRegex = regexp.MustCompile(`^UC[a-zA-Z0-9_-]{22}$`)

// IsChannelID reports whether s is a canonical channel ID.
func IsChannelID(s string) bool {
	return channelIDRegex.MatchString(s)
}

// Channel is a resolved channel.
type Channel struct {
	ID    string `json:"id"`
	Title string `json:"title,omitempty"`
}

// URL returns the channel's canonical page.
func (c Channel) URL() string {
	return "https://www.youtube.com/channel/" + c.ID
}

// UploadsURL returns the channel's videos tab.
func (c Channel) UploadsURL() string {
	return c.URL() + "/videos"
}

// Video is one upload flowing through enumeration, classification and
// filtering.
type Video struct {
	ID          string
	Title       string
	ChannelID   string
	ChannelName string
	// Duration is zero when the source did not report one.
	Duration  time.Duration
	Published time.Time
	Thumbnail string
	// Width and Height describe the video or, failing that, its thumbnail.
	// Zero when unknown.
	Width  int
	Height int
	// IsLive is set for broadcasts that are running or scheduled.
	IsLive bool
	// WasLive is set for finished broadcasts.
	WasLive bool
	// IsShort is filled in by the classifier.
	IsShort bool
}

// AspectRatio returns width/height, or 0 when unknown.
func (v *Video) AspectRatio() float64 {
	if v.Width <= 0 || v.Height <= 0 {
		return 0
	}
	return float64(v.Width) / float64(v.Height)
}

// WatchURL returns the long-form player URL.
func (v *Video) WatchURL() string {
	return "https://www.youtube.com/watch?v=" + v.ID
}

// ShortsURL returns the short-form player URL.
func (v *Video) ShortsURL() string {
	return "https://www.youtube.com/shorts/" + v.ID
}

// URL returns the player URL matching the video's classification.
func (v *Video) URL() string {
	if v.IsShort {
		return v.ShortsURL()
	}
	return v.WatchURL()
}

// Hooks receive enumeration events. Every field is optional.
type Hooks struct {
	// Channel reports the channel's metadata once the enumerator knows it.
	Channel func(ch Channel)
	// Discovered reports the running number of uploads found so far. It is
	// called at least once before the first Video call and never decreases.
	Discovered func(total int)
	// Video delivers one detailed upload. Returning an error stops the
	// enumeration with that error.
	Video func(v *Video) error
	// Skipped reports an upload whose details could not be fetched.
	Skipped func(id string, err error)
	// Seen lets the caller drop uploads it already holds before any detail
	// is fetched for them.
	Seen func(id string) bool
}

func (h Hooks) channel(ch Channel) {
	if h.Channel != nil {
		h.Channel(ch)
	}
}

func (h Hooks) discovered(n int) {
	if h.Discovered != nil {
		h.Discovered(n)
	}
}

func (h Hooks) video(v *Video) error {
	if h.Video != nil {
		return h.Video(v)
	}
	return nil
}

func (h Hooks) skipped(id string, err error) {
	if h.Skipped != nil {
		h.Skipped(id, err)
	}
}

func (h Hooks) seen(id string) bool {
	return h.Seen != nil && h.Seen(id)
}

// Enumerator lists every upload of a channel.
// Implementations: *DataAPI (structured) and *FallbackEnumerator (yt-dlp).
type Enumerator interface {
	// Name identifies the path in logs ("api" or "ytdlp").
	Name() string
	// Enumerate streams the channel's uploads, in source order, through h.
	Enumerate(ctx context.Context, ch Channel, h Hooks) error
}

// ListerError wraps a listing failure with the path and channel involved.
//
//	var listerErr *youtube.ListerError
//	if errors.As(err, &listerErr) {
//		fmt.Printf("listing %s via %s failed: %v\n", listerErr.Channel, listerErr.Source, listerErr.Err)
//	}
type ListerError struct {
	// Source is "api" or "ytdlp".
	Source string
	// Channel is the channel ID being listed.
	Channel string
	Err     error
}

func (e *ListerError) Error() string {
	return "youtube: " + e.Source + " listing " + e.Channel + ": " + e.Err.Error()
}

func (e *ListerError) Unwrap() error { return e.Err }

// QuotaError reports that the Data API refused a call for quota or
// credential reasons. The structured path cannot continue after it.
type QuotaError struct {
	// Reason is the API's error reason, e.g. "quotaExceeded", or
	// "estimate" when the local budget ran out before calling.
	Reason string
	Err    error
}

func (e *QuotaError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("youtube: api quota/auth error (%s): %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("youtube: api quota/auth error (%s)", e.Reason)
}

func (e *QuotaError) Unwrap() error { return e.Err }

// IsQuotaError reports whether err carries a *QuotaError.
func IsQuotaError(err error) bool {
	var q *QuotaError
	return errors.As(err, &q)
}

// EnumerationItemError reports an upload whose details were unavailable.
// It is passed to Hooks.Skipped and never ends an enumeration.
type EnumerationItemError struct {
	VideoID string
	Err     error
}

func (e *EnumerationItemError) Error() string {
	return fmt.Sprintf("youtube: details for %s: %v", e.VideoID, e.Err)
}

func (e *EnumerationItemError) Unwrap() error { return e.Err }

// TransientFetchError marks a failure that may succeed when retried:
// timeouts, throttling, dropped connections.
type TransientFetchError struct {
	Op  string
	Err error
}

func (e *TransientFetchError) Error() string {
	return fmt.Sprintf("youtube: %s: transient: %v", e.Op, e.Err)
}

func (e *TransientFetchError) Unwrap() error { return e.Err }

// IsTransient reports whether err carries a *TransientFetchError.
func IsTransient(err error) bool {
	var t *TransientFetchError
	return errors.As(err, &t)
}

// unavailableMarkers are yt-dlp messages for items that will never download.
var unavailableMarkers = []string{
	"video unavailable",
	"private video",
	"available in your country",
	"blocked it in your country",
	"who has blocked it",
	"members-only",
	"join this channel",
	"has been removed",
	"account associated with this video has been terminated",
	"sign in to confirm your age",
}

// transientMarkers are yt-dlp messages worth another attempt.
var transientMarkers = []string{
	"http error 429",
	"too many requests",
	"http error 5",
	"timed out",
	"timeout",
	"connection reset",
	"connection refused",
	"temporary failure in name resolution",
	"remote end closed connection",
	"incompleteread",
	"unable to download webpage",
}

// classifyStderr maps yt-dlp error output to the error taxonomy.
func classifyStderr(op, stderr string, err error) error {
	msg := strings.ToLower(stderr)
	detail := lastErrorLine(stderr)
	if detail == "" && err != nil {
		detail = err.Error()
	}

	for _, m := range unavailableMarkers {
		if strings.Contains(msg, m) {
			return fmt.Errorf("%s: %w: %s", op, ErrVideoUnavailable, detail)
		}
	}
	for _, m := range transientMarkers {
		if strings.Contains(msg, m) {
			return &TransientFetchError{Op: op, Err: errors.New(detail)}
		}
	}
	if strings.Contains(msg, "does not exist") || strings.Contains(msg, "http error 404") {
		return fmt.Errorf("%s: %w: %s", op, ErrChannelNotFound, detail)
	}
	if detail == "" {
		detail = "yt-dlp failed"
	}
	return fmt.Errorf("%s: %s", op, detail)
}

// lastErrorLine returns the last "ERROR:" line of yt-dlp output, or the
// last non-empty line.
func lastErrorLine(stderr string) string {
	lines := strings.Split(strings.TrimSpace(stderr), "\n")
	last := ""
	for i := len(lines) - 1; i >= 0; i-- {
		l := strings.TrimSpace(lines[i])
		if l == "" {
			continue
		}
		if strings.HasPrefix(l, "ERROR:") {
			return strings.TrimSpace(strings.TrimPrefix(l, "ERROR:"))
		}
		if last == "" {
			last = l
		}
	}
	return last
}
