package ytscrape

import (
	"ytscrape/download"
	"ytscrape/internal/retry"
	"ytscrape/scrape"
	"ytscrape/youtube"
)

// Type aliases for convenient error handling.
type (
	// ResolutionError reports a channel reference no lookup could resolve.
	ResolutionError = youtube.ResolutionError
	// ListerError wraps a failure to list a channel at all.
	ListerError = youtube.ListerError
	// QuotaError reports an exhausted or rejected Data API key.
	QuotaError = youtube.QuotaError
	// EnumerationItemError reports one upload that was skipped.
	EnumerationItemError = youtube.EnumerationItemError
	// TransientFetchError marks failures worth retrying.
	TransientFetchError = youtube.TransientFetchError
	// ConversionError reports a video that could not be converted.
	ConversionError = download.ConversionError
	// ExhaustedError wraps the last error once retries ran out.
	ExhaustedError = retry.ExhaustedError
)

// Sentinel errors exported from sub-packages.
var (
	// ErrChannelNotFound indicates the channel does not exist.
	ErrChannelNotFound = youtube.ErrChannelNotFound
	// ErrInvalidReference indicates input that names no YouTube channel.
	ErrInvalidReference = youtube.ErrInvalidReference
	// ErrVideoUnavailable indicates a private, removed or blocked video.
	ErrVideoUnavailable = youtube.ErrVideoUnavailable
	// ErrNoVideos indicates a channel listing produced nothing.
	ErrNoVideos = youtube.ErrNoVideos
	// ErrYtdlpNotInstalled indicates the yt-dlp binary was not found.
	ErrYtdlpNotInstalled = youtube.ErrYtdlpNotInstalled

	ErrScrapeInProgress   = scrape.ErrRunInProgress
	ErrDownloadInProgress = download.ErrRunInProgress
)

// IsRetryable reports whether err is a transient failure worth another
// attempt.
func IsRetryable(err error) bool {
	return youtube.IsTransient(err)
}

// IsQuotaError reports whether err came from an exhausted Data API key.
func IsQuotaError(err error) bool {
	return youtube.IsQuotaError(err)
}
