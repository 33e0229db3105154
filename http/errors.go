package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"
)

// RateLimitError is returned when the remote host answered 429 or 503.
type RateLimitError struct {
	StatusCode int
	// RetryAfter is the wait the host asked for, or the limiter's own
	// backoff when that is longer.
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("rate limited (status %d): retry after %v", e.StatusCode, e.RetryAfter)
	}
	return fmt.Sprintf("rate limited (status %d)", e.StatusCode)
}

// StatusError is returned for any other status the caller did not accept.
type StatusError struct {
	StatusCode int
	URL        string
	Body       []byte
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("http: %s: status %d", e.URL, e.StatusCode)
}

var (
	// ErrCircuitOpen is returned without touching the network while a host's
	// breaker is open.
	ErrCircuitOpen = errors.New("http: circuit breaker is open")
	// ErrBodyTooLarge is returned when a response exceeds Config.MaxBodyBytes.
	ErrBodyTooLarge = errors.New("http: response body too large")
)

// IsTransient reports whether err is worth retrying: rate limits, 5xx,
// 408 and plain network failures are; other statuses, an open breaker and
// context cancellation are not.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if errors.Is(err, ErrCircuitOpen) || errors.Is(err, ErrBodyTooLarge) {
		return false
	}

	var rl *RateLimitError
	if errors.As(err, &rl) {
		return true
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.StatusCode >= 500 || se.StatusCode == http.StatusRequestTimeout
	}
	return true
}

// parseRetryAfter reads a Retry-After header given either as seconds or as
// an HTTP date. It returns 0 when the header is missing or unusable.
func parseRetryAfter(h http.Header) time.Duration {
	v := h.Get("Retry-After")
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}
