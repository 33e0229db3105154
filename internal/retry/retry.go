// Package retry provides exponential backoff retry logic with jitter.
package retry

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"
)

// Config holds retry configuration.
type Config struct {
	// MaxRetries is the number of attempts made after the first one fails.
	MaxRetries int
	// InitialBackoff is the delay before the first retry.
	InitialBackoff time.Duration
	// MaxBackoff caps the delay between attempts.
	MaxBackoff time.Duration
	// Multiplier grows the delay after every retry.
	Multiplier float64
	// JitterFraction spreads each delay by +/- this fraction (0.0-1.0).
	JitterFraction float64
	// OnRetry, when set, is called before sleeping ahead of attempt number next.
	OnRetry func(next int, err error, wait time.Duration)
}

// DefaultConfig returns the backoff used for network calls.
func DefaultConfig() Config {
	return Config{
		MaxRetries:     3,
		InitialBackoff: 2 * time.Second,
		MaxBackoff:     30 * time.Second,
		Multiplier:     2.0,
		JitterFraction: 0.2,
	}
}

// Classifier reports whether err is worth another attempt.
type Classifier func(error) bool

type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err so that IsRetryable refuses to retry it.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err was marked with Permanent.
func IsPermanent(err error) bool {
	var p *permanentError
	return errors.As(err, &p)
}

// IsRetryable is the default classifier. Context errors and errors marked
// Permanent stop the loop; anything else is retried.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return !IsPermanent(err)
}

// ExhaustedError is returned by Do when every attempt failed with a
// retryable error.
type ExhaustedError struct {
	Attempts int
	Err      error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("gave up after %d attempts: %v", e.Attempts, e.Err)
}

func (e *ExhaustedError) Unwrap() error { return e.Err }

// Do calls fn until it succeeds, the classifier rejects its error, the
// retries run out or ctx is done.
func Do(ctx context.Context, cfg Config, classify Classifier, fn func(context.Context) error) error {
	if classify == nil {
		classify = IsRetryable
	}

	backoff := cfg.InitialBackoff
	var lastErr error
	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		lastErr = err
		if !classify(err) {
			return err
		}
		if attempt == cfg.MaxRetries {
			break
		}

		wait := backoff + jitter(backoff, cfg.JitterFraction)
		if cfg.MaxBackoff > 0 && wait > cfg.MaxBackoff {
			wait = cfg.MaxBackoff
		}
		if wait < 0 {
			wait = 0
		}
		if cfg.OnRetry != nil {
			cfg.OnRetry(attempt+2, err, wait)
		}

		timer := time.NewTimer(wait)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		}

		backoff = time.Duration(float64(backoff) * cfg.Multiplier)
		if cfg.MaxBackoff > 0 && backoff > cfg.MaxBackoff {
			backoff = cfg.MaxBackoff
		}
	}

	return &ExhaustedError{Attempts: cfg.MaxRetries + 1, Err: lastErr}
}

// jitter returns a random duration in [-fraction*d, +fraction*d].
func jitter(d time.Duration, fraction float64) time.Duration {
	if fraction <= 0 || d <= 0 {
		return 0
	}
	span := float64(d) * fraction
	return time.Duration((rand.Float64()*2 - 1) * span)
}
