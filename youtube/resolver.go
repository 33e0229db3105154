package youtube

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
)

// ChannelLookup confirms a channel by one interpretation of its name.
// Each method returns ErrChannelNotFound when no channel matches.
type ChannelLookup interface {
	ByHandle(ctx context.Context, handle string) (Channel, error)
	ByCustomURL(ctx context.Context, name string) (Channel, error)
	ByUsername(ctx context.Context, name string) (Channel, error)
}

// ResolutionError is returned when no interpretation of the input names a
// channel. The individual attempt errors are available through
// errors.Is/errors.As.
type ResolutionError struct {
	Input    string
	Attempts []error
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("youtube: could not resolve channel %q", e.Input)
}

func (e *ResolutionError) Unwrap() []error { return e.Attempts }

type attempt struct {
	name string
	fn   func(context.Context, string) (Channel, error)
}

// Resolver turns channel references into canonical channel IDs.
type Resolver struct {
	lookup ChannelLookup
	log    *slog.Logger

	mu    sync.Mutex
	cache map[string]Channel
}

// NewResolver creates a resolver backed by lookup.
func NewResolver(lookup ChannelLookup, log *slog.Logger) *Resolver {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Resolver{lookup: lookup, log: log, cache: make(map[string]Channel)}
}

// Resolve returns the channel named by raw. A canonical ID is returned as
// is without network access. Anything else is tried as a handle, then as a
// legacy custom URL, then as a legacy username; the first lookup that
// succeeds wins.
func (r *Resolver) Resolve(ctx context.Context, raw string) (Channel, error) {
	ref, err := ParseReference(raw)
	if err != nil {
		return Channel{}, &ResolutionError{Input: raw, Attempts: []error{err}}
	}
	if ref.Kind == RefChannelID {
		return Channel{ID: ref.Value}, nil
	}

	key := strings.ToLower(ref.Value)
	r.mu.Lock()
	ch, ok := r.cache[key]
	r.mu.Unlock()
	if ok {
		return ch, nil
	}

	attempts := []attempt{
		{"handle", r.lookup.ByHandle},
		{"custom", r.lookup.ByCustomURL},
		{"user", r.lookup.ByUsername},
	}

	var errs []error
	for _, a := range attempts {
		ch, err := a.fn(ctx, ref.Value)
		if err == nil && IsChannelID(ch.ID) {
			r.log.Debug("channel resolved",
				slog.String("input", raw), slog.String("via", a.name), slog.String("channel_id", ch.ID))
			r.mu.Lock()
			r.cache[key] = ch
			r.mu.Unlock()
			return ch, nil
		}
		if err == nil {
			err = fmt.Errorf("malformed channel ID %q", ch.ID)
		}
		if ctx.Err() != nil {
			return Channel{}, ctx.Err()
		}
		if IsQuotaError(err) {
			return Channel{}, err
		}
		errs = append(errs, fmt.Errorf("%s lookup: %w", a.name, err))
	}
	return Channel{}, &ResolutionError{Input: raw, Attempts: errs}
}

// IsResolutionError reports whether err carries a *ResolutionError.
func IsResolutionError(err error) bool {
	var re *ResolutionError
	return errors.As(err, &re)
}
