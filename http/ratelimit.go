package http

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	// penaltyInitial is the first backoff applied after a rate-limit response.
	penaltyInitial = 1 * time.Second
	// penaltyMax caps the per-host backoff.
	penaltyMax = 60 * time.Second
	// penaltyCooldown is how long a host must stay quiet before its
	// original rate is restored.
	penaltyCooldown = 5 * time.Minute
	// minRateFactor is the lowest fraction of the configured rate a
	// penalized host is throttled to.
	minRateFactor = 0.25
)

// RateLimiterConfig defines per-host request rates.
type RateLimiterConfig struct {
	// DefaultRPS applies to hosts without an entry in HostRPS. Zero disables
	// limiting for those hosts.
	DefaultRPS float64
	// HostRPS overrides the rate for specific hosts.
	HostRPS map[string]float64
	// Burst is the token bucket size. Defaults to 1.
	Burst int
	// Adaptive lowers a host's rate after rate-limit responses and restores
	// it as requests succeed again.
	Adaptive bool
}

// DefaultRateLimiterConfig keeps page fetches and shorts probes against
// www.youtube.com at a conservative pace.
func DefaultRateLimiterConfig() RateLimiterConfig {
	return RateLimiterConfig{
		DefaultRPS: 2,
		HostRPS: map[string]float64{
			"www.youtube.com": 2.5,
			"youtube.com":     2.5,
		},
		Burst:    1,
		Adaptive: true,
	}
}

type hostPenalty struct {
	backoff  time.Duration
	lastHit  time.Time
	strikes  int
	baseRate float64
}

// RateLimiter hands out per-host token buckets.
type RateLimiter struct {
	mu        sync.Mutex
	cfg       RateLimiterConfig
	buckets   map[string]*rate.Limiter
	penalties map[string]*hostPenalty
}

// NewRateLimiter creates a limiter from cfg.
func NewRateLimiter(cfg RateLimiterConfig) *RateLimiter {
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}
	return &RateLimiter{
		cfg:       cfg,
		buckets:   make(map[string]*rate.Limiter),
		penalties: make(map[string]*hostPenalty),
	}
}

func (rl *RateLimiter) rateFor(host string) float64 {
	if rps, ok := rl.cfg.HostRPS[host]; ok {
		return rps
	}
	return rl.cfg.DefaultRPS
}

// bucket must be called with rl.mu held.
func (rl *RateLimiter) bucket(host string) *rate.Limiter {
	if b, ok := rl.buckets[host]; ok {
		return b
	}
	rps := rl.rateFor(host)
	if rps <= 0 {
		return nil
	}
	b := rate.NewLimiter(rate.Limit(rps), rl.cfg.Burst)
	rl.buckets[host] = b
	return b
}

// Wait blocks until host may be contacted: first for any outstanding
// penalty, then for a token.
func (rl *RateLimiter) Wait(ctx context.Context, host string) error {
	if rl == nil {
		return nil
	}

	if d := rl.penaltyRemaining(host); d > 0 {
		t := time.NewTimer(d)
		select {
		case <-t.C:
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		}
	}

	rl.mu.Lock()
	b := rl.bucket(host)
	rl.mu.Unlock()
	if b == nil {
		return nil
	}
	return b.Wait(ctx)
}

func (rl *RateLimiter) penaltyRemaining(host string) time.Duration {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	p, ok := rl.penalties[host]
	if !ok {
		return 0
	}
	return p.backoff - time.Since(p.lastHit)
}

// Penalize records a rate-limit response from host and returns how long the
// caller should back off. The server's retryAfter wins when it is longer.
func (rl *RateLimiter) Penalize(host string, retryAfter time.Duration) time.Duration {
	if rl == nil || !rl.cfg.Adaptive {
		if retryAfter > 0 {
			return retryAfter
		}
		return penaltyInitial
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()

	p, ok := rl.penalties[host]
	if !ok {
		p = &hostPenalty{backoff: penaltyInitial, baseRate: rl.rateFor(host)}
		rl.penalties[host] = p
	} else {
		p.backoff *= 2
		if p.backoff > penaltyMax {
			p.backoff = penaltyMax
		}
	}
	p.strikes++
	p.lastHit = time.Now()
	if retryAfter > p.backoff {
		p.backoff = retryAfter
	}

	factor := 1 - 0.25*float64(p.strikes)
	if factor < minRateFactor {
		factor = minRateFactor
	}
	if b := rl.bucket(host); b != nil {
		b.SetLimit(rate.Limit(p.baseRate * factor))
	}
	return p.backoff
}

// RecordSuccess lets a penalized host recover: one strike is forgiven per
// success and the full rate returns after the cooldown.
func (rl *RateLimiter) RecordSuccess(host string) {
	if rl == nil || !rl.cfg.Adaptive {
		return
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()

	p, ok := rl.penalties[host]
	if !ok {
		return
	}
	b := rl.buckets[host]
	if time.Since(p.lastHit) > penaltyCooldown {
		if b != nil {
			b.SetLimit(rate.Limit(p.baseRate))
		}
		delete(rl.penalties, host)
		return
	}
	if p.strikes > 0 {
		p.strikes--
	}
	if p.strikes == 0 && b != nil && float64(b.Limit()) < p.baseRate*0.5 {
		b.SetLimit(rate.Limit(p.baseRate * 0.5))
	}
}

// Limit returns the rate currently applied to host, or 0 when unlimited.
func (rl *RateLimiter) Limit(host string) float64 {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	b := rl.bucket(host)
	if b == nil {
		return 0
	}
	return float64(b.Limit())
}
