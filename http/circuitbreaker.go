package http

import (
	"sync"
	"time"
)

// CircuitState is the state of one host's breaker.
type CircuitState int

const (
	// CircuitClosed lets every request through.
	CircuitClosed CircuitState = iota
	// CircuitOpen rejects requests until the cooldown elapses.
	CircuitOpen
	// CircuitHalfOpen lets a limited number of trial requests through.
	CircuitHalfOpen
)

func (s CircuitState) String() string {
	switch s {
	case CircuitClosed:
		return "closed"
	case CircuitOpen:
		return "open"
	case CircuitHalfOpen:
		return "half-open"
	}
	return "unknown"
}

// CircuitBreakerConfig configures the per-host breaker.
type CircuitBreakerConfig struct {
	// FailureThreshold is the number of consecutive transient failures that
	// opens the circuit. Default: 5.
	FailureThreshold int
	// Cooldown is how long an open circuit rejects requests. Default: 30s.
	Cooldown time.Duration
	// TrialRequests is the number of requests allowed while half-open.
	// Default: 1.
	TrialRequests int
	// Counts decides which errors count against the threshold. Nil counts
	// every error.
	Counts func(error) bool
}

// DefaultCircuitBreakerConfig counts only transient failures.
func DefaultCircuitBreakerConfig() CircuitBreakerConfig {
	return CircuitBreakerConfig{
		FailureThreshold: 5,
		Cooldown:         30 * time.Second,
		TrialRequests:    1,
		Counts:           IsTransient,
	}
}

type circuit struct {
	state    CircuitState
	failures int
	trials   int
	since    time.Time
}

// effective resolves an open circuit whose cooldown has passed.
func (c *circuit) effective(cooldown time.Duration) CircuitState {
	if c.state == CircuitOpen && time.Since(c.since) >= cooldown {
		return CircuitHalfOpen
	}
	return c.state
}

func (c *circuit) moveTo(s CircuitState) {
	c.state = s
	c.since = time.Now()
	c.trials = 0
	if s == CircuitClosed {
		c.failures = 0
	}
}

// CircuitBreaker fails fast for hosts that keep failing.
type CircuitBreaker struct {
	mu       sync.Mutex
	cfg      CircuitBreakerConfig
	circuits map[string]*circuit
}

// NewCircuitBreaker creates a breaker, filling zero config values with
// defaults.
func NewCircuitBreaker(cfg CircuitBreakerConfig) *CircuitBreaker {
	def := DefaultCircuitBreakerConfig()
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = def.FailureThreshold
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = def.Cooldown
	}
	if cfg.TrialRequests <= 0 {
		cfg.TrialRequests = def.TrialRequests
	}
	return &CircuitBreaker{cfg: cfg, circuits: make(map[string]*circuit)}
}

func (cb *CircuitBreaker) get(host string) *circuit {
	c, ok := cb.circuits[host]
	if !ok {
		c = &circuit{since: time.Now()}
		cb.circuits[host] = c
	}
	return c
}

// Allow returns ErrCircuitOpen when a request to host must not be sent.
func (cb *CircuitBreaker) Allow(host string) error {
	if cb == nil {
		return nil
	}
	cb.mu.Lock()
	defer cb.mu.Unlock()

	c := cb.get(host)
	switch c.effective(cb.cfg.Cooldown) {
	case CircuitOpen:
		return ErrCircuitOpen
	case CircuitHalfOpen:
		if c.state == CircuitOpen {
			c.moveTo(CircuitHalfOpen)
		}
		if c.trials >= cb.cfg.TrialRequests {
			return ErrCircuitOpen
		}
		c.trials++
	}
	return nil
}

// RecordSuccess closes a half-open circuit and clears the failure count.
func (cb *CircuitBreaker) RecordSuccess(host string) {
	if cb == nil {
		return
	}
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.get(host).moveTo(CircuitClosed)
}

// RecordFailure counts err against host. A failed trial reopens the circuit.
func (cb *CircuitBreaker) RecordFailure(host string, err error) {
	if cb == nil {
		return
	}
	if cb.cfg.Counts != nil && !cb.cfg.Counts(err) {
		return
	}
	cb.mu.Lock()
	defer cb.mu.Unlock()

	c := cb.get(host)
	c.failures++
	switch c.effective(cb.cfg.Cooldown) {
	case CircuitHalfOpen:
		c.moveTo(CircuitOpen)
	case CircuitClosed:
		if c.failures >= cb.cfg.FailureThreshold {
			c.moveTo(CircuitOpen)
		}
	}
}

// State returns the breaker state for host.
func (cb *CircuitBreaker) State(host string) CircuitState {
	if cb == nil {
		return CircuitClosed
	}
	cb.mu.Lock()
	defer cb.mu.Unlock()
	c, ok := cb.circuits[host]
	if !ok {
		return CircuitClosed
	}
	return c.effective(cb.cfg.Cooldown)
}

// Reset forgets all recorded failures.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.circuits = make(map[string]*circuit)
}
