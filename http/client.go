// Package http provides the rate-limited, retrying HTTP client used for
// YouTube page fetches and shorts probes.
package http

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"ytscrape/internal/retry"
)

// Config holds HTTP client configuration.
type Config struct {
	// Timeout bounds every single request, redirects included.
	Timeout time.Duration
	// MaxBodyBytes caps how much of a response body is read. Default: 8 MiB.
	MaxBodyBytes int64
	// UserAgent is used when the session does not set one.
	UserAgent string

	Retry          retry.Config
	RateLimiter    RateLimiterConfig
	CircuitBreaker CircuitBreakerConfig
	Session        SessionConfig
	Transport      TransportConfig

	Logger *slog.Logger
}

// TransportConfig configures connection pooling.
type TransportConfig struct {
	MaxIdleConns        int
	MaxIdleConnsPerHost int
	IdleConnTimeout     time.Duration
}

// DefaultConfig returns sensible defaults for talking to www.youtube.com.
func DefaultConfig() *Config {
	return &Config{
		Timeout:        20 * time.Second,
		MaxBodyBytes:   8 << 20,
		UserAgent:      "ytscrape/1.0",
		Retry:          retry.DefaultConfig(),
		RateLimiter:    DefaultRateLimiterConfig(),
		CircuitBreaker: DefaultCircuitBreakerConfig(),
		Session:        DefaultSessionConfig(),
		Transport: TransportConfig{
			MaxIdleConns:        20,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
		},
	}
}

// Client wraps net/http with per-host rate limiting, a circuit breaker and
// retries for transient failures.
type Client struct {
	cfg     *Config
	follow  *http.Client
	noRedir *http.Client
	limiter *RateLimiter
	breaker *CircuitBreaker
	session *Session
	log     *slog.Logger
}

// New creates a client. A nil cfg uses DefaultConfig.
func New(cfg *Config) (*Client, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = DefaultConfig().MaxBodyBytes
	}
	log := cfg.Logger
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}

	session, err := NewSession(cfg.Session)
	if err != nil {
		return nil, err
	}

	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        cfg.Transport.MaxIdleConns,
		MaxIdleConnsPerHost: cfg.Transport.MaxIdleConnsPerHost,
		IdleConnTimeout:     cfg.Transport.IdleConnTimeout,
		ForceAttemptHTTP2:   true,
	}

	return &Client{
		cfg: cfg,
		follow: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: transport,
			Jar:       session.Jar(),
		},
		noRedir: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: transport,
			Jar:       session.Jar(),
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		limiter: NewRateLimiter(cfg.RateLimiter),
		breaker: NewCircuitBreaker(cfg.CircuitBreaker),
		session: session,
		log:     log,
	}, nil
}

// Response is a fully read HTTP response.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
	// Location is the redirect target of a 3xx answer, resolved against the
	// request URL. Only set by Probe.
	Location string
}

// Get fetches rawURL following redirects. Any non-2xx final status is an
// error.
func (c *Client) Get(ctx context.Context, rawURL string) (*Response, error) {
	return c.do(ctx, rawURL, true)
}

// Probe fetches rawURL without following redirects, so the caller can see
// where the server wanted to send it. 2xx and 3xx answers are returned as
// responses; 429 and 503 still come back as *RateLimitError.
func (c *Client) Probe(ctx context.Context, rawURL string) (*Response, error) {
	return c.do(ctx, rawURL, false)
}

func (c *Client) do(ctx context.Context, rawURL string, follow bool) (*Response, error) {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return nil, retry.Permanent(fmt.Errorf("http: invalid url %q", rawURL))
	}
	host := u.Hostname()

	if err := c.breaker.Allow(host); err != nil {
		return nil, err
	}

	rcfg := c.cfg.Retry
	rcfg.OnRetry = func(next int, err error, wait time.Duration) {
		c.log.Debug("retrying request",
			slog.String("url", rawURL), slog.Int("attempt", next),
			slog.Duration("wait", wait), slog.Any("error", err))
	}

	var out *Response
	err = retry.Do(ctx, rcfg, retryable, func(ctx context.Context) error {
		if err := c.limiter.Wait(ctx, host); err != nil {
			return err
		}
		resp, err := c.once(ctx, u, follow)
		if err != nil {
			return err
		}
		out = resp
		return nil
	})
	if err != nil {
		c.breaker.RecordFailure(host, err)
		return nil, err
	}

	c.limiter.RecordSuccess(host)
	c.breaker.RecordSuccess(host)
	return out, nil
}

func (c *Client) once(ctx context.Context, u *url.URL, follow bool) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, retry.Permanent(err)
	}
	c.session.apply(req)
	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", c.cfg.UserAgent)
	}

	hc := c.follow
	if !follow {
		hc = c.noRedir
	}
	resp, err := hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http: get %s: %w", u, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == http.StatusServiceUnavailable:
		wait := c.limiter.Penalize(u.Hostname(), parseRetryAfter(resp.Header))
		return nil, &RateLimitError{StatusCode: resp.StatusCode, RetryAfter: wait}
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
	case !follow && resp.StatusCode >= 300 && resp.StatusCode < 400:
	default:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, &StatusError{StatusCode: resp.StatusCode, URL: u.String(), Body: body}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.cfg.MaxBodyBytes+1))
	if err != nil {
		return nil, fmt.Errorf("http: read %s: %w", u, err)
	}
	if int64(len(body)) > c.cfg.MaxBodyBytes {
		return nil, ErrBodyTooLarge
	}

	out := &Response{StatusCode: resp.StatusCode, Header: resp.Header, Body: body}
	if loc := resp.Header.Get("Location"); loc != "" {
		if target, err := u.Parse(loc); err == nil {
			out.Location = target.String()
		} else {
			out.Location = loc
		}
	}
	return out, nil
}

func retryable(err error) bool {
	return !retry.IsPermanent(err) && IsTransient(err)
}

// Breaker exposes the client's circuit breaker.
func (c *Client) Breaker() *CircuitBreaker { return c.breaker }

// Session exposes the client's cookie and header state.
func (c *Client) Session() *Session { return c.session }

// Close releases idle connections.
func (c *Client) Close() error {
	c.follow.CloseIdleConnections()
	return nil
}

// IsRateLimited reports whether err came from a 429 or 503 answer.
func IsRateLimited(err error) bool {
	var rl *RateLimitError
	return errors.As(err, &rl)
}
