package http

import (
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"sync"
	"time"
)

// SessionConfig configures the cookies and headers sent with every request.
type SessionConfig struct {
	// UserAgent overrides Config.UserAgent when set.
	UserAgent string
	// AcceptLanguage pins the page language so markup stays predictable.
	AcceptLanguage string
	// SkipConsent pre-seeds the consent cookies for ConsentDomains so that
	// EU visitors are not redirected to consent.youtube.com.
	SkipConsent bool
	// ConsentDomains lists the sites that receive the consent cookies.
	ConsentDomains []string
	// Headers are added to every request unless the request sets them.
	Headers map[string]string
}

// DefaultSessionConfig returns a browser-like session for www.youtube.com.
func DefaultSessionConfig() SessionConfig {
	return SessionConfig{
		UserAgent:      "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36",
		AcceptLanguage: "en-US,en;q=0.9",
		SkipConsent:    true,
		ConsentDomains: []string{"https://www.youtube.com", "https://m.youtube.com"},
	}
}

// Session holds a cookie jar plus default headers.
type Session struct {
	mu      sync.RWMutex
	jar     http.CookieJar
	headers map[string]string
}

// NewSession builds a session from cfg.
func NewSession(cfg SessionConfig) (*Session, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("create cookie jar: %w", err)
	}

	s := &Session{jar: jar, headers: make(map[string]string)}
	if cfg.UserAgent != "" {
		s.headers["User-Agent"] = cfg.UserAgent
	}
	if cfg.AcceptLanguage != "" {
		s.headers["Accept-Language"] = cfg.AcceptLanguage
	}
	for k, v := range cfg.Headers {
		s.headers[k] = v
	}

	if cfg.SkipConsent {
		for _, raw := range cfg.ConsentDomains {
			u, err := url.Parse(raw)
			if err != nil {
				return nil, fmt.Errorf("consent domain %q: %w", raw, err)
			}
			s.jar.SetCookies(u, consentCookies())
		}
	}
	return s, nil
}

func consentCookies() []*http.Cookie {
	expires := time.Now().AddDate(1, 0, 0)
	return []*http.Cookie{
		{Name: "SOCS", Value: "CAI", Path: "/", Expires: expires},
		{Name: "CONSENT", Value: "YES+cb", Path: "/", Expires: expires},
	}
}

// Jar returns the session's cookie jar.
func (s *Session) Jar() http.CookieJar {
	return s.jar
}

// SetHeader sets a default header for later requests.
func (s *Session) SetHeader(key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.headers[key] = value
}

// apply copies the default headers onto req without overriding ones it
// already carries.
func (s *Session) apply(req *http.Request) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for k, v := range s.headers {
		if req.Header.Get(k) == "" {
			req.Header.Set(k, v)
		}
	}
}

// Cookies returns the cookies the jar would send to rawURL.
func (s *Session) Cookies(rawURL string) []*http.Cookie {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil
	}
	return s.jar.Cookies(u)
}
