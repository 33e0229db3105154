package http

import (
	"net/http"
	"testing"
)

func TestNewSessionSeedsConsent(t *testing.T) {
	s, err := NewSession(DefaultSessionConfig())
	if err != nil {
		t.Fatalf("NewSession() error = %v", err)
	}

	names := map[string]bool{}
	for _, c := range s.Cookies("https://www.youtube.com/shorts/abc") {
		names[c.Name] = true
	}
	if !names["SOCS"] || !names["CONSENT"] {
		t.Errorf("consent cookies = %v, want SOCS and CONSENT", names)
	}
	if got := s.Cookies("https://example.com/"); len(got) != 0 {
		t.Errorf("unrelated host got cookies %v", got)
	}
}

func TestNewSessionWithoutConsent(t *testing.T) {
	cfg := DefaultSessionConfig()
	cfg.SkipConsent = false
	s, err := NewSession(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if got := s.Cookies("https://www.youtube.com/"); len(got) != 0 {
		t.Errorf("cookies = %v, want none", got)
	}
}

func TestSessionApplyKeepsExplicitHeaders(t *testing.T) {
	s, err := NewSession(SessionConfig{UserAgent: "session-agent", Headers: map[string]string{"X-Test": "1"}})
	if err != nil {
		t.Fatal(err)
	}
	s.SetHeader("X-Extra", "2")

	req, _ := http.NewRequest(http.MethodGet, "https://www.youtube.com/", nil)
	req.Header.Set("User-Agent", "explicit")
	s.apply(req)

	if got := req.Header.Get("User-Agent"); got != "explicit" {
		t.Errorf("User-Agent = %q, want explicit", got)
	}
	if req.Header.Get("X-Test") != "1" || req.Header.Get("X-Extra") != "2" {
		t.Errorf("session headers not applied: %v", req.Header)
	}
}
