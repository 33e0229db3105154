package youtube

import (
	"context"
	"net/url"
	"strings"

	ythttp "ytscrape/http"
)

const shortsBaseURL = "https://www.youtube.com/shorts/"

// HTTPShortsProbe requests /shorts/<id> without following redirects. The
// site serves short-form items there and redirects everything else to
// the regular player.
type HTTPShortsProbe struct {
	client  *ythttp.Client
	baseURL string
}

// NewHTTPShortsProbe creates a probe on client.
func NewHTTPShortsProbe(client *ythttp.Client) *HTTPShortsProbe {
	return &HTTPShortsProbe{client: client, baseURL: shortsBaseURL}
}

// ProbeShort implements ShortsProbe.
func (p *HTTPShortsProbe) ProbeShort(ctx context.Context, videoID string) (Verdict, error) {
	resp, err := p.client.Probe(ctx, p.baseURL+url.PathEscape(videoID))
	if err != nil {
		return VerdictInconclusive, err
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return VerdictShort, nil
	case resp.StatusCode >= 300 && resp.StatusCode < 400:
		if isWatchURL(resp.Location) {
			return VerdictLong, nil
		}
	}
	return VerdictInconclusive, nil
}

func isWatchURL(loc string) bool {
	u, err := url.Parse(loc)
	if err != nil {
		return false
	}
	return strings.HasPrefix(u.Path, "/watch")
}
