package youtube

import (
	"context"
	"errors"
	"fmt"
	"html"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	ythttp "ytscrape/http"
)

const siteBaseURL = "https://www.youtube.com"

var (
	externalIDRegex = regexp.MustCompile(`"externalId":"(UC[a-zA-Z0-9_-]{22})"`)
	canonicalRegex  = regexp.MustCompile(`<link rel="canonical" href="https://www\.youtube\.com/channel/(UC[a-zA-Z0-9_-]{22})"`)
	channelMetaID   = regexp.MustCompile(`<meta itemprop="(?:identifier|channelId)" content="(UC[a-zA-Z0-9_-]{22})"`)
	ogTitleRegex    = regexp.MustCompile(`<meta property="og:title" content="([^"]*)"`)
)

// PageLookup resolves channel references by reading the public channel
// page. It needs no API key and spends no quota.
type PageLookup struct {
	client  *ythttp.Client
	baseURL string
}

// NewPageLookup creates a PageLookup on client.
func NewPageLookup(client *ythttp.Client) *PageLookup {
	return &PageLookup{client: client, baseURL: siteBaseURL}
}

// ByHandle implements ChannelLookup.
func (p *PageLookup) ByHandle(ctx context.Context, handle string) (Channel, error) {
	return p.fetch(ctx, "/@"+url.PathEscape(strings.TrimPrefix(handle, "@")))
}

// ByCustomURL implements ChannelLookup.
func (p *PageLookup) ByCustomURL(ctx context.Context, name string) (Channel, error) {
	return p.fetch(ctx, "/c/"+url.PathEscape(name))
}

// ByUsername implements ChannelLookup.
func (p *PageLookup) ByUsername(ctx context.Context, name string) (Channel, error) {
	return p.fetch(ctx, "/user/"+url.PathEscape(name))
}

func (p *PageLookup) fetch(ctx context.Context, path string) (Channel, error) {
	resp, err := p.client.Get(ctx, p.baseURL+path)
	if err != nil {
		var se *ythttp.StatusError
		if errors.As(err, &se) && se.StatusCode == http.StatusNotFound {
			return Channel{}, fmt.Errorf("%s: %w", path, ErrChannelNotFound)
		}
		if ythttp.IsTransient(err) {
			return Channel{}, &TransientFetchError{Op: "channel page " + path, Err: err}
		}
		return Channel{}, err
	}

	ch, ok := parseChannelPage(resp.Body)
	if !ok {
		return Channel{}, fmt.Errorf("%s: %w: no channel id on page", path, ErrChannelNotFound)
	}
	return ch, nil
}

// parseChannelPage extracts the channel ID and title from a channel page.
func parseChannelPage(body []byte) (Channel, bool) {
	var ch Channel
	for _, re := range []*regexp.Regexp{externalIDRegex, canonicalRegex, channelMetaID} {
		if m := re.FindSubmatch(body); m != nil {
			ch.ID = string(m[1])
			break
		}
	}
	if ch.ID == "" {
		return Channel{}, false
	}
	if m := ogTitleRegex.FindSubmatch(body); m != nil {
		ch.Title = html.UnescapeString(string(m[1]))
	}
	return ch, true
}
