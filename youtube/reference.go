package youtube

import (
	"fmt"
	"net/url"
	"strings"
)

// RefKind says how a channel reference was written.
type RefKind int

const (
	// RefChannelID is a canonical UC... ID, bare or in a /channel/ URL.
	RefChannelID RefKind = iota
	// RefHandle is an @handle.
	RefHandle
	// RefCustom is a legacy /c/<name> URL.
	RefCustom
	// RefUser is a legacy /user/<name> URL.
	RefUser
	// RefName is a bare name or youtube.com/<name> vanity URL.
	RefName
)

func (k RefKind) String() string {
	switch k {
	case RefChannelID:
		return "channel-id"
	case RefHandle:
		return "handle"
	case RefCustom:
		return "custom"
	case RefUser:
		return "user"
	case RefName:
		return "name"
	}
	return "unknown"
}

// Reference is a parsed, normalized channel reference.
type Reference struct {
	Kind RefKind
	// Value is the ID, handle (without "@") or name.
	Value string
}

func (r Reference) String() string {
	if r.Kind == RefHandle {
		return "@" + r.Value
	}
	return r.Kind.String() + ":" + r.Value
}

// channelTabs are page suffixes that do not change which channel is meant.
var channelTabs = map[string]bool{
	"videos": true, "shorts": true, "streams": true, "featured": true,
	"live": true, "playlists": true, "community": true, "about": true,
	"podcasts": true, "releases": true,
}

// ParseReference normalizes user input naming a channel. It accepts full
// URLs with or without scheme, www./m. hosts, site-relative paths such as
// /c/name, and bare IDs, handles or names. Surrounding whitespace, query
// strings, fragments, trailing slashes and tab suffixes are ignored.
func ParseReference(raw string) (Reference, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return Reference{}, fmt.Errorf("%w: empty", ErrInvalidReference)
	}

	lower := strings.ToLower(s)
	isURL := strings.Contains(lower, "://") || strings.Contains(lower, "youtube.com")
	if !isURL && strings.Contains(s, "/") {
		s = "https://www.youtube.com/" + strings.TrimLeft(s, "/")
		isURL = true
	}

	if !isURL {
		if i := strings.IndexAny(s, "?#"); i >= 0 {
			s = s[:i]
		}
		return bareReference(s)
	}
	return urlReference(s)
}

func bareReference(s string) (Reference, error) {
	s = strings.TrimSpace(s)
	switch {
	case s == "" || s == "@":
		return Reference{}, fmt.Errorf("%w: empty", ErrInvalidReference)
	case IsChannelID(s):
		return Reference{Kind: RefChannelID, Value: s}, nil
	case strings.HasPrefix(s, "@"):
		return Reference{Kind: RefHandle, Value: s[1:]}, nil
	}
	return Reference{Kind: RefName, Value: s}, nil
}

func urlReference(s string) (Reference, error) {
	if !strings.Contains(s, "://") {
		s = "https://" + s
	}
	u, err := url.Parse(s)
	if err != nil {
		return Reference{}, fmt.Errorf("%w: %v", ErrInvalidReference, err)
	}

	host := strings.ToLower(u.Hostname())
	for _, p := range []string{"www.", "m.", "music."} {
		host = strings.TrimPrefix(host, p)
	}
	if host != "youtube.com" {
		return Reference{}, fmt.Errorf("%w: not a youtube.com URL: %q", ErrInvalidReference, s)
	}

	var segs []string
	for _, p := range strings.Split(u.Path, "/") {
		if p != "" {
			segs = append(segs, p)
		}
	}
	if len(segs) == 0 {
		return Reference{}, fmt.Errorf("%w: no channel in %q", ErrInvalidReference, s)
	}

	head := segs[0]
	switch {
	case strings.HasPrefix(head, "@") && len(head) > 1:
		return Reference{Kind: RefHandle, Value: head[1:]}, nil
	case head == "channel" || head == "c" || head == "user":
		if len(segs) < 2 {
			return Reference{}, fmt.Errorf("%w: missing name after /%s/", ErrInvalidReference, head)
		}
		name := segs[1]
		switch head {
		case "channel":
			if !IsChannelID(name) {
				return Reference{}, fmt.Errorf("%w: malformed channel ID %q", ErrInvalidReference, name)
			}
			return Reference{Kind: RefChannelID, Value: name}, nil
		case "c":
			return Reference{Kind: RefCustom, Value: name}, nil
		default:
			return Reference{Kind: RefUser, Value: name}, nil
		}
	case head == "watch" || head == "shorts" || head == "playlist" || head == "results" || channelTabs[head]:
		return Reference{}, fmt.Errorf("%w: %q is not a channel URL", ErrInvalidReference, s)
	}
	return Reference{Kind: RefName, Value: head}, nil
}
