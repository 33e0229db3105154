package youtube

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	ytapi "google.golang.org/api/youtube/v3"

	"ytscrape/internal/retry"
)

const (
	// defaultDailyQuota is the Data API's default allowance per project.
	defaultDailyQuota = 10000
	// maxIDsPerCall is the Data API ceiling for ids in one videos.list call.
	maxIDsPerCall = 50
	// costList is the quota cost of channels/playlistItems/videos.list.
	costList = 1
	// costSearch is the quota cost of search.list.
	costSearch = 100
)

// errPlaylistNotFound is what the API answers for the uploads playlist of
// a channel that never uploaded.
var errPlaylistNotFound = errors.New("youtube: playlist not found")

// quotaReasons are googleapi error reasons meaning the key cannot be used.
var quotaReasons = map[string]bool{
	"quotaExceeded":         true,
	"dailyLimitExceeded":    true,
	"rateLimitExceeded":     true,
	"userRateLimitExceeded": true,
	"forbidden":             true,
	"keyInvalid":            true,
	"keyExpired":            true,
	"accessNotConfigured":   true,
	"ipRefererBlocked":      true,
}

// DataAPIConfig configures the structured path.
type DataAPIConfig struct {
	APIKey string
	// QuotaReserve is the estimated quota left untouched. Calls that would
	// dip into it fail with a QuotaError instead.
	QuotaReserve int
	// DailyQuota is the project's daily allowance. Default: 10000.
	DailyQuota int
	Retry      retry.Config
	// Options are passed to the generated client, e.g. a test endpoint.
	Options []option.ClientOption
	Logger  *slog.Logger
}

// DataAPI uses the YouTube Data API v3. It implements both ChannelLookup
// and Enumerator.
type DataAPI struct {
	svc   *ytapi.Service
	retry retry.Config
	log   *slog.Logger

	mu        sync.Mutex
	daily     int
	reserve   int
	remaining int
	resetAt   time.Time
}

// NewDataAPI creates a Data API client.
func NewDataAPI(ctx context.Context, cfg DataAPIConfig) (*DataAPI, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("youtube: api key required")
	}
	if cfg.DailyQuota <= 0 {
		cfg.DailyQuota = defaultDailyQuota
	}
	log := cfg.Logger
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}

	opts := append([]option.ClientOption{option.WithAPIKey(cfg.APIKey)}, cfg.Options...)
	svc, err := ytapi.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create youtube service: %w", err)
	}

	return &DataAPI{
		svc:       svc,
		retry:     cfg.Retry,
		log:       log,
		daily:     cfg.DailyQuota,
		reserve:   cfg.QuotaReserve,
		remaining: cfg.DailyQuota,
		resetAt:   nextQuotaReset(time.Now()),
	}, nil
}

// nextQuotaReset returns the next midnight Pacific time, when the Data API
// quota resets.
func nextQuotaReset(now time.Time) time.Time {
	loc, err := time.LoadLocation("America/Los_Angeles")
	if err != nil {
		loc = time.FixedZone("PT", -8*3600)
	}
	t := now.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day()+1, 0, 0, 0, 0, loc)
}

// Name implements Enumerator.
func (a *DataAPI) Name() string { return "api" }

// RemainingQuota returns the estimated quota left today.
func (a *DataAPI) RemainingQuota() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.remaining
}

// spend deducts units from the estimate, refusing when the reserve would be
// touched.
func (a *DataAPI) spend(units int) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if now := time.Now(); now.After(a.resetAt) {
		a.remaining = a.daily
		a.resetAt = nextQuotaReset(now)
		a.log.Info("api quota estimate reset")
	}
	if a.remaining-units < a.reserve {
		return &QuotaError{Reason: "estimate",
			Err: fmt.Errorf("%d units left, %d reserved", a.remaining, a.reserve)}
	}
	a.remaining -= units
	return nil
}

// call runs one API request with quota accounting and retries.
func (a *DataAPI) call(ctx context.Context, op string, cost int, fn func(context.Context) error) error {
	return retry.Do(ctx, a.retry, IsTransient, func(ctx context.Context) error {
		if err := a.spend(cost); err != nil {
			return err
		}
		return classifyAPIError(op, fn(ctx))
	})
}

// classifyAPIError maps googleapi errors onto the error taxonomy.
func classifyAPIError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || retry.IsPermanent(err) {
		return err
	}

	var gerr *googleapi.Error
	if !errors.As(err, &gerr) {
		return &TransientFetchError{Op: op, Err: err}
	}

	reason := ""
	if len(gerr.Errors) > 0 {
		reason = gerr.Errors[0].Reason
	}
	switch {
	case gerr.Code == 401:
		return &QuotaError{Reason: coalesce(reason, "unauthorized"), Err: gerr}
	case gerr.Code == 403 && (quotaReasons[reason] || reason == ""):
		return &QuotaError{Reason: coalesce(reason, "forbidden"), Err: gerr}
	case gerr.Code == 400 && (reason == "keyInvalid" || strings.Contains(gerr.Message, "API key")):
		return &QuotaError{Reason: "keyInvalid", Err: gerr}
	case gerr.Code == 404 && reason == "playlistNotFound":
		return fmt.Errorf("%s: %w", op, errPlaylistNotFound)
	case gerr.Code == 404:
		return fmt.Errorf("%s: %w: %s", op, ErrChannelNotFound, gerr.Message)
	case gerr.Code == 429 || gerr.Code >= 500:
		return &TransientFetchError{Op: op, Err: gerr}
	}
	return fmt.Errorf("%s: %w", op, gerr)
}

// ByHandle implements ChannelLookup with channels.list forHandle.
func (a *DataAPI) ByHandle(ctx context.Context, handle string) (Channel, error) {
	return a.lookupChannel(ctx, "channels.list forHandle", func(c *ytapi.ChannelsListCall) *ytapi.ChannelsListCall {
		return c.ForHandle(strings.TrimPrefix(handle, "@"))
	})
}

// ByUsername implements ChannelLookup with channels.list forUsername.
func (a *DataAPI) ByUsername(ctx context.Context, name string) (Channel, error) {
	return a.lookupChannel(ctx, "channels.list forUsername", func(c *ytapi.ChannelsListCall) *ytapi.ChannelsListCall {
		return c.ForUsername(name)
	})
}

func (a *DataAPI) lookupChannel(ctx context.Context, op string, by func(*ytapi.ChannelsListCall) *ytapi.ChannelsListCall) (Channel, error) {
	var ch Channel
	err := a.call(ctx, op, costList, func(ctx context.Context) error {
		resp, err := by(a.svc.Channels.List([]string{"snippet"})).Context(ctx).Do()
		if err != nil {
			return err
		}
		if len(resp.Items) == 0 {
			return retry.Permanent(ErrChannelNotFound)
		}
		item := resp.Items[0]
		ch = Channel{ID: item.Id}
		if item.Snippet != nil {
			ch.Title = item.Snippet.Title
		}
		return nil
	})
	return ch, err
}

// ByCustomURL implements ChannelLookup. Legacy custom URLs have no direct
// lookup, so candidates come from search.list and only a channel whose
// customUrl matches name exactly is accepted.
func (a *DataAPI) ByCustomURL(ctx context.Context, name string) (Channel, error) {
	var ids []string
	err := a.call(ctx, "search.list", costSearch, func(ctx context.Context) error {
		resp, err := a.svc.Search.List([]string{"snippet"}).
			Q(name).Type("channel").MaxResults(5).Context(ctx).Do()
		if err != nil {
			return err
		}
		ids = ids[:0]
		for _, item := range resp.Items {
			if item.Snippet != nil && item.Snippet.ChannelId != "" {
				ids = append(ids, item.Snippet.ChannelId)
			}
		}
		return nil
	})
	if err != nil {
		return Channel{}, err
	}
	if len(ids) == 0 {
		return Channel{}, ErrChannelNotFound
	}

	var found Channel
	err = a.call(ctx, "channels.list id", costList, func(ctx context.Context) error {
		resp, err := a.svc.Channels.List([]string{"snippet"}).Id(ids...).Context(ctx).Do()
		if err != nil {
			return err
		}
		want := strings.ToLower(strings.TrimPrefix(name, "@"))
		for _, item := range resp.Items {
			if item.Snippet == nil {
				continue
			}
			custom := strings.ToLower(strings.TrimPrefix(item.Snippet.CustomUrl, "@"))
			if custom == want {
				found = Channel{ID: item.Id, Title: item.Snippet.Title}
				return nil
			}
		}
		return retry.Permanent(ErrChannelNotFound)
	})
	return found, err
}

// uploadsPlaylist returns the channel's uploads playlist and its title.
func (a *DataAPI) uploadsPlaylist(ctx context.Context, channelID string) (string, string, error) {
	var playlistID, title string
	err := a.call(ctx, "channels.list contentDetails", costList, func(ctx context.Context) error {
		resp, err := a.svc.Channels.List([]string{"contentDetails", "snippet"}).
			Id(channelID).Context(ctx).Do()
		if err != nil {
			return err
		}
		if len(resp.Items) == 0 {
			return retry.Permanent(ErrChannelNotFound)
		}
		item := resp.Items[0]
		if item.ContentDetails == nil || item.ContentDetails.RelatedPlaylists == nil ||
			item.ContentDetails.RelatedPlaylists.Uploads == "" {
			return retry.Permanent(fmt.Errorf("channel %s has no uploads playlist", channelID))
		}
		playlistID = item.ContentDetails.RelatedPlaylists.Uploads
		if item.Snippet != nil {
			title = item.Snippet.Title
		}
		return nil
	})
	return playlistID, title, err
}

// Enumerate implements Enumerator. It first pages through the uploads
// playlist collecting IDs, then fetches details in batches of
// maxIDsPerCall. Uploads missing from a detail response are skipped.
func (a *DataAPI) Enumerate(ctx context.Context, ch Channel, h Hooks) error {
	wrap := func(err error) error {
		if err == nil || IsQuotaError(err) || errors.Is(err, context.Canceled) {
			return err
		}
		return &ListerError{Source: a.Name(), Channel: ch.ID, Err: err}
	}

	uploads, title, err := a.uploadsPlaylist(ctx, ch.ID)
	if err != nil {
		return wrap(err)
	}
	if ch.Title == "" {
		ch.Title = title
	}
	h.channel(ch)

	ids, err := a.listUploads(ctx, uploads, h)
	if err != nil {
		return wrap(err)
	}

	for _, batch := range chunk(ids, maxIDsPerCall) {
		if err := a.detailBatch(ctx, ch, batch, h); err != nil {
			return wrap(err)
		}
	}
	return nil
}

// listUploads collects every video ID in the uploads playlist, reporting
// the running count through h.Discovered.
func (a *DataAPI) listUploads(ctx context.Context, playlistID string, h Hooks) ([]string, error) {
	var ids []string
	seen := make(map[string]bool)
	token := ""
	for {
		var next string
		err := a.call(ctx, "playlistItems.list", costList, func(ctx context.Context) error {
			resp, err := a.svc.PlaylistItems.List([]string{"contentDetails"}).
				PlaylistId(playlistID).MaxResults(maxIDsPerCall).PageToken(token).Context(ctx).Do()
			if err != nil {
				return err
			}
			for _, item := range resp.Items {
				if item.ContentDetails == nil || item.ContentDetails.VideoId == "" {
					continue
				}
				id := item.ContentDetails.VideoId
				if seen[id] || h.seen(id) {
					continue
				}
				seen[id] = true
				ids = append(ids, id)
			}
			next = resp.NextPageToken
			return nil
		})
		if errors.Is(err, errPlaylistNotFound) && token == "" {
			h.discovered(0)
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		h.discovered(len(ids))
		a.log.Debug("listed uploads page", slog.String("playlist", playlistID), slog.Int("total", len(ids)))
		if next == "" {
			return ids, nil
		}
		token = next
	}
}

func (a *DataAPI) detailBatch(ctx context.Context, ch Channel, batch []string, h Hooks) error {
	var items []*ytapi.Video
	err := a.call(ctx, "videos.list", costList, func(ctx context.Context) error {
		resp, err := a.svc.Videos.List([]string{"snippet", "contentDetails", "liveStreamingDetails"}).
			Id(batch...).Context(ctx).Do()
		if err != nil {
			return err
		}
		items = resp.Items
		return nil
	})
	if err != nil {
		return err
	}

	byID := make(map[string]*ytapi.Video, len(items))
	for _, it := range items {
		byID[it.Id] = it
	}
	for _, id := range batch {
		item, ok := byID[id]
		if !ok {
			h.skipped(id, &EnumerationItemError{VideoID: id, Err: ErrVideoUnavailable})
			continue
		}
		if err := h.video(videoFromAPI(item, ch)); err != nil {
			return err
		}
	}
	return nil
}

// videoFromAPI converts a videos.list item.
func videoFromAPI(item *ytapi.Video, ch Channel) *Video {
	v := &Video{ID: item.Id, ChannelID: ch.ID, ChannelName: ch.Title}

	if s := item.Snippet; s != nil {
		v.Title = s.Title
		v.ChannelID = coalesce(s.ChannelId, ch.ID)
		v.ChannelName = coalesce(s.ChannelTitle, ch.Title)
		if t, err := time.Parse(time.RFC3339, s.PublishedAt); err == nil {
			v.Published = t
		}
		if th := bestAPIThumbnail(s.Thumbnails); th != nil {
			v.Thumbnail = th.Url
			v.Width, v.Height = int(th.Width), int(th.Height)
		}
		switch s.LiveBroadcastContent {
		case "live", "upcoming":
			v.IsLive = true
		}
	}

	if cd := item.ContentDetails; cd != nil && cd.Duration != "" {
		if d, err := ParseISODuration(cd.Duration); err == nil {
			v.Duration = d
		}
	}

	if ls := item.LiveStreamingDetails; ls != nil {
		if ls.ActualEndTime != "" {
			v.WasLive = true
			v.IsLive = false
		} else {
			v.IsLive = true
		}
	}
	return v
}

// bestAPIThumbnail prefers the largest rendition.
func bestAPIThumbnail(t *ytapi.ThumbnailDetails) *ytapi.Thumbnail {
	if t == nil {
		return nil
	}
	for _, th := range []*ytapi.Thumbnail{t.Maxres, t.Standard, t.High, t.Medium, t.Default} {
		if th != nil && th.Url != "" {
			return th
		}
	}
	return nil
}

// chunk splits ids into consecutive slices of at most size elements.
func chunk(ids []string, size int) [][]string {
	var out [][]string
	for len(ids) > size {
		out = append(out, ids[:size])
		ids = ids[size:]
	}
	if len(ids) > 0 {
		out = append(out, ids)
	}
	return out
}

// coalesce returns the first non-empty string.
func coalesce(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
