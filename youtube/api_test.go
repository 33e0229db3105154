package youtube

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"google.golang.org/api/option"
)

const testUploadsID = "UUuAXFkgsw1L7xaCfnd5JJOw"

// fakeDataAPI serves the handful of Data API endpoints the enumerator uses.
type fakeDataAPI struct {
	mu          sync.Mutex
	calls       map[string]int
	uploads     [][]string // playlistItems pages
	videos      map[string]map[string]any
	failVideos  int // videos.list calls answered with 500 first
	emptyList   bool
	quotaOnList bool
}

func newFakeDataAPI() *fakeDataAPI {
	return &fakeDataAPI{calls: make(map[string]int), videos: make(map[string]map[string]any)}
}

func (f *fakeDataAPI) count(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[name]
}

func apiError(w http.ResponseWriter, code int, reason string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"code":    code,
			"message": reason,
			"errors":  []map[string]any{{"reason": reason, "domain": "youtube"}},
		},
	})
}

func queryList(r *http.Request, key string) []string {
	var out []string
	for _, v := range r.URL.Query()[key] {
		out = append(out, strings.Split(v, ",")...)
	}
	return out
}

func (f *fakeDataAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Path[strings.LastIndex(r.URL.Path, "/")+1:]
	f.mu.Lock()
	f.calls[name]++
	n := f.calls[name]
	f.mu.Unlock()

	q := r.URL.Query()
	var body any
	switch name {
	case "channels":
		switch {
		case q.Get("forHandle") == "foo":
			body = map[string]any{"items": []any{map[string]any{
				"id": testChannelID, "snippet": map[string]any{"title": "Foo"},
			}}}
		case q.Get("forHandle") != "" || q.Get("forUsername") != "":
			body = map[string]any{"items": []any{}}
		default:
			var items []any
			for _, id := range queryList(r, "id") {
				switch id {
				case testChannelID:
					items = append(items, map[string]any{
						"id":      testChannelID,
						"snippet": map[string]any{"title": "Test Channel", "customUrl": "@legacyname"},
						"contentDetails": map[string]any{
							"relatedPlaylists": map[string]any{"uploads": testUploadsID},
						},
					})
				case "UC0123456789abcdefghijkl":
					items = append(items, map[string]any{
						"id":      id,
						"snippet": map[string]any{"title": "Other", "customUrl": "@other"},
					})
				}
			}
			body = map[string]any{"items": items}
		}
	case "search":
		body = map[string]any{"items": []any{
			map[string]any{"snippet": map[string]any{"channelId": "UC0123456789abcdefghijkl"}},
			map[string]any{"snippet": map[string]any{"channelId": testChannelID}},
		}}
	case "playlistItems":
		if f.quotaOnList {
			apiError(w, http.StatusForbidden, "quotaExceeded")
			return
		}
		if f.emptyList {
			apiError(w, http.StatusNotFound, "playlistNotFound")
			return
		}
		page := 0
		if tok := q.Get("pageToken"); tok != "" {
			page = int(tok[len(tok)-1] - '0')
		}
		var items []any
		for _, id := range f.uploads[page] {
			items = append(items, map[string]any{"contentDetails": map[string]any{"videoId": id}})
		}
		resp := map[string]any{"items": items}
		if page+1 < len(f.uploads) {
			resp["nextPageToken"] = "page" + string(rune('0'+page+1))
		}
		body = resp
	case "videos":
		if n <= f.failVideos {
			apiError(w, http.StatusInternalServerError, "backendError")
			return
		}
		var items []any
		for _, id := range queryList(r, "id") {
			if v, ok := f.videos[id]; ok {
				items = append(items, v)
			}
		}
		body = map[string]any{"items": items}
	default:
		http.NotFound(w, r)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(body)
}

func apiVideo(id, title, duration, published string) map[string]any {
	return map[string]any{
		"id": id,
		"snippet": map[string]any{
			"title":                title,
			"channelId":            testChannelID,
			"channelTitle":         "Test Channel",
			"publishedAt":          published,
			"liveBroadcastContent": "none",
			"thumbnails": map[string]any{
				"high":   map[string]any{"url": "https://i.ytimg.com/vi/" + id + "/hqdefault.jpg", "width": 480, "height": 360},
				"maxres": map[string]any{"url": "https://i.ytimg.com/vi/" + id + "/maxresdefault.jpg", "width": 1280, "height": 720},
			},
		},
		"contentDetails": map[string]any{"duration": duration},
	}
}

func newTestDataAPI(t *testing.T, fake *fakeDataAPI, cfg DataAPIConfig) *DataAPI {
	t.Helper()
	server := httptest.NewServer(fake)
	t.Cleanup(server.Close)

	cfg.APIKey = "test-key"
	cfg.Options = append(cfg.Options, option.WithEndpoint(server.URL+"/"), option.WithHTTPClient(server.Client()))
	api, err := NewDataAPI(context.Background(), cfg)
	if err != nil {
		t.Fatalf("NewDataAPI() error = %v", err)
	}
	return api
}

func TestDataAPIEnumerate(t *testing.T) {
	fake := newFakeDataAPI()
	fake.uploads = [][]string{{"a", "b"}, {"c", "gone", "a"}}
	fake.videos["a"] = apiVideo("a", "Alpha", "PT10M", "2024-01-02T03:04:05Z")
	fake.videos["b"] = apiVideo("b", "Beta #shorts", "PT20S", "2024-01-03T00:00:00Z")
	live := apiVideo("c", "Live now", "P0D", "2024-01-04T00:00:00Z")
	live["snippet"].(map[string]any)["liveBroadcastContent"] = "live"
	live["liveStreamingDetails"] = map[string]any{"actualStartTime": "2024-01-04T00:00:00Z"}
	fake.videos["c"] = live

	api := newTestDataAPI(t, fake, DataAPIConfig{})
	rec := &recorder{}

	if err := api.Enumerate(context.Background(), Channel{ID: testChannelID}, rec.hooks()); err != nil {
		t.Fatalf("Enumerate() error = %v", err)
	}

	if !reflect.DeepEqual(rec.discovered, []int{2, 4}) {
		t.Errorf("discovered = %v, want [2 4]", rec.discovered)
	}
	if !reflect.DeepEqual(rec.skipped, []string{"gone"}) {
		t.Errorf("skipped = %v, want [gone]", rec.skipped)
	}
	if rec.channel.Title != "Test Channel" {
		t.Errorf("channel title = %q", rec.channel.Title)
	}
	if len(rec.videos) != 3 {
		t.Fatalf("videos = %d, want 3", len(rec.videos))
	}

	a := rec.videos[0]
	if a.ID != "a" || a.Title != "Alpha" || a.Duration != 10*time.Minute {
		t.Errorf("video a = %+v", a)
	}
	if want := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC); !a.Published.Equal(want) {
		t.Errorf("Published = %v, want %v", a.Published, want)
	}
	if a.Thumbnail != "https://i.ytimg.com/vi/a/maxresdefault.jpg" || a.Width != 1280 || a.Height != 720 {
		t.Errorf("thumbnail = %q %dx%d", a.Thumbnail, a.Width, a.Height)
	}
	if c := rec.videos[2]; !c.IsLive || c.WasLive {
		t.Errorf("video c IsLive = %v, WasLive = %v, want true, false", c.IsLive, c.WasLive)
	}
	if got := fake.count("videos"); got != 1 {
		t.Errorf("videos.list calls = %d, want 1", got)
	}
	if got := api.RemainingQuota(); got != defaultDailyQuota-4 {
		t.Errorf("RemainingQuota() = %d, want %d", got, defaultDailyQuota-4)
	}
}

func TestDataAPIEnumerateBatchesDetails(t *testing.T) {
	fake := newFakeDataAPI()
	var ids []string
	for i := 0; i < 120; i++ {
		id := "v" + strings.Repeat("x", i%3) + string(rune('A'+i%26)) + string(rune('a'+i/26))
		ids = append(ids, id)
		fake.videos[id] = apiVideo(id, id, "PT1M", "2024-01-01T00:00:00Z")
	}
	fake.uploads = [][]string{ids[:50], ids[50:100], ids[100:]}

	api := newTestDataAPI(t, fake, DataAPIConfig{})
	rec := &recorder{}
	if err := api.Enumerate(context.Background(), Channel{ID: testChannelID}, rec.hooks()); err != nil {
		t.Fatalf("Enumerate() error = %v", err)
	}
	if len(rec.videos) != 120 {
		t.Errorf("videos = %d, want 120", len(rec.videos))
	}
	if got := fake.count("videos"); got != 3 {
		t.Errorf("videos.list calls = %d, want 3", got)
	}
}

func TestDataAPIEnumerateRetriesServerErrors(t *testing.T) {
	fake := newFakeDataAPI()
	fake.uploads = [][]string{{"a"}}
	fake.videos["a"] = apiVideo("a", "Alpha", "PT1M", "2024-01-01T00:00:00Z")
	fake.failVideos = 1

	api := newTestDataAPI(t, fake, DataAPIConfig{Retry: fastRetry()})
	rec := &recorder{}
	if err := api.Enumerate(context.Background(), Channel{ID: testChannelID}, rec.hooks()); err != nil {
		t.Fatalf("Enumerate() error = %v", err)
	}
	if len(rec.videos) != 1 {
		t.Errorf("videos = %d, want 1", len(rec.videos))
	}
	if got := fake.count("videos"); got != 2 {
		t.Errorf("videos.list calls = %d, want 2", got)
	}
}

func TestDataAPIEnumerateQuotaExceeded(t *testing.T) {
	fake := newFakeDataAPI()
	fake.quotaOnList = true

	api := newTestDataAPI(t, fake, DataAPIConfig{Retry: fastRetry()})
	err := api.Enumerate(context.Background(), Channel{ID: testChannelID}, Hooks{})

	var qe *QuotaError
	if !errors.As(err, &qe) {
		t.Fatalf("Enumerate() error = %v, want *QuotaError", err)
	}
	if qe.Reason != "quotaExceeded" {
		t.Errorf("Reason = %q, want quotaExceeded", qe.Reason)
	}
	if got := fake.count("playlistItems"); got != 1 {
		t.Errorf("playlistItems.list calls = %d, want 1 (no retry)", got)
	}
}

func TestDataAPIQuotaEstimate(t *testing.T) {
	fake := newFakeDataAPI()
	fake.uploads = [][]string{{"a"}, {"b"}}
	fake.videos["a"] = apiVideo("a", "Alpha", "PT1M", "2024-01-01T00:00:00Z")

	api := newTestDataAPI(t, fake, DataAPIConfig{DailyQuota: 103, QuotaReserve: 100})
	err := api.Enumerate(context.Background(), Channel{ID: testChannelID}, Hooks{})

	var qe *QuotaError
	if !errors.As(err, &qe) || qe.Reason != "estimate" {
		t.Fatalf("Enumerate() error = %v, want estimate QuotaError", err)
	}
	if got := fake.count("videos"); got != 0 {
		t.Errorf("videos.list calls = %d, want 0", got)
	}
}

func TestDataAPIEnumerateEmptyChannel(t *testing.T) {
	fake := newFakeDataAPI()
	fake.emptyList = true

	api := newTestDataAPI(t, fake, DataAPIConfig{})
	rec := &recorder{}
	if err := api.Enumerate(context.Background(), Channel{ID: testChannelID}, rec.hooks()); err != nil {
		t.Fatalf("Enumerate() error = %v", err)
	}
	if len(rec.videos) != 0 || !reflect.DeepEqual(rec.discovered, []int{0}) {
		t.Errorf("videos = %d, discovered = %v; want 0, [0]", len(rec.videos), rec.discovered)
	}
}

func TestDataAPIEnumerateUnknownChannel(t *testing.T) {
	api := newTestDataAPI(t, newFakeDataAPI(), DataAPIConfig{})

	err := api.Enumerate(context.Background(), Channel{ID: "UC9999999999999999999999"}, Hooks{})
	var le *ListerError
	if !errors.As(err, &le) {
		t.Fatalf("Enumerate() error = %v, want *ListerError", err)
	}
	if !errors.Is(err, ErrChannelNotFound) {
		t.Error("errors.Is(err, ErrChannelNotFound) = false, want true")
	}
}

func TestDataAPILookups(t *testing.T) {
	api := newTestDataAPI(t, newFakeDataAPI(), DataAPIConfig{})
	ctx := context.Background()

	ch, err := api.ByHandle(ctx, "@foo")
	if err != nil || ch.ID != testChannelID || ch.Title != "Foo" {
		t.Errorf("ByHandle() = %+v, %v", ch, err)
	}
	if _, err := api.ByUsername(ctx, "nobody"); !errors.Is(err, ErrChannelNotFound) {
		t.Errorf("ByUsername() error = %v, want ErrChannelNotFound", err)
	}

	ch, err = api.ByCustomURL(ctx, "LegacyName")
	if err != nil || ch.ID != testChannelID {
		t.Errorf("ByCustomURL() = %+v, %v", ch, err)
	}
	if _, err := api.ByCustomURL(ctx, "unrelated"); !errors.Is(err, ErrChannelNotFound) {
		t.Errorf("ByCustomURL(unrelated) error = %v, want ErrChannelNotFound", err)
	}
}

func TestClassifyAPIError(t *testing.T) {
	if err := classifyAPIError("op", nil); err != nil {
		t.Errorf("classifyAPIError(nil) = %v", err)
	}
	if err := classifyAPIError("op", context.Canceled); !errors.Is(err, context.Canceled) {
		t.Errorf("classifyAPIError(canceled) = %v", err)
	}
	if err := classifyAPIError("op", errors.New("connection reset")); !IsTransient(err) {
		t.Errorf("classifyAPIError(network) = %v, want transient", err)
	}
}

func TestChunk(t *testing.T) {
	ids := []string{"a", "b", "c", "d", "e"}
	got := chunk(ids, 2)
	want := [][]string{{"a", "b"}, {"c", "d"}, {"e"}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("chunk() = %v, want %v", got, want)
	}
	if got := chunk(nil, 2); len(got) != 0 {
		t.Errorf("chunk(nil) = %v, want empty", got)
	}
}
