package youtube

import (
	"testing"
	"time"
)

func TestParseYtdlpInfoDetail(t *testing.T) {
	info, err := parseYtdlpInfo([]byte(sampleVideoDetail))
	if err != nil {
		t.Fatalf("parseYtdlpInfo() error = %v", err)
	}

	v := info.video(Channel{})
	if v.ID != "dQw4w9WgXcQ" {
		t.Errorf("ID = %q, want %q", v.ID, "dQw4w9WgXcQ")
	}
	if v.Duration != 212*time.Second {
		t.Errorf("Duration = %v, want %v", v.Duration, 212*time.Second)
	}
	if want := time.Unix(1577836800, 0).UTC(); !v.Published.Equal(want) {
		t.Errorf("Published = %v, want %v", v.Published, want)
	}
	if v.ChannelName != "Test Channel" || v.ChannelID != "UCuAXFkgsw1L7xaCfnd5JJOw" {
		t.Errorf("channel = %q/%q", v.ChannelName, v.ChannelID)
	}
	if v.Thumbnail != "https://i.ytimg.com/vi/dQw4w9WgXcQ/maxresdefault.jpg" {
		t.Errorf("Thumbnail = %q, want maxres", v.Thumbnail)
	}
	if v.Width != 1920 || v.Height != 1080 {
		t.Errorf("dimensions = %dx%d, want 1920x1080", v.Width, v.Height)
	}
	if v.IsLive || !v.WasLive {
		t.Errorf("IsLive = %v, WasLive = %v, want false, true", v.IsLive, v.WasLive)
	}
}

func TestParseYtdlpInfoInvalid(t *testing.T) {
	if _, err := parseYtdlpInfo([]byte("not json")); err == nil {
		t.Error("parseYtdlpInfo() error = nil, want error")
	}
}

func TestYtdlpInfoPublished(t *testing.T) {
	tests := []struct {
		name string
		info ytdlpInfo
		want time.Time
	}{
		{"timestamp wins", ytdlpInfo{Timestamp: 100, UploadDate: "20200101"}, time.Unix(100, 0).UTC()},
		{"release timestamp", ytdlpInfo{ReleaseTimestamp: 200}, time.Unix(200, 0).UTC()},
		{"upload date", ytdlpInfo{UploadDate: "20200102"}, time.Date(2020, 1, 2, 0, 0, 0, 0, time.UTC)},
		{"bad upload date", ytdlpInfo{UploadDate: "2020-01-02"}, time.Time{}},
		{"nothing", ytdlpInfo{}, time.Time{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.info.published(); !got.Equal(tt.want) {
				t.Errorf("published() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestYtdlpInfoLiveState(t *testing.T) {
	tests := []struct {
		info     ytdlpInfo
		wantLive bool
		wantWas  bool
	}{
		{ytdlpInfo{LiveStatus: "is_live"}, true, false},
		{ytdlpInfo{LiveStatus: "is_upcoming"}, true, false},
		{ytdlpInfo{LiveStatus: "was_live"}, false, true},
		{ytdlpInfo{LiveStatus: "post_live"}, false, true},
		{ytdlpInfo{LiveStatus: "not_live", IsLive: true}, false, false},
		{ytdlpInfo{IsLive: true}, true, false},
		{ytdlpInfo{WasLive: true}, false, true},
	}

	for _, tt := range tests {
		live, was := tt.info.liveState()
		if live != tt.wantLive || was != tt.wantWas {
			t.Errorf("liveState(%+v) = %v, %v, want %v, %v", tt.info, live, was, tt.wantLive, tt.wantWas)
		}
	}
}

func TestYtdlpInfoVideoFallsBackToChannel(t *testing.T) {
	info := ytdlpInfo{
		ID:         "abc",
		Thumbnails: []ytdlpThumbnail{{URL: "https://i.ytimg.com/vi/abc/oar2.jpg", Width: 1080, Height: 1920}},
	}
	v := info.video(Channel{ID: "UCuAXFkgsw1L7xaCfnd5JJOw", Title: "Fallback"})

	if v.ChannelID != "UCuAXFkgsw1L7xaCfnd5JJOw" || v.ChannelName != "Fallback" {
		t.Errorf("channel = %q/%q, want fallback values", v.ChannelID, v.ChannelName)
	}
	if v.Width != 1080 || v.Height != 1920 {
		t.Errorf("dimensions = %dx%d, want thumbnail's 1080x1920", v.Width, v.Height)
	}
	if v.Duration != 0 {
		t.Errorf("Duration = %v, want 0 (unknown)", v.Duration)
	}
}
