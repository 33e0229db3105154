package youtube

import (
	"encoding/json"
	"fmt"
	"math"
	"time"
)

// ytdlpInfo is the subset of yt-dlp's info JSON (-J) used here. Listing
// output (--flat-playlist) carries the same fields on each entry, though
// most are empty there.
type ytdlpInfo struct {
	ID               string           `json:"id"`
	Type             string           `json:"_type"`
	Title            string           `json:"title"`
	Duration         float64          `json:"duration"`
	Timestamp        int64            `json:"timestamp"`
	ReleaseTimestamp int64            `json:"release_timestamp"`
	UploadDate       string           `json:"upload_date"`
	Thumbnail        string           `json:"thumbnail"`
	Thumbnails       []ytdlpThumbnail `json:"thumbnails"`
	Width            int              `json:"width"`
	Height           int              `json:"height"`
	LiveStatus       string           `json:"live_status"`
	IsLive           bool             `json:"is_live"`
	WasLive          bool             `json:"was_live"`
	Channel          string           `json:"channel"`
	ChannelID        string           `json:"channel_id"`
	Uploader         string           `json:"uploader"`
	UploaderID       string           `json:"uploader_id"`
	WebpageURL       string           `json:"webpage_url"`
	Entries          []ytdlpInfo      `json:"entries"`
}

type ytdlpThumbnail struct {
	URL    string `json:"url"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

func parseYtdlpInfo(data []byte) (*ytdlpInfo, error) {
	var info ytdlpInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, fmt.Errorf("parse yt-dlp output: %w", err)
	}
	return &info, nil
}

// published prefers the exact timestamp over the day-granular upload date.
func (i *ytdlpInfo) published() time.Time {
	if i.Timestamp > 0 {
		return time.Unix(i.Timestamp, 0).UTC()
	}
	if i.ReleaseTimestamp > 0 {
		return time.Unix(i.ReleaseTimestamp, 0).UTC()
	}
	if i.UploadDate != "" {
		if t, err := time.Parse("20060102", i.UploadDate); err == nil {
			return t
		}
	}
	return time.Time{}
}

// liveState maps live_status, falling back to the older boolean fields.
func (i *ytdlpInfo) liveState() (isLive, wasLive bool) {
	switch i.LiveStatus {
	case "is_live", "is_upcoming":
		return true, false
	case "was_live", "post_live":
		return false, true
	case "not_live":
		return false, false
	}
	return i.IsLive, i.WasLive
}

// bestThumbnail returns the largest listed thumbnail, or the plain
// thumbnail field when no sizes are known.
func (i *ytdlpInfo) bestThumbnail() ytdlpThumbnail {
	var best ytdlpThumbnail
	for _, t := range i.Thumbnails {
		if t.URL != "" && t.Width*t.Height > best.Width*best.Height {
			best = t
		}
	}
	if best.URL == "" {
		best.URL = i.Thumbnail
	}
	return best
}

// video converts the info into a Video, using ch for missing channel data.
func (i *ytdlpInfo) video(ch Channel) *Video {
	v := &Video{
		ID:          i.ID,
		Title:       i.Title,
		ChannelID:   coalesce(i.ChannelID, ch.ID),
		ChannelName: coalesce(i.Channel, i.Uploader, ch.Title),
		Duration:    time.Duration(math.Round(i.Duration)) * time.Second,
		Published:   i.published(),
		Width:       i.Width,
		Height:      i.Height,
	}
	v.IsLive, v.WasLive = i.liveState()

	th := i.bestThumbnail()
	v.Thumbnail = th.URL
	if v.Width == 0 || v.Height == 0 {
		v.Width, v.Height = th.Width, th.Height
	}
	return v
}
