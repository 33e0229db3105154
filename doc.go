// Package ytscrape lists a YouTube channel's uploads, tells shorts from
// regular videos, filters them by type and recency, and downloads the
// selection as mp3 or mp4.
//
// Overview
//
// The work is split across sub-packages:
//
//   - youtube: channel resolution, enumeration through the Data API or
//     yt-dlp, short-form classification and filtering
//   - scrape: background scrape runs with pollable progress
//   - download: sequential downloads into per-channel directories
//   - progress: snapshot trackers shared by scrape and download
//   - server: the JSON API used by the web frontend
//   - config: configuration loading
//   - http: rate-limited HTTP client for page lookups and probes
//
// Enumeration
//
// With a Data API key, uploads are read from the channel's uploads playlist
// and detailed in batches of 50. Without one, or once the key's quota runs
// out, yt-dlp lists the channel page by page, capped at 360 items.
//
//	x := youtube.NewYtdlpExtractor(youtube.YtdlpConfig{})
//	enum := youtube.NewFallbackEnumerator(x, youtube.FallbackConfig{})
//	err := enum.Enumerate(ctx, ch, youtube.Hooks{
//		Video: func(v *youtube.Video) error {
//			fmt.Println(v.ID, v.Title)
//			return nil
//		},
//	})
//
// Configuration
//
// Settings load from, highest priority first:
//
//  1. Environment variables (YOUTUBE_API_KEY, YTSCRAPE_*)
//  2. A .env file in the working directory
//  3. ytscrape.yaml, ytscrape.yml or ytscrape.json in . or ~/.config/ytscrape
//  4. Defaults
//
// Error Handling
//
// Sentinel errors are re-exported here for errors.Is:
//
//	if errors.Is(err, ytscrape.ErrChannelNotFound) {
//		fmt.Println("Channel not found")
//	}
//
// Wrapped details are available through errors.As:
//
//	var quotaErr *ytscrape.QuotaError
//	if errors.As(err, &quotaErr) {
//		fmt.Printf("Data API quota: %s\n", quotaErr.Reason)
//	}
//
// Dependencies
//
// yt-dlp must be on PATH (or set YTSCRAPE_YTDLP_PATH) for the fallback
// listing and for downloads, and ffmpeg for audio extraction and merging.
package ytscrape
