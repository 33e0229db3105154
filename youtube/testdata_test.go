package youtube

// sampleFlatListing is yt-dlp --flat-playlist -J output for a channel tab.
const sampleFlatListing = `{
  "id": "UCuAXFkgsw1L7xaCfnd5JJOw",
  "_type": "playlist",
  "title": "Test Channel - Videos",
  "channel": "Test Channel",
  "channel_id": "UCuAXFkgsw1L7xaCfnd5JJOw",
  "uploader_id": "@testchannel",
  "entries": [
    {
      "_type": "url",
      "id": "dQw4w9WgXcQ",
      "title": "Video 1",
      "duration": 212,
      "live_status": null
    },
    {
      "_type": "url",
      "id": "xQw4w9WgXcZ",
      "title": "Premiere tonight",
      "duration": null,
      "live_status": "is_upcoming"
    },
    {
      "_type": "url",
      "id": "",
      "title": "[Private video]"
    }
  ]
}`

// sampleVideoDetail is yt-dlp -J --no-playlist output for one video.
const sampleVideoDetail = `{
  "id": "dQw4w9WgXcQ",
  "title": "Video 1",
  "duration": 212.4,
  "timestamp": 1577836800,
  "upload_date": "20200101",
  "thumbnail": "https://i.ytimg.com/vi/dQw4w9WgXcQ/hqdefault.jpg",
  "thumbnails": [
    {"url": "https://i.ytimg.com/vi/dQw4w9WgXcQ/default.jpg", "width": 120, "height": 90},
    {"url": "https://i.ytimg.com/vi/dQw4w9WgXcQ/maxresdefault.jpg", "width": 1280, "height": 720},
    {"url": "https://i.ytimg.com/vi/dQw4w9WgXcQ/sddefault.jpg"}
  ],
  "width": 1920,
  "height": 1080,
  "live_status": "was_live",
  "channel": "Test Channel",
  "channel_id": "UCuAXFkgsw1L7xaCfnd5JJOw",
  "uploader": "Test Uploader",
  "webpage_url": "https://www.youtube.com/watch?v=dQw4w9WgXcQ"
}`
