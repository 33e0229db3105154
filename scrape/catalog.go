package scrape

import (
	"sync"

	"ytscrape/youtube"
)

// Entry is what the catalog remembers about a scraped video.
type Entry struct {
	ID          string
	Title       string
	ChannelID   string
	ChannelName string
}

// Catalog remembers scraped videos so downloads can name their output
// after the video and its channel.
type Catalog struct {
	mu      sync.RWMutex
	entries map[string]Entry
}

// NewCatalog returns an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{entries: make(map[string]Entry)}
}

// Remember stores videos, replacing older entries with the same ID.
func (c *Catalog) Remember(ch youtube.Channel, videos []*youtube.Video) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, v := range videos {
		name := v.ChannelName
		if name == "" {
			name = ch.Title
		}
		c.entries[v.ID] = Entry{ID: v.ID, Title: v.Title, ChannelID: ch.ID, ChannelName: name}
	}
}

// Lookup returns the title and channel name of a remembered video.
func (c *Catalog) Lookup(id string) (title, channel string, ok bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[id]
	return e.Title, e.ChannelName, ok
}

// Len returns the number of remembered videos.
func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
