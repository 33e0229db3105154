package scrape

import "ytscrape/youtube"

// EnumeratorFactory chooses the enumeration path once per run: the Data
// API when one is configured, yt-dlp otherwise.
type EnumeratorFactory struct {
	api      youtube.Enumerator
	fallback youtube.Enumerator
}

// NewEnumeratorFactory creates a factory. api is nil when no API key is
// configured.
func NewEnumeratorFactory(api, fallback youtube.Enumerator) *EnumeratorFactory {
	return &EnumeratorFactory{api: api, fallback: fallback}
}

// Primary returns the enumerator a run starts with.
func (f *EnumeratorFactory) Primary() youtube.Enumerator {
	if f.api != nil {
		return f.api
	}
	return f.fallback
}

// Fallback returns the enumerator to continue with after the primary ran
// out of quota, or nil when there is none.
func (f *EnumeratorFactory) Fallback() youtube.Enumerator {
	if f.api == nil {
		return nil
	}
	return f.fallback
}
