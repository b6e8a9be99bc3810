package cache

import (
	"time"
)

// Entry represents one cached page response.
type Entry struct {
	// Body is the raw page body.
	Body []byte `json:"body"`

	// ETag for conditional requests (If-None-Match).
	ETag string `json:"etag,omitempty"`

	// Expires is when the entry becomes stale, from the Expires header.
	Expires time.Time `json:"expires"`

	// LastModified is the page's Last-Modified header value.
	LastModified time.Time `json:"last_modified,omitempty"`

	// StatusCode is the HTTP status of the cached response.
	StatusCode int `json:"status_code"`

	// CachedAt is when the entry was stored.
	CachedAt time.Time `json:"cached_at"`
}

// IsExpired returns true if the entry has gone stale.
func (e *Entry) IsExpired() bool {
	return time.Now().After(e.Expires)
}

// TTL returns the time until expiration, or 0 if already expired.
func (e *Entry) TTL() time.Duration {
	ttl := time.Until(e.Expires)
	if ttl < 0 {
		return 0
	}
	return ttl
}
