package cache

import (
	"time"
)

// Entry is a cached page response.
type Entry struct {
	// Body is the raw response body
	Body []byte `json:"body"`

	// ETag validator for If-None-Match
	ETag string `json:"etag,omitempty"`

	// LastModified validator for If-Modified-Since
	LastModified time.Time `json:"last_modified,omitempty"`

	// Expires is when the entry is dropped
	Expires time.Time `json:"expires"`

	StatusCode  int       `json:"status_code"`
	ContentType string    `json:"content_type,omitempty"`
	StoredAt    time.Time `json:"stored_at"`
}

// IsExpired returns true once Expires has passed.
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

// HasValidators reports whether a conditional request can be made.
func (e *Entry) HasValidators() bool {
	return e.ETag != "" || !e.LastModified.IsZero()
}
