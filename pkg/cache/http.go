package cache

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"time"
)

// DefaultTTL applies when a response carries no usable Expires header.
const DefaultTTL = 10 * time.Minute

// FromResponse builds an entry from resp. The body is read fully and then
// restored so the caller can still consume it.
func FromResponse(resp *http.Response) (*Entry, error) {
	if resp == nil {
		return nil, fmt.Errorf("response cannot be nil")
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	resp.Body.Close()
	resp.Body = io.NopCloser(bytes.NewReader(body))

	now := time.Now()
	entry := &Entry{
		Body:        body,
		ETag:        resp.Header.Get("ETag"),
		StatusCode:  resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Expires:     expiresAt(resp.Header, now),
		StoredAt:    now,
	}

	if lm := resp.Header.Get("Last-Modified"); lm != "" {
		if t, err := http.ParseTime(lm); err == nil {
			entry.LastModified = t
		}
	}

	return entry, nil
}

// expiresAt derives the expiry from the Expires header, falling back to
// DefaultTTL when it is missing or unparsable.
func expiresAt(h http.Header, now time.Time) time.Time {
	raw := h.Get("Expires")
	if raw == "" {
		return now.Add(DefaultTTL)
	}

	t, err := http.ParseTime(raw)
	if err != nil {
		return now.Add(DefaultTTL)
	}
	if t.Before(now) {
		return now
	}
	return t
}

// AddConditionalHeaders sets If-None-Match or, without an ETag,
// If-Modified-Since on req.
func AddConditionalHeaders(req *http.Request, entry *Entry) {
	if entry == nil || req == nil {
		return
	}

	if entry.ETag != "" {
		req.Header.Set("If-None-Match", entry.ETag)
	} else if !entry.LastModified.IsZero() {
		req.Header.Set("If-Modified-Since", entry.LastModified.UTC().Format(http.TimeFormat))
	}
}
