// Package media defines the media items exchanged between the page stream,
// the download pipeline and the remote API client.
package media

// Item is a single media record. Items are values and are never mutated after
// they have been decoded from a page.
type Item struct {
	// ID is the stable shortcode of the item. It names the local file.
	ID string

	// URL is the location of the binary resource.
	URL string

	// Caption is display metadata only.
	Caption string

	Width  int
	Height int
}

// PageInfo is the pagination cursor returned with every page.
type PageInfo struct {
	HasNextPage bool    `json:"has_next_page"`
	EndCursor   *string `json:"end_cursor"`
}

// More reports whether another page can be requested.
// A false flag and a missing cursor both end pagination.
func (p PageInfo) More() bool {
	return p.HasNextPage && p.EndCursor != nil && *p.EndCursor != ""
}

// Cursor returns the end cursor or an empty string.
func (p PageInfo) Cursor() string {
	if p.EndCursor == nil {
		return ""
	}
	return *p.EndCursor
}

// NextCursor builds a PageInfo pointing at cursor.
func NextCursor(cursor string) PageInfo {
	return PageInfo{HasNextPage: true, EndCursor: &cursor}
}

// Page is one batch of items plus the cursor for the following batch.
type Page struct {
	Items    []Item
	PageInfo PageInfo
}
