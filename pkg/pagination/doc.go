// Package pagination turns a cursor-paginated media timeline into a single
// pull-based sequence of items.
//
// A Stream starts from a seed page that was obtained elsewhere (usually the
// page embedded in a profile document). Items are served from an in-memory
// buffer; only when the buffer is empty does the stream ask its PageFetcher
// for the next page. Pagination stops when the cursor reports no further
// pages, when the cursor is missing, or when no capability token (query hash)
// was configured.
//
// Example usage:
//
//	stream := pagination.NewStream(apiClient, profile.SeedPage(), profile.ID, queryHash)
//	for {
//		item, ok := stream.Next(ctx)
//		if !ok {
//			break
//		}
//		// use item
//	}
//	if err := stream.Err(); err != nil {
//		// pagination ended early, items yielded so far are still valid
//	}
//
// Buffer order:
//   - Items of a page are yielded last-to-first (the buffer is popped from the end)
//   - Pages are yielded in cursor order
//
// A Stream is not safe for concurrent use and cannot be restarted.
package pagination
