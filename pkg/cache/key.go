package cache

import (
	"net/url"
	"sort"
	"strings"
)

// KeyPrefix namespaces every key written by this package.
const KeyPrefix = "mediafetch"

// Key identifies a cached page response.
type Key struct {
	// Endpoint is the request path (e.g. "/graphql/query/")
	Endpoint string

	// Subject is the account the page belongs to
	Subject string

	// Query holds the request query parameters
	Query url.Values
}

// String builds a deterministic key.
// Format: mediafetch:endpoint:subject:param1=val1:param2=val2
//
// Example:
//
//	mediafetch:graphql/query:42:query_hash=abc:variables={"id":"42"}
func (k Key) String() string {
	parts := []string{KeyPrefix}

	if endpoint := strings.Trim(k.Endpoint, "/"); endpoint != "" {
		parts = append(parts, endpoint)
	}
	if k.Subject != "" {
		parts = append(parts, k.Subject)
	}

	if len(k.Query) > 0 {
		names := make([]string, 0, len(k.Query))
		for name := range k.Query {
			names = append(names, name)
		}
		sort.Strings(names)

		for _, name := range names {
			values := append([]string(nil), k.Query[name]...)
			sort.Strings(values)
			parts = append(parts, name+"="+strings.Join(values, ","))
		}
	}

	return strings.Join(parts, ":")
}
