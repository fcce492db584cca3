// Package cache stores fetched timeline pages in Redis so that repeated runs
// against the same account can revalidate pages instead of downloading them
// again.
//
// Entries keep the response body together with its validators (ETag and
// Last-Modified). Until Expires passes an entry is served without a request.
// After that, entries with validators stay in Redis for StaleRetention and
// the client sends a conditional request; a 304 Not Modified reply is
// answered from the cache.
//
// # Basic Usage
//
//	redisClient := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
//	manager := cache.NewManager(redisClient)
//
//	key := cache.Key{
//		Endpoint: "/graphql/query/",
//		Subject:  profile.ID,
//		Query:    req.URL.Query(),
//	}
//
//	entry, err := manager.Get(ctx, key)
//	if errors.Is(err, cache.ErrCacheMiss) {
//		// fetch and cache.Set(ctx, key, entry)
//	}
//
// # Metrics
//
//   - mediafetch_cache_hits_total - Fresh pages served without a request
//   - mediafetch_cache_misses_total - Lookups that found no entry
//   - mediafetch_cache_not_modified_total - 304 responses answered from cache
//   - mediafetch_cache_errors_total{operation} - Redis errors by operation
//
// The cache is optional. A client without Redis fetches every page directly.
package cache
