package cache

import (
	"github.com/Sternrassler/mediafetch/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CacheHits counts page responses served from Redis without a request
	CacheHits = promauto.With(metrics.Registry).NewCounter(
		prometheus.CounterOpts{
			Name: "mediafetch_cache_hits_total",
			Help: "Total number of fresh page responses served from cache without a request",
		},
	)

	// CacheMisses counts lookups that found no entry
	CacheMisses = promauto.With(metrics.Registry).NewCounter(
		prometheus.CounterOpts{
			Name: "mediafetch_cache_misses_total",
			Help: "Total number of page cache misses",
		},
	)

	// NotModified counts 304 responses answered from the cache
	NotModified = promauto.With(metrics.Registry).NewCounter(
		prometheus.CounterOpts{
			Name: "mediafetch_cache_not_modified_total",
			Help: "Total number of 304 Not Modified responses served from cache",
		},
	)

	// CacheErrors counts Redis failures by operation
	CacheErrors = promauto.With(metrics.Registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "mediafetch_cache_errors_total",
			Help: "Total number of cache operation errors",
		},
		[]string{"operation"}, // "get", "set", "delete"
	)
)
