package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CacheHits tracks lookups served from disk.
	CacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ghsearch_cache_hits_total",
			Help: "Total number of search cache hits",
		},
	)

	// CacheMisses tracks lookups that found no usable entry (absent or expired).
	CacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ghsearch_cache_misses_total",
			Help: "Total number of search cache misses",
		},
	)

	// CacheExpired tracks entries evicted because they outlived the TTL.
	CacheExpired = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ghsearch_cache_expired_total",
			Help: "Total number of expired cache entries evicted on read",
		},
	)

	// CacheSwept tracks entries removed by Sweep.
	CacheSwept = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ghsearch_cache_swept_total",
			Help: "Total number of expired cache entries removed by a sweep",
		},
	)

	// CacheErrors tracks cache operation errors
	CacheErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ghsearch_cache_errors_total",
			Help: "Total number of cache operation errors",
		},
		[]string{"operation"}, // "get", "put", "delete", "sweep"
	)
)
