package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CacheHits tracks fresh pages served from cache.
	CacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "jsonapi_page_cache_hits_total",
			Help: "Total number of pages served from the cache",
		},
	)

	// CacheMisses tracks pages absent from or stale in the cache.
	CacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "jsonapi_page_cache_misses_total",
			Help: "Total number of page cache misses",
		},
	)

	// CacheSize tracks bytes written to the cache.
	CacheSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "jsonapi_page_cache_size_bytes",
			Help: "Bytes written to the page cache",
		},
	)

	// NotModifiedResponses tracks 304 responses to conditional requests.
	NotModifiedResponses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "jsonapi_not_modified_total",
			Help: "Total number of 304 Not Modified responses",
		},
	)

	// ConditionalRequestsSent tracks conditional requests issued.
	ConditionalRequestsSent = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "jsonapi_conditional_requests_total",
			Help: "Total number of conditional requests sent",
		},
	)

	// CacheErrors tracks cache operation errors.
	CacheErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jsonapi_page_cache_errors_total",
			Help: "Total number of page cache operation errors",
		},
		[]string{"operation"}, // "get", "set", "delete"
	)
)
