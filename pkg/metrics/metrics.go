// Package metrics provides the centralized Prometheus registry reference
// for the library. All metrics are defined in their respective packages
// (transport, cache, ratelimit) to maintain modularity and avoid circular
// dependencies.
//
// This package provides documentation and reference for all available
// metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Registry is the default Prometheus registerer used by the library.
// All metrics are automatically registered via promauto in their
// respective packages.
var Registry = prometheus.DefaultRegisterer

// Metrics Documentation
//
// Request Metrics (pkg/transport):
//   - jsonapi_requests_total{endpoint, status} (Counter): Requests by endpoint and outcome
//   - jsonapi_request_duration_seconds{endpoint} (Histogram): Request duration by endpoint
//   - jsonapi_errors_total{class} (Counter): Errors by class (client, server, rate_limit, network, decode)
//
// Retry Metrics (pkg/transport):
//   - jsonapi_retries_total{error_class} (Counter): Retry attempts by error class
//   - jsonapi_retry_backoff_seconds{error_class} (Histogram): Backoff duration by error class
//   - jsonapi_retry_exhausted_total{error_class} (Counter): Requests that exhausted max retries
//
// Page Cache Metrics (pkg/cache):
//   - jsonapi_page_cache_hits_total (Counter): Fresh page served from cache
//   - jsonapi_page_cache_misses_total (Counter): Page absent or stale
//   - jsonapi_page_cache_size_bytes (Gauge): Bytes written to the cache
//   - jsonapi_not_modified_total (Counter): 304 responses to conditional requests
//   - jsonapi_conditional_requests_total (Counter): Conditional requests sent
//   - jsonapi_page_cache_errors_total{operation} (Counter): Cache operation errors
//
// Rate Budget Metrics (pkg/ratelimit):
//   - jsonapi_budget_remaining (Gauge): Requests left in the server's window
//   - jsonapi_budget_blocks_total (Counter): Requests blocked on an empty budget
//   - jsonapi_budget_throttles_total (Counter): Requests throttled on a low budget
//
// Stream Metrics (pkg/stream):
//   - jsonapi_stream_pages_fetched_total (Counter): Pages integrated into sequences
//   - jsonapi_stream_resources_delivered_total (Counter): Resources delivered to callers
//   - jsonapi_stream_fetch_errors_total (Counter): Page fetches that failed a pull
//
// Example Prometheus Queries:
//
//   # Page cache hit rate
//   sum(rate(jsonapi_page_cache_hits_total[5m])) /
//   (sum(rate(jsonapi_page_cache_hits_total[5m])) + sum(rate(jsonapi_page_cache_misses_total[5m])))
//
//   # Request error rate by class
//   rate(jsonapi_errors_total[5m])
//
//   # P95 request latency
//   histogram_quantile(0.95, rate(jsonapi_request_duration_seconds_bucket[5m]))
//
//   # Remaining request budget
//   jsonapi_budget_remaining < 20
