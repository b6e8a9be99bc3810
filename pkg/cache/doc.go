// Package cache provides an opt-in HTTP page cache with a Redis backend.
//
// The cache operates strictly below the pagination engine: it stores raw
// page bodies keyed by request URL so the transport can serve unexpired
// pages locally and revalidate stale ones with conditional requests. It
// never deduplicates or retains decoded resources; every consumed page
// still carries exactly what the server (or its validators) vouched for.
//
// Features:
//
// - TTL derived from the Expires response header, with a bounded default
// - ETag revalidation (If-None-Match)
// - Last-Modified revalidation (If-Modified-Since)
// - Deterministic cache keys from normalized page URLs
// - Prometheus metrics for observability
//
// # Basic Usage
//
//	// Create Redis client
//	redisClient := redis.NewClient(&redis.Options{
//		Addr: "localhost:6379",
//	})
//
//	// Create cache manager
//	manager := cache.NewManager(redisClient)
//
//	// Look up a page
//	key := cache.NewKey("https://api.example.org/books?page=2")
//	entry, err := manager.Get(ctx, key)
//	if err == cache.ErrCacheMiss {
//		// Fetch from the server
//	}
//
// # Storing Responses
//
//	entry := cache.EntryFromResponse(resp, body)
//	if err := manager.Set(ctx, key, entry); err != nil {
//		return err
//	}
//
// # Conditional Requests
//
//	if cache.CanRevalidate(entry) {
//		cache.AddValidators(req, entry)
//		// The server answers 304 when the page is unchanged.
//	}
//
// # Metrics
//
// The cache exports Prometheus metrics:
//
//   - jsonapi_page_cache_hits_total - Fresh pages served from cache
//   - jsonapi_page_cache_misses_total - Pages absent or stale beyond revalidation
//   - jsonapi_page_cache_size_bytes - Bytes written to the cache
//   - jsonapi_not_modified_total - 304 responses to conditional requests
//   - jsonapi_conditional_requests_total - Conditional requests sent
//   - jsonapi_page_cache_errors_total{operation} - Cache operation errors
package cache
