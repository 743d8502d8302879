// Package cache stores upstream vendor responses in Redis so that items
// reprocessed after a crash or resume do not hit the rate-limited upstream
// again.
//
// Entries carry their own expiry, derived from the response's Cache-Control
// or Expires headers when present and a caller-supplied default otherwise.
// Redis removes entries when they expire.
//
// # Basic Usage
//
//	manager := cache.NewManager(redis.NewClient(&redis.Options{Addr: "localhost:6379"}))
//
//	key := cache.CacheKey{
//		Endpoint:    "/vendors/1001/products",
//		QueryParams: url.Values{"page": []string{"0"}, "size": []string{"70"}},
//	}
//
//	body, hit, err := manager.Fetch(ctx, key, 10*time.Minute, func(ctx context.Context) ([]byte, http.Header, error) {
//		return fetchUpstream(ctx, key)
//	})
//
// Get, Set and ResponseToEntry are available for callers that manage the
// lookup themselves.
//
// # Metrics
//
//   - collector_cache_hits_total
//   - collector_cache_misses_total
//   - collector_cache_stored_bytes_total
//   - collector_cache_errors_total{operation}
package cache
