// Package cache provides marketplace API response caching with a Redis backend.
//
// The cache manager implements HTTP caching with the following features:
//
// - Respect of server expires headers with a default-TTL fallback
// - ETag support for conditional requests (If-None-Match)
// - Last-Modified support (If-Modified-Since)
// - A revalidation grace window: stale entries stay available so a 304
//   can refresh them without refetching the body
// - Prometheus metrics for observability
// - Deterministic, user-scoped cache key generation
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
//	// Create cache key
//	key := cache.Key{
//		Endpoint:    "/v1/services/",
//		QueryParams: url.Values{"category": []string{"repair"}},
//	}
//
//	// Get from cache
//	entry, err := manager.Get(ctx, key)
//	if err == cache.ErrCacheMiss {
//		// Cache miss - fetch from the API
//	}
//
// # HTTP Response Caching
//
//	// Convert HTTP response to cache entry
//	entry, err := cache.ResponseToEntry(resp)
//	if err != nil {
//		return err
//	}
//	if err := manager.Set(ctx, key, entry); err != nil {
//		return err
//	}
//
//	// Serve a cached entry as an HTTP response
//	resp := cache.EntryToResponse(entry)
//
// # Conditional Requests
//
//	if cache.ShouldMakeConditionalRequest(entry) {
//		cache.AddConditionalHeaders(req, entry)
//	}
package cache
