// Package cache provides a Redis-backed cache of catalog page responses.
//
// The page fetcher consults the cache before acquiring a rate limit slot;
// a hit skips both the limiter and the network.
//
// # Basic Usage
//
//	redisClient := redis.NewClient(&redis.Options{
//		Addr: "localhost:6379",
//	})
//
//	manager := cache.NewManager(redisClient, cache.DefaultTTL)
//
//	key := cache.PageKey{Chain: "ethereum", Limit: 50, Offset: 100}
//
//	entry, err := manager.Get(ctx, key)
//	if err == cache.ErrCacheMiss {
//		// fetch from the catalog, then
//		_ = manager.Put(ctx, key, body)
//	}
//
// # Metrics
//
//   - catalog_cache_hits_total{layer="redis"} - Cache hits
//   - catalog_cache_misses_total - Cache misses
//   - catalog_cache_size_bytes{layer="redis"} - Bytes written to the cache
//   - catalog_cache_errors_total{operation} - Cache operation errors
//
// Only successfully decoded pages are cached; failed pages are always
// fetched again.
package cache
