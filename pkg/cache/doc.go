// Package cache provides listing page caching with a Redis backend.
//
// The cache shields the portal from repeated identical page requests when a
// crawl is rerun shortly after a failure or during development. The portal
// serves no cache headers of its own, so entries expire after a TTL the
// operator configures.
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
//	// Create cache key from a page request
//	key := cache.Key{
//		Endpoint: "/Pesquisa/PageDataProjeto",
//		Query:    req.Query,
//	}
//
//	// Get from cache
//	entry, err := manager.Get(ctx, key)
//	if err == cache.ErrCacheMiss {
//		// Cache miss - fetch from the portal
//	}
//
//	// Store a fetched page
//	entry = cache.NewEntry(body, http.StatusOK, 15*time.Minute)
//	if err := manager.Set(ctx, key, entry); err != nil {
//		return err
//	}
//
// # Key Determinism
//
// Keys are built from the endpoint path and sorted query parameters, with
// the DataTables draw counter excluded: it changes on every request while
// the result window it addresses does not.
//
// # Metrics
//
// The cache manager exports Prometheus metrics:
//
//   - splegis_cache_hits_total{layer="redis"} - Cache hits
//   - splegis_cache_misses_total - Cache misses
//   - splegis_cache_size_bytes{layer="redis"} - Cache size
//   - splegis_cache_errors_total{operation} - Cache operation errors
package cache
