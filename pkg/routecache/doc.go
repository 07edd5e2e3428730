// Package routecache tracks which archive worker serves which block height.
//
// The archive router assigns workers per block (GET /{block}/worker) and an
// assignment stays valid for a window of nearby blocks, so routes are cached
// per granularity bucket rather than per block: bucket(b) = b - b%granularity.
//
// Two layers back the cache:
//
// - In-process expirable LRU (always on)
// - Redis (optional, shared across processes)
//
// Redis failures never fail a lookup; they degrade to a miss and the caller
// re-resolves the route from the router.
//
// # Basic Usage
//
//	rc := routecache.New(routecache.Options{
//		Size:        1024,
//		TTL:         5 * time.Minute,
//		Granularity: 10_000,
//	}, nil, logger)
//
//	if workerURL, ok := rc.Get(ctx, 14_000_005); ok {
//		// POST the query straight to workerURL
//	}
//
//	// On a miss, resolve via GET /{block}/worker, then:
//	rc.Put(ctx, 14_000_005, workerURL)
//
//	// When a worker stops answering:
//	rc.Invalidate(ctx, 14_000_005)
//
// # Metrics
//
// The package exports Prometheus metrics:
//
//   - dive_route_cache_hits_total{layer} - Hits by layer (memory, redis)
//   - dive_route_cache_misses_total - Misses across both layers
//   - dive_route_cache_entries - Routes held in the memory layer
//   - dive_route_cache_errors_total{operation} - Shared-layer operation errors
package routecache
