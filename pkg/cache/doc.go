// Package cache provides a generic, thread-safe least-recently-used cache
// with built-in statistics tracking and optional Prometheus metrics.
//
// # Quick Start
//
//	cache, err := cache.NewLRU[*Snapshot](1000)
//	if err != nil {
//		log.Fatal(err)
//	}
//	cache.Set("key", snapshot)
//	value, ok := cache.Get("key")
//
// With eviction callback and metrics:
//
//	cache, err := cache.NewLRU[[]byte](5000,
//		cache.WithMetrics[[]byte](registry, "snapshot_cache"),
//		cache.WithEvictionCallback[[]byte](func(key string, value []byte) {
//			log.Printf("evicted: %s", key)
//		}),
//	)
//
// # Observability
//
// Statistics (hits, misses, sets, deletes, evictions, hit ratio) are always
// tracked via atomic counters and available through Cache.Stats(), with no
// external dependency. WithMetrics additionally exports the same counters
// to a Prometheus registry for time-series monitoring.
//
// # Thread Safety
//
// All Cache operations are safe for concurrent use. Eviction callbacks run
// outside the cache's lock to avoid deadlocking a callback that re-enters
// the cache.
package cache
