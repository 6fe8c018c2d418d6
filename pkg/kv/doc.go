// Package kv provides a small Redis-like key-value abstraction with in-memory
// and Redis-backed implementations. It backs the HTTP session store.
//
// Backends register themselves from their package init, so callers import
// the backends they need for side effects:
//
//	import (
//		"github.com/leafsii/post-api/pkg/kv"
//		_ "github.com/leafsii/post-api/pkg/kv/memory"
//		_ "github.com/leafsii/post-api/pkg/kv/redis"
//	)
//
//	store, err := kv.NewStoreFromConfig(kv.Config{
//		Backend:         kv.BackendRedis,
//		RedisURL:        "redis://localhost:6379/0",
//		FailoverEnabled: true,
//	})
//
// When Redis is selected with failover enabled, the store starts on whichever
// backend is healthy and moves between Redis and memory as Redis goes away
// and comes back. Sessions written to memory during an outage are not copied
// back to Redis.
package kv
