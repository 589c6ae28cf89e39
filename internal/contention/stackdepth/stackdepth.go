// Package stackdepth caches the maximum stack depth used for contention
// stack snapshots.
//
// The depth is resolved lazily from the stack-capture configuration on the
// first contended-enter event and never changes afterwards, even if the
// configuration would report a different value later. This removes a
// configuration lookup from every contention event.
//
// A resolved value of zero is not cached, so the next event resolves again.
// The first non-zero value wins; a negative one is cached like any other and
// callers treat it as "no stack".
//
// Thread Safety: Get is safe for concurrent use. Concurrent first callers are
// serialized so the configuration is read exactly once.
package stackdepth

import (
	"sync"
	"sync/atomic"
)

// Cache holds a lazily resolved stack depth. The zero value is ready to use.
type Cache struct {
	// depth is 0 until resolved.
	depth atomic.Int64

	// mu serializes resolution.
	mu sync.Mutex
}

// shared is the process-wide cache used by the agent.
var shared Cache

// Shared returns the process-wide cache.
func Shared() *Cache {
	return &shared
}

// Get returns the cached depth, calling resolve if no non-zero depth has
// been cached yet.
//
// Performance: one atomic load once resolved.
func (c *Cache) Get(resolve func() int) int {
	if d := c.depth.Load(); d != 0 {
		return int(d)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	// Another goroutine may have resolved while we waited.
	if d := c.depth.Load(); d != 0 {
		return int(d)
	}

	d := resolve()
	if d == 0 {
		return 0
	}
	c.depth.Store(int64(d))
	return d
}

// Cached returns the cached depth and whether it has been resolved.
func (c *Cache) Cached() (int, bool) {
	d := c.depth.Load()
	return int(d), d != 0
}

// Reset forgets the cached depth (for testing).
//
// Thread Safety: NOT safe to call while other goroutines use the cache.
func (c *Cache) Reset() {
	c.depth.Store(0)
}
