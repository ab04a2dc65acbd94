package catalog

import (
	"sync"
	"sync/atomic"
	"time"
)

// ttlCache is a TTL-based in-memory cache with stale-while-revalidate.
// Uses sync.Map for lock-free reads on the hot path. A nil value is a
// negative cache entry (name not registered).
type ttlCache[T any] struct {
	store sync.Map // map[string]*cacheEntry[T]
	ttl   time.Duration
}

type cacheEntry[T any] struct {
	value      *T
	expiresAt  time.Time
	refreshing atomic.Bool
}

// cacheResult holds the result of a cache lookup.
type cacheResult[T any] struct {
	Value        *T
	Hit          bool
	NeedsRefresh bool // expired; caller should refresh in background
}

func newTTLCache[T any](ttl time.Duration) *ttlCache[T] {
	return &ttlCache[T]{ttl: ttl}
}

// Get performs a non-blocking lookup, returning stale entries with
// NeedsRefresh=true once per expiry (only one goroutine wins the CAS).
func (c *ttlCache[T]) Get(key string) cacheResult[T] {
	v, ok := c.store.Load(key)
	if !ok {
		return cacheResult[T]{}
	}

	entry := v.(*cacheEntry[T])
	if time.Now().Before(entry.expiresAt) {
		return cacheResult[T]{Value: entry.value, Hit: true}
	}

	needsRefresh := entry.refreshing.CompareAndSwap(false, true)
	return cacheResult[T]{Value: entry.value, Hit: true, NeedsRefresh: needsRefresh}
}

// Set stores a value with a fresh TTL. Passing nil stores a negative entry.
func (c *ttlCache[T]) Set(key string, value *T) {
	c.store.Store(key, &cacheEntry[T]{
		value:     value,
		expiresAt: time.Now().Add(c.ttl),
	})
}

// Delete removes an entry.
func (c *ttlCache[T]) Delete(key string) {
	c.store.Delete(key)
}
