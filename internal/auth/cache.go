package auth

import (
	"sync"
	"sync/atomic"
	"time"
)

// AuthCache is a TTL cache with stale-while-revalidate for authenticated
// callers, keyed by the full API key.
type AuthCache struct {
	store sync.Map // map[string]*authCacheEntry
	ttl   time.Duration
}

type authCacheEntry struct {
	caller     *CallerContext
	expiresAt  time.Time
	refreshing atomic.Bool
}

// CacheGetResult holds the result of a cache lookup.
type CacheGetResult struct {
	Caller       *CallerContext
	Hit          bool
	NeedsRefresh bool // expired — caller should refresh in background
}

// NewAuthCache creates a cache with the given TTL.
func NewAuthCache(ttl time.Duration) *AuthCache {
	return &AuthCache{ttl: ttl}
}

// Get performs a non-blocking cache lookup. Stale entries are returned with
// NeedsRefresh=true exactly once per expiry (CAS winner refreshes).
func (c *AuthCache) Get(token string) CacheGetResult {
	v, ok := c.store.Load(token)
	if !ok {
		return CacheGetResult{}
	}

	entry := v.(*authCacheEntry)
	if time.Now().Before(entry.expiresAt) {
		return CacheGetResult{Caller: entry.caller, Hit: true}
	}

	needsRefresh := entry.refreshing.CompareAndSwap(false, true)
	return CacheGetResult{Caller: entry.caller, Hit: true, NeedsRefresh: needsRefresh}
}

// Set stores a caller context with a fresh TTL.
func (c *AuthCache) Set(token string, caller *CallerContext) {
	c.store.Store(token, &authCacheEntry{
		caller:    caller,
		expiresAt: time.Now().Add(c.ttl),
	})
}

// Delete removes an entry so the next lookup goes back to the store. Called
// after a failed background refresh; otherwise the entry's refreshing flag
// stays won and the stale value would be served forever.
func (c *AuthCache) Delete(token string) {
	c.store.Delete(token)
}
