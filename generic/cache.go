package generic

import (
	"strings"
	"sync"
	"time"
)

// =============================================================================
// CACHE - Expiring key-value store for boundary reads
// =============================================================================

// Cache holds fetched data between requests. Keys are plain strings so a
// whole family ("leaves:2024-") can be dropped with InvalidatePrefix.
type Cache interface {
	Get(key string) (any, bool)
	Set(key string, value any, ttl time.Duration)
	InvalidatePrefix(prefix string)
	Clear()
}

type cacheEntry struct {
	value     any
	expiresAt time.Time
}

// MemoryCache is a mutex-guarded Cache with per-entry TTL.
type MemoryCache struct {
	mu      sync.Mutex
	entries map[string]cacheEntry

	// Now is the clock used for expiry. Tests replace it.
	Now func() time.Time
}

// NewMemoryCache returns an empty cache using the wall clock.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{
		entries: make(map[string]cacheEntry),
		Now:     time.Now,
	}
}

// Get returns the value for key unless it is missing or expired.
// Expired entries are dropped on read.
func (c *MemoryCache) Get(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if !c.Now().Before(e.expiresAt) {
		delete(c.entries, key)
		return nil, false
	}
	return e.value, true
}

// Set stores value for ttl. A non-positive ttl stores nothing.
func (c *MemoryCache) Set(key string, value any, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = cacheEntry{value: value, expiresAt: c.Now().Add(ttl)}
}

// InvalidatePrefix drops every key starting with prefix.
func (c *MemoryCache) InvalidatePrefix(prefix string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k := range c.entries {
		if strings.HasPrefix(k, prefix) {
			delete(c.entries, k)
		}
	}
}

// Clear drops everything.
func (c *MemoryCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]cacheEntry)
}

// Len reports the number of stored entries, expired ones included.
func (c *MemoryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// NopCache never stores anything.
type NopCache struct{}

func (NopCache) Get(string) (any, bool)         { return nil, false }
func (NopCache) Set(string, any, time.Duration) {}
func (NopCache) InvalidatePrefix(string)        {}
func (NopCache) Clear()                         {}

var (
	_ Cache = (*MemoryCache)(nil)
	_ Cache = NopCache{}
)
