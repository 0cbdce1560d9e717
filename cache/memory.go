package cache

import (
	"sync"
	"time"
)

// cacheEntry holds a cached value with its expiry time.
type cacheEntry struct {
	value     string
	expiresAt time.Time // zero means no expiry
}

func (e cacheEntry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}

// InMemoryCache is a thread-safe in-memory cache. Expiry is checked lazily
// on read; there is no background sweeper.
type InMemoryCache struct {
	entries map[string]cacheEntry
	mu      sync.RWMutex
	ttl     time.Duration
}

// NewInMemoryCache creates a new in-memory cache with the specified default
// TTL. If ttlSeconds is 0 or negative, entries never expire.
func NewInMemoryCache(ttlSeconds int) *InMemoryCache {
	ttl := time.Duration(ttlSeconds) * time.Second
	if ttlSeconds <= 0 {
		ttl = 0 // No expiration
	}
	return &InMemoryCache{
		entries: make(map[string]cacheEntry),
		ttl:     ttl,
	}
}

// Get retrieves a value from the cache.
// Returns the value and true if found and not expired, empty string and
// false otherwise.
func (c *InMemoryCache) Get(key string) (string, bool) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok {
		return "", false
	}

	if entry.expired(time.Now()) {
		c.mu.Lock()
		delete(c.entries, key)
		c.mu.Unlock()
		return "", false
	}

	return entry.value, true
}

// Set stores a value using the default TTL.
func (c *InMemoryCache) Set(key string, value string) error {
	c.mu.RLock()
	ttl := c.ttl
	c.mu.RUnlock()
	return c.SetWithTTL(key, value, ttl)
}

// SetWithTTL stores a value with an explicit TTL for this entry.
// A non-positive ttl stores the entry without expiry.
func (c *InMemoryCache) SetWithTTL(key, value string, ttl time.Duration) error {
	entry := cacheEntry{value: value}
	if ttl > 0 {
		entry.expiresAt = time.Now().Add(ttl)
	}

	c.mu.Lock()
	c.entries[key] = entry
	c.mu.Unlock()
	return nil
}

// SetDefaultTTL changes the TTL applied to subsequent Set calls. Existing
// entries keep the expiry they were stored with.
func (c *InMemoryCache) SetDefaultTTL(ttl time.Duration) {
	c.mu.Lock()
	if ttl < 0 {
		ttl = 0
	}
	c.ttl = ttl
	c.mu.Unlock()
}

// DefaultTTL returns the current default TTL.
func (c *InMemoryCache) DefaultTTL() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.ttl
}

// Len returns the number of entries in the cache (including expired ones
// not yet swept by a read).
func (c *InMemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Clear removes all entries from the cache.
func (c *InMemoryCache) Clear() error {
	c.mu.Lock()
	c.entries = make(map[string]cacheEntry)
	c.mu.Unlock()
	return nil
}

// Entries returns all non-expired entries as key-value pairs.
// This is used for cache export.
func (c *InMemoryCache) Entries() map[string]string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	result := make(map[string]string)
	now := time.Now()

	for key, entry := range c.entries {
		if entry.expired(now) {
			continue
		}
		result[key] = entry.value
	}

	return result
}

// Verify InMemoryCache implements Configurable
var _ Configurable = (*InMemoryCache)(nil)
