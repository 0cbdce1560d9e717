// Package cache provides response caching implementations.
package cache

import "time"

// ResponseCache is the interface for completion caching.
type ResponseCache interface {
	// Get retrieves a cached completion. Returns empty string and false if
	// not found or expired.
	Get(key string) (string, bool)

	// Set stores a completion using the cache's default TTL.
	Set(key string, value string) error
}

// Configurable is implemented by caches whose lifecycle is managed by the
// caller: the default TTL can be changed at runtime and all entries can be
// invalidated at once.
type Configurable interface {
	ResponseCache

	// SetWithTTL stores a completion with an explicit TTL for this entry.
	SetWithTTL(key, value string, ttl time.Duration) error

	// SetDefaultTTL changes the TTL applied to subsequent Set calls.
	SetDefaultTTL(ttl time.Duration)

	// DefaultTTL returns the current default TTL.
	DefaultTTL() time.Duration

	// Clear invalidates all entries immediately.
	Clear() error
}
