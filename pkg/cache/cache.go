package cache

import "time"

// Cache is the interface for in-process metadata caching.
type Cache interface {
	// Get retrieves a value. Returns (nil, false) when absent.
	Get(key string) (interface{}, bool)

	// Set stores a value with a TTL.
	Set(key string, value interface{}, ttl time.Duration) bool

	// Delete removes a value.
	Delete(key string)

	// Clear removes all values.
	Clear()

	// Close releases resources.
	Close()
}
