package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Cache stores fetched page bodies for the preview service
type Cache interface {
	Get(key string) ([]byte, bool)
	Set(key string, value []byte, ttl time.Duration) error
	Delete(key string) error
	Clear() error
}

// CacheKey generates a page cache key from a URL
func CacheKey(url string) string {
	sum := sha256.Sum256([]byte(url))
	return "glimpse:v2:" + hex.EncodeToString(sum[:])
}

// New builds the page cache described by the arguments.
// An empty diskDir yields a memory-only cache.
func New(memoryTTL time.Duration, diskDir string, diskTTL time.Duration) Cache {
	if diskDir == "" {
		return NewMemoryCache(memoryTTL, 10*time.Minute)
	}
	return NewLayeredCache(memoryTTL, diskDir, diskTTL)
}
