package fetch

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/maypok86/otter/v2"
)

// entry is one cached payload with its own expiry, double-checked on read.
type entry struct {
	ExpiresAt time.Time
	Data      []byte
}

// Cache is a small in-memory TTL cache for fetched payloads, shared between
// the periodic refresh and the AI client's response memoization.
type Cache struct {
	cache *otter.Cache[string, entry]
	ttl   time.Duration
}

// NewCache creates a Cache whose entries expire after ttl.
func NewCache(ttl time.Duration) *Cache {
	c := otter.Must(&otter.Options[string, entry]{
		MaximumSize:      10_000,
		InitialCapacity:  256,
		ExpiryCalculator: otter.ExpiryWriting[string, entry](ttl),
	})
	return &Cache{cache: c, ttl: ttl}
}

// Get returns the cached payload for key, if present and unexpired.
func (c *Cache) Get(key string) ([]byte, bool) {
	e, found := c.cache.GetIfPresent(hashKey(key))
	if !found {
		return nil, false
	}
	if time.Now().After(e.ExpiresAt) {
		c.cache.Invalidate(hashKey(key))
		return nil, false
	}
	return e.Data, true
}

// Set stores a payload under key.
func (c *Cache) Set(key string, data []byte) {
	c.cache.Set(hashKey(key), entry{
		Data:      data,
		ExpiresAt: time.Now().Add(c.ttl),
	})
}

func hashKey(key string) string {
	h := sha256.Sum256([]byte(key))
	return hex.EncodeToString(h[:])
}
