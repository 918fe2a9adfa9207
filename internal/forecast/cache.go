package forecast

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/andresuchdata/supplyplan/internal/domain"
)

// Payload is a forecast keyed by horizon day (day_1..day_N).
type Payload map[string]float64

type cacheEntry struct {
	payload   Payload
	createdAt time.Time
	expiresAt time.Time
}

// Cache is an in-memory forecast cache with time-based expiry.
// Entries are evicted lazily on lookup; there is no background sweep
// and no persistence across process restarts.
type Cache struct {
	mu      sync.Mutex
	entries map[string]cacheEntry
	ttl     time.Duration
	hits    int
	misses  int
	now     func() time.Time
}

// NewCache creates a cache with the given TTL (default 24h when zero).
func NewCache(ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Cache{
		entries: make(map[string]cacheEntry),
		ttl:     ttl,
		now:     time.Now,
	}
}

// Fingerprint builds the deterministic cache key for a (location, item,
// serialized history) tuple.
func Fingerprint(locationID, itemID, history string) string {
	sum := sha1.Sum([]byte(fmt.Sprintf("%s_%s_%s", locationID, itemID, history)))
	return hex.EncodeToString(sum[:])
}

// Get returns the cached payload for the tuple, or ok=false on a miss.
// An expired entry is removed and counted as a miss.
func (c *Cache) Get(locationID, itemID, history string) (Payload, bool) {
	key := Fingerprint(locationID, itemID, history)

	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		c.misses++
		return nil, false
	}
	if c.now().After(entry.expiresAt) {
		delete(c.entries, key)
		c.misses++
		return nil, false
	}

	c.hits++
	return entry.payload, true
}

// Set inserts or overwrites the entry for the tuple.
func (c *Cache) Set(locationID, itemID, history string, payload Payload) {
	key := Fingerprint(locationID, itemID, history)

	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	c.entries[key] = cacheEntry{
		payload:   payload,
		createdAt: now,
		expiresAt: now.Add(c.ttl),
	}
}

// Stats reports hit/miss counters and the current entry count.
func (c *Cache) Stats() domain.CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	total := c.hits + c.misses
	hitRate := 0.0
	if total > 0 {
		hitRate = round2(float64(c.hits) / float64(total) * 100)
	}
	return domain.CacheStats{
		TotalRequests: total,
		CacheHits:     c.hits,
		CacheMisses:   c.misses,
		HitRate:       hitRate,
		CachedItems:   len(c.entries),
	}
}

// Clear drops all entries and resets counters.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]cacheEntry)
	c.hits = 0
	c.misses = 0
}
