package detector

import (
	"encoding/json"
	"sync"
	"time"
)

type cacheEntry struct {
	verdict json.RawMessage
	addedAt time.Time
}

// ResultCache is a bounded execution-id → verdict store. Entries leave the
// cache on retrieval, when their TTL lapses, or oldest-first when capacity is
// exceeded, so an abandoned submission can never pin memory.
type ResultCache struct {
	mu       sync.Mutex
	capacity int
	ttl      time.Duration
	entries  map[string]cacheEntry
	order    []string // insertion order; stale ids are skipped during eviction
}

// NewResultCache returns a cache holding at most capacity entries for at most
// ttl each. A ttl of zero disables expiry.
func NewResultCache(capacity int, ttl time.Duration) *ResultCache {
	return &ResultCache{
		capacity: capacity,
		ttl:      ttl,
		entries:  make(map[string]cacheEntry),
	}
}

// Put stores the verdict for id, evicting expired entries first and then the
// oldest entries while over capacity.
func (c *ResultCache) Put(id string, verdict json.RawMessage) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.evictExpired()

	if _, ok := c.entries[id]; !ok {
		c.order = append(c.order, id)
	}
	c.entries[id] = cacheEntry{verdict: verdict, addedAt: time.Now()}

	for len(c.entries) > c.capacity && len(c.order) > 0 {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.entries, oldest)
	}
}

// Take returns and removes the verdict for id. A missing or expired id
// reports ok=false.
func (c *ResultCache) Take(id string) (json.RawMessage, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[id]
	if !ok {
		return nil, false
	}
	delete(c.entries, id)
	if c.ttl > 0 && time.Since(e.addedAt) > c.ttl {
		return nil, false
	}
	return e.verdict, true
}

// Len reports how many live entries the cache holds.
func (c *ResultCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// evictExpired drops entries older than the TTL. The order slice is insertion
// ordered, so scanning stops at the first fresh entry.
func (c *ResultCache) evictExpired() {
	if c.ttl <= 0 {
		return
	}
	for len(c.order) > 0 {
		id := c.order[0]
		e, ok := c.entries[id]
		if ok && time.Since(e.addedAt) <= c.ttl {
			return
		}
		c.order = c.order[1:]
		if ok {
			delete(c.entries, id)
		}
	}
}
