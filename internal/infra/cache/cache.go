package cache

import (
	"sync"
	"time"
)

type entry struct {
	value     any
	expiresAt time.Time
}

// TTLCache is an explicit key/value store with per-entry expiry. Every value
// carries its own TTL; expired entries are dropped lazily on read and can be
// removed eagerly with Sweep. Safe for concurrent use.
type TTLCache struct {
	mu      sync.Mutex
	entries map[string]entry
	clock   func() time.Time
}

// New returns an empty cache using the wall clock.
func New() *TTLCache {
	return NewWithClock(time.Now)
}

// NewWithClock returns an empty cache reading time from clock.
func NewWithClock(clock func() time.Time) *TTLCache {
	return &TTLCache{
		entries: make(map[string]entry),
		clock:   clock,
	}
}

// Get returns the live value for key, if any.
func (c *TTLCache) Get(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if c.clock().After(e.expiresAt) {
		delete(c.entries, key)
		return nil, false
	}
	return e.value, true
}

// Set stores value under key for ttl. A non-positive ttl removes the key.
func (c *TTLCache) Set(key string, value any, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if ttl <= 0 {
		delete(c.entries, key)
		return
	}
	c.entries[key] = entry{value: value, expiresAt: c.clock().Add(ttl)}
}

// Delete removes key.
func (c *TTLCache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// Sweep removes all expired entries and reports how many were dropped.
func (c *TTLCache) Sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.clock()
	dropped := 0
	for k, e := range c.entries {
		if now.After(e.expiresAt) {
			delete(c.entries, k)
			dropped++
		}
	}
	return dropped
}

// Len returns the number of stored entries, including not-yet-swept expired
// ones.
func (c *TTLCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
