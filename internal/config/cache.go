package config

import (
	"context"
	"sync"
	"time"
)

// Cache is a read-through cache with a fixed TTL. The redemption path reads
// product configuration through it; mutations call Invalidate, so the
// staleness window is bounded by the TTL and nothing else.
type Cache[V any] struct {
	ttl time.Duration
	now func() time.Time

	mu      sync.Mutex
	entries map[string]cacheEntry[V]
}

type cacheEntry[V any] struct {
	value    V
	loadedAt time.Time
}

// NewCache creates a cache whose entries are considered fresh for ttl.
func NewCache[V any](ttl time.Duration) *Cache[V] {
	return &Cache[V]{
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]cacheEntry[V]),
	}
}

// Get returns the cached value for key, calling load on a miss or when the
// cached value is older than the TTL. Load errors are returned to the caller
// and nothing is cached.
func (c *Cache[V]) Get(ctx context.Context, key string, load func(context.Context) (V, error)) (V, error) {
	c.mu.Lock()
	if e, ok := c.entries[key]; ok && c.now().Sub(e.loadedAt) < c.ttl {
		c.mu.Unlock()
		return e.value, nil
	}
	c.mu.Unlock()

	// No lock held across the load; concurrent misses may load twice, the
	// last writer wins, which is fine for read-through configuration.
	value, err := load(ctx)
	if err != nil {
		var zero V
		return zero, err
	}

	c.mu.Lock()
	c.entries[key] = cacheEntry[V]{value: value, loadedAt: c.now()}
	c.mu.Unlock()
	return value, nil
}

// Invalidate drops the cached value for key, forcing the next Get to load.
func (c *Cache[V]) Invalidate(key string) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
}
