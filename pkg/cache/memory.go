package cache

import (
	"context"
	"sync"
	"time"
)

// MemoryCache provides in-memory caching with per-entry expiration
type MemoryCache struct {
	data    map[string]*cacheEntry
	mu      sync.RWMutex
	cleanup *time.Ticker
	done    chan struct{}
	once    sync.Once
}

// cacheEntry represents a cache entry with expiration
type cacheEntry struct {
	value      []byte
	expiration time.Time
}

// NewMemoryCache creates a new memory cache that purges expired
// entries every cleanupInterval
func NewMemoryCache(cleanupInterval time.Duration) *MemoryCache {
	if cleanupInterval <= 0 {
		cleanupInterval = time.Minute
	}
	c := &MemoryCache{
		data:    make(map[string]*cacheEntry),
		cleanup: time.NewTicker(cleanupInterval),
		done:    make(chan struct{}),
	}

	go c.cleanupLoop()

	return c
}

// Get retrieves a value from the cache
func (c *MemoryCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.data[key]
	if !ok || time.Now().After(entry.expiration) {
		return nil, false, nil
	}

	out := make([]byte, len(entry.value))
	copy(out, entry.value)
	return out, true, nil
}

// Set stores a value in the cache
func (c *MemoryCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	stored := make([]byte, len(value))
	copy(stored, value)

	c.mu.Lock()
	defer c.mu.Unlock()

	c.data[key] = &cacheEntry{
		value:      stored,
		expiration: time.Now().Add(ttl),
	}
	return nil
}

// Delete removes values from the cache
func (c *MemoryCache) Delete(ctx context.Context, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, key := range keys {
		delete(c.data, key)
	}
	return nil
}

// Size returns the number of entries in the cache, expired ones included
func (c *MemoryCache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.data)
}

// Close stops the cleanup goroutine
func (c *MemoryCache) Close() {
	c.once.Do(func() {
		c.cleanup.Stop()
		close(c.done)
	})
}

func (c *MemoryCache) cleanupLoop() {
	for {
		select {
		case <-c.cleanup.C:
			c.removeExpired()
		case <-c.done:
			return
		}
	}
}

func (c *MemoryCache) removeExpired() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	for key, entry := range c.data {
		if now.After(entry.expiration) {
			delete(c.data, key)
		}
	}
}
