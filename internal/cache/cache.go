package cache

import (
	"sync"
	"time"
)

// TTLSlow covers enclosure topology: discovered sg devices and the
// configuration page layout. A changed generation code drops the layout
// before it expires.
const TTLSlow = 1 * time.Hour

// Entry holds a cached value with expiration
type Entry struct {
	Value     any
	ExpiresAt time.Time
	FetchedAt time.Time
}

// IsExpired returns true if the entry has expired
func (e *Entry) IsExpired(now time.Time) bool {
	return now.After(e.ExpiresAt)
}

// Age returns how long ago the entry was fetched
func (e *Entry) Age(now time.Time) time.Duration {
	return now.Sub(e.FetchedAt)
}

// Cache provides thread-safe TTL-based caching
type Cache struct {
	mu      sync.RWMutex
	entries map[string]*Entry
	now     func() time.Time
}

// New creates a new cache instance
func New() *Cache {
	return &Cache{
		entries: make(map[string]*Entry),
		now:     time.Now,
	}
}

// Get retrieves a value from cache, returns nil if expired or not found
func (c *Cache) Get(key string) any {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[key]
	if !ok || entry.IsExpired(c.now()) {
		return nil
	}
	return entry.Value
}

// GetEntry retrieves the full cache entry, expired or not
func (c *Cache) GetEntry(key string) *Entry {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.entries[key]
}

// Set stores a value with the given TTL
func (c *Cache) Set(key string, value any, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	c.entries[key] = &Entry{
		Value:     value,
		ExpiresAt: now.Add(ttl),
		FetchedAt: now,
	}
}

// SetSlow stores enclosure topology data
func (c *Cache) SetSlow(key string, value any) {
	c.Set(key, value, TTLSlow)
}

// Delete removes an entry from cache
func (c *Cache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// Cleanup removes expired entries
func (c *Cache) Cleanup() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	for k, v := range c.entries {
		if v.IsExpired(now) {
			delete(c.entries, k)
		}
	}
}

// Global cache instance
var global *Cache
var once sync.Once

// Global returns the global cache instance
func Global() *Cache {
	once.Do(func() {
		global = New()
	})
	return global
}
