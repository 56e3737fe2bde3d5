package cache

import (
	"sync"
	"time"
)

// TTLCache implements Cache in memory with time-based expiration and LRU
// eviction once maxEntries is reached.
type TTLCache struct {
	mu         sync.RWMutex
	entries    map[string]*entry
	maxEntries int64

	hits      int64
	misses    int64
	evictions int64

	stopCh   chan struct{}
	stopOnce sync.Once
}

type entry struct {
	value    interface{}
	expires  time.Time
	accessed time.Time
}

// NewTTLCache creates a TTL cache bounded to maxEntries and starts a
// background sweep for expired entries.
func NewTTLCache(maxEntries int64) *TTLCache {
	c := &TTLCache{
		entries:    make(map[string]*entry),
		maxEntries: maxEntries,
		stopCh:     make(chan struct{}),
	}
	go c.sweep()
	return c
}

// Get returns the value for key if present and unexpired.
func (c *TTLCache) Get(key string) (interface{}, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok || time.Now().After(e.expires) {
		c.misses++
		return nil, false
	}
	e.accessed = time.Now()
	c.hits++
	return e.value, true
}

// Set stores value under key for ttl.
func (c *TTLCache) Set(key string, value interface{}, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[key]; !exists && int64(len(c.entries)) >= c.maxEntries {
		c.evictOldest()
	}
	c.entries[key] = &entry{
		value:    value,
		expires:  time.Now().Add(ttl),
		accessed: time.Now(),
	}
}

// Delete removes key.
func (c *TTLCache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// Stats returns hit/miss counters.
func (c *TTLCache) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	total := c.hits + c.misses
	ratio := 0.0
	if total > 0 {
		ratio = float64(c.hits) / float64(total)
	}
	return Stats{
		Hits:      c.hits,
		Misses:    c.misses,
		Evictions: c.evictions,
		Entries:   len(c.entries),
		HitRatio:  ratio,
	}
}

// Close stops the background sweep.
func (c *TTLCache) Close() {
	c.stopOnce.Do(func() { close(c.stopCh) })
}

// evictOldest removes the least recently accessed entry. Caller holds the
// write lock.
func (c *TTLCache) evictOldest() {
	var oldestKey string
	var oldest time.Time
	for k, e := range c.entries {
		if oldestKey == "" || e.accessed.Before(oldest) {
			oldestKey = k
			oldest = e.accessed
		}
	}
	if oldestKey != "" {
		delete(c.entries, oldestKey)
		c.evictions++
	}
}

func (c *TTLCache) sweep() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-c.stopCh:
			return
		case <-ticker.C:
			now := time.Now()
			c.mu.Lock()
			for k, e := range c.entries {
				if now.After(e.expires) {
					delete(c.entries, k)
					c.evictions++
				}
			}
			c.mu.Unlock()
		}
	}
}
