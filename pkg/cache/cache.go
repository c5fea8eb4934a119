package cache

import (
	"sync"
	"time"
)

// Item represents a cached item with expiration
type Item[V any] struct {
	Value      V
	Expiration int64
}

// Expired checks if the cache item has expired at now (unix nanos)
func (item Item[V]) Expired(now int64) bool {
	if item.Expiration == 0 {
		return false
	}
	return now > item.Expiration
}

// Options configures a cache
type Options struct {
	// DefaultExpiration applies to Set; zero keeps items until evicted
	DefaultExpiration time.Duration
	// CleanupInterval is how often expired items are purged; zero disables
	CleanupInterval time.Duration
	// MaxItems bounds the cache; zero means unbounded
	MaxItems int
}

// Cache is a thread-safe in-memory cache with expiration
type Cache[V any] struct {
	items             map[string]Item[V]
	mu                sync.RWMutex
	defaultExpiration time.Duration
	maxItems          int
	onEvicted         func(string, V)
	now               func() time.Time

	stopOnce sync.Once
	stop     chan struct{}
}

// New creates a cache and starts its cleanup loop when configured
func New[V any](opts Options) *Cache[V] {
	c := &Cache[V]{
		items:             make(map[string]Item[V]),
		defaultExpiration: opts.DefaultExpiration,
		maxItems:          opts.MaxItems,
		now:               time.Now,
		stop:              make(chan struct{}),
	}

	if opts.CleanupInterval > 0 {
		go c.startCleanupTimer(opts.CleanupInterval)
	}
	return c
}

// Set adds an item to the cache with the default expiration
func (c *Cache[V]) Set(key string, value V) {
	c.SetWithExpiration(key, value, c.defaultExpiration)
}

// SetWithExpiration adds an item to the cache with a specific expiration time
func (c *Cache[V]) SetWithExpiration(key string, value V, d time.Duration) {
	var exp int64
	if d > 0 {
		exp = c.now().Add(d).UnixNano()
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.items[key]; !exists && c.maxItems > 0 && len(c.items) >= c.maxItems {
		c.evictOldest()
	}

	c.items[key] = Item[V]{Value: value, Expiration: exp}
}

// Get retrieves an unexpired item from the cache
func (c *Cache[V]) Get(key string) (V, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	item, found := c.items[key]
	if !found || item.Expired(c.now().UnixNano()) {
		var zero V
		return zero, false
	}
	return item.Value, true
}

// Delete removes an item from the cache
func (c *Cache[V]) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if item, found := c.items[key]; found && c.onEvicted != nil {
		c.onEvicted(key, item.Value)
	}
	delete(c.items, key)
}

// Flush removes all items from the cache
func (c *Cache[V]) Flush() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.onEvicted != nil {
		for k, v := range c.items {
			c.onEvicted(k, v.Value)
		}
	}
	c.items = make(map[string]Item[V])
}

// Count returns the number of items in the cache (including expired items)
func (c *Cache[V]) Count() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// SetOnEvicted sets the callback to be called when an item is evicted
func (c *Cache[V]) SetOnEvicted(f func(string, V)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onEvicted = f
}

// Stop ends the cleanup loop
func (c *Cache[V]) Stop() {
	c.stopOnce.Do(func() { close(c.stop) })
}

func (c *Cache[V]) startCleanupTimer(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.DeleteExpired()
		case <-c.stop:
			return
		}
	}
}

// DeleteExpired deletes all expired items from the cache
func (c *Cache[V]) DeleteExpired() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now().UnixNano()
	for k, v := range c.items {
		if v.Expired(now) {
			if c.onEvicted != nil {
				c.onEvicted(k, v.Value)
			}
			delete(c.items, k)
		}
	}
}

// evictOldest removes the item expiring first; items without expiration go
// last. Callers hold mu.
func (c *Cache[V]) evictOldest() {
	var oldestKey string
	var oldestTime int64
	found := false

	for k, v := range c.items {
		exp := v.Expiration
		if exp == 0 {
			exp = int64(^uint64(0) >> 1)
		}
		if !found || exp < oldestTime {
			oldestKey, oldestTime, found = k, exp, true
		}
	}
	if !found {
		return
	}

	if c.onEvicted != nil {
		c.onEvicted(oldestKey, c.items[oldestKey].Value)
	}
	delete(c.items, oldestKey)
}
