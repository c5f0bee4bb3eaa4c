package cache

import (
	"container/list"
	"sync"
	"time"
)

type lruEntry[K comparable, V any] struct {
	key       K
	value     V
	expiresAt time.Time // zero means no expiry
}

func (e *lruEntry[K, V]) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && !now.Before(e.expiresAt)
}

// LRUCache is a thread-safe LRU cache with optional per-entry expiry.
// When the cache reaches its capacity, the least recently used item is evicted.
// Expired entries are dropped lazily on access and by Purge.
type LRUCache[K comparable, V any] struct {
	capacity int
	ttl      time.Duration
	items    map[K]*list.Element
	eviction *list.List
	mu       sync.Mutex
	now      func() time.Time
	onEvict  func(key K, value V)
}

// Option configures an LRUCache.
type Option func(*options)

type options struct {
	ttl time.Duration
	now func() time.Time
}

// WithTTL sets the default lifetime of entries added with Put. Zero disables expiry.
func WithTTL(ttl time.Duration) Option {
	return func(o *options) { o.ttl = ttl }
}

// WithClock overrides the time source, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// NewLRUCache creates a new LRU cache with the specified capacity.
// The capacity must be positive, otherwise it panics.
func NewLRUCache[K comparable, V any](capacity int, opts ...Option) *LRUCache[K, V] {
	if capacity <= 0 {
		panic("LRU cache capacity must be positive")
	}
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return &LRUCache[K, V]{
		capacity: capacity,
		ttl:      o.ttl,
		now:      o.now,
		items:    make(map[K]*list.Element),
		eviction: list.New(),
	}
}

// SetEvictCallback sets a callback invoked when items are evicted, expired or removed.
func (c *LRUCache[K, V]) SetEvictCallback(fn func(key K, value V)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onEvict = fn
}

// Get retrieves a live value and marks it as recently used.
func (c *LRUCache[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V
	elem, ok := c.items[key]
	if !ok {
		return zero, false
	}
	entry := elem.Value.(*lruEntry[K, V])
	if entry.expired(c.now()) {
		c.removeElement(elem)
		return zero, false
	}
	c.eviction.MoveToFront(elem)
	return entry.value, true
}

// Put adds or updates a value using the cache default TTL.
// Returns the previous value if it existed.
func (c *LRUCache[K, V]) Put(key K, value V) (V, bool) {
	return c.PutWithTTL(key, value, c.ttl)
}

// PutWithTTL adds or updates a value that expires after ttl. Zero ttl never expires.
func (c *LRUCache[K, V]) PutWithTTL(key K, value V, ttl time.Duration) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var expiresAt time.Time
	if ttl > 0 {
		expiresAt = c.now().Add(ttl)
	}

	if elem, ok := c.items[key]; ok {
		c.eviction.MoveToFront(elem)
		entry := elem.Value.(*lruEntry[K, V])
		old := entry.value
		entry.value = value
		entry.expiresAt = expiresAt
		return old, true
	}

	elem := c.eviction.PushFront(&lruEntry[K, V]{key: key, value: value, expiresAt: expiresAt})
	c.items[key] = elem

	if c.eviction.Len() > c.capacity {
		c.removeElement(c.eviction.Back())
	}

	var zero V
	return zero, false
}

// Remove removes an item from the cache.
func (c *LRUCache[K, V]) Remove(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.items[key]; ok {
		c.removeElement(elem)
		return elem.Value.(*lruEntry[K, V]).value, true
	}

	var zero V
	return zero, false
}

// Purge drops every expired entry and returns how many were dropped.
func (c *LRUCache[K, V]) Purge() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	n := 0
	for elem := c.eviction.Back(); elem != nil; {
		prev := elem.Prev()
		if elem.Value.(*lruEntry[K, V]).expired(now) {
			c.removeElement(elem)
			n++
		}
		elem = prev
	}
	return n
}

func (c *LRUCache[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.eviction.Len()
}

// Clear removes all items from the cache.
func (c *LRUCache[K, V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.onEvict != nil {
		for _, elem := range c.items {
			entry := elem.Value.(*lruEntry[K, V])
			c.onEvict(entry.key, entry.value)
		}
	}

	c.items = make(map[K]*list.Element)
	c.eviction.Init()
}

// Must be called with lock held.
func (c *LRUCache[K, V]) removeElement(elem *list.Element) {
	if elem == nil {
		return
	}
	c.eviction.Remove(elem)
	entry := elem.Value.(*lruEntry[K, V])
	delete(c.items, entry.key)

	if c.onEvict != nil {
		c.onEvict(entry.key, entry.value)
	}
}
