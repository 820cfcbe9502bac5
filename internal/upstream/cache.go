package upstream

import (
	"sync"
	"time"
)

type cacheEntry struct {
	key       string
	value     []byte
	expiresAt time.Time
	prev      *cacheEntry
	next      *cacheEntry
}

// ResponseCache is a thread-safe LRU of raw provider responses with a
// per-entry TTL. Expired entries are dropped lazily on lookup.
//
// Each client owns its cache; nothing here is process-global.
type ResponseCache struct {
	mu       sync.Mutex
	capacity int
	ttl      time.Duration
	items    map[string]*cacheEntry
	head     *cacheEntry // head.next is the most recently used
	tail     *cacheEntry // tail.prev is the least recently used
	now      func() time.Time

	hits   int64
	misses int64
}

// NewResponseCache creates a cache holding at most capacity entries for ttl each.
func NewResponseCache(capacity int, ttl time.Duration) *ResponseCache {
	if capacity <= 0 {
		capacity = 1000
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	c := &ResponseCache{
		capacity: capacity,
		ttl:      ttl,
		items:    make(map[string]*cacheEntry, capacity),
		head:     &cacheEntry{},
		tail:     &cacheEntry{},
		now:      time.Now,
	}
	c.head.next = c.tail
	c.tail.prev = c.head
	return c
}

// Get returns the cached body for key when present and unexpired.
func (c *ResponseCache) Get(key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.items[key]
	if !ok {
		c.misses++
		return nil, false
	}
	if c.now().After(e.expiresAt) {
		c.remove(e)
		c.misses++
		return nil, false
	}
	c.moveToFront(e)
	c.hits++
	return e.value, true
}

// Add stores value under key, evicting the least recently used entry when
// the cache is full.
func (c *ResponseCache) Add(key string, value []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	exp := c.now().Add(c.ttl)
	if e, ok := c.items[key]; ok {
		e.value = value
		e.expiresAt = exp
		c.moveToFront(e)
		return
	}
	e := &cacheEntry{key: key, value: value, expiresAt: exp}
	c.addToFront(e)
	c.items[key] = e
	for len(c.items) > c.capacity {
		c.remove(c.tail.prev)
	}
}

// Len returns the number of entries, expired ones included.
func (c *ResponseCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// Stats returns the hit and miss counters.
func (c *ResponseCache) Stats() (hits, misses int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits, c.misses
}

// Clear drops every entry.
func (c *ResponseCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = make(map[string]*cacheEntry, c.capacity)
	c.head.next = c.tail
	c.tail.prev = c.head
}

func (c *ResponseCache) addToFront(e *cacheEntry) {
	e.prev = c.head
	e.next = c.head.next
	c.head.next.prev = e
	c.head.next = e
}

func (c *ResponseCache) unlink(e *cacheEntry) {
	e.prev.next = e.next
	e.next.prev = e.prev
}

func (c *ResponseCache) moveToFront(e *cacheEntry) {
	c.unlink(e)
	c.addToFront(e)
}

func (c *ResponseCache) remove(e *cacheEntry) {
	c.unlink(e)
	delete(c.items, e.key)
}
