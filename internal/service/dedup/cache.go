package dedup

import (
	"container/list"
	"sync"
	"time"
)

// TTLCache is a bounded in-memory set of recently seen keys. Entries
// expire after a TTL and the oldest tenth is evicted when an insert
// would exceed capacity. It is advisory only; the durable store stays
// the source of truth.
type TTLCache struct {
	mu      sync.Mutex
	maxSize int
	ttl     time.Duration
	order   *list.List // oldest at front
	entries map[string]*list.Element

	now func() time.Time
}

type cacheEntry struct {
	key        string
	insertedAt time.Time
}

func NewTTLCache(maxSize int, ttl time.Duration) *TTLCache {
	if maxSize <= 0 {
		maxSize = 1
	}
	return &TTLCache{
		maxSize: maxSize,
		ttl:     ttl,
		order:   list.New(),
		entries: make(map[string]*list.Element),
		now:     time.Now,
	}
}

func (c *TTLCache) Add(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.evictExpired()

	if el, ok := c.entries[key]; ok {
		el.Value.(*cacheEntry).insertedAt = c.now()
		c.order.MoveToBack(el)
		return
	}

	if c.order.Len() >= c.maxSize {
		// Drop the oldest 10% in one batch to avoid evicting on
		// every subsequent insert.
		drop := c.maxSize / 10
		if drop < 1 {
			drop = 1
		}
		for i := 0; i < drop && c.order.Len() > 0; i++ {
			c.removeElement(c.order.Front())
		}
	}

	c.entries[key] = c.order.PushBack(&cacheEntry{key: key, insertedAt: c.now()})
}

func (c *TTLCache) Contains(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.entries[key]
	if !ok {
		return false
	}

	if c.expired(el.Value.(*cacheEntry)) {
		c.removeElement(el)
		return false
	}
	return true
}

func (c *TTLCache) Remove(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.entries[key]; ok {
		c.removeElement(el)
	}
}

func (c *TTLCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

// EvictExpired drops all expired entries. Called by the cleanup sweep.
func (c *TTLCache) EvictExpired() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.evictExpired()
}

func (c *TTLCache) evictExpired() {
	// Entries are ordered by insertion time, so stop at the first
	// one still alive.
	for el := c.order.Front(); el != nil; {
		entry := el.Value.(*cacheEntry)
		if !c.expired(entry) {
			break
		}
		next := el.Next()
		c.removeElement(el)
		el = next
	}
}

func (c *TTLCache) expired(e *cacheEntry) bool {
	return c.ttl > 0 && c.now().Sub(e.insertedAt) > c.ttl
}

func (c *TTLCache) removeElement(el *list.Element) {
	delete(c.entries, el.Value.(*cacheEntry).key)
	c.order.Remove(el)
}
