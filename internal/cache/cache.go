// Package cache provides a size-bounded least-recently-used cache safe for
// concurrent use.
package cache

import (
	"container/list"
	"sync"
)

// Stats counts cache lookups since creation.
type Stats struct {
	Hits      uint64
	Misses    uint64
	Evictions uint64
}

// LRU is a strict least-recently-used cache. Both Get and Put refresh recency.
// A capacity of zero disables caching: Put is a no-op and Get always misses.
type LRU[K comparable, V any] struct {
	mu        sync.Mutex
	capacity  int
	evictList *list.List
	items     map[K]*list.Element
	stats     Stats
}

type entry[K comparable, V any] struct {
	key   K
	value V
}

func New[K comparable, V any](capacity int) *LRU[K, V] {
	if capacity < 0 {
		capacity = 0
	}
	return &LRU[K, V]{
		capacity:  capacity,
		evictList: list.New(),
		items:     make(map[K]*list.Element),
	}
}

func (c *LRU[K, V]) Get(key K) (value V, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if ele, hit := c.items[key]; hit {
		c.evictList.MoveToFront(ele)
		c.stats.Hits++
		return ele.Value.(*entry[K, V]).value, true
	}
	c.stats.Misses++
	return
}

func (c *LRU[K, V]) Put(key K, value V) {
	if c.capacity == 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if ele, hit := c.items[key]; hit {
		c.evictList.MoveToFront(ele)
		ele.Value.(*entry[K, V]).value = value
		return
	}

	c.items[key] = c.evictList.PushFront(&entry[K, V]{key, value})
	if c.evictList.Len() > c.capacity {
		c.removeOldest()
	}
}

func (c *LRU[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.evictList.Len()
}

func (c *LRU[K, V]) Cap() int { return c.capacity }

// Keys returns the cached keys, most recently used first.
func (c *LRU[K, V]) Keys() []K {
	c.mu.Lock()
	defer c.mu.Unlock()
	keys := make([]K, 0, c.evictList.Len())
	for e := c.evictList.Front(); e != nil; e = e.Next() {
		keys = append(keys, e.Value.(*entry[K, V]).key)
	}
	return keys
}

func (c *LRU[K, V]) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}

func (c *LRU[K, V]) removeOldest() {
	if ele := c.evictList.Back(); ele != nil {
		c.evictList.Remove(ele)
		delete(c.items, ele.Value.(*entry[K, V]).key)
		c.stats.Evictions++
	}
}
