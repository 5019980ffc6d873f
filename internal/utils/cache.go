package utils

import "sync"

// Cache is a simple concurrency-safe map used to memoize explorer lookups.
type Cache[V any] struct {
	mu    *sync.RWMutex
	items map[string]V
}

func NewCache[V any]() *Cache[V] {
	return &Cache[V]{
		mu:    &sync.RWMutex{},
		items: make(map[string]V),
	}
}

func (c *Cache[V]) Get(key string) (V, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.items[key]
	return v, ok
}

func (c *Cache[V]) Set(key string, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[key] = value
}

func (c *Cache[V]) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.items, key)
}

func (c *Cache[V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}
