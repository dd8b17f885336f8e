package eval

import (
	lru "github.com/hashicorp/golang-lru/v2"
)

// Cache is the evaluator's memoization surface. Implementations must be
// safe for use by a single evaluator; results are keyed by canonical
// query form.
type Cache interface {
	Get(key string) (float64, bool)
	Add(key string, value float64)
}

// lruCache adapts a fixed-size LRU to the Cache interface.
type lruCache struct {
	inner *lru.Cache[string, float64]
}

// NewLRUCache returns an LRU-backed cache holding up to size entries.
func NewLRUCache(size int) (Cache, error) {
	inner, err := lru.New[string, float64](size)
	if err != nil {
		return nil, err
	}
	return &lruCache{inner: inner}, nil
}

func (c *lruCache) Get(key string) (float64, bool) {
	return c.inner.Get(key)
}

func (c *lruCache) Add(key string, value float64) {
	c.inner.Add(key, value)
}
