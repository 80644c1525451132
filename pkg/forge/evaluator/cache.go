package evaluator

import (
	"github.com/hashicorp/golang-lru/simplelru"
)

// DefaultCacheCapacity is the number of AST nodes whose results are kept.
const DefaultCacheCapacity = 1000

// boundedCache is a capacity-limited LRU map. A capacity of zero or less
// disables it: every get misses and set does nothing.
type boundedCache[K comparable, V any] struct {
	lru      *simplelru.LRU
	capacity int
}

// newBoundedCache creates a cache holding at most capacity entries.
func newBoundedCache[K comparable, V any](capacity int) *boundedCache[K, V] {
	c := &boundedCache[K, V]{capacity: capacity}
	if capacity > 0 {
		// NewLRU only fails for a non-positive size
		c.lru, _ = simplelru.NewLRU(capacity, nil)
	}
	return c
}

// get returns the value for key and marks it most recently used.
func (c *boundedCache[K, V]) get(key K) (V, bool) {
	var zero V
	if c.lru == nil {
		return zero, false
	}
	v, ok := c.lru.Get(key)
	if !ok {
		return zero, false
	}
	return v.(V), true
}

// set stores value under key, evicting the least recently used entry when
// the cache is full and key is new.
func (c *boundedCache[K, V]) set(key K, value V) {
	if c.lru == nil {
		return
	}
	c.lru.Add(key, value)
}

// has reports whether key is present without touching its recency.
func (c *boundedCache[K, V]) has(key K) bool {
	if c.lru == nil {
		return false
	}
	return c.lru.Contains(key)
}

func (c *boundedCache[K, V]) len() int {
	if c.lru == nil {
		return 0
	}
	return c.lru.Len()
}

func (c *boundedCache[K, V]) purge() {
	if c.lru != nil {
		c.lru.Purge()
	}
}

// CacheStats describes the evaluator's memoization cache.
type CacheStats struct {
	Capacity int
	Entries  int
	Hits     uint64
	Misses   uint64
}
