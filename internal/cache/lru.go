package cache

import (
	"context"
	"sync"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/hupe1980/sparsego/internal/resource"
)

// maxEntries bounds the entry count of the underlying LRU. Eviction is
// normally driven by the byte capacity long before this is reached.
const maxEntries = 1 << 20

// LRUBlockCache is a byte-capacity bounded LRU BlockCache.
type LRUBlockCache struct {
	mu       sync.Mutex // serializes Set so the byte budget is enforced exactly
	capacity int64
	size     atomic.Int64
	lru      *lru.Cache[CacheKey, []byte]
	rc       *resource.Controller

	hits   atomic.Int64
	misses atomic.Int64
}

// NewLRUBlockCache creates a new LRU cache with the given capacity in bytes.
// If rc is provided, cached bytes are accounted against its memory budget.
func NewLRUBlockCache(capacity int64, rc *resource.Controller) *LRUBlockCache {
	c := &LRUBlockCache{
		capacity: capacity,
		rc:       rc,
	}
	c.lru, _ = lru.NewWithEvict[CacheKey, []byte](maxEntries, c.onEvict)
	return c
}

func (c *LRUBlockCache) onEvict(_ CacheKey, b []byte) {
	n := int64(len(b))
	c.size.Add(-n)
	c.rc.ReleaseMemory(n)
}

// Get returns a cached block.
func (c *LRUBlockCache) Get(_ context.Context, key CacheKey) ([]byte, bool) {
	if b, ok := c.lru.Get(key); ok {
		c.hits.Add(1)
		return b, true
	}
	c.misses.Add(1)
	return nil, false
}

// Set caches a block. Blocks larger than the capacity are not cached.
func (c *LRUBlockCache) Set(_ context.Context, key CacheKey, b []byte) {
	itemSize := int64(len(b))
	if itemSize > c.capacity {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	// Blocks are immutable, so an existing entry already holds the same bytes.
	if c.lru.Contains(key) {
		return
	}

	for c.size.Load()+itemSize > c.capacity {
		if _, _, ok := c.lru.RemoveOldest(); !ok {
			break
		}
	}

	if err := c.rc.AcquireMemory(itemSize); err != nil {
		return
	}

	c.size.Add(itemSize)
	c.lru.Add(key, b)
}

// Invalidate removes entries matching the predicate.
func (c *LRUBlockCache) Invalidate(predicate func(key CacheKey) bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, k := range c.lru.Keys() {
		if predicate(k) {
			c.lru.Remove(k)
		}
	}
}

// Close drops every entry and returns its memory to the controller.
func (c *LRUBlockCache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.lru.Purge()
	return nil
}

// Stats returns cache statistics.
func (c *LRUBlockCache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

// Size returns the number of cached bytes.
func (c *LRUBlockCache) Size() int64 {
	return c.size.Load()
}

// Len returns the number of cached blocks.
func (c *LRUBlockCache) Len() int {
	return c.lru.Len()
}
