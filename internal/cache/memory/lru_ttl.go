package memory

import (
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

type entry[V any] struct {
	value     V
	size      int
	expiresAt time.Time
}

// LRUTTL is a threadsafe cache with per-entry TTL, built on top of
// hashicorp/golang-lru/v2 for the recency-ordering and maxEntries
// eviction mechanics (the same library internal/store.Store already
// uses for its connection cache), with a byte budget and TTL layered
// on top since neither is something that library tracks itself.
type LRUTTL[K comparable, V any] struct {
	mu         sync.Mutex
	cache      *lru.Cache[K, entry[V]]
	maxBytes   int
	totalBytes int
	ttl        time.Duration
}

func NewLRUTTL[K comparable, V any](maxEntries int, maxBytes int, ttl time.Duration) *LRUTTL[K, V] {
	if maxEntries <= 0 {
		maxEntries = 1
	}
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	c := &LRUTTL[K, V]{maxBytes: maxBytes, ttl: ttl}
	cache, _ := lru.NewWithEvict[K, entry[V]](maxEntries, func(_ K, ev entry[V]) {
		c.totalBytes -= ev.size
		if c.totalBytes < 0 {
			c.totalBytes = 0
		}
	})
	c.cache = cache
	return c
}

func (c *LRUTTL[K, V]) Get(key K) (V, bool) {
	var zero V
	if c == nil {
		return zero, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	ent, ok := c.cache.Get(key)
	if !ok {
		return zero, false
	}
	if time.Now().After(ent.expiresAt) {
		c.cache.Remove(key)
		return zero, false
	}
	return ent.value, true
}

func (c *LRUTTL[K, V]) Set(key K, value V, sizeBytes int) {
	if c == nil {
		return
	}
	if sizeBytes < 0 {
		sizeBytes = 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if old, ok := c.cache.Peek(key); ok {
		c.totalBytes -= old.size
	}
	c.cache.Add(key, entry[V]{value: value, size: sizeBytes, expiresAt: time.Now().Add(c.ttl)})
	c.totalBytes += sizeBytes
	c.evictByBytesLocked()
}

func (c *LRUTTL[K, V]) Delete(key K) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache.Remove(key)
}

func (c *LRUTTL[K, V]) Clear() {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache.Purge()
	c.totalBytes = 0
}

// evictByBytesLocked drops the least recently used entries until the
// cache is back under its byte budget; maxEntries is already enforced
// by the underlying lru.Cache itself.
func (c *LRUTTL[K, V]) evictByBytesLocked() {
	if c.maxBytes <= 0 {
		return
	}
	for c.totalBytes > c.maxBytes {
		if _, _, ok := c.cache.RemoveOldest(); !ok {
			return
		}
	}
}
