package router

import (
	"container/list"
	"sync"
	"time"
)

// docCacheKey identifies one analyzed document.
type docCacheKey struct {
	StoragePath string
	Filename    string
}

type docCacheEntry struct {
	key       docCacheKey
	summary   string
	expiresAt time.Time
}

// DocCache memoizes per-document summaries so repeated requests against the
// same upload skip re-analysis. Bounded LRU with TTL, safe for concurrent use.
type DocCache struct {
	mu      sync.Mutex
	maxSize int
	ttl     time.Duration
	order   *list.List
	entries map[docCacheKey]*list.Element
}

// NewDocCache creates a cache holding up to maxSize summaries for ttl each.
func NewDocCache(maxSize int, ttl time.Duration) *DocCache {
	if maxSize <= 0 {
		maxSize = 128
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &DocCache{
		maxSize: maxSize,
		ttl:     ttl,
		order:   list.New(),
		entries: make(map[docCacheKey]*list.Element),
	}
}

// Get returns the cached summary for (storagePath, filename), if fresh.
func (c *DocCache) Get(storagePath, filename string) (string, bool) {
	key := docCacheKey{StoragePath: storagePath, Filename: filename}

	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.entries[key]
	if !ok {
		return "", false
	}
	entry := el.Value.(*docCacheEntry)
	if time.Now().After(entry.expiresAt) {
		c.order.Remove(el)
		delete(c.entries, key)
		return "", false
	}
	c.order.MoveToFront(el)
	return entry.summary, true
}

// Put stores a summary, evicting the least recently used entry when full.
func (c *DocCache) Put(storagePath, filename, summary string) {
	key := docCacheKey{StoragePath: storagePath, Filename: filename}

	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.entries[key]; ok {
		entry := el.Value.(*docCacheEntry)
		entry.summary = summary
		entry.expiresAt = time.Now().Add(c.ttl)
		c.order.MoveToFront(el)
		return
	}

	el := c.order.PushFront(&docCacheEntry{
		key:       key,
		summary:   summary,
		expiresAt: time.Now().Add(c.ttl),
	})
	c.entries[key] = el

	for c.order.Len() > c.maxSize {
		oldest := c.order.Back()
		if oldest == nil {
			break
		}
		c.order.Remove(oldest)
		delete(c.entries, oldest.Value.(*docCacheEntry).key)
	}
}

// Len reports the number of live entries, expired or not.
func (c *DocCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}
