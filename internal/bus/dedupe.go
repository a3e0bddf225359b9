package bus

import (
	"container/list"
	"sync"
	"time"
)

// DedupeCache remembers recently seen keys so webhook retries and bridge
// reconnect replays don't produce duplicate reply cycles. Entries expire
// after a TTL; total size is bounded with oldest-first eviction.
type DedupeCache struct {
	mu      sync.Mutex
	ttl     time.Duration
	max     int
	entries map[string]*list.Element
	order   *list.List // front = oldest
}

type dedupeEntry struct {
	key  string
	seen time.Time
}

// NewDedupeCache creates a cache holding at most max keys for ttl each.
func NewDedupeCache(ttl time.Duration, max int) *DedupeCache {
	return &DedupeCache{
		ttl:     ttl,
		max:     max,
		entries: make(map[string]*list.Element),
		order:   list.New(),
	}
}

// IsDuplicate reports whether key was seen within the TTL and records it.
func (c *DedupeCache) IsDuplicate(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()

	// Expire from the front (oldest first).
	for el := c.order.Front(); el != nil; {
		e := el.Value.(*dedupeEntry)
		if now.Sub(e.seen) < c.ttl {
			break
		}
		next := el.Next()
		c.order.Remove(el)
		delete(c.entries, e.key)
		el = next
	}

	if el, ok := c.entries[key]; ok {
		e := el.Value.(*dedupeEntry)
		e.seen = now
		c.order.MoveToBack(el)
		return true
	}

	// Evict oldest when at capacity.
	for c.order.Len() >= c.max {
		front := c.order.Front()
		c.order.Remove(front)
		delete(c.entries, front.Value.(*dedupeEntry).key)
	}

	c.entries[key] = c.order.PushBack(&dedupeEntry{key: key, seen: now})
	return false
}

// Len returns the number of tracked keys.
func (c *DedupeCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}
