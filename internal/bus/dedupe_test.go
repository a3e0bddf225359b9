package bus

import (
	"fmt"
	"testing"
	"time"
)

func TestDedupeCacheDetectsRepeats(t *testing.T) {
	c := NewDedupeCache(time.Minute, 100)

	if c.IsDuplicate("a") {
		t.Error("first sighting reported as duplicate")
	}
	if !c.IsDuplicate("a") {
		t.Error("second sighting not reported as duplicate")
	}
	if c.IsDuplicate("b") {
		t.Error("distinct key reported as duplicate")
	}
}

func TestDedupeCacheExpiry(t *testing.T) {
	c := NewDedupeCache(20*time.Millisecond, 100)

	c.IsDuplicate("a")
	time.Sleep(40 * time.Millisecond)

	if c.IsDuplicate("a") {
		t.Error("expired key still reported as duplicate")
	}
}

func TestDedupeCacheBoundedSize(t *testing.T) {
	c := NewDedupeCache(time.Minute, 10)

	for i := 0; i < 50; i++ {
		c.IsDuplicate(fmt.Sprintf("key-%d", i))
	}

	if got := c.Len(); got > 10 {
		t.Errorf("cache holds %d keys, cap is 10", got)
	}
	// The newest key survives eviction.
	if !c.IsDuplicate("key-49") {
		t.Error("newest key was evicted")
	}
}

func TestDedupeCacheRefreshOnHit(t *testing.T) {
	c := NewDedupeCache(time.Minute, 2)

	c.IsDuplicate("a")
	c.IsDuplicate("b")
	c.IsDuplicate("a") // refresh: a becomes newest
	c.IsDuplicate("c") // evicts b, not a

	if !c.IsDuplicate("a") {
		t.Error("refreshed key was evicted")
	}
}
