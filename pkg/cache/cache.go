// Package cache provides a small string cache behind an explicit interface so
// callers own the instance instead of sharing module-level state. Two
// implementations exist: an in-process LRU with TTL, and a Redis-backed cache
// for multi-instance deployments.
package cache

import (
	"container/list"
	"context"
	"sync"
	"time"
)

// Cache is a bounded key/value cache. Get's second return is false on miss or
// expiry. Implementations must be safe for concurrent use.
type Cache interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Evict(ctx context.Context, key string) error
}

type lruEntry struct {
	key       string
	value     string
	expiresAt time.Time
}

// LRU is an in-process cache bounded by capacity, evicting the least recently
// used entry on overflow and expiring entries after ttl.
type LRU struct {
	mu       sync.Mutex
	capacity int
	ttl      time.Duration
	order    *list.List
	items    map[string]*list.Element
	now      func() time.Time
}

// NewLRU builds an LRU cache. capacity must be positive; ttl of zero disables
// expiry.
func NewLRU(capacity int, ttl time.Duration) *LRU {
	if capacity <= 0 {
		capacity = 1
	}
	return &LRU{
		capacity: capacity,
		ttl:      ttl,
		order:    list.New(),
		items:    make(map[string]*list.Element),
		now:      time.Now,
	}
}

func (c *LRU) Get(_ context.Context, key string) (string, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	el, ok := c.items[key]
	if !ok {
		return "", false, nil
	}
	entry := el.Value.(*lruEntry)
	if c.ttl > 0 && c.now().After(entry.expiresAt) {
		c.remove(el)
		return "", false, nil
	}
	c.order.MoveToFront(el)
	return entry.value, true, nil
}

func (c *LRU) Set(_ context.Context, key, value string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.items[key]; ok {
		entry := el.Value.(*lruEntry)
		entry.value = value
		entry.expiresAt = c.now().Add(c.ttl)
		c.order.MoveToFront(el)
		return nil
	}
	if c.order.Len() >= c.capacity {
		if oldest := c.order.Back(); oldest != nil {
			c.remove(oldest)
		}
	}
	el := c.order.PushFront(&lruEntry{key: key, value: value, expiresAt: c.now().Add(c.ttl)})
	c.items[key] = el
	return nil
}

func (c *LRU) Evict(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.items[key]; ok {
		c.remove(el)
	}
	return nil
}

// Len reports the number of live entries, counting expired but uncollected
// ones.
func (c *LRU) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

func (c *LRU) remove(el *list.Element) {
	entry := el.Value.(*lruEntry)
	c.order.Remove(el)
	delete(c.items, entry.key)
}
