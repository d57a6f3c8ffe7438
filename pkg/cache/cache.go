package cache

import (
	"context"
	"strings"
	"sync"
	"time"
)

type item[V any] struct {
	value     V
	expiresAt time.Time
}

func (it *item[V]) expired(now time.Time) bool {
	return !it.expiresAt.IsZero() && now.After(it.expiresAt)
}

// Cache is a thread-safe in-memory cache with TTL support.
// Expired entries are removed by a background sweep, which reports them to OnEvict.
type Cache[V any] struct {
	items      map[string]*item[V]
	mu         sync.RWMutex
	defaultTTL time.Duration
	onEvict    func(key string, value V)
	stop       chan struct{}
	stopOnce   sync.Once
}

type Option[V any] func(*Cache[V])

// WithOnEvict registers a callback run for entries removed by expiry or Delete.
// It runs outside the cache lock.
func WithOnEvict[V any](fn func(key string, value V)) Option[V] {
	return func(c *Cache[V]) { c.onEvict = fn }
}

func New[V any](defaultTTL time.Duration, opts ...Option[V]) *Cache[V] {
	c := &Cache[V]{
		items:      make(map[string]*item[V]),
		defaultTTL: defaultTTL,
		stop:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}

	interval := defaultTTL / 2
	if interval < time.Second {
		interval = time.Second
	}
	go c.cleanup(interval)

	return c
}

func (c *Cache[V]) Get(key string) (V, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	it, ok := c.items[key]
	if !ok || it.expired(time.Now()) {
		var zero V
		return zero, false
	}
	return it.value, true
}

// Touch extends the entry's lifetime by the default TTL.
func (c *Cache[V]) Touch(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	it, ok := c.items[key]
	if !ok || it.expired(time.Now()) {
		return false
	}
	it.expiresAt = time.Now().Add(c.defaultTTL)
	return true
}

func (c *Cache[V]) Set(key string, value V) {
	c.SetWithTTL(key, value, c.defaultTTL)
}

// SetWithTTL stores value; ttl <= 0 never expires.
func (c *Cache[V]) SetWithTTL(key string, value V, ttl time.Duration) {
	it := &item[V]{value: value}
	if ttl > 0 {
		it.expiresAt = time.Now().Add(ttl)
	}

	c.mu.Lock()
	c.items[key] = it
	c.mu.Unlock()
}

// GetOrSet returns the cached value or stores the result of fallback.
func (c *Cache[V]) GetOrSet(ctx context.Context, key string, fallback func(context.Context) (V, error)) (V, error) {
	if v, ok := c.Get(key); ok {
		return v, nil
	}
	v, err := fallback(ctx)
	if err != nil {
		return v, err
	}
	c.Set(key, v)
	return v, nil
}

func (c *Cache[V]) Delete(key string) {
	c.mu.Lock()
	it, ok := c.items[key]
	delete(c.items, key)
	c.mu.Unlock()

	if ok && c.onEvict != nil {
		c.onEvict(key, it.value)
	}
}

// Invalidate drops every key with the given prefix without running OnEvict.
func (c *Cache[V]) Invalidate(prefix string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for key := range c.items {
		if strings.HasPrefix(key, prefix) {
			delete(c.items, key)
		}
	}
}

// Clear removes every entry, running OnEvict for each.
func (c *Cache[V]) Clear() {
	c.mu.Lock()
	items := c.items
	c.items = make(map[string]*item[V])
	c.mu.Unlock()

	if c.onEvict != nil {
		for key, it := range items {
			c.onEvict(key, it.value)
		}
	}
}

func (c *Cache[V]) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// Sweep removes expired entries now.
func (c *Cache[V]) Sweep() {
	now := time.Now()
	type evicted struct {
		key   string
		value V
	}
	var gone []evicted

	c.mu.Lock()
	for key, it := range c.items {
		if it.expired(now) {
			gone = append(gone, evicted{key, it.value})
			delete(c.items, key)
		}
	}
	c.mu.Unlock()

	if c.onEvict != nil {
		for _, e := range gone {
			c.onEvict(e.key, e.value)
		}
	}
}

func (c *Cache[V]) cleanup(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.Sweep()
		case <-c.stop:
			return
		}
	}
}

// Stop stops the cleanup goroutine
func (c *Cache[V]) Stop() {
	c.stopOnce.Do(func() { close(c.stop) })
}
