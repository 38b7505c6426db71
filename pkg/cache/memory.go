package cache

import (
	"container/list"
	"sync"
	"time"
)

// memoryItem stores a cached value with its expiration.
type memoryItem[K comparable, V any] struct {
	key       K
	value     V
	createdAt time.Time
	expireAt  time.Time
}

func (m *memoryItem[K, V]) expired(now time.Time) bool {
	return !m.expireAt.IsZero() && !now.Before(m.expireAt)
}

// Item is a snapshot of one entry.
type Item[K comparable, V any] struct {
	Key       K
	Value     V
	CreatedAt time.Time
	ExpireAt  time.Time
}

// MemoryCache is a bounded in-process LRU with per-entry expiration.
// It is safe for concurrent use.
type MemoryCache[K comparable, V any] struct {
	mu      sync.Mutex
	items   map[K]*list.Element
	order   *list.List // front = most recently used
	maxSize int
	now     func() time.Time
	onEvict func(K, V)

	stop chan struct{}
	once sync.Once
}

// NewMemoryCache creates an LRU cache. A janitor goroutine runs only when a
// cleanup interval is configured; call Close to stop it.
func NewMemoryCache[K comparable, V any](opts ...MemoryOption) *MemoryCache[K, V] {
	cfg := &MemoryConfig{
		MaxSize: 1000,
		Now:     time.Now,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.MaxSize <= 0 {
		cfg.MaxSize = 1000
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	mc := &MemoryCache[K, V]{
		items:   make(map[K]*list.Element, cfg.MaxSize),
		order:   list.New(),
		maxSize: cfg.MaxSize,
		now:     cfg.Now,
		stop:    make(chan struct{}),
	}
	if cfg.CleanupInterval > 0 {
		go mc.cleanupExpired(cfg.CleanupInterval)
	}
	return mc
}

// OnEvict registers a callback for capacity evictions. It runs under the
// cache lock and must not call back into the cache.
func (mc *MemoryCache[K, V]) OnEvict(fn func(K, V)) {
	mc.mu.Lock()
	mc.onEvict = fn
	mc.mu.Unlock()
}

// Set stores value until expireAt; a zero expireAt never expires.
func (mc *MemoryCache[K, V]) Set(key K, value V, expireAt time.Time) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	now := mc.now()
	if el, ok := mc.items[key]; ok {
		it := el.Value.(*memoryItem[K, V])
		it.value = value
		it.createdAt = now
		it.expireAt = expireAt
		mc.order.MoveToFront(el)
		return
	}
	for len(mc.items) >= mc.maxSize {
		mc.evictLRU()
	}
	it := &memoryItem[K, V]{key: key, value: value, createdAt: now, expireAt: expireAt}
	mc.items[key] = mc.order.PushFront(it)
}

// SetTTL stores value for ttl; ttl <= 0 never expires.
func (mc *MemoryCache[K, V]) SetTTL(key K, value V, ttl time.Duration) {
	var exp time.Time
	if ttl > 0 {
		exp = mc.now().Add(ttl)
	}
	mc.Set(key, value, exp)
}

// Get returns a live entry and marks it recently used. Expired entries are
// removed on access.
func (mc *MemoryCache[K, V]) Get(key K) (Item[K, V], bool) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	el, ok := mc.items[key]
	if !ok {
		return Item[K, V]{}, false
	}
	it := el.Value.(*memoryItem[K, V])
	if it.expired(mc.now()) {
		mc.removeElement(el)
		return Item[K, V]{}, false
	}
	mc.order.MoveToFront(el)
	return snapshot(it), true
}

// Peek is Get without touching recency or removing expired entries.
func (mc *MemoryCache[K, V]) Peek(key K) (Item[K, V], bool) {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	el, ok := mc.items[key]
	if !ok {
		return Item[K, V]{}, false
	}
	return snapshot(el.Value.(*memoryItem[K, V])), true
}

func (mc *MemoryCache[K, V]) Delete(keys ...K) {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	for _, k := range keys {
		if el, ok := mc.items[k]; ok {
			mc.removeElement(el)
		}
	}
}

// Purge removes every entry and returns how many were removed.
func (mc *MemoryCache[K, V]) Purge() int {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	n := len(mc.items)
	mc.items = make(map[K]*list.Element, mc.maxSize)
	mc.order.Init()
	return n
}

// RemoveExpired drops entries whose expiration has passed.
func (mc *MemoryCache[K, V]) RemoveExpired() int {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	now := mc.now()
	removed := 0
	for el := mc.order.Back(); el != nil; {
		prev := el.Prev()
		if el.Value.(*memoryItem[K, V]).expired(now) {
			mc.removeElement(el)
			removed++
		}
		el = prev
	}
	return removed
}

func (mc *MemoryCache[K, V]) Len() int {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	return len(mc.items)
}

func (mc *MemoryCache[K, V]) Cap() int { return mc.maxSize }

// Keys lists keys from most to least recently used.
func (mc *MemoryCache[K, V]) Keys() []K {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	out := make([]K, 0, len(mc.items))
	for el := mc.order.Front(); el != nil; el = el.Next() {
		out = append(out, el.Value.(*memoryItem[K, V]).key)
	}
	return out
}

func (mc *MemoryCache[K, V]) evictLRU() {
	el := mc.order.Back()
	if el == nil {
		return
	}
	it := el.Value.(*memoryItem[K, V])
	mc.removeElement(el)
	if mc.onEvict != nil {
		mc.onEvict(it.key, it.value)
	}
}

func (mc *MemoryCache[K, V]) removeElement(el *list.Element) {
	it := mc.order.Remove(el).(*memoryItem[K, V])
	delete(mc.items, it.key)
}

func (mc *MemoryCache[K, V]) cleanupExpired(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			mc.RemoveExpired()
		case <-mc.stop:
			return
		}
	}
}

// Close stops the janitor.
func (mc *MemoryCache[K, V]) Close() error {
	mc.once.Do(func() { close(mc.stop) })
	return nil
}

func snapshot[K comparable, V any](it *memoryItem[K, V]) Item[K, V] {
	return Item[K, V]{Key: it.key, Value: it.value, CreatedAt: it.createdAt, ExpireAt: it.expireAt}
}
