package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"FinScore/internal/domain/models"
	"FinScore/internal/domain/repository"
	pkgcache "FinScore/pkg/cache"
	applogger "FinScore/pkg/logger"
)

// ComputeFunc produces a fresh result on a miss.
type ComputeFunc func(ctx context.Context) (*models.AnalysisResult, error)

// ResultCache memoizes analysis results. L1 is an in-process LRU; L2 is an
// optional shared cache (Redis). At most one computation per key runs at a
// time, and a computation that started before InvalidateAll never stores its
// result.
type ResultCache struct {
	mem    *pkgcache.MemoryCache[string, Entry]
	l2     pkgcache.Service
	policy Policy
	now    func() time.Time

	group singleflight.Group

	// flushMu orders writes against InvalidateAll; gen counts flushes.
	flushMu sync.RWMutex
	gen     atomic.Uint64

	l2Timeout time.Duration
	log       *applogger.Logger
	metrics   repository.Metrics

	hits, misses, l2Hits, l2Errors     atomic.Uint64
	computations, coalesced, evictions atomic.Uint64
	invalidations, staleDropped        atomic.Uint64
}

type Option func(*ResultCache)

// WithL2 enables a shared second level.
func WithL2(svc pkgcache.Service) Option { return func(c *ResultCache) { c.l2 = svc } }

func WithClock(now func() time.Time) Option { return func(c *ResultCache) { c.now = now } }

func WithLogger(l *applogger.Logger) Option { return func(c *ResultCache) { c.log = l } }

func WithMetrics(m repository.Metrics) Option { return func(c *ResultCache) { c.metrics = m } }

// WithL2Timeout bounds each L2 round-trip.
func WithL2Timeout(d time.Duration) Option { return func(c *ResultCache) { c.l2Timeout = d } }

// NewResultCache creates a cache bounded to maxEntries.
func NewResultCache(maxEntries int, policy Policy, opts ...Option) *ResultCache {
	c := &ResultCache{
		policy:    policy,
		now:       time.Now,
		l2Timeout: 200 * time.Millisecond,
		log:       applogger.Nop(),
		metrics:   repository.NopMetrics{},
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.policy == nil {
		c.policy = FixedPolicy{TTL: 5 * time.Minute}
	}
	c.mem = pkgcache.NewMemoryCache[string, Entry](
		pkgcache.WithMemoryMaxSize(maxEntries),
		pkgcache.WithMemoryClock(c.now),
	)
	c.mem.OnEvict(func(string, Entry) {
		c.evictions.Add(1)
		c.metrics.RecordCacheEviction(1)
	})
	return c
}

// Get returns a live entry from L1, falling back to L2.
func (c *ResultCache) Get(ctx context.Context, key Key) (Entry, bool) {
	ks := key.String()
	if it, ok := c.mem.Get(ks); ok {
		c.hits.Add(1)
		c.metrics.RecordCacheLookup("l1", "hit")
		return it.Value, true
	}
	c.metrics.RecordCacheLookup("l1", "miss")

	if e, ok := c.getL2(ctx, key, ks); ok {
		c.hits.Add(1)
		c.l2Hits.Add(1)
		return e, true
	}
	c.misses.Add(1)
	return Entry{}, false
}

// Put stores value; a positive ttl overrides the policy default but never
// crosses a session boundary.
func (c *ResultCache) Put(ctx context.Context, key Key, value *models.AnalysisResult, ttl time.Duration) Entry {
	e, _ := c.store(ctx, key, value, ttl, c.gen.Load())
	return e
}

// GetOrCompute returns the cached value or runs fn once for all concurrent
// callers of the same key. cached reports whether the value came from cache.
// Each caller waits on its own ctx; the computation runs under the ctx of the
// caller that started it.
func (c *ResultCache) GetOrCompute(ctx context.Context, key Key, fn ComputeFunc) (res *models.AnalysisResult, cached bool, err error) {
	if e, ok := c.Get(ctx, key); ok {
		return e.Value, true, nil
	}
	ks := key.String()

	const maxAttempts = 3
	for attempt := 1; ; attempt++ {
		gen := c.gen.Load()
		flight := ks + "#" + strconv.FormatUint(gen, 10)
		ch := c.group.DoChan(flight, func() (interface{}, error) {
			if it, ok := c.mem.Get(ks); ok {
				return it.Value.Value, nil
			}
			c.computations.Add(1)
			v, err := fn(ctx)
			if err != nil {
				return nil, err
			}
			if v == nil {
				return nil, fmt.Errorf("compute %s: empty result", ks)
			}
			c.store(ctx, key, v, 0, gen)
			return v, nil
		})

		select {
		case r := <-ch:
			if r.Shared {
				c.coalesced.Add(1)
			}
			if r.Err != nil {
				// the leader's context ended but ours is still live: try again
				if r.Shared && isContextErr(r.Err) && ctx.Err() == nil && attempt < maxAttempts {
					continue
				}
				return nil, false, r.Err
			}
			return r.Val.(*models.AnalysisResult), false, nil
		case <-ctx.Done():
			return nil, false, ctx.Err()
		}
	}
}

// InvalidateAll drops every entry in both layers and returns the number of L1
// entries removed. In-flight computations will not store their results.
func (c *ResultCache) InvalidateAll(ctx context.Context) int {
	c.flushMu.Lock()
	c.gen.Add(1)
	n := c.mem.Purge()
	c.flushMu.Unlock()
	c.invalidations.Add(1)

	if c.l2 != nil {
		removed, err := c.l2.DeleteByPattern(ctx, pkgcache.BuildPattern(KeyPrefix))
		if err != nil {
			c.l2Errors.Add(1)
			c.metrics.RecordError("cache_l2_flush")
			c.log.Warn("l2 flush failed", applogger.Error(err))
		} else {
			c.log.Debug("l2 flushed", applogger.Int("removed", removed))
		}
	}
	c.log.Info("result cache invalidated", applogger.Int("removed", n), applogger.Int64("generation", int64(c.gen.Load())))
	return n
}

// InvalidateExpired removes expired L1 entries. L2 relies on native TTLs.
func (c *ResultCache) InvalidateExpired() int {
	return c.mem.RemoveExpired()
}

func (c *ResultCache) Stats() Stats {
	return Stats{
		Entries:            c.mem.Len(),
		Capacity:           c.mem.Cap(),
		Hits:               c.hits.Load(),
		Misses:             c.misses.Load(),
		L2Hits:             c.l2Hits.Load(),
		L2Errors:           c.l2Errors.Load(),
		Computations:       c.computations.Load(),
		Coalesced:          c.coalesced.Load(),
		Evictions:          c.evictions.Load(),
		Invalidations:      c.invalidations.Load(),
		StaleWritesDropped: c.staleDropped.Load(),
		Generation:         c.gen.Load(),
		L2Enabled:          c.l2 != nil,
	}
}

// store writes to L1 (and L2) unless a flush happened after gen was read.
func (c *ResultCache) store(ctx context.Context, key Key, value *models.AnalysisResult, ttl time.Duration, gen uint64) (Entry, bool) {
	now := c.now()
	e := Entry{Key: key, Value: value, CreatedAt: now, ExpiresAt: c.policy.ExpiresAt(now, ttl)}
	ks := key.String()

	c.flushMu.RLock()
	if c.gen.Load() != gen {
		c.flushMu.RUnlock()
		c.staleDropped.Add(1)
		c.log.Debug("dropping result computed before flush", applogger.String("key", ks))
		return e, false
	}
	c.mem.Set(ks, e, e.ExpiresAt)
	c.flushMu.RUnlock()

	c.putL2(ctx, ks, e, gen)
	return e, true
}

func (c *ResultCache) getL2(ctx context.Context, key Key, ks string) (Entry, bool) {
	if c.l2 == nil {
		return Entry{}, false
	}
	gen := c.gen.Load()
	ctx, cancel := context.WithTimeout(ctx, c.l2Timeout)
	defer cancel()

	var e Entry
	if err := c.l2.Get(ctx, ks, &e); err != nil {
		if errors.Is(err, pkgcache.ErrCacheMiss) {
			c.metrics.RecordCacheLookup("l2", "miss")
		} else {
			c.l2Errors.Add(1)
			c.metrics.RecordCacheLookup("l2", "error")
			c.log.Warn("l2 get failed", applogger.String("key", ks), applogger.Error(err))
		}
		return Entry{}, false
	}
	// never trust a shared entry beyond what the local policy allows
	now := c.now()
	if e.Value == nil || !now.Before(e.ExpiresAt) || !now.Before(c.policy.ExpiresAt(e.CreatedAt, 0)) {
		c.metrics.RecordCacheLookup("l2", "stale")
		return Entry{}, false
	}
	c.metrics.RecordCacheLookup("l2", "hit")
	e.Key = key

	c.flushMu.RLock()
	if c.gen.Load() == gen {
		c.mem.Set(ks, e, e.ExpiresAt)
	}
	c.flushMu.RUnlock()
	return e, true
}

func (c *ResultCache) putL2(ctx context.Context, ks string, e Entry, gen uint64) {
	if c.l2 == nil {
		return
	}
	ttl := e.ExpiresAt.Sub(e.CreatedAt)
	if ttl <= 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.l2Timeout)
	defer cancel()
	if err := c.l2.Set(ctx, ks, e, ttl); err != nil {
		c.l2Errors.Add(1)
		c.metrics.RecordError("cache_l2_set")
		c.log.Warn("l2 set failed", applogger.String("key", ks), applogger.Error(err))
		return
	}
	// a flush may have raced the write
	if c.gen.Load() != gen {
		_ = c.l2.Delete(ctx, ks)
	}
}

func isContextErr(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
