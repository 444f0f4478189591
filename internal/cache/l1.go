// Package cache implements the tiered cache of §4.3: an in-process L1
// (hashicorp/golang-lru's Expirable variant gives capacity + TTL + LRU
// eviction directly) and an optional L2 CacheDriver, composed by L1.Get
// with single-flight deduplication to prevent thundering herds (§5).
package cache

import (
	"context"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/sync/singleflight"

	"github.com/mraysmit/apex-sub000/internal/ports"
	"github.com/mraysmit/apex-sub000/internal/value"
)

// Policy is the per-dataset cache policy of §4.3.
type Policy struct {
	TTL                  time.Duration
	Enabled              bool
	MaxSize              int
	PreloadOnStartup     bool
	RefreshAheadFraction float64 // in (0.0, 1.0)
}

// DefaultPolicy matches §4.3's stated defaults.
func DefaultPolicy() Policy {
	return Policy{TTL: time.Hour, Enabled: true, MaxSize: 10_000}
}

// L1 is the per-process tier. Resolve is the single entry point: it
// consults L1, then L2 if configured, then falls through to the supplied
// loader (the driver's resolve), populating both tiers on a miss.
type L1 struct {
	policy Policy
	store  *lru.LRU[string, value.Value]
	l2     ports.CacheDriver

	group singleflight.Group
	hits  atomic.Int64
	misses atomic.Int64
}

// New builds an L1 cache, optionally backed by an L2 driver.
func New(policy Policy, l2 ports.CacheDriver) *L1 {
	maxSize := policy.MaxSize
	if maxSize <= 0 {
		maxSize = 10_000
	}
	return &L1{
		policy: policy,
		store:  lru.NewLRU[string, value.Value](maxSize, nil, policy.TTL),
		l2:     l2,
	}
}

// Get returns a cached value without invoking the loader.
func (c *L1) Get(ctx context.Context, key string) (value.Value, bool) {
	if v, ok := c.store.Get(key); ok {
		c.hits.Add(1)
		return v, true
	}
	if c.l2 != nil {
		if v, ok, err := c.l2.Get(ctx, key); err == nil && ok {
			c.store.Add(key, v)
			c.hits.Add(1)
			return v, true
		}
	}
	c.misses.Add(1)
	return value.Value{}, false
}

// Resolve implements the full ordering of §4.3: L1 -> L2 -> loader, with
// single-flight deduplication keyed on the cache key so concurrent
// resolves for the same key share one upstream call.
func (c *L1) Resolve(ctx context.Context, key string, loader func() (value.Value, bool, error)) (value.Value, bool, error) {
	if v, ok := c.Get(ctx, key); ok {
		return v, true, nil
	}
	result, err, _ := c.group.Do(key, func() (any, error) {
		v, found, err := loader()
		if err != nil {
			return nil, err
		}
		if found {
			c.Put(ctx, key, v)
		}
		return resolveResult{v: v, found: found}, nil
	})
	if err != nil {
		return value.Value{}, false, err
	}
	r := result.(resolveResult)
	return r.v, r.found, nil
}

type resolveResult struct {
	v     value.Value
	found bool
}

// Put populates both tiers.
func (c *L1) Put(ctx context.Context, key string, v value.Value) {
	c.store.Add(key, v)
	if c.l2 != nil {
		_ = c.l2.Put(ctx, key, v, c.policy.TTL)
	}
}

// Invalidate removes key from both tiers.
func (c *L1) Invalidate(ctx context.Context, key string) {
	c.store.Remove(key)
	if c.l2 != nil {
		_ = c.l2.Invalidate(ctx, key)
	}
}

// InvalidatePattern removes every L1 key matching a simple glob-style
// pattern ("prefix*") and forwards to L2 if configured.
func (c *L1) InvalidatePattern(ctx context.Context, pattern string) {
	for _, k := range c.store.Keys() {
		if matchPattern(pattern, k) {
			c.store.Remove(k)
		}
	}
	if c.l2 != nil {
		_ = c.l2.InvalidatePattern(ctx, pattern)
	}
}

func matchPattern(pattern, key string) bool {
	if pattern == "" || pattern == "*" {
		return true
	}
	if len(pattern) > 0 && pattern[len(pattern)-1] == '*' {
		prefix := pattern[:len(pattern)-1]
		return len(key) >= len(prefix) && key[:len(prefix)] == prefix
	}
	return pattern == key
}

// Stats returns hit/miss counters.
func (c *L1) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}
