package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mraysmit/apex-sub000/internal/value"
)

func TestGetMissThenResolvePopulates(t *testing.T) {
	c := New(DefaultPolicy(), nil)
	ctx := context.Background()

	_, ok := c.Get(ctx, "k1")
	assert.False(t, ok)

	calls := 0
	v, found, err := c.Resolve(ctx, "k1", func() (value.Value, bool, error) {
		calls++
		return value.String("hello"), true, nil
	})
	require.NoError(t, err)
	assert.True(t, found)
	s, _ := v.AsString()
	assert.Equal(t, "hello", s)

	v2, ok := c.Get(ctx, "k1")
	assert.True(t, ok)
	s2, _ := v2.AsString()
	assert.Equal(t, "hello", s2)
	assert.Equal(t, 1, calls)
}

func TestResolveLoaderNotFoundDoesNotCache(t *testing.T) {
	c := New(DefaultPolicy(), nil)
	ctx := context.Background()

	_, found, err := c.Resolve(ctx, "missing", func() (value.Value, bool, error) {
		return value.Value{}, false, nil
	})
	require.NoError(t, err)
	assert.False(t, found)

	_, ok := c.Get(ctx, "missing")
	assert.False(t, ok)
}

func TestInvalidateRemovesKey(t *testing.T) {
	c := New(DefaultPolicy(), nil)
	ctx := context.Background()
	c.Put(ctx, "a", value.Int64(1))

	_, ok := c.Get(ctx, "a")
	assert.True(t, ok)

	c.Invalidate(ctx, "a")
	_, ok = c.Get(ctx, "a")
	assert.False(t, ok)
}

func TestInvalidatePatternPrefixMatch(t *testing.T) {
	c := New(DefaultPolicy(), nil)
	ctx := context.Background()
	c.Put(ctx, "trade:1", value.Int64(1))
	c.Put(ctx, "trade:2", value.Int64(2))
	c.Put(ctx, "account:1", value.Int64(3))

	c.InvalidatePattern(ctx, "trade:*")

	_, ok := c.Get(ctx, "trade:1")
	assert.False(t, ok)
	_, ok = c.Get(ctx, "trade:2")
	assert.False(t, ok)
	_, ok = c.Get(ctx, "account:1")
	assert.True(t, ok)
}

func TestStatsTracksHitsAndMisses(t *testing.T) {
	c := New(DefaultPolicy(), nil)
	ctx := context.Background()
	c.Put(ctx, "k", value.Int64(1))

	c.Get(ctx, "k")
	c.Get(ctx, "nope")

	hits, misses := c.Stats()
	assert.Equal(t, int64(1), hits)
	assert.Equal(t, int64(1), misses)
}

func TestTTLExpiry(t *testing.T) {
	policy := Policy{TTL: 10 * time.Millisecond, MaxSize: 10, Enabled: true}
	c := New(policy, nil)
	ctx := context.Background()
	c.Put(ctx, "k", value.Int64(1))

	time.Sleep(30 * time.Millisecond)

	_, ok := c.Get(ctx, "k")
	assert.False(t, ok)
}
