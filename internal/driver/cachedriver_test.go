package driver

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mraysmit/apex-sub000/internal/ports"
	"github.com/mraysmit/apex-sub000/internal/value"
)

func TestCacheSourceSeedThenResolve(t *testing.T) {
	drv, err := NewCacheDriverSource(map[string]any{"ttl-seconds": 60, "max-size": 10})
	require.NoError(t, err)
	src := drv.(*CacheSource)
	ctx := context.Background()

	src.Seed(ctx, "acct-1", ports.Record{"status": value.String("active")})

	rec, ok, err := src.Resolve(ctx, "accounts", value.String("acct-1"), nil)
	require.NoError(t, err)
	require.True(t, ok)
	status, _ := rec["status"].AsString()
	assert.Equal(t, "active", status)
}

func TestCacheSourceResolveMiss(t *testing.T) {
	drv, err := NewCacheDriverSource(nil)
	require.NoError(t, err)
	_, ok, err := drv.Resolve(context.Background(), "accounts", value.String("missing"), nil)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCacheSourceQueryUnsupported(t *testing.T) {
	drv, err := NewCacheDriverSource(nil)
	require.NoError(t, err)
	_, err = drv.Query(context.Background(), "", nil)
	assert.Error(t, err)
}

func TestCacheSourceBatchResolve(t *testing.T) {
	drv, err := NewCacheDriverSource(nil)
	require.NoError(t, err)
	src := drv.(*CacheSource)
	ctx := context.Background()
	src.Seed(ctx, "a", ports.Record{"v": value.Int64(1)})
	src.Seed(ctx, "b", ports.Record{"v": value.Int64(2)})

	out, err := src.BatchResolve(ctx, "ds", []value.Value{value.String("a"), value.String("b"), value.String("c")}, nil)
	require.NoError(t, err)
	assert.Len(t, out, 2)
}
