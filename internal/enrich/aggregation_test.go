package enrich

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mraysmit/apex-sub000/internal/driver"
	"github.com/mraysmit/apex-sub000/internal/evalctx"
	"github.com/mraysmit/apex-sub000/internal/ports"
	"github.com/mraysmit/apex-sub000/internal/value"
)

type aggDatasets struct {
	drivers map[string]ports.DataSourceDriver
}

func (a *aggDatasets) Driver(ref string) (ports.DataSourceDriver, bool) {
	d, ok := a.drivers[ref]
	return d, ok
}

func newTradesDataset(t *testing.T) *aggDatasets {
	t.Helper()
	d, err := driver.NewInline(map[string]any{
		"key-field": "id",
		"data": []any{
			map[string]any{"id": "1", "book": "EQ", "notional": 100},
			map[string]any{"id": "2", "book": "EQ", "notional": 200},
			map[string]any{"id": "3", "book": "FX", "notional": 50},
		},
	})
	require.NoError(t, err)
	return &aggDatasets{drivers: map[string]ports.DataSourceDriver{"trades": d}}
}

func TestAggregationSumWithClientSideFilter(t *testing.T) {
	ds := newTradesDataset(t)
	agg := NewAggregation("bookTotal", nil, "", "trades",
		map[string]string{"book": "'EQ'"}, AggSum, "notional", "total", false, ds)

	ctx := evalctx.New(map[string]value.Value{})
	require.NoError(t, agg.Execute(context.Background(), ctx))

	v, err := ctx.Root("total")
	require.NoError(t, err)
	n, ok := v.AsInt64()
	require.True(t, ok)
	assert.Equal(t, int64(300), n)
}

func TestAggregationCount(t *testing.T) {
	ds := newTradesDataset(t)
	agg := NewAggregation("tradeCount", nil, "", "trades", nil, AggCount, "", "count", false, ds)

	ctx := evalctx.New(map[string]value.Value{})
	require.NoError(t, agg.Execute(context.Background(), ctx))

	v, err := ctx.Root("count")
	require.NoError(t, err)
	n, ok := v.AsInt64()
	require.True(t, ok)
	assert.Equal(t, int64(3), n)
}

func TestAggregationUnknownDatasetFails(t *testing.T) {
	ds := newTradesDataset(t)
	agg := NewAggregation("x", nil, "", "missing", nil, AggCount, "", "count", false, ds)

	ctx := evalctx.New(map[string]value.Value{})
	err := agg.Execute(context.Background(), ctx)
	require.Error(t, err)
}
