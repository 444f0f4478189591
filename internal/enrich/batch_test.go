package enrich

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mraysmit/apex-sub000/internal/evalctx"
	"github.com/mraysmit/apex-sub000/internal/value"
)

func TestBatchEnrichmentAppliesPerElementPreservingOrder(t *testing.T) {
	calc, err := NewCalculation("double", nil, "", "item * 2", "item", true)
	require.NoError(t, err)

	batch := NewBatchEnrichment("doubleAll", nil, "items", "item", calc)

	ctx := evalctx.New(map[string]value.Value{
		"items": value.List([]value.Value{value.Int64(1), value.Int64(2), value.Int64(3)}),
	})

	require.NoError(t, batch.Execute(context.Background(), ctx))

	v, err := ctx.Root("items")
	require.NoError(t, err)
	items, ok := v.AsList()
	require.True(t, ok)
	require.Len(t, items, 3)

	for i, want := range []int64{2, 4, 6} {
		n, ok := items[i].AsInt64()
		require.True(t, ok)
		assert.Equal(t, want, n)
	}
}

func TestBatchEnrichmentRejectsNonCollection(t *testing.T) {
	calc, err := NewCalculation("double", nil, "", "item * 2", "item", true)
	require.NoError(t, err)
	batch := NewBatchEnrichment("doubleAll", nil, "items", "item", calc)

	ctx := evalctx.New(map[string]value.Value{"items": value.Int64(1)})
	err = batch.Execute(context.Background(), ctx)
	require.Error(t, err)
}
