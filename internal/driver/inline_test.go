package driver

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mraysmit/apex-sub000/internal/value"
)

func newInlineFixture(t *testing.T) *Inline {
	t.Helper()
	d, err := NewInline(map[string]any{
		"key-field": "currency",
		"data": []any{
			map[string]any{"currency": "USD", "decimalPlaces": 2},
			map[string]any{"currency": "JPY", "decimalPlaces": 0},
		},
	})
	require.NoError(t, err)
	return d.(*Inline)
}

func TestInlineResolveFound(t *testing.T) {
	d := newInlineFixture(t)
	ctx := context.Background()

	rec, ok, err := d.Resolve(ctx, "currencies", value.String("USD"), nil)
	require.NoError(t, err)
	require.True(t, ok)
	dp, _ := rec["decimalPlaces"].AsInt64()
	assert.Equal(t, int64(2), dp)
}

func TestInlineResolveNotFound(t *testing.T) {
	d := newInlineFixture(t)
	_, ok, err := d.Resolve(context.Background(), "currencies", value.String("EUR"), nil)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestInlineResolveWithFilterExcludesNonMatching(t *testing.T) {
	d := newInlineFixture(t)
	params := map[string]value.Value{"filter.decimalPlaces": value.Int64(0)}

	_, ok, err := d.Resolve(context.Background(), "currencies", value.String("USD"), params)
	require.NoError(t, err)
	assert.False(t, ok)

	rec, ok, err := d.Resolve(context.Background(), "currencies", value.String("JPY"), params)
	require.NoError(t, err)
	require.True(t, ok)
	cur, _ := rec["currency"].AsString()
	assert.Equal(t, "JPY", cur)
}

func TestInlineBatchResolve(t *testing.T) {
	d := newInlineFixture(t)
	out, err := d.BatchResolve(context.Background(), "currencies",
		[]value.Value{value.String("USD"), value.String("JPY"), value.String("GBP")}, nil)
	require.NoError(t, err)
	assert.Len(t, out, 2)
	_, ok := out["GBP"]
	assert.False(t, ok)
}

func TestInlineCapabilities(t *testing.T) {
	d := newInlineFixture(t)
	caps := d.Capabilities()
	assert.True(t, caps.SupportsBatch)
	assert.True(t, caps.SupportsFilter)
	assert.True(t, caps.SupportsComposite)
}

func TestNewInlineMissingKeyFieldFails(t *testing.T) {
	_, err := NewInline(map[string]any{"data": []any{}})
	assert.Error(t, err)
}
