package lookup

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mraysmit/apex-sub000/internal/cache"
	"github.com/mraysmit/apex-sub000/internal/driver"
	"github.com/mraysmit/apex-sub000/internal/evalctx"
	"github.com/mraysmit/apex-sub000/internal/ports"
	"github.com/mraysmit/apex-sub000/internal/value"
)

type fakeDatasets struct {
	drivers map[string]ports.DataSourceDriver
}

func (f *fakeDatasets) Driver(ref string) (ports.DataSourceDriver, bool) {
	d, ok := f.drivers[ref]
	return d, ok
}

func newCurrencyDataset(t *testing.T) *fakeDatasets {
	t.Helper()
	d, err := driver.NewInline(map[string]any{
		"key-field": "currency",
		"data": []any{
			map[string]any{"currency": "USD", "decimalPlaces": 2, "region": "US"},
			map[string]any{"currency": "JPY", "decimalPlaces": 0, "region": "JP"},
		},
	})
	require.NoError(t, err)
	return &fakeDatasets{drivers: map[string]ports.DataSourceDriver{"currencies": d}}
}

func TestExecuteAppliesFieldMappings(t *testing.T) {
	ds := newCurrencyDataset(t)
	exec := New(ds, cache.New(cache.DefaultPolicy(), nil))

	ctx := evalctx.New(map[string]value.Value{"currency": value.String("USD")})
	decl := Declaration{
		ID:             "currencyLookup",
		DatasetRef:     "currencies",
		KeyExpressions: []KeyComponent{{Expression: "currency"}},
		MissingData:    PolicyFail,
		FieldMappings: []FieldMapping{
			{SourceField: "decimalPlaces", TargetField: "currencyDecimalPlaces"},
			{SourceField: "region", TargetField: "currencyRegion"},
		},
	}

	result := exec.Execute(context.Background(), decl, ctx)
	require.NoError(t, result.Err)
	assert.Equal(t, OutcomeApplied, result.Outcome)

	v, err := ctx.Root("currencyDecimalPlaces")
	require.NoError(t, err)
	dp, _ := v.AsInt64()
	assert.Equal(t, int64(2), dp)
}

func TestExecuteSkipsOnFalseCondition(t *testing.T) {
	ds := newCurrencyDataset(t)
	exec := New(ds, nil)

	ctx := evalctx.New(map[string]value.Value{"currency": value.String("USD")})
	decl := Declaration{
		ID:             "currencyLookup",
		DatasetRef:     "currencies",
		Condition:      "false",
		KeyExpressions: []KeyComponent{{Expression: "currency"}},
	}

	result := exec.Execute(context.Background(), decl, ctx)
	assert.Equal(t, OutcomeSkipped, result.Outcome)
}

func TestExecuteMissingDataFailPolicy(t *testing.T) {
	ds := newCurrencyDataset(t)
	exec := New(ds, nil)

	ctx := evalctx.New(map[string]value.Value{"currency": value.String("EUR")})
	decl := Declaration{
		ID:             "currencyLookup",
		DatasetRef:     "currencies",
		KeyExpressions: []KeyComponent{{Expression: "currency"}},
		MissingData:    PolicyFail,
	}

	result := exec.Execute(context.Background(), decl, ctx)
	assert.Equal(t, OutcomeError, result.Outcome)
	assert.Error(t, result.Err)
}

func TestExecuteMissingDataContinuePolicyWritesNulls(t *testing.T) {
	ds := newCurrencyDataset(t)
	exec := New(ds, nil)

	ctx := evalctx.New(map[string]value.Value{"currency": value.String("EUR")})
	decl := Declaration{
		ID:             "currencyLookup",
		DatasetRef:     "currencies",
		KeyExpressions: []KeyComponent{{Expression: "currency"}},
		MissingData:    PolicyContinue,
		FieldMappings: []FieldMapping{
			{SourceField: "decimalPlaces", TargetField: "currencyDecimalPlaces"},
		},
	}

	result := exec.Execute(context.Background(), decl, ctx)
	require.NoError(t, result.Err)
	assert.Equal(t, OutcomeSkipped, result.Outcome)

	v, err := ctx.Root("currencyDecimalPlaces")
	require.NoError(t, err)
	assert.True(t, v.IsNull())
}

func TestExecuteCompositeKeyNullComponentFails(t *testing.T) {
	ds := newCurrencyDataset(t)
	exec := New(ds, nil)

	ctx := evalctx.New(map[string]value.Value{"currency": value.String("USD")})
	decl := Declaration{
		ID:         "compositeLookup",
		DatasetRef: "currencies",
		KeyExpressions: []KeyComponent{
			{Expression: "currency"},
			{Expression: "missingField"},
		},
	}

	result := exec.Execute(context.Background(), decl, ctx)
	assert.Equal(t, OutcomeError, result.Outcome)
}

func TestExecuteFieldMappingMissingSourceFieldFails(t *testing.T) {
	ds := newCurrencyDataset(t)
	exec := New(ds, nil)

	ctx := evalctx.New(map[string]value.Value{"currency": value.String("USD")})
	decl := Declaration{
		ID:             "currencyLookup",
		DatasetRef:     "currencies",
		KeyExpressions: []KeyComponent{{Expression: "currency"}},
		FieldMappings: []FieldMapping{
			{SourceField: "missingField", TargetField: "x"},
		},
	}

	result := exec.Execute(context.Background(), decl, ctx)
	assert.Equal(t, OutcomeError, result.Outcome)
}

func TestResultFlatten(t *testing.T) {
	r := Result{EnrichmentID: "x", Outcome: OutcomeApplied}
	m := r.Flatten()
	assert.Equal(t, "x", m["EnrichmentID"])
}
