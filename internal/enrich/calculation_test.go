package enrich

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mraysmit/apex-sub000/internal/evalctx"
	"github.com/mraysmit/apex-sub000/internal/value"
)

func TestCalculationWritesFormulaResult(t *testing.T) {
	calc, err := NewCalculation("totalCalc", nil, "", "quantity * price", "total", false)
	require.NoError(t, err)

	ctx := evalctx.New(map[string]value.Value{
		"quantity": value.Int64(3),
		"price":    value.Int64(10),
	})

	require.NoError(t, calc.Execute(context.Background(), ctx))

	v, err := ctx.Root("total")
	require.NoError(t, err)
	n, ok := v.AsInt64()
	require.True(t, ok)
	assert.Equal(t, int64(30), n)
}

func TestCalculationInvalidFormulaFailsAtConstruction(t *testing.T) {
	_, err := NewCalculation("bad", nil, "", "quantity +* price", "total", false)
	require.Error(t, err)
}

func TestCalculationRespectsConditionViaGate(t *testing.T) {
	calc, err := NewCalculation("totalCalc", nil, "flag == false", "quantity * price", "total", false)
	require.NoError(t, err)
	gate := NewConditionGate(calc.Condition(), calc)

	ctx := evalctx.New(map[string]value.Value{
		"flag":     value.Bool(true),
		"quantity": value.Int64(3),
		"price":    value.Int64(10),
	})

	require.NoError(t, gate.Execute(context.Background(), ctx))

	_, err = ctx.Root("total")
	require.Error(t, err)
}
