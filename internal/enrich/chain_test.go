package enrich

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mraysmit/apex-sub000/internal/evalctx"
	"github.com/mraysmit/apex-sub000/internal/value"
)

func TestChainRunsStagesSequentially(t *testing.T) {
	stage1, err := NewCalculation("stage1", nil, "", "base + 1", "afterStage1", false)
	require.NoError(t, err)
	stage2, err := NewCalculation("stage2", nil, "", "afterStage1 + 1", "afterStage2", false)
	require.NoError(t, err)

	chain := NewChain("pricingChain", nil, []Stage{
		{Name: "first", Enrichment: stage1, OutputVariable: "stage1Result"},
		{Name: "second", Enrichment: stage2},
	})

	ctx := evalctx.New(map[string]value.Value{"base": value.Int64(10)})
	require.NoError(t, chain.Execute(context.Background(), ctx))

	v, err := ctx.Root("afterStage2")
	require.NoError(t, err)
	n, ok := v.AsInt64()
	require.True(t, ok)
	assert.Equal(t, int64(12), n)

	_, err = ctx.Variable("stage1Result")
	require.NoError(t, err)
}
