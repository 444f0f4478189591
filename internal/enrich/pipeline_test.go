package enrich

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mraysmit/apex-sub000/internal/evalctx"
	"github.com/mraysmit/apex-sub000/internal/lookup"
	"github.com/mraysmit/apex-sub000/internal/value"
)

func TestPipelineRunsLayersInDependencyOrder(t *testing.T) {
	base, err := NewCalculation("base", nil, "", "1", "base", false)
	require.NoError(t, err)
	derived, err := NewCalculation("derived", []string{"base"}, "", "base + 1", "derived", false)
	require.NoError(t, err)

	p, err := NewPipeline([]Enrichment{derived, base})
	require.NoError(t, err)

	ctx := evalctx.New(map[string]value.Value{})
	require.NoError(t, p.Run(context.Background(), ctx))

	v, err := ctx.Root("derived")
	require.NoError(t, err)
	n, ok := v.AsInt64()
	require.True(t, ok)
	assert.Equal(t, int64(2), n)
}

func TestPipelineDetectsCycle(t *testing.T) {
	a, err := NewCalculation("a", []string{"b"}, "", "1", "a", false)
	require.NoError(t, err)
	b, err := NewCalculation("b", []string{"a"}, "", "1", "b", false)
	require.NoError(t, err)

	p, err := NewPipeline([]Enrichment{a, b})
	require.NoError(t, err)
	err = p.Run(context.Background(), evalctx.New(map[string]value.Value{}))
	require.Error(t, err)
}

func TestConditionalRoutingRunsFirstTrueBranch(t *testing.T) {
	high, err := NewCalculation("high", nil, "", "100", "tier", false)
	require.NoError(t, err)
	low, err := NewCalculation("low", nil, "", "1", "tier", false)
	require.NoError(t, err)

	routing := NewConditionalRouting("tierRouting", nil, []ConditionalBranch{
		{Condition: "amount > 1000", Enrichment: high},
		{Condition: "", Enrichment: low},
	}, nil)

	ctx := evalctx.New(map[string]value.Value{"amount": value.Int64(5000)})
	require.NoError(t, routing.Execute(context.Background(), ctx))

	v, err := ctx.Root("tier")
	require.NoError(t, err)
	n, ok := v.AsInt64()
	require.True(t, ok)
	assert.Equal(t, int64(100), n)
}

func TestConditionalRoutingFallsBackToDefault(t *testing.T) {
	high, err := NewCalculation("high", nil, "", "100", "tier", false)
	require.NoError(t, err)
	low, err := NewCalculation("low", nil, "", "1", "tier", false)
	require.NoError(t, err)

	routing := NewConditionalRouting("tierRouting", nil, []ConditionalBranch{
		{Condition: "amount > 1000", Enrichment: high},
		{Condition: "", Enrichment: low},
	}, nil)

	ctx := evalctx.New(map[string]value.Value{"amount": value.Int64(5)})
	require.NoError(t, routing.Execute(context.Background(), ctx))

	v, err := ctx.Root("tier")
	require.NoError(t, err)
	n, ok := v.AsInt64()
	require.True(t, ok)
	assert.Equal(t, int64(1), n)
}

func TestConditionalRoutingAppliesOuterFieldMappingsRegardlessOfBranch(t *testing.T) {
	high, err := NewCalculation("high", nil, "", "100", "tier", false)
	require.NoError(t, err)
	low, err := NewCalculation("low", nil, "", "1", "tier", false)
	require.NoError(t, err)

	outer := []lookup.FieldMapping{{SourceField: "tier", TargetField: "tierLabel"}}

	for _, tc := range []struct {
		name      string
		amount    int64
		wantLabel int64
	}{
		{"high branch", 5000, 100},
		{"default branch", 5, 1},
	} {
		routing := NewConditionalRouting("tierRouting", nil, []ConditionalBranch{
			{Condition: "amount > 1000", Enrichment: high},
			{Condition: "", Enrichment: low},
		}, outer)

		ctx := evalctx.New(map[string]value.Value{"amount": value.Int64(tc.amount)})
		require.NoError(t, routing.Execute(context.Background(), ctx))

		v, err := ctx.Root("tierLabel")
		require.NoError(t, err)
		n, ok := v.AsInt64()
		require.True(t, ok)
		assert.Equal(t, tc.wantLabel, n, tc.name)
	}
}
