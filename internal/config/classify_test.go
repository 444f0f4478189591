package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyByDeclaredMetadataType(t *testing.T) {
	doc := map[string]any{"metadata": map[string]any{"type": "dataset"}}
	ft, err := Classify("anything.yaml", doc)
	require.NoError(t, err)
	assert.Equal(t, TypeDataset, ft)
}

func TestClassifyByStructuralInference(t *testing.T) {
	cases := []struct {
		doc  map[string]any
		want FileType
	}{
		{map[string]any{"data": []any{}}, TypeDataset},
		{map[string]any{"rules": []any{}}, TypeRuleConfig},
		{map[string]any{"enrichments": []any{}}, TypeRuleConfig},
		{map[string]any{"scenario-registry": map[string]any{}}, TypeScenarioRegistry},
		{map[string]any{"scenario": map[string]any{}}, TypeScenario},
		{map[string]any{"rule-chains": []any{}, "categories": []any{}}, TypeBootstrap},
	}
	for _, c := range cases {
		ft, err := Classify("x.yaml", c.doc)
		require.NoError(t, err)
		assert.Equal(t, c.want, ft)
	}
}

func TestClassifyByPathConvention(t *testing.T) {
	ft, err := Classify("/config/datasets/currencies.yaml", map[string]any{})
	require.NoError(t, err)
	assert.Equal(t, TypeDataset, ft)
}

func TestClassifyAmbiguousFails(t *testing.T) {
	_, err := Classify("x.yaml", map[string]any{})
	require.Error(t, err)
}
