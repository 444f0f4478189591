package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateMetadataRequiresUniversalFields(t *testing.T) {
	err := ValidateMetadata(TypeDataset, Metadata{})
	require.Error(t, err)
}

func TestValidateMetadataRequiresTypeSpecificFields(t *testing.T) {
	base := Metadata{Name: "n", Version: "1.0.0", Description: "d", Type: "scenario"}
	err := ValidateMetadata(TypeScenario, base)
	require.Error(t, err)

	base.BusinessDomain = "trading"
	base.Owner = "desk"
	err = ValidateMetadata(TypeScenario, base)
	require.NoError(t, err)
}

func TestValidateRuleConfigDetectsDuplicateIds(t *testing.T) {
	doc := RuleConfigDoc{
		Enrichments: []EnrichmentDecl{{ID: "x"}},
		Rules:       []RuleDecl{{ID: "x"}},
	}
	err := ValidateRuleConfig(doc)
	require.Error(t, err)
}

func TestValidateRuleConfigDetectsFieldCollision(t *testing.T) {
	doc := RuleConfigDoc{
		Enrichments: []EnrichmentDecl{
			{ID: "a", Raw: map[string]any{"target-field": "total"}},
			{ID: "b", Raw: map[string]any{"target-field": "total"}},
		},
	}
	err := ValidateRuleConfig(doc)
	require.Error(t, err)
}

func TestValidateRuleConfigAllowsCollisionWithOverwrite(t *testing.T) {
	doc := RuleConfigDoc{
		Enrichments: []EnrichmentDecl{
			{ID: "a", Raw: map[string]any{"target-field": "total"}},
			{ID: "b", Raw: map[string]any{"target-field": "total", "allow-overwrite": true}},
		},
	}
	assert.NoError(t, ValidateRuleConfig(doc))
}
