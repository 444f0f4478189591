package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComposeMergesAndResolvesAcrossFiles(t *testing.T) {
	docA := RuleConfigDoc{
		Enrichments: []EnrichmentDecl{{ID: "lookupCurrency"}},
	}
	docB := RuleConfigDoc{
		Rules: []RuleDecl{{ID: "currencyActive", DependsOn: []string{"lookupCurrency"}}},
	}

	composed, err := Compose([]RuleConfigDoc{docA, docB})
	require.NoError(t, err)
	assert.Len(t, composed.Enrichments, 1)
	assert.Len(t, composed.Rules, 1)
}

func TestComposeDetectsUnresolvedDependsOn(t *testing.T) {
	doc := RuleConfigDoc{
		Rules: []RuleDecl{{ID: "r1", DependsOn: []string{"missing"}}},
	}
	_, err := Compose([]RuleConfigDoc{doc})
	require.Error(t, err)
}

func TestComposeDetectsCycleAcrossFiles(t *testing.T) {
	docA := RuleConfigDoc{Rules: []RuleDecl{{ID: "a", DependsOn: []string{"b"}}}}
	docB := RuleConfigDoc{Rules: []RuleDecl{{ID: "b", DependsOn: []string{"a"}}}}

	_, err := Compose([]RuleConfigDoc{docA, docB})
	require.Error(t, err)
}
