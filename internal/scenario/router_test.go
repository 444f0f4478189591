package scenario

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mraysmit/apex-sub000/internal/apexerr"
	"github.com/mraysmit/apex-sub000/internal/config"
)

func newTestRouter() *Router {
	registry := config.ScenarioRegistryDoc{}
	registry.ScenarioRegistry.DataTypes = map[string]string{
		"com.example.Trade": "trade-validation",
	}
	registry.ScenarioRegistry.Default = "fallback"

	scenarios := []Scenario{
		{ID: "trade-validation", DataTypes: []string{"com.example.Trade"}, RuleConfigFiles: []string{"rules/trade.yaml"}},
		{ID: "fallback", DataTypes: []string{"*"}, RuleConfigFiles: []string{"rules/generic.yaml"}},
	}
	return NewRouter(registry, scenarios)
}

func TestResolveByFullyQualifiedDataType(t *testing.T) {
	r := newTestRouter()
	s, err := r.Resolve("com.example.Trade", "")
	require.NoError(t, err)
	assert.Equal(t, "trade-validation", s.ID)
}

func TestResolveByShortNameAlias(t *testing.T) {
	r := newTestRouter()
	s, err := r.Resolve("Trade", "")
	require.NoError(t, err)
	assert.Equal(t, "trade-validation", s.ID)
}

func TestResolveExplicitScenarioIdOverridesRegistry(t *testing.T) {
	r := newTestRouter()
	s, err := r.Resolve("com.example.Trade", "fallback")
	require.NoError(t, err)
	assert.Equal(t, "fallback", s.ID)
}

func TestResolveFallsBackToDefault(t *testing.T) {
	r := newTestRouter()
	s, err := r.Resolve("Unknown", "")
	require.NoError(t, err)
	assert.Equal(t, "fallback", s.ID)
}

func TestResolveFailsWhenUnmatchedAndNoDefault(t *testing.T) {
	registry := config.ScenarioRegistryDoc{}
	r := NewRouter(registry, nil)

	_, err := r.Resolve("Unknown", "")
	require.Error(t, err)
	kind, ok := apexerr.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, apexerr.KindNotFound, kind)
}
