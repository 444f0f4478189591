package rules

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mraysmit/apex-sub000/internal/clock"
	"github.com/mraysmit/apex-sub000/internal/evalctx"
	"github.com/mraysmit/apex-sub000/internal/value"
)

func TestRulePassesOnTruthyCondition(t *testing.T) {
	r, err := NewRule("currencyActive", "Currency active", "validation", nil, 0, true,
		SeverityError, "currencyActive == true", "Currency {{currency}} is active")
	require.NoError(t, err)

	ctx := evalctx.New(map[string]value.Value{
		"currencyActive": value.Bool(true),
		"currency":       value.String("USD"),
	})
	result := r.Evaluate(clock.System{}, ctx)
	assert.Equal(t, OutcomePassed, result.Outcome)
	assert.Equal(t, "Currency USD is active", result.Message)
	assert.False(t, result.Degraded)
}

func TestRuleFailsOnFalsyCondition(t *testing.T) {
	r, err := NewRule("currencyActive", "Currency active", "validation", nil, 0, true,
		SeverityWarning, "currencyActive == true", "inactive")
	require.NoError(t, err)

	ctx := evalctx.New(map[string]value.Value{"currencyActive": value.Bool(false)})
	result := r.Evaluate(clock.System{}, ctx)
	assert.Equal(t, OutcomeFailed, result.Outcome)
	assert.Equal(t, SeverityWarning, result.Severity)
}

func TestRuleConditionErrorUpgradesToFatalError(t *testing.T) {
	r, err := NewRule("badCond", "Bad condition", "validation", nil, 0, true,
		SeverityInfo, "missingField == true", "n/a")
	require.NoError(t, err)

	ctx := evalctx.New(map[string]value.Value{})
	result := r.Evaluate(clock.System{}, ctx)
	assert.Equal(t, OutcomeFailed, result.Outcome)
	assert.Equal(t, SeverityError, result.Severity)
	require.Error(t, result.Err)
}

func TestDisabledRuleIsSkipped(t *testing.T) {
	r, err := NewRule("off", "Off", "validation", nil, 0, false,
		SeverityError, "true", "n/a")
	require.NoError(t, err)

	ctx := evalctx.New(map[string]value.Value{})
	result := r.Evaluate(clock.System{}, ctx)
	assert.Equal(t, OutcomeSkipped, result.Outcome)
}

func TestMessageTemplateDegradesOnEvaluationError(t *testing.T) {
	r, err := NewRule("tmpl", "Tmpl", "validation", nil, 0, true,
		SeverityInfo, "true", "value is {{missing.path}}")
	require.NoError(t, err)

	ctx := evalctx.New(map[string]value.Value{})
	result := r.Evaluate(clock.System{}, ctx)
	assert.Equal(t, OutcomePassed, result.Outcome)
	assert.True(t, result.Degraded)
}
