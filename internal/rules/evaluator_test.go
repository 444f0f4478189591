package rules

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mraysmit/apex-sub000/internal/clock"
	"github.com/mraysmit/apex-sub000/internal/evalctx"
	"github.com/mraysmit/apex-sub000/internal/value"
)

func mustRule(t *testing.T, id, category, condition string, priority int, severity Severity) *Rule {
	t.Helper()
	r, err := NewRule(id, id, category, nil, priority, true, severity, condition, id)
	require.NoError(t, err)
	return r
}

func TestEvaluatorStopsGroupOnFirstErrorFailure(t *testing.T) {
	r1 := mustRule(t, "tradeId-required", "basic-validation", "tradeId != null", 0, SeverityError)
	r2 := mustRule(t, "tradeId-format", "basic-validation", "true", 1, SeverityError)

	group := Group{ID: "basic-validation", Category: "basic-validation", StopOnFirstFailure: true, RuleIDs: []string{"tradeId-required", "tradeId-format"}}

	eval, err := NewEvaluator([]*Rule{r1, r2}, []Group{group}, clock.System{})
	require.NoError(t, err)

	ctx := evalctx.New(map[string]value.Value{})
	report, err := eval.Evaluate(ctx)
	require.NoError(t, err)

	require.Len(t, report.Results, 2)
	assert.Equal(t, OutcomeFailed, report.Results[0].Outcome)
	assert.Equal(t, OutcomeSkipped, report.Results[1].Outcome)
}

func TestEvaluatorWarningNeverShortCircuits(t *testing.T) {
	r1 := mustRule(t, "w1", "g", "false", 0, SeverityWarning)
	r2 := mustRule(t, "w2", "g", "true", 1, SeverityWarning)

	group := Group{ID: "g", Category: "g", StopOnFirstFailure: true, RuleIDs: []string{"w1", "w2"}}

	eval, err := NewEvaluator([]*Rule{r1, r2}, []Group{group}, clock.System{})
	require.NoError(t, err)

	report, err := eval.Evaluate(evalctx.New(map[string]value.Value{}))
	require.NoError(t, err)
	assert.Equal(t, OutcomeFailed, report.Results[0].Outcome)
	assert.Equal(t, OutcomePassed, report.Results[1].Outcome)
}

func TestEvaluatorOrdersByPriorityWithinGroup(t *testing.T) {
	high := mustRule(t, "second", "g", "true", 5, SeverityInfo)
	low := mustRule(t, "first", "g", "true", 1, SeverityInfo)

	group := Group{ID: "g", Category: "g", RuleIDs: []string{"second", "first"}}

	eval, err := NewEvaluator([]*Rule{high, low}, []Group{group}, clock.System{})
	require.NoError(t, err)

	report, err := eval.Evaluate(evalctx.New(map[string]value.Value{}))
	require.NoError(t, err)
	require.Len(t, report.Results, 2)
	assert.Equal(t, "first", report.Results[0].RuleID)
	assert.Equal(t, "second", report.Results[1].RuleID)
}

func TestTerminalRuleSeesHasErrorsVariable(t *testing.T) {
	failing := mustRule(t, "validation", "g", "false", 0, SeverityError)
	terminal, err := NewRule("approval", "approval", "terminal", []string{"validation"}, 0, true,
		SeverityInfo, "#hasErrors == false", "approved")
	require.NoError(t, err)

	eval, err := NewEvaluator([]*Rule{failing, terminal}, nil, clock.System{})
	require.NoError(t, err)

	report, err := eval.Evaluate(evalctx.New(map[string]value.Value{}))
	require.NoError(t, err)
	require.Len(t, report.Results, 2)
	assert.True(t, report.HasErrors())
	assert.Equal(t, OutcomeFailed, report.Results[1].Outcome) // hasErrors == false is itself false
}
