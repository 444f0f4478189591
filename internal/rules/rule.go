// Package rules evaluates rules and rule-groups over an enriched
// evaluation context and accumulates severity-tagged Outcomes, per
// spec.md §4.7.
package rules

import (
	"time"

	"github.com/mraysmit/apex-sub000/internal/apexerr"
	"github.com/mraysmit/apex-sub000/internal/clock"
	"github.com/mraysmit/apex-sub000/internal/evalctx"
	"github.com/mraysmit/apex-sub000/internal/expr"
)

// Severity controls short-circuit behavior: only Error severity ever
// halts a stop-on-first-failure group.
type Severity string

const (
	SeverityError   Severity = "Error"
	SeverityWarning Severity = "Warning"
	SeverityInfo    Severity = "Info"
)

// Outcome is a rule's evaluation result.
type Outcome string

const (
	OutcomePassed  Outcome = "Passed"
	OutcomeSkipped Outcome = "Skipped"
	OutcomeFailed  Outcome = "Failed"
)

// Rule is a declarative condition producing a severity-tagged Outcome.
type Rule struct {
	ID         string
	Name       string
	Category   string
	DependsOn  []string
	Priority   int // ascending: lower runs first among same-group rules in a layer
	Enabled    bool
	Severity   Severity
	condition  *expr.Program
	template   *expr.Template
}

// NewRule compiles the condition and message template once.
func NewRule(id, name, category string, dependsOn []string, priority int, enabled bool,
	severity Severity, condition, messageTemplate string) (*Rule, error) {
	prog, err := expr.Compile(condition)
	if err != nil {
		return nil, apexerr.Wrap(apexerr.KindParseError, "NewRule", "invalid condition for "+id, err)
	}
	tmpl, err := expr.CompileTemplate(messageTemplate)
	if err != nil {
		return nil, apexerr.Wrap(apexerr.KindParseError, "NewRule", "invalid message template for "+id, err)
	}
	return &Rule{
		ID: id, Name: name, Category: category, DependsOn: dependsOn, Priority: priority,
		Enabled: enabled, Severity: severity, condition: prog, template: tmpl,
	}, nil
}

// Result is one rule's evaluation outcome, message, and timing.
type Result struct {
	RuleID   string
	Name     string
	Category string
	Outcome  Outcome
	Severity Severity
	Message  string
	Degraded bool // true when the message template fell back to raw text
	Duration time.Duration
	Err      error
}

// Evaluate runs the rule's condition against ctx. A disabled rule is
// Skipped without evaluating anything. A condition that throws is
// Failed with its severity upgraded to Error regardless of the rule's
// declared severity (FatalEvaluationError per spec.md §4.7); template
// rendering failures degrade rather than fail the rule.
func (r *Rule) Evaluate(clk clock.Clock, ctx *evalctx.Context) Result {
	if !r.Enabled {
		return Result{RuleID: r.ID, Name: r.Name, Category: r.Category, Outcome: OutcomeSkipped, Severity: r.Severity}
	}

	start := clk.Now()
	v, err := r.condition.Eval(ctx)
	if err != nil {
		msg, degraded := r.template.Render(ctx)
		return Result{
			RuleID: r.ID, Name: r.Name, Category: r.Category,
			Outcome: OutcomeFailed, Severity: SeverityError,
			Message: msg, Degraded: degraded,
			Duration: clk.Now().Sub(start),
			Err:      apexerr.Wrap(apexerr.KindFunctionError, "Rule.Evaluate", "condition failed for "+r.ID, err),
		}
	}

	msg, degraded := r.template.Render(ctx)
	outcome := OutcomeFailed
	if v.Truthy() {
		outcome = OutcomePassed
	}
	return Result{
		RuleID: r.ID, Name: r.Name, Category: r.Category,
		Outcome: outcome, Severity: r.Severity,
		Message: msg, Degraded: degraded,
		Duration: clk.Now().Sub(start),
	}
}
