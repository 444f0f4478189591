package rules

import (
	"sort"

	"github.com/mraysmit/apex-sub000/internal/clock"
	"github.com/mraysmit/apex-sub000/internal/enrich"
	"github.com/mraysmit/apex-sub000/internal/evalctx"
	"github.com/mraysmit/apex-sub000/internal/value"
)

// Report is the accumulated outcome of evaluating a rule set: every
// rule's Result in execution order plus a severity-bucketed count, per
// spec.md §4.7's Report shape.
type Report struct {
	Results        []Result
	CountBySeverity map[Severity]int
}

// HasErrors reports whether any rule Failed at Error severity.
func (r Report) HasErrors() bool { return r.CountBySeverity[SeverityError] > 0 }

// HasWarnings reports whether any rule Failed at Warning severity.
func (r Report) HasWarnings() bool { return r.CountBySeverity[SeverityWarning] > 0 }

// Evaluator runs a declared set of rules and groups in dependency order,
// enforcing per-group short-circuit and populating the #hasErrors /
// #hasWarnings variables the terminal approval-rule pattern reads.
type Evaluator struct {
	rules      []*Rule
	groupOf    map[string]*Group // ruleID -> owning group, nil if ungrouped
	clock      clock.Clock
}

// NewEvaluator builds an Evaluator. groups may reference a subset of
// rules' ids; ungrouped rules run without short-circuit.
func NewEvaluator(rules []*Rule, groups []Group, clk clock.Clock) (*Evaluator, error) {
	groupOf := make(map[string]*Group, len(rules))
	for i := range groups {
		g := &groups[i]
		for _, ruleID := range g.RuleIDs {
			groupOf[ruleID] = g
		}
	}
	if clk == nil {
		clk = clock.Default
	}
	return &Evaluator{rules: rules, groupOf: groupOf, clock: clk}, nil
}

// Evaluate runs every rule against ctx in depends-on + priority +
// declaration order (§4.7), halting each stop-on-first-failure group on
// its first Error-severity Failed rule, and writes #hasErrors /
// #hasWarnings as results accumulate so a terminal approval rule sees
// the final tally.
func (e *Evaluator) Evaluate(ctx *evalctx.Context) (Report, error) {
	graph := enrich.NewGraph()
	byID := make(map[string]*Rule, len(e.rules))
	for i, r := range e.rules {
		if err := graph.Add(r.ID, r.DependsOn, i); err != nil {
			return Report{}, err
		}
		byID[r.ID] = r
	}

	layers, err := graph.TopoSort()
	if err != nil {
		return Report{}, err
	}

	report := Report{CountBySeverity: map[Severity]int{}}
	halted := map[string]bool{} // group id -> short-circuited

	for _, layer := range layers {
		ordered := make([]*Rule, len(layer))
		for i, id := range layer {
			ordered[i] = byID[id]
		}
		sort.SliceStable(ordered, func(i, j int) bool {
			gi, gj := e.groupOf[ordered[i].ID], e.groupOf[ordered[j].ID]
			if gi == nil || gj == nil || gi != gj {
				return false
			}
			return ordered[i].Priority < ordered[j].Priority
		})

		for _, r := range ordered {
			group := e.groupOf[r.ID]
			if group != nil && halted[group.ID] {
				report.Results = append(report.Results, Result{
					RuleID: r.ID, Name: r.Name, Category: r.Category,
					Outcome: OutcomeSkipped, Severity: r.Severity,
				})
				continue
			}

			result := r.Evaluate(e.clock, ctx)
			report.Results = append(report.Results, result)
			if result.Outcome == OutcomeFailed {
				report.CountBySeverity[result.Severity]++
			}

			ctx.SetVariable("hasErrors", value.Bool(report.HasErrors()))
			ctx.SetVariable("hasWarnings", value.Bool(report.HasWarnings()))

			if group != nil && group.StopOnFirstFailure && result.Outcome == OutcomeFailed && result.Severity == SeverityError {
				halted[group.ID] = true
			}
		}
	}

	return report, nil
}
