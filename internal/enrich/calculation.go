package enrich

import (
	"context"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/mraysmit/apex-sub000/internal/apexerr"
	"github.com/mraysmit/apex-sub000/internal/evalctx"
	"github.com/mraysmit/apex-sub000/internal/value"
)

// Calculation is an arithmetic-formula enrichment. Unlike Lookup's
// condition/key/transform expressions (internal/expr's SpEL-like
// grammar), formulas use expr-lang/expr directly, grounded on the
// teacher's own compile-once Script usage in
// components/transform/expr_assign_node.go — the broader general-purpose
// arithmetic grammar expr-lang offers is the right fit here and the
// formula language is deliberately distinct from the condition/path
// language (spec.md §4.1's Non-goals carve-out).
type Calculation struct {
	id         string
	dependsOn  []string
	condition  string // internal/expr condition source, "" means always-run
	formula    string // expr-lang source
	program    *vm.Program
	targetField string
	allowOverwrite bool
}

// NewCalculation compiles formula once at construction time, matching
// the teacher's compile-once/run-many pattern.
func NewCalculation(id string, dependsOn []string, condition, formula, targetField string, allowOverwrite bool) (*Calculation, error) {
	program, err := expr.Compile(formula, expr.AllowUndefinedVariables())
	if err != nil {
		return nil, apexerr.Wrap(apexerr.KindParseError, "NewCalculation", "invalid formula for "+id, err)
	}
	return &Calculation{
		id: id, dependsOn: dependsOn, condition: condition, formula: formula,
		program: program, targetField: targetField, allowOverwrite: allowOverwrite,
	}, nil
}

func (c *Calculation) ID() string          { return c.id }
func (c *Calculation) DependsOn() []string { return c.dependsOn }

func (c *Calculation) Condition() string { return c.condition }

func (c *Calculation) Execute(_ context.Context, ctx *evalctx.Context) error {
	env := buildFormulaEnv(ctx)
	out, err := expr.Run(c.program, env)
	if err != nil {
		return apexerr.Wrap(apexerr.KindFunctionError, "Calculation.Execute", "formula failed for "+c.id, err)
	}
	return ctx.WriteField(c.targetField, value.FromAny(out), c.allowOverwrite)
}

// buildFormulaEnv exposes root fields and variables as a flat map for
// expr-lang, which has no concept of the #var/root split internal/expr
// implements.
func buildFormulaEnv(ctx *evalctx.Context) map[string]any {
	env := map[string]any{}
	for k, v := range ctx.Variables() {
		env[k] = value.ToAny(v)
	}
	snapshot := ctx.Snapshot()
	if m, ok := snapshot.AsMap(); ok {
		for k, v := range m {
			if _, exists := env[k]; !exists {
				env[k] = value.ToAny(v)
			}
		}
	}
	return env
}
