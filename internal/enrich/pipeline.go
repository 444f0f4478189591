package enrich

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/mraysmit/apex-sub000/internal/apexerr"
	"github.com/mraysmit/apex-sub000/internal/evalctx"
	"github.com/mraysmit/apex-sub000/internal/expr"
	"github.com/mraysmit/apex-sub000/internal/lookup"
)

// Enrichment is the common shape every enrichment kind implements:
// identity for the dependency graph, and execution against a shared
// evaluation context.
type Enrichment interface {
	ID() string
	DependsOn() []string
	Execute(ctx context.Context, evalCtx *evalctx.Context) error
}

// LookupEnrichment adapts a lookup.Declaration (which already implements
// its own condition/missing-data handling per spec.md §4.5) to the
// Enrichment interface.
type LookupEnrichment struct {
	decl      lookup.Declaration
	dependsOn []string
	executor  *lookup.Executor
}

// NewLookupEnrichment wraps a lookup.Declaration for pipeline execution.
func NewLookupEnrichment(decl lookup.Declaration, dependsOn []string, executor *lookup.Executor) *LookupEnrichment {
	return &LookupEnrichment{decl: decl, dependsOn: dependsOn, executor: executor}
}

func (l *LookupEnrichment) ID() string          { return l.decl.ID }
func (l *LookupEnrichment) DependsOn() []string { return l.dependsOn }

func (l *LookupEnrichment) Execute(ctx context.Context, evalCtx *evalctx.Context) error {
	result := l.executor.Execute(ctx, l.decl, evalCtx)
	if result.Outcome == lookup.OutcomeError {
		return result.Err
	}
	return nil
}

// ConditionalBranch is one (condition, enrichment) pair of a
// conditional-routing enrichment, per spec.md §4.6: at most one branch
// runs, the first whose condition is true; an empty Condition marks the
// default branch.
type ConditionalBranch struct {
	Condition  string // "" marks the default branch
	Enrichment Enrichment
}

// ConditionalRouting runs at most one of its branches; common
// field-mappings declared on the outer enrichment run afterward,
// regardless of which branch fired (spec.md §4.6).
type ConditionalRouting struct {
	id            string
	dependsOn     []string
	branches      []ConditionalBranch
	fieldMappings []lookup.FieldMapping
}

// NewConditionalRouting builds a conditional-routing enrichment.
func NewConditionalRouting(id string, dependsOn []string, branches []ConditionalBranch, fieldMappings []lookup.FieldMapping) *ConditionalRouting {
	return &ConditionalRouting{id: id, dependsOn: dependsOn, branches: branches, fieldMappings: fieldMappings}
}

func (c *ConditionalRouting) ID() string          { return c.id }
func (c *ConditionalRouting) DependsOn() []string { return c.dependsOn }

func (c *ConditionalRouting) Execute(ctx context.Context, evalCtx *evalctx.Context) error {
	if err := c.runBranch(ctx, evalCtx); err != nil {
		return err
	}
	if len(c.fieldMappings) == 0 {
		return nil
	}
	return lookup.ApplyFieldMappingsFromContext(c.fieldMappings, evalCtx)
}

func (c *ConditionalRouting) runBranch(ctx context.Context, evalCtx *evalctx.Context) error {
	var fallback *ConditionalBranch
	for i := range c.branches {
		b := &c.branches[i]
		if b.Condition == "" {
			fallback = b
			continue
		}
		prog, err := expr.Compile(b.Condition)
		if err != nil {
			return err
		}
		v, err := prog.Eval(evalCtx)
		if err != nil {
			return err
		}
		if v.Truthy() {
			return b.Enrichment.Execute(ctx, evalCtx)
		}
	}
	if fallback != nil {
		return fallback.Enrichment.Execute(ctx, evalCtx)
	}
	return nil
}

// ConditionGate wraps any Enrichment with a guard condition, used for
// Calculation/Aggregation enrichments whose own Execute has no condition
// concept (lookup-based enrichments, ExternalApi included, evaluate
// internal/lookup.Declaration's own).
type ConditionGate struct {
	condition string
	inner     Enrichment
}

// NewConditionGate builds a ConditionGate; condition == "" always runs.
func NewConditionGate(condition string, inner Enrichment) *ConditionGate {
	return &ConditionGate{condition: condition, inner: inner}
}

func (g *ConditionGate) ID() string          { return g.inner.ID() }
func (g *ConditionGate) DependsOn() []string { return g.inner.DependsOn() }

func (g *ConditionGate) Execute(ctx context.Context, evalCtx *evalctx.Context) error {
	if g.condition != "" {
		prog, err := expr.Compile(g.condition)
		if err != nil {
			return err
		}
		v, err := prog.Eval(evalCtx)
		if err != nil {
			return err
		}
		if !v.Truthy() {
			return nil
		}
	}
	return g.inner.Execute(ctx, evalCtx)
}

// Pipeline executes a set of Enrichments in dependency order (spec.md
// §4.6): a topological layer runs concurrently via
// golang.org/x/sync/errgroup, one goroutine per enrichment in the layer
// with no concurrency limit, and later layers observe every write from
// earlier layers (happens-before per spec.md §5).
type Pipeline struct {
	byID        map[string]Enrichment
	graph       *Graph
}

// NewPipeline builds a Pipeline from a declaration-ordered list of
// Enrichments.
func NewPipeline(enrichments []Enrichment) (*Pipeline, error) {
	g := NewGraph()
	byID := make(map[string]Enrichment, len(enrichments))
	for i, e := range enrichments {
		if err := g.Add(e.ID(), e.DependsOn(), i); err != nil {
			return nil, err
		}
		byID[e.ID()] = e
	}
	return &Pipeline{byID: byID, graph: g}, nil
}

// Run executes every layer in order, enrichments within a layer
// concurrently. The first enrichment error within a layer cancels the
// rest of that layer and aborts the run (errgroup's WithContext
// cancellation), matching spec.md §7's fail-fast default for enrichment
// failures that aren't handled by a missing-data policy.
func (p *Pipeline) Run(ctx context.Context, evalCtx *evalctx.Context) error {
	layers, err := p.graph.TopoSort()
	if err != nil {
		return err
	}
	for _, layer := range layers {
		group, gctx := errgroup.WithContext(ctx)
		for _, id := range layer {
			e := p.byID[id]
			group.Go(func() error {
				return e.Execute(gctx, evalCtx)
			})
		}
		if err := group.Wait(); err != nil {
			return apexerr.Wrap(apexerr.KindFunctionError, "Pipeline.Run", "enrichment layer failed", err)
		}
	}
	return nil
}
