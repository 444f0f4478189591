package enrich

import (
	"context"

	"github.com/mraysmit/apex-sub000/internal/evalctx"
)

// Stage is one named step of a Chain: an enrichment plus an optional
// variable name that receives a snapshot of the whole root record after
// the stage runs, so later stages can read that state as #<name>.
type Stage struct {
	Name           string
	Enrichment     Enrichment
	OutputVariable string // "" means no variable mirroring
}

// Chain runs a named sequence of stages in declaration order against
// the same evalctx.Context, per spec.md §4.6's chain mode: stages
// execute sequentially (not layered), each able to read the prior
// stage's writes via root fields or, when declared, via
// OutputVariable.
type Chain struct {
	id        string
	dependsOn []string
	stages    []Stage
}

// NewChain builds a Chain.
func NewChain(id string, dependsOn []string, stages []Stage) *Chain {
	return &Chain{id: id, dependsOn: dependsOn, stages: stages}
}

func (c *Chain) ID() string          { return c.id }
func (c *Chain) DependsOn() []string { return c.dependsOn }

func (c *Chain) Execute(ctx context.Context, evalCtx *evalctx.Context) error {
	for _, stage := range c.stages {
		if err := stage.Enrichment.Execute(ctx, evalCtx); err != nil {
			return err
		}
		if stage.OutputVariable != "" {
			snapshot := evalCtx.Snapshot()
			evalCtx.SetVariable(stage.OutputVariable, snapshot)
		}
	}
	return nil
}
