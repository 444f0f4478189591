package enrich

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/mraysmit/apex-sub000/internal/apexerr"
	"github.com/mraysmit/apex-sub000/internal/evalctx"
	"github.com/mraysmit/apex-sub000/internal/expr"
	"github.com/mraysmit/apex-sub000/internal/value"
)

// BatchEnrichment runs an inner Enrichment once per element of a
// declared collection, per spec.md §4.6's batch-enrichment mode:
// element-wise application, order preserved, each element enriched
// against its own evalctx.Context scoped under elementVar.
type BatchEnrichment struct {
	id             string
	dependsOn      []string
	collectionPath string // dotted root path to the collection
	elementVar     string // variable name each element is bound to
	inner          Enrichment
}

// NewBatchEnrichment builds a BatchEnrichment.
func NewBatchEnrichment(id string, dependsOn []string, collectionPath, elementVar string, inner Enrichment) *BatchEnrichment {
	return &BatchEnrichment{id: id, dependsOn: dependsOn, collectionPath: collectionPath, elementVar: elementVar, inner: inner}
}

func (b *BatchEnrichment) ID() string          { return b.id }
func (b *BatchEnrichment) DependsOn() []string { return b.dependsOn }

// Execute enriches every element of the declared collection and writes
// the enriched collection back to the same path, preserving order.
func (b *BatchEnrichment) Execute(ctx context.Context, evalCtx *evalctx.Context) error {
	prog, err := expr.Compile(b.collectionPath)
	if err != nil {
		return apexerr.Wrap(apexerr.KindParseError, "BatchEnrichment.Execute", "invalid collection path for "+b.id, err)
	}
	coll, err := prog.Eval(evalCtx)
	if err != nil {
		return err
	}
	items, ok := coll.AsList()
	if !ok {
		return apexerr.New(apexerr.KindTypeMismatch, "BatchEnrichment.Execute", b.collectionPath+" is not a collection")
	}

	enriched := make([]value.Value, len(items))
	group, gctx := errgroup.WithContext(ctx)
	for i, item := range items {
		i, item := i, item
		group.Go(func() error {
			elemRoot := map[string]value.Value{b.elementVar: item}
			elemCtx := evalctx.New(elemRoot)
			if err := b.inner.Execute(gctx, elemCtx); err != nil {
				return err
			}
			out, err := elemCtx.Root(b.elementVar)
			if err != nil {
				return err
			}
			enriched[i] = out
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return apexerr.Wrap(apexerr.KindFunctionError, "BatchEnrichment.Execute", "batch element failed for "+b.id, err)
	}

	return evalCtx.WriteField(b.collectionPath, value.List(enriched), true)
}
