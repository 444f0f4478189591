package enrich

import (
	"github.com/mraysmit/apex-sub000/internal/lookup"
)

// ExternalApiEnrichment is a thin wrapper over LookupEnrichment: a
// rest-api-backed lookup has identical mechanics to any other dataset
// lookup (condition, key construction, cache-then-driver resolution,
// field mapping, missing-data policy) — the only difference is which
// driver the dataset reference resolves to (internal/driver's
// rest-api driver vs. inline/database/etc). spec.md §4.4 treats
// rest-api as just another driver kind behind the same dataset
// abstraction, so no separate execution path is warranted.
type ExternalApiEnrichment struct {
	*LookupEnrichment
}

// NewExternalApiEnrichment builds an ExternalApiEnrichment.
func NewExternalApiEnrichment(decl lookup.Declaration, dependsOn []string, executor *lookup.Executor) *ExternalApiEnrichment {
	return &ExternalApiEnrichment{LookupEnrichment: NewLookupEnrichment(decl, dependsOn, executor)}
}

var _ Enrichment = (*ExternalApiEnrichment)(nil)
var _ Enrichment = (*LookupEnrichment)(nil)
var _ Enrichment = (*Calculation)(nil)
var _ Enrichment = (*Aggregation)(nil)
var _ Enrichment = (*ConditionalRouting)(nil)
var _ Enrichment = (*ConditionGate)(nil)
var _ Enrichment = (*BatchEnrichment)(nil)
var _ Enrichment = (*Chain)(nil)
