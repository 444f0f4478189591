package config

import "github.com/mraysmit/apex-sub000/internal/enrich"

// ComposedRuleConfig is the result of composing one or more rule-config
// files (as a scenario's rule-config-files list does), with every
// enrichment/rule id validated for uniqueness and depends-on resolution
// across the whole composition, not just within one file.
type ComposedRuleConfig struct {
	Enrichments []EnrichmentDecl
	Rules       []RuleDecl
	RuleGroups  []RuleGroupDecl
}

// Compose merges rule-config documents in the given order (the order a
// scenario's rule-config-files list declares), checking id uniqueness
// and depends-on resolution/cycles across the full composition per
// spec.md §4.8's invariants.
func Compose(docs []RuleConfigDoc) (ComposedRuleConfig, error) {
	var out ComposedRuleConfig
	for _, d := range docs {
		out.Enrichments = append(out.Enrichments, d.Enrichments...)
		out.Rules = append(out.Rules, d.Rules...)
		out.RuleGroups = append(out.RuleGroups, d.RuleGroups...)
	}

	if err := checkUniqueAndAcyclic(out.Enrichments, out.Rules); err != nil {
		return ComposedRuleConfig{}, err
	}
	return out, nil
}

func checkUniqueAndAcyclic(enrichments []EnrichmentDecl, rules []RuleDecl) error {
	graph := enrich.NewGraph()
	idx := 0
	for _, e := range enrichments {
		if err := graph.Add(e.ID, e.DependsOn, idx); err != nil {
			return err
		}
		idx++
	}
	for _, r := range rules {
		if err := graph.Add(r.ID, r.DependsOn, idx); err != nil {
			return err
		}
		idx++
	}
	_, err := graph.TopoSort()
	return err
}
