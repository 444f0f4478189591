package config

import "github.com/mraysmit/apex-sub000/internal/apexerr"

// ValidateMetadata checks the universal and type-specific mandatory
// fields of spec.md §4.8.
func ValidateMetadata(ft FileType, m Metadata) error {
	if m.Name == "" {
		return apexerr.New(apexerr.KindMetadataMissing, "ValidateMetadata", "name is required")
	}
	if m.Version == "" {
		return apexerr.New(apexerr.KindMetadataMissing, "ValidateMetadata", "version is required")
	}
	if m.Description == "" {
		return apexerr.New(apexerr.KindMetadataMissing, "ValidateMetadata", "description is required")
	}
	if m.Type == "" {
		return apexerr.New(apexerr.KindMetadataMissing, "ValidateMetadata", "type is required")
	}

	switch ft {
	case TypeScenario:
		if m.BusinessDomain == "" {
			return apexerr.New(apexerr.KindMetadataMissing, "ValidateMetadata", "business-domain is required for scenario")
		}
		if m.Owner == "" {
			return apexerr.New(apexerr.KindMetadataMissing, "ValidateMetadata", "owner is required for scenario")
		}
	case TypeBootstrap, TypeScenarioRegistry:
		if m.CreatedBy == "" {
			return apexerr.New(apexerr.KindMetadataMissing, "ValidateMetadata", "created-by is required")
		}
	case TypeRuleConfig:
		if m.Author == "" {
			return apexerr.New(apexerr.KindMetadataMissing, "ValidateMetadata", "author is required for rule-config")
		}
	case TypeDataset:
		if m.Source == "" {
			return apexerr.New(apexerr.KindMetadataMissing, "ValidateMetadata", "source is required for dataset")
		}
	}
	return nil
}

// ValidateRuleConfig checks id uniqueness and field-collision invariants
// within one rule-config document (depends-on cycle/reference checks are
// performed by the caller using internal/enrich.Graph once ids from
// composed configs are known).
func ValidateRuleConfig(doc RuleConfigDoc) error {
	seen := map[string]bool{}
	for _, e := range doc.Enrichments {
		if seen[e.ID] {
			return apexerr.New(apexerr.KindDuplicateId, "ValidateRuleConfig", "duplicate enrichment id "+e.ID)
		}
		seen[e.ID] = true
	}
	for _, r := range doc.Rules {
		if seen[r.ID] {
			return apexerr.New(apexerr.KindDuplicateId, "ValidateRuleConfig", "duplicate id "+r.ID)
		}
		seen[r.ID] = true
	}

	targets := map[string]bool{}
	for _, e := range doc.Enrichments {
		target, _ := e.Raw["target-field"].(string)
		if target == "" {
			continue
		}
		allowOverwrite, _ := e.Raw["allow-overwrite"].(bool)
		if targets[target] && !allowOverwrite {
			return apexerr.New(apexerr.KindFieldCollision, "ValidateRuleConfig", "target field collision on "+target)
		}
		targets[target] = true
	}
	return nil
}
