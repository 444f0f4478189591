package config

import (
	"strings"

	"github.com/mraysmit/apex-sub000/internal/apexerr"
)

var knownTypes = map[string]FileType{
	string(TypeDataset):          TypeDataset,
	string(TypeRuleConfig):       TypeRuleConfig,
	string(TypeScenario):         TypeScenario,
	string(TypeScenarioRegistry): TypeScenarioRegistry,
	string(TypeBootstrap):        TypeBootstrap,
}

// Classify implements spec.md §4.8's deterministic three-step
// classification: declared metadata.type, then structural inference,
// then file-path convention, failing TypeAmbiguous if none match.
func Classify(path string, doc map[string]any) (FileType, error) {
	if meta, ok := doc["metadata"].(map[string]any); ok {
		if t, ok := meta["type"].(string); ok {
			if ft, known := knownTypes[t]; known {
				return ft, nil
			}
		}
	}

	switch {
	case hasKey(doc, "data"):
		return TypeDataset, nil
	case hasKey(doc, "rules") || hasKey(doc, "enrichments"):
		return TypeRuleConfig, nil
	case hasKey(doc, "scenario-registry"):
		return TypeScenarioRegistry, nil
	case hasKey(doc, "scenario"):
		return TypeScenario, nil
	case hasKey(doc, "rule-chains") && hasKey(doc, "categories"):
		return TypeBootstrap, nil
	}

	lower := strings.ToLower(path)
	switch {
	case strings.Contains(lower, "/datasets/"):
		return TypeDataset, nil
	case strings.Contains(lower, "/rules/"):
		return TypeRuleConfig, nil
	case strings.Contains(lower, "/scenarios/"):
		return TypeScenario, nil
	}

	return "", apexerr.New(apexerr.KindTypeAmbiguous, "Classify", "cannot classify "+path)
}

func hasKey(doc map[string]any, key string) bool {
	_, ok := doc[key]
	return ok
}
