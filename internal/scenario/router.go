// Package scenario resolves a data type (with an optional explicit
// scenario-id override) to the ordered list of rule-config files to
// apply, per spec.md §4.9.
package scenario

import (
	"strings"

	"github.com/mraysmit/apex-sub000/internal/apexerr"
	"github.com/mraysmit/apex-sub000/internal/config"
)

// Scenario is one loaded scenario document's resolved shape.
type Scenario struct {
	ID              string
	DataTypes       []string
	RuleConfigFiles []string
}

// Router resolves data types to Scenarios using a loaded registry.
type Router struct {
	scenarios map[string]Scenario // scenario id -> Scenario
	dataTypes map[string]string   // data type (and short-name alias) -> scenario id
	defaultID string
}

// NewRouter builds a Router from a loaded scenario-registry document and
// the Scenarios it references.
func NewRouter(registry config.ScenarioRegistryDoc, scenarios []Scenario) *Router {
	r := &Router{
		scenarios: make(map[string]Scenario, len(scenarios)),
		dataTypes: make(map[string]string, len(registry.ScenarioRegistry.DataTypes)),
		defaultID: registry.ScenarioRegistry.Default,
	}
	for _, s := range scenarios {
		r.scenarios[s.ID] = s
	}
	for dataType, scenarioID := range registry.ScenarioRegistry.DataTypes {
		r.dataTypes[dataType] = scenarioID
		if short := shortName(dataType); short != dataType {
			if _, exists := r.dataTypes[short]; !exists {
				r.dataTypes[short] = scenarioID
			}
		}
	}
	return r
}

// Resolve returns the ordered rule-config-files list for a data type,
// honoring spec.md §4.9's precedence: an explicit scenarioID override
// wins outright; otherwise the registry is consulted by fully-qualified
// then short-name match; failing both, the registry's default scenario
// applies if declared, else ScenarioNotFound.
func (r *Router) Resolve(dataType, scenarioID string) (Scenario, error) {
	if scenarioID != "" {
		s, ok := r.scenarios[scenarioID]
		if !ok {
			return Scenario{}, apexerr.New(apexerr.KindNotFound, "Router.Resolve", "scenario "+scenarioID+" not found")
		}
		return s, nil
	}

	if id, ok := r.dataTypes[dataType]; ok {
		return r.lookupScenario(id)
	}
	if id, ok := r.dataTypes[shortName(dataType)]; ok {
		return r.lookupScenario(id)
	}
	if r.defaultID != "" {
		return r.lookupScenario(r.defaultID)
	}
	return Scenario{}, apexerr.New(apexerr.KindNotFound, "Router.Resolve", "no scenario matches data type "+dataType)
}

func (r *Router) lookupScenario(id string) (Scenario, error) {
	s, ok := r.scenarios[id]
	if !ok {
		return Scenario{}, apexerr.New(apexerr.KindNotFound, "Router.lookupScenario", "scenario "+id+" referenced by registry not loaded")
	}
	return s, nil
}

// shortName strips a fully-qualified type name (e.g. a Java-style
// "com.example.Trade") down to its trailing segment, so a registry
// entry for "Trade" also matches "com.example.Trade".
func shortName(dataType string) string {
	if i := strings.LastIndexByte(dataType, '.'); i >= 0 {
		return dataType[i+1:]
	}
	return dataType
}
