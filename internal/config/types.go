// Package config ingests YAML documents, classifies them, validates
// mandatory metadata, and binds them into typed IR structs per spec.md
// §4.8.
package config

import "github.com/gofrs/uuid/v5"

// FileType is one of the five recognized document kinds.
type FileType string

const (
	TypeDataset           FileType = "dataset"
	TypeRuleConfig        FileType = "rule-config"
	TypeScenario          FileType = "scenario"
	TypeScenarioRegistry  FileType = "scenario-registry"
	TypeBootstrap         FileType = "bootstrap"
)

// Metadata is the universal header every config file carries.
type Metadata struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Description string `mapstructure:"description"`
	Type        string `mapstructure:"type"`

	BusinessDomain string `mapstructure:"business-domain"`
	Owner          string `mapstructure:"owner"`
	CreatedBy      string `mapstructure:"created-by"`
	Author         string `mapstructure:"author"`
	Source         string `mapstructure:"source"`
}

// DatasetDoc is the typed IR for a dataset config file.
type DatasetDoc struct {
	Metadata Metadata                 `mapstructure:"metadata"`
	Driver   string                   `mapstructure:"driver"`
	Config   map[string]any           `mapstructure:"config"`
	Data     []map[string]any         `mapstructure:"data"`
}

// RuleConfigDoc is the typed IR for a rule-config file: enrichments and
// rules declared together, as spec.md §4 allows one file to carry both.
type RuleConfigDoc struct {
	Metadata    Metadata         `mapstructure:"metadata"`
	Enrichments []EnrichmentDecl `mapstructure:"enrichments"`
	Rules       []RuleDecl       `mapstructure:"rules"`
	RuleGroups  []RuleGroupDecl  `mapstructure:"rule-groups"`
}

// EnrichmentDecl is the generic YAML shape of one enrichment before it's
// specialized into a Calculation/Aggregation/Lookup/etc by the caller
// (internal/engine), which knows the `kind` discriminator's meaning.
type EnrichmentDecl struct {
	ID         string         `mapstructure:"id"`
	Kind       string         `mapstructure:"kind"`
	Condition  string         `mapstructure:"condition"`
	DependsOn  []string       `mapstructure:"depends-on"`
	Raw        map[string]any `mapstructure:",remain"`
}

// RuleDecl is the generic YAML shape of one rule.
type RuleDecl struct {
	ID         string   `mapstructure:"id"`
	Name       string   `mapstructure:"name"`
	Condition  string   `mapstructure:"condition"`
	Message    string   `mapstructure:"message"`
	Severity   string   `mapstructure:"severity"`
	Category   string   `mapstructure:"category"`
	Priority   int      `mapstructure:"priority"`
	DependsOn  []string `mapstructure:"depends-on"`
	Enabled    *bool    `mapstructure:"enabled"`
}

// RuleGroupDecl is the generic YAML shape of one rule-group.
type RuleGroupDecl struct {
	ID                 string   `mapstructure:"id"`
	Name               string   `mapstructure:"name"`
	Category           string   `mapstructure:"category"`
	StopOnFirstFailure bool     `mapstructure:"stop-on-first-failure"`
	RuleIDs            []string `mapstructure:"rule-ids"`
}

// ScenarioDoc maps a data type to an ordered list of rule-config files.
type ScenarioDoc struct {
	Metadata       Metadata `mapstructure:"metadata"`
	Scenario       struct {
		ID              string   `mapstructure:"id"`
		DataTypes       []string `mapstructure:"data-types"`
		RuleConfigFiles []string `mapstructure:"rule-config-files"`
	} `mapstructure:"scenario"`
}

// ScenarioRegistryDoc maps data types (incl. short-name aliases) to
// scenario ids, with an optional default.
type ScenarioRegistryDoc struct {
	Metadata         Metadata `mapstructure:"metadata"`
	ScenarioRegistry struct {
		DataTypes map[string]string `mapstructure:"data-types"`
		Default   string            `mapstructure:"default"`
	} `mapstructure:"scenario-registry"`
}

// BootstrapDoc declares top-level rule-chains and categories, the entry
// point for a deployment.
type BootstrapDoc struct {
	Metadata    Metadata `mapstructure:"metadata"`
	RuleChains  []string `mapstructure:"rule-chains"`
	Categories  []string `mapstructure:"categories"`
}

// ConfigHandle wraps a loaded document with a version-instance id
// distinct from its semver Version field, so reload() can tell a
// reloaded config apart from the one it replaces even when the file's
// own version string is unchanged.
type ConfigHandle struct {
	Path            string
	Type            FileType
	VersionInstance uuid.UUID
	Doc             any
}
