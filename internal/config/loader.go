package config

import (
	"os"
	"regexp"

	"github.com/gofrs/uuid/v5"
	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"

	"github.com/mraysmit/apex-sub000/internal/apexerr"
)

// Loader reads, classifies, validates, and binds YAML config files from
// a base path, per spec.md §4.8.
type Loader struct {
	basePath string
}

// NewLoader builds a Loader rooted at basePath; file references in
// scenario/bootstrap documents resolve relative to it.
func NewLoader(basePath string) *Loader {
	return &Loader{basePath: basePath}
}

// BasePath returns the root relative config file references resolve
// against.
func (l *Loader) BasePath() string { return l.basePath }

// LoadFile reads one YAML file, classifies it, validates metadata, and
// binds it into the appropriate typed IR struct, stamping a fresh
// version-instance id.
func (l *Loader) LoadFile(path string) (*ConfigHandle, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, apexerr.Wrap(apexerr.KindYamlParse, "Loader.LoadFile", "cannot read "+path, err)
	}

	var generic map[string]any
	if err := yaml.Unmarshal(raw, &generic); err != nil {
		return nil, apexerr.Wrap(apexerr.KindYamlParse, "Loader.LoadFile", "invalid yaml in "+path, err)
	}
	expandEnv(generic)

	ft, err := Classify(path, generic)
	if err != nil {
		return nil, err
	}

	var meta Metadata
	if m, ok := generic["metadata"].(map[string]any); ok {
		if err := mapstructure.Decode(m, &meta); err != nil {
			return nil, apexerr.Wrap(apexerr.KindSchemaViolation, "Loader.LoadFile", "invalid metadata in "+path, err)
		}
	}
	if err := ValidateMetadata(ft, meta); err != nil {
		return nil, err
	}

	doc, err := bind(ft, generic)
	if err != nil {
		return nil, err
	}

	versionInstance, err := uuid.NewV4()
	if err != nil {
		return nil, apexerr.Wrap(apexerr.KindSchemaViolation, "Loader.LoadFile", "cannot stamp version-instance id", err)
	}

	return &ConfigHandle{Path: path, Type: ft, VersionInstance: versionInstance, Doc: doc}, nil
}

func bind(ft FileType, generic map[string]any) (any, error) {
	var target any
	switch ft {
	case TypeDataset:
		target = &DatasetDoc{}
	case TypeRuleConfig:
		target = &RuleConfigDoc{}
	case TypeScenario:
		target = &ScenarioDoc{}
	case TypeScenarioRegistry:
		target = &ScenarioRegistryDoc{}
	case TypeBootstrap:
		target = &BootstrapDoc{}
	default:
		return nil, apexerr.New(apexerr.KindTypeAmbiguous, "bind", "unrecognized file type "+string(ft))
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           target,
		WeaklyTypedInput: true,
		TagName:          "mapstructure",
	})
	if err != nil {
		return nil, apexerr.Wrap(apexerr.KindSchemaViolation, "bind", "cannot build decoder", err)
	}
	if err := decoder.Decode(generic); err != nil {
		return nil, apexerr.Wrap(apexerr.KindSchemaViolation, "bind", "cannot decode document", err)
	}
	if rc, ok := target.(*RuleConfigDoc); ok {
		if err := ValidateRuleConfig(*rc); err != nil {
			return nil, err
		}
	}
	return target, nil
}

var envPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(:-?([^}]*))?\}`)

// expandEnv walks the generic document in place, expanding `${VAR}` and
// `${VAR:default}` placeholders in every string value of the document.
// Expansion is not limited to declared-secret or declared-config fields:
// dataset rows and expressions are expanded the same way.
func expandEnv(node any) {
	switch v := node.(type) {
	case map[string]any:
		for k, val := range v {
			v[k] = expandValue(val)
		}
	case []any:
		for i, val := range v {
			v[i] = expandValue(val)
		}
	}
}

func expandValue(val any) any {
	switch x := val.(type) {
	case string:
		return expandString(x)
	case map[string]any:
		expandEnv(x)
		return x
	case []any:
		expandEnv(x)
		return x
	default:
		return x
	}
}

func expandString(s string) string {
	return envPattern.ReplaceAllStringFunc(s, func(match string) string {
		groups := envPattern.FindStringSubmatch(match)
		name, def := groups[1], groups[3]
		if v, ok := os.LookupEnv(name); ok {
			return v
		}
		return def
	})
}
