package engine

import (
	"github.com/mitchellh/mapstructure"

	"github.com/mraysmit/apex-sub000/internal/apexerr"
	"github.com/mraysmit/apex-sub000/internal/config"
	"github.com/mraysmit/apex-sub000/internal/enrich"
	"github.com/mraysmit/apex-sub000/internal/lookup"
	"github.com/mraysmit/apex-sub000/internal/rules"
	"github.com/mraysmit/apex-sub000/internal/value"
)

// lookupRaw is the generic shape of a lookup/external-api enrichment's
// kind-specific fields (everything config.EnrichmentDecl.Raw carries),
// decoded with mapstructure the same way internal/config binds typed IR.
type lookupRaw struct {
	DatasetRef          string            `mapstructure:"dataset-ref"`
	KeyExpressions      []string          `mapstructure:"key-expressions"`
	KeySeparator        string            `mapstructure:"key-separator"`
	AllowNullComponents bool              `mapstructure:"allow-null-components"`
	FilterConditions    map[string]string `mapstructure:"filter-conditions"`
	OrderingExpression  string            `mapstructure:"ordering-expression"`
	FallbackDatasetRef  string            `mapstructure:"fallback-dataset-ref"`
	MissingData         string            `mapstructure:"missing-data"`
	Defaults            map[string]any    `mapstructure:"defaults"`
	FieldMappings       []fieldMappingRaw `mapstructure:"field-mappings"`
}

type fieldMappingRaw struct {
	SourceField    string   `mapstructure:"source-field"`
	TargetField    string   `mapstructure:"target-field"`
	Transform      string   `mapstructure:"transform"`
	AllowOverwrite bool     `mapstructure:"allow-overwrite"`
	Required       bool     `mapstructure:"required"`
	Pattern        string   `mapstructure:"pattern"`
	Enum           []string `mapstructure:"enum"`
	Min            *float64 `mapstructure:"min"`
	Max            *float64 `mapstructure:"max"`
}

type calculationRaw struct {
	Formula        string `mapstructure:"formula"`
	TargetField    string `mapstructure:"target-field"`
	AllowOverwrite bool   `mapstructure:"allow-overwrite"`
}

type aggregationRaw struct {
	DatasetRef     string            `mapstructure:"dataset-ref"`
	Filters        map[string]string `mapstructure:"filters"`
	Method         string            `mapstructure:"method"`
	Field          string            `mapstructure:"field"`
	TargetField    string            `mapstructure:"target-field"`
	AllowOverwrite bool              `mapstructure:"allow-overwrite"`
}

type batchRaw struct {
	CollectionPath string         `mapstructure:"collection-path"`
	ElementVar     string         `mapstructure:"element-var"`
	Inner          map[string]any `mapstructure:"inner"`
}

type chainRaw struct {
	Stages []stageRaw `mapstructure:"stages"`
}

type stageRaw struct {
	Name           string         `mapstructure:"name"`
	OutputVariable string         `mapstructure:"output-variable"`
	Enrichment     map[string]any `mapstructure:"enrichment"`
}

type branchRaw struct {
	Condition  string         `mapstructure:"condition"`
	Enrichment map[string]any `mapstructure:"enrichment"`
}

type routingRaw struct {
	Branches      []branchRaw       `mapstructure:"branches"`
	FieldMappings []fieldMappingRaw `mapstructure:"field-mappings"`
}

func decodeRaw(raw map[string]any, target any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result: target, WeaklyTypedInput: true, TagName: "mapstructure",
	})
	if err != nil {
		return apexerr.Wrap(apexerr.KindSchemaViolation, "decodeRaw", "cannot build decoder", err)
	}
	if err := decoder.Decode(raw); err != nil {
		return apexerr.Wrap(apexerr.KindSchemaViolation, "decodeRaw", "cannot decode enrichment config", err)
	}
	return nil
}

// buildEnrichment specializes one config.EnrichmentDecl into a concrete
// enrich.Enrichment per its Kind discriminator, the runtime counterpart
// of internal/driver.Registry's constructor dispatch.
func buildEnrichment(decl config.EnrichmentDecl, datasets enrich.Datasets, executor *lookup.Executor) (enrich.Enrichment, error) {
	switch decl.Kind {
	case "lookup":
		ld, err := buildLookupDeclaration(decl)
		if err != nil {
			return nil, err
		}
		return enrich.NewLookupEnrichment(ld, decl.DependsOn, executor), nil

	case "external-api":
		ld, err := buildLookupDeclaration(decl)
		if err != nil {
			return nil, err
		}
		return enrich.NewExternalApiEnrichment(ld, decl.DependsOn, executor), nil

	case "calculation":
		var raw calculationRaw
		if err := decodeRaw(decl.Raw, &raw); err != nil {
			return nil, err
		}
		calc, err := enrich.NewCalculation(decl.ID, decl.DependsOn, decl.Condition, raw.Formula, raw.TargetField, raw.AllowOverwrite)
		if err != nil {
			return nil, err
		}
		return enrich.NewConditionGate(calc.Condition(), calc), nil

	case "aggregation":
		var raw aggregationRaw
		if err := decodeRaw(decl.Raw, &raw); err != nil {
			return nil, err
		}
		agg := enrich.NewAggregation(decl.ID, decl.DependsOn, decl.Condition, raw.DatasetRef, raw.Filters,
			enrich.AggregationMethod(raw.Method), raw.Field, raw.TargetField, raw.AllowOverwrite, datasets)
		return enrich.NewConditionGate(agg.Condition(), agg), nil

	case "batch":
		var raw batchRaw
		if err := decodeRaw(decl.Raw, &raw); err != nil {
			return nil, err
		}
		innerDecl, err := innerEnrichmentDecl(decl.ID+".inner", raw.Inner)
		if err != nil {
			return nil, err
		}
		inner, err := buildEnrichment(innerDecl, datasets, executor)
		if err != nil {
			return nil, err
		}
		return enrich.NewBatchEnrichment(decl.ID, decl.DependsOn, raw.CollectionPath, raw.ElementVar, inner), nil

	case "chain":
		var raw chainRaw
		if err := decodeRaw(decl.Raw, &raw); err != nil {
			return nil, err
		}
		stages := make([]enrich.Stage, len(raw.Stages))
		for i, s := range raw.Stages {
			innerDecl, err := innerEnrichmentDecl(decl.ID+"."+s.Name, s.Enrichment)
			if err != nil {
				return nil, err
			}
			inner, err := buildEnrichment(innerDecl, datasets, executor)
			if err != nil {
				return nil, err
			}
			stages[i] = enrich.Stage{Name: s.Name, Enrichment: inner, OutputVariable: s.OutputVariable}
		}
		return enrich.NewChain(decl.ID, decl.DependsOn, stages), nil

	case "conditional-routing":
		var raw routingRaw
		if err := decodeRaw(decl.Raw, &raw); err != nil {
			return nil, err
		}
		branches := make([]enrich.ConditionalBranch, len(raw.Branches))
		for i, b := range raw.Branches {
			innerDecl, err := innerEnrichmentDecl(decl.ID+".branch", b.Enrichment)
			if err != nil {
				return nil, err
			}
			inner, err := buildEnrichment(innerDecl, datasets, executor)
			if err != nil {
				return nil, err
			}
			branches[i] = enrich.ConditionalBranch{Condition: b.Condition, Enrichment: inner}
		}
		return enrich.NewConditionalRouting(decl.ID, decl.DependsOn, branches, buildFieldMappings(raw.FieldMappings)), nil

	default:
		return nil, apexerr.New(apexerr.KindSchemaViolation, "buildEnrichment", "unknown enrichment kind "+decl.Kind+" for "+decl.ID)
	}
}

// innerEnrichmentDecl re-wraps a nested enrichment block (batch's
// `inner`, chain's per-stage `enrichment`, routing's per-branch
// `enrichment`) as an EnrichmentDecl so buildEnrichment can recurse;
// nested enrichments carry no independent id/depends-on of their own,
// they inherit the outer one for dependency-graph purposes.
func innerEnrichmentDecl(id string, raw map[string]any) (config.EnrichmentDecl, error) {
	kind, _ := raw["kind"].(string)
	condition, _ := raw["condition"].(string)
	return config.EnrichmentDecl{ID: id, Kind: kind, Condition: condition, Raw: raw}, nil
}

// buildFieldMappings converts the raw mapstructure-decoded field-mapping
// list shared by lookup/external-api declarations and conditional-routing's
// outer field-mappings into lookup.FieldMapping.
func buildFieldMappings(raw []fieldMappingRaw) []lookup.FieldMapping {
	out := make([]lookup.FieldMapping, len(raw))
	for i, fm := range raw {
		out[i] = lookup.FieldMapping{
			SourceField: fm.SourceField, TargetField: fm.TargetField, Transform: fm.Transform,
			AllowOverwrite: fm.AllowOverwrite, Required: fm.Required, Pattern: fm.Pattern,
			Enum: fm.Enum, Min: fm.Min, Max: fm.Max, HasRange: fm.Min != nil || fm.Max != nil,
		}
	}
	return out
}

func buildLookupDeclaration(decl config.EnrichmentDecl) (lookup.Declaration, error) {
	var raw lookupRaw
	if err := decodeRaw(decl.Raw, &raw); err != nil {
		return lookup.Declaration{}, err
	}

	keyExprs := make([]lookup.KeyComponent, len(raw.KeyExpressions))
	for i, expr := range raw.KeyExpressions {
		keyExprs[i] = lookup.KeyComponent{Expression: expr}
	}

	fieldMappings := buildFieldMappings(raw.FieldMappings)

	defaults := make(map[string]value.Value, len(raw.Defaults))
	for k, v := range raw.Defaults {
		defaults[k] = value.FromAny(v)
	}

	missing := lookup.PolicyFail
	if raw.MissingData != "" {
		missing = lookup.MissingDataPolicy(raw.MissingData)
	}

	return lookup.Declaration{
		ID: decl.ID, DatasetRef: raw.DatasetRef, Condition: decl.Condition,
		KeyExpressions: keyExprs, KeySeparator: raw.KeySeparator, AllowNullComponents: raw.AllowNullComponents,
		FilterConditions: raw.FilterConditions, OrderingExpression: raw.OrderingExpression,
		FallbackDatasetRef: raw.FallbackDatasetRef, MissingData: missing, Defaults: defaults,
		FieldMappings: fieldMappings,
	}, nil
}

// buildRule specializes one config.RuleDecl into a *rules.Rule.
func buildRule(decl config.RuleDecl) (*rules.Rule, error) {
	enabled := true
	if decl.Enabled != nil {
		enabled = *decl.Enabled
	}
	severity := rules.SeverityError
	if decl.Severity != "" {
		severity = rules.Severity(decl.Severity)
	}
	return rules.NewRule(decl.ID, decl.Name, decl.Category, decl.DependsOn, decl.Priority, enabled, severity, decl.Condition, decl.Message)
}

func buildGroup(decl config.RuleGroupDecl) rules.Group {
	return rules.Group{
		ID: decl.ID, Name: decl.Name, Category: decl.Category,
		StopOnFirstFailure: decl.StopOnFirstFailure, RuleIDs: decl.RuleIDs,
	}
}
