// Package lookup implements the six-step Lookup Executor algorithm of
// spec.md §4.5: condition check, key construction (scalar or composite),
// filter-derived dataset handle, cache-then-driver-then-fallback
// resolution with a missing-data policy, field-mapping with transform and
// validation, and timing/source/cache-hit bookkeeping.
package lookup

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/fatih/structs"

	"github.com/mraysmit/apex-sub000/internal/apexerr"
	"github.com/mraysmit/apex-sub000/internal/cache"
	"github.com/mraysmit/apex-sub000/internal/evalctx"
	"github.com/mraysmit/apex-sub000/internal/expr"
	"github.com/mraysmit/apex-sub000/internal/ports"
	"github.com/mraysmit/apex-sub000/internal/value"
)

// MissingDataPolicy selects behavior when a lookup resolves to nothing,
// per spec.md §4.5.
type MissingDataPolicy string

const (
	PolicyFail           MissingDataPolicy = "fail"
	PolicyContinue       MissingDataPolicy = "continue"
	PolicyDefaults       MissingDataPolicy = "defaults"
	PolicyFallbackSource MissingDataPolicy = "fallback-source"
)

// KeyComponent is one component of a (possibly composite) lookup key.
type KeyComponent struct {
	Expression string
}

// FieldMapping binds a dotted source path in the resolved record to a
// target context field, with an optional transformation expression
// (evaluated with the extracted value bound as `#{sourceFieldName}`) and
// optional validation.
type FieldMapping struct {
	SourceField    string // dotted path into the resolved record
	TargetField    string // dotted path into the context
	Transform      string // expression source, "" if none
	AllowOverwrite bool

	Required bool
	Pattern  string // regex, "" if none
	Enum     []string
	Min, Max *float64
	HasRange bool
}

// Declaration is a LookupEnrichment configuration.
type Declaration struct {
	ID                  string
	DatasetRef          string
	Condition           string // "" means always-run
	KeyExpressions      []KeyComponent
	KeySeparator        string
	AllowNullComponents bool
	FilterConditions    map[string]string // field -> expression producing the filter value
	OrderingExpression  string            // "" means "take first on ambiguity"
	FallbackDatasetRef  string
	MissingData         MissingDataPolicy
	Defaults            map[string]value.Value
	FieldMappings       []FieldMapping
}

// Outcome describes what happened when Execute ran a Declaration.
type Outcome string

const (
	OutcomeApplied Outcome = "Applied"
	OutcomeSkipped Outcome = "Skipped"
	OutcomeError   Outcome = "Error"
)

// Result is the bookkeeping record of spec.md §4.5 step 6, exposed so
// callers can emit it to an AuditSink or fold it into a run report.
type Result struct {
	EnrichmentID string
	Outcome      Outcome
	Source       string // dataset ref actually used (may be the fallback)
	CacheHit     bool
	Duration     time.Duration
	Err          error
}

// Flatten renders Result as a generic map via fatih/structs, the shape
// an AuditSink or report writer consumes without depending on this
// package's types.
func (r Result) Flatten() map[string]any {
	m := structs.Map(r)
	if r.Err != nil {
		m["Err"] = r.Err.Error()
	}
	return m
}

// Datasets resolves a dataset reference to its driver, used for both the
// primary dataset and any configured fallback.
type Datasets interface {
	Driver(ref string) (ports.DataSourceDriver, bool)
}

// Executor runs Declarations against a Datasets registry and an optional
// cache tier shared across lookups.
type Executor struct {
	datasets Datasets
	cache    *cache.L1
}

// New builds an Executor. cacheTier may be nil to disable caching.
func New(datasets Datasets, cacheTier *cache.L1) *Executor {
	return &Executor{datasets: datasets, cache: cacheTier}
}

// Execute runs one Declaration against ctx, mutating ctx's fields via the
// declared FieldMappings on success.
func (e *Executor) Execute(goCtx context.Context, decl Declaration, ctx *evalctx.Context) Result {
	start := time.Now()
	result := Result{EnrichmentID: decl.ID, Source: decl.DatasetRef}

	// Step 1: condition.
	if decl.Condition != "" {
		cond, err := evalCondition(decl.Condition, ctx)
		if err != nil {
			result.Outcome, result.Err = OutcomeError, err
			result.Duration = time.Since(start)
			return result
		}
		if !cond {
			result.Outcome = OutcomeSkipped
			result.Duration = time.Since(start)
			return result
		}
	}

	// Step 2: key construction.
	key, skip, err := buildKey(decl, ctx)
	if err != nil {
		result.Outcome, result.Err = OutcomeError, err
		result.Duration = time.Since(start)
		return result
	}
	if skip {
		result.Outcome = OutcomeSkipped
		result.Duration = time.Since(start)
		return result
	}

	// Step 3: filter-conditions become driver params.
	params, err := buildFilterParams(decl, ctx)
	if err != nil {
		result.Outcome, result.Err = OutcomeError, err
		result.Duration = time.Since(start)
		return result
	}

	// Step 4: cache -> driver -> fallback -> missing-data policy.
	rec, found, cacheHit, err := e.resolve(goCtx, decl, key, params, &result)
	if err != nil {
		result.Outcome, result.Err = OutcomeError, err
		result.Duration = time.Since(start)
		return result
	}
	result.CacheHit = cacheHit

	if !found {
		if outcome, err := e.applyMissingDataPolicy(decl, ctx); err != nil {
			result.Outcome, result.Err = OutcomeError, err
			result.Duration = time.Since(start)
			return result
		} else {
			result.Outcome = outcome
			result.Duration = time.Since(start)
			return result
		}
	}

	// Step 5: field mappings.
	if err := applyFieldMappings(decl.FieldMappings, rec, ctx); err != nil {
		result.Outcome, result.Err = OutcomeError, err
		result.Duration = time.Since(start)
		return result
	}

	result.Outcome = OutcomeApplied
	result.Duration = time.Since(start)
	return result
}

func evalCondition(src string, ctx *evalctx.Context) (bool, error) {
	prog, err := expr.Compile(src)
	if err != nil {
		return false, err
	}
	v, err := prog.Eval(ctx)
	if err != nil {
		return false, err
	}
	return v.Truthy(), nil
}

// buildKey evaluates the scalar or composite key expression(s); a null
// single-component key means skip, per spec.md §4.5 step 2.
func buildKey(decl Declaration, ctx *evalctx.Context) (value.Value, bool, error) {
	if len(decl.KeyExpressions) == 0 {
		return value.Value{}, false, apexerr.New(apexerr.KindSchemaViolation, "lookup.buildKey", "no key-expressions declared")
	}
	if len(decl.KeyExpressions) == 1 {
		v, err := evalExpr(decl.KeyExpressions[0].Expression, ctx)
		if err != nil {
			return value.Value{}, false, err
		}
		if v.IsNull() {
			return value.Value{}, true, nil
		}
		return v, false, nil
	}

	sep := decl.KeySeparator
	if sep == "" {
		sep = "-"
	}
	parts := make([]string, 0, len(decl.KeyExpressions))
	for i, comp := range decl.KeyExpressions {
		v, err := evalExpr(comp.Expression, ctx)
		if err != nil {
			return value.Value{}, false, err
		}
		if v.IsNull() {
			if decl.AllowNullComponents {
				parts = append(parts, "")
				continue
			}
			return value.Value{}, false, apexerr.New(apexerr.KindSchemaViolation, "lookup.buildKey",
				fmt.Sprintf("composite key component %d is null", i))
		}
		parts = append(parts, value.Format(v))
	}
	return value.String(strings.Join(parts, sep)), false, nil
}

func buildFilterParams(decl Declaration, ctx *evalctx.Context) (map[string]value.Value, error) {
	if len(decl.FilterConditions) == 0 {
		return nil, nil
	}
	params := make(map[string]value.Value, len(decl.FilterConditions))
	for field, src := range decl.FilterConditions {
		v, err := evalExpr(src, ctx)
		if err != nil {
			return nil, err
		}
		params["filter."+field] = v
	}
	return params, nil
}

func evalExpr(src string, ctx *evalctx.Context) (value.Value, error) {
	prog, err := expr.Compile(src)
	if err != nil {
		return value.Value{}, err
	}
	return prog.Eval(ctx)
}

// resolve implements step 4: cache, then driver, then fallback driver.
func (e *Executor) resolve(goCtx context.Context, decl Declaration, key value.Value, params map[string]value.Value, result *Result) (ports.Record, bool, bool, error) {
	drv, ok := e.datasets.Driver(decl.DatasetRef)
	if !ok {
		return nil, false, false, apexerr.New(apexerr.KindUnknownRef, "lookup.resolve", "unknown dataset "+decl.DatasetRef)
	}

	cacheKey := decl.DatasetRef + ":" + value.Format(key)
	loader := func() (value.Value, bool, error) {
		rows, err := driverResolveMulti(goCtx, drv, decl, key, params)
		if err != nil {
			return value.Value{}, false, err
		}
		if len(rows) == 0 {
			return value.Value{}, false, nil
		}
		rec, err := pickRecord(decl, rows, goCtx, drv)
		if err != nil {
			return value.Value{}, false, err
		}
		return value.Map(rec), true, nil
	}

	if e.cache != nil {
		_, cacheHit := e.cache.Get(goCtx, cacheKey)
		v, found, err := e.cache.Resolve(goCtx, cacheKey, loader)
		if err != nil {
			return nil, false, false, err
		}
		if found {
			m, _ := v.AsMap()
			return ports.Record(m), true, cacheHit, nil
		}
	} else {
		v, found, err := loader()
		if err != nil {
			return nil, false, false, err
		}
		if found {
			m, _ := v.AsMap()
			return ports.Record(m), true, false, nil
		}
	}

	if decl.FallbackDatasetRef == "" {
		return nil, false, false, nil
	}
	fallbackDrv, ok := e.datasets.Driver(decl.FallbackDatasetRef)
	if !ok {
		return nil, false, false, apexerr.New(apexerr.KindUnknownRef, "lookup.resolve", "unknown fallback dataset "+decl.FallbackDatasetRef)
	}
	result.Source = decl.FallbackDatasetRef
	rec, found, err := fallbackDrv.Resolve(goCtx, decl.FallbackDatasetRef, key, params)
	return rec, found, false, err
}

func driverResolveMulti(goCtx context.Context, drv ports.DataSourceDriver, decl Declaration, key value.Value, params map[string]value.Value) ([]ports.Record, error) {
	caps := drv.Capabilities()
	if decl.OrderingExpression != "" && caps.SupportsFilter {
		rows, err := drv.Query(goCtx, "", mergeKeyIntoParams(params, key))
		if err != nil {
			return nil, err
		}
		return rows, nil
	}
	rec, found, err := drv.Resolve(goCtx, decl.DatasetRef, key, params)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}
	return []ports.Record{rec}, nil
}

func mergeKeyIntoParams(params map[string]value.Value, key value.Value) map[string]value.Value {
	out := make(map[string]value.Value, len(params)+1)
	for k, v := range params {
		out[k] = v
	}
	out["key"] = key
	return out
}

// pickRecord implements the DuplicateKey tie-break of spec.md §4.5: a
// single row is returned as is; several rows with no ordering expression
// fail with DuplicateKey; otherwise the row with the highest ordering
// score wins, the earliest row winning ties.
func pickRecord(decl Declaration, rows []ports.Record, goCtx context.Context, drv ports.DataSourceDriver) (ports.Record, error) {
	if len(rows) == 1 {
		return rows[0], nil
	}
	if decl.OrderingExpression == "" {
		return nil, apexerr.New(apexerr.KindDuplicateKey, "lookup.pickRecord",
			fmt.Sprintf("%d records matched key for dataset %s", len(rows), decl.DatasetRef))
	}
	best := rows[0]
	bestScore, err := orderingScore(decl.OrderingExpression, best)
	if err != nil {
		return nil, err
	}
	for _, r := range rows[1:] {
		score, err := orderingScore(decl.OrderingExpression, r)
		if err != nil {
			return nil, err
		}
		if score > bestScore {
			best, bestScore = r, score
		}
	}
	return best, nil
}

func orderingScore(src string, rec ports.Record) (float64, error) {
	ctx := evalctx.New(rec)
	prog, err := expr.Compile(src)
	if err != nil {
		return 0, err
	}
	v, err := prog.Eval(ctx)
	if err != nil {
		return 0, err
	}
	if f, ok := v.AsFloat64(); ok {
		return f, nil
	}
	if i, ok := v.AsInt64(); ok {
		return float64(i), nil
	}
	return 0, nil
}

func (e *Executor) applyMissingDataPolicy(decl Declaration, ctx *evalctx.Context) (Outcome, error) {
	switch decl.MissingData {
	case PolicyFail, "":
		return OutcomeError, apexerr.New(apexerr.KindNotFound, "lookup.applyMissingDataPolicy",
			"dataset "+decl.DatasetRef+" did not resolve and policy is fail")
	case PolicyContinue:
		for _, fm := range decl.FieldMappings {
			if err := ctx.WriteField(fm.TargetField, value.Null(), fm.AllowOverwrite); err != nil {
				return OutcomeError, err
			}
		}
		return OutcomeSkipped, nil
	case PolicyDefaults:
		for _, fm := range decl.FieldMappings {
			dv, ok := decl.Defaults[fm.TargetField]
			if !ok {
				dv = value.Null()
			}
			if err := ctx.WriteField(fm.TargetField, dv, fm.AllowOverwrite); err != nil {
				return OutcomeError, err
			}
		}
		return OutcomeSkipped, nil
	case PolicyFallbackSource:
		// The fallback dataset was already attempted during resolve; if we
		// got here it was also absent, so fall through to "continue"
		// semantics as the conservative default.
		for _, fm := range decl.FieldMappings {
			if err := ctx.WriteField(fm.TargetField, value.Null(), fm.AllowOverwrite); err != nil {
				return OutcomeError, err
			}
		}
		return OutcomeSkipped, nil
	default:
		return OutcomeError, apexerr.New(apexerr.KindSchemaViolation, "lookup.applyMissingDataPolicy",
			"unknown missing-data policy "+string(decl.MissingData))
	}
}

// applyFieldMappings implements step 5: extract, transform, validate,
// write. Mapped values are bound to the transformation expression's
// evaluation context as a synthetic variable named after the source
// field, per spec.md's `#{sourceFieldName}` binding.
func applyFieldMappings(mappings []FieldMapping, rec ports.Record, ctx *evalctx.Context) error {
	for _, fm := range mappings {
		v, err := extractPath(rec, fm.SourceField)
		if err != nil {
			return err
		}

		if fm.Transform != "" {
			v, err = evalTransform(fm, v)
			if err != nil {
				return err
			}
		}

		if err := validate(fm, v); err != nil {
			return err
		}

		if err := ctx.WriteField(fm.TargetField, v, fm.AllowOverwrite); err != nil {
			return err
		}
	}
	return nil
}

// ApplyFieldMappingsFromContext runs the transform/validate/write steps
// of applyFieldMappings with the evaluation context's own root record as
// the source, rather than a freshly-resolved external record. Used by
// conditional-routing's outer field-mappings (spec.md §4.6), which apply
// regardless of which branch ran and so have no single resolved record
// to extract from.
func ApplyFieldMappingsFromContext(mappings []FieldMapping, ctx *evalctx.Context) error {
	for _, fm := range mappings {
		v, err := ctx.Root(fm.SourceField)
		if err != nil {
			return err
		}

		if fm.Transform != "" {
			v, err = evalTransform(fm, v)
			if err != nil {
				return err
			}
		}

		if err := validate(fm, v); err != nil {
			return err
		}

		if err := ctx.WriteField(fm.TargetField, v, fm.AllowOverwrite); err != nil {
			return err
		}
	}
	return nil
}

// extractPath supports dotted paths into a resolved record (spec.md
// §4.5 step 5).
func extractPath(rec ports.Record, path string) (value.Value, error) {
	segments := strings.Split(path, ".")
	var cur value.Value = value.Map(rec)
	for _, seg := range segments {
		m, ok := cur.AsMap()
		if !ok {
			return value.Value{}, apexerr.New(apexerr.KindPathNotFound, "lookup.extractPath", "path "+path+" does not resolve")
		}
		next, ok := m[seg]
		if !ok {
			return value.Value{}, apexerr.New(apexerr.KindPathNotFound, "lookup.extractPath", "path "+path+" does not resolve")
		}
		cur = next
	}
	return cur, nil
}

// transformBinding is the struct fatih/structs flattens into the
// variable set a transformation expression evaluates against: the bound
// `#{sourceFieldName}` value plus the source field name itself, in case
// a transform wants to branch on provenance.
type transformBinding struct {
	SourceFieldName string
	Value           any
}

func evalTransform(fm FieldMapping, v value.Value) (value.Value, error) {
	prog, err := expr.Compile(fm.Transform)
	if err != nil {
		return value.Value{}, err
	}
	binding := structs.Map(transformBinding{SourceFieldName: fm.SourceField, Value: value.ToAny(v)})
	varName := fm.SourceField
	if idx := strings.LastIndex(varName, "."); idx >= 0 {
		varName = varName[idx+1:]
	}
	vars := map[string]value.Value{varName: v}
	for k, bv := range binding {
		vars[k] = value.FromAny(bv)
	}
	tctx := evalctx.New(nil)
	for k, val := range vars {
		tctx.SetVariable(k, val)
	}
	return prog.Eval(tctx)
}

func validate(fm FieldMapping, v value.Value) error {
	if fm.Required && v.IsNull() {
		return apexerr.New(apexerr.KindSchemaViolation, "lookup.validate", "required field "+fm.TargetField+" is null")
	}
	if v.IsNull() {
		return nil
	}
	if fm.Pattern != "" {
		s, ok := v.AsString()
		if ok {
			re, err := regexp.Compile(fm.Pattern)
			if err != nil {
				return apexerr.Wrap(apexerr.KindSchemaViolation, "lookup.validate", "invalid pattern "+fm.Pattern, err)
			}
			if !re.MatchString(s) {
				return apexerr.New(apexerr.KindSchemaViolation, "lookup.validate", "field "+fm.TargetField+" fails pattern "+fm.Pattern)
			}
		}
	}
	if len(fm.Enum) > 0 {
		s := value.Format(v)
		found := false
		for _, allowed := range fm.Enum {
			if allowed == s {
				found = true
				break
			}
		}
		if !found {
			return apexerr.New(apexerr.KindSchemaViolation, "lookup.validate", "field "+fm.TargetField+" not in enum")
		}
	}
	if fm.HasRange {
		var n float64
		if f, ok := v.AsFloat64(); ok {
			n = f
		} else if i, ok := v.AsInt64(); ok {
			n = float64(i)
		} else if d, ok := v.AsDecimal(); ok {
			f64, _ := strconv.ParseFloat(d.String(), 64)
			n = f64
		}
		if fm.Min != nil && n < *fm.Min {
			return apexerr.New(apexerr.KindSchemaViolation, "lookup.validate", "field "+fm.TargetField+" below minimum")
		}
		if fm.Max != nil && n > *fm.Max {
			return apexerr.New(apexerr.KindSchemaViolation, "lookup.validate", "field "+fm.TargetField+" above maximum")
		}
	}
	return nil
}
