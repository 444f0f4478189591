package enrich

import (
	"context"

	"github.com/mraysmit/apex-sub000/internal/apexerr"
	"github.com/mraysmit/apex-sub000/internal/evalctx"
	"github.com/mraysmit/apex-sub000/internal/expr"
	"github.com/mraysmit/apex-sub000/internal/ports"
	"github.com/mraysmit/apex-sub000/internal/value"
)

// AggregationMethod selects the SQL-like reduction spec.md §9 calls
// "aggregation-enrichment ... with SQL-like operations over external
// datasets".
type AggregationMethod string

const (
	AggSum   AggregationMethod = "sum"
	AggAvg   AggregationMethod = "avg"
	AggMin   AggregationMethod = "min"
	AggMax   AggregationMethod = "max"
	AggCount AggregationMethod = "count"
)

// Datasets resolves a dataset reference to its driver, shared with
// internal/lookup's identically-shaped interface.
type Datasets interface {
	Driver(ref string) (ports.DataSourceDriver, bool)
}

// Aggregation runs an AggregationMethod over the rows a dataset query
// returns, pushing filter-conditions into the driver when its
// Capabilities declare SupportsFilter and filtering client-side
// otherwise, per spec.md §9's resolution of the aggregation-enrichment
// Open Question.
type Aggregation struct {
	id         string
	dependsOn  []string
	condition  string
	datasetRef string
	filters    map[string]string // field -> expression
	method     AggregationMethod
	field      string // record field to aggregate; ignored for count
	targetField string
	allowOverwrite bool

	datasets Datasets
}

// NewAggregation builds an Aggregation enrichment.
func NewAggregation(id string, dependsOn []string, condition, datasetRef string, filters map[string]string,
	method AggregationMethod, field, targetField string, allowOverwrite bool, datasets Datasets) *Aggregation {
	return &Aggregation{
		id: id, dependsOn: dependsOn, condition: condition, datasetRef: datasetRef,
		filters: filters, method: method, field: field, targetField: targetField,
		allowOverwrite: allowOverwrite, datasets: datasets,
	}
}

func (a *Aggregation) ID() string          { return a.id }
func (a *Aggregation) DependsOn() []string { return a.dependsOn }
func (a *Aggregation) Condition() string   { return a.condition }

func (a *Aggregation) Execute(goCtx context.Context, ctx *evalctx.Context) error {
	drv, ok := a.datasets.Driver(a.datasetRef)
	if !ok {
		return apexerr.New(apexerr.KindUnknownRef, "Aggregation.Execute", "unknown dataset "+a.datasetRef)
	}

	params := map[string]value.Value{}
	for field, src := range a.filters {
		prog, err := expr.Compile(src)
		if err != nil {
			return err
		}
		v, err := prog.Eval(ctx)
		if err != nil {
			return err
		}
		params["filter."+field] = v
	}

	rows, err := drv.Query(goCtx, "", params)
	if err != nil {
		return err
	}
	// Client-side filtering fallback when the driver doesn't declare
	// SupportsFilter: drivers that do push-down already applied filters
	// inside Query, so this is a defensive re-check, not double work, for
	// drivers that ignore unsupported params rather than rejecting them.
	if !drv.Capabilities().SupportsFilter {
		rows = filterRows(rows, params)
	}

	result, err := reduce(a.method, a.field, rows)
	if err != nil {
		return err
	}
	return ctx.WriteField(a.targetField, result, a.allowOverwrite)
}

func filterRows(rows []ports.Record, params map[string]value.Value) []ports.Record {
	if len(params) == 0 {
		return rows
	}
	out := make([]ports.Record, 0, len(rows))
	for _, r := range rows {
		match := true
		for k, v := range params {
			field := k[len("filter."):]
			rv, ok := r[field]
			if !ok || !value.Equal(rv, v) {
				match = false
				break
			}
		}
		if match {
			out = append(out, r)
		}
	}
	return out
}

func reduce(method AggregationMethod, field string, rows []ports.Record) (value.Value, error) {
	if method == AggCount {
		return value.Int64(int64(len(rows))), nil
	}
	if len(rows) == 0 {
		return value.Null(), nil
	}

	nums := make([]value.Value, 0, len(rows))
	for _, r := range rows {
		v, ok := r[field]
		if !ok || v.IsNull() {
			continue
		}
		nums = append(nums, v)
	}
	if len(nums) == 0 {
		return value.Null(), nil
	}

	switch method {
	case AggSum:
		acc := value.Int64(0)
		for _, n := range nums {
			s, err := value.Add("+", acc, n)
			if err != nil {
				return value.Value{}, err
			}
			acc = s
		}
		return acc, nil
	case AggAvg:
		acc := value.Int64(0)
		for _, n := range nums {
			s, err := value.Add("+", acc, n)
			if err != nil {
				return value.Value{}, err
			}
			acc = s
		}
		return value.Div("/", acc, value.Int64(int64(len(nums))))
	case AggMin, AggMax:
		best := nums[0]
		for _, n := range nums[1:] {
			cmp, ok := value.Compare(best, n)
			if !ok {
				continue
			}
			if (method == AggMin && cmp > 0) || (method == AggMax && cmp < 0) {
				best = n
			}
		}
		return best, nil
	default:
		return value.Value{}, apexerr.New(apexerr.KindSchemaViolation, "reduce", "unknown aggregation method "+string(method))
	}
}
