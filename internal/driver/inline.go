package driver

import (
	"context"
	"strings"

	"github.com/mraysmit/apex-sub000/internal/apexerr"
	"github.com/mraysmit/apex-sub000/internal/ports"
	"github.com/mraysmit/apex-sub000/internal/value"
)

// Inline is a constant, in-process dataset (§4.4): a vector of records
// keyed by a declared key field, held entirely in memory.
type Inline struct {
	keyField string
	rows     []ports.Record
	byKey    map[string]ports.Record
	sep      string
}

// NewInline builds an Inline driver from a decoded dataset config block
// of shape `{key-field: string, key-separator?: string, data: [...]}`.
func NewInline(config map[string]any) (ports.DataSourceDriver, error) {
	keyField, _ := config["key-field"].(string)
	if keyField == "" {
		return nil, apexerr.New(apexerr.KindSchemaViolation, "NewInline", "key-field is required")
	}
	sep, _ := config["key-separator"].(string)
	if sep == "" {
		sep = "-"
	}
	rawRows, _ := config["data"].([]any)
	rows := make([]ports.Record, 0, len(rawRows))
	byKey := map[string]ports.Record{}
	for _, raw := range rawRows {
		m, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		rec := ports.Record{}
		for k, v := range m {
			rec[k] = value.FromAny(v)
		}
		rows = append(rows, rec)
		if kv, ok := rec[keyField]; ok {
			byKey[value.Format(kv)] = rec
		}
	}
	return &Inline{keyField: keyField, rows: rows, byKey: byKey, sep: sep}, nil
}

func (d *Inline) Init(ctx context.Context) error     { return nil }
func (d *Inline) Shutdown(ctx context.Context) error { return nil }
func (d *Inline) Healthy(ctx context.Context) bool   { return true }

func (d *Inline) Capabilities() ports.Capabilities {
	return ports.Capabilities{SupportsBatch: true, SupportsFilter: true, SupportsComposite: true}
}

func (d *Inline) Resolve(ctx context.Context, datasetRef string, key value.Value, params map[string]value.Value) (ports.Record, bool, error) {
	k := value.Format(key)
	rec, ok := d.byKey[k]
	if !ok {
		return nil, false, nil
	}
	if !matchesFilter(rec, params) {
		return nil, false, nil
	}
	return rec, true, nil
}

func (d *Inline) BatchResolve(ctx context.Context, datasetRef string, keys []value.Value, params map[string]value.Value) (map[string]ports.Record, error) {
	out := map[string]ports.Record{}
	for _, k := range keys {
		rec, ok, err := d.Resolve(ctx, datasetRef, k, params)
		if err != nil {
			return nil, err
		}
		if ok {
			out[value.Format(k)] = rec
		}
	}
	return out, nil
}

func (d *Inline) Query(ctx context.Context, statement string, params map[string]value.Value) ([]ports.Record, error) {
	out := make([]ports.Record, 0, len(d.rows))
	for _, r := range d.rows {
		if matchesFilter(r, params) {
			out = append(out, r)
		}
	}
	return out, nil
}

// matchesFilter applies simple equality filters carried in params under
// the "filter." prefix, used by the lookup executor's filter-conditions
// step (§4.5) for drivers that filter client-side (Inline, YamlFile).
func matchesFilter(rec ports.Record, params map[string]value.Value) bool {
	for k, v := range params {
		field, ok := strings.CutPrefix(k, "filter.")
		if !ok {
			continue
		}
		rv, ok := rec[field]
		if !ok || !value.Equal(rv, v) {
			return false
		}
	}
	return true
}
