package driver

import (
	"context"
	"os"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/mraysmit/apex-sub000/internal/apexerr"
	"github.com/mraysmit/apex-sub000/internal/ports"
	"github.com/mraysmit/apex-sub000/internal/value"
)

// YamlFile loads a dataset document once at Init and serves lookups from
// the in-memory copy (§4.4). Watch-based reload is left to the external
// file-watching daemon named out of scope in §1; Init may be called again
// to pick up a changed file, mirroring the teacher's ReloadSelf pattern.
type YamlFile struct {
	path     string
	keyField string

	mu    sync.RWMutex
	byKey map[string]ports.Record
	rows  []ports.Record
}

// NewYamlFile builds a YamlFile driver from `{path, key-field}`.
func NewYamlFile(config map[string]any) (ports.DataSourceDriver, error) {
	path, _ := config["path"].(string)
	keyField, _ := config["key-field"].(string)
	if path == "" || keyField == "" {
		return nil, apexerr.New(apexerr.KindSchemaViolation, "NewYamlFile", "path and key-field are required")
	}
	return &YamlFile{path: path, keyField: keyField}, nil
}

func (d *YamlFile) Init(ctx context.Context) error {
	raw, err := os.ReadFile(d.path)
	if err != nil {
		return apexerr.Wrap(apexerr.KindConnectionError, "YamlFile.Init", "cannot read "+d.path, err)
	}
	var doc struct {
		Data []map[string]any `yaml:"data"`
	}
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return apexerr.Wrap(apexerr.KindYamlParse, "YamlFile.Init", "invalid yaml in "+d.path, err)
	}
	byKey := map[string]ports.Record{}
	rows := make([]ports.Record, 0, len(doc.Data))
	for _, m := range doc.Data {
		rec := ports.Record{}
		for k, v := range m {
			rec[k] = value.FromAny(v)
		}
		rows = append(rows, rec)
		if kv, ok := rec[d.keyField]; ok {
			byKey[value.Format(kv)] = rec
		}
	}
	d.mu.Lock()
	d.byKey, d.rows = byKey, rows
	d.mu.Unlock()
	return nil
}

func (d *YamlFile) Shutdown(ctx context.Context) error { return nil }
func (d *YamlFile) Healthy(ctx context.Context) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.byKey != nil
}

func (d *YamlFile) Capabilities() ports.Capabilities {
	return ports.Capabilities{SupportsBatch: true, SupportsFilter: true, SupportsComposite: true}
}

func (d *YamlFile) Resolve(ctx context.Context, datasetRef string, key value.Value, params map[string]value.Value) (ports.Record, bool, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	rec, ok := d.byKey[value.Format(key)]
	if !ok || !matchesFilter(rec, params) {
		return nil, false, nil
	}
	return rec, true, nil
}

func (d *YamlFile) BatchResolve(ctx context.Context, datasetRef string, keys []value.Value, params map[string]value.Value) (map[string]ports.Record, error) {
	out := map[string]ports.Record{}
	for _, k := range keys {
		rec, ok, _ := d.Resolve(ctx, datasetRef, k, params)
		if ok {
			out[value.Format(k)] = rec
		}
	}
	return out, nil
}

func (d *YamlFile) Query(ctx context.Context, statement string, params map[string]value.Value) ([]ports.Record, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]ports.Record, 0, len(d.rows))
	for _, r := range d.rows {
		if matchesFilter(r, params) {
			out = append(out, r)
		}
	}
	return out, nil
}
