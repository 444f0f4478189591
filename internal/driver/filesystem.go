package driver

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"encoding/xml"
	"os"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/mraysmit/apex-sub000/internal/apexerr"
	"github.com/mraysmit/apex-sub000/internal/ports"
	"github.com/mraysmit/apex-sub000/internal/value"
)

// Format names the FileSystem parser to use, selected by file-format
// config or the path-template's extension.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
	FormatXML  Format = "xml"
)

// FileSystem parses CSV/JSON/YAML/XML behind one interface with a
// substitutable path template, per §4.4.
type FileSystem struct {
	pathTemplate string
	format       Format
	keyField     string

	mu    sync.RWMutex
	byKey map[string]ports.Record
}

// NewFileSystem builds a FileSystem driver from
// `{path-template, file-format, key-field}`.
func NewFileSystem(config map[string]any) (ports.DataSourceDriver, error) {
	pathTemplate, _ := config["path-template"].(string)
	format, _ := config["file-format"].(string)
	keyField, _ := config["key-field"].(string)
	if pathTemplate == "" || keyField == "" {
		return nil, apexerr.New(apexerr.KindSchemaViolation, "NewFileSystem", "path-template and key-field are required")
	}
	if format == "" {
		format = string(inferFormat(pathTemplate))
	}
	return &FileSystem{pathTemplate: pathTemplate, format: Format(format), keyField: keyField}, nil
}

func inferFormat(path string) Format {
	switch {
	case strings.HasSuffix(path, ".csv"):
		return FormatCSV
	case strings.HasSuffix(path, ".json"):
		return FormatJSON
	case strings.HasSuffix(path, ".xml"):
		return FormatXML
	default:
		return FormatYAML
	}
}

func (d *FileSystem) Init(ctx context.Context) error { return nil }
func (d *FileSystem) Shutdown(ctx context.Context) error { return nil }
func (d *FileSystem) Healthy(ctx context.Context) bool { return true }

func (d *FileSystem) Capabilities() ports.Capabilities {
	return ports.Capabilities{SupportsBatch: true, SupportsFilter: true, SupportsComposite: true}
}

func (d *FileSystem) load(path string) ([]ports.Record, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, apexerr.Wrap(apexerr.KindConnectionError, "FileSystem.load", "cannot read "+path, err)
	}
	var maps []map[string]any
	switch d.format {
	case FormatCSV:
		r := csv.NewReader(strings.NewReader(string(raw)))
		records, err := r.ReadAll()
		if err != nil || len(records) == 0 {
			return nil, apexerr.Wrap(apexerr.KindDriverParseError, "FileSystem.load", "invalid csv", err)
		}
		header := records[0]
		for _, row := range records[1:] {
			m := map[string]any{}
			for i, h := range header {
				if i < len(row) {
					m[h] = row[i]
				}
			}
			maps = append(maps, m)
		}
	case FormatJSON:
		if err := json.Unmarshal(raw, &maps); err != nil {
			return nil, apexerr.Wrap(apexerr.KindDriverParseError, "FileSystem.load", "invalid json", err)
		}
	case FormatXML:
		var doc struct {
			Rows []map[string]string `xml:"row"`
		}
		if err := xml.Unmarshal(raw, &doc); err != nil {
			return nil, apexerr.Wrap(apexerr.KindDriverParseError, "FileSystem.load", "invalid xml", err)
		}
		for _, r := range doc.Rows {
			m := map[string]any{}
			for k, v := range r {
				m[k] = v
			}
			maps = append(maps, m)
		}
	default:
		var doc struct {
			Data []map[string]any `yaml:"data"`
		}
		if err := yaml.Unmarshal(raw, &doc); err != nil {
			return nil, apexerr.Wrap(apexerr.KindYamlParse, "FileSystem.load", "invalid yaml", err)
		}
		maps = doc.Data
	}
	out := make([]ports.Record, 0, len(maps))
	for _, m := range maps {
		rec := ports.Record{}
		for k, v := range m {
			rec[k] = value.FromAny(v)
		}
		out = append(out, rec)
	}
	return out, nil
}

func (d *FileSystem) Resolve(ctx context.Context, datasetRef string, key value.Value, params map[string]value.Value) (ports.Record, bool, error) {
	path := expandTemplate(d.pathTemplate, params)
	rows, err := d.load(path)
	if err != nil {
		return nil, false, err
	}
	for _, r := range rows {
		if kv, ok := r[d.keyField]; ok && value.Format(kv) == value.Format(key) && matchesFilter(r, params) {
			return r, true, nil
		}
	}
	return nil, false, nil
}

func (d *FileSystem) BatchResolve(ctx context.Context, datasetRef string, keys []value.Value, params map[string]value.Value) (map[string]ports.Record, error) {
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

func (d *FileSystem) Query(ctx context.Context, statement string, params map[string]value.Value) ([]ports.Record, error) {
	path := expandTemplate(d.pathTemplate, params)
	rows, err := d.load(path)
	if err != nil {
		return nil, err
	}
	out := make([]ports.Record, 0, len(rows))
	for _, r := range rows {
		if matchesFilter(r, params) {
			out = append(out, r)
		}
	}
	return out, nil
}
