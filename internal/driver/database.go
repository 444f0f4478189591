package driver

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"strings"
	"sync"

	_ "github.com/go-sql-driver/mysql"

	"github.com/mraysmit/apex-sub000/internal/apexerr"
	"github.com/mraysmit/apex-sub000/internal/ports"
	"github.com/mraysmit/apex-sub000/internal/value"
)

// Database is the parameterized-query driver of §4.4: `:name`
// placeholders rewritten to positional `?` markers, prepared-statement
// caching, and `IN (...)` expansion for batch resolves.
type Database struct {
	dsn      string
	query    string
	keyParam string

	db    *sql.DB
	mu    sync.Mutex
	stmts map[string]*sql.Stmt
}

// NewDatabase builds a Database driver from
// `{dsn, query, key-param}`. query uses `:name` placeholders; key-param
// names the placeholder the executor's resolved key binds to.
func NewDatabase(config map[string]any) (ports.DataSourceDriver, error) {
	dsn, _ := config["dsn"].(string)
	query, _ := config["query"].(string)
	keyParam, _ := config["key-param"].(string)
	if dsn == "" || query == "" || keyParam == "" {
		return nil, apexerr.New(apexerr.KindSchemaViolation, "NewDatabase", "dsn, query, and key-param are required")
	}
	return &Database{dsn: dsn, query: query, keyParam: keyParam}, nil
}

func (d *Database) Init(ctx context.Context) error {
	db, err := sql.Open("mysql", d.dsn)
	if err != nil {
		return apexerr.Wrap(apexerr.KindConnectionError, "Database.Init", "cannot open dsn", err)
	}
	if err := db.PingContext(ctx); err != nil {
		return apexerr.Wrap(apexerr.KindConnectionError, "Database.Init", "ping failed", err)
	}
	d.db = db
	return nil
}

func (d *Database) Shutdown(ctx context.Context) error {
	d.mu.Lock()
	for key, stmt := range d.stmts {
		stmt.Close()
		delete(d.stmts, key)
	}
	d.mu.Unlock()
	if d.db == nil {
		return nil
	}
	return d.db.Close()
}

func (d *Database) Healthy(ctx context.Context) bool {
	return d.db != nil && d.db.PingContext(ctx) == nil
}

func (d *Database) Capabilities() ports.Capabilities {
	return ports.Capabilities{SupportsBatch: true, SupportsFilter: true, SupportsComposite: true}
}

var namedPlaceholder = regexp.MustCompile(`:(\w+)`)

// rewrite converts `:name` placeholders into `?` and returns the
// positional argument list in placeholder order.
func rewrite(query string, params map[string]value.Value) (string, []any, error) {
	var args []any
	var missing string
	out := namedPlaceholder.ReplaceAllStringFunc(query, func(m string) string {
		name := m[1:]
		v, ok := params[name]
		if !ok {
			missing = name
			return m
		}
		args = append(args, value.ToAny(v))
		return "?"
	})
	if missing != "" {
		return "", nil, apexerr.New(apexerr.KindSchemaViolation, "rewrite", "missing parameter :"+missing)
	}
	return out, args, nil
}

// prepared returns a cached *sql.Stmt for rewritten, preparing and
// caching it on first use. BatchResolve's IN-list expansion varies the
// statement text with len(keys), so the cache is keyed by the rewritten
// SQL rather than holding a single statement.
func (d *Database) prepared(ctx context.Context, rewritten string) (*sql.Stmt, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if stmt, ok := d.stmts[rewritten]; ok {
		return stmt, nil
	}
	stmt, err := d.db.PrepareContext(ctx, rewritten)
	if err != nil {
		return nil, apexerr.Wrap(apexerr.KindConnectionError, "Database.prepared", "prepare failed", err)
	}
	if d.stmts == nil {
		d.stmts = map[string]*sql.Stmt{}
	}
	d.stmts[rewritten] = stmt
	return stmt, nil
}

func (d *Database) Resolve(ctx context.Context, datasetRef string, key value.Value, params map[string]value.Value) (ports.Record, bool, error) {
	merged := mergeParams(params, d.keyParam, key)
	rows, err := d.Query(ctx, d.query, merged)
	if err != nil {
		return nil, false, err
	}
	if len(rows) == 0 {
		return nil, false, nil
	}
	return rows[0], true, nil
}

func (d *Database) BatchResolve(ctx context.Context, datasetRef string, keys []value.Value, params map[string]value.Value) (map[string]ports.Record, error) {
	// IN (...) expansion: build placeholders :<key-param>0..:<key-param>N and a query
	// variant with the key-param replaced by an IN-list.
	if len(keys) == 0 {
		return map[string]ports.Record{}, nil
	}
	placeholders := make([]string, len(keys))
	merged := map[string]value.Value{}
	for k, v := range params {
		merged[k] = v
	}
	for i, k := range keys {
		name := fmt.Sprintf("%s%d", d.keyParam, i)
		placeholders[i] = ":" + name
		merged[name] = k
	}
	inQuery := strings.Replace(d.query, ":"+d.keyParam, "("+strings.Join(placeholders, ",")+")", 1)
	rows, err := d.Query(ctx, inQuery, merged)
	if err != nil {
		return nil, err
	}
	out := make(map[string]ports.Record, len(rows))
	for _, r := range rows {
		if kv, ok := r[d.keyParam]; ok {
			out[value.Format(kv)] = r
		}
	}
	return out, nil
}

func (d *Database) Query(ctx context.Context, statement string, params map[string]value.Value) ([]ports.Record, error) {
	rewritten, args, err := rewrite(statement, params)
	if err != nil {
		return nil, err
	}
	stmt, err := d.prepared(ctx, rewritten)
	if err != nil {
		return nil, err
	}
	rows, err := stmt.QueryContext(ctx, args...)
	if err != nil {
		return nil, classifyDBError(err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, apexerr.Wrap(apexerr.KindDriverParseError, "Database.Query", "columns failed", err)
	}
	var out []ports.Record
	for rows.Next() {
		scanned := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range scanned {
			ptrs[i] = &scanned[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, apexerr.Wrap(apexerr.KindDriverParseError, "Database.Query", "scan failed", err)
		}
		rec := ports.Record{}
		for i, c := range cols {
			rec[c] = value.FromAny(scanned[i])
		}
		out = append(out, rec)
	}
	return out, nil
}

func mergeParams(params map[string]value.Value, key string, v value.Value) map[string]value.Value {
	merged := make(map[string]value.Value, len(params)+1)
	for k, val := range params {
		merged[k] = val
	}
	merged[key] = v
	return merged
}

func classifyDBError(err error) error {
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "denied") || strings.Contains(msg, "access"):
		return apexerr.Wrap(apexerr.KindAuthError, "Database.Query", "authentication failed", err)
	case strings.Contains(msg, "timeout"):
		return apexerr.Wrap(apexerr.KindTimeoutError, "Database.Query", "query timed out", err)
	case strings.Contains(msg, "refused") || strings.Contains(msg, "connection"):
		return apexerr.Wrap(apexerr.KindConnectionError, "Database.Query", "connection failed", err)
	default:
		return apexerr.Wrap(apexerr.KindDriverParseError, "Database.Query", "query failed", err)
	}
}
