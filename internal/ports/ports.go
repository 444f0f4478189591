// Package ports defines the narrow collaborator interfaces of §6.3 that
// the core consumes but never implements itself: data source drivers,
// cache drivers, secret resolution, metrics, and audit sinks (the clock
// contract lives in internal/clock). Concrete implementations live in
// internal/driver, internal/cache, and internal/telemetry; internal/engine
// wires them together.
package ports

import (
	"context"
	"time"

	"github.com/mraysmit/apex-sub000/internal/value"
)

// Record is a resolved driver row, keyed by field name.
type Record = map[string]value.Value

// DataSourceDriver is the common trait of §4.4: init/shutdown/healthy,
// a keyed resolve, an optional batch resolve, and a raw query escape
// hatch. Capability flags let callers discover support rather than
// relying on virtual dispatch or type assertions.
type DataSourceDriver interface {
	Init(ctx context.Context) error
	Shutdown(ctx context.Context) error
	Healthy(ctx context.Context) bool
	Resolve(ctx context.Context, datasetRef string, key value.Value, params map[string]value.Value) (Record, bool, error)
	BatchResolve(ctx context.Context, datasetRef string, keys []value.Value, params map[string]value.Value) (map[string]Record, error)
	Query(ctx context.Context, statement string, params map[string]value.Value) ([]Record, error)
	Capabilities() Capabilities
}

// Capabilities exposes what a driver supports instead of requiring
// callers to type-assert against concrete driver structs (§9).
type Capabilities struct {
	SupportsBatch     bool
	SupportsFilter    bool
	SupportsComposite bool
}

// CacheDriver is the optional L2 cache collaborator of §6.3.
type CacheDriver interface {
	Get(ctx context.Context, key string) (value.Value, bool, error)
	Put(ctx context.Context, key string, v value.Value, ttl time.Duration) error
	Invalidate(ctx context.Context, key string) error
	InvalidatePattern(ctx context.Context, pattern string) error
	Stats(ctx context.Context) (hits, misses int64)
}

// SecretProvider resolves secret references for driver authentication.
type SecretProvider interface {
	Get(ctx context.Context, secretRef string) (string, error)
}

// MetricsSink is the append-only counters/timers/gauges contract of §6.3.
type MetricsSink interface {
	IncCounter(name string, labels map[string]string, delta int64)
	ObserveTimer(name string, labels map[string]string, d time.Duration)
	SetGauge(name string, labels map[string]string, v float64)
}

// AuditEvent is one append-only audit record.
type AuditEvent struct {
	Timestamp time.Time
	Actor     string
	EventType string
	Subject   string
	Details   map[string]any
}

// AuditSink is the append-only audit event stream contract of §6.3.
type AuditSink interface {
	Emit(ctx context.Context, ev AuditEvent)
}
