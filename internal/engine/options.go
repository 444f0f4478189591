package engine

import (
	"time"

	"github.com/mraysmit/apex-sub000/internal/cache"
	"github.com/mraysmit/apex-sub000/internal/clock"
	"github.com/mraysmit/apex-sub000/internal/driver"
	"github.com/mraysmit/apex-sub000/internal/ports"
	"github.com/mraysmit/apex-sub000/internal/resilience"
	"github.com/mraysmit/apex-sub000/internal/telemetry"
)

// Option configures an Engine at construction time, grounded verbatim
// on types/options.go's functional-options pattern.
type Option func(*Engine) error

// WithDriverRegistry overrides the default set of builtin dataset
// driver constructors.
func WithDriverRegistry(reg *driver.Registry) Option {
	return func(e *Engine) error { e.drivers = reg; return nil }
}

// WithCache overrides the default L1 cache tier.
func WithCache(c *cache.L1) Option {
	return func(e *Engine) error { e.cacheTier = c; return nil }
}

// WithClock overrides the default wall clock, for deterministic tests.
func WithClock(clk clock.Clock) Option {
	return func(e *Engine) error { e.clock = clk; return nil }
}

// WithLogger overrides the default zap-backed logger.
func WithLogger(log telemetry.Logger) Option {
	return func(e *Engine) error { e.log = log; return nil }
}

// WithMetrics overrides the default MetricsSink.
func WithMetrics(sink ports.MetricsSink) Option {
	return func(e *Engine) error { e.metrics = sink; return nil }
}

// WithAudit overrides the default AuditSink.
func WithAudit(sink ports.AuditSink) Option {
	return func(e *Engine) error { e.audit = sink; return nil }
}

// WithSecretProvider supplies the SecretProvider driver construction
// resolves secret-ref fields against.
func WithSecretProvider(sp ports.SecretProvider) Option {
	return func(e *Engine) error { e.secrets = sp; return nil }
}

// WithResiliencePolicy overrides the default retry/circuit-breaker
// policy every dataset driver is wrapped with.
func WithResiliencePolicy(p resilience.Policy) Option {
	return func(e *Engine) error { e.resiliencePolicy = p; return nil }
}

// WithEvaluationTimeout overrides the default 5s per-evaluation
// deadline of spec.md §5.
func WithEvaluationTimeout(d time.Duration) Option {
	return func(e *Engine) error { e.evalTimeout = d; return nil }
}
