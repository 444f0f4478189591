// Package resilience wraps a ports.DataSourceDriver with retries,
// circuit breaking, and health checks, per spec.md §4.10.
package resilience

import (
	"context"
	"fmt"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/sony/gobreaker"

	"github.com/mraysmit/apex-sub000/internal/apexerr"
	"github.com/mraysmit/apex-sub000/internal/clock"
	"github.com/mraysmit/apex-sub000/internal/ports"
	"github.com/mraysmit/apex-sub000/internal/value"
)

// Policy configures the resilience wrapper.
type Policy struct {
	MaxAttempts          uint
	BaseDelay            time.Duration
	MaxJitter            time.Duration
	CircuitFailThreshold uint32
	CircuitOpenTimeout   time.Duration
	HealthCheckInterval  time.Duration
}

// DefaultPolicy mirrors the teacher's own circuit-breaker defaults in
// internal/driver/restapi.go (5 consecutive failures, 30s open timeout).
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:          3,
		BaseDelay:            100 * time.Millisecond,
		MaxJitter:            50 * time.Millisecond,
		CircuitFailThreshold: 5,
		CircuitOpenTimeout:   30 * time.Second,
		HealthCheckInterval:  30 * time.Second,
	}
}

// Wrapped decorates a ports.DataSourceDriver with retry-go/v4 exponential
// backoff + jitter and a sony/gobreaker circuit breaker, keying retries
// on (datasetRef, key, params) per spec.md §4.10's idempotence rule, and
// never retrying AuthError.
type Wrapped struct {
	inner      ports.DataSourceDriver
	datasetRef string
	policy     Policy
	cb         *gobreaker.CircuitBreaker
	clk        clock.Clock
}

// Wrap builds a Wrapped driver around inner.
func Wrap(datasetRef string, inner ports.DataSourceDriver, policy Policy, clk clock.Clock) *Wrapped {
	if clk == nil {
		clk = clock.Default
	}
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:     "dataset:" + datasetRef,
		Timeout:  policy.CircuitOpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= policy.CircuitFailThreshold
		},
	})
	return &Wrapped{inner: inner, datasetRef: datasetRef, policy: policy, cb: cb, clk: clk}
}

func (w *Wrapped) Init(ctx context.Context) error     { return w.inner.Init(ctx) }
func (w *Wrapped) Shutdown(ctx context.Context) error  { return w.inner.Shutdown(ctx) }
func (w *Wrapped) Healthy(ctx context.Context) bool    { return w.inner.Healthy(ctx) }
func (w *Wrapped) Capabilities() ports.Capabilities    { return w.inner.Capabilities() }

func (w *Wrapped) Resolve(ctx context.Context, datasetRef string, key value.Value, params map[string]value.Value) (ports.Record, bool, error) {
	var rec ports.Record
	var found bool

	_, err := w.cb.Execute(func() (any, error) {
		return nil, retry.Do(func() error {
			r, f, err := w.inner.Resolve(ctx, datasetRef, key, params)
			rec, found = r, f
			return err
		},
			retry.Context(ctx),
			retry.Attempts(w.policy.MaxAttempts),
			retry.Delay(w.policy.BaseDelay),
			retry.MaxJitter(w.policy.MaxJitter),
			retry.DelayType(retry.CombineDelay(retry.BackOffDelay, retry.RandomDelay)),
			retry.RetryIf(isRetryable),
			retry.LastErrorOnly(true),
		)
	})
	if err != nil {
		return nil, false, apexerr.Wrap(apexerr.KindRetryExhausted, "Wrapped.Resolve", fmt.Sprintf("resolve failed for %s after retries", datasetRef), err)
	}
	return rec, found, nil
}

func (w *Wrapped) BatchResolve(ctx context.Context, datasetRef string, keys []value.Value, params map[string]value.Value) (map[string]ports.Record, error) {
	var out map[string]ports.Record
	_, err := w.cb.Execute(func() (any, error) {
		return nil, retry.Do(func() error {
			o, err := w.inner.BatchResolve(ctx, datasetRef, keys, params)
			out = o
			return err
		},
			retry.Context(ctx),
			retry.Attempts(w.policy.MaxAttempts),
			retry.Delay(w.policy.BaseDelay),
			retry.MaxJitter(w.policy.MaxJitter),
			retry.RetryIf(isRetryable),
			retry.LastErrorOnly(true),
		)
	})
	if err != nil {
		return nil, apexerr.Wrap(apexerr.KindRetryExhausted, "Wrapped.BatchResolve", "batch resolve failed for "+datasetRef, err)
	}
	return out, nil
}

func (w *Wrapped) Query(ctx context.Context, statement string, params map[string]value.Value) ([]ports.Record, error) {
	var rows []ports.Record
	_, err := w.cb.Execute(func() (any, error) {
		return nil, retry.Do(func() error {
			r, err := w.inner.Query(ctx, statement, params)
			rows = r
			return err
		},
			retry.Context(ctx),
			retry.Attempts(w.policy.MaxAttempts),
			retry.Delay(w.policy.BaseDelay),
			retry.MaxJitter(w.policy.MaxJitter),
			retry.RetryIf(isRetryable),
			retry.LastErrorOnly(true),
		)
	})
	if err != nil {
		return nil, apexerr.Wrap(apexerr.KindRetryExhausted, "Wrapped.Query", "query failed for "+w.datasetRef, err)
	}
	return rows, nil
}

// isRetryable never retries AuthError, per spec.md §4.10.
func isRetryable(err error) bool {
	kind, ok := apexerr.KindOf(err)
	if !ok {
		return true
	}
	return kind != apexerr.KindAuthError
}

var _ ports.DataSourceDriver = (*Wrapped)(nil)
