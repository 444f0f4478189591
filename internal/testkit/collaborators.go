package testkit

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/mraysmit/apex-sub000/internal/ports"
	"github.com/mraysmit/apex-sub000/internal/value"
)

// FakeCache is an in-memory ports.CacheDriver with no eviction, for
// tests that need to assert on hit/miss bookkeeping without a real
// TTL store.
type FakeCache struct {
	mu            sync.Mutex
	entries       map[string]value.Value
	hits, misses  int64
}

// NewFakeCache builds an empty FakeCache.
func NewFakeCache() *FakeCache {
	return &FakeCache{entries: map[string]value.Value{}}
}

func (c *FakeCache) Get(_ context.Context, key string) (value.Value, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.entries[key]
	if ok {
		c.hits++
	} else {
		c.misses++
	}
	return v, ok, nil
}

func (c *FakeCache) Put(_ context.Context, key string, v value.Value, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = v
	return nil
}

func (c *FakeCache) Invalidate(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
	return nil
}

func (c *FakeCache) InvalidatePattern(_ context.Context, pattern string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	prefix := strings.TrimSuffix(pattern, "*")
	for k := range c.entries {
		if strings.HasPrefix(k, prefix) {
			delete(c.entries, k)
		}
	}
	return nil
}

func (c *FakeCache) Stats(context.Context) (hits, misses int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits, c.misses
}

var _ ports.CacheDriver = (*FakeCache)(nil)

// FakeSecretProvider resolves secret refs from a plain map, standing in
// for a vault/KMS-backed ports.SecretProvider in tests.
type FakeSecretProvider struct {
	Secrets map[string]string
}

// NewFakeSecretProvider builds a FakeSecretProvider over the given map.
func NewFakeSecretProvider(secrets map[string]string) *FakeSecretProvider {
	if secrets == nil {
		secrets = map[string]string{}
	}
	return &FakeSecretProvider{Secrets: secrets}
}

func (s *FakeSecretProvider) Get(_ context.Context, secretRef string) (string, error) {
	v, ok := s.Secrets[secretRef]
	if !ok {
		return "", ErrSecretNotFound{Ref: secretRef}
	}
	return v, nil
}

// ErrSecretNotFound is returned by FakeSecretProvider for an unseeded ref.
type ErrSecretNotFound struct{ Ref string }

func (e ErrSecretNotFound) Error() string { return "testkit: no fake secret seeded for " + e.Ref }

var _ ports.SecretProvider = (*FakeSecretProvider)(nil)

// FakeMetricsSink records every counter/timer/gauge call in memory so
// tests can assert on what was emitted instead of scraping a real
// metrics backend.
type FakeMetricsSink struct {
	mu       sync.Mutex
	Counters []CounterCall
	Timers   []TimerCall
	Gauges   []GaugeCall
}

type CounterCall struct {
	Name   string
	Labels map[string]string
	Delta  int64
}

type TimerCall struct {
	Name     string
	Labels   map[string]string
	Duration time.Duration
}

type GaugeCall struct {
	Name   string
	Labels map[string]string
	Value  float64
}

// NewFakeMetricsSink builds an empty FakeMetricsSink.
func NewFakeMetricsSink() *FakeMetricsSink { return &FakeMetricsSink{} }

func (m *FakeMetricsSink) IncCounter(name string, labels map[string]string, delta int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Counters = append(m.Counters, CounterCall{Name: name, Labels: labels, Delta: delta})
}

func (m *FakeMetricsSink) ObserveTimer(name string, labels map[string]string, d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Timers = append(m.Timers, TimerCall{Name: name, Labels: labels, Duration: d})
}

func (m *FakeMetricsSink) SetGauge(name string, labels map[string]string, v float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Gauges = append(m.Gauges, GaugeCall{Name: name, Labels: labels, Value: v})
}

var _ ports.MetricsSink = (*FakeMetricsSink)(nil)

// FakeAuditSink records every emitted event in memory, in arrival order.
type FakeAuditSink struct {
	mu     sync.Mutex
	Events []ports.AuditEvent
}

// NewFakeAuditSink builds an empty FakeAuditSink.
func NewFakeAuditSink() *FakeAuditSink { return &FakeAuditSink{} }

func (a *FakeAuditSink) Emit(_ context.Context, ev ports.AuditEvent) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.Events = append(a.Events, ev)
}

var _ ports.AuditSink = (*FakeAuditSink)(nil)
