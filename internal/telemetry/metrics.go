package telemetry

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/mraysmit/apex-sub000/internal/ports"
)

// PrometheusSink implements ports.MetricsSink on top of
// github.com/prometheus/client_golang, grounded on engine/metrics.go's
// CounterVec/HistogramVec registration pattern. Unlike that file's
// fixed, hand-declared vectors, label sets here aren't known until the
// first call for a given metric name, so vectors are created lazily and
// cached by name+sorted-label-keys.
type PrometheusSink struct {
	reg prometheus.Registerer

	mu         sync.Mutex
	counters   map[string]*prometheus.CounterVec
	histograms map[string]*prometheus.HistogramVec
	gauges     map[string]*prometheus.GaugeVec
}

// NewPrometheusSink builds a PrometheusSink registering vectors against
// reg (pass prometheus.DefaultRegisterer in production, a fresh
// prometheus.NewRegistry() in tests to avoid global-registry collisions
// across test runs).
func NewPrometheusSink(reg prometheus.Registerer) *PrometheusSink {
	return &PrometheusSink{
		reg:        reg,
		counters:   map[string]*prometheus.CounterVec{},
		histograms: map[string]*prometheus.HistogramVec{},
		gauges:     map[string]*prometheus.GaugeVec{},
	}
}

// DefaultMetricsSink builds a PrometheusSink against a fresh private
// registry rather than prometheus.DefaultRegisterer, so constructing
// more than one engine (as tests do) never collides on metric names.
func DefaultMetricsSink() *PrometheusSink {
	return NewPrometheusSink(prometheus.NewRegistry())
}

func labelKeys(labels map[string]string) []string {
	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func vectorKey(name string, keys []string) string {
	return name + "|" + strings.Join(keys, ",")
}

func (s *PrometheusSink) IncCounter(name string, labels map[string]string, delta int64) {
	keys := labelKeys(labels)
	s.mu.Lock()
	vec, ok := s.counters[vectorKey(name, keys)]
	if !ok {
		vec = prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "apex", Name: sanitize(name)}, keys)
		_ = s.reg.Register(vec)
		s.counters[vectorKey(name, keys)] = vec
	}
	s.mu.Unlock()
	vec.With(labels).Add(float64(delta))
}

func (s *PrometheusSink) ObserveTimer(name string, labels map[string]string, d time.Duration) {
	keys := labelKeys(labels)
	s.mu.Lock()
	vec, ok := s.histograms[vectorKey(name, keys)]
	if !ok {
		vec = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "apex", Name: sanitize(name), Buckets: prometheus.DefBuckets,
		}, keys)
		_ = s.reg.Register(vec)
		s.histograms[vectorKey(name, keys)] = vec
	}
	s.mu.Unlock()
	vec.With(labels).Observe(d.Seconds())
}

func (s *PrometheusSink) SetGauge(name string, labels map[string]string, v float64) {
	keys := labelKeys(labels)
	s.mu.Lock()
	vec, ok := s.gauges[vectorKey(name, keys)]
	if !ok {
		vec = prometheus.NewGaugeVec(prometheus.GaugeOpts{Namespace: "apex", Name: sanitize(name)}, keys)
		_ = s.reg.Register(vec)
		s.gauges[vectorKey(name, keys)] = vec
	}
	s.mu.Unlock()
	vec.With(labels).Set(v)
}

// sanitize replaces the dotted metric-name convention spec.md §6.3 uses
// (lookup.cache.hits) with Prometheus's underscore convention.
func sanitize(name string) string {
	return strings.ReplaceAll(name, ".", "_")
}

var _ ports.MetricsSink = (*PrometheusSink)(nil)
