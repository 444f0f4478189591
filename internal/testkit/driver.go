// Package testkit supplies in-memory fakes for every internal/ports
// collaborator interface, so internal/engine and higher-level tests
// never open a real network, database, or MQTT connection, plus a
// small property-style check harness. Grounded in the teacher's own
// in-repo fixture style (example/*.go builds literal JSON chain
// fixtures inline) generalized into reusable, swappable test doubles.
package testkit

import (
	"context"
	"sync"

	"github.com/mraysmit/apex-sub000/internal/apexerr"
	"github.com/mraysmit/apex-sub000/internal/ports"
	"github.com/mraysmit/apex-sub000/internal/value"
)

// FakeDriver is an in-memory ports.DataSourceDriver backed by a plain
// map, for tests that need a dataset without exercising a real driver.
type FakeDriver struct {
	mu           sync.RWMutex
	byKey        map[string]ports.Record
	caps         ports.Capabilities
	healthy      bool
	ResolveCalls int
}

// NewFakeDriver builds an empty FakeDriver.
func NewFakeDriver(caps ports.Capabilities) *FakeDriver {
	return &FakeDriver{byKey: map[string]ports.Record{}, caps: caps, healthy: true}
}

// Seed inserts a row addressable by key.
func (f *FakeDriver) Seed(key string, rec ports.Record) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.byKey[key] = rec
}

// SetHealthy controls what Healthy returns, for resilience tests.
func (f *FakeDriver) SetHealthy(h bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.healthy = h
}

func (f *FakeDriver) Init(context.Context) error    { return nil }
func (f *FakeDriver) Shutdown(context.Context) error { return nil }
func (f *FakeDriver) Healthy(context.Context) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.healthy
}
func (f *FakeDriver) Capabilities() ports.Capabilities { return f.caps }

func (f *FakeDriver) Resolve(_ context.Context, _ string, key value.Value, _ map[string]value.Value) (ports.Record, bool, error) {
	f.mu.Lock()
	f.ResolveCalls++
	f.mu.Unlock()

	f.mu.RLock()
	defer f.mu.RUnlock()
	rec, ok := f.byKey[value.Format(key)]
	return rec, ok, nil
}

func (f *FakeDriver) BatchResolve(ctx context.Context, datasetRef string, keys []value.Value, params map[string]value.Value) (map[string]ports.Record, error) {
	out := make(map[string]ports.Record, len(keys))
	for _, k := range keys {
		rec, ok, err := f.Resolve(ctx, datasetRef, k, params)
		if err != nil {
			return nil, err
		}
		if ok {
			out[value.Format(k)] = rec
		}
	}
	return out, nil
}

func (f *FakeDriver) Query(context.Context, string, map[string]value.Value) ([]ports.Record, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	rows := make([]ports.Record, 0, len(f.byKey))
	for _, rec := range f.byKey {
		rows = append(rows, rec)
	}
	return rows, nil
}

var _ ports.DataSourceDriver = (*FakeDriver)(nil)

// FakeDatasets resolves dataset references into FakeDrivers, satisfying
// both internal/lookup.Datasets and internal/enrich.Datasets (identical
// one-method shape).
type FakeDatasets struct {
	Drivers map[string]ports.DataSourceDriver
}

// NewFakeDatasets builds a FakeDatasets.
func NewFakeDatasets() *FakeDatasets {
	return &FakeDatasets{Drivers: map[string]ports.DataSourceDriver{}}
}

// Driver resolves ref to a registered driver.
func (d *FakeDatasets) Driver(ref string) (ports.DataSourceDriver, bool) {
	drv, ok := d.Drivers[ref]
	return drv, ok
}

// MustDriver panics-by-error-return style retrieval used when a test
// fixture requires the dataset to already exist.
func (d *FakeDatasets) MustDriver(ref string) (ports.DataSourceDriver, error) {
	drv, ok := d.Drivers[ref]
	if !ok {
		return nil, apexerr.New(apexerr.KindUnknownRef, "FakeDatasets.MustDriver", "no fake driver registered for "+ref)
	}
	return drv, nil
}
