package engine

import (
	"sync"

	"github.com/mraysmit/apex-sub000/internal/ports"
)

// datasetRegistry is the live ref-to-driver map the engine threads
// through internal/lookup.Executor and internal/enrich.Aggregation,
// both of which only need the one-method Driver(ref) shape. Mutating it
// in place (rather than rebuilding per Route call) is what lets
// reload() swap one dataset's driver without invalidating
// already-resolved ResolvedPrograms that reference this registry.
type datasetRegistry struct {
	mu      sync.RWMutex
	drivers map[string]ports.DataSourceDriver
}

func newDatasetRegistry() *datasetRegistry {
	return &datasetRegistry{drivers: map[string]ports.DataSourceDriver{}}
}

func (d *datasetRegistry) Driver(ref string) (ports.DataSourceDriver, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	drv, ok := d.drivers[ref]
	return drv, ok
}

func (d *datasetRegistry) set(ref string, drv ports.DataSourceDriver) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.drivers[ref] = drv
}
