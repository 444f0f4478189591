// Package driver implements the Data Source Driver trait of §4.4 plus
// the required concrete drivers (inline, yamlfile, database, restapi,
// filesystem, cache, queue). The registry pattern mirrors
// engine/registry.go's RuleComponentRegistry: a name-to-constructor map
// populated at engine construction time rather than reflection-based
// plugin discovery (§9).
package driver

import (
	"fmt"
	"sync"

	"github.com/mraysmit/apex-sub000/internal/ports"
)

// Constructor builds a driver from its YAML-decoded configuration block.
type Constructor func(config map[string]any) (ports.DataSourceDriver, error)

// Registry maps a data-source `type` string to its Constructor. The set
// of driver types is closed in configuration (§4.4): unknown types fail
// at load time rather than silently falling back.
type Registry struct {
	mu           sync.RWMutex
	constructors map[string]Constructor
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{constructors: map[string]Constructor{}}
}

// Register adds a named constructor; it errors if the type is already
// registered, mirroring RuleComponentRegistry.Register's conflict check.
func (r *Registry) Register(typeName string, ctor Constructor) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.constructors[typeName]; exists {
		return fmt.Errorf("driver type %q already registered", typeName)
	}
	r.constructors[typeName] = ctor
	return nil
}

// New constructs a driver instance of the named type.
func (r *Registry) New(typeName string, config map[string]any) (ports.DataSourceDriver, error) {
	r.mu.RLock()
	ctor, ok := r.constructors[typeName]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown driver type %q", typeName)
	}
	return ctor(config)
}

// Types returns a defensive copy of registered type names.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.constructors))
	for t := range r.constructors {
		out = append(out, t)
	}
	return out
}

// Default returns a Registry pre-populated with all builtin driver types.
func Default() *Registry {
	r := NewRegistry()
	_ = r.Register("inline", NewInline)
	_ = r.Register("yaml-file", NewYamlFile)
	_ = r.Register("database", NewDatabase)
	_ = r.Register("rest-api", NewRestAPI)
	_ = r.Register("file-system", NewFileSystem)
	_ = r.Register("cache", NewCacheDriverSource)
	_ = r.Register("queue", NewQueue)
	return r
}
