// Package evalctx implements the EvaluationContext of §3: a root Record
// plus a variables map, with monotonic-write semantics enforced on writes
// performed by the enrichment pipeline.
package evalctx

import (
	"strings"
	"sync"

	"github.com/mraysmit/apex-sub000/internal/apexerr"
	"github.com/mraysmit/apex-sub000/internal/value"
)

// Context is the mutable evaluation context threaded through one pipeline
// run. It is exclusively owned by the executing pipeline (§3 Ownership)
// and is not safe to share across concurrent pipeline runs, though a
// single run's writer serializes target-field writes internally.
type Context struct {
	mu        sync.Mutex
	root      map[string]value.Value
	variables map[string]value.Value
	written   map[string]value.Kind
}

// New builds a Context rooted at the given input record.
func New(root map[string]value.Value) *Context {
	if root == nil {
		root = map[string]value.Value{}
	}
	return &Context{
		root:      root,
		variables: map[string]value.Value{},
		written:   map[string]value.Kind{},
	}
}

// Root returns the root record field named by the bare identifier, or
// apexerr.KindPathNotFound if absent.
func (c *Context) Root(name string) (value.Value, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := lookupPath(c.root, name)
	if !ok {
		return value.Value{}, apexerr.New(apexerr.KindPathNotFound, "Root", name)
	}
	return v, nil
}

// RootSafe is the safe-navigation variant: missing paths yield Null.
func (c *Context) RootSafe(name string) value.Value {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := lookupPath(c.root, name)
	if !ok {
		return value.Null()
	}
	return v
}

// Variable returns the `#name` variable, or apexerr.KindUnknownVariable.
func (c *Context) Variable(name string) (value.Value, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.variables[name]
	if !ok {
		return value.Value{}, apexerr.New(apexerr.KindUnknownVariable, "Variable", name)
	}
	return v, nil
}

// SetVariable binds a `#name` variable; variables are not subject to the
// write-once rule (only target fields on the root record are).
func (c *Context) SetVariable(name string, v value.Value) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.variables[name] = v
}

// Variables returns a defensive copy of the variable bindings, used to
// populate #hasErrors/#hasWarnings and similar engine-computed variables.
func (c *Context) Variables() map[string]value.Value {
	c.mu.Lock()
	defer c.mu.Unlock()
	cp := make(map[string]value.Value, len(c.variables))
	for k, v := range c.variables {
		cp[k] = v
	}
	return cp
}

// WriteField writes v at the dotted target path, creating intermediate
// maps as needed. It enforces write-once semantics: a previously written
// path may only be overwritten if allowOverwrite is true, and even then
// only with a value of the same Kind — a field cannot be re-typed. Null
// is an untyped placeholder on either side of the comparison, so a
// missing-data policy's null write doesn't lock a field's later Kind.
// Writing through a non-map intermediate fails with TypeConflict.
func (c *Context) WriteField(path string, v value.Value, allowOverwrite bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	prevKind, exists := c.written[path]
	if exists {
		if !allowOverwrite {
			return apexerr.New(apexerr.KindFieldCollision, "WriteField", path+" already written and allow-overwrite is false")
		}
		if prevKind != value.KindNull && v.Kind() != value.KindNull && prevKind != v.Kind() {
			return apexerr.New(apexerr.KindTypeConflict, "WriteField", path+" cannot be re-typed on overwrite")
		}
	}

	// value.Map/AsMap both defensively copy, so a map handed back by
	// AsMap (or freshly wrapped by value.Map) is never the same object
	// stored in its parent. nodes[i] is the live, mutable map the i'th
	// path segment's value lives in; the leaf write lands in the
	// deepest live map, then each level is re-wrapped and re-published
	// into its parent bottom-up so the write actually reaches c.root.
	segs := strings.Split(path, ".")
	nodes := make([]map[string]value.Value, len(segs))
	nodes[0] = c.root
	for i := 0; i < len(segs)-1; i++ {
		seg := segs[i]
		if next, ok := nodes[i][seg]; ok {
			sub, ok := next.AsMap()
			if !ok {
				return apexerr.New(apexerr.KindTypeConflict, "WriteField", path+": intermediate "+seg+" is not a map")
			}
			nodes[i+1] = sub
		} else {
			nodes[i+1] = map[string]value.Value{}
		}
	}
	nodes[len(segs)-1][segs[len(segs)-1]] = v
	for i := len(segs) - 2; i >= 0; i-- {
		nodes[i][segs[i]] = value.Map(nodes[i+1])
	}
	c.written[path] = v.Kind()
	return nil
}

// Snapshot returns an immutable Value.Map of the root record, for the
// Report's "enriched context snapshot" (§7).
func (c *Context) Snapshot() value.Value {
	c.mu.Lock()
	defer c.mu.Unlock()
	return value.Map(c.root)
}

func lookupPath(root map[string]value.Value, path string) (value.Value, bool) {
	segs := strings.Split(path, ".")
	var cur value.Value = value.Map(root)
	for _, seg := range segs {
		m, ok := cur.AsMap()
		if !ok {
			return value.Value{}, false
		}
		next, ok := m[seg]
		if !ok {
			return value.Value{}, false
		}
		cur = next
	}
	return cur, true
}
