// Package enrich executes enrichments in an order compatible with their
// declared `depends-on` relationships (spec.md §4.6): topological
// ordering with cycle detection, conditional routing, chains, and
// element-wise batch enrichment.
package enrich

import (
	"sort"

	"github.com/mraysmit/apex-sub000/internal/apexerr"
)

// node is one enrichment's position in the dependency graph, generalized
// from the teacher's nodeRoutes adjacency map
// (engine/chain.go's ChainCtx.nodeRoutes) from a single linear/branching
// walk to a full DAG with fan-in.
type node struct {
	id           string
	dependsOn    []string
	declIndex    int
}

// Graph is the dependency graph of a set of enrichments (or rules, which
// share the same depends-on + declaration-index ordering rule per
// spec.md §4.7).
type Graph struct {
	nodes map[string]node
	order []string // declaration order, for stable iteration
}

// NewGraph builds an empty Graph; Add registers each id with its
// depends-on list and declaration index.
func NewGraph() *Graph {
	return &Graph{nodes: map[string]node{}}
}

// Add registers one node. declIndex should be the position in the
// original declaration list, used to break topological-layer ties.
func (g *Graph) Add(id string, dependsOn []string, declIndex int) error {
	if _, exists := g.nodes[id]; exists {
		return apexerr.New(apexerr.KindDuplicateId, "Graph.Add", "duplicate id "+id)
	}
	g.nodes[id] = node{id: id, dependsOn: dependsOn, declIndex: declIndex}
	g.order = append(g.order, id)
	return nil
}

// TopoSort computes layered topological order via Kahn's algorithm: each
// returned layer contains ids whose dependencies are all satisfied by
// earlier layers, ordered within the layer by declaration index.
// Detects cycles and unknown references.
func (g *Graph) TopoSort() ([][]string, error) {
	inDegree := make(map[string]int, len(g.nodes))
	dependents := make(map[string][]string, len(g.nodes))

	for id, n := range g.nodes {
		inDegree[id] = len(n.dependsOn)
		for _, dep := range n.dependsOn {
			if _, ok := g.nodes[dep]; !ok {
				return nil, apexerr.New(apexerr.KindUnknownRef, "Graph.TopoSort", id+" depends-on unknown id "+dep)
			}
			dependents[dep] = append(dependents[dep], id)
		}
	}

	var layers [][]string
	remaining := len(g.nodes)
	ready := make([]string, 0)
	for id, deg := range inDegree {
		if deg == 0 {
			ready = append(ready, id)
		}
	}

	for len(ready) > 0 {
		sort.Slice(ready, func(i, j int) bool {
			return g.nodes[ready[i]].declIndex < g.nodes[ready[j]].declIndex
		})
		layers = append(layers, ready)
		remaining -= len(ready)

		var next []string
		for _, id := range ready {
			for _, dependent := range dependents[id] {
				inDegree[dependent]--
				if inDegree[dependent] == 0 {
					next = append(next, dependent)
				}
			}
		}
		ready = next
	}

	if remaining > 0 {
		return nil, apexerr.New(apexerr.KindCycleDetected, "Graph.TopoSort", "dependency cycle detected")
	}
	return layers, nil
}
