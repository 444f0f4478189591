package enrich

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mraysmit/apex-sub000/internal/apexerr"
)

func TestTopoSortOrdersByDependency(t *testing.T) {
	g := NewGraph()
	require.NoError(t, g.Add("a", nil, 0))
	require.NoError(t, g.Add("b", []string{"a"}, 1))
	require.NoError(t, g.Add("c", []string{"a"}, 2))
	require.NoError(t, g.Add("d", []string{"b", "c"}, 3))

	layers, err := g.TopoSort()
	require.NoError(t, err)
	require.Len(t, layers, 3)
	assert.Equal(t, []string{"a"}, layers[0])
	assert.ElementsMatch(t, []string{"b", "c"}, layers[1])
	assert.Equal(t, []string{"d"}, layers[2])
}

func TestTopoSortBreaksTiesByDeclIndex(t *testing.T) {
	g := NewGraph()
	require.NoError(t, g.Add("z", nil, 1))
	require.NoError(t, g.Add("y", nil, 0))

	layers, err := g.TopoSort()
	require.NoError(t, err)
	require.Len(t, layers, 1)
	assert.Equal(t, []string{"y", "z"}, layers[0])
}

func TestTopoSortDetectsCycle(t *testing.T) {
	g := NewGraph()
	require.NoError(t, g.Add("a", []string{"b"}, 0))
	require.NoError(t, g.Add("b", []string{"a"}, 1))

	_, err := g.TopoSort()
	require.Error(t, err)
	kind, ok := apexerr.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, apexerr.KindCycleDetected, kind)
}

func TestTopoSortDetectsUnknownReference(t *testing.T) {
	g := NewGraph()
	require.NoError(t, g.Add("a", []string{"missing"}, 0))

	_, err := g.TopoSort()
	require.Error(t, err)
	kind, ok := apexerr.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, apexerr.KindUnknownRef, kind)
}

func TestAddDuplicateIdFails(t *testing.T) {
	g := NewGraph()
	require.NoError(t, g.Add("a", nil, 0))
	err := g.Add("a", nil, 1)
	require.Error(t, err)
	kind, ok := apexerr.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, apexerr.KindDuplicateId, kind)
}
