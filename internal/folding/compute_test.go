package folding

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/foldd/internal/structure"
)

func TestCompute_MultiLineFoldableNodesOnly(t *testing.T) {
	tree := flatTree(
		def(1, 0, 2),
		def(2, 3, 3), // single line
		rule{id: 3, start: 4, end: 8, kind: structure.KindOther},
		rule{id: 4, start: 10, end: 12, kind: structure.KindConditional},
	)

	entries, stats := NewRegionComputer(lineMapper{lines: 100}).Compute(tree)

	require.Len(t, entries, 2)
	assert.Equal(t, TargetEntry{Node: 1, Kind: structure.KindDefinition, Discriminator: DiscriminatorBody, Interval: span(0, 2)}, entries[0])
	assert.Equal(t, TargetEntry{Node: 4, Kind: structure.KindConditional, Discriminator: DiscriminatorBody, Interval: span(10, 12)}, entries[1])
	assert.Equal(t, 5, stats.Visited)
	assert.Zero(t, stats.MappingFailures)
}

func TestCompute_PreOrder(t *testing.T) {
	b := structure.NewBuilder(nil)
	root := b.MustAdd(structure.NoNode, structure.Node{ID: rootID, Kind: structure.KindOther, EndLine: 99})
	outer := b.MustAdd(root, structure.Node{ID: 1, Kind: structure.KindDefinition, StartLine: 0, EndLine: 10})
	b.MustAdd(outer, structure.Node{ID: 2, Kind: structure.KindBlock, StartLine: 2, EndLine: 4})
	b.MustAdd(root, structure.Node{ID: 3, Kind: structure.KindDefinition, StartLine: 12, EndLine: 14})

	entries, _ := NewRegionComputer(lineMapper{lines: 100}).Compute(b.Build())

	var nodes []structure.NodeID
	for _, e := range entries {
		nodes = append(nodes, e.Node)
	}
	assert.Equal(t, []structure.NodeID{1, 2, 3}, nodes)
}

func TestCompute_DocRegions(t *testing.T) {
	tree := flatTree(
		rule{id: 1, start: 3, end: 6, kind: structure.KindDefinition, doc: &structure.LineRange{Start: 0, End: 2}},
		rule{id: 2, start: 9, end: 12, kind: structure.KindDefinition, doc: &structure.LineRange{Start: 8, End: 8}},
	)

	entries, _ := NewRegionComputer(lineMapper{lines: 100}).Compute(tree)

	require.Len(t, entries, 3)
	assert.Equal(t, TargetEntry{Node: 1, Kind: structure.KindDefinition, Discriminator: DiscriminatorDoc, Interval: span(0, 2)}, entries[0])
	assert.Equal(t, DiscriminatorBody, entries[1].Discriminator)
	assert.Equal(t, structure.NodeID(1), entries[1].Node)
	// a one-line comment does not fold
	assert.Equal(t, TargetEntry{Node: 2, Kind: structure.KindDefinition, Discriminator: DiscriminatorBody, Interval: span(9, 12)}, entries[2])
}

func TestCompute_SkipsUnmappableNodes(t *testing.T) {
	tree := flatTree(def(1, 0, 2), def(2, 5, 30), def(3, 6, 8))

	entries, stats := NewRegionComputer(lineMapper{lines: 20}).Compute(tree)

	require.Len(t, entries, 2)
	assert.Equal(t, structure.NodeID(1), entries[0].Node)
	assert.Equal(t, structure.NodeID(3), entries[1].Node)
	// the root (lines 0..99) is not foldable, so only node 2 fails
	assert.Equal(t, 1, stats.MappingFailures)
	assert.True(t, errors.Is(stats.LastMappingError, ErrMapping))
}

func TestCompute_RejectsInvalidIntervals(t *testing.T) {
	mapper := MapperFunc(func(start, end int) (Interval, error) {
		return Interval{Offset: -1, Length: 10}, nil
	})

	entries, stats := NewRegionComputer(mapper).Compute(flatTree(def(1, 0, 2)))

	assert.Empty(t, entries)
	assert.Equal(t, 1, stats.MappingFailures)
	assert.ErrorIs(t, stats.LastMappingError, ErrInvalidInterval)
}

func TestCompute_EmptyInputs(t *testing.T) {
	c := NewRegionComputer(lineMapper{lines: 10})

	entries, stats := c.Compute(nil)
	assert.Empty(t, entries)
	assert.Zero(t, stats.Visited)

	entries, _ = c.Compute(structure.NewBuilder(nil).Build())
	assert.Empty(t, entries)

	entries, _ = NewRegionComputer(nil).Compute(flatTree(def(1, 0, 2)))
	assert.Empty(t, entries)
}

func TestCompute_UniqueKeys(t *testing.T) {
	tree := flatTree(
		rule{id: 1, start: 2, end: 6, kind: structure.KindBlock, doc: &structure.LineRange{Start: 0, End: 1}},
		def(2, 8, 9),
		def(3, 10, 14),
	)

	entries, _ := NewRegionComputer(lineMapper{lines: 100}).Compute(tree)

	seen := make(map[regionKey]bool)
	for _, e := range entries {
		assert.False(t, seen[e.key()], "duplicate key %v", e.key())
		seen[e.key()] = true
	}
	assert.Len(t, entries, 4)
}
