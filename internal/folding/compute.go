package folding

import (
	"fmt"

	"github.com/fyrsmithlabs/foldd/internal/structure"
)

// ComputeStats describes one Compute call.
type ComputeStats struct {
	Visited         int
	MappingFailures int
	// LastMappingError is the most recent mapping failure, for logging.
	LastMappingError error
}

// RegionComputer derives the target set from a structure tree.
type RegionComputer struct {
	mapper IntervalMapper
}

// NewRegionComputer returns a computer measuring intervals with mapper.
func NewRegionComputer(mapper IntervalMapper) *RegionComputer {
	return &RegionComputer{mapper: mapper}
}

// Compute walks tree in pre-order and returns one entry per foldable
// multi-line node and per multi-line leading comment block. A node whose lines
// fail to map is skipped; its children are still visited.
func (c *RegionComputer) Compute(tree Tree) ([]TargetEntry, ComputeStats) {
	var stats ComputeStats
	if tree == nil || c.mapper == nil {
		return nil, stats
	}
	root := tree.Root()
	if root == structure.NoNode {
		return nil, stats
	}

	var entries []TargetEntry
	seen := make(map[regionKey]struct{})
	emit := func(e TargetEntry, startLine, endLine int) {
		iv, err := c.mapInterval(startLine, endLine+1)
		if err != nil {
			stats.MappingFailures++
			stats.LastMappingError = err
			return
		}
		e.Interval = iv
		if _, dup := seen[e.key()]; dup {
			return
		}
		seen[e.key()] = struct{}{}
		entries = append(entries, e)
	}

	visited := make(map[structure.NodeID]struct{})
	var visit func(id structure.NodeID)
	visit = func(id structure.NodeID) {
		if _, ok := visited[id]; ok {
			return
		}
		visited[id] = struct{}{}
		n, ok := tree.Node(id)
		if !ok {
			return
		}
		stats.Visited++

		if n.Doc != nil && n.Doc.Lines() > 1 {
			emit(TargetEntry{Node: n.ID, Kind: n.Kind, Discriminator: DiscriminatorDoc}, n.Doc.Start, n.Doc.End)
		}
		if n.Kind.Foldable() && n.MultiLine() {
			emit(TargetEntry{Node: n.ID, Kind: n.Kind, Discriminator: DiscriminatorBody}, n.StartLine, n.EndLine)
		}
		for _, child := range n.Children {
			visit(child)
		}
	}
	visit(root)

	return entries, stats
}

func (c *RegionComputer) mapInterval(startLine, endLineExclusive int) (Interval, error) {
	iv, err := c.mapper.Map(startLine, endLineExclusive)
	if err != nil {
		return Interval{}, err
	}
	if !iv.Valid() {
		return Interval{}, fmt.Errorf("%w: %s for lines %d..%d", ErrInvalidInterval, iv, startLine, endLineExclusive)
	}
	return iv, nil
}
