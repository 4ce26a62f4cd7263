package folding

import (
	"context"

	"github.com/fyrsmithlabs/foldd/internal/structure"
)

// Tree is the read-only view of a structure tree the Reconciler needs.
// *structure.Tree implements it.
type Tree interface {
	// Root returns the root node, or structure.NoNode for an empty tree.
	Root() structure.NodeID
	// Node looks up a node by ID.
	Node(id structure.NodeID) (*structure.Node, bool)
}

// IntervalMapper converts line ranges to byte intervals of the current buffer.
type IntervalMapper interface {
	// Map converts [startLine, endLineExclusive) to an interval. It returns an
	// error wrapping ErrMapping when the lines do not exist in the buffer.
	Map(startLine, endLineExclusive int) (Interval, error)
}

// MapperFunc adapts a function to IntervalMapper.
type MapperFunc func(startLine, endLineExclusive int) (Interval, error)

// Map calls f.
func (f MapperFunc) Map(startLine, endLineExclusive int) (Interval, error) {
	return f(startLine, endLineExclusive)
}

// RegionSink applies batches to the UI's annotation model.
type RegionSink interface {
	// Apply applies the batch atomically with respect to painting. It returns
	// an error wrapping ErrSinkUnavailable if the UI is gone.
	Apply(ctx context.Context, batch Batch) error
}

// SinkFunc adapts a function to RegionSink.
type SinkFunc func(ctx context.Context, batch Batch) error

// Apply calls f.
func (f SinkFunc) Apply(ctx context.Context, batch Batch) error {
	return f(ctx, batch)
}
