package folding

import (
	"fmt"

	"github.com/fyrsmithlabs/foldd/internal/structure"
)

// Handle identifies a fold region for as long as it exists. Handles are never
// reused within a Reconciler.
type Handle uint64

// Interval is a byte range of the text buffer.
type Interval struct {
	Offset int `json:"offset"`
	Length int `json:"length"`
}

// End returns the exclusive end offset.
func (i Interval) End() int {
	return i.Offset + i.Length
}

// Valid reports whether offset and length are non-negative.
func (i Interval) Valid() bool {
	return i.Offset >= 0 && i.Length >= 0
}

// Covers reports whether o lies inside i. An empty i covers nothing.
func (i Interval) Covers(o Interval) bool {
	return i.Length > 0 && o.Offset >= i.Offset && o.End() <= i.End()
}

func (i Interval) String() string {
	return fmt.Sprintf("[%d,+%d)", i.Offset, i.Length)
}

// Discriminator tells apart the regions that can attach to a single node.
type Discriminator uint8

const (
	// DiscriminatorBody is the node's own line range.
	DiscriminatorBody Discriminator = iota
	// DiscriminatorDoc is the leading comment block attached to the node.
	DiscriminatorDoc
)

func (d Discriminator) String() string {
	switch d {
	case DiscriminatorBody:
		return "body"
	case DiscriminatorDoc:
		return "doc"
	default:
		return fmt.Sprintf("discriminator(%d)", uint8(d))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (d Discriminator) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// FoldRegion is a collapsible range on screen.
type FoldRegion struct {
	Handle        Handle           `json:"handle"`
	Node          structure.NodeID `json:"node"` // NoNode when unbound
	Kind          structure.Kind   `json:"kind"`
	Discriminator Discriminator    `json:"discriminator"`
	Interval      Interval         `json:"interval"`
	Collapsed     bool             `json:"collapsed"`
}

// TargetEntry is one region the structure tree currently asks for.
type TargetEntry struct {
	Node          structure.NodeID
	Kind          structure.Kind
	Discriminator Discriminator
	Interval      Interval
}

// regionKey is the (node, discriminator) pair that is unique within a target set.
type regionKey struct {
	node structure.NodeID
	disc Discriminator
}

func (e TargetEntry) key() regionKey {
	return regionKey{node: e.Node, disc: e.Discriminator}
}

// Insertion adds a region to the sink.
type Insertion struct {
	Handle    Handle   `json:"handle"`
	Interval  Interval `json:"interval"`
	Collapsed bool     `json:"collapsed"`
}

// Update moves an existing region.
type Update struct {
	Handle   Handle   `json:"handle"`
	Interval Interval `json:"interval"`
}

// Batch is applied to a RegionSink as one unit.
type Batch struct {
	Removals   []Handle    `json:"removals"`
	Insertions []Insertion `json:"insertions"`
	Updates    []Update    `json:"updates"`
}

// IsEmpty reports whether the batch changes nothing.
func (b Batch) IsEmpty() bool {
	return len(b.Removals) == 0 && len(b.Insertions) == 0 && len(b.Updates) == 0
}

// Size returns the total number of operations in the batch.
func (b Batch) Size() int {
	return len(b.Removals) + len(b.Insertions) + len(b.Updates)
}

// Config holds folding preferences.
type Config struct {
	Enabled bool `json:"enabled"`
	// CollapseOnInit gives the initial collapsed state per kind. It is consulted
	// by Initialize only; regions added by Reconcile always start expanded.
	CollapseOnInit map[structure.Kind]bool `json:"collapse_on_init"`
	// CollapseDocOnInit gives the initial state of leading comment blocks.
	CollapseDocOnInit bool `json:"collapse_doc_on_init"`
}

// DefaultConfig returns folding enabled with everything expanded.
func DefaultConfig() *Config {
	return &Config{
		Enabled:        true,
		CollapseOnInit: map[structure.Kind]bool{},
	}
}

func (c *Config) collapsedOnInit(e TargetEntry) bool {
	if e.Discriminator == DiscriminatorDoc {
		return c.CollapseDocOnInit
	}
	return c.CollapseOnInit[e.Kind]
}
