package editor

import (
	"github.com/fyrsmithlabs/foldd/internal/structure"
)

// OutlineEntry is one node of an outline in pre-order.
type OutlineEntry struct {
	ID        structure.NodeID     `json:"id"`
	Depth     int                  `json:"depth"`
	Kind      structure.Kind       `json:"kind"`
	Type      string               `json:"type"`
	StartLine int                  `json:"start_line"`
	EndLine   int                  `json:"end_line"`
	Doc       *structure.LineRange `json:"doc,omitempty"`
}

// FlattenOutline lists the nodes of tree in pre-order. A nil tree yields nil.
func FlattenOutline(tree *structure.Tree) []OutlineEntry {
	if tree == nil {
		return nil
	}
	entries := make([]OutlineEntry, 0, tree.Len())
	tree.Walk(func(n *structure.Node, depth int) bool {
		entries = append(entries, OutlineEntry{
			ID:        n.ID,
			Depth:     depth,
			Kind:      n.Kind,
			Type:      n.Type,
			StartLine: n.StartLine,
			EndLine:   n.EndLine,
			Doc:       n.Doc,
		})
		return true
	})
	return entries
}
