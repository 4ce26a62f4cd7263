package syntax

import (
	"fmt"

	"github.com/cespare/xxhash/v2"
	sitter "github.com/smacker/go-tree-sitter"

	"github.com/fyrsmithlabs/foldd/internal/structure"
	"github.com/fyrsmithlabs/foldd/internal/textbuf"
)

// projection builds one outline from a syntax tree, borrowing IDs from the
// previous outline. A node keeps an old ID only if it has the same text and
// sits where edit moved the old node to.
type projection struct {
	lang      *Language
	src       []byte
	old       *structure.Tree
	oldStarts map[structure.NodeID]int
	edit      textbuf.Edit
	builder   *structure.Builder
	claimed   map[structure.NodeID]struct{}
	starts    map[structure.NodeID]int
	reused    int
}

// project builds the outline for root. edit turns the previous source into src.
func (p *Parser) project(root *sitter.Node, src []byte, edit textbuf.Edit) (*projected, error) {
	pr := &projection{
		lang:      p.lang,
		src:       src,
		old:       p.outline,
		oldStarts: p.starts,
		edit:      edit,
		builder:   structure.NewBuilder(p.alloc),
		claimed:   make(map[structure.NodeID]struct{}),
		starts:    make(map[structure.NodeID]int),
	}

	// The root always survives.
	rootNode := structure.Node{
		Kind:        structure.KindOther,
		Type:        root.Type(),
		StartLine:   0,
		EndLine:     endLine(root),
		Fingerprint: pr.fingerprint(root),
	}
	var oldRoot *structure.Node
	if id := pr.old.Root(); id != structure.NoNode {
		oldRoot, _ = pr.old.Node(id)
		rootNode.ID = id
		pr.claimed[id] = struct{}{}
		pr.reused++
	}
	rootID, err := pr.builder.Add(structure.NoNode, rootNode)
	if err != nil {
		return nil, fmt.Errorf("project %s root: %w", root.Type(), err)
	}
	pr.starts[rootID] = int(root.StartByte())
	if err := pr.addChildren(rootID, oldRoot, root); err != nil {
		return nil, err
	}

	return &projected{tree: pr.builder.Build(), starts: pr.starts, reused: pr.reused}, nil
}

// projected is the result of one projection.
type projected struct {
	tree   *structure.Tree
	starts map[structure.NodeID]int
	reused int
}

// candidate is an outline child waiting for an ID.
type candidate struct {
	ts          *sitter.Node
	node        structure.Node
	counterpart *structure.Node
}

// addChildren adds the outline children of ts under parent. oldParent is the
// node parent corresponded to in the previous outline, or nil.
func (pr *projection) addChildren(parent structure.NodeID, oldParent *structure.Node, ts *sitter.Node) error {
	var cands []*candidate
	for _, c := range pr.outlineChildren(ts) {
		kind, _ := pr.lang.KindOf(c.Type())
		cands = append(cands, &candidate{
			ts: c,
			node: structure.Node{
				Kind:        kind,
				Type:        c.Type(),
				StartLine:   int(c.StartPoint().Row),
				EndLine:     endLine(c),
				Doc:         pr.docRange(c),
				Fingerprint: pr.fingerprint(c),
			},
		})
	}

	var olds []*structure.Node
	if oldParent != nil {
		for _, id := range oldParent.Children {
			if n, ok := pr.old.Node(id); ok {
				olds = append(olds, n)
			}
		}
	}

	// Unchanged nodes keep their IDs.
	for _, c := range cands {
		for _, o := range olds {
			if pr.isClaimed(o.ID) || o.Type != c.node.Type || o.Fingerprint != c.node.Fingerprint {
				continue
			}
			if at, ok := pr.movedStart(o.ID); !ok || at != int(c.ts.StartByte()) {
				continue
			}
			pr.claimed[o.ID] = struct{}{}
			c.node.ID = o.ID
			c.counterpart = o
			pr.reused++
			break
		}
	}
	// Edited nodes get fresh IDs but still pair up with an old node of the same
	// type so their children can be matched.
	paired := make(map[structure.NodeID]struct{})
	for _, c := range cands {
		if c.counterpart != nil {
			continue
		}
		for _, o := range olds {
			if _, taken := paired[o.ID]; taken || pr.isClaimed(o.ID) || o.Type != c.node.Type {
				continue
			}
			paired[o.ID] = struct{}{}
			c.counterpart = o
			break
		}
	}

	for _, c := range cands {
		id, err := pr.builder.Add(parent, c.node)
		if err != nil {
			return fmt.Errorf("project %s at line %d: %w", c.node.Type, c.node.StartLine+1, err)
		}
		pr.starts[id] = int(c.ts.StartByte())
		if err := pr.addChildren(id, c.counterpart, c.ts); err != nil {
			return err
		}
	}
	return nil
}

// movedStart returns where the old node id starts in the new source. Nodes
// starting inside the replaced span have no such position.
func (pr *projection) movedStart(id structure.NodeID) (int, bool) {
	start, ok := pr.oldStarts[id]
	if !ok {
		return 0, false
	}
	switch {
	case start < pr.edit.StartByte:
		return start, true
	case start >= pr.edit.OldEndByte:
		return start + pr.edit.NewEndByte - pr.edit.OldEndByte, true
	}
	return 0, false
}

// outlineChildren returns the nearest descendants of ts whose type is part of
// the outline. Nodes in between are skipped.
func (pr *projection) outlineChildren(ts *sitter.Node) []*sitter.Node {
	var out []*sitter.Node
	var walk func(n *sitter.Node)
	walk = func(n *sitter.Node) {
		count := int(n.NamedChildCount())
		for i := 0; i < count; i++ {
			c := n.NamedChild(i)
			if c == nil {
				continue
			}
			if _, ok := pr.lang.KindOf(c.Type()); ok {
				out = append(out, c)
				continue
			}
			walk(c)
		}
	}
	walk(ts)
	return out
}

// docRange returns the block of comments directly above n, if any.
func (pr *projection) docRange(n *sitter.Node) *structure.LineRange {
	var first, last *sitter.Node
	cur := n
	for {
		prev := cur.PrevNamedSibling()
		if prev == nil || prev.Type() != pr.lang.commentType {
			break
		}
		if cur.StartPoint().Row-prev.EndPoint().Row > 1 {
			break
		}
		if last == nil {
			last = prev
		}
		first = prev
		cur = prev
	}
	if first == nil {
		return nil
	}
	return &structure.LineRange{Start: int(first.StartPoint().Row), End: endLine(last)}
}

func (pr *projection) fingerprint(n *sitter.Node) uint64 {
	d := xxhash.New()
	_, _ = d.WriteString(n.Type())
	_, _ = d.Write([]byte{0})
	_, _ = d.Write(pr.src[n.StartByte():n.EndByte()])
	return d.Sum64()
}

func (pr *projection) isClaimed(id structure.NodeID) bool {
	_, ok := pr.claimed[id]
	return ok
}

// endLine is the last row n occupies. A node ending at column 0 stops on the
// row before.
func endLine(n *sitter.Node) int {
	start, end := int(n.StartPoint().Row), int(n.EndPoint().Row)
	if n.EndPoint().Column == 0 && end > start {
		end--
	}
	return end
}
