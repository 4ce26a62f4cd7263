package structure

import "fmt"

// Allocator hands out NodeIDs. Share one Allocator between every Tree built for
// the same document so fresh IDs never collide with surviving ones.
//
// Allocator is not safe for concurrent use.
type Allocator struct {
	last NodeID
}

// NewAllocator returns an allocator whose first ID is 1.
func NewAllocator() *Allocator {
	return &Allocator{}
}

// Next returns a never-before-issued NodeID.
func (a *Allocator) Next() NodeID {
	a.last++
	return a.last
}

// observe makes sure IDs chosen by callers are never issued again.
func (a *Allocator) observe(id NodeID) {
	if id > a.last {
		a.last = id
	}
}

// Tree is an immutable outline tree. Build one with a Builder.
type Tree struct {
	nodes map[NodeID]*Node
	root  NodeID
}

// Root returns the root node ID, or NoNode for an empty tree.
func (t *Tree) Root() NodeID {
	if t == nil {
		return NoNode
	}
	return t.root
}

// Node looks up a node by ID.
func (t *Tree) Node(id NodeID) (*Node, bool) {
	if t == nil {
		return nil, false
	}
	n, ok := t.nodes[id]
	return n, ok
}

// Len returns the number of nodes in the tree.
func (t *Tree) Len() int {
	if t == nil {
		return 0
	}
	return len(t.nodes)
}

// Walk visits nodes in pre-order. Returning false from fn skips the node's
// children.
func (t *Tree) Walk(fn func(n *Node, depth int) bool) {
	if t == nil || t.root == NoNode {
		return
	}
	var visit func(id NodeID, depth int)
	visit = func(id NodeID, depth int) {
		n, ok := t.nodes[id]
		if !ok {
			return
		}
		if !fn(n, depth) {
			return
		}
		for _, c := range n.Children {
			visit(c, depth+1)
		}
	}
	visit(t.root, 0)
}

// Builder assembles a Tree top-down.
type Builder struct {
	alloc *Allocator
	tree  *Tree
}

// NewBuilder returns a builder drawing fresh IDs from alloc. A nil alloc gets a
// private allocator.
func NewBuilder(alloc *Allocator) *Builder {
	if alloc == nil {
		alloc = NewAllocator()
	}
	return &Builder{
		alloc: alloc,
		tree:  &Tree{nodes: make(map[NodeID]*Node)},
	}
}

// Add inserts n under parent and returns its ID. Pass NoNode as parent to set
// the root. If n.ID is NoNode a fresh ID is allocated, otherwise the given ID is
// kept, which is how a parser preserves identity for unchanged nodes.
func (b *Builder) Add(parent NodeID, n Node) (NodeID, error) {
	if n.EndLine < n.StartLine {
		return NoNode, fmt.Errorf("%w: %d..%d", ErrInvalidLines, n.StartLine, n.EndLine)
	}
	if n.ID == NoNode {
		n.ID = b.alloc.Next()
	} else {
		if _, exists := b.tree.nodes[n.ID]; exists {
			return NoNode, fmt.Errorf("%w: %d", ErrDuplicateNode, n.ID)
		}
		b.alloc.observe(n.ID)
	}
	n.Children = nil

	if parent == NoNode {
		if b.tree.root != NoNode {
			return NoNode, ErrRootAlreadySet
		}
		b.tree.root = n.ID
	} else {
		p, ok := b.tree.nodes[parent]
		if !ok {
			return NoNode, fmt.Errorf("%w: %d", ErrUnknownParent, parent)
		}
		p.Children = append(p.Children, n.ID)
	}

	node := n
	b.tree.nodes[n.ID] = &node
	return n.ID, nil
}

// MustAdd is Add for hand-built trees; it panics on error.
func (b *Builder) MustAdd(parent NodeID, n Node) NodeID {
	id, err := b.Add(parent, n)
	if err != nil {
		panic(err)
	}
	return id
}

// Build returns the finished tree. The builder must not be used afterwards.
func (b *Builder) Build() *Tree {
	t := b.tree
	b.tree = nil
	return t
}
