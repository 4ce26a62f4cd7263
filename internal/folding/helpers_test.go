package folding

import (
	"context"
	"fmt"
	"sync"

	"github.com/fyrsmithlabs/foldd/internal/structure"
)

// lineWidth is the byte width of every line in the fixtures.
const lineWidth = 10

// lineMapper maps lines of fixed width. Lines at or past lines fail to map.
type lineMapper struct {
	lines int
}

func (m lineMapper) Map(startLine, endLineExclusive int) (Interval, error) {
	if startLine < 0 || endLineExclusive < startLine || endLineExclusive > m.lines {
		return Interval{}, fmt.Errorf("%w: %d..%d", ErrMapping, startLine, endLineExclusive)
	}
	return Interval{Offset: startLine * lineWidth, Length: (endLineExclusive - startLine) * lineWidth}, nil
}

// span returns the interval a node on lines [start, end] maps to.
func span(start, end int) Interval {
	return Interval{Offset: start * lineWidth, Length: (end - start + 1) * lineWidth}
}

// rule describes a child of the fixture root.
type rule struct {
	id         structure.NodeID
	start, end int
	kind       structure.Kind
	doc        *structure.LineRange
}

func def(id structure.NodeID, start, end int) rule {
	return rule{id: id, start: start, end: end, kind: structure.KindDefinition}
}

const rootID structure.NodeID = 1000

// flatTree builds a root spanning 100 lines with rules as its children.
func flatTree(rules ...rule) *structure.Tree {
	b := structure.NewBuilder(nil)
	root := b.MustAdd(structure.NoNode, structure.Node{ID: rootID, Kind: structure.KindOther, StartLine: 0, EndLine: 99})
	for _, r := range rules {
		b.MustAdd(root, structure.Node{ID: r.id, Kind: r.kind, StartLine: r.start, EndLine: r.end, Doc: r.doc})
	}
	return b.Build()
}

// recordingSink records batches and can be made to fail.
type recordingSink struct {
	mu      sync.Mutex
	batches []Batch
	err     error
}

func (s *recordingSink) Apply(_ context.Context, batch Batch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.batches = append(s.batches, batch)
	return nil
}

func (s *recordingSink) fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

func (s *recordingSink) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.batches)
}

func (s *recordingSink) last() Batch {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.batches) == 0 {
		return Batch{}
	}
	return s.batches[len(s.batches)-1]
}

// regionView is the part of a region that must agree with the target set.
type regionView struct {
	node     structure.NodeID
	disc     Discriminator
	interval Interval
}

func viewsOfRegions(regions []FoldRegion) map[regionView]struct{} {
	out := make(map[regionView]struct{}, len(regions))
	for _, r := range regions {
		out[regionView{node: r.Node, disc: r.Discriminator, interval: r.Interval}] = struct{}{}
	}
	return out
}

func viewsOfTargets(entries []TargetEntry) map[regionView]struct{} {
	out := make(map[regionView]struct{}, len(entries))
	for _, e := range entries {
		out[regionView{node: e.Node, disc: e.Discriminator, interval: e.Interval}] = struct{}{}
	}
	return out
}

// handleFor returns the handle bound to node's body region.
func handleFor(r *Reconciler, node structure.NodeID) (Handle, bool) {
	for _, region := range r.Regions() {
		if region.Node == node && region.Discriminator == DiscriminatorBody {
			return region.Handle, true
		}
	}
	return 0, false
}
