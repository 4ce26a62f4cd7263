package structure

import (
	"fmt"
	"strings"
)

// NodeID identifies a node across parse generations.
type NodeID uint64

// NoNode is the zero NodeID. It never names a real node.
const NoNode NodeID = 0

// Kind classifies a node for folding purposes.
type Kind uint8

const (
	KindOther Kind = iota
	KindDefinition
	KindBlock
	KindConditional
)

// Kinds lists every Kind in declaration order.
var Kinds = []Kind{KindOther, KindDefinition, KindBlock, KindConditional}

// String returns the lower-case name used in configuration and JSON.
func (k Kind) String() string {
	switch k {
	case KindOther:
		return "other"
	case KindDefinition:
		return "definition"
	case KindBlock:
		return "block"
	case KindConditional:
		return "conditional"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Foldable reports whether nodes of this kind produce fold regions.
func (k Kind) Foldable() bool {
	switch k {
	case KindDefinition, KindBlock, KindConditional:
		return true
	case KindOther:
		return false
	default:
		return false
	}
}

// ParseKind parses a kind name as produced by String.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "other":
		return KindOther, nil
	case "definition":
		return KindDefinition, nil
	case "block":
		return KindBlock, nil
	case "conditional":
		return KindConditional, nil
	default:
		return KindOther, fmt.Errorf("%w: %q", ErrUnknownKind, s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *Kind) UnmarshalText(text []byte) error {
	parsed, err := ParseKind(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// LineRange is an inclusive, 0-based line range.
type LineRange struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Lines returns the number of lines covered.
func (r LineRange) Lines() int {
	if r.End < r.Start {
		return 0
	}
	return r.End - r.Start + 1
}

// Node is one entry of the outline tree.
type Node struct {
	ID        NodeID
	Kind      Kind
	Type      string // grammar node type, informational
	StartLine int
	EndLine   int

	// Doc is the leading comment block attached to the node, if any.
	Doc *LineRange

	Children []NodeID

	// Fingerprint summarises the node's source text. Parsers use it to decide
	// whether a node survived an edit unchanged.
	Fingerprint uint64
}

// MultiLine reports whether the node spans more than one line.
func (n *Node) MultiLine() bool {
	return n.StartLine != n.EndLine
}
