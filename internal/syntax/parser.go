package syntax

import (
	"context"
	"errors"
	"fmt"

	sitter "github.com/smacker/go-tree-sitter"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/foldd/internal/structure"
	"github.com/fyrsmithlabs/foldd/internal/textbuf"
)

// ErrParserClosed is returned by Parse after Close.
var ErrParserClosed = errors.New("parser closed")

// Stats describes the most recent Parse.
type Stats struct {
	Nodes       int  `json:"nodes"`
	Reused      int  `json:"reused"`
	Incremental bool `json:"incremental"`
}

// Parser parses successive versions of one document. It is not safe for
// concurrent use.
type Parser struct {
	lang   *Language
	parser *sitter.Parser
	alloc  *structure.Allocator
	logger *zap.Logger

	source  []byte
	tree    *sitter.Tree
	outline *structure.Tree
	starts  map[structure.NodeID]int
	stats   Stats
	closed  bool
}

// Option configures a Parser.
type Option func(*Parser)

// WithLogger sets the logger used for parse diagnostics.
func WithLogger(l *zap.Logger) Option {
	return func(p *Parser) {
		if l != nil {
			p.logger = l.Named("syntax")
		}
	}
}

// WithAllocator shares an ID allocator with other parsers of the same document.
func WithAllocator(a *structure.Allocator) Option {
	return func(p *Parser) {
		if a != nil {
			p.alloc = a
		}
	}
}

// NewParser creates a parser for lang.
func NewParser(lang *Language, opts ...Option) *Parser {
	p := &Parser{
		lang:   lang,
		parser: sitter.NewParser(),
		alloc:  structure.NewAllocator(),
		logger: zap.NewNop(),
	}
	p.parser.SetLanguage(lang.grammar)
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Language returns the parser's language.
func (p *Parser) Language() *Language {
	return p.lang
}

// Tree returns the outline produced by the last successful Parse.
func (p *Parser) Tree() *structure.Tree {
	return p.outline
}

// Stats returns statistics for the last successful Parse.
func (p *Parser) Stats() Stats {
	return p.stats
}

// Parse parses src and returns its outline. After the first call the previous
// syntax tree is edited and reused, and unchanged nodes keep their IDs.
func (p *Parser) Parse(ctx context.Context, src []byte) (*structure.Tree, error) {
	if p.closed {
		return nil, ErrParserClosed
	}

	var edit textbuf.Edit
	if p.outline != nil {
		edit = textbuf.Diff(p.source, src)
	}
	var old *sitter.Tree
	if p.tree != nil {
		if edit.Empty() {
			p.stats = Stats{Nodes: p.outline.Len(), Reused: p.outline.Len(), Incremental: true}
			return p.outline, nil
		}
		p.tree.Edit(editInput(edit))
		old = p.tree
	}

	tree, err := p.parser.ParseCtx(ctx, old, src)
	if err != nil {
		// the edited tree no longer matches p.source; start over next time
		p.dropTree()
		return nil, fmt.Errorf("parse %s: %w", p.lang.Name, err)
	}

	source := append([]byte(nil), src...)
	proj, err := p.project(tree.RootNode(), source, edit)
	if err != nil {
		tree.Close()
		p.dropTree()
		return nil, fmt.Errorf("parse %s: %w", p.lang.Name, err)
	}
	outline, reused := proj.tree, proj.reused

	p.dropTree()
	p.tree = tree
	p.source = source
	p.outline = outline
	p.starts = proj.starts
	p.stats = Stats{Nodes: outline.Len(), Reused: reused, Incremental: old != nil}

	p.logger.Debug("parsed",
		zap.String("language", p.lang.Name),
		zap.Int("bytes", len(source)),
		zap.Int("nodes", p.stats.Nodes),
		zap.Int("reused", reused),
		zap.Bool("incremental", p.stats.Incremental),
	)
	return outline, nil
}

// Close releases the tree-sitter resources.
func (p *Parser) Close() {
	if p.closed {
		return
	}
	p.closed = true
	p.dropTree()
	p.parser.Close()
}

func (p *Parser) dropTree() {
	if p.tree != nil {
		p.tree.Close()
		p.tree = nil
	}
}

func editInput(e textbuf.Edit) sitter.EditInput {
	return sitter.EditInput{
		StartIndex:  uint32(e.StartByte),
		OldEndIndex: uint32(e.OldEndByte),
		NewEndIndex: uint32(e.NewEndByte),
		StartPoint:  point(e.StartPoint),
		OldEndPoint: point(e.OldEndPoint),
		NewEndPoint: point(e.NewEndPoint),
	}
}

func point(pt textbuf.Point) sitter.Point {
	return sitter.Point{Row: uint32(pt.Row), Column: uint32(pt.Column)}
}
