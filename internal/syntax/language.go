// Package syntax turns source text into outline trees with tree-sitter.
//
// Each Parser keeps the previous concrete syntax tree and outline. On every
// Parse it edits the old tree, re-parses incrementally and projects the result
// onto a structure.Tree in which nodes whose text is unchanged keep their IDs.
// Nodes that were touched by an edit get fresh IDs.
package syntax

import (
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"
	"github.com/smacker/go-tree-sitter/python"

	"github.com/fyrsmithlabs/foldd/internal/structure"
)

// ErrUnsupportedLanguage is returned for languages without a registered grammar.
var ErrUnsupportedLanguage = errors.New("unsupported language")

// Language binds a tree-sitter grammar to the node types that appear in the
// outline.
type Language struct {
	Name       string
	Extensions []string

	grammar     *sitter.Language
	kinds       map[string]structure.Kind
	commentType string
}

// KindOf returns the outline kind for a grammar node type. ok is false for
// types that are not part of the outline.
func (l *Language) KindOf(nodeType string) (kind structure.Kind, ok bool) {
	kind, ok = l.kinds[nodeType]
	return kind, ok
}

var registry = map[string]*Language{
	"go": {
		Name:       "go",
		Extensions: []string{".go"},
		grammar:    golang.GetLanguage(),
		kinds: map[string]structure.Kind{
			"function_declaration":        structure.KindDefinition,
			"method_declaration":          structure.KindDefinition,
			"type_declaration":            structure.KindDefinition,
			"const_declaration":           structure.KindDefinition,
			"var_declaration":             structure.KindDefinition,
			"import_declaration":          structure.KindBlock,
			"func_literal":                structure.KindBlock,
			"composite_literal":           structure.KindBlock,
			"for_statement":               structure.KindBlock,
			"if_statement":                structure.KindConditional,
			"expression_switch_statement": structure.KindConditional,
			"type_switch_statement":       structure.KindConditional,
			"select_statement":            structure.KindConditional,
		},
		commentType: "comment",
	},
	"python": {
		Name:       "python",
		Extensions: []string{".py", ".pyi"},
		grammar:    python.GetLanguage(),
		kinds: map[string]structure.Kind{
			"function_definition": structure.KindDefinition,
			"class_definition":    structure.KindDefinition,
			"for_statement":       structure.KindBlock,
			"while_statement":     structure.KindBlock,
			"with_statement":      structure.KindBlock,
			"if_statement":        structure.KindConditional,
			"try_statement":       structure.KindConditional,
			"match_statement":     structure.KindConditional,
		},
		commentType: "comment",
	},
}

// Lookup returns the language registered under name.
func Lookup(name string) (*Language, error) {
	lang, ok := registry[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedLanguage, name)
	}
	return lang, nil
}

// ForPath picks a language by file extension.
func ForPath(path string) (*Language, error) {
	ext := strings.ToLower(filepath.Ext(path))
	for _, lang := range registry {
		for _, e := range lang.Extensions {
			if e == ext {
				return lang, nil
			}
		}
	}
	return nil, fmt.Errorf("%w: no grammar for %q", ErrUnsupportedLanguage, filepath.Base(path))
}

// Languages returns the registered language names, sorted.
func Languages() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
