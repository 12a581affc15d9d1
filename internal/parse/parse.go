// Package parse extracts symbol ranges from source text with tree-sitter.
package parse

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/python"
	"github.com/smacker/go-tree-sitter/rust"
	"github.com/smacker/go-tree-sitter/typescript/tsx"
	"github.com/smacker/go-tree-sitter/typescript/typescript"

	"github.com/sprite-ai/glim/internal/model"
)

// ErrUnsupportedLanguage is returned for languages without a grammar.
var ErrUnsupportedLanguage = errors.New("unsupported language")

// nodeRule says how a syntax node becomes a symbol.
type nodeRule struct {
	kind      model.SymbolKind
	nameField string
}

type grammar struct {
	lang  func() *sitter.Language
	rules map[string]nodeRule
}

var (
	jsRules = map[string]nodeRule{
		"function_declaration":           {model.KindFunction, "name"},
		"generator_function_declaration": {model.KindFunction, "name"},
		"class_declaration":              {model.KindType, "name"},
		"method_definition":              {model.KindFunction, "name"},
		"variable_declarator":            {model.KindFunction, "name"}, // only with a function value, see isSymbol
	}
	tsRules = merge(jsRules, map[string]nodeRule{
		"abstract_class_declaration": {model.KindType, "name"},
		"interface_declaration":      {model.KindType, "name"},
		"type_alias_declaration":     {model.KindType, "name"},
		"enum_declaration":           {model.KindType, "name"},
		"module":                     {model.KindOther, "name"},
	})
)

var grammars = map[string]grammar{
	"go": {golang.GetLanguage, map[string]nodeRule{
		"function_declaration": {model.KindFunction, "name"},
		"method_declaration":   {model.KindFunction, "name"},
		"type_spec":            {model.KindType, "name"},
	}},
	"python": {python.GetLanguage, map[string]nodeRule{
		"function_definition": {model.KindFunction, "name"},
		"class_definition":    {model.KindType, "name"},
	}},
	"javascript": {javascript.GetLanguage, jsRules},
	"typescript": {typescript.GetLanguage, tsRules},
	"tsx":        {tsx.GetLanguage, tsRules},
	"rust": {rust.GetLanguage, map[string]nodeRule{
		"function_item": {model.KindFunction, "name"},
		"struct_item":   {model.KindType, "name"},
		"enum_item":     {model.KindType, "name"},
		"trait_item":    {model.KindType, "name"},
		"union_item":    {model.KindType, "name"},
		"impl_item":     {model.KindOther, "type"}, // named "impl [Trait for ]Type", see name
		"mod_item":      {model.KindOther, "name"},
	}},
}

var extensions = map[string]string{
	".go":  "go",
	".py":  "python",
	".pyi": "python",
	".js":  "javascript",
	".jsx": "javascript",
	".mjs": "javascript",
	".cjs": "javascript",
	".ts":  "typescript",
	".mts": "typescript",
	".cts": "typescript",
	".tsx": "tsx",
	".rs":  "rust",
}

func merge(a, b map[string]nodeRule) map[string]nodeRule {
	out := make(map[string]nodeRule, len(a)+len(b))
	for k, v := range a {
		out[k] = v
	}
	for k, v := range b {
		out[k] = v
	}
	return out
}

// LanguageForPath returns the parser language id for a file, or "" when none applies.
func LanguageForPath(path string) string {
	return extensions[strings.ToLower(filepath.Ext(path))]
}

// Supported reports whether lang has a grammar.
func Supported(lang string) bool {
	_, ok := grammars[lang]
	return ok
}

// Parser extracts symbols. It is safe for concurrent use: each call gets its own
// tree-sitter parser.
type Parser struct{}

// New returns a Parser.
func New() *Parser {
	return &Parser{}
}

// Symbols parses src and returns its symbol ranges in source order.
func (p *Parser) Symbols(ctx context.Context, lang string, src []byte) ([]model.SymbolRange, error) {
	g, ok := grammars[lang]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedLanguage, lang)
	}

	parser := sitter.NewParser()
	parser.SetLanguage(g.lang())
	tree, err := parser.ParseCtx(ctx, nil, src)
	if err != nil {
		return nil, fmt.Errorf("tree-sitter parse: %w", err)
	}
	defer tree.Close()

	w := &walker{src: src, rules: g.rules, lang: lang}
	w.walk(tree.RootNode(), "")
	return w.out, nil
}

type walker struct {
	src   []byte
	rules map[string]nodeRule
	lang  string
	out   []model.SymbolRange
}

func (w *walker) walk(n *sitter.Node, parent string) {
	for i := 0; i < int(n.NamedChildCount()); i++ {
		child := n.NamedChild(i)
		id := parent
		if r, ok := w.rules[child.Type()]; ok && w.isSymbol(child) {
			if name := w.name(child, r); name != "" {
				start := int(child.StartPoint().Row) + 1
				end := int(child.EndPoint().Row) + 1
				if child.EndPoint().Column == 0 && end > start {
					end--
				}
				id = fmt.Sprintf("%s:%s:%d", r.kind, name, start)
				w.out = append(w.out, model.SymbolRange{
					ID:     id,
					Kind:   r.kind,
					Name:   name,
					Start:  start,
					End:    end,
					Parent: parent,
				})
			}
		}
		w.walk(child, id)
	}
}

// isSymbol filters rules that only apply to some shapes of a node.
func (w *walker) isSymbol(n *sitter.Node) bool {
	if n.Type() != "variable_declarator" {
		return true
	}
	v := n.ChildByFieldName("value")
	if v == nil {
		return false
	}
	switch v.Type() {
	case "arrow_function", "function", "function_expression", "generator_function":
		return true
	}
	return false
}

func (w *walker) name(n *sitter.Node, r nodeRule) string {
	nameNode := n.ChildByFieldName(r.nameField)
	if nameNode == nil {
		return ""
	}
	name := nameNode.Content(w.src)
	switch {
	case w.lang == "go" && n.Type() == "method_declaration":
		if recv := receiverType(n.ChildByFieldName("receiver"), w.src); recv != "" {
			name = recv + "." + name
		}
	case n.Type() == "impl_item":
		// Kept apart from the type it implements, which has the same type name.
		if trait := n.ChildByFieldName("trait"); trait != nil {
			name = trait.Content(w.src) + " for " + name
		}
		name = "impl " + name
	}
	return name
}

// receiverType finds the named type of a Go method receiver, dropping pointers
// and type parameters.
func receiverType(n *sitter.Node, src []byte) string {
	if n == nil {
		return ""
	}
	if n.Type() == "type_identifier" {
		return n.Content(src)
	}
	for i := 0; i < int(n.NamedChildCount()); i++ {
		if t := receiverType(n.NamedChild(i), src); t != "" {
			return t
		}
	}
	return ""
}
