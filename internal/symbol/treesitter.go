package symbol

import (
	sitter "github.com/tree-sitter/go-tree-sitter"
	javascript "github.com/tree-sitter/tree-sitter-javascript/bindings/go"
	python "github.com/tree-sitter/tree-sitter-python/bindings/go"
)

// TreeSitterExtractor extracts top-level classes, functions, and methods
// using a tree-sitter grammar. Grounded on the teacher's
// internal/indexer/parsers package (treesitter.go + python.go), trimmed to
// the (type, name, qualified_name?, signature?, lines?) shape spec §4.9
// asks for.
type TreeSitterExtractor struct {
	lang     string
	language *sitter.Language
}

// NewTreeSitterExtractor builds an extractor for "python" or "javascript".
// Any other value panics at wiring time rather than silently no-op'ing.
func NewTreeSitterExtractor(lang string) *TreeSitterExtractor {
	switch lang {
	case "python":
		return &TreeSitterExtractor{lang: lang, language: sitter.NewLanguage(python.Language())}
	case "javascript":
		return &TreeSitterExtractor{lang: lang, language: sitter.NewLanguage(javascript.Language())}
	default:
		panic("symbol: unsupported tree-sitter language " + lang)
	}
}

func (e *TreeSitterExtractor) Extract(path string, content []byte) ([]Symbol, error) {
	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(e.language)

	tree := parser.Parse(content, nil)
	if tree == nil {
		return nil, nil
	}
	defer tree.Close()

	var symbols []Symbol
	walk(tree.RootNode(), func(n *sitter.Node) bool {
		switch n.Kind() {
		case "class_definition", "class_declaration":
			className := nodeName(n, content)
			symbols = append(symbols, Symbol{
				Type:          TypeClass,
				Name:          className,
				QualifiedName: className,
				Language:      e.lang,
				StartLine:     int(n.StartPosition().Row) + 1,
				EndLine:       int(n.EndPosition().Row) + 1,
			})
			e.extractMethods(n, content, className, &symbols)
			return false
		case "function_definition", "function_declaration":
			if isTopLevel(n) {
				symbols = append(symbols, e.funcSymbol(n, content, ""))
			}
		}
		return true
	})
	return symbols, nil
}

// extractMethods walks a class body for method definitions, without
// recursing into further nested classes.
func (e *TreeSitterExtractor) extractMethods(classNode *sitter.Node, source []byte, className string, out *[]Symbol) {
	body := classNode.ChildByFieldName("body")
	if body == nil {
		return
	}
	walk(body, func(n *sitter.Node) bool {
		switch n.Kind() {
		case "function_definition", "method_definition":
			*out = append(*out, e.funcSymbol(n, source, className))
			return false
		case "class_definition", "class_declaration":
			return false
		}
		return true
	})
}

func (e *TreeSitterExtractor) funcSymbol(node *sitter.Node, source []byte, owner string) Symbol {
	name := nodeName(node, source)
	typ := TypeFunction
	qualified := name
	if owner != "" {
		typ = TypeMethod
		qualified = owner + "." + name
	}
	return Symbol{
		Type:          typ,
		Name:          name,
		QualifiedName: qualified,
		Signature:     functionSignature(node, source, name),
		Language:      e.lang,
		StartLine:     int(node.StartPosition().Row) + 1,
		EndLine:       int(node.EndPosition().Row) + 1,
	}
}

func nodeName(node *sitter.Node, source []byte) string {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return ""
	}
	return string(source[nameNode.StartByte():nameNode.EndByte()])
}

func functionSignature(node *sitter.Node, source []byte, name string) string {
	params := node.ChildByFieldName("parameters")
	if params == nil {
		return name + "()"
	}
	return name + string(source[params.StartByte():params.EndByte()])
}

// isTopLevel reports whether node sits directly under the module/program
// root rather than nested in a class or function body.
func isTopLevel(node *sitter.Node) bool {
	parent := node.Parent()
	for parent != nil {
		switch parent.Kind() {
		case "class_definition", "class_declaration", "function_definition", "function_declaration":
			return false
		case "module", "program":
			return true
		}
		parent = parent.Parent()
	}
	return true
}

// walk performs a depth-first traversal, skipping a subtree when visitor
// returns false for its root.
func walk(node *sitter.Node, visitor func(*sitter.Node) bool) {
	if node == nil {
		return
	}
	if !visitor(node) {
		return
	}
	for i := uint(0); i < node.ChildCount(); i++ {
		walk(node.Child(i), visitor)
	}
}
