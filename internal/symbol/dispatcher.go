package symbol

import (
	"path/filepath"
	"strings"
)

// Dispatcher routes a file to its language's Extractor by extension,
// mirroring chunk.Dispatcher's extension-to-language mapping.
type Dispatcher struct {
	extractors map[string]Extractor
}

// NewDispatcher builds the default dispatcher: go/ast for Go, tree-sitter
// grammars for Python and JavaScript/TypeScript.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{
		extractors: map[string]Extractor{
			"go":         &GoExtractor{},
			"python":     NewTreeSitterExtractor("python"),
			"javascript": NewTreeSitterExtractor("javascript"),
			"typescript": NewTreeSitterExtractor("javascript"),
		},
	}
}

func languageFromExtension(ext string) string {
	switch strings.ToLower(strings.TrimPrefix(ext, ".")) {
	case "go":
		return "go"
	case "py":
		return "python"
	case "js", "jsx", "mjs":
		return "javascript"
	case "ts", "tsx":
		return "typescript"
	default:
		return ""
	}
}

// Extract dispatches on the file's extension. Unsupported languages return
// (nil, nil), per spec §4.9.
func (d *Dispatcher) Extract(path string, content []byte) ([]Symbol, error) {
	lang := languageFromExtension(filepath.Ext(path))
	extractor, ok := d.extractors[lang]
	if !ok {
		return nil, nil
	}
	return extractor.Extract(path, content)
}
