package chunk

import (
	"path/filepath"
	"strings"
)

// Dispatcher selects a Strategy by the language token derived from a file
// extension, falling back to paragraph-splitting for unsupported languages.
type Dispatcher struct {
	strategies map[string]Strategy
	fallback   Strategy
}

// NewDispatcher builds the default dispatcher: markdown for docs, a
// structural code strategy for common languages, and the paragraph
// fallback for everything else.
func NewDispatcher() *Dispatcher {
	code := &CodeStrategy{}
	return &Dispatcher{
		strategies: map[string]Strategy{
			"markdown":   &MarkdownStrategy{},
			"go":         code,
			"python":     code,
			"javascript": code,
			"typescript": code,
			"java":       code,
			"rust":       code,
			"c":          code,
			"cpp":        code,
		},
		fallback: &FallbackStrategy{},
	}
}

// LanguageFromExtension maps a file extension to a chunker/symbol-extractor
// language token. Returns "" for unrecognized extensions.
func LanguageFromExtension(ext string) string {
	ext = strings.ToLower(strings.TrimPrefix(ext, "."))
	switch ext {
	case "md", "markdown", "rst":
		return "markdown"
	case "go":
		return "go"
	case "py":
		return "python"
	case "js", "jsx", "mjs":
		return "javascript"
	case "ts", "tsx":
		return "typescript"
	case "java":
		return "java"
	case "rs":
		return "rust"
	case "c", "h":
		return "c"
	case "cc", "cpp", "cxx", "hpp":
		return "cpp"
	default:
		return ""
	}
}

// ChunkFile dispatches on the file's extension and chunks its content.
func (d *Dispatcher) ChunkFile(path, content string, maxTokens, overlap int) ([]Chunk, error) {
	lang := LanguageFromExtension(filepath.Ext(path))
	strategy, ok := d.strategies[lang]
	if !ok {
		strategy = d.fallback
	}
	return strategy.Chunk(content, maxTokens, overlap)
}
