// Package symbol extracts per-language symbols from source files (spec §4.9).
// A per-language extractor emits (type, name, qualified_name?, signature?,
// lines?); unsupported languages emit nothing. The extractor runs after
// chunking so callers can resolve a symbol's ChunkID by line-range
// intersection. Grounded on the teacher's internal/indexer/parsers package,
// generalized to this domain's Symbol shape.
package symbol

// Type enumerates the Symbol.type values named in spec §3.
type Type string

const (
	TypeFunction  Type = "FUNCTION"
	TypeMethod    Type = "METHOD"
	TypeClass     Type = "CLASS"
	TypeStruct    Type = "STRUCT"
	TypeInterface Type = "INTERFACE"
	TypeVariable  Type = "VARIABLE"
	TypeConstant  Type = "CONSTANT"
)

// Symbol is one extracted identifier, pre-persistence. ChunkID is resolved
// by the caller via line-range intersection against the file's chunks.
type Symbol struct {
	Type          Type
	Name          string
	QualifiedName string
	Signature     string
	Language      string
	StartLine     int
	EndLine       int
	ChunkID       string
}

// Extractor parses one file's content and emits its symbols. Returns (nil,
// nil) for languages it does not support.
type Extractor interface {
	Extract(path string, content []byte) ([]Symbol, error)
}

// AssignChunkIDs resolves each symbol's ChunkID to the chunk whose line
// range contains the symbol's start line, preferring the narrowest
// containing range when chunks overlap.
func AssignChunkIDs(symbols []Symbol, chunkRanges []ChunkRange) {
	for i := range symbols {
		best := -1
		bestWidth := -1
		for j, cr := range chunkRanges {
			if symbols[i].StartLine < cr.StartLine || symbols[i].StartLine > cr.EndLine {
				continue
			}
			width := cr.EndLine - cr.StartLine
			if best == -1 || width < bestWidth {
				best = j
				bestWidth = width
			}
		}
		if best >= 0 {
			symbols[i].ChunkID = chunkRanges[best].ChunkID
		}
	}
}

// ChunkRange is the minimal chunk shape AssignChunkIDs needs: an id and the
// line range it covers.
type ChunkRange struct {
	ChunkID   string
	StartLine int
	EndLine   int
}
