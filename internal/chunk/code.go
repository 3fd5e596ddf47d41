package chunk

import (
	"regexp"
	"strings"
)

// topLevelDecl matches a structural hint — the start of a top-level
// function, method, or type/class declaration in one of the languages this
// strategy covers. This is intentionally a line-boundary heuristic (true
// per-language parsing is C9's job); it only has to find plausible chunk
// boundaries, not a full AST.
var topLevelDecl = regexp.MustCompile(`^(func |def |class |public |private |protected |fn |impl |struct |type |interface |export )`)

// CodeStrategy chunks source code by grouping lines into bounded-token
// chunks, preferring to break at top-level declaration boundaries.
type CodeStrategy struct{}

func (s *CodeStrategy) Chunk(content string, maxTokens, overlap int) ([]Chunk, error) {
	if strings.TrimSpace(content) == "" {
		return nil, nil
	}
	lines := strings.Split(content, "\n")

	var chunks []Chunk
	ordinal := 0
	curStart := 1
	var cur []string
	size := 0

	flush := func(endLine int, kind Kind) {
		if len(cur) == 0 {
			return
		}
		text := strings.Join(cur, "\n")
		chunks = append(chunks, Chunk{
			Ordinal:       ordinal,
			Kind:          kind,
			StartLine:     curStart,
			EndLine:       endLine,
			Content:       text,
			TokenEstimate: EstimateTokens(text),
		})
		ordinal++
		cur = nil
		size = 0
	}

	for i, line := range lines {
		lineNum := i + 1
		isBoundary := topLevelDecl.MatchString(line)

		if isBoundary && len(cur) > 0 && size >= maxTokens/4 {
			flush(lineNum-1, classifyKind(cur))
			curStart = lineNum
		}

		lSize := EstimateTokens(line)
		if size > 0 && size+lSize > maxTokens {
			flush(lineNum-1, classifyKind(cur))
			curStart = lineNum
		}

		cur = append(cur, line)
		size += lSize
	}
	flush(len(lines), classifyKind(cur))

	if overlap > 0 {
		applyOverlap(chunks, lines, overlap)
	}
	return chunks, nil
}

func classifyKind(lines []string) Kind {
	for _, l := range lines {
		trimmed := strings.TrimSpace(l)
		if strings.HasPrefix(trimmed, "class ") || strings.HasPrefix(trimmed, "type ") ||
			strings.HasPrefix(trimmed, "struct ") || strings.HasPrefix(trimmed, "interface ") {
			return KindCodeClass
		}
		if strings.HasPrefix(trimmed, "func ") || strings.HasPrefix(trimmed, "def ") ||
			strings.HasPrefix(trimmed, "fn ") {
			return KindCodeFunction
		}
	}
	return KindCodeBlock
}

// applyOverlap prepends trailing lines from the previous chunk onto each
// subsequent chunk's content until at least `overlap` tokens are covered
// (the last line taken may push it past `overlap`), for strategies
// that opt into overlap (spec §4.8: "Overlap is optional per strategy").
func applyOverlap(chunks []Chunk, _ []string, overlap int) {
	for i := 1; i < len(chunks); i++ {
		prev := strings.Split(chunks[i-1].Content, "\n")
		budget := overlap
		var tail []string
		for j := len(prev) - 1; j >= 0 && budget > 0; j-- {
			tail = append([]string{prev[j]}, tail...)
			budget -= EstimateTokens(prev[j])
		}
		if len(tail) == 0 {
			continue
		}
		chunks[i].Content = strings.Join(tail, "\n") + "\n" + chunks[i].Content
		chunks[i].TokenEstimate = EstimateTokens(chunks[i].Content)
	}
}
