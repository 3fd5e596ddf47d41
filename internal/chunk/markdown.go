package chunk

import (
	"regexp"
	"strings"
)

// MarkdownStrategy splits a document by level-2 headings, then by
// paragraphs when a section exceeds maxTokens, then by sentences when a
// single paragraph does, never splitting inside fenced code blocks.
// Adapted from the teacher's documentation chunker (internal/indexer/chunker.go).
type MarkdownStrategy struct{}

var headerPattern = regexp.MustCompile(`^##\s+`)
var codeFence = regexp.MustCompile("^```")
var sentenceSplit = regexp.MustCompile(`[.!?]+\s+`)

type mdSection struct {
	startLine int
	lines     []string
}

func (s *MarkdownStrategy) Chunk(content string, maxTokens, overlap int) ([]Chunk, error) {
	if strings.TrimSpace(content) == "" {
		return nil, nil
	}
	lines := strings.Split(content, "\n")
	sections := splitByHeaders(lines)

	var chunks []Chunk
	ordinal := 0
	for _, sec := range sections {
		for _, c := range processSection(sec, maxTokens) {
			c.Ordinal = ordinal
			c.Kind = KindDocSection
			c.TokenEstimate = EstimateTokens(c.Content)
			chunks = append(chunks, c)
			ordinal++
		}
	}
	return chunks, nil
}

func splitByHeaders(lines []string) []mdSection {
	var sections []mdSection
	cur := mdSection{startLine: 1}
	for i, line := range lines {
		if headerPattern.MatchString(line) && i > 0 {
			if len(cur.lines) > 0 {
				sections = append(sections, cur)
			}
			cur = mdSection{startLine: i + 1, lines: []string{line}}
		} else {
			cur.lines = append(cur.lines, line)
		}
	}
	if len(cur.lines) > 0 {
		sections = append(sections, cur)
	}
	return sections
}

func processSection(sec mdSection, maxTokens int) []Chunk {
	text := strings.Join(sec.lines, "\n")
	if EstimateTokens(text) <= maxTokens {
		return []Chunk{{
			StartLine: sec.startLine,
			EndLine:   sec.startLine + len(sec.lines) - 1,
			Content:   strings.TrimSpace(text),
		}}
	}
	return splitByParagraphs(sec, maxTokens)
}

type paragraph struct {
	text      string
	startLine int
	endLine   int
}

func extractParagraphs(lines []string, startLine int) []paragraph {
	var paras []paragraph
	var cur []string
	curStart := startLine
	inCode := false

	flush := func(endLine int) {
		if len(cur) == 0 {
			return
		}
		text := strings.TrimSpace(strings.Join(cur, "\n"))
		if text != "" {
			paras = append(paras, paragraph{text: text, startLine: curStart, endLine: endLine})
		}
		cur = nil
	}

	for i, line := range lines {
		lineNum := startLine + i
		if codeFence.MatchString(line) {
			if !inCode {
				flush(lineNum - 1)
				inCode = true
				curStart = lineNum
				cur = append(cur, line)
			} else {
				cur = append(cur, line)
				flush(lineNum)
				curStart = lineNum + 1
				inCode = false
			}
			continue
		}
		if inCode {
			cur = append(cur, line)
			continue
		}
		if strings.TrimSpace(line) == "" {
			flush(lineNum - 1)
			curStart = lineNum + 1
		} else {
			cur = append(cur, line)
		}
	}
	flush(startLine + len(lines) - 1)
	return paras
}

func splitByParagraphs(sec mdSection, maxTokens int) []Chunk {
	paras := extractParagraphs(sec.lines, sec.startLine)
	var chunks []Chunk
	var cur []paragraph
	size := 0

	finalize := func() {
		if len(cur) == 0 {
			return
		}
		texts := make([]string, len(cur))
		for i, p := range cur {
			texts[i] = p.text
		}
		chunks = append(chunks, Chunk{
			StartLine: cur[0].startLine,
			EndLine:   cur[len(cur)-1].endLine,
			Content:   strings.Join(texts, "\n\n"),
		})
		cur = nil
		size = 0
	}

	for _, p := range paras {
		pSize := EstimateTokens(p.text)
		if size > 0 && size+pSize > maxTokens {
			finalize()
		}
		if pSize > maxTokens {
			if codeFence.MatchString(p.text) {
				chunks = append(chunks, Chunk{StartLine: p.startLine, EndLine: p.endLine, Content: p.text})
				continue
			}
			chunks = append(chunks, splitBySentences(p, maxTokens)...)
			continue
		}
		cur = append(cur, p)
		size += pSize
	}
	finalize()
	return chunks
}

func splitBySentences(p paragraph, maxTokens int) []Chunk {
	sentences := sentenceSplit.Split(p.text, -1)
	var chunks []Chunk
	var cur []string
	size := 0

	finalize := func() {
		if len(cur) == 0 {
			return
		}
		chunks = append(chunks, Chunk{
			StartLine: p.startLine,
			EndLine:   p.endLine,
			Content:   strings.Join(cur, " "),
		})
		cur = nil
		size = 0
	}

	for _, s := range sentences {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		sSize := EstimateTokens(s)
		if size > 0 && size+sSize > maxTokens {
			finalize()
		}
		cur = append(cur, s)
		size += sSize
	}
	finalize()
	return chunks
}
