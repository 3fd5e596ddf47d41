package chunk

import "strings"

// FallbackStrategy splits unknown-language content by blank-line
// paragraphs, then hard-splits any paragraph that alone exceeds maxTokens.
type FallbackStrategy struct{}

func (s *FallbackStrategy) Chunk(content string, maxTokens, overlap int) ([]Chunk, error) {
	if strings.TrimSpace(content) == "" {
		return nil, nil
	}
	lines := strings.Split(content, "\n")

	type para struct {
		start, end int
		text       []string
	}
	var paras []para
	var cur para
	cur.start = 1

	flush := func(endLine int) {
		if len(cur.text) == 0 {
			return
		}
		cur.end = endLine
		paras = append(paras, cur)
		cur = para{}
	}

	for i, line := range lines {
		lineNum := i + 1
		if strings.TrimSpace(line) == "" {
			flush(lineNum - 1)
			cur.start = lineNum + 1
			continue
		}
		if len(cur.text) == 0 {
			cur.start = lineNum
		}
		cur.text = append(cur.text, line)
	}
	flush(len(lines))

	var chunks []Chunk
	ordinal := 0
	for _, p := range paras {
		text := strings.Join(p.text, "\n")
		if EstimateTokens(text) <= maxTokens {
			chunks = append(chunks, Chunk{
				Ordinal:       ordinal,
				Kind:          KindCodeBlock,
				StartLine:     p.start,
				EndLine:       p.end,
				Content:       text,
				TokenEstimate: EstimateTokens(text),
			})
			ordinal++
			continue
		}
		for _, c := range hardSplit(p.text, p.start, maxTokens) {
			c.Ordinal = ordinal
			c.Kind = KindCodeBlock
			c.TokenEstimate = EstimateTokens(c.Content)
			chunks = append(chunks, c)
			ordinal++
		}
	}
	return chunks, nil
}

// hardSplit breaks an overlength paragraph into fixed-size line windows.
func hardSplit(lines []string, startLine, maxTokens int) []Chunk {
	var chunks []Chunk
	var cur []string
	curStart := startLine
	size := 0

	for i, line := range lines {
		lSize := EstimateTokens(line)
		if size > 0 && size+lSize > maxTokens {
			chunks = append(chunks, Chunk{
				StartLine: curStart,
				EndLine:   startLine + i - 1,
				Content:   strings.Join(cur, "\n"),
			})
			cur = nil
			size = 0
			curStart = startLine + i
		}
		cur = append(cur, line)
		size += lSize
	}
	if len(cur) > 0 {
		chunks = append(chunks, Chunk{
			StartLine: curStart,
			EndLine:   startLine + len(lines) - 1,
			Content:   strings.Join(cur, "\n"),
		})
	}
	return chunks
}
