// Package render implements the snippet renderer of spec §4.21: a
// deterministic, XML-like document describing the snippets selected by
// the rest of the query pipeline. No teacher or pack member renders an
// XML-like context document (the teacher's MCP surface returns JSON),
// so the document shape is built directly from spec §4.21; escaping and
// CDATA handling use the standard library's encoding/xml primitives
// rather than hand-rolled escaping, since those are exactly what they
// are for.
package render

import (
	"encoding/xml"
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode"

	"github.com/mvp-joe/codegraphd/internal/provider"
)

// Estimator supplies a token estimate for a piece of text, shared with
// the reranker (spec §4.21 names this renderer as the single source of
// truth for token accounting).
type Estimator interface {
	Estimate(text string) int
}

// Diagnostics carries the counts, token accounting, and timing spec
// §4.21 requires in the rendered document's diagnostics section.
type Diagnostics struct {
	ChunksConsidered int
	TokensRequested  int
	Duration         time.Duration
}

// Params configures a single render.
type Params struct {
	Diagnostics Diagnostics
	Metadata    map[string]string
	MaxTokens   int
	Estimator   Estimator
}

// Render produces the project_context document for snippets. Files are
// ordered by their maximum snippet score descending (ties broken by
// file path for determinism); snippets within a file are ordered by
// score descending. Snippets are appended in that order until the next
// one would exceed MaxTokens, at which point a truncation marker is
// emitted and rendering stops.
func Render(snippets []provider.Snippet, p Params) string {
	files := groupByFile(snippets)

	var b strings.Builder
	b.WriteString(`<project_context>`)
	b.WriteString("\n")

	tokensUsed := 0
	truncated := false

	snippetsEmitted := 0
outer:
	for _, f := range files {
		fileOpened := false
		for _, s := range f.snippets {
			estimate := 0
			if p.Estimator != nil {
				estimate = p.Estimator.Estimate(s.Text)
			}
			if p.MaxTokens > 0 && tokensUsed+estimate > p.MaxTokens {
				truncated = true
				break outer
			}
			if !fileOpened {
				fmt.Fprintf(&b, "  <file path=%s>\n", quoteAttr(f.path))
				fileOpened = true
			}
			writeSnippet(&b, s)
			tokensUsed += estimate
			snippetsEmitted++
		}
		if fileOpened {
			b.WriteString("  </file>\n")
		}
	}

	if truncated {
		b.WriteString("  <truncated/>\n")
	}

	writeDiagnostics(&b, p.Diagnostics, tokensUsed, snippetsEmitted, truncated)
	writeMetadata(&b, p.Metadata)

	b.WriteString(`</project_context>`)
	return b.String()
}

type fileGroup struct {
	path     string
	maxScore float64
	snippets []provider.Snippet
}

func groupByFile(snippets []provider.Snippet) []fileGroup {
	index := make(map[string]int)
	var groups []fileGroup
	for _, s := range snippets {
		i, ok := index[s.FilePath]
		if !ok {
			index[s.FilePath] = len(groups)
			groups = append(groups, fileGroup{path: s.FilePath})
			i = len(groups) - 1
		}
		groups[i].snippets = append(groups[i].snippets, s)
		if s.Score > groups[i].maxScore {
			groups[i].maxScore = s.Score
		}
	}

	for i := range groups {
		sort.SliceStable(groups[i].snippets, func(a, b int) bool {
			return groups[i].snippets[a].Score > groups[i].snippets[b].Score
		})
	}

	sort.SliceStable(groups, func(i, j int) bool {
		if groups[i].maxScore != groups[j].maxScore {
			return groups[i].maxScore > groups[j].maxScore
		}
		return groups[i].path < groups[j].path
	})
	return groups
}

func writeSnippet(b *strings.Builder, s provider.Snippet) {
	fmt.Fprintf(b, "    <snippet label=%s kind=%s score=%s", quoteAttr(s.Label), quoteAttr(s.Kind), quoteAttr(fmt.Sprintf("%.3f", s.Score)))
	if s.StartLine > 0 && s.EndLine > 0 {
		fmt.Fprintf(b, " lines=%s", quoteAttr(fmt.Sprintf("%d-%d", s.StartLine, s.EndLine)))
	}
	b.WriteString(">")
	b.WriteString(cdata(s.Text))
	if len(s.Metadata) > 0 {
		b.WriteString("<metadata>")
		keys := sortedKeys(s.Metadata)
		for _, k := range keys {
			fmt.Fprintf(b, "<%s>%s</%s>", sanitizeKey(k), cdata(s.Metadata[k]), sanitizeKey(k))
		}
		b.WriteString("</metadata>")
	}
	b.WriteString("</snippet>\n")
}

func writeDiagnostics(b *strings.Builder, d Diagnostics, tokensUsed, snippetsEmitted int, truncated bool) {
	fmt.Fprintf(b, "  <diagnostics chunks_considered=%s snippets_returned=%s tokens_requested=%s tokens_used=%s duration_ms=%s truncated=%s/>\n",
		quoteAttr(fmt.Sprintf("%d", d.ChunksConsidered)),
		quoteAttr(fmt.Sprintf("%d", snippetsEmitted)),
		quoteAttr(fmt.Sprintf("%d", d.TokensRequested)),
		quoteAttr(fmt.Sprintf("%d", tokensUsed)),
		quoteAttr(fmt.Sprintf("%d", d.Duration.Milliseconds())),
		quoteAttr(fmt.Sprintf("%t", truncated)),
	)
}

func writeMetadata(b *strings.Builder, metadata map[string]string) {
	if len(metadata) == 0 {
		return
	}
	b.WriteString("  <metadata>\n")
	for _, k := range sortedKeys(metadata) {
		fmt.Fprintf(b, "    <%s>%s</%s>\n", sanitizeKey(k), cdata(metadata[k]), sanitizeKey(k))
	}
	b.WriteString("  </metadata>\n")
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// quoteAttr wraps v in double quotes with its contents XML-escaped.
func quoteAttr(v string) string {
	var b strings.Builder
	_ = xml.EscapeText(&b, []byte(v))
	return `"` + b.String() + `"`
}

// cdata wraps text in a CDATA section, splitting any embedded "]]>"
// terminator so it cannot prematurely close the section.
func cdata(text string) string {
	escaped := strings.ReplaceAll(text, "]]>", "]]]]><![CDATA[>")
	return "<![CDATA[" + escaped + "]]>"
}

// sanitizeKey makes key a valid XML element name per spec §4.21: it
// must begin with a letter or underscore and contain only letters,
// digits, hyphens, dots, or underscores. Spaces become underscores; a
// leading digit gets a leading underscore.
func sanitizeKey(key string) string {
	var b strings.Builder
	for _, r := range key {
		switch {
		case r == ' ':
			b.WriteRune('_')
		case unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-' || r == '.' || r == '_':
			b.WriteRune(r)
		}
	}
	out := b.String()
	if out == "" {
		return "_"
	}
	first := rune(out[0])
	if unicode.IsDigit(first) {
		out = "_" + out
	} else if !unicode.IsLetter(first) && first != '_' {
		out = "_" + out
	}
	return out
}
