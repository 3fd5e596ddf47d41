package render

import (
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mvp-joe/codegraphd/internal/provider"
)

type fixedEstimator struct{ perChar int }

func (f fixedEstimator) Estimate(text string) int { return len(text) * f.perChar }

func TestRender_OrdersFilesByMaxSnippetScoreDescending(t *testing.T) {
	snippets := []provider.Snippet{
		{ChunkID: "a", FilePath: "low.go", Score: 0.2, Kind: "code", Text: "a"},
		{ChunkID: "b", FilePath: "high.go", Score: 0.9, Kind: "code", Text: "b"},
	}
	out := Render(snippets, Params{})
	assert.True(t, strings.Index(out, "high.go") < strings.Index(out, "low.go"))
}

func TestRender_OrdersSnippetsWithinFileByScoreDescending(t *testing.T) {
	snippets := []provider.Snippet{
		{ChunkID: "a", FilePath: "f.go", Score: 0.2, Kind: "code", Text: "first"},
		{ChunkID: "b", FilePath: "f.go", Score: 0.9, Kind: "code", Text: "second"},
	}
	out := Render(snippets, Params{})
	assert.True(t, strings.Index(out, "second") < strings.Index(out, "first"))
}

func TestRender_EscapesAttributeValues(t *testing.T) {
	snippets := []provider.Snippet{
		{ChunkID: "a", FilePath: "f.go", Label: `a "quoted" <label>`, Score: 0.5, Kind: "code", Text: "x"},
	}
	out := Render(snippets, Params{})
	assert.Contains(t, out, "&#34;quoted&#34;")
	assert.Contains(t, out, "&lt;label&gt;")
}

func TestRender_WrapsTextInCDATAAndSplitsEmbeddedTerminator(t *testing.T) {
	snippets := []provider.Snippet{
		{ChunkID: "a", FilePath: "f.go", Score: 0.5, Kind: "code", Text: "before]]>after"},
	}
	out := Render(snippets, Params{})
	assert.Contains(t, out, "before]]]]><![CDATA[>after")
}

func TestRender_IncludesLinesAttributeWhenPresent(t *testing.T) {
	snippets := []provider.Snippet{
		{ChunkID: "a", FilePath: "f.go", Score: 0.5, Kind: "code", Text: "x", StartLine: 10, EndLine: 20},
	}
	out := Render(snippets, Params{})
	assert.Contains(t, out, `lines="10-20"`)
}

func TestRender_OmitsLinesAttributeWhenAbsent(t *testing.T) {
	snippets := []provider.Snippet{
		{ChunkID: "a", FilePath: "f.go", Score: 0.5, Kind: "code", Text: "x"},
	}
	out := Render(snippets, Params{})
	assert.NotContains(t, out, "lines=")
}

func TestRender_SanitizesMetadataKeys(t *testing.T) {
	snippets := []provider.Snippet{
		{ChunkID: "a", FilePath: "f.go", Score: 0.5, Kind: "code", Text: "x",
			Metadata: map[string]string{"2 bad key!": "v"}},
	}
	out := Render(snippets, Params{})
	assert.Contains(t, out, "<_2_bad_key>")
}

func TestRender_TruncatesWhenTokenBudgetExceeded(t *testing.T) {
	snippets := []provider.Snippet{
		{ChunkID: "a", FilePath: "f.go", Score: 0.9, Kind: "code", Text: "aaaaaaaaaa"},
		{ChunkID: "b", FilePath: "g.go", Score: 0.5, Kind: "code", Text: "bbbbbbbbbb"},
	}
	out := Render(snippets, Params{MaxTokens: 5, Estimator: fixedEstimator{perChar: 1}})
	assert.Contains(t, out, "<truncated/>")
	assert.NotContains(t, out, "aaaaaaaaaa")
}

func TestRender_NoTruncationWhenBudgetSufficient(t *testing.T) {
	snippets := []provider.Snippet{
		{ChunkID: "a", FilePath: "f.go", Score: 0.9, Kind: "code", Text: "aa"},
	}
	out := Render(snippets, Params{MaxTokens: 100, Estimator: fixedEstimator{perChar: 1}})
	assert.NotContains(t, out, "<truncated/>")
}

func TestRender_IsDeterministicAcrossRuns(t *testing.T) {
	snippets := []provider.Snippet{
		{ChunkID: "a", FilePath: "f.go", Score: 0.9, Kind: "code", Text: "x"},
		{ChunkID: "b", FilePath: "g.go", Score: 0.5, Kind: "code", Text: "y"},
	}
	first := Render(snippets, Params{Metadata: map[string]string{"task": "t1"}})
	second := Render(snippets, Params{Metadata: map[string]string{"task": "t1"}})
	require.Empty(t, cmp.Diff(first, second))
}

func TestSanitizeKey_LeadingDigitGetsUnderscorePrefix(t *testing.T) {
	assert.Equal(t, "_1abc", sanitizeKey("1abc"))
}

func TestSanitizeKey_SpacesBecomeUnderscores(t *testing.T) {
	assert.Equal(t, "a_b_c", sanitizeKey("a b c"))
}
