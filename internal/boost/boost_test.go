package boost

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mvp-joe/codegraphd/internal/provider"
)

func TestApply_MultipliesByLongestMatchingPathPrefix(t *testing.T) {
	rules := Rules{PathPrefixes: map[string]float64{
		"internal/":       1.2,
		"internal/store/": 1.5,
	}}
	snippets := []provider.Snippet{
		{ChunkID: "a", FilePath: "internal/store/filestate.go", Score: 0.5},
	}
	out := Apply(snippets, rules)
	assert.InDelta(t, 0.75, out[0].Score, 1e-9)
}

func TestApply_MultipliesByLanguage(t *testing.T) {
	rules := Rules{Languages: map[string]float64{"go": 1.5}}
	snippets := []provider.Snippet{{ChunkID: "a", Language: "go", Score: 0.5}}
	out := Apply(snippets, rules)
	assert.InDelta(t, 0.75, out[0].Score, 1e-9)
}

func TestApply_CombinesPathAndLanguageMultipliers(t *testing.T) {
	rules := Rules{
		PathPrefixes: map[string]float64{"internal/": 1.2},
		Languages:    map[string]float64{"go": 1.2},
	}
	snippets := []provider.Snippet{
		{ChunkID: "a", FilePath: "internal/x.go", Language: "go", Score: 0.5},
	}
	out := Apply(snippets, rules)
	assert.InDelta(t, 0.72, out[0].Score, 1e-9)
}

func TestApply_ClampsResultToOne(t *testing.T) {
	rules := Rules{PathPrefixes: map[string]float64{"internal/": 3.0}}
	snippets := []provider.Snippet{{ChunkID: "a", FilePath: "internal/x.go", Score: 0.9}}
	out := Apply(snippets, rules)
	assert.Equal(t, 1.0, out[0].Score)
}

func TestApply_NonMatchingSnippetUnchanged(t *testing.T) {
	rules := Rules{PathPrefixes: map[string]float64{"internal/": 2.0}}
	snippets := []provider.Snippet{{ChunkID: "a", FilePath: "cmd/main.go", Score: 0.42}}
	out := Apply(snippets, rules)
	assert.Equal(t, 0.42, out[0].Score)
}

func TestApply_DoesNotMutateInput(t *testing.T) {
	rules := Rules{PathPrefixes: map[string]float64{"internal/": 2.0}}
	snippets := []provider.Snippet{{ChunkID: "a", FilePath: "internal/x.go", Score: 0.4}}
	_ = Apply(snippets, rules)
	assert.Equal(t, 0.4, snippets[0].Score)
}
