// Package provider implements the context providers of spec §4.15: each
// variant turns a query into a sequence of scored ContextSnippets,
// normalized to [0,1] before returning. Grounded on the teacher's
// internal/mcp searchers (chromem_searcher.go for vector search,
// exact_searcher.go for full-text), generalized from the teacher's
// ContextChunk/ExactSearchResult shapes to this repo's store-backed
// Chunk/FileState/Symbol model.
package provider

import "context"

// Snippet is the in-memory ContextSnippet of spec §3: renderer input,
// score already normalized to [0,1].
type Snippet struct {
	ChunkID   string
	Score     float64
	FilePath  string
	Label     string
	Kind      string
	Text      string
	Language  string
	Ordinal   int
	StartLine int
	EndLine   int
	Metadata  map[string]string
}

// Filters narrows a provider's candidate set. Zero-value fields are
// unconstrained.
type Filters struct {
	Languages []string
	Kinds     []string
	Paths     []string
}

// Query is a provider's input: the task-derived search text plus any
// caller-supplied filters and the number of results wanted.
type Query struct {
	Text    string
	K       int
	Filters Filters
}

// Provider implements spec §4.15's getContext(task, agent, budget).
// Budget is out of scope for an individual provider (it gates C20/C21
// downstream); a provider only needs to know how many candidates (K) to
// return.
type Provider interface {
	Name() string
	GetContext(ctx context.Context, q Query) ([]Snippet, error)
}

func matchesFilters(f Filters, language, filePath, kind string) bool {
	if len(f.Languages) > 0 && !contains(f.Languages, language) {
		return false
	}
	if len(f.Kinds) > 0 && !contains(f.Kinds, kind) {
		return false
	}
	if len(f.Paths) > 0 && !anyPrefix(f.Paths, filePath) {
		return false
	}
	return true
}

func contains(ss []string, s string) bool {
	for _, x := range ss {
		if x == s {
			return true
		}
	}
	return false
}

func anyPrefix(prefixes []string, s string) bool {
	for _, p := range prefixes {
		if len(s) >= len(p) && s[:len(p)] == p {
			return true
		}
	}
	return false
}

// normalizeScores rescales scores into [0,1] by min-max, per provider
// requirement in spec §4.15. A constant input (max == min) maps every
// score to 1.0 so a single result isn't zeroed out.
func normalizeScores(snippets []Snippet, higherIsBetter bool) {
	if len(snippets) == 0 {
		return
	}
	min, max := snippets[0].Score, snippets[0].Score
	for _, s := range snippets {
		if s.Score < min {
			min = s.Score
		}
		if s.Score > max {
			max = s.Score
		}
	}
	span := max - min
	for i := range snippets {
		var normalized float64
		switch {
		case span == 0:
			normalized = 1.0
		case higherIsBetter:
			normalized = (snippets[i].Score - min) / span
		default:
			normalized = (max - snippets[i].Score) / span
		}
		snippets[i].Score = normalized
	}
}
