// Package boost implements the score booster of spec §4.18: a small,
// pure rescoring pass applied after fusion and before reranking, driven
// entirely by configuration rather than any retrieval signal. Grounded
// on spec §4.18's rules directly; no teacher or pack member implements
// per-path or per-language score weighting.
package boost

import (
	"strings"

	"github.com/mvp-joe/codegraphd/internal/provider"
)

// Rules holds the configured multipliers. PathPrefixes maps a path
// prefix to its multiplier; the longest matching prefix wins.
// Languages maps a language name to its multiplier.
type Rules struct {
	PathPrefixes map[string]float64
	Languages    map[string]float64
}

// Apply multiplies each snippet's score by the product of its longest
// matching path-prefix multiplier and its language multiplier, clamping
// the result to 1.0. Snippets matching neither rule are unchanged.
// Input is not mutated; a new slice is returned.
func Apply(snippets []provider.Snippet, rules Rules) []provider.Snippet {
	out := make([]provider.Snippet, len(snippets))
	for i, s := range snippets {
		mult := 1.0
		if m, ok := longestPrefixMultiplier(s.FilePath, rules.PathPrefixes); ok {
			mult *= m
		}
		if m, ok := rules.Languages[s.Language]; ok {
			mult *= m
		}
		s.Score *= mult
		if s.Score > 1.0 {
			s.Score = 1.0
		}
		out[i] = s
	}
	return out
}

func longestPrefixMultiplier(path string, prefixes map[string]float64) (float64, bool) {
	bestLen := -1
	var best float64
	found := false
	for prefix, mult := range prefixes {
		if len(prefix) <= bestLen {
			continue
		}
		if strings.HasPrefix(path, prefix) {
			bestLen = len(prefix)
			best = mult
			found = true
		}
	}
	return best, found
}
