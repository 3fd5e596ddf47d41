package render

import (
	"math"
	"unicode"
)

// CharEstimator implements spec §4.21's token estimation heuristic: an
// approximate chars/4 count, adjusted upward for CJK-dense text (where
// one rune is closer to one token than to a quarter of one), with an
// optional per-model multiplier for callers that know their target
// model runs richer or leaner than the chars/4 baseline. No teacher or
// pack member estimates tokens without a model-specific tokenizer
// dependency; this is built directly from spec §4.21's heuristic.
type CharEstimator struct {
	// ModelMultiplier scales the final estimate; zero defaults to 1.0.
	ModelMultiplier float64
}

// Estimate returns the approximate token count for text.
func (e CharEstimator) Estimate(text string) int {
	var total, cjk int
	for _, r := range text {
		total++
		if isCJK(r) {
			cjk++
		}
	}
	nonCJK := total - cjk
	tokens := float64(nonCJK)/4.0 + float64(cjk)

	mult := e.ModelMultiplier
	if mult <= 0 {
		mult = 1.0
	}
	return int(math.Ceil(tokens * mult))
}

func isCJK(r rune) bool {
	return unicode.Is(unicode.Han, r) ||
		unicode.Is(unicode.Hiragana, r) ||
		unicode.Is(unicode.Katakana, r) ||
		unicode.Is(unicode.Hangul, r)
}
