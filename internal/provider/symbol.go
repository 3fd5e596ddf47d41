package provider

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/mvp-joe/codegraphd/internal/store"
)

// SymbolProvider matches query tokens against symbol names and
// qualified names with prefix and sub-token scoring, then resolves
// matches to their containing chunks.
type SymbolProvider struct {
	Store    *store.Store
	DefaultK int
}

func (p *SymbolProvider) Name() string { return "symbol" }

func (p *SymbolProvider) GetContext(ctx context.Context, q Query) ([]Snippet, error) {
	k := q.K
	if k <= 0 {
		k = p.DefaultK
	}

	tokens := tokenize(q.Text)
	if len(tokens) == 0 {
		return nil, nil
	}

	candidates, err := store.FindSymbolsByName(p.Store.DB(), "%"+tokens[0]+"%")
	if err != nil {
		return nil, fmt.Errorf("symbol provider: lookup failed: %w", err)
	}

	scored := make([]Snippet, 0, len(candidates))
	seen := make(map[string]bool)
	for _, sym := range candidates {
		if seen[sym.ChunkID] {
			continue
		}
		score := symbolScore(sym.Name, sym.QualifiedName, tokens)
		if score <= 0 {
			continue
		}
		if !matchesFilters(q.Filters, sym.Language, "", "symbol") {
			continue
		}
		chunk, err := store.GetChunkByID(p.Store.DB(), sym.ChunkID)
		if err != nil {
			return nil, fmt.Errorf("symbol provider: failed to load chunk %s: %w", sym.ChunkID, err)
		}
		if chunk == nil {
			continue
		}
		filePath := ""
		if fs, err := store.GetFileStateByID(p.Store.DB(), chunk.FileID); err == nil && fs != nil {
			filePath = fs.RelativePath
		}
		seen[sym.ChunkID] = true
		scored = append(scored, Snippet{
			ChunkID:   sym.ChunkID,
			Score:     score,
			FilePath:  filePath,
			Label:     sym.QualifiedName,
			Kind:      "symbol",
			Text:      chunk.Content,
			Language:  sym.Language,
			Ordinal:   chunk.Ordinal,
			StartLine: chunk.StartLine,
			EndLine:   chunk.EndLine,
		})
	}

	sortByScoreDescending(scored)
	if len(scored) > k {
		scored = scored[:k]
	}
	normalizeScores(scored, true)
	return scored, nil
}

// tokenize splits a query into lowercase identifier tokens on
// whitespace, camelCase boundaries, and underscores.
func tokenize(text string) []string {
	var tokens []string
	var current strings.Builder
	flush := func() {
		if current.Len() > 0 {
			tokens = append(tokens, strings.ToLower(current.String()))
			current.Reset()
		}
	}
	runes := []rune(text)
	for i, r := range runes {
		switch {
		case r == '_' || r == ' ' || r == '.' || r == '-':
			flush()
		case i > 0 && isUpper(r) && !isUpper(runes[i-1]):
			flush()
			current.WriteRune(r)
		default:
			current.WriteRune(r)
		}
	}
	flush()
	return tokens
}

func isUpper(r rune) bool {
	return r >= 'A' && r <= 'Z'
}

// symbolScore gives a prefix match on the bare name the highest weight,
// a substring match on the bare name a middle weight, a substring match
// on the qualified name the lowest weight, and zero otherwise.
func symbolScore(name, qualifiedName string, tokens []string) float64 {
	lowerName := strings.ToLower(name)
	lowerQualified := strings.ToLower(qualifiedName)

	var score float64
	for _, tok := range tokens {
		switch {
		case strings.HasPrefix(lowerName, tok):
			score += 1.0
		case strings.Contains(lowerName, tok):
			score += 0.6
		case strings.Contains(lowerQualified, tok):
			score += 0.3
		}
	}
	return score
}

func sortByScoreDescending(snippets []Snippet) {
	sort.SliceStable(snippets, func(i, j int) bool {
		return snippets[i].Score > snippets[j].Score
	})
}
