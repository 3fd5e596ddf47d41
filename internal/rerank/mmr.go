// Package rerank implements the MMR (Maximal Marginal Relevance)
// reranker of spec §4.17: greedy, token-budgeted diversified selection
// over scored candidates. No teacher or pack member implements MMR;
// this is built directly from spec §4.17's algorithm in the plain
// struct/function idiom the rest of this repo follows.
package rerank

import (
	"math"
	"sort"
)

// Candidate is one reranker input: a chunk, its embedding vector, and
// its relevance score.
type Candidate struct {
	ChunkID       string
	Vector        []float32
	Relevance     float64
	TokenEstimate int
}

// Estimator supplies the token estimate per candidate, injectable per
// spec §4.21 so the renderer's chars/4-with-CJK-adjustment heuristic is
// the single source of truth for token accounting.
type Estimator interface {
	Estimate(text string) int
}

// Select runs the greedy MMR loop of spec §4.17: seed with the
// highest-relevance candidate that fits the budget, then repeatedly
// pick the candidate maximizing λ·relevance − (1−λ)·max_sim_to_selected
// among those that still fit, tie-breaking on higher relevance. Stops
// when no remaining candidate fits the budget.
func Select(candidates []Candidate, lambda float64, tokenBudget int) []Candidate {
	ordered := sortByRelevanceDescending(candidates)

	seedIdx := -1
	for i, c := range ordered {
		if c.TokenEstimate <= tokenBudget {
			seedIdx = i
			break
		}
	}
	if seedIdx == -1 {
		return nil
	}

	selected := []Candidate{ordered[seedIdx]}
	used := ordered[seedIdx].TokenEstimate
	remaining := removeAt(ordered, seedIdx)

	for len(remaining) > 0 {
		bestIdx := -1
		var bestMMR float64
		for i, c := range remaining {
			if used+c.TokenEstimate > tokenBudget {
				continue
			}
			mmr := lambda*c.Relevance - (1-lambda)*maxCosineSimilarity(c.Vector, selected)
			if bestIdx == -1 || mmr > bestMMR || (mmr == bestMMR && c.Relevance > remaining[bestIdx].Relevance) {
				bestIdx = i
				bestMMR = mmr
			}
		}
		if bestIdx == -1 {
			break
		}
		selected = append(selected, remaining[bestIdx])
		used += remaining[bestIdx].TokenEstimate
		remaining = removeAt(remaining, bestIdx)
	}

	return selected
}

func sortByRelevanceDescending(candidates []Candidate) []Candidate {
	out := make([]Candidate, len(candidates))
	copy(out, candidates)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Relevance > out[j].Relevance
	})
	return out
}

func removeAt(candidates []Candidate, idx int) []Candidate {
	out := make([]Candidate, 0, len(candidates)-1)
	out = append(out, candidates[:idx]...)
	out = append(out, candidates[idx+1:]...)
	return out
}

func maxCosineSimilarity(v []float32, selected []Candidate) float64 {
	max := -1.0
	for _, s := range selected {
		if sim := cosineSimilarity(v, s.Vector); sim > max {
			max = sim
		}
	}
	return max
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
