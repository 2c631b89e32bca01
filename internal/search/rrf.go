package search

import (
	"sort"
	"strings"
)

// BM25Normalize maps a raw SQLite FTS5 bm25 score into [0,1) via
// |x|/(1+|x|). bm25 reports better matches as more negative, so only
// the magnitude matters.
func BM25Normalize(score float64) float64 {
	if score < 0 {
		score = -score
	}
	return score / (1 + score)
}

// Candidate pairs a suggestion string with its fused score.
type Candidate struct {
	Text  string
	Score float64
}

// Fuse merges ranked suggestion lists with Reciprocal Rank Fusion (k=60).
// Every input list must already be ordered best first. The first two lists
// carry double weight, and the very top ranks get a small bonus (+0.05 at
// rank 0, +0.02 through rank 2) so a source's lead pick is hard to unseat.
// Duplicates collapse on trimmed lowercase text, accumulating score across
// lists while the first-seen spelling is the one returned. The result is
// sorted by fused score, best first.
func Fuse(lists ...[]string) []Candidate {
	scores := make(map[string]float64)
	display := make(map[string]string)
	var order []string

	for listIdx, list := range lists {
		weight := 1.0
		if listIdx < 2 {
			weight = 2.0
		}
		for rank, text := range list {
			k := strings.ToLower(strings.TrimSpace(text))
			if k == "" {
				continue
			}
			rankBonus := 0.0
			if rank == 0 {
				rankBonus = 0.05
			} else if rank <= 2 {
				rankBonus = 0.02
			}
			contrib := weight/(60.0+float64(rank)+1) + rankBonus
			if _, exists := scores[k]; !exists {
				order = append(order, k)
				display[k] = strings.TrimSpace(text)
			}
			scores[k] += contrib
		}
	}

	result := make([]Candidate, 0, len(scores))
	for _, k := range order {
		result = append(result, Candidate{
			Text:  display[k],
			Score: scores[k],
		})
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].Score > result[j].Score
	})
	return result
}

// Texts flattens fused candidates back to plain strings, best first.
func Texts(candidates []Candidate) []string {
	out := make([]string, len(candidates))
	for i, c := range candidates {
		out[i] = c.Text
	}
	return out
}
