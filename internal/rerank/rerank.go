package rerank

import (
	"context"
	"fmt"
	"sort"

	"ragdb/internal/domain"
)

// None keeps vector order and truncates to topN.
type None struct{}

func (None) Name() string { return "none" }

func (None) Rerank(_ context.Context, _ string, results []domain.SearchResult, topN int) ([]domain.SearchResult, error) {
	return Truncate(results, topN), nil
}

// Truncate returns at most topN results; topN <= 0 keeps everything.
func Truncate(results []domain.SearchResult, topN int) []domain.SearchResult {
	if topN <= 0 || topN >= len(results) {
		return results
	}
	return results[:topN]
}

type scored struct {
	Index int
	Score float64
}

// apply reorders results by the relevance scores, replacing each Score.
func apply(results []domain.SearchResult, scores []scored, topN int) ([]domain.SearchResult, error) {
	sort.SliceStable(scores, func(i, j int) bool { return scores[i].Score > scores[j].Score })
	out := make([]domain.SearchResult, 0, len(scores))
	for _, s := range scores {
		if s.Index < 0 || s.Index >= len(results) {
			return nil, fmt.Errorf("reranker returned index %d for %d documents", s.Index, len(results))
		}
		r := results[s.Index]
		r.Score = s.Score
		out = append(out, r)
	}
	return Truncate(out, topN), nil
}

func texts(results []domain.SearchResult) []string {
	out := make([]string, len(results))
	for i, r := range results {
		out[i] = r.Chunk.Text
	}
	return out
}
