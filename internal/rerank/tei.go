package rerank

import (
	"context"
	"fmt"
	"time"

	"ragdb/internal/domain"
	"ragdb/internal/httpclient"
)

// TEI calls the /rerank endpoint of a text-embeddings-inference server
// hosting a cross-encoder such as BAAI/bge-reranker-large.
type TEI struct {
	http *httpclient.Client
}

// NewTEI builds a TEI reranker. apiKey may be empty for unauthenticated servers.
func NewTEI(baseURL, apiKey string, timeout time.Duration) *TEI {
	if baseURL == "" {
		baseURL = "http://localhost:8080"
	}
	return &TEI{http: httpclient.New(baseURL, apiKey, timeout).WithRetries(2)}
}

func (t *TEI) Name() string { return "tei" }

func (t *TEI) Rerank(ctx context.Context, query string, results []domain.SearchResult, topN int) ([]domain.SearchResult, error) {
	if len(results) == 0 {
		return results, nil
	}
	req := map[string]any{
		"query":      query,
		"texts":      texts(results),
		"truncate":   true,
		"raw_scores": false,
	}
	var resp []struct {
		Index int     `json:"index"`
		Score float64 `json:"score"`
	}
	if err := t.http.PostJSON(ctx, "/rerank", req, &resp); err != nil {
		return nil, fmt.Errorf("tei rerank: %w", err)
	}
	scores := make([]scored, len(resp))
	for i, r := range resp {
		scores[i] = scored{Index: r.Index, Score: r.Score}
	}
	return apply(results, scores, topN)
}
