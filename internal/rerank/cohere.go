package rerank

import (
	"context"
	"fmt"
	"os"
	"time"

	"ragdb/internal/domain"
	"ragdb/internal/httpclient"
)

// Cohere calls Cohere's /v2/rerank endpoint.
type Cohere struct {
	http  *httpclient.Client
	model string
}

// NewCohere reads the API key from apiKeyEnv.
func NewCohere(baseURL, apiKeyEnv, model string, timeout time.Duration) (*Cohere, error) {
	key := os.Getenv(apiKeyEnv)
	if key == "" {
		return nil, fmt.Errorf("missing API key in env %s", apiKeyEnv)
	}
	if baseURL == "" {
		baseURL = "https://api.cohere.com"
	}
	if model == "" {
		model = "rerank-multilingual-v3.0"
	}
	return &Cohere{http: httpclient.New(baseURL, key, timeout).WithRetries(2), model: model}, nil
}

func (c *Cohere) Name() string { return "cohere:" + c.model }

func (c *Cohere) Rerank(ctx context.Context, query string, results []domain.SearchResult, topN int) ([]domain.SearchResult, error) {
	if len(results) == 0 {
		return results, nil
	}
	req := map[string]any{
		"model":     c.model,
		"query":     query,
		"documents": texts(results),
	}
	if topN > 0 {
		req["top_n"] = topN
	}
	var resp struct {
		Results []struct {
			Index          int     `json:"index"`
			RelevanceScore float64 `json:"relevance_score"`
		} `json:"results"`
	}
	if err := c.http.PostJSON(ctx, "/v2/rerank", req, &resp); err != nil {
		return nil, fmt.Errorf("cohere rerank: %w", err)
	}
	scores := make([]scored, len(resp.Results))
	for i, r := range resp.Results {
		scores[i] = scored{Index: r.Index, Score: r.RelevanceScore}
	}
	return apply(results, scores, topN)
}
