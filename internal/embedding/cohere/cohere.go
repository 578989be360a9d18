package cohere

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"ragdb/internal/httpclient"
)

const (
	inputDocument = "search_document"
	inputQuery    = "search_query"
)

var knownDimensions = map[string]int{
	"embed-english-v3.0":            1024,
	"embed-multilingual-v3.0":       1024,
	"embed-english-light-v3.0":      384,
	"embed-multilingual-light-v3.0": 384,
}

// Config configures the Cohere embed client.
type Config struct {
	BaseURL   string
	APIKeyEnv string
	Model     string
	Truncate  string
	Timeout   time.Duration
}

// Client calls Cohere's v2 /embed endpoint.
type Client struct {
	http      *httpclient.Client
	model     string
	truncate  string
	dimension int
}

// NewClient creates a new embeddings client using the provided configuration.
func NewClient(cfg Config) (*Client, error) {
	key := os.Getenv(cfg.APIKeyEnv)
	if key == "" {
		return nil, fmt.Errorf("missing API key in env %s", cfg.APIKeyEnv)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.cohere.com"
	}
	if cfg.Model == "" {
		cfg.Model = "embed-multilingual-v3.0"
	}
	return &Client{
		http:      httpclient.New(cfg.BaseURL, key, cfg.Timeout),
		model:     cfg.Model,
		truncate:  cfg.Truncate,
		dimension: knownDimensions[cfg.Model],
	}, nil
}

type embedRequest struct {
	Model          string   `json:"model"`
	Texts          []string `json:"texts"`
	InputType      string   `json:"input_type"`
	EmbeddingTypes []string `json:"embedding_types"`
	Truncate       string   `json:"truncate,omitempty"`
}

type embedResponse struct {
	Embeddings struct {
		Float [][]float32 `json:"float"`
	} `json:"embeddings"`
}

// Name returns the identifier of this embedder implementation.
func (c *Client) Name() string { return "cohere:" + c.model }

// Dimension returns the dimensionality of the produced embedding vectors.
func (c *Client) Dimension() int { return c.dimension }

func (c *Client) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	return c.embed(ctx, texts, inputDocument)
}

func (c *Client) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vecs, err := c.embed(ctx, []string{text}, inputQuery)
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func (c *Client) embed(ctx context.Context, texts []string, inputType string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, errors.New("no texts to embed")
	}
	req := embedRequest{
		Model:          c.model,
		Texts:          texts,
		InputType:      inputType,
		EmbeddingTypes: []string{"float"},
		Truncate:       c.truncate,
	}
	var resp embedResponse
	if err := c.http.PostJSON(ctx, "/v2/embed", req, &resp); err != nil {
		return nil, fmt.Errorf("cohere embed: %w", err)
	}
	if len(resp.Embeddings.Float) != len(texts) {
		return nil, fmt.Errorf("cohere embed: got %d vectors for %d texts", len(resp.Embeddings.Float), len(texts))
	}
	if c.dimension == 0 {
		c.dimension = len(resp.Embeddings.Float[0])
	}
	return resp.Embeddings.Float, nil
}
