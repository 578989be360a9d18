package rerank

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragdb/internal/domain"
)

func sampleResults() []domain.SearchResult {
	return []domain.SearchResult{
		{Chunk: domain.Chunk{ID: "a", Text: "alpha"}, Distance: -0.9, Score: 0.9},
		{Chunk: domain.Chunk{ID: "b", Text: "beta"}, Distance: -0.8, Score: 0.8},
		{Chunk: domain.Chunk{ID: "c", Text: "gamma"}, Distance: -0.7, Score: 0.7},
	}
}

func ids(rs []domain.SearchResult) []string {
	out := make([]string, len(rs))
	for i, r := range rs {
		out[i] = r.Chunk.ID
	}
	return out
}

func TestNoneTruncates(t *testing.T) {
	out, err := None{}.Rerank(context.Background(), "q", sampleResults(), 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, ids(out))

	out, err = None{}.Rerank(context.Background(), "q", sampleResults(), 0)
	require.NoError(t, err)
	assert.Len(t, out, 3)
}

func TestCohereRerank(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v2/rerank", r.URL.Path)
		assert.Equal(t, "Bearer ck", r.Header.Get("Authorization"))
		var req struct {
			Query     string   `json:"query"`
			Documents []string `json:"documents"`
			TopN      int      `json:"top_n"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "which letter?", req.Query)
		assert.Equal(t, []string{"alpha", "beta", "gamma"}, req.Documents)
		assert.Equal(t, 2, req.TopN)
		_, _ = w.Write([]byte(`{"results":[{"index":2,"relevance_score":0.95},{"index":0,"relevance_score":0.4}]}`))
	}))
	defer srv.Close()

	t.Setenv("RAGDB_TEST_COHERE_KEY", "ck")
	c, err := NewCohere(srv.URL, "RAGDB_TEST_COHERE_KEY", "", time.Second)
	require.NoError(t, err)

	out, err := c.Rerank(context.Background(), "which letter?", sampleResults(), 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "a"}, ids(out))
	assert.InDelta(t, 0.95, out[0].Score, 1e-9)
	assert.InDelta(t, -0.7, out[0].Distance, 1e-9)
}

func TestCohereMissingKey(t *testing.T) {
	_, err := NewCohere("", "RAGDB_TEST_UNSET_KEY", "", time.Second)
	assert.Error(t, err)
}

func TestTEIRerankSortsByScore(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/rerank", r.URL.Path)
		_, _ = w.Write([]byte(`[{"index":1,"score":0.2},{"index":2,"score":0.6},{"index":0,"score":0.1}]`))
	}))
	defer srv.Close()

	out, err := NewTEI(srv.URL, "", time.Second).Rerank(context.Background(), "q", sampleResults(), 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "b"}, ids(out))
}

func TestTEIBadIndex(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[{"index":7,"score":0.2}]`))
	}))
	defer srv.Close()

	_, err := NewTEI(srv.URL, "", time.Second).Rerank(context.Background(), "q", sampleResults(), 2)
	assert.Error(t, err)
}

func TestTEIServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
	}))
	defer srv.Close()

	_, err := NewTEI(srv.URL, "", time.Second).Rerank(context.Background(), "q", sampleResults(), 2)
	assert.Error(t, err)
}

func TestEmptyInputSkipsCall(t *testing.T) {
	out, err := NewTEI("http://127.0.0.1:1", "", time.Second).Rerank(context.Background(), "q", nil, 2)
	require.NoError(t, err)
	assert.Empty(t, out)
}
