package cohere

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	t.Setenv("RAGDB_TEST_COHERE_KEY", "ck")
	c, err := NewClient(Config{BaseURL: srv.URL, APIKeyEnv: "RAGDB_TEST_COHERE_KEY", Model: "embed-english-v3.0"})
	require.NoError(t, err)
	return c
}

func TestEmbedUsesInputType(t *testing.T) {
	var seen []string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v2/embed", r.URL.Path)
		var req embedRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		seen = append(seen, req.InputType)
		assert.Equal(t, []string{"float"}, req.EmbeddingTypes)

		vecs := make([][]float32, len(req.Texts))
		for i := range vecs {
			vecs[i] = []float32{float32(i), 1}
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"embeddings": map[string]any{"float": vecs}})
	})
	assert.Equal(t, 1024, c.Dimension())

	docs, err := c.EmbedDocuments(t.Context(), []string{"a", "b", "c"})
	require.NoError(t, err)
	assert.Len(t, docs, 3)
	assert.Equal(t, []float32{2, 1}, docs[2])

	q, err := c.EmbedQuery(t.Context(), "q")
	require.NoError(t, err)
	assert.Equal(t, []float32{0, 1}, q)

	assert.Equal(t, []string{inputDocument, inputQuery}, seen)
}

func TestEmbedCountMismatch(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"embeddings":{"float":[[1,2]]}}`))
	})
	_, err := c.EmbedDocuments(t.Context(), []string{"a", "b"})
	assert.Error(t, err)
}

func TestEmbedEmptyInput(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("unexpected request")
	})
	_, err := c.EmbedDocuments(t.Context(), nil)
	assert.Error(t, err)
}
