package openai

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewClientRequiresKey(t *testing.T) {
	_, err := NewClient(Config{APIKeyEnv: "RAGDB_TEST_UNSET_KEY"})
	assert.Error(t, err)
}

func TestEmbedDocumentsOrdersByIndex(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/embeddings", r.URL.Path)
		assert.Equal(t, "Bearer k", r.Header.Get("Authorization"))

		var body struct {
			Input []string `json:"input"`
			Model string   `json:"model"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, []string{"a", "b"}, body.Input)
		assert.Equal(t, "test-model", body.Model)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"object":"list","data":[
			{"object":"embedding","index":1,"embedding":[0,1]},
			{"object":"embedding","index":0,"embedding":[1,0]}
		],"model":"test-model"}`))
	}))
	defer srv.Close()

	t.Setenv("RAGDB_TEST_OPENAI_KEY", "k")
	c, err := NewClient(Config{BaseURL: srv.URL, APIKeyEnv: "RAGDB_TEST_OPENAI_KEY", Model: "test-model"})
	require.NoError(t, err)
	assert.Equal(t, 0, c.Dimension())

	vecs, err := c.EmbedDocuments(t.Context(), []string{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{1, 0}, {0, 1}}, vecs)
	assert.Equal(t, 2, c.Dimension())
}

func TestEmbedQueryCountMismatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"object":"list","data":[],"model":"m"}`))
	}))
	defer srv.Close()

	t.Setenv("RAGDB_TEST_OPENAI_KEY", "k")
	c, err := NewClient(Config{BaseURL: srv.URL, APIKeyEnv: "RAGDB_TEST_OPENAI_KEY", Model: "text-embedding-3-small"})
	require.NoError(t, err)
	assert.Equal(t, 1536, c.Dimension())

	_, err = c.EmbedQuery(t.Context(), "q")
	assert.Error(t, err)
}
