package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)

	assert.Equal(t, 20, cfg.Ingest.BatchSize)
	assert.Equal(t, 10, cfg.Ingest.MinPageWords)
	assert.Equal(t, "hash", cfg.Ingest.IDMethod)
	assert.Equal(t, "sqlite", cfg.VectorStore.Type)
	assert.Equal(t, "dot", cfg.VectorStore.Distance)
	assert.Equal(t, 64, cfg.VectorStore.EmbeddingBits)
	assert.Equal(t, 8, cfg.Retrieval.TopK)
	assert.Equal(t, 3, cfg.Retrieval.TopN)
	assert.Equal(t, "condense_plus_context", cfg.Chat.Mode)
	assert.Equal(t, 2800, cfg.Chat.MemoryTokenLimit)
	assert.True(t, cfg.Chat.AddReferences)
	assert.Equal(t, "italian", cfg.Translator.TriggerWord)
	require.NotNil(t, cfg.Embedder.OpenAI)
	assert.Equal(t, "OPENAI_API_KEY", cfg.Embedder.OpenAI.APIKeyEnv)
	require.NotNil(t, cfg.VectorStore.SQLite)
	assert.Equal(t, "ragdb.sqlite", cfg.VectorStore.SQLite.Path)
}

func TestParseOverridesAndFillsSections(t *testing.T) {
	cfg, err := Parse([]byte(`
ingest:
  batch_size: 500
  remove_strings: ["Confidential"]
embedder:
  type: cohere
vector_store:
  type: postgres
  distance: cosine
retrieval:
  top_k: 10
  top_n: 4
reranker:
  type: tei
llm:
  provider: ollama
chat:
  memory_store: redis
`))
	require.NoError(t, err)

	assert.Equal(t, MaxEmbedBatch, cfg.Ingest.BatchSize)
	assert.Equal(t, []string{"Confidential"}, cfg.Ingest.RemoveStrings)
	require.NotNil(t, cfg.Embedder.Cohere)
	assert.Equal(t, "embed-multilingual-v3.0", cfg.Embedder.Cohere.Model)
	require.NotNil(t, cfg.VectorStore.Postgres)
	assert.Equal(t, "RAGDB_PG_DSN", cfg.VectorStore.Postgres.DSNEnv)
	assert.Equal(t, "http://localhost:8080", cfg.Reranker.BaseURL)
	assert.Equal(t, "http://localhost:11434", cfg.LLM.BaseURL)
	require.NotNil(t, cfg.Chat.Redis)
	assert.Equal(t, "localhost:6379", cfg.Chat.Redis.Addr)
	assert.Equal(t, 60, cfg.Chat.Redis.TTLMinutes)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"unknown store", "vector_store:\n  type: oracle\n"},
		{"unknown distance", "vector_store:\n  distance: manhattan\n"},
		{"bad bits", "vector_store:\n  embedding_bits: 16\n"},
		{"top_k zero", "retrieval:\n  top_k: 0\n  top_n: 0\n"},
		{"top_n above top_k", "retrieval:\n  top_k: 3\n  top_n: 5\n"},
		{"unknown id method", "ingest:\n  id_method: serial\n"},
		{"unknown chat mode", "chat:\n  mode: simple\n"},
		{"overlap too large", "ingest:\n  enable_chunking: true\n  max_chunk_tokens: 50\n  chunk_overlap: 50\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			assert.Error(t, err)
		})
	}
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := defaultConfig()
	cfg.Retrieval.TopK = 12
	cfg.Translator.Enabled = true

	require.NoError(t, Save(path, cfg))
	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 12, loaded.Retrieval.TopK)
	assert.True(t, loaded.Translator.Enabled)
}

func TestSecret(t *testing.T) {
	t.Setenv("RAGDB_TEST_SECRET", "s3cr3t")
	assert.Equal(t, "s3cr3t", Secret("RAGDB_TEST_SECRET"))
	assert.Equal(t, "", Secret(""))
}

func TestLoadDefaultPrefersWorkingDirectory(t *testing.T) {
	dir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })

	require.NoError(t, os.WriteFile("config.yaml", []byte("retrieval:\n  top_k: 9\n"), 0o644))
	cfg, path, err := LoadDefault()
	require.NoError(t, err)
	assert.Equal(t, "config.yaml", path)
	assert.Equal(t, 9, cfg.Retrieval.TopK)
}
