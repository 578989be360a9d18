package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// MaxEmbedBatch is the largest batch accepted by the hosted embedding endpoints.
const MaxEmbedBatch = 96

// IngestConfig controls how source files become chunks.
type IngestConfig struct {
	BatchSize      int      `yaml:"batch_size"`
	MinPageWords   int      `yaml:"min_page_words"`
	IDMethod       string   `yaml:"id_method"`
	EnableChunking bool     `yaml:"enable_chunking"`
	MaxChunkTokens int      `yaml:"max_chunk_tokens"`
	ChunkOverlap   int      `yaml:"chunk_overlap"`
	RemoveStrings  []string `yaml:"remove_strings,omitempty"`
	PDFReader      string   `yaml:"pdf_reader"`
	UnipdfKeyEnv   string   `yaml:"unipdf_key_env,omitempty"`
	Tokenizer      string   `yaml:"tokenizer"`

	// SummarySentences is the length of the extractive preview printed per book; 0 disables it.
	SummarySentences int `yaml:"summary_sentences"`
}

// OpenAIEmbedderConfig holds configuration for the OpenAI-compatible embedder.
type OpenAIEmbedderConfig struct {
	BaseURL     string `yaml:"base_url"`
	APIKeyEnv   string `yaml:"api_key_env"`
	Model       string `yaml:"model"`
	Dimensions  int    `yaml:"dimensions,omitempty"`
	TimeoutSecs int    `yaml:"timeout_secs"`
}

// CohereEmbedderConfig holds configuration for the Cohere embed endpoint.
type CohereEmbedderConfig struct {
	BaseURL     string `yaml:"base_url"`
	APIKeyEnv   string `yaml:"api_key_env"`
	Model       string `yaml:"model"`
	Truncate    string `yaml:"truncate"`
	TimeoutSecs int    `yaml:"timeout_secs"`
}

// HashingEmbedderConfig configures the offline feature-hashing embedder.
type HashingEmbedderConfig struct {
	Dimension int `yaml:"dimension"`
}

// EmbedderConfig selects and configures the text embedder implementation.
type EmbedderConfig struct {
	Type    string                 `yaml:"type"`
	OpenAI  *OpenAIEmbedderConfig  `yaml:"openai,omitempty"`
	Cohere  *CohereEmbedderConfig  `yaml:"cohere,omitempty"`
	Hashing *HashingEmbedderConfig `yaml:"hashing,omitempty"`
}

// VectorStoreConfig selects and configures the vector store implementation.
type VectorStoreConfig struct {
	Type          string          `yaml:"type"`
	Distance      string          `yaml:"distance"`
	EmbeddingBits int             `yaml:"embedding_bits"`
	Postgres      *PostgresConfig `yaml:"postgres,omitempty"`
	SQLite        *SQLiteConfig   `yaml:"sqlite,omitempty"`
	Qdrant        *QdrantConfig   `yaml:"qdrant,omitempty"`
}

// PostgresConfig contains connection details for a pgvector-enabled Postgres.
type PostgresConfig struct {
	DSNEnv    string `yaml:"dsn_env"`
	DSN       string `yaml:"dsn,omitempty"`
	Dimension int    `yaml:"dimension"`
}

// SQLiteConfig points at the SQLite database file.
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// QdrantConfig contains connection details for a Qdrant vector store.
type QdrantConfig struct {
	URL         string `yaml:"url"`
	APIKeyEnv   string `yaml:"api_key_env,omitempty"`
	Collection  string `yaml:"collection"`
	TimeoutSecs int    `yaml:"timeout_secs"`
}

// RetrievalConfig sets how many results are fetched and kept after reranking.
type RetrievalConfig struct {
	TopK int `yaml:"top_k"`
	TopN int `yaml:"top_n"`
}

// RerankerConfig selects the reranker.
type RerankerConfig struct {
	Type        string `yaml:"type"`
	BaseURL     string `yaml:"base_url,omitempty"`
	APIKeyEnv   string `yaml:"api_key_env,omitempty"`
	Model       string `yaml:"model,omitempty"`
	TimeoutSecs int    `yaml:"timeout_secs"`
}

// LLMConfig selects the generation model.
type LLMConfig struct {
	Provider    string  `yaml:"provider"`
	BaseURL     string  `yaml:"base_url,omitempty"`
	APIKeyEnv   string  `yaml:"api_key_env,omitempty"`
	Model       string  `yaml:"model"`
	MaxTokens   int     `yaml:"max_tokens"`
	Temperature float64 `yaml:"temperature"`
	TimeoutSecs int     `yaml:"timeout_secs"`
}

// ChatConfig configures the chat engine and its memory.
type ChatConfig struct {
	Mode             string       `yaml:"mode"`
	MemoryTokenLimit int          `yaml:"memory_token_limit"`
	MemoryStore      string       `yaml:"memory_store"`
	AddReferences    bool         `yaml:"add_references"`
	Redis            *RedisConfig `yaml:"redis,omitempty"`
}

// RedisConfig points the chat memory at a Redis server.
type RedisConfig struct {
	Addr        string `yaml:"addr"`
	PasswordEnv string `yaml:"password_env,omitempty"`
	DB          int    `yaml:"db"`
	TTLMinutes  int    `yaml:"ttl_minutes"`
}

// TranslatorConfig enables translation of answers when the question asks for it.
type TranslatorConfig struct {
	Enabled     bool   `yaml:"enabled"`
	TriggerWord string `yaml:"trigger_word"`
	Source      string `yaml:"source"`
	Target      string `yaml:"target"`
}

// LogConfig configures zap.
type LogConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

// MetricsConfig exposes Prometheus metrics when Addr is set.
type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

// AppConfig is the root application configuration structure.
type AppConfig struct {
	Ingest      IngestConfig      `yaml:"ingest"`
	Embedder    EmbedderConfig    `yaml:"embedder"`
	VectorStore VectorStoreConfig `yaml:"vector_store"`
	Retrieval   RetrievalConfig   `yaml:"retrieval"`
	Reranker    RerankerConfig    `yaml:"reranker"`
	LLM         LLMConfig         `yaml:"llm"`
	Chat        ChatConfig        `yaml:"chat"`
	Translator  TranslatorConfig  `yaml:"translator"`
	Log         LogConfig         `yaml:"log"`
	Metrics     MetricsConfig     `yaml:"metrics"`
}

// Load reads a config from a specified path. If the file does not exist, returns defaults.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return defaultConfig(), nil
		}
		return nil, err
	}
	return Parse(data)
}

// Parse decodes YAML on top of the defaults and validates the result.
func Parse(data []byte) (*AppConfig, error) {
	cfg := defaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	applyConfigDefaults(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadDefault tries ./config.yaml first, then ~/.config/ragdb/config.yaml.
// If neither exists, it writes defaults to ~/.config/ragdb/config.yaml and returns them.
func LoadDefault() (*AppConfig, string, error) {
	cwdPath := "config.yaml"
	if _, err := os.Stat(cwdPath); err == nil {
		cfg, err := Load(cwdPath)
		return cfg, cwdPath, err
	}
	userPath, err := defaultUserConfigPath()
	if err != nil {
		return nil, "", err
	}
	if _, err := os.Stat(userPath); err == nil {
		cfg, err := Load(userPath)
		return cfg, userPath, err
	}
	cfg := defaultConfig()
	if err := Save(userPath, cfg); err != nil {
		return nil, "", err
	}
	return cfg, userPath, nil
}

// Save writes the config to the given path, creating directories as needed.
func Save(path string, cfg *AppConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Validate rejects configurations the components cannot be built from.
func (c *AppConfig) Validate() error {
	checks := []struct {
		field string
		value string
		allow []string
	}{
		{"ingest.id_method", c.Ingest.IDMethod, []string{"hash", "book_page", "uuid"}},
		{"ingest.pdf_reader", c.Ingest.PDFReader, []string{"ledongthuc", "unipdf"}},
		{"ingest.tokenizer", c.Ingest.Tokenizer, []string{"words", "tiktoken"}},
		{"embedder.type", c.Embedder.Type, []string{"openai", "cohere", "hashing"}},
		{"vector_store.type", c.VectorStore.Type, []string{"sqlite", "postgres", "memory", "qdrant"}},
		{"vector_store.distance", c.VectorStore.Distance, []string{"dot", "cosine", "euclidean"}},
		{"reranker.type", c.Reranker.Type, []string{"none", "cohere", "tei"}},
		{"llm.provider", c.LLM.Provider, []string{"openai", "mistral", "ollama"}},
		{"chat.mode", c.Chat.Mode, []string{"condense_plus_context", "context"}},
		{"chat.memory_store", c.Chat.MemoryStore, []string{"memory", "redis"}},
	}
	for _, ch := range checks {
		if !contains(ch.allow, ch.value) {
			return fmt.Errorf("invalid %s %q (allowed: %v)", ch.field, ch.value, ch.allow)
		}
	}
	if c.VectorStore.EmbeddingBits != 32 && c.VectorStore.EmbeddingBits != 64 {
		return fmt.Errorf("invalid vector_store.embedding_bits %d (allowed: 32, 64)", c.VectorStore.EmbeddingBits)
	}
	if c.Retrieval.TopK <= 0 {
		return fmt.Errorf("retrieval.top_k must be positive, got %d", c.Retrieval.TopK)
	}
	if c.Retrieval.TopN <= 0 || c.Retrieval.TopN > c.Retrieval.TopK {
		return fmt.Errorf("retrieval.top_n must be in 1..top_k, got %d", c.Retrieval.TopN)
	}
	if c.Ingest.EnableChunking && c.Ingest.ChunkOverlap >= c.Ingest.MaxChunkTokens {
		return fmt.Errorf("ingest.chunk_overlap (%d) must be smaller than max_chunk_tokens (%d)", c.Ingest.ChunkOverlap, c.Ingest.MaxChunkTokens)
	}
	return nil
}

// Secret returns the value of the named environment variable, or "" when name is empty.
func Secret(name string) string {
	if name == "" {
		return ""
	}
	return os.Getenv(name)
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

func defaultUserConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "ragdb", "config.yaml"), nil
}

func defaultConfig() *AppConfig {
	cfg := &AppConfig{
		Ingest: IngestConfig{
			BatchSize:      20,
			MinPageWords:   10,
			IDMethod:       "hash",
			MaxChunkTokens: 600,
			ChunkOverlap:   100,
			PDFReader:      "ledongthuc",
			Tokenizer:      "words",

			SummarySentences: 2,
		},
		Embedder:    EmbedderConfig{Type: "openai"},
		VectorStore: VectorStoreConfig{Type: "sqlite", Distance: "dot", EmbeddingBits: 64},
		Retrieval:   RetrievalConfig{TopK: 8, TopN: 3},
		Reranker:    RerankerConfig{Type: "none"},
		LLM:         LLMConfig{Provider: "openai", MaxTokens: 1024, Temperature: 0.1},
		Chat: ChatConfig{
			Mode:             "condense_plus_context",
			MemoryTokenLimit: 2800,
			MemoryStore:      "memory",
			AddReferences:    true,
		},
		Translator: TranslatorConfig{TriggerWord: "italian", Source: "en", Target: "it"},
		Log:        LogConfig{Level: "info"},
	}
	applyConfigDefaults(cfg)
	return cfg
}

func applyConfigDefaults(cfg *AppConfig) {
	if cfg.Ingest.BatchSize <= 0 {
		cfg.Ingest.BatchSize = 20
	}
	if cfg.Ingest.BatchSize > MaxEmbedBatch {
		cfg.Ingest.BatchSize = MaxEmbedBatch
	}
	if cfg.Ingest.UnipdfKeyEnv == "" {
		cfg.Ingest.UnipdfKeyEnv = "UNIDOC_LICENSE_API_KEY"
	}
	switch cfg.Embedder.Type {
	case "openai":
		if cfg.Embedder.OpenAI == nil {
			cfg.Embedder.OpenAI = &OpenAIEmbedderConfig{}
		}
		o := cfg.Embedder.OpenAI
		if o.BaseURL == "" {
			o.BaseURL = "https://api.openai.com/v1"
		}
		if o.APIKeyEnv == "" {
			o.APIKeyEnv = "OPENAI_API_KEY"
		}
		if o.Model == "" {
			o.Model = "text-embedding-3-small"
		}
		if o.TimeoutSecs == 0 {
			o.TimeoutSecs = 30
		}
	case "cohere":
		if cfg.Embedder.Cohere == nil {
			cfg.Embedder.Cohere = &CohereEmbedderConfig{}
		}
		c := cfg.Embedder.Cohere
		if c.BaseURL == "" {
			c.BaseURL = "https://api.cohere.com"
		}
		if c.APIKeyEnv == "" {
			c.APIKeyEnv = "COHERE_API_KEY"
		}
		if c.Model == "" {
			c.Model = "embed-multilingual-v3.0"
		}
		if c.Truncate == "" {
			c.Truncate = "END"
		}
		if c.TimeoutSecs == 0 {
			c.TimeoutSecs = 30
		}
	case "hashing":
		if cfg.Embedder.Hashing == nil {
			cfg.Embedder.Hashing = &HashingEmbedderConfig{}
		}
		if cfg.Embedder.Hashing.Dimension <= 0 {
			cfg.Embedder.Hashing.Dimension = 384
		}
	}
	switch cfg.VectorStore.Type {
	case "sqlite":
		if cfg.VectorStore.SQLite == nil {
			cfg.VectorStore.SQLite = &SQLiteConfig{}
		}
		if cfg.VectorStore.SQLite.Path == "" {
			cfg.VectorStore.SQLite.Path = "ragdb.sqlite"
		}
	case "postgres":
		if cfg.VectorStore.Postgres == nil {
			cfg.VectorStore.Postgres = &PostgresConfig{}
		}
		if cfg.VectorStore.Postgres.DSNEnv == "" {
			cfg.VectorStore.Postgres.DSNEnv = "RAGDB_PG_DSN"
		}
	case "qdrant":
		if cfg.VectorStore.Qdrant == nil {
			cfg.VectorStore.Qdrant = &QdrantConfig{}
		}
		q := cfg.VectorStore.Qdrant
		if q.URL == "" {
			q.URL = "http://localhost:6333"
		}
		if q.Collection == "" {
			q.Collection = "ragdb"
		}
		if q.TimeoutSecs == 0 {
			q.TimeoutSecs = 15
		}
	}
	r := &cfg.Reranker
	switch r.Type {
	case "cohere":
		if r.BaseURL == "" {
			r.BaseURL = "https://api.cohere.com"
		}
		if r.APIKeyEnv == "" {
			r.APIKeyEnv = "COHERE_API_KEY"
		}
		if r.Model == "" {
			r.Model = "rerank-multilingual-v3.0"
		}
	case "tei":
		if r.BaseURL == "" {
			r.BaseURL = "http://localhost:8080"
		}
	}
	if r.TimeoutSecs == 0 {
		r.TimeoutSecs = 30
	}
	l := &cfg.LLM
	switch l.Provider {
	case "openai":
		if l.BaseURL == "" {
			l.BaseURL = "https://api.openai.com/v1"
		}
		if l.APIKeyEnv == "" {
			l.APIKeyEnv = "OPENAI_API_KEY"
		}
		if l.Model == "" {
			l.Model = "gpt-4o-mini"
		}
	case "mistral":
		if l.APIKeyEnv == "" {
			l.APIKeyEnv = "MISTRAL_API_KEY"
		}
		if l.Model == "" {
			l.Model = "mistral-small"
		}
	case "ollama":
		if l.BaseURL == "" {
			l.BaseURL = "http://localhost:11434"
		}
		if l.Model == "" {
			l.Model = "llama3"
		}
	}
	if l.MaxTokens <= 0 {
		l.MaxTokens = 1024
	}
	if l.TimeoutSecs == 0 {
		l.TimeoutSecs = 60
	}
	if cfg.Chat.MemoryTokenLimit <= 0 {
		cfg.Chat.MemoryTokenLimit = 2800
	}
	if cfg.Chat.MemoryStore == "redis" {
		if cfg.Chat.Redis == nil {
			cfg.Chat.Redis = &RedisConfig{}
		}
		if cfg.Chat.Redis.Addr == "" {
			cfg.Chat.Redis.Addr = "localhost:6379"
		}
		if cfg.Chat.Redis.TTLMinutes == 0 {
			cfg.Chat.Redis.TTLMinutes = 60
		}
	}
	if cfg.Translator.TriggerWord == "" {
		cfg.Translator.TriggerWord = "italian"
	}
}
