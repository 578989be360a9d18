package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"

	"ragdb/internal/chunker"
	"ragdb/internal/config"
	"ragdb/internal/domain"
	"ragdb/internal/embedding"
	"ragdb/internal/embedding/cohere"
	"ragdb/internal/embedding/hashing"
	"ragdb/internal/embedding/openai"
	"ragdb/internal/llm"
	"ragdb/internal/loader"
	"ragdb/internal/memory"
	"ragdb/internal/metrics"
	"ragdb/internal/rerank"
	"ragdb/internal/service"
	"ragdb/internal/summarizer"
	"ragdb/internal/tokens"
	"ragdb/internal/translate"
	"ragdb/internal/vectorstore"
	vsmemory "ragdb/internal/vectorstore/memory"
	"ragdb/internal/vectorstore/postgres"
	"ragdb/internal/vectorstore/qdrant"
	"ragdb/internal/vectorstore/sqlite"
)

// App builds components from configuration on first use and owns their lifetime.
type App struct {
	Config  *config.AppConfig
	Log     *zap.Logger
	Metrics *metrics.Collector
	Counter tokens.Counter
	Usage   *service.TokenUsage

	embedder domain.Embedder
	store    domain.VectorStore
	llm      domain.ChatModel
	memory   domain.ChatMemory
	closers  []func() error

	metricsAddr string
}

// New validates cfg and prepares the shared pieces.
func New(cfg *config.AppConfig, log *zap.Logger) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = zap.NewNop()
	}
	counter, err := tokens.New(cfg.Ingest.Tokenizer)
	if err != nil {
		return nil, err
	}
	return &App{
		Config:  cfg,
		Log:     log,
		Metrics: metrics.New(),
		Counter: counter,
		Usage:   &service.TokenUsage{},
	}, nil
}

func secs(n int) time.Duration { return time.Duration(n) * time.Second }

// Embedder returns the configured embedder.
func (a *App) Embedder() (domain.Embedder, error) {
	if a.embedder != nil {
		return a.embedder, nil
	}
	c := a.Config.Embedder
	var (
		emb domain.Embedder
		err error
	)
	switch c.Type {
	case "openai":
		emb, err = openai.NewClient(openai.Config{
			BaseURL:    c.OpenAI.BaseURL,
			APIKeyEnv:  c.OpenAI.APIKeyEnv,
			Model:      c.OpenAI.Model,
			Dimensions: c.OpenAI.Dimensions,
			Timeout:    secs(c.OpenAI.TimeoutSecs),
		})
	case "cohere":
		emb, err = cohere.NewClient(cohere.Config{
			BaseURL:   c.Cohere.BaseURL,
			APIKeyEnv: c.Cohere.APIKeyEnv,
			Model:     c.Cohere.Model,
			Truncate:  c.Cohere.Truncate,
			Timeout:   secs(c.Cohere.TimeoutSecs),
		})
	case "hashing":
		emb = hashing.NewEmbedder(c.Hashing.Dimension)
	default:
		err = fmt.Errorf("unknown embedder: %s", c.Type)
	}
	if err != nil {
		return nil, fmt.Errorf("embedder init failed: %w", err)
	}
	a.embedder = emb
	return emb, nil
}

// Store opens the configured vector store and creates its schema.
func (a *App) Store(ctx context.Context) (domain.VectorStore, error) {
	if a.store != nil {
		return a.store, nil
	}
	c := a.Config.VectorStore
	metric, err := vectorstore.ParseMetric(c.Distance)
	if err != nil {
		return nil, err
	}
	var st domain.VectorStore
	switch c.Type {
	case "memory":
		st = vsmemory.NewStorage(metric)
	case "sqlite":
		st, err = sqlite.Open(c.SQLite.Path, metric, c.EmbeddingBits)
	case "postgres":
		dsn := c.Postgres.DSN
		if dsn == "" {
			dsn = config.Secret(c.Postgres.DSNEnv)
		}
		if dsn == "" {
			return nil, fmt.Errorf("postgres DSN missing: set vector_store.postgres.dsn or env %s", c.Postgres.DSNEnv)
		}
		st, err = postgres.New(ctx, postgres.Options{ConnString: dsn, Metric: metric, Dimension: c.Postgres.Dimension})
	case "qdrant":
		var emb domain.Embedder
		emb, err = a.Embedder()
		if err != nil {
			return nil, err
		}
		st = qdrant.NewStorage(qdrant.Config{
			URL:        c.Qdrant.URL,
			APIKey:     config.Secret(c.Qdrant.APIKeyEnv),
			Collection: c.Qdrant.Collection,
			Dimension:  emb.Dimension(),
			Metric:     metric,
			Timeout:    secs(c.Qdrant.TimeoutSecs),
		})
	default:
		err = fmt.Errorf("unknown vector store: %s", c.Type)
	}
	if err != nil {
		return nil, fmt.Errorf("vector store init failed: %w", err)
	}
	if err := st.Init(ctx); err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("vector store schema: %w", err)
	}
	a.store = st
	a.closers = append(a.closers, st.Close)
	return st, nil
}

// Reranker returns the configured reranker, nil when reranking is off.
func (a *App) Reranker() (domain.Reranker, error) {
	c := a.Config.Reranker
	switch c.Type {
	case "none":
		return nil, nil
	case "cohere":
		return rerank.NewCohere(c.BaseURL, c.APIKeyEnv, c.Model, secs(c.TimeoutSecs))
	case "tei":
		return rerank.NewTEI(c.BaseURL, config.Secret(c.APIKeyEnv), secs(c.TimeoutSecs)), nil
	default:
		return nil, fmt.Errorf("unknown reranker: %s", c.Type)
	}
}

// ChatModel returns the configured LLM.
func (a *App) ChatModel() (domain.ChatModel, error) {
	if a.llm != nil {
		return a.llm, nil
	}
	c := a.Config.LLM
	var (
		m   domain.ChatModel
		err error
	)
	switch c.Provider {
	case "openai":
		m, err = llm.NewOpenAI(llm.OpenAIConfig{
			BaseURL:     c.BaseURL,
			APIKeyEnv:   c.APIKeyEnv,
			Model:       c.Model,
			MaxTokens:   c.MaxTokens,
			Temperature: c.Temperature,
			Timeout:     secs(c.TimeoutSecs),
		})
	case "mistral":
		m, err = llm.NewMistral(c.APIKeyEnv, c.Model, c.Temperature, c.MaxTokens, a.Counter)
	case "ollama":
		m, err = llm.NewOllama(c.BaseURL, c.Model, c.Temperature, c.MaxTokens, a.Counter)
	default:
		err = fmt.Errorf("unknown llm provider: %s", c.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("llm init failed: %w", err)
	}
	a.llm = m
	return m, nil
}

// Memory returns the configured chat memory.
func (a *App) Memory(ctx context.Context) (domain.ChatMemory, error) {
	if a.memory != nil {
		return a.memory, nil
	}
	c := a.Config.Chat
	switch c.MemoryStore {
	case "memory":
		a.memory = memory.NewBuffer(c.MemoryTokenLimit, a.Counter)
	case "redis":
		r := memory.NewRedis(memory.RedisOptions{
			Addr:       c.Redis.Addr,
			Password:   config.Secret(c.Redis.PasswordEnv),
			DB:         c.Redis.DB,
			TTL:        time.Duration(c.Redis.TTLMinutes) * time.Minute,
			TokenLimit: c.MemoryTokenLimit,
		}, a.Counter)
		if err := r.Ping(ctx); err != nil {
			_ = r.Close()
			return nil, fmt.Errorf("redis memory: %w", err)
		}
		a.closers = append(a.closers, r.Close)
		a.memory = r
	default:
		return nil, fmt.Errorf("unknown memory store: %s", c.MemoryStore)
	}
	return a.memory, nil
}

// Ingestor wires loader, chunker, batcher and store.
func (a *App) Ingestor(ctx context.Context) (*service.Ingestor, error) {
	c := a.Config.Ingest
	ld, err := loader.NewDefault(a.Log, c.PDFReader, config.Secret(c.UnipdfKeyEnv))
	if err != nil {
		return nil, err
	}
	ids, err := chunker.NewIDGenerator(c.IDMethod)
	if err != nil {
		return nil, err
	}
	pc := chunker.NewPageChunker(chunker.Options{
		MinPageWords:   c.MinPageWords,
		RemoveStrings:  c.RemoveStrings,
		EnableChunking: c.EnableChunking,
		IDs:            ids,
		Sentences:      chunker.NewSentenceChunker(c.MaxChunkTokens, c.ChunkOverlap, a.Counter),
	})
	emb, err := a.Embedder()
	if err != nil {
		return nil, err
	}
	st, err := a.Store(ctx)
	if err != nil {
		return nil, err
	}
	batcher := embedding.Batcher{Embedder: emb, BatchSize: c.BatchSize, Log: a.Log, Metrics: a.Metrics}
	ing := service.NewIngestor(ld, pc, batcher, st, a.Log, a.Metrics)
	if c.SummarySentences > 0 {
		ing.WithSummary(summarizer.NewFrequency(), c.SummarySentences)
	}
	return ing, nil
}

// Retriever wires embedder, store and reranker.
func (a *App) Retriever(ctx context.Context) (*service.Retriever, error) {
	emb, err := a.Embedder()
	if err != nil {
		return nil, err
	}
	st, err := a.Store(ctx)
	if err != nil {
		return nil, err
	}
	rr, err := a.Reranker()
	if err != nil {
		return nil, err
	}
	r := a.Config.Retrieval
	return service.NewRetriever(emb, st, rr, r.TopK, r.TopN, a.Log, a.Metrics), nil
}

func (a *App) engineOptions(m domain.ChatModel) service.Options {
	opts := service.Options{Log: a.Log, Metrics: a.Metrics, Usage: a.Usage}
	if t := a.Config.Translator; t.Enabled {
		opts.Translator = translate.New(m, t.Source, t.Target)
		opts.TriggerWord = t.TriggerWord
	}
	return opts
}

// QueryEngine wires retrieval and the LLM for one-shot questions.
func (a *App) QueryEngine(ctx context.Context) (*service.QueryEngine, error) {
	r, err := a.Retriever(ctx)
	if err != nil {
		return nil, err
	}
	m, err := a.ChatModel()
	if err != nil {
		return nil, err
	}
	return service.NewQueryEngine(r, m, a.engineOptions(m)), nil
}

// ChatEngine wires retrieval, the LLM and chat memory.
func (a *App) ChatEngine(ctx context.Context) (*service.ChatEngine, error) {
	r, err := a.Retriever(ctx)
	if err != nil {
		return nil, err
	}
	m, err := a.ChatModel()
	if err != nil {
		return nil, err
	}
	mem, err := a.Memory(ctx)
	if err != nil {
		return nil, err
	}
	return service.NewChatEngine(r, m, mem, a.Config.Chat.Mode, a.engineOptions(m))
}

// ServeMetrics exposes the collector on metrics.addr until the returned func is
// called. It does nothing when no address is configured.
func (a *App) ServeMetrics() (func(), error) {
	addr := a.Config.Metrics.Addr
	if addr == "" {
		return func() {}, nil
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("metrics listen %s: %w", addr, err)
	}
	a.metricsAddr = ln.Addr().String()
	ms := &http.Server{Handler: a.Metrics.Handler(), ReadHeaderTimeout: 10 * time.Second}
	go func() {
		if err := ms.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.Log.Error("metrics server failed", zap.Error(err))
		}
	}()
	a.Log.Info("metrics listening", zap.String("addr", a.metricsAddr))
	return func() { _ = ms.Close() }, nil
}

// Close releases stores and connections in reverse order of creation.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
