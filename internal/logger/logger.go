package logger

import (
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"ragdb/internal/config"
)

var log *zap.Logger

// Init builds the process logger and replaces zap's globals.
func Init(level string, development bool) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	if development {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	lvl := zapcore.InfoLevel
	if level != "" {
		if err := lvl.UnmarshalText([]byte(strings.ToLower(level))); err != nil {
			return nil, err
		}
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)

	l, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	log = l
	zap.ReplaceGlobals(l)
	return l, nil
}

// L returns the process logger, falling back to a production logger.
func L() *zap.Logger {
	if log == nil {
		log, _ = zap.NewProduction()
	}
	return log
}

// Sync flushes buffered log entries.
func Sync() {
	if log != nil {
		_ = log.Sync()
	}
}

// PrintConfiguration logs the effective pipeline configuration.
func PrintConfiguration(l *zap.Logger, cfg *config.AppConfig) {
	fields := []zap.Field{
		zap.String("embedder", cfg.Embedder.Type),
		zap.String("embed_model", embedModel(cfg)),
		zap.String("vector_store", cfg.VectorStore.Type),
		zap.String("distance", cfg.VectorStore.Distance),
		zap.String("llm_provider", cfg.LLM.Provider),
		zap.String("llm_model", cfg.LLM.Model),
		zap.Int("top_k", cfg.Retrieval.TopK),
		zap.String("reranker", cfg.Reranker.Type),
		zap.String("chat_mode", cfg.Chat.Mode),
	}
	if cfg.Reranker.Type != "none" {
		fields = append(fields, zap.Int("top_n", cfg.Retrieval.TopN))
	}
	l.Info("configuration", fields...)
}

func embedModel(cfg *config.AppConfig) string {
	switch {
	case cfg.Embedder.OpenAI != nil && cfg.Embedder.Type == "openai":
		return cfg.Embedder.OpenAI.Model
	case cfg.Embedder.Cohere != nil && cfg.Embedder.Type == "cohere":
		return cfg.Embedder.Cohere.Model
	default:
		return cfg.Embedder.Type
	}
}
