package service

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"ragdb/internal/domain"
	"ragdb/internal/metrics"
	"ragdb/internal/rerank"
)

// Retriever embeds a question, runs the similarity search and optionally reranks.
type Retriever struct {
	embedder domain.Embedder
	store    domain.VectorStore
	reranker domain.Reranker
	topK     int
	topN     int
	log      *zap.Logger
	metrics  *metrics.Collector
}

// NewRetriever builds a retriever. A nil reranker keeps the topK vector results.
func NewRetriever(embedder domain.Embedder, store domain.VectorStore, reranker domain.Reranker, topK, topN int, log *zap.Logger, m *metrics.Collector) *Retriever {
	if log == nil {
		log = zap.NewNop()
	}
	return &Retriever{embedder: embedder, store: store, reranker: reranker, topK: topK, topN: topN, log: log, metrics: m}
}

func (r *Retriever) Retrieve(ctx context.Context, question string) ([]domain.SearchResult, error) {
	if strings.TrimSpace(question) == "" {
		return nil, domain.ErrEmptyQuery
	}
	start := time.Now()
	vec, err := r.embedder.EmbedQuery(ctx, question)
	r.metrics.ObserveStage(metrics.StageEmbed, start)
	if err != nil {
		return nil, err
	}

	start = time.Now()
	results, err := r.store.Search(ctx, vec, r.topK)
	r.metrics.ObserveStage(metrics.StageSearch, start)
	if err != nil {
		return nil, err
	}
	if r.reranker == nil || len(results) == 0 {
		return results, nil
	}

	start = time.Now()
	reranked, err := r.reranker.Rerank(ctx, question, results, r.topN)
	r.metrics.ObserveStage(metrics.StageRerank, start)
	if err != nil {
		r.log.Warn("rerank failed, keeping vector order",
			zap.String("reranker", r.reranker.Name()),
			zap.Error(err))
		r.metrics.IncRerankFallback()
		return rerank.Truncate(results, r.topN), nil
	}
	return reranked, nil
}
