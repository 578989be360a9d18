package embedding

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"ragdb/internal/config"
	"ragdb/internal/domain"
	"ragdb/internal/metrics"
)

// Batcher embeds document texts in fixed-size batches.
type Batcher struct {
	Embedder  domain.Embedder
	BatchSize int
	Log       *zap.Logger
	Metrics   *metrics.Collector
}

// EmbedInBatches returns one vector per text, in order. The batch size is clamped to 1..96.
func (b Batcher) EmbedInBatches(ctx context.Context, texts []string) ([][]float32, error) {
	size := b.BatchSize
	if size <= 0 {
		size = 20
	}
	if size > config.MaxEmbedBatch {
		size = config.MaxEmbedBatch
	}
	log := b.Log
	if log == nil {
		log = zap.NewNop()
	}

	out := make([][]float32, 0, len(texts))
	total := (len(texts) + size - 1) / size
	for i := 0; i < len(texts); i += size {
		end := i + size
		if end > len(texts) {
			end = len(texts)
		}
		start := time.Now()
		vecs, err := b.Embedder.EmbedDocuments(ctx, texts[i:end])
		b.Metrics.ObserveStage(metrics.StageEmbed, start)
		if err != nil {
			return nil, fmt.Errorf("embed batch %d/%d: %w", i/size+1, total, err)
		}
		if len(vecs) != end-i {
			return nil, fmt.Errorf("embed batch %d/%d: got %d vectors for %d texts", i/size+1, total, len(vecs), end-i)
		}
		b.Metrics.IncEmbedBatch()
		out = append(out, vecs...)
		log.Debug("embedded batch",
			zap.Int("batch", i/size+1),
			zap.Int("batches", total),
			zap.Int("size", end-i))
	}
	return out, nil
}
