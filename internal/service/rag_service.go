package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"ragdb/internal/chunker"
	"ragdb/internal/domain"
	"ragdb/internal/embedding"
	"ragdb/internal/metrics"
)

// DocumentLoader turns path patterns into page-split documents.
type DocumentLoader interface {
	Load(patterns []string) ([]domain.Document, error)
}

// Summarizer condenses the pages of a book into a few sentences.
type Summarizer interface {
	Summarize(pages []string, maxSentences int) string
}

// BookReport describes the outcome of ingesting one file.
type BookReport struct {
	Name          string
	Pages         int
	ShortPages    int
	Duplicates    int
	Chunks        int
	AlreadyStored bool
	Replaced      bool
	Saved         domain.SaveStats
	Summary       string
}

// Ingestor loads files, chunks and embeds their pages and saves each file as a book.
type Ingestor struct {
	loader  DocumentLoader
	chunker *chunker.PageChunker
	batcher embedding.Batcher
	store   domain.VectorStore
	log     *zap.Logger
	metrics *metrics.Collector

	summarizer       Summarizer
	summarySentences int
}

func NewIngestor(loader DocumentLoader, pc *chunker.PageChunker, batcher embedding.Batcher, store domain.VectorStore, log *zap.Logger, m *metrics.Collector) *Ingestor {
	if log == nil {
		log = zap.NewNop()
	}
	if batcher.Log == nil {
		batcher.Log = log
	}
	if batcher.Metrics == nil {
		batcher.Metrics = m
	}
	return &Ingestor{loader: loader, chunker: pc, batcher: batcher, store: store, log: log, metrics: m}
}

// WithSummary makes each report carry an extractive summary of the saved pages.
func (s *Ingestor) WithSummary(sum Summarizer, sentences int) *Ingestor {
	s.summarizer = sum
	s.summarySentences = sentences
	return s
}

// IngestFiles ingests every file matched by patterns. Books already stored are
// skipped unless force is set, in which case they are deleted and re-ingested.
func (s *Ingestor) IngestFiles(ctx context.Context, patterns []string, force bool) ([]BookReport, error) {
	docs, err := s.loader.Load(patterns)
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, fmt.Errorf("no supported documents found")
	}
	reports := make([]BookReport, 0, len(docs))
	for _, doc := range docs {
		rep, err := s.ingest(ctx, doc, force)
		if err != nil {
			return reports, fmt.Errorf("ingest %s: %w", doc.Name, err)
		}
		reports = append(reports, rep)
	}
	return reports, nil
}

func (s *Ingestor) ingest(ctx context.Context, doc domain.Document, force bool) (BookReport, error) {
	rep := BookReport{Name: doc.Name, Pages: len(doc.Pages)}
	exists, err := s.store.BookExists(ctx, doc.Name)
	if err != nil {
		return rep, err
	}
	if exists && !force {
		s.log.Info("book already stored, skipping", zap.String("book", doc.Name))
		rep.AlreadyStored = true
		return rep, nil
	}

	chunks, stats := s.chunker.Chunk(doc)
	rep.ShortPages = stats.ShortPages
	rep.Duplicates = stats.Duplicates
	rep.Chunks = len(chunks)
	if len(chunks) == 0 {
		s.log.Warn("no usable pages", zap.String("book", doc.Name), zap.Int("pages", stats.Pages))
		return rep, nil
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	vectors, err := s.batcher.EmbedInBatches(ctx, texts)
	if err != nil {
		return rep, err
	}

	start := time.Now()
	saved, err := s.save(ctx, doc.Name, chunks, vectors, exists)
	s.metrics.ObserveStage(metrics.StageSave, start)
	if err != nil {
		return rep, err
	}
	rep.Replaced = exists
	rep.Saved = saved
	if s.summarizer != nil {
		rep.Summary = s.summarizer.Summarize(texts, s.summarySentences)
	}
	s.metrics.AddIngested(saved.Inserted)
	s.metrics.AddSkipped(saved.Skipped)
	s.log.Info("book saved",
		zap.String("book", doc.Name),
		zap.Int("pages", stats.Pages),
		zap.Int("short_pages", stats.ShortPages),
		zap.Int("chunks", len(chunks)),
		zap.Int("inserted", saved.Inserted),
		zap.Int("skipped", saved.Skipped))
	return rep, nil
}

// save stores the book, replacing a stored copy when replace is set. The old
// copy is only dropped once the new chunks are embedded.
func (s *Ingestor) save(ctx context.Context, name string, chunks []domain.Chunk, vectors [][]float32, replace bool) (domain.SaveStats, error) {
	if !replace {
		return s.store.SaveBook(ctx, name, chunks, vectors)
	}
	if r, ok := s.store.(domain.BookReplacer); ok {
		return r.ReplaceBook(ctx, name, chunks, vectors)
	}
	if err := s.store.DeleteBook(ctx, name); err != nil && !errors.Is(err, domain.ErrNotFound) {
		return domain.SaveStats{}, err
	}
	return s.store.SaveBook(ctx, name, chunks, vectors)
}
