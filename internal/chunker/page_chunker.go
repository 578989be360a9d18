package chunker

import (
	"ragdb/internal/domain"
)

// Options control page chunking.
type Options struct {
	MinPageWords   int
	RemoveStrings  []string
	EnableChunking bool
	IDs            IDGenerator
	Sentences      *SentenceChunker
}

// Stats reports what was discarded while chunking a document.
type Stats struct {
	Pages      int
	ShortPages int
	Duplicates int
}

// PageChunker turns each usable page of a document into one chunk, or several
// when sentence packing is enabled.
type PageChunker struct {
	opts Options
}

func NewPageChunker(opts Options) *PageChunker {
	if opts.MinPageWords <= 0 {
		opts.MinPageWords = 10
	}
	if opts.IDs == nil {
		opts.IDs = HashID
	}
	if opts.EnableChunking && opts.Sentences == nil {
		opts.Sentences = NewSentenceChunker(0, 0, nil)
	}
	return &PageChunker{opts: opts}
}

// Chunk cleans, filters and identifies the pages of doc. Chunks whose ID was
// already produced for this document are dropped, keeping the first.
func (c *PageChunker) Chunk(doc domain.Document) ([]domain.Chunk, Stats) {
	stats := Stats{Pages: len(doc.Pages)}
	seen := make(map[string]struct{})
	var out []domain.Chunk
	for _, page := range doc.Pages {
		text := Clean(page.Text, c.opts.RemoveStrings)
		if WordCount(text) < c.opts.MinPageWords {
			stats.ShortPages++
			continue
		}
		parts := []string{text}
		if c.opts.EnableChunking {
			parts = c.opts.Sentences.Split(text)
		}
		for i, part := range parts {
			n := 0
			if len(parts) > 1 {
				n = i + 1
			}
			id := c.opts.IDs(doc.Name, page.Number, n, part)
			if _, dup := seen[id]; dup {
				stats.Duplicates++
				continue
			}
			seen[id] = struct{}{}
			out = append(out, domain.Chunk{ID: id, BookName: doc.Name, PageNum: page.Number, Text: part})
		}
	}
	return out, stats
}
