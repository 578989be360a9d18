package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"ragdb/internal/domain"
	"ragdb/internal/vectorstore"
)

type row struct {
	chunk  domain.Chunk
	bookID int64
	vector []float64
}

// Storage is an in-process vector store using brute-force search.
// It mirrors the relational backends: books own chunks, chunk IDs are global.
type Storage struct {
	mu     sync.RWMutex
	metric vectorstore.Metric
	nextID int64
	books  map[string]int64
	rows   map[string]*row
	order  []string
}

func NewStorage(metric vectorstore.Metric) *Storage {
	if metric == "" {
		metric = vectorstore.Dot
	}
	return &Storage{metric: metric, books: map[string]int64{}, rows: map[string]*row{}}
}

func (s *Storage) Init(context.Context) error { return nil }

func (s *Storage) SaveBook(_ context.Context, name string, chunks []domain.Chunk, vectors [][]float32) (domain.SaveStats, error) {
	if err := vectorstore.CheckBatch(chunks, vectors); err != nil {
		return domain.SaveStats{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.books[name]; ok {
		return domain.SaveStats{}, fmt.Errorf("%w: %s", domain.ErrBookExists, name)
	}
	s.nextID++
	stats := domain.SaveStats{BookID: s.nextID}
	for i, ch := range chunks {
		if _, ok := s.rows[ch.ID]; ok {
			stats.Skipped++
			continue
		}
		ch.BookName = name
		s.rows[ch.ID] = &row{chunk: ch, bookID: stats.BookID, vector: vectorstore.ToFloat64(vectors[i])}
		s.order = append(s.order, ch.ID)
		stats.Inserted++
	}
	s.books[name] = stats.BookID
	return stats, nil
}

func (s *Storage) Search(_ context.Context, vector []float32, topK int) ([]domain.SearchResult, error) {
	if topK <= 0 {
		topK = vectorstore.DefaultTopK
	}
	q := vectorstore.ToFloat64(vector)
	s.mu.RLock()
	defer s.mu.RUnlock()

	type scored struct {
		r    *row
		dist float64
	}
	all := make([]scored, 0, len(s.order))
	for _, id := range s.order {
		r := s.rows[id]
		d, err := s.metric.Distance(r.vector, q)
		if err != nil {
			return nil, err
		}
		all = append(all, scored{r: r, dist: d})
	}
	sort.SliceStable(all, func(i, j int) bool { return all[i].dist < all[j].dist })
	if topK > len(all) {
		topK = len(all)
	}
	results := make([]domain.SearchResult, 0, topK)
	for _, sc := range all[:topK] {
		c := sc.r.chunk
		results = append(results, vectorstore.Result(s.metric, c.ID, c.Text, c.PageNum, c.BookName, vectorstore.Round3(sc.dist)))
	}
	return results, nil
}

func (s *Storage) BookExists(_ context.Context, name string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.books[name]
	return ok, nil
}

func (s *Storage) ListBooks(context.Context) ([]domain.Book, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	counts := map[int64]int{}
	for _, r := range s.rows {
		counts[r.bookID]++
	}
	out := make([]domain.Book, 0, len(s.books))
	for name, id := range s.books {
		out = append(out, domain.Book{ID: id, Name: name, Chunks: counts[id]})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *Storage) DeleteBook(_ context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.books[name]
	if !ok {
		return fmt.Errorf("%w: book %s", domain.ErrNotFound, name)
	}
	delete(s.books, name)
	kept := s.order[:0]
	for _, cid := range s.order {
		if s.rows[cid].bookID == id {
			delete(s.rows, cid)
			continue
		}
		kept = append(kept, cid)
	}
	s.order = kept
	return nil
}

func (s *Storage) Close() error { return nil }
