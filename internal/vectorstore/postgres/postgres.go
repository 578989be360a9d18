package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"ragdb/internal/domain"
	"ragdb/internal/vectorstore"
)

// DBPool is the subset of pgxpool.Pool used by Storage.
type DBPool interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// Options configure the Postgres store.
type Options struct {
	ConnString string
	Metric     vectorstore.Metric
	// Dimension fixes the vector column width; 0 leaves it unconstrained.
	Dimension int
}

// Storage keeps books, chunks and vectors in Postgres with the pgvector extension.
type Storage struct {
	pool      DBPool
	metric    vectorstore.Metric
	operator  string
	dimension int
}

// New connects a pool to the given database.
func New(ctx context.Context, opts Options) (*Storage, error) {
	if opts.ConnString == "" {
		return nil, errors.New("postgres: empty connection string")
	}
	pool, err := pgxpool.New(ctx, opts.ConnString)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}
	return NewWithPool(pool, opts.Metric, opts.Dimension)
}

// NewWithPool wraps an existing pool. Useful for testing with mocks.
func NewWithPool(pool DBPool, metric vectorstore.Metric, dimension int) (*Storage, error) {
	if metric == "" {
		metric = vectorstore.Dot
	}
	op, err := operator(metric)
	if err != nil {
		return nil, err
	}
	return &Storage{pool: pool, metric: metric, operator: op, dimension: dimension}, nil
}

func operator(m vectorstore.Metric) (string, error) {
	switch m {
	case vectorstore.Dot:
		return "<#>", nil
	case vectorstore.Cosine:
		return "<=>", nil
	case vectorstore.Euclidean:
		return "<->", nil
	default:
		return "", fmt.Errorf("unknown distance metric: %s", m)
	}
}

func (s *Storage) Init(ctx context.Context) error {
	vecType := "vector"
	if s.dimension > 0 {
		vecType = fmt.Sprintf("vector(%d)", s.dimension)
	}
	query := fmt.Sprintf(`
		CREATE EXTENSION IF NOT EXISTS vector;
		CREATE TABLE IF NOT EXISTS books (
			id BIGSERIAL PRIMARY KEY,
			name TEXT NOT NULL UNIQUE
		);
		CREATE TABLE IF NOT EXISTS chunks (
			id TEXT PRIMARY KEY,
			chunk TEXT NOT NULL,
			page_num INTEGER,
			book_id BIGINT NOT NULL REFERENCES books(id) ON DELETE CASCADE
		);
		CREATE INDEX IF NOT EXISTS idx_chunks_book_id ON chunks (book_id);
		CREATE TABLE IF NOT EXISTS vectors (
			id TEXT PRIMARY KEY REFERENCES chunks(id) ON DELETE CASCADE,
			vec %s NOT NULL
		);
	`, vecType)
	if _, err := s.pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

func (s *Storage) SaveBook(ctx context.Context, name string, chunks []domain.Chunk, vectors [][]float32) (domain.SaveStats, error) {
	return s.save(ctx, name, chunks, vectors, false)
}

// ReplaceBook deletes a stored book of the same name and inserts the new one in one transaction.
func (s *Storage) ReplaceBook(ctx context.Context, name string, chunks []domain.Chunk, vectors [][]float32) (domain.SaveStats, error) {
	return s.save(ctx, name, chunks, vectors, true)
}

func (s *Storage) save(ctx context.Context, name string, chunks []domain.Chunk, vectors [][]float32, replace bool) (domain.SaveStats, error) {
	if err := vectorstore.CheckBatch(chunks, vectors); err != nil {
		return domain.SaveStats{}, err
	}
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return domain.SaveStats{}, fmt.Errorf("begin: %w", err)
	}
	done := false
	defer func() {
		if !done {
			_ = tx.Rollback(ctx)
		}
	}()

	if replace {
		if _, err := tx.Exec(ctx, `DELETE FROM books WHERE name = $1`, name); err != nil {
			return domain.SaveStats{}, fmt.Errorf("delete book %s: %w", name, err)
		}
	}
	var bookID int64
	err = tx.QueryRow(ctx,
		`INSERT INTO books (name) VALUES ($1) ON CONFLICT (name) DO NOTHING RETURNING id`, name).Scan(&bookID)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.SaveStats{}, fmt.Errorf("%w: %s", domain.ErrBookExists, name)
	}
	if err != nil {
		return domain.SaveStats{}, fmt.Errorf("insert book: %w", err)
	}

	stats := domain.SaveStats{BookID: bookID}
	for i, ch := range chunks {
		tag, err := tx.Exec(ctx,
			`INSERT INTO chunks (id, chunk, page_num, book_id) VALUES ($1, $2, $3, $4) ON CONFLICT (id) DO NOTHING`,
			ch.ID, ch.Text, ch.PageNum, bookID)
		if err != nil {
			return domain.SaveStats{}, fmt.Errorf("insert chunk %s: %w", ch.ID, err)
		}
		if tag.RowsAffected() == 0 {
			stats.Skipped++
			continue
		}
		if _, err := tx.Exec(ctx,
			`INSERT INTO vectors (id, vec) VALUES ($1, $2) ON CONFLICT (id) DO NOTHING`,
			ch.ID, pgvector.NewVector(vectors[i])); err != nil {
			return domain.SaveStats{}, fmt.Errorf("insert vector %s: %w", ch.ID, err)
		}
		stats.Inserted++
	}
	done = true
	if err := tx.Commit(ctx); err != nil {
		return domain.SaveStats{}, fmt.Errorf("commit book %s: %w", name, err)
	}
	return stats, nil
}

func (s *Storage) searchSQL() string {
	return fmt.Sprintf(`
		SELECT v.id, c.chunk, c.page_num, ROUND((v.vec %[1]s $1::vector)::numeric, 3)::float8 AS d, b.name
		FROM vectors v
		JOIN chunks c ON c.id = v.id
		JOIN books b ON c.book_id = b.id
		ORDER BY v.vec %[1]s $1::vector
		LIMIT $2`, s.operator)
}

func (s *Storage) Search(ctx context.Context, vector []float32, topK int) ([]domain.SearchResult, error) {
	if topK <= 0 {
		topK = vectorstore.DefaultTopK
	}
	rows, err := s.pool.Query(ctx, s.searchSQL(), pgvector.NewVector(vector), topK)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	defer rows.Close()

	out := []domain.SearchResult{}
	for rows.Next() {
		var (
			id, text, book string
			page           *int32
			dist           float64
		)
		if err := rows.Scan(&id, &text, &page, &dist, &book); err != nil {
			return nil, fmt.Errorf("scan search row: %w", err)
		}
		p := 0
		if page != nil {
			p = int(*page)
		}
		out = append(out, vectorstore.Result(s.metric, id, text, p, book, dist))
	}
	return out, rows.Err()
}

func (s *Storage) BookExists(ctx context.Context, name string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM books WHERE name = $1)`, name).Scan(&exists)
	return exists, err
}

func (s *Storage) ListBooks(ctx context.Context) ([]domain.Book, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT b.id, b.name, COUNT(c.id)
		FROM books b LEFT JOIN chunks c ON c.book_id = b.id
		GROUP BY b.id, b.name
		ORDER BY b.name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []domain.Book
	for rows.Next() {
		var (
			b     domain.Book
			count int64
		)
		if err := rows.Scan(&b.ID, &b.Name, &count); err != nil {
			return nil, err
		}
		b.Chunks = int(count)
		out = append(out, b)
	}
	return out, rows.Err()
}

func (s *Storage) DeleteBook(ctx context.Context, name string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM books WHERE name = $1`, name)
	if err != nil {
		return fmt.Errorf("delete book %s: %w", name, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: book %s", domain.ErrNotFound, name)
	}
	return nil
}

func (s *Storage) Close() error {
	s.pool.Close()
	return nil
}
