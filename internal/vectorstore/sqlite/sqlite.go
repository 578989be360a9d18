package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "modernc.org/sqlite"

	"ragdb/internal/domain"
	"ragdb/internal/vectorstore"
)

const schema = `
CREATE TABLE IF NOT EXISTS books (
	id   INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL UNIQUE
);
CREATE TABLE IF NOT EXISTS chunks (
	id       TEXT PRIMARY KEY,
	chunk    TEXT NOT NULL,
	page_num INTEGER,
	book_id  INTEGER NOT NULL REFERENCES books(id) ON DELETE CASCADE
);
CREATE INDEX IF NOT EXISTS idx_chunks_book_id ON chunks(book_id);
CREATE TABLE IF NOT EXISTS vectors (
	id  TEXT PRIMARY KEY REFERENCES chunks(id) ON DELETE CASCADE,
	vec BLOB NOT NULL
);`

const searchSQL = `
SELECT v.id, c.chunk, c.page_num, ROUND(vector_distance(v.vec, ?, ?), 3) AS d, b.name
FROM vectors v
JOIN chunks c ON c.id = v.id
JOIN books b ON c.book_id = b.id
ORDER BY vector_distance(v.vec, ?, ?)
LIMIT ?`

// Storage keeps books, chunks and vectors in SQLite.
type Storage struct {
	db     *sql.DB
	metric vectorstore.Metric
	bits   int
}

// Open opens (or creates) the database at path. ":memory:" gives a private in-memory database.
func Open(path string, metric vectorstore.Metric, bits int) (*Storage, error) {
	if err := registerFunctions(); err != nil {
		return nil, fmt.Errorf("register sqlite functions: %w", err)
	}
	db, err := sql.Open("sqlite", path+"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, err
	}
	// a single connection keeps :memory: databases and pragmas consistent
	db.SetMaxOpenConns(1)
	return New(db, metric, bits)
}

// New wraps an existing handle.
func New(db *sql.DB, metric vectorstore.Metric, bits int) (*Storage, error) {
	if db == nil {
		return nil, errors.New("sqlite: db is nil")
	}
	if bits != 32 && bits != 64 {
		return nil, fmt.Errorf("sqlite: unsupported embedding bits %d", bits)
	}
	if metric == "" {
		metric = vectorstore.Dot
	}
	return &Storage{db: db, metric: metric, bits: bits}, nil
}

func (s *Storage) Init(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

func (s *Storage) SaveBook(ctx context.Context, name string, chunks []domain.Chunk, vectors [][]float32) (domain.SaveStats, error) {
	return s.save(ctx, name, chunks, vectors, false)
}

// ReplaceBook drops any stored book with the same name and saves the new copy
// in the same transaction.
func (s *Storage) ReplaceBook(ctx context.Context, name string, chunks []domain.Chunk, vectors [][]float32) (domain.SaveStats, error) {
	return s.save(ctx, name, chunks, vectors, true)
}

func (s *Storage) save(ctx context.Context, name string, chunks []domain.Chunk, vectors [][]float32, replace bool) (domain.SaveStats, error) {
	if err := vectorstore.CheckBatch(chunks, vectors); err != nil {
		return domain.SaveStats{}, err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.SaveStats{}, err
	}
	defer func() { _ = tx.Rollback() }()

	if replace {
		if _, err := tx.ExecContext(ctx, `DELETE FROM books WHERE name = ?`, name); err != nil {
			return domain.SaveStats{}, fmt.Errorf("delete book %s: %w", name, err)
		}
	}
	res, err := tx.ExecContext(ctx, `INSERT INTO books(name) VALUES(?) ON CONFLICT(name) DO NOTHING`, name)
	if err != nil {
		return domain.SaveStats{}, fmt.Errorf("insert book: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return domain.SaveStats{}, err
	} else if n == 0 {
		return domain.SaveStats{}, fmt.Errorf("%w: %s", domain.ErrBookExists, name)
	}
	bookID, err := res.LastInsertId()
	if err != nil {
		return domain.SaveStats{}, err
	}

	stats := domain.SaveStats{BookID: bookID}
	for i, ch := range chunks {
		res, err := tx.ExecContext(ctx,
			`INSERT INTO chunks(id, chunk, page_num, book_id) VALUES(?, ?, ?, ?) ON CONFLICT(id) DO NOTHING`,
			ch.ID, ch.Text, ch.PageNum, bookID)
		if err != nil {
			return domain.SaveStats{}, fmt.Errorf("insert chunk %s: %w", ch.ID, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return domain.SaveStats{}, err
		}
		if n == 0 {
			stats.Skipped++
			continue
		}
		blob, err := EncodeVector(vectors[i], s.bits)
		if err != nil {
			return domain.SaveStats{}, err
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO vectors(id, vec) VALUES(?, ?) ON CONFLICT(id) DO NOTHING`, ch.ID, blob); err != nil {
			return domain.SaveStats{}, fmt.Errorf("insert vector %s: %w", ch.ID, err)
		}
		stats.Inserted++
	}
	if err := tx.Commit(); err != nil {
		return domain.SaveStats{}, fmt.Errorf("commit book %s: %w", name, err)
	}
	return stats, nil
}

func (s *Storage) Search(ctx context.Context, vector []float32, topK int) ([]domain.SearchResult, error) {
	if topK <= 0 {
		topK = vectorstore.DefaultTopK
	}
	q, err := EncodeVector(vector, s.bits)
	if err != nil {
		return nil, err
	}
	metric := string(s.metric)
	rows, err := s.db.QueryContext(ctx, searchSQL, q, metric, q, metric, topK)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	defer rows.Close()

	out := []domain.SearchResult{}
	for rows.Next() {
		var (
			id, text, book string
			page           sql.NullInt64
			dist           float64
		)
		if err := rows.Scan(&id, &text, &page, &dist, &book); err != nil {
			return nil, err
		}
		out = append(out, vectorstore.Result(s.metric, id, text, int(page.Int64), book, dist))
	}
	return out, rows.Err()
}

func (s *Storage) BookExists(ctx context.Context, name string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM books WHERE name = ?`, name).Scan(&n)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *Storage) ListBooks(ctx context.Context) ([]domain.Book, error) {
	rows, err := s.db.QueryContext(ctx, `
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
		var b domain.Book
		if err := rows.Scan(&b.ID, &b.Name, &b.Chunks); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (s *Storage) DeleteBook(ctx context.Context, name string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM books WHERE name = ?`, name)
	if err != nil {
		return fmt.Errorf("delete book %s: %w", name, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: book %s", domain.ErrNotFound, name)
	}
	return nil
}

func (s *Storage) Close() error { return s.db.Close() }
