package sqlite

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragdb/internal/domain"
	"ragdb/internal/vectorstore"
	"ragdb/internal/vectorstore/storetest"
)

func openMemory(t *testing.T, metric vectorstore.Metric, bits int) *Storage {
	t.Helper()
	s, err := Open(":memory:", metric, bits)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	require.NoError(t, s.Init(context.Background()))
	return s
}

func TestStorage64(t *testing.T) {
	storetest.Run(t, func(t *testing.T) domain.VectorStore {
		return openMemory(t, vectorstore.Dot, 64)
	})
}

func TestStorage32(t *testing.T) {
	storetest.Run(t, func(t *testing.T) domain.VectorStore {
		return openMemory(t, vectorstore.Dot, 32)
	})
}

func TestInitIsIdempotent(t *testing.T) {
	s := openMemory(t, vectorstore.Dot, 64)
	assert.NoError(t, s.Init(context.Background()))
}

func TestSearchEuclideanRoundsDistance(t *testing.T) {
	ctx := context.Background()
	s := openMemory(t, vectorstore.Euclidean, 64)
	_, err := s.SaveBook(ctx, "b.pdf",
		[]domain.Chunk{{ID: "near", PageNum: 1, Text: "near"}, {ID: "far", PageNum: 9, Text: "far"}},
		[][]float32{{1, 1}, {4, 5}})
	require.NoError(t, err)

	res, err := s.Search(ctx, []float32{1, 0}, 5)
	require.NoError(t, err)
	require.Len(t, res, 2)
	assert.Equal(t, "near", res[0].Chunk.ID)
	assert.InDelta(t, 1.0, res[0].Distance, 1e-9)
	assert.InDelta(t, 0.5, res[0].Score, 1e-9)
	assert.Equal(t, "far", res[1].Chunk.ID)
	assert.InDelta(t, 5.831, res[1].Distance, 1e-9)
	assert.Equal(t, 9, res[1].Chunk.PageNum)
}

func TestDeleteCascadesToChunksAndVectors(t *testing.T) {
	ctx := context.Background()
	s := openMemory(t, vectorstore.Dot, 64)
	_, err := s.SaveBook(ctx, "b.pdf", []domain.Chunk{{ID: "x", PageNum: 1, Text: "x"}}, [][]float32{{1}})
	require.NoError(t, err)
	require.NoError(t, s.DeleteBook(ctx, "b.pdf"))

	var chunks, vectors int
	require.NoError(t, s.db.QueryRow(`SELECT COUNT(*) FROM chunks`).Scan(&chunks))
	require.NoError(t, s.db.QueryRow(`SELECT COUNT(*) FROM vectors`).Scan(&vectors))
	assert.Zero(t, chunks)
	assert.Zero(t, vectors)
}

func TestSearchDimensionMismatchFails(t *testing.T) {
	ctx := context.Background()
	s := openMemory(t, vectorstore.Dot, 64)
	_, err := s.SaveBook(ctx, "b.pdf", []domain.Chunk{{ID: "x", PageNum: 1, Text: "x"}}, [][]float32{{1, 2}})
	require.NoError(t, err)
	_, err = s.Search(ctx, []float32{1, 2, 3}, 1)
	assert.Error(t, err)
}

func TestSaveBookRollsBackOnVectorError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	s, err := New(db, vectorstore.Dot, 64)
	require.NoError(t, err)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO books(name)`)).
		WithArgs("b.pdf").
		WillReturnResult(sqlmock.NewResult(7, 1))
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO chunks(id, chunk, page_num, book_id)`)).
		WithArgs("c1", "text", 3, int64(7)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO vectors(id, vec)`)).
		WithArgs("c1", sqlmock.AnyArg()).
		WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	_, err = s.SaveBook(context.Background(), "b.pdf",
		[]domain.Chunk{{ID: "c1", PageNum: 3, Text: "text"}}, [][]float32{{1, 2}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveBookExistingBookRollsBack(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	s, err := New(db, vectorstore.Dot, 32)
	require.NoError(t, err)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO books(name)`)).
		WithArgs("b.pdf").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	_, err = s.SaveBook(context.Background(), "b.pdf",
		[]domain.Chunk{{ID: "c1", PageNum: 1, Text: "t"}}, [][]float32{{1}})
	assert.ErrorIs(t, err, domain.ErrBookExists)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveBookCommitFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	s, err := New(db, vectorstore.Dot, 64)
	require.NoError(t, err)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO books(name)`)).WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO chunks`)).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit().WillReturnError(errors.New("locked"))

	stats, err := s.SaveBook(context.Background(), "b.pdf",
		[]domain.Chunk{{ID: "dup", PageNum: 1, Text: "t"}}, [][]float32{{1}})
	assert.Error(t, err)
	assert.Zero(t, stats)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNewRejectsBadBits(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	_, err = New(db, vectorstore.Dot, 16)
	assert.Error(t, err)
}

func TestReplaceBook(t *testing.T) {
	ctx := context.Background()
	s := openMemory(t, vectorstore.Dot, 64)
	_, err := s.SaveBook(ctx, "b.pdf", []domain.Chunk{{ID: "old", PageNum: 1, Text: "old"}}, [][]float32{{1, 0}})
	require.NoError(t, err)

	stats, err := s.ReplaceBook(ctx, "b.pdf",
		[]domain.Chunk{{ID: "old", PageNum: 1, Text: "old"}, {ID: "new", PageNum: 2, Text: "new"}},
		[][]float32{{1, 0}, {0, 1}})
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Inserted)

	books, err := s.ListBooks(ctx)
	require.NoError(t, err)
	require.Len(t, books, 1)
	assert.Equal(t, 2, books[0].Chunks)

	// replacing a missing book just saves it
	_, err = s.ReplaceBook(ctx, "c.pdf", []domain.Chunk{{ID: "c", PageNum: 1, Text: "c"}}, [][]float32{{1, 1}})
	require.NoError(t, err)
}
