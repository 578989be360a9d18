// Package storetest holds behaviour checks shared by every VectorStore backend.
package storetest

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragdb/internal/domain"
)

// Factory returns an initialised, empty store using the dot metric.
type Factory func(t *testing.T) domain.VectorStore

func chunk(id, book string, page int, text string) domain.Chunk {
	return domain.Chunk{ID: id, BookName: book, PageNum: page, Text: text}
}

// Run exercises SaveBook, Search, ListBooks and DeleteBook.
func Run(t *testing.T, newStore Factory) {
	t.Run("EmptySearch", func(t *testing.T) {
		s := newStore(t)
		res, err := s.Search(context.Background(), []float32{1, 0, 0}, 3)
		require.NoError(t, err)
		assert.Empty(t, res)
	})

	t.Run("InsertThenRetrieve", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)
		stats, err := s.SaveBook(ctx, "guide.pdf",
			[]domain.Chunk{
				chunk("c1", "guide.pdf", 1, "tablespaces"),
				chunk("c2", "guide.pdf", 2, "vector search"),
				chunk("c3", "guide.pdf", 3, "backup"),
			},
			[][]float32{{0, 1, 0}, {1, 0, 0}, {0.5, 0.5, 0}})
		require.NoError(t, err)
		assert.Equal(t, 3, stats.Inserted)
		assert.Zero(t, stats.Skipped)

		res, err := s.Search(ctx, []float32{1, 0, 0}, 2)
		require.NoError(t, err)
		require.Len(t, res, 2)
		assert.Equal(t, "c2", res[0].Chunk.ID)
		assert.Equal(t, "vector search", res[0].Chunk.Text)
		assert.Equal(t, 2, res[0].Chunk.PageNum)
		assert.Equal(t, "guide.pdf", res[0].Chunk.BookName)
		assert.InDelta(t, -1.0, res[0].Distance, 1e-9)
		assert.InDelta(t, 1.0, res[0].Score, 1e-9)
		assert.Equal(t, "c3", res[1].Chunk.ID)
		assert.InDelta(t, -0.5, res[1].Distance, 1e-9)

		all, err := s.Search(ctx, []float32{1, 0, 0}, 0)
		require.NoError(t, err)
		assert.Len(t, all, 3)
	})

	t.Run("DuplicateBookRejected", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)
		_, err := s.SaveBook(ctx, "a.pdf", []domain.Chunk{chunk("x", "a.pdf", 1, "x")}, [][]float32{{1, 0}})
		require.NoError(t, err)
		_, err = s.SaveBook(ctx, "a.pdf", []domain.Chunk{chunk("y", "a.pdf", 1, "y")}, [][]float32{{0, 1}})
		assert.True(t, errors.Is(err, domain.ErrBookExists), "got %v", err)

		ok, err := s.BookExists(ctx, "a.pdf")
		require.NoError(t, err)
		assert.True(t, ok)
		ok, err = s.BookExists(ctx, "b.pdf")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("SharedChunkIDSkipped", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)
		_, err := s.SaveBook(ctx, "a.pdf", []domain.Chunk{chunk("same", "a.pdf", 1, "boilerplate")}, [][]float32{{1, 0}})
		require.NoError(t, err)
		stats, err := s.SaveBook(ctx, "b.pdf",
			[]domain.Chunk{chunk("same", "b.pdf", 4, "boilerplate"), chunk("new", "b.pdf", 5, "fresh")},
			[][]float32{{1, 0}, {0, 1}})
		require.NoError(t, err)
		assert.Equal(t, 1, stats.Inserted)
		assert.Equal(t, 1, stats.Skipped)

		res, err := s.Search(ctx, []float32{1, 0}, 5)
		require.NoError(t, err)
		require.Len(t, res, 2)
		assert.Equal(t, "a.pdf", res[0].Chunk.BookName)
	})

	t.Run("MismatchedBatchRejected", func(t *testing.T) {
		s := newStore(t)
		_, err := s.SaveBook(context.Background(), "a.pdf",
			[]domain.Chunk{chunk("x", "a.pdf", 1, "x"), chunk("y", "a.pdf", 2, "y")},
			[][]float32{{1, 0}})
		assert.Error(t, err)
		ok, err := s.BookExists(context.Background(), "a.pdf")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("ListAndDelete", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)
		_, err := s.SaveBook(ctx, "b.pdf", []domain.Chunk{chunk("b1", "b.pdf", 1, "b1"), chunk("b2", "b.pdf", 2, "b2")}, [][]float32{{1, 0}, {0, 1}})
		require.NoError(t, err)
		_, err = s.SaveBook(ctx, "a.pdf", []domain.Chunk{chunk("a1", "a.pdf", 1, "a1")}, [][]float32{{1, 1}})
		require.NoError(t, err)

		books, err := s.ListBooks(ctx)
		require.NoError(t, err)
		require.Len(t, books, 2)
		assert.Equal(t, "a.pdf", books[0].Name)
		assert.Equal(t, 1, books[0].Chunks)
		assert.Equal(t, "b.pdf", books[1].Name)
		assert.Equal(t, 2, books[1].Chunks)

		require.NoError(t, s.DeleteBook(ctx, "b.pdf"))
		res, err := s.Search(ctx, []float32{1, 0}, 10)
		require.NoError(t, err)
		require.Len(t, res, 1)
		assert.Equal(t, "a1", res[0].Chunk.ID)

		err = s.DeleteBook(ctx, "b.pdf")
		assert.True(t, errors.Is(err, domain.ErrNotFound), "got %v", err)
	})
}
