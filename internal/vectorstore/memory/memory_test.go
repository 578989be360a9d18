package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragdb/internal/domain"
	"ragdb/internal/vectorstore"
	"ragdb/internal/vectorstore/storetest"
)

func TestStorage(t *testing.T) {
	storetest.Run(t, func(t *testing.T) domain.VectorStore {
		return NewStorage(vectorstore.Dot)
	})
}

func TestCosineScores(t *testing.T) {
	ctx := context.Background()
	s := NewStorage(vectorstore.Cosine)
	_, err := s.SaveBook(ctx, "a", []domain.Chunk{{ID: "x", Text: "x", PageNum: 1}}, [][]float32{{3, 4}})
	require.NoError(t, err)

	res, err := s.Search(ctx, []float32{4, 3}, 1)
	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.InDelta(t, 0.04, res[0].Distance, 1e-9)
	assert.InDelta(t, 0.96, res[0].Score, 1e-9)
	assert.Equal(t, "a", res[0].Chunk.BookName)
}
