package vectorstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragdb/internal/domain"
)

func TestMetricDistanceAndScore(t *testing.T) {
	a := []float64{1, 0}
	b := []float64{0.6, 0.8}

	d, err := Dot.Distance(a, b)
	require.NoError(t, err)
	assert.InDelta(t, -0.6, d, 1e-9)
	assert.InDelta(t, 0.6, Dot.Score(d), 1e-9)

	d, err = Cosine.Distance(a, b)
	require.NoError(t, err)
	assert.InDelta(t, 0.4, d, 1e-9)
	assert.InDelta(t, 0.6, Cosine.Score(d), 1e-9)

	d, err = Euclidean.Distance(a, b)
	require.NoError(t, err)
	assert.InDelta(t, 0.894, Round3(d), 1e-9)
	assert.InDelta(t, 1/(1+d), Euclidean.Score(d), 1e-9)

	d, err = Cosine.Distance([]float64{0, 0}, b)
	require.NoError(t, err)
	assert.Equal(t, 1.0, d)

	_, err = Dot.Distance(a, []float64{1})
	assert.Error(t, err)
}

func TestParseMetric(t *testing.T) {
	m, err := ParseMetric("")
	require.NoError(t, err)
	assert.Equal(t, Dot, m)
	_, err = ParseMetric("hamming")
	assert.Error(t, err)
}

func TestCheckBatch(t *testing.T) {
	chunks := []domain.Chunk{{ID: "a"}, {ID: "b"}}
	assert.NoError(t, CheckBatch(chunks, [][]float32{{1, 2}, {3, 4}}))
	assert.Error(t, CheckBatch(chunks, [][]float32{{1, 2}}))
	assert.Error(t, CheckBatch(chunks, [][]float32{{1, 2}, {3}}))
	assert.Error(t, CheckBatch(chunks, [][]float32{{1, 2}, {}}))
}

func TestRound3(t *testing.T) {
	assert.Equal(t, -0.123, Round3(-0.12345))
	assert.Equal(t, 0.5, Round3(0.4996))
}
