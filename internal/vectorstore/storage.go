package vectorstore

import (
	"errors"
	"fmt"
	"math"

	"ragdb/internal/domain"
)

// DefaultTopK is used when a search asks for zero or fewer results.
const DefaultTopK = 5

// Metric selects how distances between vectors are computed.
// Smaller distances are always better.
type Metric string

const (
	// Dot is the negative inner product.
	Dot       Metric = "dot"
	Cosine    Metric = "cosine"
	Euclidean Metric = "euclidean"
)

// ParseMetric validates a configured distance name.
func ParseMetric(s string) (Metric, error) {
	switch m := Metric(s); m {
	case Dot, Cosine, Euclidean:
		return m, nil
	case "":
		return Dot, nil
	default:
		return "", fmt.Errorf("unknown distance metric: %s", s)
	}
}

// Distance computes the metric between a and b. Vectors must have equal length.
// Cosine against a zero vector is 1.
func (m Metric) Distance(a, b []float64) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("vector dimension mismatch %d vs %d", len(a), len(b))
	}
	switch m {
	case Dot:
		var s float64
		for i := range a {
			s += a[i] * b[i]
		}
		return -s, nil
	case Cosine:
		var dot, na, nb float64
		for i := range a {
			dot += a[i] * b[i]
			na += a[i] * a[i]
			nb += b[i] * b[i]
		}
		if na == 0 || nb == 0 {
			return 1, nil
		}
		return 1 - dot/(math.Sqrt(na)*math.Sqrt(nb)), nil
	case Euclidean:
		var s float64
		for i := range a {
			d := a[i] - b[i]
			s += d * d
		}
		return math.Sqrt(s), nil
	default:
		return 0, fmt.Errorf("unknown distance metric: %s", m)
	}
}

// Score converts a distance into a similarity where larger is better.
func (m Metric) Score(d float64) float64 {
	switch m {
	case Cosine:
		return 1 - d
	case Euclidean:
		return 1 / (1 + d)
	default:
		return -d
	}
}

// Round3 rounds a distance to three decimals, as reported by search.
func Round3(d float64) float64 {
	return math.Round(d*1000) / 1000
}

// Result assembles a SearchResult from a scored row.
func Result(m Metric, id, text string, page int, book string, dist float64) domain.SearchResult {
	return domain.SearchResult{
		Chunk:    domain.Chunk{ID: id, BookName: book, PageNum: page, Text: text},
		Distance: dist,
		Score:    m.Score(dist),
	}
}

// CheckBatch verifies that chunks and vectors pair up and share one dimension.
func CheckBatch(chunks []domain.Chunk, vectors [][]float32) error {
	if len(chunks) != len(vectors) {
		return fmt.Errorf("chunks and vectors length mismatch: %d vs %d", len(chunks), len(vectors))
	}
	dim := -1
	for i, v := range vectors {
		if len(v) == 0 {
			return fmt.Errorf("empty vector for chunk %s", chunks[i].ID)
		}
		if dim == -1 {
			dim = len(v)
		} else if len(v) != dim {
			return errors.New("vector dimension mismatch within book")
		}
	}
	return nil
}

// ToFloat64 widens a float32 vector.
func ToFloat64(v []float32) []float64 {
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = float64(x)
	}
	return out
}
