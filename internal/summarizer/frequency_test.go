package summarizer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSummarizePicksFrequentTermsInOrder(t *testing.T) {
	pages := []string{
		"Vector search ranks chunks by distance to the query vector. Lunch is served at noon in the cafeteria.",
		"Every chunk vector is stored next to its chunk text and page number. The weather was pleasant yesterday afternoon outside.",
	}
	got := NewFrequency().Summarize(pages, 2)
	assert.Equal(t,
		"Vector search ranks chunks by distance to the query vector. Every chunk vector is stored next to its chunk text and page number.",
		got)
}

func TestSummarizeEdgeCases(t *testing.T) {
	f := NewFrequency()
	assert.Equal(t, "", f.Summarize([]string{"Some text here."}, 0))
	assert.Equal(t, "", f.Summarize(nil, 3))
	assert.Equal(t, "Short one.", f.Summarize([]string{"Short one."}, 3))
}
