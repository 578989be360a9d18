package tokens

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWordCounter(t *testing.T) {
	c := WordCounter{}
	assert.Equal(t, 0, c.Count("   "))
	assert.Equal(t, 2, c.Count("hello"))
	assert.Equal(t, 13, c.Count("one two three four five six seven eight nine ten"))
}

func TestNew(t *testing.T) {
	c, err := New("words")
	require.NoError(t, err)
	assert.IsType(t, WordCounter{}, c)

	_, err = New("sentencepiece")
	assert.Error(t, err)
}

func TestCountMessages(t *testing.T) {
	assert.Equal(t, 5, CountMessages(WordCounter{}, "a", "b c"))
}
