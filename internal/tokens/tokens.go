package tokens

import (
	"fmt"
	"math"
	"strings"

	"github.com/pkoukk/tiktoken-go"
)

// Counter estimates how many model tokens a text occupies.
type Counter interface {
	Count(text string) int
}

// WordCounter approximates tokens as 1.3 per whitespace-separated word.
type WordCounter struct{}

func (WordCounter) Count(text string) int {
	n := len(strings.Fields(text))
	if n == 0 {
		return 0
	}
	return int(math.Ceil(float64(n) * 1.3))
}

// Tiktoken counts tokens with a BPE encoding.
type Tiktoken struct {
	enc *tiktoken.Tiktoken
}

// NewTiktoken loads the named encoding, e.g. "cl100k_base".
func NewTiktoken(encoding string) (*Tiktoken, error) {
	if encoding == "" {
		encoding = "cl100k_base"
	}
	enc, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		return nil, fmt.Errorf("load tiktoken encoding %s: %w", encoding, err)
	}
	return &Tiktoken{enc: enc}, nil
}

func (t *Tiktoken) Count(text string) int {
	return len(t.enc.Encode(text, nil, nil))
}

// New returns the counter for the configured tokenizer name, falling back to WordCounter.
func New(name string) (Counter, error) {
	switch name {
	case "", "words":
		return WordCounter{}, nil
	case "tiktoken":
		return NewTiktoken("")
	default:
		return nil, fmt.Errorf("unknown tokenizer: %s", name)
	}
}

// CountMessages sums Count over a list of texts.
func CountMessages(c Counter, texts ...string) int {
	total := 0
	for _, t := range texts {
		total += c.Count(t)
	}
	return total
}
