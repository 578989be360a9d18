package chunker

import (
	"regexp"
	"strings"

	"ragdb/internal/tokens"
)

// SentenceChunker packs sentences into chunks of at most maxTokens tokens,
// carrying roughly overlapTokens tokens of trailing sentences into the next chunk.
type SentenceChunker struct {
	maxTokens     int
	overlapTokens int
	counter       tokens.Counter
}

var sentenceEnd = regexp.MustCompile(`[^.!?]+[.!?]+`)

func NewSentenceChunker(maxTokens, overlapTokens int, counter tokens.Counter) *SentenceChunker {
	if maxTokens <= 0 {
		maxTokens = 600
	}
	if overlapTokens < 0 || overlapTokens >= maxTokens {
		overlapTokens = 0
	}
	if counter == nil {
		counter = tokens.WordCounter{}
	}
	return &SentenceChunker{
		maxTokens:     maxTokens,
		overlapTokens: overlapTokens,
		counter:       counter,
	}
}

// Split returns the text as one or more chunks. Text that fits is returned unchanged.
func (c *SentenceChunker) Split(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if c.counter.Count(text) <= c.maxTokens {
		return []string{text}
	}

	sentences := Sentences(text)
	counts := make([]int, len(sentences))
	for i, s := range sentences {
		counts[i] = c.counter.Count(s)
	}

	var chunks []string
	i := 0
	for i < len(sentences) {
		end := i
		total := 0
		for end < len(sentences) && (end == i || total+counts[end] <= c.maxTokens) {
			total += counts[end]
			end++
		}
		chunks = append(chunks, strings.Join(sentences[i:end], " "))
		if end == len(sentences) {
			break
		}
		next := end
		carried := 0
		for next > i+1 && carried+counts[next-1] <= c.overlapTokens {
			carried += counts[next-1]
			next--
		}
		i = next
	}
	return chunks
}

// Sentences splits text on terminal punctuation. Trailing text without
// punctuation is kept as the last sentence.
func Sentences(text string) []string {
	locs := sentenceEnd.FindAllStringIndex(text, -1)
	out := make([]string, 0, len(locs)+1)
	last := 0
	for _, loc := range locs {
		if s := strings.TrimSpace(text[last:loc[1]]); s != "" {
			out = append(out, s)
		}
		last = loc[1]
	}
	if tail := strings.TrimSpace(text[last:]); tail != "" {
		out = append(out, tail)
	}
	return out
}
