package summarizer

import (
	"math"
	"regexp"
	"sort"
	"strings"
)

var (
	sentenceRe = regexp.MustCompile(`[^.!?]+[.!?]+`)
	wordRe     = regexp.MustCompile(`\p{L}+(?:['’]\p{L}+)*`)
)

// Frequency picks the sentences whose non-stopword terms are most frequent across a book.
type Frequency struct {
	stopwords map[string]struct{}
	// sentences shorter than this many words are never picked
	minWords int
}

func NewFrequency() *Frequency {
	return &Frequency{stopwords: stopwords(), minWords: 5}
}

// Summarize returns up to maxSentences sentences from pages, in reading order.
func (f *Frequency) Summarize(pages []string, maxSentences int) string {
	if maxSentences <= 0 {
		return ""
	}
	var sentences []string
	for _, p := range pages {
		for _, s := range sentenceRe.FindAllString(p, -1) {
			if s = strings.TrimSpace(s); s != "" {
				sentences = append(sentences, s)
			}
		}
	}
	if len(sentences) == 0 {
		return ""
	}

	freq := make(map[string]float64)
	terms := make([][]string, len(sentences))
	for i, s := range sentences {
		for _, w := range wordRe.FindAllString(strings.ToLower(s), -1) {
			if _, stop := f.stopwords[w]; stop {
				continue
			}
			terms[i] = append(terms[i], w)
			freq[w]++
		}
	}
	top := 0.0
	for _, v := range freq {
		top = math.Max(top, v)
	}

	type ranked struct {
		idx   int
		score float64
	}
	var candidates []ranked
	for i, ts := range terms {
		if len(ts) < f.minWords && len(sentences) > maxSentences {
			continue
		}
		score := 0.0
		for _, t := range ts {
			score += freq[t] / top
		}
		if len(ts) > 0 {
			score /= math.Sqrt(float64(len(ts)))
		}
		candidates = append(candidates, ranked{i, score})
	}
	sort.SliceStable(candidates, func(i, j int) bool { return candidates[i].score > candidates[j].score })
	if len(candidates) > maxSentences {
		candidates = candidates[:maxSentences]
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].idx < candidates[j].idx })

	out := make([]string, len(candidates))
	for i, c := range candidates {
		out[i] = sentences[c.idx]
	}
	return strings.Join(out, " ")
}

func stopwords() map[string]struct{} {
	words := []string{
		"a", "an", "the", "and", "or", "but", "if", "then", "else", "for", "to", "of", "in", "on", "at", "by", "with", "as", "is", "are", "was", "were", "be", "been", "being", "it", "its", "this", "that", "these", "those", "from", "up", "down", "over", "under", "than", "so", "such", "into", "about", "between", "through", "during", "before", "after", "out", "off", "too", "very", "can", "will", "just", "should", "now", "not", "no", "we", "you", "they", "he", "she", "our", "your", "their", "has", "have", "had",
	}
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}
