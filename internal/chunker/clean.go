package chunker

import (
	"regexp"
	"strings"
)

var spaceRe = regexp.MustCompile(`\s+`)

// Clean normalises page text: de-hyphenates line breaks, joins lines,
// strips boilerplate strings and collapses whitespace.
func Clean(text string, removeStrings []string) string {
	text = strings.ReplaceAll(text, "\t", " ")
	text = strings.ReplaceAll(text, " -\n", "")
	text = strings.ReplaceAll(text, "-\n", "")
	text = strings.ReplaceAll(text, "\r\n", " ")
	text = strings.ReplaceAll(text, "\n", " ")
	for _, s := range removeStrings {
		if s == "" {
			continue
		}
		text = strings.ReplaceAll(text, s, " ")
	}
	text = spaceRe.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}

// WordCount counts whitespace-separated words.
func WordCount(text string) int {
	return len(strings.Fields(text))
}
