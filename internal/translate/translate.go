package translate

import (
	"context"
	"fmt"
	"strings"

	"ragdb/internal/domain"
)

var languageNames = map[string]string{
	"en": "English",
	"it": "Italian",
	"fr": "French",
	"de": "German",
	"es": "Spanish",
	"pt": "Portuguese",
}

func languageName(code string) string {
	if n, ok := languageNames[strings.ToLower(code)]; ok {
		return n
	}
	return code
}

// LLM translates texts by prompting a chat model, one request per text.
type LLM struct {
	model  domain.ChatModel
	source string
	target string
}

// New returns a translator from source to target language codes (defaults en → it).
func New(model domain.ChatModel, source, target string) *LLM {
	if source == "" {
		source = "en"
	}
	if target == "" {
		target = "it"
	}
	return &LLM{model: model, source: source, target: target}
}

func (t *LLM) Translate(ctx context.Context, texts []string) ([]string, error) {
	system := fmt.Sprintf(
		"Translate the user's text from %s to %s. Keep formatting, names and numbers unchanged. Reply with the translation only.",
		languageName(t.source), languageName(t.target))
	out := make([]string, len(texts))
	for i, text := range texts {
		if strings.TrimSpace(text) == "" {
			out[i] = text
			continue
		}
		c, err := t.model.Complete(ctx, []domain.Message{
			{Role: domain.RoleSystem, Content: system},
			{Role: domain.RoleUser, Content: text},
		})
		if err != nil {
			return nil, fmt.Errorf("translate text %d: %w", i, err)
		}
		out[i] = strings.TrimSpace(c.Text)
	}
	return out, nil
}

// Required reports whether question asks for a translation by containing trigger.
func Required(question, trigger string) bool {
	if trigger == "" {
		return false
	}
	return strings.Contains(strings.ToLower(question), strings.ToLower(trigger))
}
