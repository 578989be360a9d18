package llm

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/mistral"
	"github.com/tmc/langchaingo/llms/ollama"

	"ragdb/internal/domain"
	"ragdb/internal/tokens"
)

// LangChain adapts a langchaingo model to domain.ChatModel.
type LangChain struct {
	name        string
	model       llms.Model
	temperature float64
	maxTokens   int
	counter     tokens.Counter
}

// NewLangChain wraps model. counter estimates usage when the provider reports none.
func NewLangChain(name string, model llms.Model, temperature float64, maxTokens int, counter tokens.Counter) *LangChain {
	if counter == nil {
		counter = tokens.WordCounter{}
	}
	return &LangChain{name: name, model: model, temperature: temperature, maxTokens: maxTokens, counter: counter}
}

// NewMistral builds a Mistral chat model; the API key comes from apiKeyEnv.
func NewMistral(apiKeyEnv, model string, temperature float64, maxTokens int, counter tokens.Counter) (*LangChain, error) {
	key := os.Getenv(apiKeyEnv)
	if key == "" {
		return nil, fmt.Errorf("missing API key in env %s", apiKeyEnv)
	}
	m, err := mistral.New(mistral.WithAPIKey(key), mistral.WithModel(model))
	if err != nil {
		return nil, fmt.Errorf("mistral init: %w", err)
	}
	return NewLangChain("mistral:"+model, m, temperature, maxTokens, counter), nil
}

// NewOllama builds a chat model served by a local Ollama.
func NewOllama(serverURL, model string, temperature float64, maxTokens int, counter tokens.Counter) (*LangChain, error) {
	opts := []ollama.Option{ollama.WithModel(model)}
	if serverURL != "" {
		opts = append(opts, ollama.WithServerURL(serverURL))
	}
	m, err := ollama.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("ollama init: %w", err)
	}
	return NewLangChain("ollama:"+model, m, temperature, maxTokens, counter), nil
}

func (l *LangChain) Name() string { return l.name }

func messageType(r domain.Role) llms.ChatMessageType {
	switch r {
	case domain.RoleSystem:
		return llms.ChatMessageTypeSystem
	case domain.RoleAssistant:
		return llms.ChatMessageTypeAI
	default:
		return llms.ChatMessageTypeHuman
	}
}

func (l *LangChain) Complete(ctx context.Context, messages []domain.Message) (domain.Completion, error) {
	content := make([]llms.MessageContent, len(messages))
	prompt := make([]string, len(messages))
	for i, m := range messages {
		content[i] = llms.TextParts(messageType(m.Role), m.Content)
		prompt[i] = m.Content
	}
	resp, err := l.model.GenerateContent(ctx, content,
		llms.WithTemperature(l.temperature),
		llms.WithMaxTokens(l.maxTokens))
	if err != nil {
		return domain.Completion{}, fmt.Errorf("generation failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return domain.Completion{}, errors.New("generation returned no choices")
	}
	choice := resp.Choices[0]
	out := domain.Completion{Text: choice.Content}
	out.PromptTokens = intInfo(choice.GenerationInfo, "PromptTokens")
	out.CompletionTokens = intInfo(choice.GenerationInfo, "CompletionTokens")
	if out.PromptTokens == 0 {
		out.PromptTokens = tokens.CountMessages(l.counter, prompt...)
	}
	if out.CompletionTokens == 0 {
		out.CompletionTokens = l.counter.Count(choice.Content)
	}
	return out, nil
}

func intInfo(info map[string]any, key string) int {
	switch v := info[key].(type) {
	case int:
		return v
	case int32:
		return int(v)
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return 0
	}
}
