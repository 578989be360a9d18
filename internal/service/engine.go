package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"ragdb/internal/domain"
	"ragdb/internal/metrics"
	"ragdb/internal/translate"
)

const contextPrompt = `Context information is below.
---------------------
%s
---------------------
Given the context information and not prior knowledge, answer the query.
Query: %s
Answer: `

// Response is an answer plus the chunks it was grounded on.
type Response struct {
	Answer     string
	Sources    []domain.SearchResult
	Translated bool
}

// FormatOutput appends a reference block listing the source pages.
func FormatOutput(r Response, addReferences bool) string {
	out := r.Answer
	if !addReferences || len(r.Sources) == 0 {
		return out
	}
	var b strings.Builder
	b.WriteString(out)
	b.WriteString("\n\n Ref.:\n\n")
	for _, s := range r.Sources {
		b.WriteString(s.Chunk.Reference())
		b.WriteString("  \n")
	}
	return b.String()
}

// TokenUsage accumulates LLM token counts across calls.
type TokenUsage struct {
	mu         sync.Mutex
	prompt     int
	completion int
}

func (u *TokenUsage) Add(c domain.Completion) {
	u.mu.Lock()
	u.prompt += c.PromptTokens
	u.completion += c.CompletionTokens
	u.mu.Unlock()
}

// Totals returns the prompt and completion tokens counted so far.
func (u *TokenUsage) Totals() (prompt, completion int) {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.prompt, u.completion
}

func (u *TokenUsage) Reset() {
	u.mu.Lock()
	u.prompt, u.completion = 0, 0
	u.mu.Unlock()
}

// Options are the engine settings shared by QueryEngine and ChatEngine.
type Options struct {
	Translator  domain.Translator
	TriggerWord string
	Log         *zap.Logger
	Metrics     *metrics.Collector
	Usage       *TokenUsage
}

// generator runs LLM calls, tracks usage and applies the translation trigger.
type generator struct {
	llm        domain.ChatModel
	translator domain.Translator
	trigger    string
	usage      *TokenUsage
	log        *zap.Logger
	metrics    *metrics.Collector

	mu        sync.Mutex
	questions int
}

func newGenerator(llm domain.ChatModel, opts Options) *generator {
	g := &generator{
		llm:        llm,
		translator: opts.Translator,
		trigger:    opts.TriggerWord,
		usage:      opts.Usage,
		log:        opts.Log,
		metrics:    opts.Metrics,
	}
	if g.usage == nil {
		g.usage = &TokenUsage{}
	}
	if g.log == nil {
		g.log = zap.NewNop()
	}
	return g
}

func (g *generator) complete(ctx context.Context, messages []domain.Message) (domain.Completion, error) {
	start := time.Now()
	c, err := g.llm.Complete(ctx, messages)
	g.metrics.ObserveStage(metrics.StageLLM, start)
	if err != nil {
		return domain.Completion{}, err
	}
	g.usage.Add(c)
	g.metrics.AddTokens(c.PromptTokens, c.CompletionTokens)
	return c, nil
}

// finish translates the answer when the question carries the trigger word.
func (g *generator) finish(ctx context.Context, question, answer string) (string, bool, error) {
	if g.translator == nil || !translate.Required(question, g.trigger) {
		return answer, false, nil
	}
	g.log.Info("translating answer")
	out, err := g.translator.Translate(ctx, []string{answer})
	if err != nil {
		return "", false, fmt.Errorf("translate answer: %w", err)
	}
	return out[0], true, nil
}

func (g *generator) logTurn(mode string, start time.Time) {
	g.mu.Lock()
	g.questions++
	n := g.questions
	g.mu.Unlock()
	g.metrics.IncQuestion(mode)
	prompt, completion := g.usage.Totals()
	g.log.Info("question answered",
		zap.Int("question", n),
		zap.String("mode", mode),
		zap.Float64("elapsed_sec", time.Since(start).Round(100*time.Millisecond).Seconds()),
		zap.Int("llm_prompt_tokens", prompt),
		zap.Int("llm_completion_tokens", completion))
}

// Usage exposes the running token totals.
func (g *generator) Usage() *TokenUsage { return g.usage }

// Questions returns how many questions were answered.
func (g *generator) Questions() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.questions
}

func contextBlock(results []domain.SearchResult) string {
	parts := make([]string, len(results))
	for i, r := range results {
		parts[i] = fmt.Sprintf("file_name: %s\npage_label: %d\n\n%s", r.Chunk.BookName, r.Chunk.PageNum, r.Chunk.Text)
	}
	return strings.Join(parts, "\n\n")
}

// QueryEngine answers single questions without history.
type QueryEngine struct {
	*generator
	retriever *Retriever
}

func NewQueryEngine(retriever *Retriever, llm domain.ChatModel, opts Options) *QueryEngine {
	return &QueryEngine{generator: newGenerator(llm, opts), retriever: retriever}
}

func (q *QueryEngine) Query(ctx context.Context, question string) (Response, error) {
	start := time.Now()
	sources, err := q.retriever.Retrieve(ctx, question)
	if err != nil {
		return Response{}, err
	}
	c, err := q.complete(ctx, []domain.Message{
		{Role: domain.RoleUser, Content: fmt.Sprintf(contextPrompt, contextBlock(sources), question)},
	})
	if err != nil {
		return Response{}, err
	}
	answer, translated, err := q.finish(ctx, question, c.Text)
	if err != nil {
		return Response{}, err
	}
	q.logTurn("query", start)
	return Response{Answer: answer, Sources: sources, Translated: translated}, nil
}
