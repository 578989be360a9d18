package domain

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrBookExists is returned when a book with the same name is already stored.
	ErrBookExists = errors.New("book already stored")
	// ErrNotFound is returned when a named book does not exist.
	ErrNotFound = errors.New("not found")
	// ErrEmptyQuery is returned for blank questions.
	ErrEmptyQuery = errors.New("empty query")
)

// Book is one ingested source file.
type Book struct {
	ID     int64
	Name   string
	Chunks int
}

// Page is a single page of text extracted from a source file. Number is 1-based.
type Page struct {
	Number int
	Text   string
}

// Document represents a single file loaded into the system.
type Document struct {
	Path  string
	Name  string
	Pages []Page
}

// Chunk is the unit of embedding and retrieval: a cleaned page, or part of one.
type Chunk struct {
	ID       string
	BookName string
	PageNum  int
	Text     string
}

// Reference is the source line shown under answers.
func (c Chunk) Reference() string {
	return fmt.Sprintf("file_name: %s, page_label: %d", c.BookName, c.PageNum)
}

// SearchResult represents a matching chunk with its distance and similarity score.
type SearchResult struct {
	Chunk    Chunk
	Distance float64
	Score    float64
}

// SaveStats reports what SaveBook wrote.
type SaveStats struct {
	BookID   int64
	Inserted int
	Skipped  int
}

// Role of a chat message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is a single chat turn.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Completion is the text returned by a chat model plus its token usage.
type Completion struct {
	Text             string
	PromptTokens     int
	CompletionTokens int
}

// Embedder converts free text into numeric vectors via a remote (or local) model.
// Documents and queries are embedded separately since some models distinguish them.
type Embedder interface {
	Name() string
	Dimension() int
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// VectorStore persists books, chunks and vectors and supports similarity search.
type VectorStore interface {
	Init(ctx context.Context) error
	SaveBook(ctx context.Context, name string, chunks []Chunk, vectors [][]float32) (SaveStats, error)
	Search(ctx context.Context, vector []float32, topK int) ([]SearchResult, error)
	BookExists(ctx context.Context, name string) (bool, error)
	ListBooks(ctx context.Context) ([]Book, error)
	DeleteBook(ctx context.Context, name string) error
	Close() error
}

// BookReplacer is implemented by stores that can swap a stored book for a new
// copy atomically.
type BookReplacer interface {
	ReplaceBook(ctx context.Context, name string, chunks []Chunk, vectors [][]float32) (SaveStats, error)
}

// Reranker reorders retrieval results by relevance to the query and keeps the best topN.
type Reranker interface {
	Name() string
	Rerank(ctx context.Context, query string, results []SearchResult, topN int) ([]SearchResult, error)
}

// ChatModel produces a completion for a list of messages.
type ChatModel interface {
	Name() string
	Complete(ctx context.Context, messages []Message) (Completion, error)
}

// Translator translates a batch of texts.
type Translator interface {
	Translate(ctx context.Context, texts []string) ([]string, error)
}

// ChatMemory keeps per-session message history bounded by a token budget.
type ChatMemory interface {
	Append(ctx context.Context, session string, messages ...Message) error
	History(ctx context.Context, session string) ([]Message, error)
	Reset(ctx context.Context, session string) error
}
