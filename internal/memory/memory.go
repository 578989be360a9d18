package memory

import (
	"context"
	"sync"

	"ragdb/internal/domain"
	"ragdb/internal/tokens"
)

// DefaultTokenLimit bounds the history returned to the chat engine.
const DefaultTokenLimit = 2800

// fit keeps the newest messages whose token total stays within limit.
// The latest message is always considered, but a trimmed history never opens
// on an assistant message, so the result may be empty.
func fit(messages []domain.Message, limit int, counter tokens.Counter) []domain.Message {
	if len(messages) == 0 {
		return nil
	}
	if limit <= 0 {
		limit = DefaultTokenLimit
	}
	total := 0
	start := len(messages)
	for i := len(messages) - 1; i >= 0; i-- {
		n := counter.Count(messages[i].Content)
		if total+n > limit && start < len(messages) {
			break
		}
		total += n
		start = i
	}
	if start > 0 {
		for start < len(messages) && messages[start].Role == domain.RoleAssistant {
			start++
		}
	}
	if start == len(messages) {
		return nil
	}
	out := make([]domain.Message, len(messages)-start)
	copy(out, messages[start:])
	return out
}

// Buffer keeps chat history in process memory.
type Buffer struct {
	mu       sync.Mutex
	sessions map[string][]domain.Message
	limit    int
	counter  tokens.Counter
}

func NewBuffer(limit int, counter tokens.Counter) *Buffer {
	if counter == nil {
		counter = tokens.WordCounter{}
	}
	return &Buffer{sessions: make(map[string][]domain.Message), limit: limit, counter: counter}
}

func (b *Buffer) Append(_ context.Context, session string, messages ...domain.Message) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sessions[session] = append(b.sessions[session], messages...)
	return nil
}

func (b *Buffer) History(_ context.Context, session string) ([]domain.Message, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return fit(b.sessions[session], b.limit, b.counter), nil
}

func (b *Buffer) Reset(_ context.Context, session string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.sessions, session)
	return nil
}
