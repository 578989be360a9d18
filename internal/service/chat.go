package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"ragdb/internal/domain"
)

// Chat modes.
const (
	ModeCondensePlusContext = "condense_plus_context"
	ModeContext             = "context"
)

const condensePrompt = `Given the following conversation between a user and an AI assistant and a follow up question from user,
rephrase the follow up question to be a standalone question.

Chat History:
%s
Follow Up Input: %s
Standalone question:`

const chatSystemPrompt = `You are a chatbot, able to have normal interactions, as well as talk about the documents below.
Here are the relevant documents for the context:

%s

Instruction: Use the previous chat history, or the context above, to interact and help the user.`

// ChatEngine answers questions using retrieval plus a per-session memory.
type ChatEngine struct {
	*generator
	retriever *Retriever
	memory    domain.ChatMemory
	mode      string
}

func NewChatEngine(retriever *Retriever, llm domain.ChatModel, memory domain.ChatMemory, mode string, opts Options) (*ChatEngine, error) {
	switch mode {
	case "":
		mode = ModeCondensePlusContext
	case ModeCondensePlusContext, ModeContext:
	default:
		return nil, fmt.Errorf("unknown chat mode: %s", mode)
	}
	return &ChatEngine{generator: newGenerator(llm, opts), retriever: retriever, memory: memory, mode: mode}, nil
}

func (e *ChatEngine) Mode() string { return e.mode }

// Chat answers question in the given session and records both turns.
func (e *ChatEngine) Chat(ctx context.Context, session, question string) (Response, error) {
	if strings.TrimSpace(question) == "" {
		return Response{}, domain.ErrEmptyQuery
	}
	start := time.Now()
	history, err := e.memory.History(ctx, session)
	if err != nil {
		return Response{}, err
	}

	searchQuery := question
	if e.mode == ModeCondensePlusContext && len(history) > 0 {
		searchQuery, err = e.condense(ctx, history, question)
		if err != nil {
			return Response{}, err
		}
	}

	sources, err := e.retriever.Retrieve(ctx, searchQuery)
	if err != nil {
		return Response{}, err
	}

	messages := make([]domain.Message, 0, len(history)+2)
	messages = append(messages, domain.Message{Role: domain.RoleSystem, Content: fmt.Sprintf(chatSystemPrompt, contextBlock(sources))})
	messages = append(messages, history...)
	messages = append(messages, domain.Message{Role: domain.RoleUser, Content: question})
	c, err := e.complete(ctx, messages)
	if err != nil {
		return Response{}, err
	}

	if err := e.memory.Append(ctx, session,
		domain.Message{Role: domain.RoleUser, Content: question},
		domain.Message{Role: domain.RoleAssistant, Content: c.Text},
	); err != nil {
		return Response{}, err
	}

	answer, translated, err := e.finish(ctx, question, c.Text)
	if err != nil {
		return Response{}, err
	}
	e.logTurn(e.mode, start)
	return Response{Answer: answer, Sources: sources, Translated: translated}, nil
}

func (e *ChatEngine) condense(ctx context.Context, history []domain.Message, question string) (string, error) {
	var b strings.Builder
	for _, m := range history {
		fmt.Fprintf(&b, "%s: %s\n", m.Role, m.Content)
	}
	c, err := e.complete(ctx, []domain.Message{
		{Role: domain.RoleUser, Content: fmt.Sprintf(condensePrompt, b.String(), question)},
	})
	if err != nil {
		return "", fmt.Errorf("condense question: %w", err)
	}
	q := strings.TrimSpace(c.Text)
	if q == "" {
		return question, nil
	}
	return q, nil
}

// Reset clears the history of session.
func (e *ChatEngine) Reset(ctx context.Context, session string) error {
	return e.memory.Reset(ctx, session)
}
