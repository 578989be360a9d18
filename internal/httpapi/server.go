package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"ragdb/internal/domain"
	"ragdb/internal/metrics"
	"ragdb/internal/service"
)

// Querier answers one-off questions.
type Querier interface {
	Query(ctx context.Context, question string) (service.Response, error)
}

// Chatter answers questions inside a session.
type Chatter interface {
	Chat(ctx context.Context, session, question string) (service.Response, error)
	Reset(ctx context.Context, session string) error
}

// BookLister lists stored books.
type BookLister interface {
	ListBooks(ctx context.Context) ([]domain.Book, error)
}

// Server exposes the query and chat engines over HTTP.
type Server struct {
	query         Querier
	chat          Chatter
	books         BookLister
	metrics       *metrics.Collector
	addReferences bool
	log           *zap.Logger
}

func New(query Querier, chat Chatter, books BookLister, m *metrics.Collector, addReferences bool, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{query: query, chat: chat, books: books, metrics: m, addReferences: addReferences, log: log}
}

// Handler returns the routes of the API.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.healthHandler)
	mux.HandleFunc("/books", s.booksHandler)
	mux.HandleFunc("/ask", s.askHandler)
	mux.HandleFunc("/chat", s.chatHandler)
	mux.HandleFunc("/chat/reset", s.resetHandler)
	mux.Handle("/metrics", s.metrics.Handler())
	return mux
}

type source struct {
	ID       string  `json:"id"`
	FileName string  `json:"file_name"`
	Page     int     `json:"page_label"`
	Distance float64 `json:"distance"`
	Score    float64 `json:"score"`
	Text     string  `json:"text"`
}

type answer struct {
	SessionID  string   `json:"session_id,omitempty"`
	Answer     string   `json:"answer"`
	Output     string   `json:"output"`
	Translated bool     `json:"translated"`
	Sources    []source `json:"sources"`
}

type questionRequest struct {
	SessionID string `json:"session_id"`
	Question  string `json:"question"`
}

func (s *Server) toAnswer(session string, r service.Response) answer {
	out := answer{
		SessionID:  session,
		Answer:     r.Answer,
		Output:     service.FormatOutput(r, s.addReferences),
		Translated: r.Translated,
		Sources:    make([]source, len(r.Sources)),
	}
	for i, res := range r.Sources {
		out.Sources[i] = source{
			ID:       res.Chunk.ID,
			FileName: res.Chunk.BookName,
			Page:     res.Chunk.PageNum,
			Distance: res.Distance,
			Score:    res.Score,
			Text:     res.Chunk.Text,
		}
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) fail(w http.ResponseWriter, err error) {
	if errors.Is(err, domain.ErrEmptyQuery) {
		http.Error(w, "question is required", http.StatusBadRequest)
		return
	}
	s.log.Error("request failed", zap.Error(err))
	http.Error(w, "internal error", http.StatusInternalServerError)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) booksHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	books, err := s.books.ListBooks(r.Context())
	if err != nil {
		s.fail(w, err)
		return
	}
	type book struct {
		ID     int64  `json:"id"`
		Name   string `json:"name"`
		Chunks int    `json:"chunks"`
	}
	out := make([]book, len(books))
	for i, b := range books {
		out[i] = book{ID: b.ID, Name: b.Name, Chunks: b.Chunks}
	}
	writeJSON(w, http.StatusOK, out)
}

func decodeQuestion(w http.ResponseWriter, r *http.Request) (questionRequest, bool) {
	var req questionRequest
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return req, false
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return req, false
	}
	return req, true
}

func (s *Server) askHandler(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeQuestion(w, r)
	if !ok {
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		http.Error(w, "question is required", http.StatusBadRequest)
		return
	}
	resp, err := s.query.Query(r.Context(), req.Question)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.toAnswer("", resp))
}

func (s *Server) chatHandler(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeQuestion(w, r)
	if !ok {
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		http.Error(w, "question is required", http.StatusBadRequest)
		return
	}
	session := req.SessionID
	if session == "" {
		session = uuid.NewString()
	}
	resp, err := s.chat.Chat(r.Context(), session, req.Question)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.toAnswer(session, resp))
}

func (s *Server) resetHandler(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeQuestion(w, r)
	if !ok {
		return
	}
	if req.SessionID == "" {
		http.Error(w, "session_id is required", http.StatusBadRequest)
		return
	}
	if err := s.chat.Reset(r.Context(), req.SessionID); err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "reset", "session_id": req.SessionID})
}
