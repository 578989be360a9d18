package tui

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"ragdb/internal/chunker"
	"ragdb/internal/domain"
	"ragdb/internal/service"
)

// ChatPort is the TUI-facing subset of the chat engine.
type ChatPort interface {
	Chat(ctx context.Context, session, question string) (service.Response, error)
	Reset(ctx context.Context, session string) error
	Usage() *service.TokenUsage
	Questions() int
}

type entry struct {
	role domain.Role
	text string
}

type answerMsg struct {
	question string
	resp     service.Response
	err      error
	elapsed  time.Duration
}

type resetMsg struct{ err error }

// Model is the Bubble Tea model for the chat application.
type Model struct {
	ctx           context.Context
	engine        ChatPort
	session       string
	summary       string
	addReferences bool

	input    textinput.Model
	viewport viewport.Model
	spinner  spinner.Model

	transcript  []entry
	sources     []domain.SearchResult
	showSources bool
	cursor      int
	lastQuery   string
	waiting     bool
	status      string
	ready       bool
}

// New creates a chat model bound to one session. Engine calls run under ctx.
func New(ctx context.Context, engine ChatPort, session, summary string, addReferences bool) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Ask a question and press Enter"
	ti.Focus()
	ti.CharLimit = 0
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	return Model{
		ctx:           ctx,
		engine:        engine,
		session:       session,
		summary:       summary,
		addReferences: addReferences,
		input:         ti,
		viewport:      viewport.New(0, 0),
		spinner:       sp,
		status:        "Hello, how can I help you? (ctrl+r clears history, tab shows sources)",
	}
}

// Init initializes the model (text input cursor blink).
func (m Model) Init() tea.Cmd { return textinput.Blink }

func (m Model) ask(q string) tea.Cmd {
	ctx, engine, session := m.ctx, m.engine, m.session
	return func() tea.Msg {
		start := time.Now()
		resp, err := engine.Chat(ctx, session, q)
		return answerMsg{question: q, resp: resp, err: err, elapsed: time.Since(start)}
	}
}

func (m Model) reset() tea.Cmd {
	ctx, engine, session := m.ctx, m.engine, m.session
	return func() tea.Msg {
		return resetMsg{err: engine.Reset(ctx, session)}
	}
}

// Update handles key, window and engine events.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		_, rh := resultBoxStyle.GetFrameSize()
		_, qh := queryBoxStyle.GetFrameSize()
		reserved := 2 + 1 + qh + 1 // header + summary, status, input box, spacer
		vh := msg.Height - reserved
		if vh < 3 {
			vh = 3
		}
		m.viewport.Width = max(20, msg.Width)
		m.viewport.Height = max(3, vh-rh)
		m.refresh()
		return m, nil
	case answerMsg:
		m.waiting = false
		if msg.err != nil {
			m.status = "Error: " + msg.err.Error()
			m.refresh()
			return m, nil
		}
		m.transcript = append(m.transcript, entry{role: domain.RoleAssistant, text: service.FormatOutput(msg.resp, m.addReferences)})
		m.sources = msg.resp.Sources
		m.cursor = 0
		m.lastQuery = msg.question
		prompt, completion := m.engine.Usage().Totals()
		m.status = fmt.Sprintf("Question n. %d | Elapsed time: %.1f sec. | LLM Prompt Tokens: %d | LLM Completion Tokens: %d",
			m.engine.Questions(), msg.elapsed.Seconds(), prompt, completion)
		m.refresh()
		return m, nil
	case resetMsg:
		if msg.err != nil {
			m.status = "Error: " + msg.err.Error()
		} else {
			m.transcript = nil
			m.sources = nil
			m.showSources = false
			m.status = "Chat history cleared."
		}
		m.refresh()
		return m, nil
	case spinner.TickMsg:
		if !m.waiting {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyCtrlD {
			return m, tea.Quit
		}
		switch msg.String() {
		case "ctrl+r":
			if m.waiting {
				return m, nil
			}
			return m, m.reset()
		case "tab":
			m.showSources = !m.showSources
			m.refresh()
			return m, nil
		case "enter":
			q := strings.TrimSpace(m.input.Value())
			if q == "" || m.waiting {
				return m, nil
			}
			m.input.SetValue("")
			m.transcript = append(m.transcript, entry{role: domain.RoleUser, text: q})
			m.waiting = true
			m.status = "Waiting..."
			m.refresh()
			return m, tea.Batch(m.spinner.Tick, m.ask(q))
		case "down":
			if m.showSources && len(m.sources) > 0 {
				m.cursor = (m.cursor + 1) % len(m.sources)
				m.refresh()
				return m, nil
			}
		case "up":
			if m.showSources && len(m.sources) > 0 {
				m.cursor = (m.cursor - 1 + len(m.sources)) % len(m.sources)
				m.refresh()
				return m, nil
			}
		case "pgup", "pgdown":
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *Model) refresh() {
	if m.showSources {
		m.viewport.SetContent(m.renderCurrentSource())
		return
	}
	m.viewport.SetContent(m.renderTranscript())
	m.viewport.GotoBottom()
}

// View renders the layout.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	header := lipgloss.NewStyle().Bold(true).Render("RAG Assistant")
	summary := lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Render(m.summary)
	input := queryBoxStyle.Render(m.input.View())
	status := m.status
	if m.waiting {
		status = m.spinner.View() + " " + status
	}
	status = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Render(status)
	results := resultBoxStyle.Render(m.viewport.View())
	return header + "\n" + summary + "\n" + results + "\n" + input + "\n" + status
}

func (m Model) renderTranscript() string {
	if len(m.transcript) == 0 {
		return "No messages yet."
	}
	parts := make([]string, len(m.transcript))
	for i, e := range m.transcript {
		label := assistantStyle.Render("assistant")
		if e.role == domain.RoleUser {
			label = userStyle.Render("you")
		}
		parts[i] = label + "\n" + e.text
	}
	return strings.Join(parts, "\n\n")
}

func (m Model) renderCurrentSource() string {
	if len(m.sources) == 0 {
		return "No sources yet."
	}
	r := m.sources[m.cursor]
	title := fmt.Sprintf("Source %d/%d  %s p.%d  distance=%.3f", m.cursor+1, len(m.sources), r.Chunk.BookName, r.Chunk.PageNum, r.Distance)
	body := highlightBestSentence(r.Chunk.Text, m.lastQuery)
	return title + "\n\n" + body
}

var (
	resultBoxStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	queryBoxStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	highlightStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
	userStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	assistantStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("13")).Bold(true)
	unicodeWordRe  = regexp.MustCompile(`\p{L}+(?:['’]\p{L}+)*`)
)

// highlightBestSentence marks the sentence sharing the most words with query.
func highlightBestSentence(text, query string) string {
	if strings.TrimSpace(text) == "" {
		return text
	}
	sentences := chunker.Sentences(text)
	qTokens := toTokenSet(query)
	if len(qTokens) == 0 {
		return strings.Join(sentences, " ")
	}
	bestIdx := 0
	bestScore := -1
	for i, s := range sentences {
		score := tokenOverlapScore(qTokens, s)
		if score > bestScore {
			bestScore = score
			bestIdx = i
		}
	}
	for i := range sentences {
		sent := strings.TrimSpace(sentences[i])
		if i == bestIdx {
			sentences[i] = highlightStyle.Render(sent)
		} else {
			sentences[i] = sent
		}
	}
	return strings.Join(sentences, " ")
}

func toTokenSet(s string) map[string]struct{} {
	tokens := unicodeWordRe.FindAllString(strings.ToLower(s), -1)
	m := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		m[t] = struct{}{}
	}
	return m
}

func tokenOverlapScore(queryTokens map[string]struct{}, sentence string) int {
	score := 0
	tokens := unicodeWordRe.FindAllString(strings.ToLower(sentence), -1)
	seen := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		if _, ok := queryTokens[t]; ok {
			score++
		}
	}
	return score
}
