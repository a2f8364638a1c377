// Package tui is the interactive chat front end: a stateless render loop
// over the session's conversation log.
package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"archive-rag/internal/domain"
	"archive-rag/internal/session"
)

// Asker is the TUI-facing subset of the session bot.
type Asker interface {
	Ask(ctx context.Context, question string, turns []domain.Turn) (session.Answer, error)
}

// Model is the Bubble Tea model for the chat session.
type Model struct {
	bot        Asker
	history    *session.History
	input      textinput.Model
	viewport   viewport.Model
	transcript []string
	status     string
	ready      bool
	waiting    bool
}

// New creates a new chat model instance.
func New(bot Asker) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Ask a question and press Enter"
	ti.Focus()
	ti.CharLimit = 0
	vp := viewport.New(0, 0)
	return Model{
		bot:      bot,
		history:  &session.History{},
		input:    ti,
		viewport: vp,
		status:   "Index loaded. Ask away.",
	}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd { return textinput.Blink }

type answerMsg struct {
	question string
	answer   session.Answer
	err      error
}

func (m Model) ask(question string) tea.Cmd {
	turns := m.history.Turns()
	bot := m.bot
	return func() tea.Msg {
		ans, err := bot.Ask(context.Background(), question, turns)
		return answerMsg{question: question, answer: ans, err: err}
	}
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		_, ch := chatBoxStyle.GetFrameSize()
		_, qh := queryBoxStyle.GetFrameSize()
		reserved := 1 + 1 + qh + 1 // header, status, input frame, spacer
		vh := msg.Height - reserved
		if vh < 3 {
			vh = 3
		}
		m.viewport.Width = max(20, msg.Width)
		m.viewport.Height = max(3, vh-ch)
		m.viewport.SetContent(m.renderTranscript())
		return m, nil

	case answerMsg:
		m.waiting = false
		if msg.err != nil {
			m.status = "Error: " + msg.err.Error()
			return m, nil
		}
		m.history.Append(domain.RoleUser, msg.question)
		m.history.Append(domain.RoleAssistant, msg.answer.Text)
		m.transcript = append(m.transcript,
			userStyle.Render("You: ")+msg.question,
			botStyle.Render("Bot: ")+msg.answer.Text)
		if srcs := renderSources(msg.answer.Sources); srcs != "" {
			m.transcript = append(m.transcript, sourceStyle.Render(srcs))
		}
		m.status = "Ready."
		m.viewport.SetContent(m.renderTranscript())
		m.viewport.GotoBottom()
		return m, nil

	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyCtrlD {
			return m, tea.Quit
		}
		if msg.String() == "enter" && !m.waiting {
			q := strings.TrimSpace(m.input.Value())
			if q != "" {
				m.input.Reset()
				m.waiting = true
				m.status = "Thinking..."
				return m, m.ask(q)
			}
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// View renders the chat layout.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	header := lipgloss.NewStyle().Bold(true).Render("Archive Chat")
	chat := chatBoxStyle.Render(m.viewport.View())
	input := queryBoxStyle.Render(m.input.View())
	status := statusStyle.Render(m.status)
	return header + "\n" + chat + "\n" + input + "\n" + status
}

func (m Model) renderTranscript() string {
	if len(m.transcript) == 0 {
		return "No messages yet."
	}
	return strings.Join(m.transcript, "\n\n")
}

func renderSources(sources []domain.Chunk) string {
	if len(sources) == 0 {
		return ""
	}
	lines := make([]string, 0, len(sources))
	seen := make(map[string]struct{}, len(sources))
	for _, s := range sources {
		if _, dup := seen[s.ParentURI]; dup {
			continue
		}
		seen[s.ParentURI] = struct{}{}
		lines = append(lines, fmt.Sprintf("  • %s (%s)", s.Title, s.ParentURI))
	}
	return "Sources:\n" + strings.Join(lines, "\n")
}

var (
	chatBoxStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	queryBoxStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	userStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	botStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true)
	sourceStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	statusStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
)

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
