package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"document-qa/internal/models"
)

// SessionPort is the TUI-facing subset of the document session.
type SessionPort interface {
	IngestFiles(ctx context.Context, paths ...string) ([]*models.Document, error)
	IngestURL(ctx context.Context, rawURL string) (*models.Document, error)
	Ask(ctx context.Context, question string) (*models.Answer, error)
	Reset() error
}

type entryKind int

const (
	entryQuestion entryKind = iota
	entryAnswer
	entryInfo
	entryError
)

type entry struct {
	kind entryKind
	text string
}

type ingestedMsg struct {
	sources []string
	err     error
}

type answerMsg struct {
	answer *models.Answer
	err    error
}

// Model is the Bubble Tea model for the chat window. Questions and answers are shown
// in the order they happened; "/add" ingests a file or URL.
type Model struct {
	ctx        context.Context
	session    SessionPort
	input      textinput.Model
	viewport   viewport.Model
	transcript []entry
	status     string
	busy       bool
	ready      bool
}

func New(ctx context.Context, session SessionPort) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Ask a question, or /add <file|url>"
	ti.Focus()
	ti.CharLimit = 0
	return Model{
		ctx:      ctx,
		session:  session,
		input:    ti,
		viewport: viewport.New(0, 0),
		status:   "Ready. /add <file|url>, /reset, /quit",
	}
}

func (m Model) Init() tea.Cmd { return textinput.Blink }

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		_, th := transcriptBoxStyle.GetFrameSize()
		_, ih := inputBoxStyle.GetFrameSize()
		reserved := 1 + 1 + ih + 1 // header, status, input box, spacer
		m.viewport.Width = max(20, msg.Width-2)
		m.viewport.Height = max(3, msg.Height-reserved-th)
		m.refresh()
		return m, nil

	case ingestedMsg:
		m.busy = false
		if msg.err != nil {
			m.add(entryError, msg.err.Error())
			m.status = "Ingestion failed"
		} else {
			m.add(entryInfo, "Added "+strings.Join(msg.sources, ", "))
			m.status = fmt.Sprintf("%d document(s) added", len(msg.sources))
		}
		return m, nil

	case answerMsg:
		m.busy = false
		if msg.err != nil {
			m.add(entryError, msg.err.Error())
			m.status = "Question failed"
			return m, nil
		}
		text := msg.answer.Content
		if len(msg.answer.Sources) > 0 {
			text += "\n(sources: " + strings.Join(msg.answer.Sources, ", ") + ")"
		}
		m.add(entryAnswer, text)
		m.status = "Ready"
		return m, nil

	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyCtrlD {
			return m, tea.Quit
		}
		if msg.Type == tea.KeyEnter {
			return m.submit()
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) submit() (tea.Model, tea.Cmd) {
	line := strings.TrimSpace(m.input.Value())
	if line == "" {
		return m, nil
	}
	if m.busy {
		m.status = "Still working on the previous request"
		return m, nil
	}
	m.input.SetValue("")

	command, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)
	switch command {
	case "/quit", "/exit":
		return m, tea.Quit
	case "/reset":
		if err := m.session.Reset(); err != nil {
			m.add(entryError, err.Error())
			return m, nil
		}
		m.transcript = nil
		m.refresh()
		m.status = "Session cleared"
		return m, nil
	case "/add":
		if arg == "" {
			m.status = "Usage: /add <file|url>"
			return m, nil
		}
		m.busy = true
		m.status = "Ingesting " + arg + "..."
		return m, m.ingest(arg)
	}

	m.add(entryQuestion, line)
	m.busy = true
	m.status = "Thinking..."
	return m, m.ask(line)
}

func (m Model) ingest(target string) tea.Cmd {
	ctx, session := m.ctx, m.session
	return func() tea.Msg {
		if strings.HasPrefix(target, "http://") || strings.HasPrefix(target, "https://") {
			doc, err := session.IngestURL(ctx, target)
			if err != nil {
				return ingestedMsg{err: err}
			}
			return ingestedMsg{sources: []string{doc.Source}}
		}
		docs, err := session.IngestFiles(ctx, target)
		if err != nil {
			return ingestedMsg{err: err}
		}
		sources := make([]string, len(docs))
		for i, d := range docs {
			sources[i] = d.Source
		}
		return ingestedMsg{sources: sources}
	}
}

func (m Model) ask(question string) tea.Cmd {
	ctx, session := m.ctx, m.session
	return func() tea.Msg {
		answer, err := session.Ask(ctx, question)
		return answerMsg{answer: answer, err: err}
	}
}

func (m *Model) add(kind entryKind, text string) {
	m.transcript = append(m.transcript, entry{kind: kind, text: text})
	m.refresh()
}

func (m *Model) refresh() {
	m.viewport.SetContent(m.renderTranscript())
	m.viewport.GotoBottom()
}

func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	header := lipgloss.NewStyle().Bold(true).Render("Document QA")
	transcript := transcriptBoxStyle.Render(m.viewport.View())
	input := inputBoxStyle.Render(m.input.View())
	status := statusStyle.Render(m.status)
	return header + "\n" + transcript + "\n" + input + "\n" + status
}

func (m Model) renderTranscript() string {
	if len(m.transcript) == 0 {
		return "No messages yet."
	}
	width := max(10, m.viewport.Width)
	var sb strings.Builder
	for i, e := range m.transcript {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		var line string
		switch e.kind {
		case entryQuestion:
			line = questionStyle.Render("You: ") + e.text
		case entryAnswer:
			line = answerStyle.Render("Assistant: ") + e.text
		case entryInfo:
			line = infoStyle.Render(e.text)
		case entryError:
			line = errorStyle.Render("Error: " + e.text)
		}
		sb.WriteString(lipgloss.NewStyle().Width(width).Render(line))
	}
	return sb.String()
}

var (
	transcriptBoxStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	inputBoxStyle      = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	statusStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	questionStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	answerStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
	infoStyle          = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	errorStyle         = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
)
