// Package tui implements the interactive chat: a Bubble Tea program for
// terminals and a line-based loop for pipes.
package tui

import (
	"context"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

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

// answerMsg carries the outcome of an asynchronous Ask.
type answerMsg struct {
	question string
	answer   string
	err      error
}

// Model is the Bubble Tea model for the chat.
type Model struct {
	port     ChatPort
	ctx      context.Context
	input    textinput.Model
	viewport viewport.Model
	spinner  spinner.Model
	entries  []entry
	header   string
	status   string
	pending  bool
	ready    bool
}

// New creates a chat model. header is shown above the transcript.
func New(ctx context.Context, port ChatPort, header string) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Ask a question, or /help"
	ti.Focus()
	ti.CharLimit = 0
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	return Model{
		port:     port,
		ctx:      ctx,
		input:    ti,
		viewport: viewport.New(0, 0),
		spinner:  sp,
		header:   header,
		status:   "Ready. Type /help for commands.",
	}
}

// Init initializes the model (text input cursor blink).
func (m Model) Init() tea.Cmd { return textinput.Blink }

// Update handles key, window and answer events.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		_, rh := transcriptBoxStyle.GetFrameSize()
		_, qh := inputBoxStyle.GetFrameSize()
		reserved := 2 + 1 + qh + 1 // header, status, input box, spacer
		m.viewport.Width = max(20, msg.Width-2)
		m.viewport.Height = max(3, msg.Height-reserved-rh)
		m.refresh()
		return m, nil

	case answerMsg:
		m.pending = false
		if msg.err != nil {
			m.entries = append(m.entries, entry{kind: entryError, text: "Error: " + msg.err.Error()})
			m.status = "The question failed. You can ask again."
		} else {
			m.entries = append(m.entries, entry{kind: entryAnswer, text: msg.answer})
			m.status = "Ready."
		}
		m.refresh()
		return m, nil

	case spinner.TickMsg:
		if !m.pending {
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
		case "enter":
			line := strings.TrimSpace(m.input.Value())
			if line == "" {
				return m, nil
			}
			m.input.Reset()
			if cmd, ok := ParseCommand(line); ok {
				return m.command(cmd, line)
			}
			if m.pending {
				m.status = "Still working on the previous question."
				return m, nil
			}
			m.entries = append(m.entries, entry{kind: entryQuestion, text: line})
			m.pending = true
			m.status = "Thinking..."
			m.refresh()
			return m, tea.Batch(m.spinner.Tick, m.ask(line))
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

func (m Model) command(cmd Command, line string) (tea.Model, tea.Cmd) {
	switch cmd {
	case CommandHelp:
		m.entries = append(m.entries, entry{kind: entryInfo, text: HelpText})
	case CommandStats:
		m.entries = append(m.entries, entry{kind: entryInfo, text: m.port.Stats(m.ctx)})
	case CommandClear:
		if m.pending {
			m.status = "Wait for the current answer before clearing."
			return m, nil
		}
		m.port.Clear()
		m.entries = nil
		m.status = "Conversation cleared."
	case CommandQuit:
		return m, tea.Quit
	default:
		m.status = "Unknown command " + line + ". Type /help."
		return m, nil
	}
	m.refresh()
	return m, nil
}

// ask runs the question off the update loop.
func (m Model) ask(question string) tea.Cmd {
	port, ctx := m.port, m.ctx
	return func() tea.Msg {
		res, err := port.Ask(ctx, question)
		if err != nil {
			return answerMsg{question: question, err: err}
		}
		return answerMsg{question: question, answer: FormatAnswer(question, res, func(s string) string { return highlightStyle.Render(s) })}
	}
}

// View renders the header, transcript, input box and status line.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	header := lipgloss.NewStyle().Bold(true).Render("Agentic RAG")
	sub := lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Render(m.header)
	transcript := transcriptBoxStyle.Render(m.viewport.View())
	input := inputBoxStyle.Render(m.input.View())
	status := m.status
	if m.pending {
		status = m.spinner.View() + " " + status
	}
	return header + "\n" + sub + "\n" + transcript + "\n" + input + "\n" + statusStyle.Render(status)
}

func (m *Model) refresh() {
	m.viewport.SetContent(m.renderTranscript())
	m.viewport.GotoBottom()
}

func (m Model) renderTranscript() string {
	if len(m.entries) == 0 {
		return "No conversation yet."
	}
	parts := make([]string, 0, len(m.entries))
	for _, e := range m.entries {
		switch e.kind {
		case entryQuestion:
			parts = append(parts, questionStyle.Render("You: "+e.text))
		case entryError:
			parts = append(parts, errorStyle.Render(e.text))
		case entryInfo:
			parts = append(parts, infoStyle.Render(e.text))
		default:
			parts = append(parts, e.text)
		}
	}
	return strings.Join(parts, "\n\n")
}

var (
	transcriptBoxStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	inputBoxStyle      = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	highlightStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
	questionStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	infoStyle          = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	errorStyle         = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	statusStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
)

// Run starts the full-screen chat and blocks until the user quits.
func Run(ctx context.Context, port ChatPort, header string) error {
	_, err := tea.NewProgram(New(ctx, port, header), tea.WithAltScreen(), tea.WithContext(ctx)).Run()
	return err
}
