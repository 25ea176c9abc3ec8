package tui

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agentic-rag/internal/agent"
	"agentic-rag/internal/domain"
	"agentic-rag/internal/tools"
)

type fakePort struct {
	result  *agent.Result
	err     error
	asked   []string
	cleared int
}

func (f *fakePort) Ask(_ context.Context, q string) (*agent.Result, error) {
	f.asked = append(f.asked, q)
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

func (f *fakePort) Stats(context.Context) string { return "Knowledge Base Statistics:\n- Total document chunks: 2" }
func (f *fakePort) Clear()                        { f.cleared++ }

func hit(id, source, text string, score float64) domain.SearchResult {
	return domain.SearchResult{
		Record: domain.VectorRecord{ID: id, Text: text, Metadata: map[string]string{domain.MetaSource: source}},
		Score:  score,
	}
}

func sampleResult() *agent.Result {
	return &agent.Result{
		Answer:     "Go was designed at Google.",
		State:      agent.StateDone,
		Iterations: 2,
		Sources:    []string{"go.md"},
		Steps: []agent.ToolInvocation{{
			Tool: tools.SearchToolName,
			Output: tools.Output{Results: []domain.SearchResult{
				hit("0", "go.md", "It is a compiled language. Go was designed at Google in 2007.", 0.9),
			}},
		}},
	}
}

func enter(t *testing.T, m Model, line string) (Model, tea.Cmd) {
	t.Helper()
	m.input.SetValue(line)
	updated, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	return updated.(Model), cmd
}

func TestParseCommand(t *testing.T) {
	tests := []struct {
		line string
		want Command
		ok   bool
	}{
		{"/help", CommandHelp, true},
		{"  /STATS ", CommandStats, true},
		{"/clear now", CommandClear, true},
		{"/quit", CommandQuit, true},
		{"/exit", CommandQuit, true},
		{"/frobnicate", CommandUnknown, true},
		{"what is /help?", CommandUnknown, false},
		{"", CommandUnknown, false},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			got, ok := ParseCommand(tt.line)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFormatAnswer(t *testing.T) {
	res := sampleResult()
	res.Steps = append(res.Steps, agent.ToolInvocation{
		Tool: tools.SearchToolName,
		Output: tools.Output{Results: []domain.SearchResult{
			hit("0", "go.md", "duplicate", 0.9),
			hit("1", "a.md", "one", 0.5),
			hit("2", "b.md", "two", 0.4),
			hit("3", "c.md", "three", 0.3),
		}},
	})
	out := FormatAnswer("who designed go", res, func(s string) string { return "<" + s + ">" })

	assert.True(t, strings.HasPrefix(out, "Go was designed at Google.\n"))
	assert.Contains(t, out, "Sources:\n  - go.md\n")
	assert.Contains(t, out, "[go.md 0.900] <Go was designed at Google in 2007.>")
	assert.NotContains(t, out, "duplicate")
	assert.Contains(t, out, "[b.md 0.400]")
	assert.NotContains(t, out, "c.md", "only the first few passages are shown")
	assert.True(t, strings.HasSuffix(out, "(DONE after 2 reasoning steps)"))
}

func TestFormatAnswer_NoSources(t *testing.T) {
	out := FormatAnswer("q", &agent.Result{Answer: "nothing", State: agent.StateAborted, Iterations: 5}, nil)
	assert.Equal(t, "nothing\n\n(ABORTED after 5 reasoning steps)", out)
}

func TestModel_QuestionRoundTrip(t *testing.T) {
	port := &fakePort{result: sampleResult()}
	m := New(context.Background(), port, "2 chunks")

	m, cmd := enter(t, m, "who designed go?")
	require.NotNil(t, cmd)
	assert.True(t, m.pending)
	assert.Equal(t, "", m.input.Value())
	require.Len(t, m.entries, 1)
	assert.Equal(t, entryQuestion, m.entries[0].kind)

	msg := m.ask("who designed go?")()
	updated, _ := m.Update(msg)
	m = updated.(Model)
	assert.False(t, m.pending)
	require.Len(t, m.entries, 2)
	assert.Equal(t, entryAnswer, m.entries[1].kind)
	assert.Contains(t, m.entries[1].text, "Go was designed at Google.")
	assert.Contains(t, m.entries[1].text, "go.md")
	assert.Equal(t, []string{"who designed go?"}, port.asked)
}

func TestModel_QuestionWhilePending(t *testing.T) {
	port := &fakePort{result: sampleResult()}
	m := New(context.Background(), port, "")
	m.pending = true

	m, cmd := enter(t, m, "another one")
	assert.Nil(t, cmd)
	assert.Contains(t, m.status, "Still working")
	assert.Empty(t, m.entries)
}

func TestModel_FailedQuestionKeepsSession(t *testing.T) {
	port := &fakePort{err: &domain.ExternalCallError{Op: "plan next step", Err: errors.New("quota")}}
	m := New(context.Background(), port, "")

	m, _ = enter(t, m, "hello?")
	updated, _ := m.Update(m.ask("hello?")())
	m = updated.(Model)
	assert.False(t, m.pending)
	require.Len(t, m.entries, 2)
	assert.Equal(t, entryError, m.entries[1].kind)
	assert.Contains(t, m.entries[1].text, "quota")

	port.err = nil
	port.result = sampleResult()
	m, cmd := enter(t, m, "again?")
	assert.NotNil(t, cmd)
	assert.True(t, m.pending)
}

func TestModel_Commands(t *testing.T) {
	port := &fakePort{}
	m := New(context.Background(), port, "")

	m, cmd := enter(t, m, "/help")
	assert.Nil(t, cmd)
	require.Len(t, m.entries, 1)
	assert.Equal(t, HelpText, m.entries[0].text)

	m, _ = enter(t, m, "/stats")
	require.Len(t, m.entries, 2)
	assert.Contains(t, m.entries[1].text, "Total document chunks: 2")

	m, _ = enter(t, m, "/clear")
	assert.Empty(t, m.entries)
	assert.Equal(t, 1, port.cleared)

	m, _ = enter(t, m, "/nope")
	assert.Contains(t, m.status, "Unknown command /nope")

	_, cmd = enter(t, m, "/quit")
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
	assert.Empty(t, port.asked)
}

func TestModel_CtrlCQuits(t *testing.T) {
	m := New(context.Background(), &fakePort{}, "")
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
}

func TestModel_View(t *testing.T) {
	m := New(context.Background(), &fakePort{}, "2 chunks indexed")
	assert.Equal(t, "Loading...", m.View())

	updated, _ := m.Update(tea.WindowSizeMsg{Width: 80, Height: 24})
	view := updated.(Model).View()
	assert.Contains(t, view, "Agentic RAG")
	assert.Contains(t, view, "2 chunks indexed")
	assert.Contains(t, view, "No conversation yet.")
}

func TestRunPlain(t *testing.T) {
	port := &fakePort{result: sampleResult()}
	in := strings.NewReader("\n/help\nwho designed go?\n/bogus\n/stats\n/clear\n/quit\nnever asked\n")
	var out bytes.Buffer

	require.NoError(t, RunPlain(context.Background(), port, in, &out))
	s := out.String()
	assert.Contains(t, s, HelpText)
	assert.Contains(t, s, "Go was designed at Google.")
	assert.Contains(t, s, "Unknown command /bogus. Type /help.")
	assert.Contains(t, s, "Total document chunks: 2")
	assert.Contains(t, s, "Conversation cleared.")
	assert.Equal(t, []string{"who designed go?"}, port.asked)
	assert.Equal(t, 1, port.cleared)
}

func TestRunPlain_ErrorsDoNotEndTheLoop(t *testing.T) {
	port := &fakePort{err: fmt.Errorf("generation failed: %w", domain.ErrExternalCall)}
	var out bytes.Buffer

	require.NoError(t, RunPlain(context.Background(), port, strings.NewReader("one\ntwo\n"), &out))
	assert.Equal(t, 2, strings.Count(out.String(), "Error: generation failed"))
	assert.Len(t, port.asked, 2)
}
