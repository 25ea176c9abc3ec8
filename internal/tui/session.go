package tui

import (
	"context"
	"fmt"
	"strings"

	"agentic-rag/internal/agent"
	"agentic-rag/internal/tools"
)

// maxShownHits bounds the passages printed under an answer.
const maxShownHits = 3

// ChatPort is the chat-facing subset of an agent session.
type ChatPort interface {
	Ask(ctx context.Context, question string) (*agent.Result, error)
	Stats(ctx context.Context) string
	Clear()
}

// Session adapts an orchestrator and its tool registry to ChatPort.
type Session struct {
	Agent *agent.Orchestrator
	Tools agent.ToolRunner
}

func (s Session) Ask(ctx context.Context, question string) (*agent.Result, error) {
	return s.Agent.Ask(ctx, question)
}

// Stats runs the stats tool directly, without going through the agent.
func (s Session) Stats(ctx context.Context) string {
	return s.Tools.Invoke(ctx, tools.StatsToolName, tools.Input{}).Observation()
}

func (s Session) Clear() { s.Agent.Memory().Clear() }

// FormatAnswer renders an answer with its sources and the passages that
// backed it. highlight decorates the best matching sentence of each passage;
// nil leaves it plain.
func FormatAnswer(question string, res *agent.Result, highlight func(string) string) string {
	if highlight == nil {
		highlight = func(s string) string { return s }
	}
	var b strings.Builder
	b.WriteString(strings.TrimSpace(res.Answer))
	b.WriteString("\n")

	if len(res.Sources) > 0 {
		b.WriteString("\nSources:\n")
		for _, s := range res.Sources {
			fmt.Fprintf(&b, "  - %s\n", s)
		}
	}

	seen := make(map[string]struct{})
	shown := 0
	for _, step := range res.Steps {
		for _, hit := range step.Output.Results {
			if shown == maxShownHits {
				break
			}
			if _, ok := seen[hit.Record.ID]; ok {
				continue
			}
			seen[hit.Record.ID] = struct{}{}
			if shown == 0 {
				b.WriteString("\nPassages:\n")
			}
			shown++
			fmt.Fprintf(&b, "  [%s %.3f] %s\n", hit.Source(), hit.Score, highlight(tools.Excerpt(hit.Record.Text, question)))
		}
	}

	fmt.Fprintf(&b, "\n(%s after %d reasoning steps)", res.State, res.Iterations)
	return b.String()
}
