// Package tools exposes the knowledge base to the agent as a small, fixed set
// of capabilities. Tools never return Go errors: failures are reported in the
// Output so the agent can treat them as observations.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"agentic-rag/internal/domain"
)

// Kind enumerates the tool variants.
type Kind int

const (
	KindSearch Kind = iota + 1
	KindStats
)

func (k Kind) String() string {
	switch k {
	case KindSearch:
		return "search"
	case KindStats:
		return "stats"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Tool is a capability the agent can invoke by name.
type Tool interface {
	Name() string
	Description() string
	Kind() Kind
	Invoke(ctx context.Context, in Input) Output
}

// Input is the parsed argument of a tool call. Stats ignores it.
type Input struct {
	Query  string
	TopK   int
	Filter *domain.Filter
}

// Output is the result of a tool call.
type Output struct {
	// Text is the formatted observation.
	Text string
	// Results holds the raw ranked hits of a search.
	Results []domain.SearchResult
	// Stats is set by the stats tool.
	Stats *domain.Stats
	// Empty marks a search that matched nothing.
	Empty bool
	// Err is the message of a ToolExecutionError, empty on success.
	Err string
}

// Failed reports whether the call produced an error payload.
func (o Output) Failed() bool { return o.Err != "" }

// Observation is the text fed back to the agent.
func (o Output) Observation() string {
	if o.Failed() {
		return "Error: " + o.Err
	}
	return o.Text
}

func failure(tool string, err error) Output {
	return Output{Err: (&domain.ToolExecutionError{Tool: tool, Err: err}).Error()}
}

type jsonInput struct {
	Query      string `json:"query"`
	NumResults int    `json:"num_results"`
	TopK       int    `json:"top_k"`
}

// ParseInput accepts either plain text or a JSON object
// {"query": "...", "num_results": n} as produced by the planner.
func ParseInput(raw string) Input {
	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(s, "```json")
	s = strings.Trim(s, "`")
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "{") {
		var ji jsonInput
		if err := json.Unmarshal([]byte(s), &ji); err == nil {
			in := Input{Query: strings.TrimSpace(ji.Query), TopK: ji.NumResults}
			if in.TopK == 0 {
				in.TopK = ji.TopK
			}
			return in
		}
	}
	if len(s) >= 2 && (s[0] == '"' && s[len(s)-1] == '"' || s[0] == '\'' && s[len(s)-1] == '\'') {
		s = strings.TrimSpace(s[1 : len(s)-1])
	}
	return Input{Query: s}
}

// Registry dispatches tool calls by name and bounds each call with a timeout.
type Registry struct {
	tools   []Tool
	byName  map[string]Tool
	timeout time.Duration
}

// NewRegistry registers tools in the given order. A non-positive timeout
// disables the per-call deadline.
func NewRegistry(timeout time.Duration, tools ...Tool) (*Registry, error) {
	r := &Registry{byName: make(map[string]Tool, len(tools)), timeout: timeout}
	for _, t := range tools {
		if _, dup := r.byName[t.Name()]; dup {
			return nil, fmt.Errorf("duplicate tool %q", t.Name())
		}
		r.byName[t.Name()] = t
		r.tools = append(r.tools, t)
	}
	return r, nil
}

// Get looks a tool up by name.
func (r *Registry) Get(name string) (Tool, bool) {
	t, ok := r.byName[name]
	return t, ok
}

// Tools returns the registered tools in registration order.
func (r *Registry) Tools() []Tool {
	return append([]Tool(nil), r.tools...)
}

// Names returns the sorted tool names.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.tools))
	for _, t := range r.tools {
		names = append(names, t.Name())
	}
	sort.Strings(names)
	return names
}

// Invoke runs the named tool. Unknown names, panics and deadline overruns are
// all reported through Output.Err.
func (r *Registry) Invoke(ctx context.Context, name string, in Input) Output {
	t, ok := r.Get(name)
	if !ok {
		return Output{Err: fmt.Sprintf("unknown tool %q, valid tools are: %s", name, strings.Join(r.Names(), ", "))}
	}
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	done := make(chan Output, 1)
	go func() {
		defer func() {
			if p := recover(); p != nil {
				done <- failure(name, fmt.Errorf("panic: %v", p))
			}
		}()
		done <- t.Invoke(ctx, in)
	}()

	select {
	case out := <-done:
		return out
	case <-ctx.Done():
		return failure(name, ctx.Err())
	}
}
