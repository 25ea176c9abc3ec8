// Package agent runs the bounded reason, act, observe loop that answers a
// question from the knowledge base and keeps the conversation memory.
package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"agentic-rag/internal/domain"
	"agentic-rag/internal/logger"
	"agentic-rag/internal/tools"
)

// State of a query in the agent loop.
type State int

const (
	StateReceived State = iota
	StateReasoning
	StateActing
	StateObserving
	StateSynthesizing
	StateDone
	StateAborted
)

var stateNames = [...]string{"RECEIVED", "REASONING", "ACTING", "OBSERVING", "SYNTHESIZING", "DONE", "ABORTED"}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// ToolRunner dispatches tool calls. *tools.Registry implements it.
type ToolRunner interface {
	Tools() []tools.Tool
	Invoke(ctx context.Context, name string, in tools.Input) tools.Output
}

// ToolInvocation records one tool call made while answering a question.
type ToolInvocation struct {
	Tool   string
	Input  string
	Output tools.Output
}

// Result is the outcome of one question.
type Result struct {
	Answer string
	// State is StateDone, or StateAborted when the iteration limit was hit.
	State      State
	Incomplete bool
	// Iterations counts reasoning steps.
	Iterations int
	Steps      []ToolInvocation
	Sources    []string
	// Transitions lists every state the query passed through.
	Transitions []State
}

// Options configures an Orchestrator.
type Options struct {
	MaxIterations  int
	RelevanceFloor float64
	Logger         *slog.Logger
}

// Orchestrator answers one question at a time for a single session.
type Orchestrator struct {
	planner     Planner
	synthesizer Synthesizer
	tools       ToolRunner
	memory      *Memory
	opts        Options
	log         *slog.Logger
	tracer      trace.Tracer
	session     string

	busy sync.Mutex
}

// New creates an orchestrator that owns memory.
func New(planner Planner, synthesizer Synthesizer, runner ToolRunner, memory *Memory, opts Options) *Orchestrator {
	if opts.MaxIterations <= 0 {
		opts.MaxIterations = 5
	}
	if memory == nil {
		memory = NewMemory(10)
	}
	log := opts.Logger
	if log == nil {
		log = logger.Discard()
	}
	session := uuid.NewString()
	return &Orchestrator{
		planner:     planner,
		synthesizer: synthesizer,
		tools:       runner,
		memory:      memory,
		opts:        opts,
		log:         log.With("session", session),
		tracer:      otel.Tracer("agentic-rag/agent"),
		session:     session,
	}
}

// SessionID identifies this conversation.
func (o *Orchestrator) SessionID() string { return o.session }

// Memory returns the conversation memory.
func (o *Orchestrator) Memory() *Memory { return o.memory }

// Ask answers question. Tool failures are observations, not errors. An
// *domain.ExternalCallError means the generation provider failed; memory is
// left untouched and the session can keep going. A call made while another
// is running fails with domain.ErrBusy.
func (o *Orchestrator) Ask(ctx context.Context, question string) (*Result, error) {
	if !o.busy.TryLock() {
		return nil, domain.ErrBusy
	}
	defer o.busy.Unlock()

	question = strings.TrimSpace(question)
	if question == "" {
		return nil, errors.New("empty question")
	}

	ctx, span := o.tracer.Start(ctx, "agent.ask", trace.WithAttributes(
		attribute.String("agent.session", o.session),
		attribute.Int("agent.max_iterations", o.opts.MaxIterations),
	))
	defer span.End()

	res := &Result{}
	enter := func(s State) {
		res.State = s
		res.Transitions = append(res.Transitions, s)
	}
	enter(StateReceived)

	history := o.memory.Turns()
	pad := Scratchpad{Question: question, History: history, Tools: o.tools.Tools()}
	draft := ""
	answered := false

	for res.Iterations < o.opts.MaxIterations {
		enter(StateReasoning)
		res.Iterations++
		d, err := o.planner.Plan(ctx, pad)
		if err != nil {
			return nil, o.fail(span, "plan next step", err)
		}
		o.log.Debug("decision", "iteration", res.Iterations, "kind", d.Kind.String(), "tool", d.Tool, "thought", d.Thought)

		switch d.Kind {
		case DecisionFinalAnswer:
			draft = d.Answer
			answered = true
		case DecisionToolCall:
			enter(StateActing)
			out := o.invoke(ctx, d)
			enter(StateObserving)
			res.Steps = append(res.Steps, ToolInvocation{Tool: d.Tool, Input: d.Input, Output: out})
			pad.Steps = append(pad.Steps, Step{Decision: d, Observation: out.Observation()})
		default:
			pad.Steps = append(pad.Steps, Step{Decision: d, Observation: d.Hint})
		}
		if answered {
			break
		}
	}

	if !answered {
		res.Incomplete = true
		o.log.Warn("iteration limit reached", "iterations", res.Iterations, "error", domain.ErrIterationLimit)
	}

	enter(StateSynthesizing)
	ev := o.evidence(res.Steps)
	res.Sources = ev.Sources()
	if ev.Empty() {
		res.Answer = NoInformationAnswer
	} else {
		answer, err := o.synthesizer.Synthesize(ctx, SynthesisInput{
			Question:   question,
			History:    history,
			Evidence:   ev,
			Draft:      draft,
			Incomplete: res.Incomplete,
		})
		if err != nil {
			return nil, o.fail(span, "synthesize answer", err)
		}
		res.Answer = answer
	}

	if res.Incomplete {
		res.Answer += fmt.Sprintf("\n\n(Incomplete: stopped after %d reasoning steps without a final answer.)", res.Iterations)
		enter(StateAborted)
	} else {
		enter(StateDone)
	}
	o.memory.Append(question, res.Answer)

	span.SetAttributes(
		attribute.Int("agent.iterations", res.Iterations),
		attribute.Int("agent.tool_calls", len(res.Steps)),
		attribute.String("agent.state", res.State.String()),
		attribute.Bool("agent.incomplete", res.Incomplete),
	)
	return res, nil
}

func (o *Orchestrator) invoke(ctx context.Context, d Decision) tools.Output {
	ctx, span := o.tracer.Start(ctx, "agent.tool", trace.WithAttributes(attribute.String("tool.name", d.Tool)))
	defer span.End()

	out := o.tools.Invoke(ctx, d.Tool, tools.ParseInput(d.Input))
	span.SetAttributes(attribute.Int("tool.results", len(out.Results)), attribute.Bool("tool.empty", out.Empty))
	if out.Failed() {
		span.SetStatus(codes.Error, out.Err)
		o.log.Warn("tool failed", "tool", d.Tool, "error", out.Err)
	} else {
		o.log.Debug("tool observed", "tool", d.Tool, "results", len(out.Results), "empty", out.Empty)
	}
	return out
}

// evidence keeps search hits at or above the relevance floor that carry a
// similarity signal, and stats observations of a non-empty collection.
func (o *Orchestrator) evidence(steps []ToolInvocation) Evidence {
	var ev Evidence
	seen := make(map[string]bool)
	for _, s := range steps {
		out := s.Output
		if out.Failed() {
			continue
		}
		if out.Stats != nil && !out.Empty {
			ev.Stats = append(ev.Stats, out.Text)
		}
		for _, r := range out.Results {
			if r.Score < o.opts.RelevanceFloor || !r.HasSignal() || seen[r.Record.ID] {
				continue
			}
			seen[r.Record.ID] = true
			ev.Hits = append(ev.Hits, r)
		}
	}
	return ev
}

func (o *Orchestrator) fail(span trace.Span, op string, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	var ext *domain.ExternalCallError
	if !errors.As(err, &ext) {
		err = &domain.ExternalCallError{Op: op, Err: err}
	}
	o.log.Error("query failed", "op", op, "error", err)
	return err
}
