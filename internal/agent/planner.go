package agent

import (
	"context"
	"fmt"
	"strings"

	"agentic-rag/internal/llm"
	"agentic-rag/internal/tools"
)

// Step is one completed act/observe cycle in the working context.
type Step struct {
	Decision    Decision
	Observation string
}

// Scratchpad is everything the planner sees for one reasoning step.
type Scratchpad struct {
	Question string
	History  []Turn
	Tools    []tools.Tool
	Steps    []Step
}

// Planner proposes the next action for a question.
type Planner interface {
	Plan(ctx context.Context, pad Scratchpad) (Decision, error)
}

// PlannerFunc adapts a function to Planner.
type PlannerFunc func(ctx context.Context, pad Scratchpad) (Decision, error)

func (f PlannerFunc) Plan(ctx context.Context, pad Scratchpad) (Decision, error) {
	return f(ctx, pad)
}

const reactTemplate = `You are a helpful AI assistant with access to a knowledge base.
Your goal is to answer user questions accurately based on the information in the knowledge base.

When answering questions:
1. Always search the knowledge base first using the knowledge_base_search tool
2. Base your answers ONLY on the information retrieved from the knowledge base
3. If the information is not in the knowledge base, clearly state that you don't have that information
4. Cite the sources when providing information
5. If the user asks about what's in the knowledge base, use the knowledge_base_stats tool

Be conversational but accurate. If you're not sure about something, say so.

TOOLS:
------
You have access to the following tools:

{tools}

To use a tool, please use the following format:

` + "```" + `
Thought: Do I need to use a tool? Yes
Action: the action to take, should be one of [{tool_names}]
Action Input: the input to the action
Observation: the result of the action
` + "```" + `

When you have a response to say to the Human, or if you do not need to use a tool, you MUST use the format:

` + "```" + `
Thought: Do I need to use a tool? No
Final Answer: [your response here]
` + "```" + `

Begin!
{chat_history}
Question: {input}
Thought: {agent_scratchpad}`

// LLMPlanner asks a generation provider for the next ReAct step.
type LLMPlanner struct {
	provider    llm.Provider
	temperature float64
	maxTokens   int
}

// NewLLMPlanner returns a planner backed by provider.
func NewLLMPlanner(provider llm.Provider, temperature float64, maxTokens int) *LLMPlanner {
	return &LLMPlanner{provider: provider, temperature: temperature, maxTokens: maxTokens}
}

func (p *LLMPlanner) Plan(ctx context.Context, pad Scratchpad) (Decision, error) {
	resp, err := p.provider.Complete(ctx, llm.Request{
		Messages:    []llm.Message{{Role: llm.RoleUser, Content: RenderPrompt(pad)}},
		Temperature: p.temperature,
		MaxTokens:   p.maxTokens,
		Stop:        []string{observationMarker},
	})
	if err != nil {
		return Decision{}, err
	}
	return ParseDecision(resp.Text), nil
}

// RenderPrompt fills the ReAct template for pad.
func RenderPrompt(pad Scratchpad) string {
	descs := make([]string, len(pad.Tools))
	names := make([]string, len(pad.Tools))
	for i, t := range pad.Tools {
		descs[i] = t.Name() + ": " + t.Description()
		names[i] = t.Name()
	}
	return strings.NewReplacer(
		"{tools}", strings.Join(descs, "\n"),
		"{tool_names}", strings.Join(names, ", "),
		"{chat_history}", renderHistory(pad.History),
		"{input}", pad.Question,
		"{agent_scratchpad}", renderSteps(pad.Steps),
	).Replace(reactTemplate)
}

func renderHistory(turns []Turn) string {
	if len(turns) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("\nPrevious conversation:\n")
	for _, t := range turns {
		fmt.Fprintf(&b, "Human: %s\nAI: %s\n", t.Question, t.Answer)
	}
	return b.String()
}

func renderSteps(steps []Step) string {
	var b strings.Builder
	for _, s := range steps {
		log := strings.TrimSpace(s.Decision.Log)
		switch {
		case log != "":
		case s.Decision.Kind != DecisionToolCall:
			log = "(no output)"
		default:
			log = fmt.Sprintf("Do I need to use a tool? Yes\nAction: %s\nAction Input: %s", s.Decision.Tool, s.Decision.Input)
		}
		fmt.Fprintf(&b, "%s\nObservation: %s\nThought: ", log, s.Observation)
	}
	return b.String()
}
