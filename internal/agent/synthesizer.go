package agent

import (
	"context"
	"fmt"
	"strings"

	"agentic-rag/internal/domain"
	"agentic-rag/internal/llm"
)

// NoInformationAnswer is returned when nothing relevant was retrieved.
const NoInformationAnswer = "I couldn't find any relevant information in the knowledge base to answer that question."

// Evidence is the context gathered while answering one question.
type Evidence struct {
	// Hits are search results at or above the relevance floor, deduplicated,
	// in the order they were first observed.
	Hits []domain.SearchResult
	// Stats holds the text of successful stats observations.
	Stats []string
}

// Empty reports whether there is nothing to ground an answer on.
func (e Evidence) Empty() bool { return len(e.Hits) == 0 && len(e.Stats) == 0 }

// Sources returns the distinct sources of the hits in first-seen order.
func (e Evidence) Sources() []string {
	seen := make(map[string]bool)
	var out []string
	for _, h := range e.Hits {
		src := h.Source()
		if !seen[src] {
			seen[src] = true
			out = append(out, src)
		}
	}
	return out
}

// SynthesisInput is what the synthesizer may use to write the answer.
type SynthesisInput struct {
	Question string
	History  []Turn
	Evidence Evidence
	// Draft is the planner's final answer, empty when the loop was aborted.
	Draft      string
	Incomplete bool
}

// Synthesizer writes the final answer from gathered evidence.
type Synthesizer interface {
	Synthesize(ctx context.Context, in SynthesisInput) (string, error)
}

// SynthesizerFunc adapts a function to Synthesizer.
type SynthesizerFunc func(ctx context.Context, in SynthesisInput) (string, error)

func (f SynthesizerFunc) Synthesize(ctx context.Context, in SynthesisInput) (string, error) {
	return f(ctx, in)
}

const synthesisSystemPrompt = `You answer questions using ONLY the knowledge base context provided by the user message.
- Do not use outside knowledge. If the context does not contain the answer, say that the knowledge base has no relevant information about it.
- Cite the sources you used in square brackets, e.g. [notes/setup.md].
- Be conversational but accurate. If you are not sure, say so.`

// LLMSynthesizer writes grounded answers with a generation provider.
type LLMSynthesizer struct {
	provider    llm.Provider
	temperature float64
	maxTokens   int
}

func NewLLMSynthesizer(provider llm.Provider, temperature float64, maxTokens int) *LLMSynthesizer {
	return &LLMSynthesizer{provider: provider, temperature: temperature, maxTokens: maxTokens}
}

func (s *LLMSynthesizer) Synthesize(ctx context.Context, in SynthesisInput) (string, error) {
	msgs := []llm.Message{{Role: llm.RoleSystem, Content: synthesisSystemPrompt}}
	for _, t := range in.History {
		msgs = append(msgs,
			llm.Message{Role: llm.RoleUser, Content: t.Question},
			llm.Message{Role: llm.RoleAssistant, Content: t.Answer},
		)
	}
	msgs = append(msgs, llm.Message{Role: llm.RoleUser, Content: RenderEvidence(in)})

	resp, err := s.provider.Complete(ctx, llm.Request{
		Messages:    msgs,
		Temperature: s.temperature,
		MaxTokens:   s.maxTokens,
	})
	if err != nil {
		return "", err
	}
	answer := strings.TrimSpace(resp.Text)
	if answer == "" {
		return "", fmt.Errorf("%s returned an empty answer", s.provider.Name())
	}
	return answer, nil
}

// RenderEvidence builds the user message of a synthesis call.
func RenderEvidence(in SynthesisInput) string {
	var b strings.Builder
	b.WriteString("Knowledge base context:\n")
	for i, h := range in.Evidence.Hits {
		fmt.Fprintf(&b, "\n[%d] Source: %s (relevance: %.3f)\n%s\n", i+1, h.Source(), h.Score, strings.TrimSpace(h.Record.Text))
	}
	for _, st := range in.Evidence.Stats {
		fmt.Fprintf(&b, "\n%s\n", st)
	}
	if in.Draft != "" {
		fmt.Fprintf(&b, "\nDraft answer (rewrite it if it uses anything not in the context):\n%s\n", in.Draft)
	}
	if in.Incomplete {
		b.WriteString("\nResearch stopped before it finished. Answer with what the context supports and say what is missing.\n")
	}
	fmt.Fprintf(&b, "\nQuestion: %s", in.Question)
	return b.String()
}
