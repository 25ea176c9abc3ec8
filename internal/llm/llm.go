// Package llm defines the text generation contract used by the agent and
// builds the configured provider.
package llm

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"agentic-rag/internal/config"
)

// Role of a chat message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one turn of a chat prompt.
type Message struct {
	Role    Role
	Content string
}

// Request is a single completion call.
type Request struct {
	Messages    []Message
	Temperature float64
	MaxTokens   int
	// Stop sequences end generation early, e.g. before the model invents
	// its own tool observation.
	Stop []string
}

// Response is the generated text and token accounting when the provider reports it.
type Response struct {
	Text             string
	Model            string
	PromptTokens     int
	CompletionTokens int
}

// Provider generates text.
type Provider interface {
	Complete(ctx context.Context, req Request) (*Response, error)
	Name() string
}

const defaultOllamaBaseURL = "http://localhost:11434/v1"

// New builds the provider selected by cfg.LLM.Provider wrapped with rate
// limiting, a circuit breaker and tracing.
func New(ctx context.Context, cfg *config.Config, log *slog.Logger) (Provider, error) {
	lc := cfg.LLM
	var (
		p   Provider
		err error
	)
	switch lc.Provider {
	case config.LLMOpenAI, "":
		p, err = wrap(NewOpenAI(OpenAIConfig{
			BaseURL: lc.BaseURL,
			APIKey:  os.Getenv(config.APIKeyEnvVar(config.LLMOpenAI)),
			Model:   lc.Model,
			Timeout: lc.Timeout,
		}))
	case config.LLMOllama:
		base := lc.BaseURL
		if base == "" {
			base = defaultOllamaBaseURL
		}
		p, err = wrap(NewOpenAI(OpenAIConfig{
			BaseURL: base,
			APIKey:  "ollama",
			Model:   lc.Model,
			Timeout: lc.Timeout,
		}))
	case config.LLMGoogle:
		p, err = wrap(NewGoogle(ctx, os.Getenv(config.APIKeyEnvVar(config.LLMGoogle)), lc.Model))
	default:
		return nil, fmt.Errorf("unknown llm provider: %s", lc.Provider)
	}
	if err != nil {
		return nil, err
	}
	return NewResilient(p, lc.RequestsPerMinute, log), nil
}

func wrap[P Provider](p P, err error) (Provider, error) {
	if err != nil {
		return nil, err
	}
	return p, nil
}

// Split joins system messages into one instruction and returns the remaining
// turns alternating user, assistant, user... Consecutive messages of the same
// role are merged, and a leading assistant turn gets an empty user turn
// before it.
func Split(msgs []Message) (system string, turns []string) {
	var sys []string
	next := RoleUser
	for _, m := range msgs {
		if m.Role == RoleSystem {
			sys = append(sys, m.Content)
			continue
		}
		role := m.Role
		if role != RoleAssistant {
			role = RoleUser
		}
		if role != next {
			if len(turns) == 0 {
				turns = append(turns, "")
				next = RoleAssistant
			} else {
				turns[len(turns)-1] += "\n\n" + m.Content
				continue
			}
		}
		turns = append(turns, m.Content)
		if next == RoleUser {
			next = RoleAssistant
		} else {
			next = RoleUser
		}
	}
	return strings.Join(sys, "\n\n"), turns
}
