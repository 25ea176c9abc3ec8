// Package embedding defines the text embedder contract and builds the
// configured implementation.
package embedding

import (
	"context"
	"fmt"
	"os"

	chromem "github.com/philippgille/chromem-go"

	"agentic-rag/internal/config"
	"agentic-rag/internal/embedding/google"
	"agentic-rag/internal/embedding/hash"
	"agentic-rag/internal/embedding/openai"
)

// Embedder turns texts into fixed-size vectors.
type Embedder interface {
	// Embed generates one embedding per text, in input order.
	Embed(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the vector size, or 0 if not known until the first call.
	Dimensions() int

	// Name returns the embedding model identifier.
	Name() string
}

const defaultOllamaBaseURL = "http://localhost:11434/v1"

// New builds the embedder selected by cfg.Embeddings.Provider.
func New(ctx context.Context, cfg *config.Config) (Embedder, error) {
	ec := cfg.Embeddings
	switch ec.Provider {
	case config.EmbeddingsHash, "":
		return hash.NewEmbedder(ec.Dimensions), nil
	case config.EmbeddingsOpenAI:
		return wrap(openai.NewClient(openai.Config{
			BaseURL:    ec.BaseURL,
			APIKey:     os.Getenv(config.APIKeyEnvVar(config.EmbeddingsOpenAI)),
			Model:      cfg.EmbeddingModel(),
			Dimensions: ec.Dimensions,
			Timeout:    ec.Timeout,
		}))
	case config.EmbeddingsOllama:
		base := ec.BaseURL
		if base == "" {
			base = defaultOllamaBaseURL
		}
		return wrap(openai.NewClient(openai.Config{
			BaseURL: base,
			APIKey:  "ollama",
			Model:   cfg.EmbeddingModel(),
			Timeout: ec.Timeout,
		}))
	case config.EmbeddingsGoogle:
		return wrap(google.NewEmbedder(ctx, os.Getenv(config.APIKeyEnvVar(config.EmbeddingsGoogle)), cfg.EmbeddingModel()))
	default:
		return nil, fmt.Errorf("unknown embeddings provider: %s", ec.Provider)
	}
}

// wrap keeps a failed constructor from yielding a non-nil interface around a nil pointer.
func wrap[E Embedder](e E, err error) (Embedder, error) {
	if err != nil {
		return nil, err
	}
	return e, nil
}

// ToChromemFunc converts an Embedder into a chromem.EmbeddingFunc.
// chromem-go expects a function that embeds a single text at a time.
func ToChromemFunc(e Embedder) chromem.EmbeddingFunc {
	return func(ctx context.Context, text string) ([]float32, error) {
		results, err := e.Embed(ctx, []string{text})
		if err != nil {
			return nil, err
		}
		if len(results) == 0 {
			return nil, fmt.Errorf("embedder %s returned no vector", e.Name())
		}
		return results[0], nil
	}
}
