// Package google embeds text with Gemini embedding models.
package google

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// DefaultModel is the Gemini embedding model used when none is configured.
const DefaultModel = "text-embedding-004"

// Embedder generates embeddings using the Generative Language API.
type Embedder struct {
	client *genai.Client
	model  *genai.EmbeddingModel
	name   string
	dim    int
}

// NewEmbedder creates a Gemini embedder. The client is released by Close.
func NewEmbedder(ctx context.Context, apiKey, model string, opts ...option.ClientOption) (*Embedder, error) {
	if apiKey == "" {
		return nil, errors.New("missing GOOGLE_API_KEY for embeddings")
	}
	if model == "" {
		model = DefaultModel
	}
	client, err := genai.NewClient(ctx, append([]option.ClientOption{option.WithAPIKey(apiKey)}, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return &Embedder{
		client: client,
		model:  client.EmbeddingModel(model),
		name:   model,
		dim:    knownDimensions(model),
	}, nil
}

// Name returns the embedding model identifier.
func (e *Embedder) Name() string { return e.name }

// Dimensions returns the vector size of the model.
func (e *Embedder) Dimensions() int { return e.dim }

// Embed requests one embedding per text.
func (e *Embedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	out := make([][]float32, 0, len(texts))
	for _, text := range texts {
		resp, err := e.model.EmbedContent(ctx, genai.Text(text))
		if err != nil {
			return nil, fmt.Errorf("google embed request failed: %w", err)
		}
		if resp.Embedding == nil || len(resp.Embedding.Values) == 0 {
			return nil, errors.New("google returned empty embedding")
		}
		out = append(out, resp.Embedding.Values)
	}
	return out, nil
}

// Close releases the underlying client.
func (e *Embedder) Close() error {
	return e.client.Close()
}

func knownDimensions(model string) int {
	switch model {
	case "text-embedding-004", "embedding-001":
		return 768
	case "gemini-embedding-001":
		return 3072
	default:
		return 0
	}
}
