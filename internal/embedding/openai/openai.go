// Package openai embeds text through the OpenAI embeddings API or any
// OpenAI-compatible endpoint (Ollama, vLLM, LM Studio) selected by BaseURL.
package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

const maxBatchSize = 100

// Config configures the OpenAI-compatible embeddings client.
type Config struct {
	BaseURL    string
	APIKey     string
	Model      string
	Dimensions int
	Timeout    time.Duration
	MaxRetries int
}

// Client is an OpenAI-compatible embeddings client.
type Client struct {
	client     *openai.Client
	model      string
	requestDim int
	maxRetries int

	mu        sync.RWMutex
	dimension int
}

// NewClient creates a new embeddings client using the provided configuration.
// An API key is only required for the hosted OpenAI endpoint.
func NewClient(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" && cfg.APIKey == "" {
		return nil, errors.New("missing OpenAI API key")
	}
	if cfg.Model == "" {
		cfg.Model = string(openai.SmallEmbedding3)
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 3
	}
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	clientCfg.HTTPClient = &http.Client{Timeout: cfg.Timeout}

	dim := cfg.Dimensions
	if dim == 0 {
		dim = knownDimensions(cfg.Model)
	}
	return &Client{
		client:     openai.NewClientWithConfig(clientCfg),
		model:      cfg.Model,
		requestDim: cfg.Dimensions,
		maxRetries: cfg.MaxRetries,
		dimension:  dim,
	}, nil
}

// Name returns the embedding model identifier.
func (c *Client) Name() string { return c.model }

// Dimensions returns the vector size. Models without a known size report 0
// until the first response arrives.
func (c *Client) Dimensions() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.dimension
}

// Embed returns one vector per text, batching requests.
func (c *Client) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	out := make([][]float32, 0, len(texts))
	for i := 0; i < len(texts); i += maxBatchSize {
		end := min(i+maxBatchSize, len(texts))
		batch := texts[i:end]

		resp, err := c.createWithRetry(ctx, batch)
		if err != nil {
			return nil, err
		}
		if len(resp.Data) != len(batch) {
			return nil, fmt.Errorf("openai returned %d embeddings, expected %d", len(resp.Data), len(batch))
		}
		vecs := make([][]float32, len(batch))
		for _, d := range resp.Data {
			if d.Index < 0 || d.Index >= len(batch) {
				return nil, fmt.Errorf("openai returned embedding index %d out of range", d.Index)
			}
			vecs[d.Index] = d.Embedding
		}
		out = append(out, vecs...)
	}
	c.learnDimension(len(out[0]))
	return out, nil
}

func (c *Client) createWithRetry(ctx context.Context, batch []string) (openai.EmbeddingResponse, error) {
	req := openai.EmbeddingRequest{
		Input:      batch,
		Model:      openai.EmbeddingModel(c.model),
		Dimensions: c.requestDim,
	}
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		resp, err := c.client.CreateEmbeddings(ctx, req)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		if !retryable(err) || attempt == c.maxRetries {
			break
		}
		select {
		case <-ctx.Done():
			return openai.EmbeddingResponse{}, ctx.Err()
		case <-time.After(retryDelay(attempt)):
		}
	}
	return openai.EmbeddingResponse{}, fmt.Errorf("openai embedding request failed: %w", lastErr)
}

func (c *Client) learnDimension(d int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.dimension == 0 {
		c.dimension = d
	}
}

func retryable(err error) bool {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode == http.StatusTooManyRequests || apiErr.HTTPStatusCode >= 500
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode == http.StatusTooManyRequests || reqErr.HTTPStatusCode >= 500
	}
	return false
}

func retryDelay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	// exponential backoff capped at 5s
	d := 200 * time.Millisecond << attempt
	if d > 5*time.Second {
		d = 5 * time.Second
	}
	return d
}

func knownDimensions(model string) int {
	switch model {
	case string(openai.SmallEmbedding3), string(openai.AdaEmbeddingV2):
		return 1536
	case string(openai.LargeEmbedding3):
		return 3072
	default:
		return 0
	}
}
