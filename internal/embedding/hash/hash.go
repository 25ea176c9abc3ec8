// Package hash implements a local, corpus-independent embedder based on
// feature hashing of term frequencies.
package hash

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"

	"agentic-rag/internal/textutil"
)

// DefaultDimension is used when a non-positive dimension is requested.
const DefaultDimension = 512

// Embedder maps each non-stopword token into one of dim buckets and weights
// buckets by sublinear term frequency. Vectors are L2-normalized, so text
// made only of stopwords embeds to the zero vector.
type Embedder struct {
	dimension int
}

// NewEmbedder creates a hashing embedder with the given dimensionality.
func NewEmbedder(dimension int) *Embedder {
	if dimension <= 0 {
		dimension = DefaultDimension
	}
	return &Embedder{dimension: dimension}
}

// Name returns the identifier of this embedder, including its dimension so a
// collection built with one size is never queried with another.
func (e *Embedder) Name() string { return fmt.Sprintf("hash/%d", e.dimension) }

// Dimensions returns the dimensionality of the produced embedding vectors.
func (e *Embedder) Dimensions() int { return e.dimension }

// Embed computes one vector per text.
func (e *Embedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out[i] = e.embed(text)
	}
	return out, nil
}

func (e *Embedder) embed(text string) []float32 {
	tf := make(map[int]int)
	for _, tok := range textutil.Tokens(text) {
		tf[e.bucket(tok)]++
	}
	vec := make([]float32, e.dimension)
	if len(tf) == 0 {
		return vec
	}
	norm := 0.0
	weights := make(map[int]float64, len(tf))
	for idx, count := range tf {
		w := 1 + math.Log(float64(count))
		weights[idx] = w
		norm += w * w
	}
	norm = math.Sqrt(norm)
	for idx, w := range weights {
		vec[idx] = float32(w / norm)
	}
	return vec
}

func (e *Embedder) bucket(tok string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(tok))
	return int(h.Sum32() % uint32(e.dimension))
}
