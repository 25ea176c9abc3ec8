package hash

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func cosine(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

func TestEmbedder_Identity(t *testing.T) {
	e := NewEmbedder(256)
	assert.Equal(t, "hash/256", e.Name())
	assert.Equal(t, 256, e.Dimensions())

	assert.Equal(t, DefaultDimension, NewEmbedder(0).Dimensions())
}

func TestEmbed_Deterministic(t *testing.T) {
	e := NewEmbedder(128)
	ctx := context.Background()

	a, err := e.Embed(ctx, []string{"vector databases store embeddings"})
	require.NoError(t, err)
	b, err := e.Embed(ctx, []string{"vector databases store embeddings"})
	require.NoError(t, err)
	assert.Equal(t, a, b)
	require.Len(t, a[0], 128)
}

func TestEmbed_Normalized(t *testing.T) {
	e := NewEmbedder(64)
	vecs, err := e.Embed(context.Background(), []string{"chunk chunk chunk overlap size"})
	require.NoError(t, err)

	var norm float64
	for _, v := range vecs[0] {
		norm += float64(v) * float64(v)
	}
	assert.InDelta(t, 1.0, norm, 1e-5)
}

func TestEmbed_StopwordsOnlyIsZero(t *testing.T) {
	e := NewEmbedder(64)
	vecs, err := e.Embed(context.Background(), []string{"the and of", ""})
	require.NoError(t, err)
	require.Len(t, vecs, 2)
	for _, vec := range vecs {
		for _, v := range vec {
			assert.Zero(t, v)
		}
	}
}

func TestEmbed_RelatedTextScoresHigher(t *testing.T) {
	e := NewEmbedder(512)
	vecs, err := e.Embed(context.Background(), []string{
		"how does the chunk overlap work",
		"Chunk overlap carries characters from the previous chunk into the next chunk.",
		"Bananas are yellow and grow in tropical climates.",
	})
	require.NoError(t, err)

	related := cosine(vecs[0], vecs[1])
	unrelated := cosine(vecs[0], vecs[2])
	assert.Greater(t, related, unrelated)
}

func TestEmbed_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewEmbedder(32).Embed(ctx, []string{"text"})
	assert.ErrorIs(t, err, context.Canceled)
}
