package chromem

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agentic-rag/internal/domain"
	"agentic-rag/internal/embedding/hash"
)

func record(seq int, text string) domain.VectorRecord {
	return domain.VectorRecord{
		ID:       domain.RecordID(seq),
		Seq:      seq,
		Vector:   []float32{1, float32(seq)},
		Text:     text,
		Metadata: map[string]string{domain.MetaSource: "s.txt"},
	}
}

func TestRecords_SkipsSequenceGaps(t *testing.T) {
	ctx := context.Background()
	s, err := NewStore("", "docs", false, hash.NewEmbedder(2))
	require.NoError(t, err)

	require.NoError(t, s.Add(ctx, []domain.VectorRecord{record(0, "zero"), record(1, "one")}))
	// seq 2 and 3 were claimed by an add that never landed
	require.NoError(t, s.Add(ctx, []domain.VectorRecord{record(4, "four")}))
	assert.Equal(t, 3, s.Count())

	got, err := s.Records(ctx)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, []int{0, 1, 4}, []int{got[0].Seq, got[1].Seq, got[2].Seq})
	assert.Equal(t, "four", got[2].Text)
	assert.Equal(t, "s.txt", got[2].Metadata[domain.MetaSource])
}

func TestRecords_AfterReset(t *testing.T) {
	ctx := context.Background()
	s, err := NewStore(t.TempDir(), "docs", false, hash.NewEmbedder(2))
	require.NoError(t, err)

	require.NoError(t, s.Add(ctx, []domain.VectorRecord{record(0, "zero")}))
	require.NoError(t, s.Reset(ctx))
	got, err := s.Records(ctx)
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Equal(t, 0, s.Count())
}
