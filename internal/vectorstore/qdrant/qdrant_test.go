package qdrant

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agentic-rag/internal/domain"
	"agentic-rag/internal/vectorstore/qdrant/qdranttest"
)

func rec(seq int, vec []float32, source string) domain.VectorRecord {
	return domain.VectorRecord{
		ID:       domain.RecordID(seq),
		Seq:      seq,
		Vector:   vec,
		Text:     fmt.Sprintf("chunk %d", seq),
		Metadata: map[string]string{domain.MetaSource: source},
	}
}

func TestNewStore_RequiresURL(t *testing.T) {
	_, err := NewStore(context.Background(), Config{Collection: "docs"})
	assert.Error(t, err)
}

func TestNewStore_Unreachable(t *testing.T) {
	srv := qdranttest.NewServer()
	url := srv.URL
	srv.Close()

	_, err := NewStore(context.Background(), Config{URL: url, Collection: "docs"})
	assert.Error(t, err)
}

func TestStore_CreatesCollectionLazilyAndReopens(t *testing.T) {
	ctx := context.Background()
	srv := qdranttest.NewServer()
	defer srv.Close()
	cfg := Config{URL: srv.URL + "/", APIKey: "secret", Collection: "docs"}

	s, err := NewStore(ctx, cfg)
	require.NoError(t, err)
	assert.Equal(t, -1, srv.Points("docs"))
	assert.Equal(t, "secret", srv.LastAPIKey)

	require.NoError(t, s.Add(ctx, []domain.VectorRecord{rec(0, []float32{1, 0}, "a"), rec(1, []float32{0, 1}, "b")}))
	assert.Equal(t, 2, srv.Points("docs"))

	reopened, err := NewStore(ctx, cfg)
	require.NoError(t, err)
	assert.Equal(t, 2, reopened.Count())

	require.NoError(t, reopened.Add(ctx, []domain.VectorRecord{rec(2, []float32{1, 1}, "a")}))
	res, err := reopened.Query(ctx, []float32{1, 0}, map[string]string{domain.MetaSource: "a"})
	require.NoError(t, err)
	require.Len(t, res, 2)
	assert.Equal(t, "chunk 0", res[0].Record.Text)
	assert.InDelta(t, 1.0, res[0].Score, 1e-6)
	assert.Equal(t, domain.RecordID(2), res[1].Record.ID)
}

func TestStore_RecordsScrollsEveryPage(t *testing.T) {
	ctx := context.Background()
	srv := qdranttest.NewServer()
	defer srv.Close()
	s, err := NewStore(ctx, Config{URL: srv.URL, Collection: "big"})
	require.NoError(t, err)

	n := scrollPage*2 + 7
	records := make([]domain.VectorRecord, n)
	for i := range records {
		records[i] = rec(i, []float32{float32(i + 1), 1}, "s")
	}
	require.NoError(t, s.Add(ctx, records))

	got, err := s.Records(ctx)
	require.NoError(t, err)
	require.Len(t, got, n)
	for i, r := range got {
		assert.Equal(t, i, r.Seq)
	}
	assert.Equal(t, "s", got[n-1].Metadata[domain.MetaSource])
}

func TestStore_ServerErrorsSurface(t *testing.T) {
	ctx := context.Background()
	srv := qdranttest.NewServer()
	defer srv.Close()
	s, err := NewStore(ctx, Config{URL: srv.URL, Collection: "docs"})
	require.NoError(t, err)

	require.NoError(t, s.Add(ctx, []domain.VectorRecord{rec(0, []float32{1, 0}, "a")}))
	err = s.Add(ctx, []domain.VectorRecord{rec(1, []float32{1, 0, 0}, "a")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "wrong vector dimension")
	assert.Equal(t, 1, s.Count())

	err = s.Add(ctx, []domain.VectorRecord{rec(2, []float32{1, 0}, "a"), rec(3, []float32{1}, "a")})
	assert.Error(t, err, "mixed dimensions are rejected before any request")
	assert.Equal(t, 1, srv.Points("docs"))
}

func TestStore_ResetTwice(t *testing.T) {
	ctx := context.Background()
	srv := qdranttest.NewServer()
	defer srv.Close()
	s, err := NewStore(ctx, Config{URL: srv.URL, Collection: "docs"})
	require.NoError(t, err)

	require.NoError(t, s.Add(ctx, []domain.VectorRecord{rec(0, []float32{1, 0}, "a")}))
	require.NoError(t, s.Reset(ctx))
	require.NoError(t, s.Reset(ctx), "dropping a missing collection is fine")
	assert.Equal(t, -1, srv.Points("docs"))

	require.NoError(t, s.Add(ctx, []domain.VectorRecord{rec(0, []float32{0, 0, 1}, "a")}), "a new dimension after reset")
	assert.Equal(t, 1, s.Count())
}
