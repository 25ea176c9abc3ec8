package index

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agentic-rag/internal/config"
	"agentic-rag/internal/domain"
	"agentic-rag/internal/embedding/hash"
	"agentic-rag/internal/vectorstore"
	"agentic-rag/internal/vectorstore/memory"
)

// fixedEmbedder returns a preset vector per text and records batch sizes.
type fixedEmbedder struct {
	name    string
	dim     int
	vectors map[string][]float32

	mu      sync.Mutex
	batches []int
	err     error
}

func (f *fixedEmbedder) Name() string    { return f.name }
func (f *fixedEmbedder) Dimensions() int { return f.dim }
func (f *fixedEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	f.mu.Lock()
	f.batches = append(f.batches, len(texts))
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		if v, ok := f.vectors[t]; ok {
			out[i] = v
			continue
		}
		out[i] = make([]float32, f.dim)
		out[i][len(t)%f.dim] = 1
	}
	return out, nil
}

func chunk(text, source, typ string, id int) domain.Chunk {
	return domain.Chunk{
		Text:        text,
		Metadata:    domain.DocumentMetadata{Source: source, FileType: typ},
		ChunkID:     id,
		TotalChunks: 1,
		ChunkSize:   len([]rune(text)),
	}
}

func newManager(t *testing.T, e *fixedEmbedder, opts Options) *Manager {
	t.Helper()
	m, err := New(memory.NewStorage(), e, opts)
	require.NoError(t, err)
	return m
}

func TestSearch_EmptyCollection(t *testing.T) {
	m := newManager(t, &fixedEmbedder{name: "fixed", dim: 2}, Options{})
	res, err := m.Search(context.Background(), "anything", 5, nil)
	require.NoError(t, err)
	assert.Empty(t, res)
}

func TestSearch_OrderingTiesAndClamp(t *testing.T) {
	e := &fixedEmbedder{name: "fixed", dim: 2, vectors: map[string][]float32{
		"q":      {1, 0},
		"first":  {1, 1},
		"second": {1, 0},
		"third":  {1, 1},
		"fourth": {0, 1},
	}}
	m := newManager(t, e, Options{TopK: 2})
	ctx := context.Background()
	require.NoError(t, m.Ingest(ctx, []domain.Chunk{
		chunk("first", "a.txt", "txt", 0),
		chunk("second", "a.txt", "txt", 1),
		chunk("third", "b.md", "md", 0),
		chunk("fourth", "b.md", "md", 1),
	}))

	res, err := m.Search(ctx, "q", 10, nil)
	require.NoError(t, err)
	require.Len(t, res, 4, "topK is clamped to the collection size")
	assert.Equal(t, "second", res[0].Record.Text)
	assert.Equal(t, "first", res[1].Record.Text, "equal scores keep insertion order")
	assert.Equal(t, "third", res[2].Record.Text)
	assert.Equal(t, "fourth", res[3].Record.Text)
	for i := 1; i < len(res); i++ {
		assert.GreaterOrEqual(t, res[i-1].Score, res[i].Score)
	}
	for _, r := range res {
		assert.GreaterOrEqual(t, r.Score, -1.0)
		assert.LessOrEqual(t, r.Score, 1.0)
	}

	res, err = m.Search(ctx, "q", 0, nil)
	require.NoError(t, err)
	assert.Len(t, res, 2, "non-positive topK uses the configured default")
}

func TestSearch_Filter(t *testing.T) {
	e := &fixedEmbedder{name: "fixed", dim: 2, vectors: map[string][]float32{
		"q": {1, 0}, "a1": {1, 0}, "b1": {1, 0}, "a2": {0, 1},
	}}
	m := newManager(t, e, Options{})
	ctx := context.Background()
	require.NoError(t, m.Ingest(ctx, []domain.Chunk{
		chunk("a1", "a.txt", "txt", 0),
		chunk("b1", "b.md", "md", 0),
		chunk("a2", "a.txt", "txt", 1),
	}))

	res, err := m.Search(ctx, "q", 5, &domain.Filter{FileType: "md"})
	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.Equal(t, "b1", res[0].Record.Text)

	res, err = m.Search(ctx, "q", 5, &domain.Filter{Match: func(md map[string]string) bool {
		return md[domain.MetaChunkID] == "1"
	}})
	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.Equal(t, "a2", res[0].Record.Text)
}

func TestSearch_StopwordOnlyQueryMatchesNothing(t *testing.T) {
	m, err := New(memory.NewStorage(), hash.NewEmbedder(64), Options{})
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, m.Ingest(ctx, []domain.Chunk{
		chunk("Vectors are compared with cosine similarity.", "a.txt", "txt", 0),
		chunk("What is in the box is a secret.", "b.txt", "txt", 0),
	}))

	res, err := m.Search(ctx, "box", 5, nil)
	require.NoError(t, err)
	require.Len(t, res, 2)
	assert.Equal(t, "What is in the box is a secret.", res[0].Record.Text)
	assert.Greater(t, res[0].Score, res[1].Score)

	res, err = m.Search(ctx, "is the", 5, nil)
	require.NoError(t, err)
	assert.Empty(t, res, "stopwords alone match nothing")
}

func TestSearch_OrthogonalScoresFallBackToContentWords(t *testing.T) {
	e := &fixedEmbedder{name: "fixed", dim: 2, vectors: map[string][]float32{
		"the secret box":                   {1, 0},
		"Vectors are compared.":            {0, 1},
		"What is in the box is a secret.":  {0, 1},
		"The cat is on the mat, it is so.": {0, 1},
	}}
	m := newManager(t, e, Options{})
	ctx := context.Background()
	require.NoError(t, m.Ingest(ctx, []domain.Chunk{
		chunk("Vectors are compared.", "a.txt", "txt", 0),
		chunk("What is in the box is a secret.", "b.txt", "txt", 0),
		chunk("The cat is on the mat, it is so.", "c.txt", "txt", 0),
	}))

	res, err := m.Search(ctx, "the secret box", 5, nil)
	require.NoError(t, err)
	require.Len(t, res, 3)
	assert.Equal(t, "What is in the box is a secret.", res[0].Record.Text)
	assert.True(t, res[0].HasSignal())
	for _, r := range res[1:] {
		assert.False(t, r.HasSignal(), "shared stopwords give no signal: %q", r.Record.Text)
	}
}

func TestIngest_AssignsSequentialSeqAcrossCalls(t *testing.T) {
	m, err := New(memory.NewStorage(), hash.NewEmbedder(32), Options{})
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, m.Ingest(ctx, []domain.Chunk{chunk("one", "a", "txt", 0), chunk("two", "a", "txt", 1)}))
	require.NoError(t, m.Ingest(ctx, []domain.Chunk{chunk("three", "b", "txt", 0)}))

	records, err := m.store.Records(ctx)
	require.NoError(t, err)
	require.Len(t, records, 3)
	for i, r := range records {
		assert.Equal(t, i, r.Seq)
		assert.Equal(t, domain.RecordID(i), r.ID)
	}
	assert.Equal(t, 3, m.Manifest().NextSeq)
	assert.Equal(t, "hash/32", m.Manifest().EmbeddingModel)
	assert.Equal(t, 32, m.Manifest().Dimension)
}

// flakyStore fails the next Add when failNext is set.
type flakyStore struct {
	vectorstore.Store
	failNext bool
}

func (f *flakyStore) Add(ctx context.Context, records []domain.VectorRecord) error {
	if f.failNext {
		f.failNext = false
		return errors.New("disk full")
	}
	return f.Store.Add(ctx, records)
}

func TestIngest_FailedAddNeverReusesSeq(t *testing.T) {
	store := &flakyStore{Store: memory.NewStorage(), failNext: true}
	m, err := New(store, hash.NewEmbedder(32), Options{})
	require.NoError(t, err)
	ctx := context.Background()

	err = m.Ingest(ctx, []domain.Chunk{chunk("lost", "a", "txt", 0), chunk("lost too", "a", "txt", 1)})
	require.Error(t, err)
	assert.Equal(t, 2, m.Manifest().NextSeq)

	require.NoError(t, m.Ingest(ctx, []domain.Chunk{chunk("kept", "b", "txt", 0)}))
	records, err := store.Records(ctx)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, 2, records[0].Seq)
	assert.Equal(t, domain.RecordID(2), records[0].ID)
	assert.Equal(t, 3, m.Manifest().NextSeq)
}

func TestIngest_ManifestFailureWritesNothing(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "manifests")
	m, err := New(memory.NewStorage(), hash.NewEmbedder(32), Options{ManifestDir: dir})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(dir, []byte("not a directory"), 0o644))

	err = m.Ingest(context.Background(), []domain.Chunk{chunk("text", "a", "txt", 0)})
	require.Error(t, err)
	assert.Equal(t, 0, m.store.Count())
	assert.Nil(t, m.Manifest())
}

func TestEmbed_BatchesKeepOrder(t *testing.T) {
	e := &fixedEmbedder{name: "fixed", dim: 8}
	m := newManager(t, e, Options{BatchSize: 3, Concurrency: 4})

	texts := make([]string, 10)
	for i := range texts {
		texts[i] = strings.Repeat("x", i)
	}
	vecs, err := m.Embed(context.Background(), texts)
	require.NoError(t, err)
	require.Len(t, vecs, 10)
	for i, v := range vecs {
		assert.Equal(t, float32(1), v[i%8], "vector %d", i)
	}
	assert.ElementsMatch(t, []int{3, 3, 3, 1}, e.batches)
}

func TestEmbed_FailureIsExternalCallError(t *testing.T) {
	e := &fixedEmbedder{name: "fixed", dim: 2, err: errors.New("rate limited")}
	m := newManager(t, e, Options{})

	err := m.Ingest(context.Background(), []domain.Chunk{chunk("x", "a", "txt", 0)})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrExternalCall)
	assert.Nil(t, m.Manifest())
}

func TestIngest_RejectsMixedDimensions(t *testing.T) {
	e := &fixedEmbedder{name: "fixed", dim: 2, vectors: map[string][]float32{
		"a": {1, 0}, "b": {1, 0, 0},
	}}
	m := newManager(t, e, Options{})
	err := m.Ingest(context.Background(), []domain.Chunk{chunk("a", "s", "txt", 0), chunk("b", "s", "txt", 1)})
	assert.Error(t, err)
	assert.Equal(t, 0, m.store.Count())
}

func TestProviderMismatch_ThenReset(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	vcfg := config.VectorDBConfig{Type: config.VectorDBChromem, PersistDirectory: dir, CollectionName: "docs"}
	opts := Options{Collection: "docs", ManifestDir: dir}

	first := hash.NewEmbedder(16)
	store, err := vectorstore.New(ctx, vcfg, first)
	require.NoError(t, err)
	m, err := New(store, first, opts)
	require.NoError(t, err)
	require.NoError(t, m.Ingest(ctx, []domain.Chunk{chunk("persisted knowledge", "a.txt", "txt", 0)}))
	assert.FileExists(t, filepath.Join(dir, "docs.manifest.yaml"))

	// Reopen with a different embedding space.
	second := hash.NewEmbedder(32)
	store2, err := vectorstore.New(ctx, vcfg, second)
	require.NoError(t, err)
	m2, err := New(store2, second, opts)
	require.NoError(t, err)

	var mismatch *domain.ProviderMismatchError
	require.ErrorAs(t, m2.Check(), &mismatch)
	assert.Equal(t, "hash/16", mismatch.StoredModel)
	assert.Equal(t, 16, mismatch.StoredDim)
	assert.Equal(t, "hash/32", mismatch.Model)
	assert.True(t, IsMismatch(m2.Check()))

	_, err = m2.Search(ctx, "knowledge", 5, nil)
	assert.ErrorIs(t, err, domain.ErrProviderMismatch)
	err = m2.Ingest(ctx, []domain.Chunk{chunk("new", "b.txt", "txt", 0)})
	assert.ErrorIs(t, err, domain.ErrProviderMismatch)

	require.NoError(t, m2.Reset(ctx))
	require.NoError(t, m2.Check())
	_, err = os.Stat(filepath.Join(dir, "docs.manifest.yaml"))
	assert.True(t, os.IsNotExist(err))

	require.NoError(t, m2.Ingest(ctx, []domain.Chunk{chunk("fresh knowledge", "b.txt", "txt", 0)}))
	res, err := m2.Search(ctx, "knowledge", 5, nil)
	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.Equal(t, "fresh knowledge", res[0].Record.Text)
}

func TestStats_CountsSumToTotal(t *testing.T) {
	m, err := New(memory.NewStorage(), hash.NewEmbedder(16), Options{Collection: "kb"})
	require.NoError(t, err)
	ctx := context.Background()

	var chunks []domain.Chunk
	for i := 0; i < 5; i++ {
		chunks = append(chunks, chunk(fmt.Sprintf("chunk %d text", i), "a.txt", "txt", i))
	}
	chunks = append(chunks, chunk("markdown body", "b.md", "md", 0), chunk("pdf body", "c.pdf", "pdf", 0))
	require.NoError(t, m.Ingest(ctx, chunks))

	st, err := m.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, "kb", st.Collection)
	assert.Equal(t, "hash/16", st.EmbeddingModel)
	assert.Equal(t, 16, st.Dimension)
	assert.Equal(t, 7, st.TotalRecords)
	assert.Equal(t, map[string]int{"a.txt": 5, "b.md": 1, "c.pdf": 1}, st.PerSource)
	assert.Equal(t, map[string]int{"txt": 5, "md": 1, "pdf": 1}, st.PerFileType)

	sum := 0
	for _, n := range st.PerSource {
		sum += n
	}
	assert.Equal(t, st.TotalRecords, sum)
}

func TestRelevanceFloorAndTopK(t *testing.T) {
	m := newManager(t, &fixedEmbedder{name: "f", dim: 2}, Options{RelevanceFloor: 0.3, TopK: 7})
	assert.Equal(t, 0.3, m.RelevanceFloor())
	assert.Equal(t, 7, m.TopK())
}
