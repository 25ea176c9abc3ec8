// Package index manages a named vector collection: embedding, ingestion,
// similarity search and the binding between a collection and the embedding
// model that built it.
package index

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"agentic-rag/internal/domain"
	"agentic-rag/internal/embedding"
	"agentic-rag/internal/logger"
	"agentic-rag/internal/textutil"
	"agentic-rag/internal/vectorstore"
)

const (
	defaultTopK      = 5
	defaultBatchSize = 32
)

// Options configures a Manager.
type Options struct {
	Collection string
	// ManifestDir holds <collection>.manifest.yaml. Empty keeps the manifest
	// in memory, which suits ephemeral stores.
	ManifestDir    string
	TopK           int
	RelevanceFloor float64
	BatchSize      int
	Concurrency    int
	Logger         *slog.Logger
}

// Manager owns one collection. Ingest and Reset are serialized; searches may
// run concurrently with each other.
type Manager struct {
	store    vectorstore.Store
	embedder embedding.Embedder
	opts     Options
	log      *slog.Logger
	path     string
	now      func() time.Time

	mu       sync.RWMutex
	manifest *Manifest
}

// New opens the collection. A manifest that disagrees with the embedder does
// not fail here; Check reports it and Search/Ingest refuse to run until Reset.
func New(store vectorstore.Store, embedder embedding.Embedder, opts Options) (*Manager, error) {
	if opts.Collection == "" {
		opts.Collection = "documents"
	}
	if opts.TopK <= 0 {
		opts.TopK = defaultTopK
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = defaultBatchSize
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}
	log := opts.Logger
	if log == nil {
		log = logger.Discard()
	}
	path := manifestPath(opts.ManifestDir, opts.Collection)
	m, err := loadManifest(path)
	if err != nil {
		return nil, err
	}
	return &Manager{
		store:    store,
		embedder: embedder,
		opts:     opts,
		log:      log.With("collection", opts.Collection),
		path:     path,
		now:      time.Now,
		manifest: m,
	}, nil
}

// Check reports a *domain.ProviderMismatchError when the collection was built
// with a different embedding model or dimensionality than the configured one.
func (m *Manager) Check() error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.checkLocked()
}

func (m *Manager) checkLocked() error {
	if m.manifest == nil {
		return nil
	}
	dim := m.embedder.Dimensions()
	if m.manifest.EmbeddingModel != m.embedder.Name() || (dim > 0 && dim != m.manifest.Dimension) {
		return m.mismatch(dim)
	}
	return nil
}

func (m *Manager) mismatch(dim int) error {
	return &domain.ProviderMismatchError{
		Collection:  m.opts.Collection,
		StoredModel: m.manifest.EmbeddingModel,
		StoredDim:   m.manifest.Dimension,
		Model:       m.embedder.Name(),
		Dim:         dim,
	}
}

// RelevanceFloor is the minimum score for a hit to count as relevant context.
func (m *Manager) RelevanceFloor() float64 { return m.opts.RelevanceFloor }

// TopK is the default number of results returned by Search.
func (m *Manager) TopK() int { return m.opts.TopK }

// Embed returns one vector per text in input order. Batches of BatchSize are
// embedded with at most Concurrency requests in flight.
func (m *Manager) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.opts.Concurrency)
	for start := 0; start < len(texts); start += m.opts.BatchSize {
		end := min(start+m.opts.BatchSize, len(texts))
		g.Go(func() error {
			vecs, err := m.embedder.Embed(gctx, texts[start:end])
			if err != nil {
				return &domain.ExternalCallError{Op: "embed with " + m.embedder.Name(), Err: err}
			}
			if len(vecs) != end-start {
				return fmt.Errorf("embedder %s returned %d vectors for %d texts", m.embedder.Name(), len(vecs), end-start)
			}
			copy(out[start:end], vecs)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// Ingest embeds chunks and appends them to the collection in order.
func (m *Manager) Ingest(ctx context.Context, chunks []domain.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkLocked(); err != nil {
		return err
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	vecs, err := m.Embed(ctx, texts)
	if err != nil {
		return err
	}
	dim := len(vecs[0])
	if dim == 0 {
		return fmt.Errorf("embedder %s returned empty vectors", m.embedder.Name())
	}
	for i, v := range vecs {
		if len(v) != dim {
			return fmt.Errorf("embedding %d has dimension %d, expected %d", i, len(v), dim)
		}
	}
	if m.manifest != nil && m.manifest.Dimension != dim {
		return m.mismatch(dim)
	}

	next := m.store.Count()
	if m.manifest != nil {
		next = m.manifest.NextSeq
	}
	records := make([]domain.VectorRecord, len(chunks))
	for i, c := range chunks {
		seq := next + i
		records[i] = domain.VectorRecord{
			ID:       domain.RecordID(seq),
			Seq:      seq,
			Vector:   vecs[i],
			Text:     c.Text,
			Metadata: c.RecordMetadata(),
		}
	}

	// Claim the sequence range before writing. A failed add leaves a gap and
	// its IDs are never handed out again.
	now := m.now().UTC()
	manifest := &Manifest{
		Collection:     m.opts.Collection,
		EmbeddingModel: m.embedder.Name(),
		Dimension:      dim,
		CreatedAt:      now,
	}
	if m.manifest != nil {
		*manifest = *m.manifest
	}
	manifest.NextSeq = next + len(records)
	manifest.UpdatedAt = now
	if err := saveManifest(m.path, manifest); err != nil {
		return err
	}
	m.manifest = manifest

	if err := m.store.Add(ctx, records); err != nil {
		return fmt.Errorf("add records: %w", err)
	}
	m.log.Debug("ingested records", "count", len(records), "next_seq", manifest.NextSeq, "dimension", dim)
	return nil
}

// Reset removes every record and the manifest, unbinding the collection from
// its embedding model.
func (m *Manager) Reset(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.store.Reset(ctx); err != nil {
		return fmt.Errorf("reset store: %w", err)
	}
	if err := removeManifest(m.path); err != nil {
		return err
	}
	m.manifest = nil
	m.log.Info("collection reset")
	return nil
}

// Search ranks records by cosine similarity to query. Results are sorted by
// score, ties broken by insertion order, and cut to topK (the configured
// default when topK <= 0). An empty collection yields no results and no error.
func (m *Manager) Search(ctx context.Context, query string, topK int, filter *domain.Filter) ([]domain.SearchResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.checkLocked(); err != nil {
		return nil, err
	}
	if m.store.Count() == 0 {
		return nil, nil
	}
	if topK <= 0 {
		topK = m.opts.TopK
	}

	vecs, err := m.Embed(ctx, []string{query})
	if err != nil {
		return nil, err
	}
	vec := vecs[0]
	if m.manifest != nil && len(vec) != m.manifest.Dimension {
		return nil, m.mismatch(len(vec))
	}

	var results []domain.SearchResult
	if isZero(vec) {
		results, err = m.lexical(ctx, query, filter)
	} else {
		results, err = m.store.Query(ctx, vec, filter.Where())
		if err == nil {
			results = applyFilter(results, filter)
			if allZero(results) {
				results, err = m.lexical(ctx, query, filter)
			}
		}
	}
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}

	rank(results)
	if len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}

// lexical ranks records by content-word overlap with the query. Used when
// the embedder gives no signal. A query made only of stopwords matches nothing.
func (m *Manager) lexical(ctx context.Context, query string, filter *domain.Filter) ([]domain.SearchResult, error) {
	qset := textutil.TokenSet(query)
	if len(qset) == 0 {
		return nil, nil
	}
	records, err := m.store.Records(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]domain.SearchResult, 0, len(records))
	for _, r := range records {
		if !filter.Allows(r.Metadata) {
			continue
		}
		out = append(out, domain.SearchResult{Record: r, Score: textutil.Ochiai(qset, textutil.TokenSet(r.Text))})
	}
	m.log.Debug("lexical fallback", "candidates", len(out))
	return out, nil
}

// Stats summarizes the collection.
func (m *Manager) Stats(ctx context.Context) (domain.Stats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	records, err := m.store.Records(ctx)
	if err != nil {
		return domain.Stats{}, fmt.Errorf("list records: %w", err)
	}
	st := domain.Stats{
		Collection:     m.opts.Collection,
		EmbeddingModel: m.embedder.Name(),
		Dimension:      m.embedder.Dimensions(),
		TotalRecords:   len(records),
		PerSource:      make(map[string]int),
		PerFileType:    make(map[string]int),
	}
	if m.manifest != nil {
		st.EmbeddingModel = m.manifest.EmbeddingModel
		st.Dimension = m.manifest.Dimension
	}
	for _, r := range records {
		src := r.Metadata[domain.MetaSource]
		if src == "" {
			src = "Unknown"
		}
		typ := r.Metadata[domain.MetaFileType]
		if typ == "" {
			typ = "unknown"
		}
		st.PerSource[src]++
		st.PerFileType[typ]++
	}
	return st, nil
}

// Manifest returns a copy of the current manifest, or nil for an unbound collection.
func (m *Manager) Manifest() *Manifest {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.manifest == nil {
		return nil
	}
	cp := *m.manifest
	return &cp
}

// IsMismatch reports whether err is a provider mismatch.
func IsMismatch(err error) bool {
	return errors.Is(err, domain.ErrProviderMismatch)
}

func applyFilter(results []domain.SearchResult, filter *domain.Filter) []domain.SearchResult {
	if filter == nil || filter.Match == nil {
		return results
	}
	out := results[:0]
	for _, r := range results {
		if filter.Allows(r.Record.Metadata) {
			out = append(out, r)
		}
	}
	return out
}

func rank(results []domain.SearchResult) {
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Record.Seq < results[j].Record.Seq
	})
}

func isZero(vec []float32) bool {
	for _, v := range vec {
		if v != 0 {
			return false
		}
	}
	return true
}

func allZero(results []domain.SearchResult) bool {
	for _, r := range results {
		if r.HasSignal() {
			return false
		}
	}
	return true
}
