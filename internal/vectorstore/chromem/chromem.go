// Package chromem stores vector records in a chromem-go collection, persisted
// to disk when a directory is configured.
package chromem

import (
	"context"
	"fmt"
	"math"
	"runtime"
	"strconv"
	"sync"

	chromem "github.com/philippgille/chromem-go"

	"agentic-rag/internal/domain"
	"agentic-rag/internal/embedding"
)

// maxSeqGap bounds how many absent sequence numbers Records skips.
const maxSeqGap = 1 << 20

// Store implements the vector store on top of a single chromem collection.
// Record IDs are domain.RecordID(seq).
type Store struct {
	db        *chromem.DB
	name      string
	embedFunc chromem.EmbeddingFunc

	mu         sync.RWMutex
	collection *chromem.Collection
}

// NewStore opens (or creates) the named collection. An empty dir keeps the
// database in memory.
func NewStore(dir, collection string, compress bool, embedder embedding.Embedder) (*Store, error) {
	var (
		db  *chromem.DB
		err error
	)
	if dir == "" {
		db = chromem.NewDB()
	} else {
		db, err = chromem.NewPersistentDB(dir, compress)
		if err != nil {
			return nil, fmt.Errorf("open chromem db %s: %w", dir, err)
		}
	}
	ef := embedding.ToChromemFunc(embedder)
	col, err := db.GetOrCreateCollection(collection, nil, ef)
	if err != nil {
		return nil, fmt.Errorf("create collection: %w", err)
	}
	return &Store{db: db, name: collection, embedFunc: ef, collection: col}, nil
}

// Add stores records with their precomputed vectors.
func (s *Store) Add(ctx context.Context, records []domain.VectorRecord) error {
	if len(records) == 0 {
		return nil
	}
	docs := make([]chromem.Document, len(records))
	for i, r := range records {
		md := make(map[string]string, len(r.Metadata)+1)
		for k, v := range r.Metadata {
			md[k] = v
		}
		md[domain.MetaSeq] = strconv.Itoa(r.Seq)
		docs[i] = chromem.Document{
			ID:        r.ID,
			Metadata:  md,
			Embedding: append([]float32(nil), r.Vector...),
			Content:   r.Text,
		}
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.collection.AddDocuments(ctx, docs, runtime.NumCPU()); err != nil {
		return fmt.Errorf("chromem add: %w", err)
	}
	return nil
}

// Query returns every record matching where with its cosine similarity.
func (s *Store) Query(ctx context.Context, vector []float32, where map[string]string) ([]domain.SearchResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	// chromem-go requires nResults <= collection size.
	count := s.collection.Count()
	if count == 0 {
		return nil, nil
	}
	results, err := s.collection.QueryEmbedding(ctx, vector, count, where, nil)
	if err != nil {
		return nil, fmt.Errorf("chromem query: %w", err)
	}
	out := make([]domain.SearchResult, len(results))
	for i, r := range results {
		score := float64(r.Similarity)
		if math.IsNaN(score) {
			score = 0
		}
		out[i] = domain.SearchResult{
			Record: toRecord(r.ID, r.Content, r.Metadata, r.Embedding),
			Score:  score,
		}
	}
	return out, nil
}

// Records returns every record in insertion order. chromem cannot list a
// collection, so documents are fetched by sequence number until all of them
// are found. Numbers an interrupted add never stored are skipped.
func (s *Store) Records(ctx context.Context) ([]domain.VectorRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := s.collection.Count()
	out := make([]domain.VectorRecord, 0, n)
	missing := 0
	for seq := 0; len(out) < n; seq++ {
		doc, err := s.collection.GetByID(ctx, domain.RecordID(seq))
		if err != nil {
			missing++
			if missing > maxSeqGap {
				return nil, fmt.Errorf("chromem get %d: %w", seq, err)
			}
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			continue
		}
		out = append(out, toRecord(doc.ID, doc.Content, doc.Metadata, doc.Embedding))
	}
	return out, nil
}

func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.collection.Count()
}

// Reset deletes the collection and recreates it empty.
func (s *Store) Reset(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.db.DeleteCollection(s.name); err != nil {
		return fmt.Errorf("delete collection: %w", err)
	}
	col, err := s.db.GetOrCreateCollection(s.name, nil, s.embedFunc)
	if err != nil {
		return fmt.Errorf("recreate collection: %w", err)
	}
	s.collection = col
	return nil
}

func toRecord(id, content string, md map[string]string, vec []float32) domain.VectorRecord {
	seq, _ := strconv.Atoi(md[domain.MetaSeq])
	// chromem normalizes stored vectors; an all-zero vector comes back as NaN.
	for _, v := range vec {
		if math.IsNaN(float64(v)) {
			vec = make([]float32, len(vec))
			break
		}
	}
	return domain.VectorRecord{
		ID:       id,
		Seq:      seq,
		Vector:   vec,
		Text:     content,
		Metadata: md,
	}
}
