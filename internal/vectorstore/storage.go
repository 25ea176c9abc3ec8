package vectorstore

import (
	"context"
	"fmt"
	"path/filepath"

	"agentic-rag/internal/config"
	"agentic-rag/internal/domain"
	"agentic-rag/internal/embedding"
	"agentic-rag/internal/vectorstore/chromem"
	"agentic-rag/internal/vectorstore/memory"
	"agentic-rag/internal/vectorstore/qdrant"
)

// Store persists vector records and scores them against a query vector.
// Ranking and top-k selection are left to the caller.
type Store interface {
	// Add appends records. IDs and Seq are assigned by the caller.
	Add(ctx context.Context, records []domain.VectorRecord) error
	// Query returns every record whose metadata matches where, scored by
	// cosine similarity to vector, in no particular order.
	Query(ctx context.Context, vector []float32, where map[string]string) ([]domain.SearchResult, error)
	// Records returns all records in insertion order.
	Records(ctx context.Context) ([]domain.VectorRecord, error)
	Count() int
	// Reset removes every record.
	Reset(ctx context.Context) error
}

// New opens the backend selected by cfg.Type.
func New(ctx context.Context, cfg config.VectorDBConfig, embedder embedding.Embedder) (Store, error) {
	switch cfg.Type {
	case config.VectorDBMemory:
		return memory.NewStorage(), nil
	case config.VectorDBChromem, "":
		dir := cfg.PersistDirectory
		if dir != "" {
			dir = filepath.Join(dir, "chromem")
		}
		s, err := chromem.NewStore(dir, cfg.CollectionName, cfg.Compress, embedder)
		if err != nil {
			return nil, err
		}
		return s, nil
	case config.VectorDBQdrant:
		s, err := qdrant.NewStore(ctx, qdrant.Config{
			URL:        cfg.URL,
			APIKey:     cfg.APIKey,
			Collection: cfg.CollectionName,
			Timeout:    cfg.Timeout,
		})
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown vector_db type: %s", cfg.Type)
	}
}
