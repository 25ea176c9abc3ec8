package memory

import (
	"context"
	"fmt"
	"math"
	"sync"

	"agentic-rag/internal/domain"
)

// Storage is a simple in-memory vector store using brute-force cosine similarity.
// Contents are lost when the process exits.
type Storage struct {
	mu        sync.RWMutex
	dimension int
	records   []domain.VectorRecord
}

func NewStorage() *Storage { return &Storage{} }

// Add appends records. Every vector must share the dimension of the first
// record ever stored.
func (s *Storage) Add(_ context.Context, records []domain.VectorRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	dim := s.dimension
	for _, r := range records {
		if dim == 0 {
			dim = len(r.Vector)
		}
		if len(r.Vector) != dim {
			return fmt.Errorf("vector dimension mismatch: got %d, want %d", len(r.Vector), dim)
		}
	}
	s.dimension = dim
	for _, r := range records {
		r.Vector = append([]float32(nil), r.Vector...)
		s.records = append(s.records, r)
	}
	return nil
}

// Query scores every record matching where against vector.
func (s *Storage) Query(_ context.Context, vector []float32, where map[string]string) ([]domain.SearchResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.records) > 0 && len(vector) != s.dimension {
		return nil, fmt.Errorf("query dimension %d does not match collection dimension %d", len(vector), s.dimension)
	}
	results := make([]domain.SearchResult, 0, len(s.records))
	for _, r := range s.records {
		if !matches(r.Metadata, where) {
			continue
		}
		results = append(results, domain.SearchResult{Record: r, Score: cosine(r.Vector, vector)})
	}
	return results, nil
}

// Records returns every record in insertion order.
func (s *Storage) Records(_ context.Context) ([]domain.VectorRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.VectorRecord, len(s.records))
	copy(out, s.records)
	return out, nil
}

func (s *Storage) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

func (s *Storage) Reset(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dimension = 0
	s.records = nil
	return nil
}

func matches(md, where map[string]string) bool {
	for k, v := range where {
		if md[k] != v {
			return false
		}
	}
	return true
}

func cosine(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
