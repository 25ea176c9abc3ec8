// Package qdrant stores vector records in a Qdrant collection through its
// REST API.
package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"agentic-rag/internal/domain"
)

const scrollPage = 256

var errNotFound = errors.New("not found")

// Config addresses one collection on a Qdrant server.
type Config struct {
	URL        string
	APIKey     string
	Collection string
	Timeout    time.Duration
}

// Store is a minimal REST client to Qdrant. Points use cosine distance and
// are keyed by record Seq. The collection is created on the first Add with
// the dimension of the vectors added.
type Store struct {
	url        string
	apiKey     string
	collection string
	client     *http.Client

	mu     sync.RWMutex
	exists bool
	count  int
}

type payload struct {
	Text     string            `json:"text"`
	Seq      int               `json:"seq"`
	Metadata map[string]string `json:"metadata"`
}

type point struct {
	ID      uint64    `json:"id"`
	Vector  []float32 `json:"vector,omitempty"`
	Payload payload   `json:"payload"`
	Score   float64   `json:"score,omitempty"`
}

// NewStore connects to the server and reads the current size of the
// collection. A missing collection is not an error.
func NewStore(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.URL == "" {
		return nil, errors.New("qdrant url is required")
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	s := &Store{
		url:        strings.TrimRight(cfg.URL, "/"),
		apiKey:     cfg.APIKey,
		collection: cfg.Collection,
		client:     &http.Client{Timeout: timeout},
	}
	if err := s.sync(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) sync(ctx context.Context) error {
	err := s.do(ctx, http.MethodGet, s.path(""), nil, nil)
	if errors.Is(err, errNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	var resp struct {
		Result struct {
			Count int `json:"count"`
		} `json:"result"`
	}
	if err := s.do(ctx, http.MethodPost, s.path("/points/count"), map[string]any{"exact": true}, &resp); err != nil {
		return err
	}
	s.exists = true
	s.count = resp.Result.Count
	return nil
}

// Add upserts records. Every vector must share one dimension.
func (s *Store) Add(ctx context.Context, records []domain.VectorRecord) error {
	if len(records) == 0 {
		return nil
	}
	dim := len(records[0].Vector)
	points := make([]point, len(records))
	for i, r := range records {
		if len(r.Vector) != dim {
			return fmt.Errorf("vector dimension mismatch: got %d, want %d", len(r.Vector), dim)
		}
		points[i] = point{
			ID:      uint64(r.Seq),
			Vector:  r.Vector,
			Payload: payload{Text: r.Text, Seq: r.Seq, Metadata: r.Metadata},
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.exists {
		body := map[string]any{"vectors": map[string]any{"size": dim, "distance": "Cosine"}}
		if err := s.do(ctx, http.MethodPut, s.path(""), body, nil); err != nil {
			return fmt.Errorf("create collection: %w", err)
		}
		s.exists = true
	}
	if err := s.do(ctx, http.MethodPut, s.path("/points?wait=true"), map[string]any{"points": points}, nil); err != nil {
		return fmt.Errorf("upsert points: %w", err)
	}
	s.count += len(records)
	return nil
}

// Query returns every point matching where with its cosine similarity.
func (s *Store) Query(ctx context.Context, vector []float32, where map[string]string) ([]domain.SearchResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.exists || s.count == 0 {
		return nil, nil
	}
	body := map[string]any{
		"vector":       vector,
		"limit":        s.count,
		"with_payload": true,
	}
	if f := filter(where); f != nil {
		body["filter"] = f
	}
	var resp struct {
		Result []point `json:"result"`
	}
	if err := s.do(ctx, http.MethodPost, s.path("/points/search"), body, &resp); err != nil {
		return nil, err
	}
	out := make([]domain.SearchResult, len(resp.Result))
	for i, p := range resp.Result {
		out[i] = domain.SearchResult{Record: record(p), Score: p.Score}
	}
	return out, nil
}

// Records scrolls through the collection and returns every record in
// insertion order. Vectors come back normalized by the server.
func (s *Store) Records(ctx context.Context) ([]domain.VectorRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.exists {
		return nil, nil
	}
	var (
		out    []domain.VectorRecord
		offset *uint64
	)
	for {
		body := map[string]any{"limit": scrollPage, "with_payload": true, "with_vector": true}
		if offset != nil {
			body["offset"] = *offset
		}
		var resp struct {
			Result struct {
				Points         []point `json:"points"`
				NextPageOffset *uint64 `json:"next_page_offset"`
			} `json:"result"`
		}
		if err := s.do(ctx, http.MethodPost, s.path("/points/scroll"), body, &resp); err != nil {
			return nil, err
		}
		for _, p := range resp.Result.Points {
			out = append(out, record(p))
		}
		if resp.Result.NextPageOffset == nil {
			break
		}
		offset = resp.Result.NextPageOffset
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Seq < out[j].Seq })
	return out, nil
}

func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.count
}

// Reset drops the collection.
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.do(ctx, http.MethodDelete, s.path(""), nil, nil); err != nil && !errors.Is(err, errNotFound) {
		return fmt.Errorf("drop collection: %w", err)
	}
	s.exists = false
	s.count = 0
	return nil
}

func (s *Store) path(suffix string) string {
	return s.url + "/collections/" + s.collection + suffix
}

func (s *Store) do(ctx context.Context, method, url string, body, out any) error {
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		r = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, r)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if s.apiKey != "" {
		req.Header.Set("api-key", s.apiKey)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return errNotFound
	}
	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("qdrant %s %s failed: %s: %s", method, url, resp.Status, strings.TrimSpace(string(msg)))
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode qdrant response: %w", err)
		}
	}
	return nil
}

func filter(where map[string]string) map[string]any {
	if len(where) == 0 {
		return nil
	}
	keys := make([]string, 0, len(where))
	for k := range where {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	must := make([]map[string]any, len(keys))
	for i, k := range keys {
		must[i] = map[string]any{"key": "metadata." + k, "match": map[string]any{"value": where[k]}}
	}
	return map[string]any{"must": must}
}

func record(p point) domain.VectorRecord {
	md := p.Payload.Metadata
	if md == nil {
		md = map[string]string{}
	}
	return domain.VectorRecord{
		ID:       domain.RecordID(p.Payload.Seq),
		Seq:      p.Payload.Seq,
		Vector:   p.Vector,
		Text:     p.Payload.Text,
		Metadata: md,
	}
}
