// Package qdranttest runs an in-process fake of the Qdrant REST endpoints
// used by the qdrant store.
package qdranttest

import (
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
)

// Server is an httptest server holding collections in memory.
type Server struct {
	*httptest.Server

	mu          sync.Mutex
	collections map[string]*collection
	// LastAPIKey is the api-key header of the most recent request.
	LastAPIKey string
}

type collection struct {
	size   int
	points map[uint64]stored
}

type stored struct {
	vector  []float32
	payload map[string]any
}

type matchCond struct {
	Key   string `json:"key"`
	Match struct {
		Value string `json:"value"`
	} `json:"match"`
}

type filterBody struct {
	Must []matchCond `json:"must"`
}

// NewServer starts a fake. Close it when done.
func NewServer() *Server {
	s := &Server{collections: make(map[string]*collection)}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /collections/{name}", s.getCollection)
	mux.HandleFunc("PUT /collections/{name}", s.createCollection)
	mux.HandleFunc("DELETE /collections/{name}", s.deleteCollection)
	mux.HandleFunc("PUT /collections/{name}/points", s.upsert)
	mux.HandleFunc("POST /collections/{name}/points/count", s.count)
	mux.HandleFunc("POST /collections/{name}/points/search", s.search)
	mux.HandleFunc("POST /collections/{name}/points/scroll", s.scroll)
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.LastAPIKey = r.Header.Get("api-key")
		s.mu.Unlock()
		mux.ServeHTTP(w, r)
	}))
	return s
}

// Points reports how many points collection holds, or -1 if it does not exist.
func (s *Server) Points(name string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.collections[name]
	if !ok {
		return -1
	}
	return len(c.points)
}

func (s *Server) lookup(w http.ResponseWriter, r *http.Request) (*collection, bool) {
	c, ok := s.collections[r.PathValue("name")]
	if !ok {
		writeError(w, http.StatusNotFound, "collection not found")
	}
	return c, ok
}

func (s *Server) getCollection(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.lookup(w, r); ok {
		writeResult(w, map[string]any{"points_count": len(c.points), "status": "green"})
	}
}

func (s *Server) createCollection(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Vectors struct {
			Size     int    `json:"size"`
			Distance string `json:"distance"`
		} `json:"vectors"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Vectors.Size <= 0 {
		writeError(w, http.StatusBadRequest, "bad vectors config")
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	name := r.PathValue("name")
	if _, ok := s.collections[name]; ok {
		writeError(w, http.StatusConflict, "collection already exists")
		return
	}
	s.collections[name] = &collection{size: body.Vectors.Size, points: make(map[uint64]stored)}
	writeResult(w, true)
}

func (s *Server) deleteCollection(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.lookup(w, r); ok {
		delete(s.collections, r.PathValue("name"))
		writeResult(w, true)
	}
}

func (s *Server) upsert(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Points []struct {
			ID      uint64         `json:"id"`
			Vector  []float32      `json:"vector"`
			Payload map[string]any `json:"payload"`
		} `json:"points"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.lookup(w, r)
	if !ok {
		return
	}
	for _, p := range body.Points {
		if len(p.Vector) != c.size {
			writeError(w, http.StatusBadRequest, "wrong vector dimension")
			return
		}
	}
	for _, p := range body.Points {
		c.points[p.ID] = stored{vector: normalize(p.Vector), payload: p.Payload}
	}
	writeResult(w, map[string]any{"status": "completed"})
}

func (s *Server) count(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.lookup(w, r); ok {
		writeResult(w, map[string]any{"count": len(c.points)})
	}
}

func (s *Server) search(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Vector []float32   `json:"vector"`
		Limit  int         `json:"limit"`
		Filter *filterBody `json:"filter"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.lookup(w, r)
	if !ok {
		return
	}
	if len(body.Vector) != c.size {
		writeError(w, http.StatusBadRequest, "wrong vector dimension")
		return
	}
	q := normalize(body.Vector)
	type hit struct {
		ID      uint64         `json:"id"`
		Score   float64        `json:"score"`
		Payload map[string]any `json:"payload"`
	}
	var hits []hit
	for id, p := range c.points {
		if !allows(body.Filter, p.payload) {
			continue
		}
		var dot float64
		for i := range q {
			dot += float64(q[i]) * float64(p.vector[i])
		}
		hits = append(hits, hit{ID: id, Score: dot, Payload: p.payload})
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].ID < hits[j].ID
	})
	if body.Limit > 0 && len(hits) > body.Limit {
		hits = hits[:body.Limit]
	}
	if hits == nil {
		hits = []hit{}
	}
	writeResult(w, hits)
}

func (s *Server) scroll(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Limit      int     `json:"limit"`
		Offset     *uint64 `json:"offset"`
		WithVector bool    `json:"with_vector"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.lookup(w, r)
	if !ok {
		return
	}
	ids := make([]uint64, 0, len(c.points))
	for id := range c.points {
		if body.Offset == nil || id >= *body.Offset {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	var next *uint64
	if body.Limit > 0 && len(ids) > body.Limit {
		n := ids[body.Limit]
		next = &n
		ids = ids[:body.Limit]
	}
	points := make([]map[string]any, len(ids))
	for i, id := range ids {
		p := map[string]any{"id": id, "payload": c.points[id].payload}
		if body.WithVector {
			p["vector"] = c.points[id].vector
		}
		points[i] = p
	}
	writeResult(w, map[string]any{"points": points, "next_page_offset": next})
}

func allows(f *filterBody, payload map[string]any) bool {
	if f == nil {
		return true
	}
	md, _ := payload["metadata"].(map[string]any)
	for _, cond := range f.Must {
		key := strings.TrimPrefix(cond.Key, "metadata.")
		if v, _ := md[key].(string); v != cond.Match.Value {
			return false
		}
	}
	return true
}

func normalize(v []float32) []float32 {
	var n float64
	for _, x := range v {
		n += float64(x) * float64(x)
	}
	out := make([]float32, len(v))
	if n == 0 {
		return out
	}
	n = math.Sqrt(n)
	for i, x := range v {
		out[i] = float32(float64(x) / n)
	}
	return out
}

func writeResult(w http.ResponseWriter, result any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"result": result, "status": "ok", "time": 0.0001})
}

func writeError(w http.ResponseWriter, code int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]any{"status": map[string]string{"error": msg}})
}
