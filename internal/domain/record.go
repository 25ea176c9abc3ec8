package domain

import (
	"fmt"
	"math"
)

// VectorRecord is one embedded chunk stored in a collection.
// Seq is the insertion order within the collection and starts at 0.
type VectorRecord struct {
	ID       string
	Seq      int
	Vector   []float32
	Text     string
	Metadata map[string]string
}

// SearchResult represents a matching record with its cosine similarity.
type SearchResult struct {
	Record VectorRecord
	Score  float64
}

// ZeroScore bounds scores that carry no similarity signal, such as a query
// sharing no terms with the record.
const ZeroScore = 1e-9

// HasSignal reports whether the score is distinguishable from zero.
func (r SearchResult) HasSignal() bool {
	return math.Abs(r.Score) > ZeroScore
}

// Source returns the source path of the matched record.
func (r SearchResult) Source() string {
	if s := r.Record.Metadata[MetaSource]; s != "" {
		return s
	}
	return "Unknown"
}

// Filter narrows a search. Source and FileType are exact matches that
// backends may push down; Match is applied to whatever remains.
type Filter struct {
	Source   string
	FileType string
	Match    func(metadata map[string]string) bool
}

// Where returns the exact-match part of the filter as a metadata map.
func (f *Filter) Where() map[string]string {
	if f == nil {
		return nil
	}
	where := make(map[string]string)
	if f.Source != "" {
		where[MetaSource] = f.Source
	}
	if f.FileType != "" {
		where[MetaFileType] = f.FileType
	}
	if len(where) == 0 {
		return nil
	}
	return where
}

// Allows reports whether metadata passes the whole filter.
func (f *Filter) Allows(metadata map[string]string) bool {
	if f == nil {
		return true
	}
	for k, v := range f.Where() {
		if metadata[k] != v {
			return false
		}
	}
	if f.Match != nil && !f.Match(metadata) {
		return false
	}
	return true
}

// Stats summarizes a collection.
type Stats struct {
	Collection     string
	EmbeddingModel string
	Dimension      int
	TotalRecords   int
	PerSource      map[string]int
	PerFileType    map[string]int
}

// RecordID formats the stable identifier of the record at seq. Identifiers
// sort in insertion order.
func RecordID(seq int) string {
	return fmt.Sprintf("%010d", seq)
}
