// Package chunker splits documents into bounded, overlapping chunks.
package chunker

import (
	"fmt"

	"agentic-rag/internal/domain"
)

// DefaultChunkSize is the default number of characters per chunk.
const DefaultChunkSize = 1000

// DefaultChunkOverlap is the default number of characters carried into the next chunk.
const DefaultChunkOverlap = 200

// DefaultSeparators are tried coarsest first; "" is a hard cut.
var DefaultSeparators = []string{"\n\n", "\n", " ", ""}

// RecursiveChunker cuts text at the coarsest separator that fits the size
// budget, falling back to finer separators and finally a hard cut.
//
// Every chunk after the first starts with exactly the last `overlap`
// characters of the previous chunk, so dropping that prefix and joining the
// chunks in order gives back the (cleaned) source text.
type RecursiveChunker struct {
	chunkSize  int
	overlap    int
	separators [][]rune
	clean      bool
}

// Option configures the chunker.
type Option func(*RecursiveChunker)

// WithChunkSize sets the maximum chunk size in characters.
func WithChunkSize(size int) Option {
	return func(c *RecursiveChunker) { c.chunkSize = size }
}

// WithOverlap sets the overlap between consecutive chunks in characters.
func WithOverlap(overlap int) Option {
	return func(c *RecursiveChunker) { c.overlap = overlap }
}

// WithSeparators sets the split priority list.
func WithSeparators(seps []string) Option {
	return func(c *RecursiveChunker) {
		if len(seps) > 0 {
			c.separators = toRunes(seps)
		}
	}
}

// WithCleaning toggles Clean before chunking.
func WithCleaning(enabled bool) Option {
	return func(c *RecursiveChunker) { c.clean = enabled }
}

// New creates a chunker. The overlap must be smaller than the chunk size.
func New(opts ...Option) (*RecursiveChunker, error) {
	c := &RecursiveChunker{
		chunkSize:  DefaultChunkSize,
		overlap:    DefaultChunkOverlap,
		separators: toRunes(DefaultSeparators),
		clean:      true,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.chunkSize <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", c.chunkSize)
	}
	if c.overlap < 0 || c.overlap >= c.chunkSize {
		return nil, fmt.Errorf("chunk overlap must be in [0, %d), got %d", c.chunkSize, c.overlap)
	}
	return c, nil
}

// Overlap returns the configured overlap in characters.
func (c *RecursiveChunker) Overlap() int { return c.overlap }

// Chunk splits a document. Empty documents produce no chunks.
func (c *RecursiveChunker) Chunk(doc domain.Document) ([]domain.Chunk, error) {
	text := doc.Content
	if c.clean {
		text = Clean(text)
	}
	runes := []rune(text)
	spans := c.spans(runes)
	chunks := make([]domain.Chunk, len(spans))
	for i, sp := range spans {
		chunks[i] = domain.Chunk{
			Text:        string(runes[sp.start:sp.end]),
			Metadata:    doc.Metadata,
			ChunkID:     i,
			TotalChunks: len(spans),
			ChunkSize:   sp.end - sp.start,
		}
	}
	return chunks, nil
}

type span struct{ start, end int }

func (c *RecursiveChunker) spans(runes []rune) []span {
	n := len(runes)
	if n == 0 {
		return nil
	}
	if n <= c.chunkSize {
		return []span{{0, n}}
	}
	var out []span
	for s := 0; s < n; {
		// The first chunk has no prefix and must outgrow the overlap so the
		// next chunk can borrow a full overlap from it.
		budget, minCut, prefix := c.chunkSize-c.overlap, 0, c.overlap
		if s == 0 {
			budget, minCut, prefix = c.chunkSize, c.overlap, 0
		}
		end := n
		if n-s > budget {
			end = s + c.cut(runes[s:s+budget], minCut)
		}
		out = append(out, span{start: s - prefix, end: end})
		s = end
	}
	return out
}

// cut returns the length of the window prefix to keep: the last boundary of
// the first separator that has one beyond minCut, or the whole window.
func (c *RecursiveChunker) cut(window []rune, minCut int) int {
	for _, sep := range c.separators {
		if len(sep) == 0 {
			return len(window)
		}
		if i := lastIndex(window, sep); i >= 0 {
			if b := i + len(sep); b > minCut {
				return b
			}
		}
	}
	return len(window)
}

func lastIndex(s, sep []rune) int {
	for i := len(s) - len(sep); i >= 0; i-- {
		match := true
		for j := range sep {
			if s[i+j] != sep[j] {
				match = false
				break
			}
		}
		if match {
			return i
		}
	}
	return -1
}

func toRunes(seps []string) [][]rune {
	out := make([][]rune, len(seps))
	for i, s := range seps {
		out[i] = []rune(s)
	}
	return out
}
