package tools

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"agentic-rag/internal/domain"
	"agentic-rag/internal/textutil"
)

const (
	SearchToolName = "knowledge_base_search"
	// NoResults is the observation for a search that matched nothing.
	NoResults = "No relevant information found in the knowledge base."

	maxExcerptRunes = 400
)

// Searcher is the part of the index manager the search tool needs.
type Searcher interface {
	Search(ctx context.Context, query string, topK int, filter *domain.Filter) ([]domain.SearchResult, error)
}

// SearchTool runs semantic search over the knowledge base.
type SearchTool struct {
	searcher Searcher
	topK     int
}

// NewSearchTool returns a search tool that uses topK when the call does not
// ask for a specific number of results.
func NewSearchTool(s Searcher, topK int) *SearchTool {
	return &SearchTool{searcher: s, topK: topK}
}

func (t *SearchTool) Name() string { return SearchToolName }
func (t *SearchTool) Kind() Kind   { return KindSearch }

func (t *SearchTool) Description() string {
	return "Search the knowledge base for relevant information to answer questions. " +
		"Performs semantic search over the document collection and returns the most relevant passages. " +
		`Input is the search query, or JSON {"query": "...", "num_results": n}.`
}

func (t *SearchTool) Invoke(ctx context.Context, in Input) Output {
	query := strings.TrimSpace(in.Query)
	if query == "" {
		return failure(t.Name(), errors.New("empty query"))
	}
	k := in.TopK
	if k <= 0 {
		k = t.topK
	}
	results, err := t.searcher.Search(ctx, query, k, in.Filter)
	if err != nil {
		return failure(t.Name(), err)
	}
	// A zero score means the query and the passage share nothing.
	hits := results[:0]
	for _, r := range results {
		if r.HasSignal() {
			hits = append(hits, r)
		}
	}
	if len(hits) == 0 {
		return Output{Text: NoResults, Empty: true}
	}
	return Output{Text: FormatResults(query, hits), Results: hits}
}

// FormatResults renders ranked hits with their source, score, the sentence
// that best matches the query and the full passage.
func FormatResults(query string, results []domain.SearchResult) string {
	var b strings.Builder
	for i, r := range results {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "--- Result %d (relevance: %.3f) ---\n", i+1, r.Score)
		fmt.Fprintf(&b, "Source: %s\n", r.Source())
		fmt.Fprintf(&b, "Excerpt: %s\n", Excerpt(r.Record.Text, query))
		fmt.Fprintf(&b, "Content: %s\n", strings.TrimSpace(r.Record.Text))
	}
	return b.String()
}

// Excerpt picks the sentence of text sharing the most words with query. The
// first sentence wins ties.
func Excerpt(text, query string) string {
	sentences := textutil.Sentences(text)
	if len(sentences) == 0 {
		return truncate(strings.TrimSpace(text), maxExcerptRunes)
	}
	q := textutil.TokenSet(query)
	if len(q) == 0 {
		q = textutil.WordSet(query)
	}
	best, bestScore := 0, -1
	for i, s := range sentences {
		score := 0
		for w := range textutil.WordSet(s) {
			if _, ok := q[w]; ok {
				score++
			}
		}
		if score > bestScore {
			best, bestScore = i, score
		}
	}
	return truncate(strings.Join(strings.Fields(sentences[best]), " "), maxExcerptRunes)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "…"
}
