package tools

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"agentic-rag/internal/domain"
)

const StatsToolName = "knowledge_base_stats"

// StatsSource reports collection statistics.
type StatsSource interface {
	Stats(ctx context.Context) (domain.Stats, error)
}

// StatsTool describes what the knowledge base contains.
type StatsTool struct {
	source StatsSource
}

func NewStatsTool(s StatsSource) *StatsTool {
	return &StatsTool{source: s}
}

func (t *StatsTool) Name() string { return StatsToolName }
func (t *StatsTool) Kind() Kind   { return KindStats }

func (t *StatsTool) Description() string {
	return "Get statistics about the knowledge base: number of document chunks, sources and file types. " +
		"Use this when the user asks what is in the knowledge base or what information is available. Input is ignored."
}

func (t *StatsTool) Invoke(ctx context.Context, _ Input) Output {
	st, err := t.source.Stats(ctx)
	if err != nil {
		return failure(t.Name(), err)
	}
	return Output{Text: FormatStats(st), Stats: &st, Empty: st.TotalRecords == 0}
}

// FormatStats renders stats for a prompt or the terminal.
func FormatStats(st domain.Stats) string {
	sources := sortedKeys(st.PerSource)
	var b strings.Builder
	b.WriteString("Knowledge Base Statistics:\n")
	fmt.Fprintf(&b, "- Total document chunks: %d\n", st.TotalRecords)
	fmt.Fprintf(&b, "- Unique sources: %d\n", len(sources))
	if len(sources) == 0 {
		b.WriteString("- Sources: N/A")
	} else {
		fmt.Fprintf(&b, "- Sources: %s", counted(sources, st.PerSource))
	}
	if types := sortedKeys(st.PerFileType); len(types) > 0 {
		fmt.Fprintf(&b, "\n- File types: %s", counted(types, st.PerFileType))
	}
	if st.EmbeddingModel != "" {
		fmt.Fprintf(&b, "\n- Embedding model: %s (dim %d)", st.EmbeddingModel, st.Dimension)
	}
	return b.String()
}

// counted renders keys as "key (n)" joined by commas.
func counted(keys []string, counts map[string]int) string {
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s (%d)", k, counts[k])
	}
	return strings.Join(parts, ", ")
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
