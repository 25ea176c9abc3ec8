// Package summarizer picks the most representative sentences of a text. The
// ingestion report uses it to describe what was just indexed.
package summarizer

import (
	"math"
	"sort"
	"strings"

	"agentic-rag/internal/textutil"
)

// DefaultMaxSentences is used when Summarize is asked for zero sentences.
const DefaultMaxSentences = 3

// FrequencySummarizer ranks sentences by the normalized frequency of their
// non-stopword tokens across the whole text.
type FrequencySummarizer struct {
	// MaxSentenceRunes drops very long "sentences", which are usually tables
	// or text without punctuation. Zero disables the limit.
	MaxSentenceRunes int
}

// NewFrequencySummarizer creates a frequency-based sentence ranker.
func NewFrequencySummarizer() *FrequencySummarizer {
	return &FrequencySummarizer{MaxSentenceRunes: 400}
}

// Summarize returns up to maxSentences sentences in their original order.
func (s *FrequencySummarizer) Summarize(text string, maxSentences int) string {
	if maxSentences <= 0 {
		maxSentences = DefaultMaxSentences
	}
	var sentences []string
	for _, sent := range textutil.Sentences(text) {
		sent = strings.Join(strings.Fields(sent), " ")
		if s.MaxSentenceRunes > 0 && len([]rune(sent)) > s.MaxSentenceRunes {
			continue
		}
		sentences = append(sentences, sent)
	}
	if len(sentences) == 0 {
		return ""
	}

	tokens := make([][]string, len(sentences))
	freq := map[string]float64{}
	for i, sent := range sentences {
		tokens[i] = textutil.Tokens(sent)
		for _, tok := range tokens[i] {
			freq[tok]++
		}
	}
	maxF := 0.0
	for _, v := range freq {
		maxF = math.Max(maxF, v)
	}
	if maxF > 0 {
		for k, v := range freq {
			freq[k] = v / maxF
		}
	}

	type scored struct {
		idx   int
		score float64
	}
	scores := make([]scored, len(sentences))
	for i := range sentences {
		sum := 0.0
		for _, tok := range tokens[i] {
			sum += freq[tok]
		}
		// dampen the advantage of long sentences
		if l := float64(len(tokens[i])); l > 0 {
			sum /= math.Sqrt(l)
		}
		scores[i] = scored{i, sum}
	}
	sort.SliceStable(scores, func(i, j int) bool { return scores[i].score > scores[j].score })

	n := min(maxSentences, len(scores))
	selected := make([]int, n)
	for i := range selected {
		selected[i] = scores[i].idx
	}
	sort.Ints(selected)
	out := make([]string, n)
	for i, idx := range selected {
		out[i] = sentences[idx]
	}
	return strings.Join(out, " ")
}
