// Package service wires the components together and runs the ingestion
// pipeline: load, clean, chunk, embed, index.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"agentic-rag/internal/chunker"
	"agentic-rag/internal/domain"
	"agentic-rag/internal/index"
	"agentic-rag/internal/loader"
	"agentic-rag/internal/logger"
	"agentic-rag/internal/progress"
	"agentic-rag/internal/summarizer"
)

// summaryInputBytes bounds the text fed to the summarizer.
const summaryInputBytes = 200_000

// Report describes one ingestion run.
type Report struct {
	Directory string
	Reset     bool
	Documents int
	Chunks    int
	// Skipped lists files with unsupported extensions.
	Skipped []error
	// Failed lists files that could not be loaded or chunked.
	Failed        []error
	DocumentStats loader.Stats
	Summary       string
	Elapsed       time.Duration
}

// Ingestor loads a directory into the index.
type Ingestor struct {
	loader           *loader.Loader
	chunker          *chunker.RecursiveChunker
	index            *index.Manager
	summarizer       *summarizer.FrequencySummarizer
	summarySentences int
	progress         progress.Reporter
	log              *slog.Logger
}

// NewIngestor creates an ingestor. A nil reporter disables progress output.
func NewIngestor(l *loader.Loader, c *chunker.RecursiveChunker, m *index.Manager, rep progress.Reporter, log *slog.Logger) *Ingestor {
	if rep == nil {
		rep = progress.Nop{}
	}
	if log == nil {
		log = logger.Discard()
	}
	return &Ingestor{
		loader:           l,
		chunker:          c,
		index:            m,
		summarizer:       summarizer.NewFrequencySummarizer(),
		summarySentences: summarizer.DefaultMaxSentences,
		progress:         rep,
		log:              log,
	}
}

// IngestDirectory indexes every supported file under dir. With reset the
// collection is cleared first, which is also the way to switch embedding
// providers. Unsupported and unreadable files are reported, not fatal;
// a provider mismatch or an embedding failure aborts the run.
func (s *Ingestor) IngestDirectory(ctx context.Context, dir string, reset bool) (*Report, error) {
	start := time.Now()
	rep := &Report{Directory: dir, Reset: reset}

	if reset {
		if err := s.index.Reset(ctx); err != nil {
			return nil, fmt.Errorf("reset collection: %w", err)
		}
	}
	if err := s.index.Check(); err != nil {
		return nil, err
	}

	batch, err := s.loader.LoadDirectory(ctx, dir)
	if err != nil {
		return nil, err
	}
	rep.Skipped = batch.Skipped
	rep.Failed = batch.Failed
	rep.DocumentStats = loader.DocumentStats(batch.Documents)
	s.log.Info("documents loaded", "dir", dir, "documents", len(batch.Documents), "skipped", len(batch.Skipped), "failed", len(batch.Failed))

	var corpus strings.Builder
	s.progress.Start(len(batch.Documents), "Indexing documents")
	for i, doc := range batch.Documents {
		if err := ctx.Err(); err != nil {
			s.progress.Finish()
			return nil, err
		}
		chunks, err := s.chunker.Chunk(doc)
		if err != nil {
			rep.Failed = append(rep.Failed, &domain.LoadError{Path: doc.Metadata.Source, Err: err})
			continue
		}
		if err := s.index.Ingest(ctx, chunks); err != nil {
			s.progress.Finish()
			if errors.Is(err, domain.ErrProviderMismatch) || errors.Is(err, domain.ErrExternalCall) {
				return nil, err
			}
			return nil, fmt.Errorf("index %s: %w", doc.Metadata.Source, err)
		}
		rep.Documents++
		rep.Chunks += len(chunks)
		s.progress.Update(i+1, filepath.Base(doc.Metadata.Source))
		s.log.Debug("document indexed", "source", doc.Metadata.Source, "chunks", len(chunks))

		if corpus.Len() < summaryInputBytes {
			corpus.WriteString(chunker.Clean(doc.Content))
			corpus.WriteString("\n")
		}
	}
	s.progress.Finish()

	rep.Summary = s.summarizer.Summarize(corpus.String(), s.summarySentences)
	rep.Elapsed = time.Since(start)
	s.log.Info("ingestion finished", "documents", rep.Documents, "chunks", rep.Chunks, "elapsed", rep.Elapsed)
	return rep, nil
}
