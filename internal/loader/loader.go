// Package loader reads documents from disk and turns them into plain text
// with file metadata. Each format is a ParseFunc keyed by extension.
package loader

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/google/uuid"

	"agentic-rag/internal/domain"
	"agentic-rag/internal/logger"
)

// ParseFunc extracts text from raw file bytes. pages is 0 for formats
// without pages.
type ParseFunc func(data []byte) (text string, pages int, err error)

// Loader loads supported files into documents.
type Loader struct {
	parsers map[string]ParseFunc
	exclude []string
	log     *slog.Logger
	now     func() time.Time
}

// Option configures a Loader.
type Option func(*Loader)

// WithExclude skips paths matching any of the doublestar patterns, matched
// against the path relative to the loaded directory and against the base name.
func WithExclude(patterns ...string) Option {
	return func(l *Loader) { l.exclude = append(l.exclude, patterns...) }
}

// WithParser registers or replaces the parser for ext (without the dot).
func WithParser(ext string, fn ParseFunc) Option {
	return func(l *Loader) { l.parsers[strings.ToLower(ext)] = fn }
}

// WithLogger sets the logger used for per-file outcomes.
func WithLogger(log *slog.Logger) Option {
	return func(l *Loader) { l.log = log }
}

// New returns a loader for txt, md, markdown, pdf and docx files.
func New(opts ...Option) *Loader {
	l := &Loader{
		parsers: map[string]ParseFunc{
			"txt":      parseText,
			"md":       parseMarkdown,
			"markdown": parseMarkdown,
			"pdf":      parsePDF,
			"docx":     parseDOCX,
		},
		log: logger.Discard(),
		now: time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Extensions returns the supported extensions, sorted.
func (l *Loader) Extensions() []string {
	exts := make([]string, 0, len(l.parsers))
	for ext := range l.parsers {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}

// Supported reports whether path has a registered extension.
func (l *Loader) Supported(path string) bool {
	_, ok := l.parsers[extension(path)]
	return ok
}

// LoadFile loads a single file. Unknown extensions fail with
// *domain.UnsupportedFormatError, everything else with *domain.LoadError.
func (l *Loader) LoadFile(path string) (domain.Document, error) {
	ext := extension(path)
	parse, ok := l.parsers[ext]
	if !ok {
		return domain.Document{}, &domain.UnsupportedFormatError{Path: path, Ext: ext}
	}
	info, err := os.Stat(path)
	if err != nil {
		return domain.Document{}, &domain.LoadError{Path: path, Err: err}
	}
	if info.IsDir() {
		return domain.Document{}, &domain.LoadError{Path: path, Err: fmt.Errorf("is a directory")}
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return domain.Document{}, &domain.LoadError{Path: path, Err: err}
	}
	text, pages, err := parse(data)
	if err != nil {
		return domain.Document{}, &domain.LoadError{Path: path, Err: err}
	}

	sum := md5.Sum(data)
	hash := hex.EncodeToString(sum[:])
	return domain.Document{
		ID:      uuid.NewSHA1(uuid.NameSpaceURL, []byte(filepath.ToSlash(path)+"#"+hash)).String(),
		Content: text,
		Metadata: domain.DocumentMetadata{
			Source:     path,
			FileType:   ext,
			Title:      strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)),
			Size:       info.Size(),
			TotalPages: pages,
			// creation time is not portable; the modification time stands in
			CreatedTime:   info.ModTime(),
			ModifiedTime:  info.ModTime(),
			ContentHash:   hash,
			ProcessedTime: l.now(),
		},
	}, nil
}

// Batch is the outcome of loading a directory.
type Batch struct {
	Documents []domain.Document
	// Skipped holds *domain.UnsupportedFormatError for unrecognized files.
	Skipped []error
	// Failed holds *domain.LoadError for files that could not be read or parsed.
	Failed []error
}

// LoadDirectory loads every supported file under dir recursively, in lexical
// path order. A single file path is accepted too. Per-file problems are
// collected in the Batch; only a missing root or cancellation is an error.
func (l *Loader) LoadDirectory(ctx context.Context, dir string) (*Batch, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("documents path: %w", err)
	}
	batch := &Batch{}
	if !info.IsDir() {
		l.collect(batch, dir)
		return batch, nil
	}

	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, walkErr error) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if walkErr != nil {
			batch.Failed = append(batch.Failed, &domain.LoadError{Path: path, Err: walkErr})
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil || rel == "." {
			return nil
		}
		if l.excluded(rel) {
			l.log.Debug("excluded", "path", path)
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() || !d.Type().IsRegular() {
			return nil
		}
		l.collect(batch, path)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return batch, nil
}

func (l *Loader) collect(batch *Batch, path string) {
	doc, err := l.LoadFile(path)
	switch e := err.(type) {
	case nil:
		batch.Documents = append(batch.Documents, doc)
		l.log.Debug("loaded", "path", path, "chars", len([]rune(doc.Content)), "pages", doc.Metadata.TotalPages)
	case *domain.UnsupportedFormatError:
		batch.Skipped = append(batch.Skipped, e)
		l.log.Warn("skipping unsupported file", "path", path, "ext", e.Ext)
	default:
		batch.Failed = append(batch.Failed, err)
		l.log.Warn("failed to load file", "path", path, "error", err)
	}
}

func (l *Loader) excluded(rel string) bool {
	rel = filepath.ToSlash(rel)
	base := filepath.Base(rel)
	for _, pattern := range l.exclude {
		pattern = filepath.ToSlash(pattern)
		if ok, err := doublestar.Match(pattern, rel); err == nil && ok {
			return true
		}
		if ok, err := doublestar.Match(pattern, base); err == nil && ok {
			return true
		}
	}
	return false
}

func extension(path string) string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
}

// Stats summarizes a set of loaded documents.
type Stats struct {
	Documents   int
	Characters  int
	AverageSize float64
	PerFileType map[string]int
}

// DocumentStats counts documents and characters per file type.
func DocumentStats(docs []domain.Document) Stats {
	st := Stats{Documents: len(docs), PerFileType: make(map[string]int)}
	for _, d := range docs {
		st.Characters += len([]rune(d.Content))
		st.PerFileType[d.Metadata.FileType]++
	}
	if st.Documents > 0 {
		st.AverageSize = float64(st.Characters) / float64(st.Documents)
	}
	return st
}
