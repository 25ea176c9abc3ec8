package domain

import (
	"strconv"
	"time"
)

// DocumentMetadata describes the file a document was loaded from.
type DocumentMetadata struct {
	Source        string
	FileType      string
	Title         string
	Size          int64
	TotalPages    int
	CreatedTime   time.Time
	ModifiedTime  time.Time
	ContentHash   string
	ProcessedTime time.Time
}

// Document represents a single file loaded into the system.
type Document struct {
	ID       string
	Content  string
	Metadata DocumentMetadata
}

// Chunk is a bounded, overlapping segment of a document used for indexing.
type Chunk struct {
	Text        string
	Metadata    DocumentMetadata
	ChunkID     int
	TotalChunks int
	ChunkSize   int
}

// Metadata keys shared by vector records.
const (
	MetaSource        = "source"
	MetaFileType      = "file_type"
	MetaTitle         = "title"
	MetaSize          = "size"
	MetaTotalPages    = "total_pages"
	MetaCreatedTime   = "created_time"
	MetaModifiedTime  = "modified_time"
	MetaContentHash   = "content_hash"
	MetaProcessedTime = "processed_time"
	MetaChunkID       = "chunk_id"
	MetaTotalChunks   = "total_chunks"
	MetaChunkSize     = "chunk_size"
	MetaSeq           = "seq"
)

// RecordMetadata flattens chunk metadata into the string map stored with a vector.
func (c Chunk) RecordMetadata() map[string]string {
	m := c.Metadata
	md := map[string]string{
		MetaSource:        m.Source,
		MetaFileType:      m.FileType,
		MetaTitle:         m.Title,
		MetaSize:          strconv.FormatInt(m.Size, 10),
		MetaContentHash:   m.ContentHash,
		MetaCreatedTime:   formatTime(m.CreatedTime),
		MetaModifiedTime:  formatTime(m.ModifiedTime),
		MetaProcessedTime: formatTime(m.ProcessedTime),
		MetaChunkID:       strconv.Itoa(c.ChunkID),
		MetaTotalChunks:   strconv.Itoa(c.TotalChunks),
		MetaChunkSize:     strconv.Itoa(c.ChunkSize),
	}
	if m.TotalPages > 0 {
		md[MetaTotalPages] = strconv.Itoa(m.TotalPages)
	}
	return md
}

// ChunkFromRecord rebuilds a chunk from a stored record.
func ChunkFromRecord(r VectorRecord) Chunk {
	md := r.Metadata
	size, _ := strconv.ParseInt(md[MetaSize], 10, 64)
	pages, _ := strconv.Atoi(md[MetaTotalPages])
	id, _ := strconv.Atoi(md[MetaChunkID])
	total, _ := strconv.Atoi(md[MetaTotalChunks])
	chunkSize, _ := strconv.Atoi(md[MetaChunkSize])
	return Chunk{
		Text: r.Text,
		Metadata: DocumentMetadata{
			Source:        md[MetaSource],
			FileType:      md[MetaFileType],
			Title:         md[MetaTitle],
			Size:          size,
			TotalPages:    pages,
			CreatedTime:   parseTime(md[MetaCreatedTime]),
			ModifiedTime:  parseTime(md[MetaModifiedTime]),
			ContentHash:   md[MetaContentHash],
			ProcessedTime: parseTime(md[MetaProcessedTime]),
		},
		ChunkID:     id,
		TotalChunks: total,
		ChunkSize:   chunkSize,
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.RFC3339)
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, _ := time.Parse(time.RFC3339, s)
	return t
}
