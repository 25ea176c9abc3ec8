package loader

import (
	"archive/zip"
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agentic-rag/internal/domain"
)

func writeFile(t *testing.T, path string, data []byte) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, data, 0o644))
}

func docxBytes(t *testing.T, documentXML string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("word/document.xml")
	require.NoError(t, err)
	_, err = w.Write([]byte(documentXML))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func TestParseText_Encodings(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want string
	}{
		{"utf8", []byte("héllo wörld"), "héllo wörld"},
		{"utf8 bom", []byte("\xEF\xBB\xBFhello"), "hello"},
		{"gbk", []byte{0xC4, 0xE3, 0xBA, 0xC3}, "你好"},
		{"latin1", []byte("caf\xe9"), "café"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, pages, err := parseText(tt.data)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Zero(t, pages)
		})
	}

	_, _, err := parseText([]byte("abc\x00def"))
	assert.ErrorIs(t, err, errBinary)
}

func TestParseMarkdown(t *testing.T) {
	src := "# Title\n\nSome *bold* text with `code`.\n\n- one\n- two\n\n```go\nfmt.Println()\n```\n\nSee <https://example.com>.\n"
	got, _, err := parseMarkdown([]byte(src))
	require.NoError(t, err)

	assert.Contains(t, got, "Title\n\nSome bold text with code.")
	assert.Contains(t, got, "one\ntwo")
	assert.Contains(t, got, "fmt.Println()")
	assert.Contains(t, got, "https://example.com")
	assert.NotContains(t, got, "#")
	assert.NotContains(t, got, "*")
	assert.NotContains(t, got, "```")
}

func TestParseDOCX(t *testing.T) {
	xml := `<?xml version="1.0" encoding="UTF-8"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>
<w:p><w:r><w:t>First</w:t></w:r><w:r><w:t xml:space="preserve"> paragraph</w:t></w:r></w:p>
<w:p><w:r><w:t>Second</w:t><w:tab/><w:t>tabbed</w:t><w:br/><w:t>broken</w:t></w:r></w:p>
</w:body></w:document>`
	got, _, err := parseDOCX(docxBytes(t, xml))
	require.NoError(t, err)
	assert.Equal(t, "First paragraph\n\nSecond\ttabbed\nbroken", got)

	_, _, err = parseDOCX([]byte("not a zip"))
	assert.Error(t, err)
}

func TestParsePDF_Malformed(t *testing.T) {
	_, _, err := parsePDF([]byte("%PDF-1.4 truncated"))
	assert.Error(t, err)
}

func TestLoadFile_Metadata(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "Guide.TXT")
	writeFile(t, path, []byte("hello"))

	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	l := New()
	l.now = func() time.Time { return now }

	doc, err := l.LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "hello", doc.Content)
	assert.NotEmpty(t, doc.ID)

	md := doc.Metadata
	assert.Equal(t, path, md.Source)
	assert.Equal(t, "txt", md.FileType)
	assert.Equal(t, "Guide", md.Title)
	assert.Equal(t, int64(5), md.Size)
	assert.Equal(t, "5d41402abc4b2a76b9719d911017c592", md.ContentHash)
	assert.Equal(t, now, md.ProcessedTime)
	assert.False(t, md.ModifiedTime.IsZero())

	again, err := l.LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, doc.ID, again.ID, "ids are stable for unchanged files")
}

func TestLoadFile_Errors(t *testing.T) {
	dir := t.TempDir()
	l := New()

	_, err := l.LoadFile(filepath.Join(dir, "image.png"))
	var unsupported *domain.UnsupportedFormatError
	require.ErrorAs(t, err, &unsupported)
	assert.Equal(t, "png", unsupported.Ext)
	assert.ErrorIs(t, err, domain.ErrUnsupportedFormat)

	_, err = l.LoadFile(filepath.Join(dir, "missing.txt"))
	var loadErr *domain.LoadError
	require.ErrorAs(t, err, &loadErr)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoadDirectory(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.txt"), []byte("alpha"))
	writeFile(t, filepath.Join(dir, "sub", "b.md"), []byte("# Beta\n\nbody"))
	writeFile(t, filepath.Join(dir, "sub", "deeper", "c.docx"), docxBytes(t, `<w:document xmlns:w="w"><w:body><w:p><w:r><w:t>gamma</w:t></w:r></w:p></w:body></w:document>`))
	writeFile(t, filepath.Join(dir, "photo.jpg"), []byte{0xFF, 0xD8})
	writeFile(t, filepath.Join(dir, "broken.pdf"), []byte("not a pdf"))
	writeFile(t, filepath.Join(dir, ".git", "HEAD.txt"), []byte("ref"))
	writeFile(t, filepath.Join(dir, "drafts", "wip.txt"), []byte("draft"))

	l := New(WithExclude(".git/**", "drafts/**"))
	batch, err := l.LoadDirectory(context.Background(), dir)
	require.NoError(t, err)

	require.Len(t, batch.Documents, 3)
	assert.Equal(t, "alpha", batch.Documents[0].Content)
	assert.Equal(t, "Beta\n\nbody", batch.Documents[1].Content)
	assert.Equal(t, "gamma", batch.Documents[2].Content)

	require.Len(t, batch.Skipped, 1)
	assert.ErrorIs(t, batch.Skipped[0], domain.ErrUnsupportedFormat)
	require.Len(t, batch.Failed, 1)
	var loadErr *domain.LoadError
	require.ErrorAs(t, batch.Failed[0], &loadErr)
	assert.Equal(t, filepath.Join(dir, "broken.pdf"), loadErr.Path)

	st := DocumentStats(batch.Documents)
	assert.Equal(t, 3, st.Documents)
	assert.Equal(t, len("alpha")+len("Beta\n\nbody")+len("gamma"), st.Characters)
	assert.Equal(t, map[string]int{"txt": 1, "md": 1, "docx": 1}, st.PerFileType)
}

func TestLoadDirectory_SingleFileAndErrors(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "only.md")
	writeFile(t, path, []byte("just text"))

	batch, err := New().LoadDirectory(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, batch.Documents, 1)

	_, err = New().LoadDirectory(context.Background(), filepath.Join(dir, "nope"))
	assert.Error(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = New().LoadDirectory(ctx, dir)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestExtensions(t *testing.T) {
	l := New(WithParser("csv", parseText))
	assert.Equal(t, []string{"csv", "docx", "markdown", "md", "pdf", "txt"}, l.Extensions())
	assert.True(t, l.Supported("x/Y.PDF"))
	assert.False(t, l.Supported("x/y.png"))
}
