package main

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"agentic-rag/internal/loader"
	"agentic-rag/internal/service"
)

func TestPrintReport(t *testing.T) {
	var buf bytes.Buffer
	printReport(&buf, &service.Report{
		Directory: "docs",
		Reset:     true,
		Documents: 2,
		Chunks:    5,
		Skipped:   []error{errors.New("logo.png: unsupported file type")},
		DocumentStats: loader.Stats{
			Documents:   2,
			Characters:  300,
			AverageSize: 150,
			PerFileType: map[string]int{"pdf": 1, "md": 1},
		},
		Summary: "Go is compiled.",
		Elapsed: 1234567 * time.Microsecond,
	})

	out := buf.String()
	assert.Contains(t, out, "Rebuilt collection with 2 documents (5 chunks) from docs in 1.235s\n")
	assert.Contains(t, out, "Characters: 300, average per document: 150\n")
	assert.Contains(t, out, "File types: md (1), pdf (1)\n")
	assert.Contains(t, out, "Skipped 1 unsupported files:\n  - logo.png: unsupported file type\n")
	assert.NotContains(t, out, "Failed to load")
	assert.Contains(t, out, "\nSummary:\nGo is compiled.\n")
}

func TestPrintReport_Empty(t *testing.T) {
	var buf bytes.Buffer
	printReport(&buf, &service.Report{Directory: "empty"})

	assert.Equal(t, "Indexed 0 documents (0 chunks) from empty in 0s\n", buf.String())
}
