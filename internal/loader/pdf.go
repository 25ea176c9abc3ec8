package loader

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

// parsePDF joins the plain text of every page with blank lines.
func parsePDF(data []byte) (text string, pages int, err error) {
	defer func() {
		// the pdf reader panics on some malformed inputs
		if p := recover(); p != nil {
			text, pages, err = "", 0, fmt.Errorf("malformed pdf: %v", p)
		}
	}()
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", 0, fmt.Errorf("open pdf: %w", err)
	}
	pages = reader.NumPage()
	parts := make([]string, 0, pages)
	for i := 1; i <= pages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		t, err := page.GetPlainText(make(map[string]*pdf.Font))
		if err != nil {
			return "", 0, fmt.Errorf("page %d: %w", i, err)
		}
		parts = append(parts, t)
	}
	text = strings.Join(parts, "\n\n")
	if strings.TrimSpace(text) == "" {
		return "", pages, errors.New("no extractable text (scanned pdf?)")
	}
	return text, pages, nil
}
