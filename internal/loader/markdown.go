package loader

import (
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	gmext "github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/text"
)

var markdown = goldmark.New(goldmark.WithExtensions(gmext.GFM))

// parseMarkdown renders the document to plain text: markup is dropped,
// blocks are separated by blank lines and code is kept verbatim.
func parseMarkdown(data []byte) (string, int, error) {
	src, _, err := parseText(data)
	if err != nil {
		return "", 0, err
	}
	source := []byte(src)
	doc := markdown.Parser().Parse(text.NewReader(source))

	var b strings.Builder
	blockEnd := func() {
		s := b.String()
		if s == "" || strings.HasSuffix(s, "\n\n") {
			return
		}
		if strings.HasSuffix(s, "\n") {
			b.WriteString("\n")
		} else {
			b.WriteString("\n\n")
		}
	}

	err = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		switch node := n.(type) {
		case *ast.Text:
			if entering {
				b.Write(node.Segment.Value(source))
				if node.SoftLineBreak() || node.HardLineBreak() {
					b.WriteString("\n")
				}
			}
		case *ast.String:
			if entering {
				b.Write(node.Value)
			}
		case *ast.AutoLink:
			if entering {
				b.Write(node.Label(source))
			}
		case *ast.CodeBlock, *ast.FencedCodeBlock:
			if entering {
				lines := n.Lines()
				for i := 0; i < lines.Len(); i++ {
					seg := lines.At(i)
					b.Write(seg.Value(source))
				}
				blockEnd()
			}
			return ast.WalkSkipChildren, nil
		case *ast.HTMLBlock, *ast.RawHTML:
			return ast.WalkSkipChildren, nil
		default:
			if !entering && n.Type() == ast.TypeBlock && n.Kind() != ast.KindDocument {
				_, isItem := n.(*ast.ListItem)
				if _, inItem := n.Parent().(*ast.ListItem); inItem || isItem {
					if !strings.HasSuffix(b.String(), "\n") {
						b.WriteString("\n")
					}
					break
				}
				blockEnd()
			}
		}
		return ast.WalkContinue, nil
	})
	if err != nil {
		return "", 0, err
	}
	return strings.TrimSpace(b.String()), 0, nil
}
