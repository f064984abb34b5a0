package parser

import (
	"fmt"
	"io"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"

	"github.com/dgallion1/stgrag/internal/doctree"
)

// MarkdownSource handles Markdown files using goldmark. Thematic breaks
// (---, ***) separate pages; block text is kept one block per line group.
type MarkdownSource struct{}

func (s *MarkdownSource) Pages(r io.Reader, filename string) ([]doctree.Page, error) {
	src, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", filename, err)
	}

	doc := goldmark.New().Parser().Parse(text.NewReader(src))

	var (
		texts   []string
		current []string
	)
	for n := doc.FirstChild(); n != nil; n = n.NextSibling() {
		if _, ok := n.(*ast.ThematicBreak); ok {
			texts = append(texts, strings.Join(current, "\n"))
			current = nil
			continue
		}
		if t := blockText(n, src); t != "" {
			current = append(current, t)
		}
	}
	texts = append(texts, strings.Join(current, "\n"))

	return collectPages(texts), nil
}

// blockText returns the source lines of a leaf block, or the joined text
// of a container's children.
func blockText(n ast.Node, src []byte) string {
	if _, ok := n.(*ast.ThematicBreak); ok {
		return ""
	}
	if lines := n.Lines(); lines != nil && lines.Len() > 0 {
		out := make([]string, 0, lines.Len())
		for i := 0; i < lines.Len(); i++ {
			seg := lines.At(i)
			out = append(out, strings.TrimRight(string(seg.Value(src)), "\r\n"))
		}
		return strings.TrimSpace(strings.Join(out, "\n"))
	}
	var parts []string
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		if c.Type() != ast.TypeBlock {
			continue
		}
		if t := blockText(c, src); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, "\n")
}
