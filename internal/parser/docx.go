package parser

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fumiama/go-docx"

	"github.com/dgallion1/stgrag/internal/doctree"
)

// DOCXSource handles .docx files. Each paragraph becomes a line. A page
// break run, a form feed in the text, or a paragraph styled as a page
// start begins a new page.
type DOCXSource struct{}

func (s *DOCXSource) Pages(r io.Reader, filename string) ([]doctree.Page, error) {
	// go-docx needs a ReadSeeker+size, so write to temp file.
	tmp, err := os.CreateTemp("", "stgrag-docx-*.docx")
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	size, err := io.Copy(tmp, r)
	if err != nil {
		tmp.Close()
		return nil, fmt.Errorf("write temp file: %w", err)
	}
	if _, err := tmp.Seek(0, io.SeekStart); err != nil {
		tmp.Close()
		return nil, fmt.Errorf("seek temp file: %w", err)
	}

	doc, err := docx.Parse(tmp, size)
	tmp.Close()
	if err != nil {
		return nil, fmt.Errorf("parse docx %s: %w", filename, err)
	}

	var lines []string
	for _, item := range doc.Document.Body.Items {
		para, ok := item.(*docx.Paragraph)
		if !ok {
			continue
		}
		if docxPageStyle(para) && len(lines) > 0 {
			lines = append(lines, "\f")
		}
		text := docxParagraphText(para)
		if strings.TrimSpace(text) == "" && !strings.Contains(text, "\f") {
			continue
		}
		lines = append(lines, strings.Trim(text, " \t"))
	}
	return splitFormFeed(strings.Join(lines, "\n")), nil
}

// docxPageStyle reports paragraphs whose style marks a page start in OCR exports.
func docxPageStyle(para *docx.Paragraph) bool {
	if para.Properties == nil || para.Properties.Style == nil {
		return false
	}
	style := strings.ReplaceAll(strings.ToLower(para.Properties.Style.Val), " ", "")
	return style == "pagebreak" || style == "pagestart"
}

func docxParagraphText(para *docx.Paragraph) string {
	var buf strings.Builder
	for _, child := range para.Children {
		run, ok := child.(*docx.Run)
		if !ok {
			continue
		}
		for _, rc := range run.Children {
			switch v := rc.(type) {
			case *docx.Text:
				buf.WriteString(v.Text)
			case *docx.BarterRabbet:
				if v.Type == "page" {
					buf.WriteString("\f")
				}
			}
		}
	}
	return buf.String()
}
