package parser

import (
	"fmt"
	"io"

	"github.com/dgallion1/stgrag/internal/doctree"
)

// TextSource handles plain text, typically OCR output, with pages separated by form feeds.
type TextSource struct{}

func (s *TextSource) Pages(r io.Reader, filename string) ([]doctree.Page, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", filename, err)
	}
	return splitFormFeed(string(data)), nil
}
