package parser

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	pdflib "github.com/ledongthuc/pdf"

	"github.com/dgallion1/stgrag/internal/doctree"
)

// PDFSource handles PDF files. It tries the Go library first,
// then falls back to pdftotext if enabled.
type PDFSource struct {
	FallbackPdftotext bool
}

func (s *PDFSource) Pages(r io.Reader, filename string) ([]doctree.Page, error) {
	// ledongthuc/pdf requires a ReadSeeker+size, so we write to a temp file.
	tmp, err := os.CreateTemp("", "stgrag-pdf-*.pdf")
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		return nil, fmt.Errorf("write temp file: %w", err)
	}
	tmp.Close()

	texts, err := extractPDFPages(tmpPath)
	if err != nil && s.FallbackPdftotext {
		var text string
		text, err = extractPdftotext(tmpPath)
		texts = strings.Split(text, "\f")
	}
	if err != nil {
		return nil, fmt.Errorf("extract pdf text from %s: %w", filename, err)
	}
	return collectPages(texts), nil
}

// extractPDFPages returns one entry per physical page so numbering survives
// unreadable pages.
func extractPDFPages(path string) ([]string, error) {
	f, reader, err := pdflib.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	numPages := reader.NumPage()
	texts := make([]string, numPages)
	readable := 0
	for i := 1; i <= numPages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		texts[i-1] = text
		readable++
	}
	if numPages > 0 && readable == 0 {
		return nil, fmt.Errorf("no readable pages in %d", numPages)
	}
	return texts, nil
}

func extractPdftotext(path string) (string, error) {
	cmd := exec.Command("pdftotext", "-layout", path, "-")
	out, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("pdftotext: %w", err)
	}
	return string(out), nil
}
