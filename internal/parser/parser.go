// Package parser turns source documents into numbered pages.
package parser

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/dgallion1/stgrag/internal/doctree"
)

// Source converts raw document bytes into pages numbered from 1.
// Pages with no text are omitted but never renumber the pages after them.
type Source interface {
	Pages(r io.Reader, filename string) ([]doctree.Page, error)
}

// Options tune format-specific behavior.
type Options struct {
	PDFFallbackPdftotext bool
}

// SupportedExtensions lists file extensions this service can handle.
var SupportedExtensions = map[string]bool{
	".txt":      true,
	".md":       true,
	".markdown": true,
	".csv":      true,
	".html":     true,
	".htm":      true,
	".pdf":      true,
	".docx":     true,
}

// ForFile returns the page source for a filename.
func ForFile(filename string, opts Options) (Source, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".txt":
		return &TextSource{}, nil
	case ".md", ".markdown":
		return &MarkdownSource{}, nil
	case ".csv":
		return &CSVSource{}, nil
	case ".html", ".htm":
		return &HTMLSource{}, nil
	case ".pdf":
		return &PDFSource{FallbackPdftotext: opts.PDFFallbackPdftotext}, nil
	case ".docx":
		return &DOCXSource{}, nil
	default:
		return nil, fmt.Errorf("unsupported file extension: %s", ext)
	}
}

// IsSupportedExtension checks if a file extension is supported.
func IsSupportedExtension(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	return SupportedExtensions[ext]
}

// ReadFile opens path and returns its pages.
func ReadFile(path string, opts Options) ([]doctree.Page, error) {
	src, err := ForFile(path, opts)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	pages, err := src.Pages(f, filepath.Base(path))
	if err != nil {
		return nil, fmt.Errorf("read pages from %s: %w", path, err)
	}
	return pages, nil
}

// Range returns the pages numbered first..last inclusive. A last of zero or
// less means no upper bound.
func Range(pages []doctree.Page, first, last int) []doctree.Page {
	var out []doctree.Page
	for _, p := range pages {
		if p.Number < first || (last > 0 && p.Number > last) {
			continue
		}
		out = append(out, p)
	}
	return out
}

// splitFormFeed numbers form-feed separated text from page 1.
func splitFormFeed(text string) []doctree.Page {
	return collectPages(strings.Split(text, "\f"))
}

// collectPages numbers raw page texts from 1, dropping blank ones.
func collectPages(texts []string) []doctree.Page {
	var pages []doctree.Page
	for i, t := range texts {
		t = strings.TrimSpace(strings.ReplaceAll(t, "\r\n", "\n"))
		if t == "" {
			continue
		}
		pages = append(pages, doctree.Page{Number: i + 1, Text: t})
	}
	return pages
}
