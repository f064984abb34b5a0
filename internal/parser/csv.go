package parser

import (
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/dgallion1/stgrag/internal/doctree"
)

// CSVSource handles page,text exports such as OCR spreadsheets. A header
// row is detected by a non-numeric first cell. Rows sharing a page number
// are joined with newlines in file order.
type CSVSource struct{}

func (s *CSVSource) Pages(r io.Reader, filename string) ([]doctree.Page, error) {
	reader := csv.NewReader(r)
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse csv %s: %w", filename, err)
	}

	byPage := make(map[int][]string)
	for i, row := range records {
		if len(row) < 2 {
			continue
		}
		num, err := strconv.Atoi(strings.TrimSpace(row[0]))
		if err != nil {
			if i == 0 {
				continue // header
			}
			return nil, fmt.Errorf("csv %s row %d: invalid page number %q", filename, i+1, row[0])
		}
		if num <= 0 {
			return nil, fmt.Errorf("csv %s row %d: page number must be positive", filename, i+1)
		}
		byPage[num] = append(byPage[num], strings.Join(row[1:], ","))
	}

	pages := make([]doctree.Page, 0, len(byPage))
	for num, parts := range byPage {
		text := strings.TrimSpace(strings.Join(parts, "\n"))
		if text == "" {
			continue
		}
		pages = append(pages, doctree.Page{Number: num, Text: text})
	}
	sort.Slice(pages, func(i, j int) bool { return pages[i].Number < pages[j].Number })
	return pages, nil
}
