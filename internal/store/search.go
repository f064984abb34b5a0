package store

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

// SearchHit is one full-text match from search_index.
type SearchHit struct {
	ContentType string  `json:"content_type"`
	ContentID   int64   `json:"content_id"`
	Title       string  `json:"title"`
	Snippet     string  `json:"snippet"`
	Rank        float64 `json:"rank"`
}

// Search runs an FTS5 query over conditions, treatments and medications.
// Every whitespace-separated term must match; FTS syntax in the input is
// treated as literal text.
func (s *Store) Search(ctx context.Context, query string, limit int) ([]SearchHit, error) {
	match := ftsQuery(query)
	if match == "" {
		return nil, nil
	}
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT content_type, content_id, title,
		        snippet(search_index, 3, '[', ']', '…', 12), rank
		 FROM search_index
		 WHERE search_index MATCH ?
		 ORDER BY rank
		 LIMIT ?`, match, limit)
	if err != nil {
		return nil, fmt.Errorf("store: search: %w", err)
	}
	defer rows.Close()

	var out []SearchHit
	for rows.Next() {
		var (
			h  SearchHit
			id string
		)
		if err := rows.Scan(&h.ContentType, &id, &h.Title, &h.Snippet, &h.Rank); err != nil {
			return nil, fmt.Errorf("store: scan search hit: %w", err)
		}
		h.ContentID, _ = strconv.ParseInt(id, 10, 64)
		out = append(out, h)
	}
	return out, rows.Err()
}

func ftsQuery(q string) string {
	var terms []string
	for _, f := range strings.Fields(q) {
		f = strings.ReplaceAll(f, `"`, "")
		if !strings.ContainsFunc(f, isWordRune) {
			continue
		}
		terms = append(terms, `"`+f+`"`)
	}
	return strings.Join(terms, " ")
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}
