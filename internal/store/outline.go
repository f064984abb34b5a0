package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dgallion1/stgrag/internal/doctree"
)

// SaveOutline replaces the stored chapters and sections. Duplicate chapter
// numbers keep the first occurrence.
func (s *Store) SaveOutline(ctx context.Context, o *doctree.Outline) error {
	return s.runTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM sections`); err != nil {
			return fmt.Errorf("clear sections: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM chapters`); err != nil {
			return fmt.Errorf("clear chapters: %w", err)
		}
		if o == nil {
			return nil
		}
		for _, ch := range o.Chapters {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO chapters (number, title, start_page) VALUES (?, ?, ?)
				 ON CONFLICT(number) DO NOTHING`,
				ch.Number, ch.Title, ch.StartPage); err != nil {
				return fmt.Errorf("insert chapter %d: %w", ch.Number, err)
			}
			for _, sec := range ch.Sections {
				if _, err := tx.ExecContext(ctx,
					`INSERT INTO sections (chapter_number, section_number, title, page_number)
					 VALUES (?, ?, ?, ?)`,
					ch.Number, sec.Number, sec.Title, sec.Page); err != nil {
					return fmt.Errorf("insert section %s: %w", sec.Number, err)
				}
			}
		}
		return nil
	})
}

// LoadOutline reads chapters ordered by start page with their sections.
// Issues are not persisted.
func (s *Store) LoadOutline(ctx context.Context) (*doctree.Outline, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT number, title, start_page FROM chapters ORDER BY start_page, number`)
	if err != nil {
		return nil, fmt.Errorf("store: load chapters: %w", err)
	}
	defer rows.Close()

	out := &doctree.Outline{}
	index := make(map[int]int)
	for rows.Next() {
		var ch doctree.Chapter
		if err := rows.Scan(&ch.Number, &ch.Title, &ch.StartPage); err != nil {
			return nil, fmt.Errorf("store: scan chapter: %w", err)
		}
		index[ch.Number] = len(out.Chapters)
		out.Chapters = append(out.Chapters, ch)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	secRows, err := s.db.QueryContext(ctx,
		`SELECT chapter_number, section_number, title, page_number FROM sections ORDER BY page_number, id`)
	if err != nil {
		return nil, fmt.Errorf("store: load sections: %w", err)
	}
	defer secRows.Close()
	for secRows.Next() {
		var sec doctree.Section
		if err := secRows.Scan(&sec.ChapterNumber, &sec.Number, &sec.Title, &sec.Page); err != nil {
			return nil, fmt.Errorf("store: scan section: %w", err)
		}
		if i, ok := index[sec.ChapterNumber]; ok {
			out.Chapters[i].Sections = append(out.Chapters[i].Sections, sec)
		}
	}
	return out, secRows.Err()
}
