package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/dgallion1/stgrag/internal/doctree"
)

// UpsertCondition inserts c unless a condition with the same name exists.
// It returns the row id either way; created reports whether a row was written.
func (s *Store) UpsertCondition(ctx context.Context, c doctree.Condition) (int64, bool, error) {
	var (
		id      int64
		created bool
	)
	err := s.runTx(ctx, func(tx *sql.Tx) error {
		err := tx.QueryRowContext(ctx,
			`INSERT INTO conditions (name, icd10_code, clinical_features, investigations, treatment, page_number)
			 VALUES (?, ?, ?, ?, ?, ?)
			 ON CONFLICT(name) DO NOTHING
			 RETURNING id`,
			c.Name, nullString(c.ICDCode), c.ClinicalFeatures, c.Investigations, c.Treatment, c.Page,
		).Scan(&id)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			created = false
			if err := tx.QueryRowContext(ctx, `SELECT id FROM conditions WHERE name = ?`, c.Name).Scan(&id); err != nil {
				return fmt.Errorf("lookup condition %q: %w", c.Name, err)
			}
			return nil
		case err != nil:
			return fmt.Errorf("insert condition %q: %w", c.Name, err)
		}
		created = true
		return indexRow(ctx, tx, "condition", id, c.Name,
			c.Name, c.ICDCode, c.ClinicalFeatures, c.Investigations, c.Treatment)
	})
	if err != nil {
		return 0, false, fmt.Errorf("store: %w", err)
	}
	return id, created, nil
}

// InsertTreatment stores a treatment row.
func (s *Store) InsertTreatment(ctx context.Context, t doctree.Treatment) (int64, error) {
	var id int64
	err := s.runTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`INSERT INTO treatments (condition_name, first_line, second_line, dosage, duration, page_number)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			t.ConditionName, t.FirstLine, t.SecondLine, t.Dosage, t.Duration, t.Page)
		if err != nil {
			return fmt.Errorf("insert treatment for %q on page %d: %w", t.ConditionName, t.Page, err)
		}
		if id, err = res.LastInsertId(); err != nil {
			return err
		}
		return indexRow(ctx, tx, "treatment", id, t.ConditionName,
			t.FirstLine, t.SecondLine, t.Dosage, t.Duration)
	})
	if err != nil {
		return 0, fmt.Errorf("store: %w", err)
	}
	return id, nil
}

// InsertMedication stores a medication row. Repeated mentions are kept.
func (s *Store) InsertMedication(ctx context.Context, m doctree.Medication) (int64, error) {
	var id int64
	err := s.runTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`INSERT INTO medications (generic_name, strength, route, page_number) VALUES (?, ?, ?, ?)`,
			m.Name, nullString(m.Strength), nullString(m.Route), m.Page)
		if err != nil {
			return fmt.Errorf("insert medication %q on page %d: %w", m.Name, m.Page, err)
		}
		if id, err = res.LastInsertId(); err != nil {
			return err
		}
		return indexRow(ctx, tx, "medication", id, m.Name, m.Name, m.Strength, m.Route)
	})
	if err != nil {
		return 0, fmt.Errorf("store: %w", err)
	}
	return id, nil
}

// Condition looks up a condition by name.
func (s *Store) Condition(ctx context.Context, name string) (doctree.Condition, int64, error) {
	var (
		c   doctree.Condition
		id  int64
		icd sql.NullString
		pg  sql.NullInt64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, icd10_code, clinical_features, investigations, treatment, page_number
		 FROM conditions WHERE name = ?`, name,
	).Scan(&id, &c.Name, &icd, &c.ClinicalFeatures, &c.Investigations, &c.Treatment, &pg)
	if errors.Is(err, sql.ErrNoRows) {
		return doctree.Condition{}, 0, ErrNotFound
	}
	if err != nil {
		return doctree.Condition{}, 0, fmt.Errorf("store: condition %q: %w", name, err)
	}
	c.ICDCode = icd.String
	c.Page = int(pg.Int64)
	return c, id, nil
}

func indexRow(ctx context.Context, tx *sql.Tx, kind string, id int64, title string, fields ...string) error {
	var parts []string
	for _, f := range fields {
		if f = strings.TrimSpace(f); f != "" {
			parts = append(parts, f)
		}
	}
	_, err := tx.ExecContext(ctx,
		`INSERT INTO search_index (content_type, content_id, title, searchable_text) VALUES (?, ?, ?, ?)`,
		kind, strconv.FormatInt(id, 10), title, strings.Join(parts, "\n"))
	if err != nil {
		return fmt.Errorf("index %s %d: %w", kind, id, err)
	}
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
