// Package store persists outlines, entities and content chunks in SQLite.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"

	_ "modernc.org/sqlite"
)

var (
	// ErrNotFound is returned when a referenced row does not exist.
	ErrNotFound = errors.New("store: not found")
	// ErrEmbeddingSet is returned when a chunk already carries an embedding.
	ErrEmbeddingSet = errors.New("store: embedding already set")
)

const schema = `
CREATE TABLE IF NOT EXISTS chapters (
	id          INTEGER PRIMARY KEY,
	number      INTEGER UNIQUE NOT NULL,
	title       TEXT NOT NULL,
	start_page  INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS sections (
	id              INTEGER PRIMARY KEY,
	chapter_number  INTEGER NOT NULL REFERENCES chapters(number),
	section_number  TEXT NOT NULL,
	title           TEXT NOT NULL,
	page_number     INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_sections_chapter ON sections(chapter_number);

CREATE TABLE IF NOT EXISTS conditions (
	id                 INTEGER PRIMARY KEY,
	name               TEXT UNIQUE NOT NULL,
	icd10_code         TEXT,
	clinical_features  TEXT,
	investigations     TEXT,
	treatment          TEXT,
	page_number        INTEGER,
	created_at         TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ','now'))
);

CREATE TABLE IF NOT EXISTS treatments (
	id              INTEGER PRIMARY KEY,
	condition_name  TEXT NOT NULL,
	first_line      TEXT,
	second_line     TEXT,
	dosage          TEXT,
	duration        TEXT,
	page_number     INTEGER,
	created_at      TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ','now'))
);
CREATE INDEX IF NOT EXISTS idx_treatments_condition ON treatments(condition_name);

CREATE TABLE IF NOT EXISTS medications (
	id            INTEGER PRIMARY KEY,
	generic_name  TEXT NOT NULL,
	strength      TEXT,
	route         TEXT,
	page_number   INTEGER,
	created_at    TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ','now'))
);

CREATE TABLE IF NOT EXISTS content_chunks (
	id                  TEXT PRIMARY KEY,
	content             TEXT NOT NULL,
	chunk_type          TEXT NOT NULL,
	source_id           INTEGER,
	chapter_number      INTEGER,
	chapter_title       TEXT,
	section_number      TEXT,
	page_number         INTEGER NOT NULL,
	condition_name      TEXT,
	reference_citation  TEXT NOT NULL,
	metadata            TEXT,
	embedding           BLOB,
	created_at          TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_chunks_type ON content_chunks(chunk_type);
CREATE INDEX IF NOT EXISTS idx_chunks_condition ON content_chunks(condition_name);

CREATE VIRTUAL TABLE IF NOT EXISTS search_index USING fts5(
	content_type UNINDEXED,
	content_id UNINDEXED,
	title,
	searchable_text
);
`

// Store is the SQLite-backed repository. Writes are serialized; reads run
// concurrently.
type Store struct {
	db  *sql.DB
	mu  sync.Mutex // serializes writers
	log *slog.Logger
}

// Open opens (creating if needed) the database at path and applies the schema.
func Open(path string, log *slog.Logger) (*Store, error) {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("store: mkdir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store: open: %w", err)
	}
	if path == ":memory:" {
		// Each connection to :memory: is a separate database.
		db.SetMaxOpenConns(1)
	}

	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 10000",
		"PRAGMA synchronous = NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("store: %s: %w", p, err)
		}
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: apply schema: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: ping: %w", err)
	}
	return &Store{db: db, log: log}, nil
}

// OpenMemory opens an in-memory store for tests and closes it on cleanup.
func OpenMemory(t testing.TB) *Store {
	t.Helper()
	s, err := Open(":memory:", nil)
	if err != nil {
		t.Fatalf("store.OpenMemory: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Counts reports row counts per table.
type Counts struct {
	Chapters       int `json:"chapters"`
	Sections       int `json:"sections"`
	Conditions     int `json:"conditions"`
	Treatments     int `json:"treatments"`
	Medications    int `json:"medications"`
	Chunks         int `json:"chunks"`
	EmbeddedChunks int `json:"embedded_chunks"`
}

// Stats returns table row counts.
func (s *Store) Stats(ctx context.Context) (Counts, error) {
	var c Counts
	queries := []struct {
		dst *int
		sql string
	}{
		{&c.Chapters, `SELECT COUNT(*) FROM chapters`},
		{&c.Sections, `SELECT COUNT(*) FROM sections`},
		{&c.Conditions, `SELECT COUNT(*) FROM conditions`},
		{&c.Treatments, `SELECT COUNT(*) FROM treatments`},
		{&c.Medications, `SELECT COUNT(*) FROM medications`},
		{&c.Chunks, `SELECT COUNT(*) FROM content_chunks`},
		{&c.EmbeddedChunks, `SELECT COUNT(*) FROM content_chunks WHERE embedding IS NOT NULL`},
	}
	for _, q := range queries {
		if err := s.db.QueryRowContext(ctx, q.sql).Scan(q.dst); err != nil {
			return Counts{}, fmt.Errorf("store: stats: %w", err)
		}
	}
	return c, nil
}
