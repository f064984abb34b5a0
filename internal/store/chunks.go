package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/dgallion1/stgrag/internal/doctree"
	"github.com/dgallion1/stgrag/internal/embed"
)

const chunkColumns = `id, content, chunk_type, source_id, chapter_number, chapter_title,
	section_number, page_number, condition_name, reference_citation, metadata, embedding, created_at`

// InsertChunk stores a chunk. There is no dedup key: inserting chunks built
// from the same entity twice yields two rows.
func (s *Store) InsertChunk(ctx context.Context, ch doctree.ContentChunk) error {
	meta, err := json.Marshal(ch.Metadata)
	if err != nil {
		return fmt.Errorf("store: marshal metadata for chunk %s: %w", ch.ID, err)
	}
	var blob []byte
	if len(ch.Embedding) > 0 {
		blob = embed.SerializeVector(ch.Embedding)
	}
	var chapter sql.NullInt64
	if ch.ChapterNumber != nil {
		chapter = sql.NullInt64{Int64: int64(*ch.ChapterNumber), Valid: true}
	}

	err = s.runTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO content_chunks (`+chunkColumns+`)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			ch.ID, ch.Content, string(ch.Type), ch.SourceID, chapter, nullString(ch.ChapterTitle),
			nullString(ch.SectionNumber), ch.Page, nullString(ch.ConditionName), ch.Citation,
			string(meta), blob, ch.CreatedAt.UTC().Format(time.RFC3339Nano))
		return err
	})
	if err != nil {
		return fmt.Errorf("store: insert chunk %s (%s, source %d): %w", ch.ID, ch.Type, ch.SourceID, err)
	}
	return nil
}

// PendingChunk is a chunk still waiting for its embedding.
type PendingChunk struct {
	ID      string
	Content string
}

// PendingEmbeddings returns up to limit chunks without an embedding, oldest first.
func (s *Store) PendingEmbeddings(ctx context.Context, limit int) ([]PendingChunk, error) {
	if limit <= 0 {
		limit = 32
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, content FROM content_chunks WHERE embedding IS NULL ORDER BY created_at, id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("store: pending embeddings: %w", err)
	}
	defer rows.Close()

	var out []PendingChunk
	for rows.Next() {
		var p PendingChunk
		if err := rows.Scan(&p.ID, &p.Content); err != nil {
			return nil, fmt.Errorf("store: scan pending chunk: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// AttachEmbedding sets a chunk's embedding. It succeeds at most once per chunk.
func (s *Store) AttachEmbedding(ctx context.Context, id string, vec []float32) error {
	if len(vec) == 0 {
		return fmt.Errorf("store: empty embedding for chunk %s", id)
	}
	return s.runTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE content_chunks SET embedding = ? WHERE id = ? AND embedding IS NULL`,
			embed.SerializeVector(vec), id)
		if err != nil {
			return fmt.Errorf("store: attach embedding %s: %w", id, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 1 {
			return nil
		}
		var exists int
		err = tx.QueryRowContext(ctx, `SELECT 1 FROM content_chunks WHERE id = ?`, id).Scan(&exists)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("chunk %s: %w", id, ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("store: lookup chunk %s: %w", id, err)
		}
		return fmt.Errorf("chunk %s: %w", id, ErrEmbeddingSet)
	})
}

// Chunk returns one chunk by id.
func (s *Store) Chunk(ctx context.Context, id string) (doctree.ContentChunk, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+chunkColumns+` FROM content_chunks WHERE id = ?`, id)
	if err != nil {
		return doctree.ContentChunk{}, fmt.Errorf("store: chunk %s: %w", id, err)
	}
	chunks, err := scanChunks(rows)
	if err != nil {
		return doctree.ContentChunk{}, err
	}
	if len(chunks) == 0 {
		return doctree.ContentChunk{}, ErrNotFound
	}
	return chunks[0], nil
}

// ChunksByCondition returns every chunk attached to a condition name,
// in insertion order.
func (s *Store) ChunksByCondition(ctx context.Context, name string) ([]doctree.ContentChunk, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+chunkColumns+` FROM content_chunks WHERE condition_name = ? ORDER BY rowid`, name)
	if err != nil {
		return nil, fmt.Errorf("store: chunks for %q: %w", name, err)
	}
	return scanChunks(rows)
}

// CountChunks counts chunks of a type built from one source row.
func (s *Store) CountChunks(ctx context.Context, typ doctree.ChunkType, sourceID int64) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM content_chunks WHERE chunk_type = ? AND source_id = ?`,
		string(typ), sourceID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("store: count chunks: %w", err)
	}
	return n, nil
}

// ScoredChunk is a similarity search hit.
type ScoredChunk struct {
	Chunk doctree.ContentChunk
	Score float64
}

// SimilarChunks ranks embedded chunks by cosine similarity to vec and
// returns the top k. Chunks whose dimension differs from vec are skipped.
func (s *Store) SimilarChunks(ctx context.Context, vec []float32, k int) ([]ScoredChunk, error) {
	if k <= 0 {
		k = 5
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+chunkColumns+` FROM content_chunks WHERE embedding IS NOT NULL`)
	if err != nil {
		return nil, fmt.Errorf("store: similar chunks: %w", err)
	}
	chunks, err := scanChunks(rows)
	if err != nil {
		return nil, err
	}

	var scored []ScoredChunk
	for _, ch := range chunks {
		if len(ch.Embedding) != len(vec) {
			continue
		}
		scored = append(scored, ScoredChunk{Chunk: ch, Score: embed.Cosine(vec, ch.Embedding)})
	}
	sort.SliceStable(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })
	if len(scored) > k {
		scored = scored[:k]
	}
	return scored, nil
}

func scanChunks(rows *sql.Rows) ([]doctree.ContentChunk, error) {
	defer rows.Close()
	var out []doctree.ContentChunk
	for rows.Next() {
		var (
			ch                         doctree.ContentChunk
			typ, created               string
			source, chapter            sql.NullInt64
			title, section, cond, meta sql.NullString
			blob                       []byte
		)
		if err := rows.Scan(&ch.ID, &ch.Content, &typ, &source, &chapter, &title,
			&section, &ch.Page, &cond, &ch.Citation, &meta, &blob, &created); err != nil {
			return nil, fmt.Errorf("store: scan chunk: %w", err)
		}
		ch.Type = doctree.ChunkType(typ)
		ch.SourceID = source.Int64
		if chapter.Valid {
			n := int(chapter.Int64)
			ch.ChapterNumber = &n
		}
		ch.ChapterTitle = title.String
		ch.SectionNumber = section.String
		ch.ConditionName = cond.String
		if meta.Valid && meta.String != "" && meta.String != "null" {
			if err := json.Unmarshal([]byte(meta.String), &ch.Metadata); err != nil {
				return nil, fmt.Errorf("store: decode metadata for chunk %s: %w", ch.ID, err)
			}
		}
		if len(blob) > 0 {
			ch.Embedding = embed.DeserializeVector(blob)
		}
		if t, err := time.Parse(time.RFC3339Nano, created); err == nil {
			ch.CreatedAt = t
		}
		out = append(out, ch)
	}
	return out, rows.Err()
}
