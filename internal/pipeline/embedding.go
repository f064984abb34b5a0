package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dgallion1/stgrag/internal/embed"
	"github.com/dgallion1/stgrag/internal/store"
)

// DefaultEmbeddingBatch is the number of chunks sent per embedding call.
const DefaultEmbeddingBatch = 32

// Backfill embeds every chunk whose embedding is still NULL, batch chunks at
// a time, and returns how many embeddings were attached. It stops at the
// first batch that fails after retries.
func Backfill(ctx context.Context, st *store.Store, emb embed.Embedder, batch int, log *slog.Logger) (int, error) {
	if batch <= 0 {
		batch = DefaultEmbeddingBatch
	}
	attached := 0
	for {
		if err := ctx.Err(); err != nil {
			return attached, err
		}
		pending, err := st.PendingEmbeddings(ctx, batch)
		if err != nil {
			return attached, err
		}
		if len(pending) == 0 {
			return attached, nil
		}

		texts := make([]string, len(pending))
		for i, p := range pending {
			texts[i] = p.Content
		}
		vecs, err := embedWithRetry(ctx, emb, texts, log)
		if err != nil {
			return attached, fmt.Errorf("embed batch of %d: %w", len(texts), err)
		}

		n := 0
		for i, p := range pending {
			err := st.AttachEmbedding(ctx, p.ID, vecs[i])
			switch {
			case errors.Is(err, store.ErrEmbeddingSet):
				// Another backfill got there first.
				log.Debug("embedding already set", "chunk_id", p.ID)
			case err != nil:
				return attached, err
			default:
				n++
			}
		}
		attached += n
		log.Info("embedded batch", "chunks", n, "total", attached)
	}
}

func embedWithRetry(ctx context.Context, emb embed.Embedder, texts []string, log *slog.Logger) ([][]float32, error) {
	var (
		vecs    [][]float32
		lastErr error
	)
	for attempt := range MaxRetries {
		vecs, lastErr = emb.Embed(ctx, texts)
		if lastErr == nil {
			if len(vecs) != len(texts) {
				return nil, fmt.Errorf("embedder returned %d vectors for %d inputs", len(vecs), len(texts))
			}
			return vecs, nil
		}
		if !IsRetryable(lastErr) {
			return nil, lastErr
		}
		log.Warn("retryable embedding error", "attempt", attempt, "error", lastErr)
		if err := sleepCtx(ctx, backoff(attempt)); err != nil {
			return nil, err
		}
	}
	return nil, lastErr
}
