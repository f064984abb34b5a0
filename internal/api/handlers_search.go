package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dgallion1/stgrag/internal/doctree"
	"github.com/dgallion1/stgrag/internal/store"
	"github.com/go-chi/chi/v5"
)

const maxResults = 100

type chunkView struct {
	ID            string         `json:"id"`
	Type          string         `json:"chunk_type"`
	Content       string         `json:"content"`
	SourceID      int64          `json:"source_id"`
	ChapterNumber *int           `json:"chapter_number"`
	ChapterTitle  string         `json:"chapter_title,omitempty"`
	SectionNumber string         `json:"section_number,omitempty"`
	Page          int            `json:"page_number"`
	ConditionName string         `json:"condition_name"`
	Citation      string         `json:"reference_citation"`
	Metadata      map[string]any `json:"metadata,omitempty"`
	Embedded      bool           `json:"embedded"`
	CreatedAt     time.Time      `json:"created_at"`
	Score         *float64       `json:"score,omitempty"`
}

func toChunkView(ch doctree.ContentChunk) chunkView {
	return chunkView{
		ID:            ch.ID,
		Type:          string(ch.Type),
		Content:       ch.Content,
		SourceID:      ch.SourceID,
		ChapterNumber: ch.ChapterNumber,
		ChapterTitle:  ch.ChapterTitle,
		SectionNumber: ch.SectionNumber,
		Page:          ch.Page,
		ConditionName: ch.ConditionName,
		Citation:      ch.Citation,
		Metadata:      ch.Metadata,
		Embedded:      len(ch.Embedding) > 0,
		CreatedAt:     ch.CreatedAt,
	}
}

// limitParam reads a positive integer query parameter, capped at maxResults.
func limitParam(r *http.Request, name string, fallback int) int {
	n, err := strconv.Atoi(r.URL.Query().Get(name))
	if err != nil || n <= 0 {
		return fallback
	}
	return min(n, maxResults)
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if q == "" {
		jsonError(w, "q query parameter is required", http.StatusBadRequest)
		return
	}
	hits, err := s.store.Search(r.Context(), q, limitParam(r, "limit", 20))
	if err != nil {
		s.log.Error("search failed", "query", q, "error", err)
		jsonError(w, "search failed", http.StatusInternalServerError)
		return
	}
	if hits == nil {
		hits = []store.SearchHit{}
	}
	writeJSON(w, map[string]any{"query": q, "results": hits})
}

func (s *Server) handleConditionChunks(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	chunks, err := s.store.ChunksByCondition(r.Context(), name)
	if err != nil {
		s.log.Error("load chunks failed", "condition", name, "error", err)
		jsonError(w, "failed to load chunks", http.StatusInternalServerError)
		return
	}
	views := make([]chunkView, 0, len(chunks))
	for _, ch := range chunks {
		views = append(views, toChunkView(ch))
	}
	writeJSON(w, map[string]any{"condition": name, "chunks": views})
}

type similarRequest struct {
	Query  string    `json:"query"`
	Vector []float32 `json:"vector"`
	K      int       `json:"k"`
}

func (s *Server) handleSimilar(w http.ResponseWriter, r *http.Request) {
	var req similarRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&req); err != nil {
		jsonError(w, "invalid json body: "+err.Error(), http.StatusBadRequest)
		return
	}
	k := req.K
	if k <= 0 {
		k = 5
	}
	k = min(k, maxResults)

	vec := req.Vector
	if len(vec) == 0 {
		if strings.TrimSpace(req.Query) == "" {
			jsonError(w, "query or vector is required", http.StatusBadRequest)
			return
		}
		if s.embedder == nil {
			jsonError(w, "embedding is not configured", http.StatusServiceUnavailable)
			return
		}
		vecs, err := s.embedder.Embed(r.Context(), []string{req.Query})
		if err != nil || len(vecs) != 1 {
			s.log.Error("embed query failed", "error", err)
			jsonError(w, "failed to embed query", http.StatusBadGateway)
			return
		}
		vec = vecs[0]
	}

	scored, err := s.store.SimilarChunks(r.Context(), vec, k)
	if err != nil {
		s.log.Error("similarity search failed", "error", err)
		jsonError(w, "similarity search failed", http.StatusInternalServerError)
		return
	}
	views := make([]chunkView, 0, len(scored))
	for _, sc := range scored {
		v := toChunkView(sc.Chunk)
		score := sc.Score
		v.Score = &score
		views = append(views, v)
	}
	writeJSON(w, map[string]any{"results": views})
}
