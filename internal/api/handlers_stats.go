package api

import (
	"net/http"

	"github.com/dgallion1/stgrag/internal/embed"
)

// statsReporter is implemented by embedders that track call latency.
type statsReporter interface {
	Stats() *embed.Stats
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	counts, err := s.store.Stats(r.Context())
	if err != nil {
		s.log.Error("stats failed", "error", err)
		jsonError(w, "failed to read stats", http.StatusInternalServerError)
		return
	}

	resp := map[string]any{
		"store":       counts,
		"queue_depth": s.orchestrator.QueueDepth(),
	}
	if sr, ok := s.embedder.(statsReporter); ok && sr.Stats() != nil {
		resp["embedding"] = map[string]any{
			"model": s.cfg.EmbeddingModel,
			"stats": sr.Stats().Snapshot(),
		}
	}
	writeJSON(w, resp)
}
