package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/snarg/voicememo/internal/ingest"
	"github.com/snarg/voicememo/internal/transcribe"
)

// ImportHandler reports on the watch-folder import queue.
type ImportHandler struct {
	pool    *transcribe.WorkerPool
	watcher *ingest.Watcher
}

func NewImportHandler(pool *transcribe.WorkerPool, watcher *ingest.Watcher) *ImportHandler {
	return &ImportHandler{pool: pool, watcher: watcher}
}

func (h *ImportHandler) Routes(r chi.Router) {
	r.Get("/import/stats", h.Stats)
}

type ImportStatsResponse struct {
	Enabled bool          `json:"enabled"`
	Workers int           `json:"workers"`
	Watcher *ingest.Stats `json:"watcher,omitempty"`
	transcribe.QueueStats
}

// Stats handles GET /api/v1/import/stats.
func (h *ImportHandler) Stats(w http.ResponseWriter, r *http.Request) {
	if h.pool == nil {
		WriteJSON(w, http.StatusOK, ImportStatsResponse{})
		return
	}
	resp := ImportStatsResponse{
		Enabled:    true,
		Workers:    h.pool.Workers(),
		QueueStats: h.pool.Stats(),
	}
	if h.watcher != nil {
		ws := h.watcher.Stats()
		resp.Watcher = &ws
	}
	WriteJSON(w, http.StatusOK, resp)
}
