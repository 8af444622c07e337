package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/snarg/voicememo/internal/storage"
)

// SettingsHandler exposes the settings map one key at a time. Values are
// arbitrary JSON.
type SettingsHandler struct {
	lib *storage.Service
	log zerolog.Logger
}

func NewSettingsHandler(lib *storage.Service, log zerolog.Logger) *SettingsHandler {
	return &SettingsHandler{lib: lib, log: log.With().Str("handler", "settings").Logger()}
}

func (h *SettingsHandler) Routes(r chi.Router) {
	r.Get("/settings/{key}", h.Get)
	r.Put("/settings/{key}", h.Put)
}

type SettingResponse struct {
	Key   string          `json:"key"`
	Value json.RawMessage `json:"value"`
}

// Get handles GET /api/v1/settings/{key}.
func (h *SettingsHandler) Get(w http.ResponseWriter, r *http.Request) {
	key, err := PathString(r, "key")
	if err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	raw, ok := h.lib.RawSetting(r.Context(), key)
	if !ok {
		WriteErrorDetail(w, http.StatusNotFound, "setting not found", key)
		return
	}
	WriteJSON(w, http.StatusOK, SettingResponse{Key: key, Value: raw})
}

// Put handles PUT /api/v1/settings/{key}. The body is the new value.
func (h *SettingsHandler) Put(w http.ResponseWriter, r *http.Request) {
	key, err := PathString(r, "key")
	if err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	var value json.RawMessage
	if err := DecodeJSON(r, &value); err != nil {
		WriteErrorDetail(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	if err := h.lib.SetSetting(r.Context(), key, value); err != nil {
		h.log.Error().Err(err).Str("key", key).Msg("failed to save setting")
		WriteErrorDetail(w, http.StatusInternalServerError, "storage error", err.Error())
		return
	}
	WriteJSON(w, http.StatusOK, SettingResponse{Key: key, Value: value})
}
