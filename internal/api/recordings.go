package api

import (
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/snarg/voicememo/internal/audio"
	"github.com/snarg/voicememo/internal/export"
	"github.com/snarg/voicememo/internal/recording"
	"github.com/snarg/voicememo/internal/storage"
	"github.com/snarg/voicememo/internal/transcribe"
)

// RecordingsOptions configures a RecordingsHandler.
type RecordingsOptions struct {
	Library     *storage.Service
	Transcriber transcribe.Service
	Audio       audio.Store
	AudioDir    string // resolves relative audio locators
	UploadDir   string // spool for multipart uploads
	MaxUpload   int64  // bytes
	Clock       func() time.Time
	Log         zerolog.Logger
}

// RecordingsHandler serves the recording library.
type RecordingsHandler struct {
	lib         *storage.Service
	transcriber transcribe.Service
	audio       audio.Store
	audioDir    string
	uploadDir   string
	maxUpload   int64
	now         func() time.Time
	log         zerolog.Logger
}

func NewRecordingsHandler(opts RecordingsOptions) *RecordingsHandler {
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.MaxUpload <= 0 {
		opts.MaxUpload = 100 << 20
	}
	return &RecordingsHandler{
		lib:         opts.Library,
		transcriber: opts.Transcriber,
		audio:       opts.Audio,
		audioDir:    opts.AudioDir,
		uploadDir:   opts.UploadDir,
		maxUpload:   opts.MaxUpload,
		now:         opts.Clock,
		log:         opts.Log.With().Str("handler", "recordings").Logger(),
	}
}

// Routes registers the recording endpoints.
func (h *RecordingsHandler) Routes(r chi.Router) {
	r.Get("/recordings", h.List)
	r.Post("/recordings", h.Upload)
	r.Get("/recordings/{id}", h.Get)
	r.Patch("/recordings/{id}", h.Patch)
	r.Delete("/recordings/{id}", h.Delete)
	r.Post("/recordings/{id}/enhance", h.Enhance)
	r.Get("/recordings/{id}/transcript.txt", h.Transcript)
	r.Get("/recordings/{id}/audio", h.Audio)
}

// RecordingList is the body of GET /recordings.
type RecordingList struct {
	Recordings []recording.Recording `json:"recordings"`
	Total      int                   `json:"total"`
	Sort       string                `json:"sort"`
}

// List handles GET /api/v1/recordings.
// ?q= searches title, transcript and tags; ?tag=a,b keeps recordings
// carrying any listed tag; ?sort=-createdAt orders the result.
func (h *RecordingsHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var recs []recording.Recording
	if q, ok := QueryString(r, "q"); ok {
		recs = h.lib.SearchRecordings(ctx, q)
	} else {
		recs = h.lib.GetAllRecordings(ctx)
	}
	if tags := QueryStringList(r, "tag"); len(tags) > 0 {
		recs = filterTags(recs, tags)
	}

	sort := recording.DefaultSort
	if s, ok := QueryString(r, "sort"); ok {
		sort = recording.ParseSort(s)
	}
	recording.Sort(recs, sort)

	WriteJSON(w, http.StatusOK, RecordingList{
		Recordings: recs,
		Total:      len(recs),
		Sort:       sort.String(),
	})
}

// Get handles GET /api/v1/recordings/{id}.
func (h *RecordingsHandler) Get(w http.ResponseWriter, r *http.Request) {
	rec, ok := h.lookup(w, r)
	if !ok {
		return
	}
	WriteJSON(w, http.StatusOK, rec)
}

// Patch handles PATCH /api/v1/recordings/{id} with a recording.Patch body.
func (h *RecordingsHandler) Patch(w http.ResponseWriter, r *http.Request) {
	id, err := PathString(r, "id")
	if err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	var p recording.Patch
	if err := DecodeJSON(r, &p); err != nil {
		WriteErrorDetail(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	if p.Empty() {
		WriteError(w, http.StatusBadRequest, "no fields to update")
		return
	}

	rec, err := h.lib.UpdateRecording(r.Context(), id, p)
	if err != nil {
		h.writeStorageError(w, "update", id, err)
		return
	}
	WriteJSON(w, http.StatusOK, rec)
}

// Delete handles DELETE /api/v1/recordings/{id}. The audio file is kept.
func (h *RecordingsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	rec, ok := h.lookup(w, r)
	if !ok {
		return
	}
	if !h.lib.DeleteRecording(r.Context(), rec.ID) {
		WriteError(w, http.StatusInternalServerError, "failed to delete recording")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// EnhanceRequest is the body of POST /recordings/{id}/enhance.
type EnhanceRequest struct {
	Mode  string `json:"mode"`
	Apply bool   `json:"apply"` // write the result back to the transcript
}

// EnhanceResponse reports the rewritten text. Changed is false when the
// backend returned the original text (enhancement failed or was a no-op).
type EnhanceResponse struct {
	Mode      transcribe.Mode      `json:"mode"`
	Text      string               `json:"text"`
	Changed   bool                 `json:"changed"`
	Recording *recording.Recording `json:"recording,omitempty"`
}

// Enhance handles POST /api/v1/recordings/{id}/enhance.
func (h *RecordingsHandler) Enhance(w http.ResponseWriter, r *http.Request) {
	var req EnhanceRequest
	if err := DecodeJSON(r, &req); err != nil {
		WriteErrorDetail(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	mode, err := transcribe.ParseMode(req.Mode)
	if err != nil {
		WriteErrorDetail(w, http.StatusBadRequest, "invalid mode", err.Error())
		return
	}
	rec, ok := h.lookup(w, r)
	if !ok {
		return
	}

	ctx := r.Context()
	if err := h.lib.SetSetting(ctx, storage.SettingLastEnhance, string(mode)); err != nil {
		h.log.Warn().Err(err).Msg("failed to remember enhancement mode")
	}

	text := h.transcriber.EnhanceText(ctx, rec.Transcription.Text, mode)
	resp := EnhanceResponse{Mode: mode, Text: text, Changed: text != rec.Transcription.Text}
	if req.Apply && resp.Changed {
		updated, err := h.lib.UpdateRecording(ctx, rec.ID, recording.Patch{Text: &text})
		if err != nil {
			h.writeStorageError(w, "enhance", rec.ID, err)
			return
		}
		resp.Recording = &updated
	}
	WriteJSON(w, http.StatusOK, resp)
}

// Transcript handles GET /api/v1/recordings/{id}/transcript.txt.
func (h *RecordingsHandler) Transcript(w http.ResponseWriter, r *http.Request) {
	rec, ok := h.lookup(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+export.FileName(rec)+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(export.Format(rec)))
}

// Audio handles GET /api/v1/recordings/{id}/audio with Range support.
// Recordings whose audio only lives remotely are redirected to a URL
// presigned for this request.
func (h *RecordingsHandler) Audio(w http.ResponseWriter, r *http.Request) {
	rec, ok := h.lookup(w, r)
	if !ok {
		return
	}

	path := audio.ResolveURI(h.audioDir, rec.AudioURI)
	if key, isKey := audio.KeyFromURI(rec.AudioURI); isKey && path == "" && h.audio != nil {
		if path = h.audio.LocalPath(key); path == "" {
			h.redirectToStore(w, r, key)
			return
		}
	}
	if path == "" {
		if strings.HasPrefix(rec.AudioURI, "https://") || strings.HasPrefix(rec.AudioURI, "http://") {
			http.Redirect(w, r, rec.AudioURI, http.StatusFound)
			return
		}
		WriteErrorDetail(w, http.StatusNotFound, "audio not found", rec.AudioURI)
		return
	}

	f, err := os.Open(path)
	if err != nil {
		WriteErrorDetail(w, http.StatusNotFound, "audio not found", err.Error())
		return
	}
	defer f.Close()
	fi, err := f.Stat()
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "failed to stat audio")
		return
	}
	w.Header().Set("Content-Type", audio.ContentType(path))
	http.ServeContent(w, r, filepath.Base(path), fi.ModTime(), f)
}

// redirectToStore sends the client to the store's locator for key.
func (h *RecordingsHandler) redirectToStore(w http.ResponseWriter, r *http.Request, key string) {
	loc, err := h.audio.URL(r.Context(), key)
	if err != nil {
		h.log.Warn().Err(err).Str("key", key).Msg("failed to presign audio")
		WriteErrorDetail(w, http.StatusNotFound, "audio not found", key)
		return
	}
	if !strings.HasPrefix(loc, "https://") && !strings.HasPrefix(loc, "http://") {
		WriteErrorDetail(w, http.StatusNotFound, "audio not found", key)
		return
	}
	http.Redirect(w, r, loc, http.StatusFound)
}

// lookup resolves {id}, writing 400/404 itself when it reports false.
func (h *RecordingsHandler) lookup(w http.ResponseWriter, r *http.Request) (recording.Recording, bool) {
	id, err := PathString(r, "id")
	if err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return recording.Recording{}, false
	}
	rec, ok := h.lib.GetRecording(r.Context(), id)
	if !ok {
		WriteErrorDetail(w, http.StatusNotFound, "recording not found", id)
		return recording.Recording{}, false
	}
	return rec, true
}

func (h *RecordingsHandler) writeStorageError(w http.ResponseWriter, op, id string, err error) {
	if errors.Is(err, storage.ErrNotFound) {
		WriteErrorDetail(w, http.StatusNotFound, "recording not found", id)
		return
	}
	h.log.Error().Err(err).Str("op", op).Str("id", id).Msg("storage write failed")
	WriteErrorDetail(w, http.StatusInternalServerError, "storage error", err.Error())
}

func filterTags(recs []recording.Recording, tags []string) []recording.Recording {
	out := make([]recording.Recording, 0, len(recs))
	for _, rec := range recs {
		if hasAnyTag(rec, tags) {
			out = append(out, rec)
		}
	}
	return out
}

func hasAnyTag(rec recording.Recording, tags []string) bool {
	for _, have := range rec.Tags {
		for _, want := range tags {
			if strings.EqualFold(have, want) {
				return true
			}
		}
	}
	return false
}
