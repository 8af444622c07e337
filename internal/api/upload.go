package api

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/snarg/voicememo/internal/audio"
	"github.com/snarg/voicememo/internal/transcribe"
)

// Upload handles POST /api/v1/recordings.
// Multipart fields: "audio" (file, required), "title" and "tags"
// (comma-separated) optional. The file is transcribed before the response,
// so a 201 carries the finished recording.
func (h *RecordingsHandler) Upload(w http.ResponseWriter, r *http.Request) {
	start := h.now()
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			WriteErrorDetail(w, http.StatusRequestEntityTooLarge, "upload too large",
				"limit is "+humanize.IBytes(uint64(h.maxUpload)))
			return
		}
		WriteErrorDetail(w, http.StatusBadRequest, "invalid multipart form", err.Error())
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("audio")
	if err != nil {
		WriteErrorDetail(w, http.StatusBadRequest, "missing audio file", `expected multipart file field "audio"`)
		return
	}
	defer file.Close()

	if !audio.IsAudioFile(header.Filename) {
		WriteErrorDetail(w, http.StatusUnsupportedMediaType, "unsupported audio type", filepath.Ext(header.Filename))
		return
	}

	path, err := h.spool(file, header.Filename)
	if err != nil {
		h.log.Error().Err(err).Msg("failed to spool upload")
		WriteError(w, http.StatusInternalServerError, "failed to store upload")
		return
	}

	rec, err := transcribe.Import(r.Context(), transcribe.ImportDeps{
		Transcriber: h.transcriber,
		Library:     h.lib,
		Audio:       h.audio,
		Now:         h.now,
		Log:         h.log,
	}, transcribe.Job{
		Path:  path,
		Title: strings.TrimSpace(r.FormValue("title")),
		Tags:  splitTags(r.FormValue("tags")),
	}, start)
	if err != nil {
		_ = os.Remove(path)
		var terr *transcribe.Error
		if errors.As(err, &terr) {
			detail := terr.Message
			if detail == "" {
				detail = terr.Error()
			}
			WriteErrorDetail(w, http.StatusBadGateway, "transcription failed", detail)
			return
		}
		h.log.Error().Err(err).Str("file", header.Filename).Msg("upload import failed")
		WriteErrorDetail(w, http.StatusInternalServerError, "import failed", err.Error())
		return
	}

	w.Header().Set("Location", "/api/v1/recordings/"+rec.ID)
	WriteJSON(w, http.StatusCreated, rec)
}

// spool copies the upload into the spool dir under a collision-free name
// that keeps the original base name and extension.
func (h *RecordingsHandler) spool(src multipart.File, filename string) (string, error) {
	if err := os.MkdirAll(h.uploadDir, 0o755); err != nil {
		return "", err
	}
	base := strings.ReplaceAll(filepath.Base(filepath.ToSlash(filename)), " ", "_")
	path := filepath.Join(h.uploadDir, uuid.NewString()[:8]+"_"+base)

	dst, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		os.Remove(path)
		return "", fmt.Errorf("copy upload: %w", err)
	}
	if err := dst.Close(); err != nil {
		os.Remove(path)
		return "", err
	}
	return path, nil
}

func splitTags(raw string) []string {
	var tags []string
	for _, t := range strings.Split(raw, ",") {
		if t = strings.TrimSpace(t); t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}
