package api

import (
	"context"
	"net/http"
	"time"
)

// Pinger reports whether the recording store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// ConnChecker reports the state of an optional broker connection.
type ConnChecker interface {
	IsConnected() bool
}

type HealthResponse struct {
	Status        string            `json:"status"`
	Version       string            `json:"version"`
	UptimeSeconds int64             `json:"uptime_seconds"`
	Transcriber   string            `json:"transcriber"`
	AudioStore    string            `json:"audio_store"`
	Checks        map[string]string `json:"checks"`
}

type HealthHandler struct {
	store       Pinger
	mqtt        ConnChecker // nil when not configured
	transcriber string
	audioStore  string
	version     string
	startTime   time.Time
}

func NewHealthHandler(store Pinger, mqtt ConnChecker, transcriber, audioStore, version string, startTime time.Time) *HealthHandler {
	return &HealthHandler{
		store:       store,
		mqtt:        mqtt,
		transcriber: transcriber,
		audioStore:  audioStore,
		version:     version,
		startTime:   startTime,
	}
}

// ServeHTTP answers 200 when healthy or degraded (broker down) and 503
// when the store cannot be read.
func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	checks := make(map[string]string, 2)
	status := "healthy"
	code := http.StatusOK

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()
	if err := h.store.Ping(ctx); err != nil {
		checks["store"] = "error"
		status = "unhealthy"
		code = http.StatusServiceUnavailable
	} else {
		checks["store"] = "ok"
	}

	switch {
	case h.mqtt == nil:
		checks["mqtt"] = "not_configured"
	case h.mqtt.IsConnected():
		checks["mqtt"] = "ok"
	default:
		checks["mqtt"] = "disconnected"
		if status == "healthy" {
			status = "degraded"
		}
	}

	WriteJSON(w, code, HealthResponse{
		Status:        status,
		Version:       h.version,
		UptimeSeconds: int64(time.Since(h.startTime).Seconds()),
		Transcriber:   h.transcriber,
		AudioStore:    h.audioStore,
		Checks:        checks,
	})
}
