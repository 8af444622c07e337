package api

import (
	"context"
	"errors"
	"net/http"
	"path/filepath"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/snarg/voicememo/internal/audio"
	"github.com/snarg/voicememo/internal/config"
	"github.com/snarg/voicememo/internal/ingest"
	"github.com/snarg/voicememo/internal/metrics"
	"github.com/snarg/voicememo/internal/storage"
	"github.com/snarg/voicememo/internal/transcribe"
)

// Options wires the HTTP API to the rest of the process.
type Options struct {
	Config      *config.Config
	Library     *storage.Service
	Transcriber transcribe.Service
	Audio       audio.Store
	Pool        *transcribe.WorkerPool // nil when the watch folder is off
	Watcher     *ingest.Watcher        // nil when the watch folder is off
	MQTT        ConnChecker            // nil when no broker is configured
	Version     string
	StartTime   time.Time
	Clock       func() time.Time
	Log         zerolog.Logger
}

type Server struct {
	http    *http.Server
	handler http.Handler
	log     zerolog.Logger
}

func NewServer(opts Options) *Server {
	cfg := opts.Config
	log := opts.Log.With().Str("component", "http").Logger()

	r := chi.NewRouter()
	r.Use(RequestID)
	r.Use(Recoverer)
	r.Use(Logger(log))
	r.Use(CORSWithOrigins(cfg.CORSOrigins))
	r.Use(metrics.InstrumentHandler)

	health := NewHealthHandler(opts.Library, opts.MQTT, opts.Transcriber.Name(), opts.Audio.Type(), opts.Version, opts.StartTime)
	recordings := NewRecordingsHandler(RecordingsOptions{
		Library:     opts.Library,
		Transcriber: opts.Transcriber,
		Audio:       opts.Audio,
		AudioDir:    cfg.AudioDir,
		UploadDir:   filepath.Join(cfg.DataDir, "uploads"),
		MaxUpload:   cfg.MaxUploadMB << 20,
		Clock:       opts.Clock,
		Log:         log,
	})
	settings := NewSettingsHandler(opts.Library, log)
	imports := NewImportHandler(opts.Pool, opts.Watcher)

	r.Handle("/metrics", promhttp.Handler())
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", health.ServeHTTP)

		r.Group(func(r chi.Router) {
			r.Use(BearerAuth(cfg.AuthToken))
			recordings.Routes(r)
			settings.Routes(r)
			imports.Routes(r)
		})
	})

	return &Server{
		http: &http.Server{
			Addr:         cfg.HTTPAddr,
			Handler:      r,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
			IdleTimeout:  cfg.IdleTimeout,
		},
		handler: r,
		log:     log,
	}
}

// Handler returns the routed handler, for tests and embedding.
func (s *Server) Handler() http.Handler { return s.handler }

func (s *Server) Start() error {
	s.log.Info().Str("addr", s.http.Addr).Msg("http server starting")
	if err := s.http.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("http server shutting down")
	return s.http.Shutdown(ctx)
}
