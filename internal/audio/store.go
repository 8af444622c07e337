package audio

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"
	"github.com/snarg/voicememo/internal/config"
)

// Store abstracts where finished recordings live.
type Store interface {
	// Save stores audio data. key format: {YYYY-MM-DD}/{filename}
	Save(ctx context.Context, key string, data []byte, contentType string) error

	// LocalPath returns the local filesystem path if the file exists on disk.
	// Returns "" if not available locally.
	LocalPath(key string) string

	// URL returns a locator for the file: a file:// URI for local copies,
	// a presigned URL for S3-only copies.
	URL(ctx context.Context, key string) (string, error)

	// Open returns a reader for the audio file.
	Open(ctx context.Context, key string) (io.ReadCloser, error)

	// Exists checks if an audio file exists in any backend.
	Exists(ctx context.Context, key string) bool

	// Type returns "local", "s3", or "tiered".
	Type() string
}

// BackgroundService is a stoppable background goroutine.
type BackgroundService interface {
	Start()
	Stop()
}

// NewStore creates a Store based on config. When S3 runs as a backup tier the
// returned services (async uploader, reconciler) must be started and
// stopped by the caller.
func NewStore(cfg config.S3Config, audioDir string, log zerolog.Logger) (Store, []BackgroundService, error) {
	if !cfg.Enabled() {
		return NewLocalStore(audioDir), nil, nil
	}

	s3store, err := NewS3Store(cfg, log)
	if err != nil {
		return nil, nil, fmt.Errorf("S3 init failed: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s3store.HeadBucket(ctx); err != nil {
		return nil, nil, fmt.Errorf("S3 startup check failed (bucket=%q endpoint=%q): %w",
			cfg.Bucket, cfg.Endpoint, err)
	}
	log.Info().Str("bucket", cfg.Bucket).Str("endpoint", cfg.Endpoint).Msg("S3 connection verified")

	if !cfg.LocalCache {
		return s3store, nil, nil
	}

	uploader := NewAsyncUploader(s3store, cfg.UploadQueueSize, cfg.UploadWorkers, log)
	tiered := NewTieredStore(NewLocalStore(audioDir), uploader, log)
	reconciler := NewReconciler(audioDir, s3store, log)
	return tiered, []BackgroundService{uploader, reconciler}, nil
}
