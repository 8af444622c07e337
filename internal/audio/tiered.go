package audio

import (
	"bytes"
	"context"
	"io"
	"os"

	"github.com/rs/zerolog"
)

// TieredStore keeps local disk as the source of truth and backs files up to
// a remote store through an AsyncUploader. Reads go local first, then fall
// back to the remote with cache-on-read.
type TieredStore struct {
	local    *LocalStore
	uploader *AsyncUploader
	log      zerolog.Logger
}

func NewTieredStore(local *LocalStore, uploader *AsyncUploader, log zerolog.Logger) *TieredStore {
	return &TieredStore{
		local:    local,
		uploader: uploader,
		log:      log.With().Str("component", "tiered-store").Logger(),
	}
}

// Save writes to local disk (fatal on failure) and queues the backup upload.
func (s *TieredStore) Save(ctx context.Context, key string, data []byte, ct string) error {
	if err := s.local.Save(ctx, key, data, ct); err != nil {
		return err
	}
	s.uploader.Enqueue(key, data, ct)
	return nil
}

// Move takes srcPath into local disk and queues the backup upload.
func (s *TieredStore) Move(ctx context.Context, key, srcPath string) error {
	if err := s.local.Move(ctx, key, srcPath); err != nil {
		return err
	}
	data, err := os.ReadFile(s.local.path(key))
	if err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("backup skipped, reconciler will retry")
		return nil
	}
	s.uploader.Enqueue(key, data, ContentType(key))
	return nil
}

func (s *TieredStore) LocalPath(key string) string {
	return s.local.LocalPath(key)
}

func (s *TieredStore) URL(ctx context.Context, key string) (string, error) {
	if s.local.Exists(ctx, key) {
		return s.local.URL(ctx, key)
	}
	return s.uploader.remote.URL(ctx, key)
}

func (s *TieredStore) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	if r, err := s.local.Open(ctx, key); err == nil {
		return r, nil
	}
	r, err := s.uploader.remote.Open(ctx, key)
	if err != nil {
		return nil, err
	}
	data, err := io.ReadAll(r)
	r.Close()
	if err != nil {
		return nil, err
	}
	if cacheErr := s.local.Save(ctx, key, data, ""); cacheErr != nil {
		s.log.Warn().Err(cacheErr).Str("key", key).Msg("failed to cache remote file locally")
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (s *TieredStore) Exists(ctx context.Context, key string) bool {
	if s.local.Exists(ctx, key) {
		return true
	}
	return s.uploader.remote.Exists(ctx, key)
}

func (s *TieredStore) Type() string { return "tiered" }
