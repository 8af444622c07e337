// Package kv provides the durable string key-value store that backs the
// recording library and settings. Values are opaque strings (JSON documents
// in practice); each backend replaces a value atomically.
package kv

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
)

// ErrClosed is returned by operations on a closed store.
var ErrClosed = errors.New("kv: store closed")

// Store is a durable string-keyed value store.
type Store interface {
	// Get returns the value for key. ok is false when the key is absent.
	Get(ctx context.Context, key string) (value string, ok bool, err error)

	// Set writes value under key, replacing any previous value.
	Set(ctx context.Context, key, value string) error

	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases the backend.
	Close() error

	// Type returns "file", "sqlite" or "postgres".
	Type() string
}

// Options selects and configures a backend.
type Options struct {
	Backend     string // "file", "sqlite" (default) or "postgres"
	Dir         string // file backend directory
	SQLitePath  string
	DatabaseURL string
	Log         zerolog.Logger
}

// Open creates the configured Store.
func Open(ctx context.Context, opts Options) (Store, error) {
	switch opts.Backend {
	case "file":
		return NewFileStore(opts.Dir)
	case "", "sqlite":
		return OpenSQLite(ctx, opts.SQLitePath)
	case "postgres":
		return ConnectPostgres(ctx, opts.DatabaseURL, opts.Log)
	default:
		return nil, fmt.Errorf("unknown kv backend %q", opts.Backend)
	}
}
