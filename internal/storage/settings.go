package storage

import (
	"context"
	"encoding/json"
	"fmt"
)

// Well-known setting keys.
const (
	SettingHistorySort = "historySort"
	SettingLastEnhance = "lastEnhanceMode"
)

// GetSetting returns the decoded value for key, or def when the key is
// absent or the settings document cannot be read.
func (s *Service) GetSetting(ctx context.Context, key string, def any) any {
	raw, ok := s.RawSetting(ctx, key)
	if !ok {
		return def
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return def
	}
	return v
}

// Setting decodes key into T, returning def on absence or mismatch.
func Setting[T any](ctx context.Context, s *Service, key string, def T) T {
	raw, ok := s.RawSetting(ctx, key)
	if !ok {
		return def
	}
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("setting has unexpected type, using default")
		return def
	}
	return v
}

// RawSetting returns the stored JSON for key.
func (s *Service) RawSetting(ctx context.Context, key string) (json.RawMessage, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, err := s.readSettings(ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("failed to read settings")
		return nil, false
	}
	raw, ok := m[key]
	return raw, ok
}

// SetSetting stores value under key.
func (s *Service) SetSetting(ctx context.Context, key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return &StorageError{Op: "set setting", Err: fmt.Errorf("encode %s: %w", key, err)}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	m, err := s.readSettings(ctx)
	if err != nil {
		return &StorageError{Op: "set setting", Err: err}
	}
	m[key] = data

	doc, err := json.Marshal(m)
	if err != nil {
		return &StorageError{Op: "set setting", Err: err}
	}
	if err := s.kv.Set(ctx, SettingsKey, string(doc)); err != nil {
		return &StorageError{Op: "set setting", Err: err}
	}
	return nil
}

// readSettings loads the settings map; corrupt documents read as empty.
func (s *Service) readSettings(ctx context.Context) (map[string]json.RawMessage, error) {
	raw, ok, err := s.kv.Get(ctx, SettingsKey)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", SettingsKey, err)
	}
	m := map[string]json.RawMessage{}
	if !ok || raw == "" {
		return m, nil
	}
	if err := json.Unmarshal([]byte(raw), &m); err != nil || m == nil {
		s.log.Warn().Err(err).Msg("settings document is corrupt, treating as empty")
		return map[string]json.RawMessage{}, nil
	}
	return m, nil
}
