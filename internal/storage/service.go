// Package storage persists the recording library and the settings map on a
// kv.Store. The whole recording list is read, modified and written back as
// one JSON document per mutation; a mutex serialises those cycles.
package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/snarg/voicememo/internal/kv"
	"github.com/snarg/voicememo/internal/recording"
)

// Persisted keys.
const (
	RecordingsKey = "voicememo_recordings"
	SettingsKey   = "voicememo_settings"
)

// Action names a library mutation.
type Action string

const (
	ActionCreated Action = "created"
	ActionUpdated Action = "updated"
	ActionDeleted Action = "deleted"
)

// Change describes a committed mutation.
type Change struct {
	Action    Action
	Recording recording.Recording
}

// Notifier receives committed changes. Notify must not block.
type Notifier interface {
	Notify(Change)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(Change)

func (f NotifierFunc) Notify(c Change) { f(c) }

// Options configures a Service.
type Options struct {
	KV       kv.Store
	Clock    func() time.Time // defaults to time.Now
	Notifier Notifier         // optional
	Log      zerolog.Logger
}

// Service is the recording library.
type Service struct {
	kv     kv.Store
	now    func() time.Time
	notify Notifier
	log    zerolog.Logger

	mu sync.Mutex
}

func New(opts Options) *Service {
	now := opts.Clock
	if now == nil {
		now = time.Now
	}
	return &Service{
		kv:     opts.KV,
		now:    now,
		notify: opts.Notifier,
		log:    opts.Log.With().Str("component", "storage").Logger(),
	}
}

// GenerateTitle derives a title from transcript text.
func GenerateTitle(text string) string { return recording.GenerateTitle(text) }

// SaveRecording stores a new recording at the head of the list.
func (s *Service) SaveRecording(ctx context.Context, d recording.Draft) (recording.Recording, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return recording.Recording{}, &StorageError{Op: "save", Err: fmt.Errorf("generate id: %w", err)}
	}
	now := s.now().UTC()
	rec := recording.Recording{
		ID:            id.String(),
		Title:         d.Title,
		AudioURI:      d.AudioURI,
		Transcription: d.Transcription,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if d.Tags != nil {
		rec.Tags = append([]string(nil), d.Tags...)
	}

	s.mu.Lock()
	list, err := s.readForWrite(ctx)
	if err == nil {
		list = append([]recording.Recording{rec}, list...)
		err = s.writeList(ctx, list)
	}
	s.mu.Unlock()
	if err != nil {
		return recording.Recording{}, &StorageError{Op: "save", Err: err}
	}

	s.log.Debug().Str("id", rec.ID).Str("title", rec.Title).Msg("recording saved")
	s.emit(ActionCreated, rec)
	return rec, nil
}

// GetAllRecordings returns the library newest first. Read or parse
// failures are logged and yield an empty list.
func (s *Service) GetAllRecordings(ctx context.Context) []recording.Recording {
	s.mu.Lock()
	defer s.mu.Unlock()
	list, err := s.readList(ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("failed to read recordings")
		return []recording.Recording{}
	}
	return list
}

// GetRecording looks a recording up by id.
func (s *Service) GetRecording(ctx context.Context, id string) (recording.Recording, bool) {
	for _, r := range s.GetAllRecordings(ctx) {
		if r.ID == id {
			return r, true
		}
	}
	return recording.Recording{}, false
}

// UpdateRecording merges p into the recording and refreshes UpdatedAt.
// Returns ErrNotFound when id is unknown.
func (s *Service) UpdateRecording(ctx context.Context, id string, p recording.Patch) (recording.Recording, error) {
	s.mu.Lock()
	list, err := s.readForWrite(ctx)
	if err != nil {
		s.mu.Unlock()
		return recording.Recording{}, &StorageError{Op: "update", Err: err}
	}

	idx := indexOf(list, id)
	if idx < 0 {
		s.mu.Unlock()
		return recording.Recording{}, ErrNotFound
	}

	rec := list[idx]
	p.Apply(&rec)
	rec.UpdatedAt = s.advance(rec.UpdatedAt)
	list[idx] = rec

	if err := s.writeList(ctx, list); err != nil {
		s.mu.Unlock()
		return recording.Recording{}, &StorageError{Op: "update", Err: err}
	}
	s.mu.Unlock()

	s.emit(ActionUpdated, rec)
	return rec, nil
}

// DeleteRecording removes a recording. It reports false when the id is
// unknown or the store failed; the audio file is left alone.
func (s *Service) DeleteRecording(ctx context.Context, id string) bool {
	s.mu.Lock()
	list, err := s.readForWrite(ctx)
	if err != nil {
		s.mu.Unlock()
		s.log.Error().Err(err).Str("id", id).Msg("delete: read failed")
		return false
	}

	idx := indexOf(list, id)
	if idx < 0 {
		s.mu.Unlock()
		return false
	}
	rec := list[idx]
	list = append(list[:idx:idx], list[idx+1:]...)

	if err := s.writeList(ctx, list); err != nil {
		s.mu.Unlock()
		s.log.Error().Err(err).Str("id", id).Msg("delete: write failed")
		return false
	}
	s.mu.Unlock()

	s.emit(ActionDeleted, rec)
	return true
}

// SearchRecordings returns recordings whose title, transcript or tags
// contain query (case-insensitive), in library order.
func (s *Service) SearchRecordings(ctx context.Context, query string) []recording.Recording {
	all := s.GetAllRecordings(ctx)
	out := make([]recording.Recording, 0, len(all))
	for _, r := range all {
		if r.Matches(query) {
			out = append(out, r)
		}
	}
	return out
}

// Ping reports whether the backing store can be read.
func (s *Service) Ping(ctx context.Context) error {
	if _, _, err := s.kv.Get(ctx, SettingsKey); err != nil {
		return &StorageError{Op: "ping", Err: err}
	}
	return nil
}

// ClearAllData removes the library and all settings.
func (s *Service) ClearAllData(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, key := range []string{RecordingsKey, SettingsKey} {
		if err := s.kv.Delete(ctx, key); err != nil {
			return &StorageError{Op: "clear", Err: err}
		}
	}
	s.log.Info().Msg("all data cleared")
	return nil
}

// readList loads the persisted list. A missing key is an empty list; an
// unparseable document is logged and treated as empty. Only I/O failures
// are returned.
func (s *Service) readList(ctx context.Context) ([]recording.Recording, error) {
	raw, ok, err := s.kv.Get(ctx, RecordingsKey)
	if err != nil {
		return nil, err
	}
	if !ok || raw == "" {
		return []recording.Recording{}, nil
	}
	var list []recording.Recording
	if err := json.Unmarshal([]byte(raw), &list); err != nil {
		s.log.Warn().Err(err).Msg("recordings document is corrupt, treating as empty")
		return []recording.Recording{}, nil
	}
	return dedupe(list), nil
}

func (s *Service) readForWrite(ctx context.Context) ([]recording.Recording, error) {
	list, err := s.readList(ctx)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", RecordingsKey, err)
	}
	return list, nil
}

func (s *Service) writeList(ctx context.Context, list []recording.Recording) error {
	data, err := json.Marshal(list)
	if err != nil {
		return fmt.Errorf("encode recordings: %w", err)
	}
	if err := s.kv.Set(ctx, RecordingsKey, string(data)); err != nil {
		return fmt.Errorf("write %s: %w", RecordingsKey, err)
	}
	return nil
}

// advance returns the current time, or prev+1ns when the clock has not
// moved past prev.
func (s *Service) advance(prev time.Time) time.Time {
	now := s.now().UTC()
	if !now.After(prev) {
		return prev.Add(time.Nanosecond)
	}
	return now
}

func (s *Service) emit(a Action, rec recording.Recording) {
	if s.notify != nil {
		s.notify.Notify(Change{Action: a, Recording: rec})
	}
}

func indexOf(list []recording.Recording, id string) int {
	for i, r := range list {
		if r.ID == id {
			return i
		}
	}
	return -1
}

// dedupe keeps the first (newest) occurrence of each id.
func dedupe(list []recording.Recording) []recording.Recording {
	seen := make(map[string]struct{}, len(list))
	out := list[:0]
	for _, r := range list {
		if _, dup := seen[r.ID]; dup {
			continue
		}
		seen[r.ID] = struct{}{}
		out = append(out, r)
	}
	return out
}
