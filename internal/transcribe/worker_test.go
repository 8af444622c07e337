package transcribe

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/snarg/voicememo/internal/audio"
	"github.com/snarg/voicememo/internal/kv"
	"github.com/snarg/voicememo/internal/recording"
	"github.com/snarg/voicememo/internal/storage"
)

type poolFixture struct {
	lib   *storage.Service
	store *audio.LocalStore
	done  chan error
}

func newTestPool(t *testing.T, workers, queueSize int) (*WorkerPool, *poolFixture) {
	t.Helper()
	kvs, err := kv.NewFileStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	fx := &poolFixture{
		lib:   storage.New(storage.Options{KV: kvs, Log: zerolog.Nop()}),
		store: audio.NewLocalStore(t.TempDir()),
		done:  make(chan error, 16),
	}
	wp := NewWorkerPool(WorkerPoolOptions{
		Transcriber: fastMock(),
		Library:     fx.lib,
		Audio:       fx.store,
		Workers:     workers,
		QueueSize:   queueSize,
		OnDone:      func(_ recording.Recording, err error) { fx.done <- err },
		Log:         zerolog.Nop(),
	})
	return wp, fx
}

func TestNewWorkerPool(t *testing.T) {
	wp, _ := newTestPool(t, 4, 100)
	if cap(wp.jobs) != 100 {
		t.Errorf("queue capacity = %d, want 100", cap(wp.jobs))
	}
	if wp.Workers() != 4 {
		t.Errorf("Workers = %d, want 4", wp.Workers())
	}
}

func TestWorkerPool_EnqueueFull(t *testing.T) {
	wp, _ := newTestPool(t, 0, 2) // 0 workers = nobody draining

	wp.Enqueue(Job{Path: "a"})
	wp.Enqueue(Job{Path: "b"})

	if wp.Enqueue(Job{Path: "c"}) {
		t.Error("Enqueue should return false when queue is full")
	}
	if st := wp.Stats(); st.Pending != 2 || st.Completed != 0 || st.Failed != 0 {
		t.Errorf("Stats = %+v, want 2 pending", st)
	}
}

func TestWorkerPool_EnqueueAfterStop(t *testing.T) {
	wp, _ := newTestPool(t, 1, 10)
	wp.Start()
	wp.Stop()
	wp.Stop() // idempotent

	if wp.Enqueue(Job{Path: "x"}) {
		t.Error("Enqueue should return false after Stop()")
	}
}

func TestWorkerPool_StopDrains(t *testing.T) {
	wp, _ := newTestPool(t, 2, 10)
	wp.Start()

	done := make(chan struct{})
	go func() {
		wp.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Stop() did not return within 5 seconds")
	}
}

func TestWorkerPool_Imports(t *testing.T) {
	wp, fx := newTestPool(t, 1, 10)
	wp.Start()
	defer wp.Stop()

	src := filepath.Join(t.TempDir(), "dropped.wav")
	os.WriteFile(src, []byte("pcm"), 0o644)

	if !wp.Enqueue(Job{Path: src, Tags: []string{"import"}}) {
		t.Fatal("Enqueue failed")
	}
	if !wp.Enqueue(Job{Path: filepath.Join(t.TempDir(), "missing.wav")}) {
		t.Fatal("Enqueue failed")
	}

	for i := 0; i < 2; i++ {
		select {
		case <-fx.done:
		case <-time.After(5 * time.Second):
			t.Fatal("job did not finish")
		}
	}

	if st := wp.Stats(); st.Completed != 1 || st.Failed != 1 {
		t.Errorf("Stats = %+v, want 1 completed 1 failed", st)
	}

	recs := fx.lib.GetAllRecordings(context.Background())
	if len(recs) != 1 {
		t.Fatalf("recordings = %d, want 1", len(recs))
	}
	rec := recs[0]
	if rec.Title != "This is a mock transcription of your voice memo" {
		t.Errorf("Title = %q", rec.Title)
	}
	if len(rec.Tags) != 1 || rec.Tags[0] != "import" {
		t.Errorf("Tags = %v", rec.Tags)
	}
	if audio.ResolveURI("", rec.AudioURI) == "" {
		t.Errorf("AudioURI %q does not resolve", rec.AudioURI)
	}
	if _, err := os.Stat(src); !os.IsNotExist(err) {
		t.Error("source file was not moved")
	}
}

// stubService returns a fixed transcription outcome.
type stubService struct {
	result *recording.TranscriptionResult
	err    error
	uris   []string
}

func (s *stubService) TranscribeAudio(_ context.Context, uri string) (*recording.TranscriptionResult, error) {
	s.uris = append(s.uris, uri)
	if s.err != nil {
		return nil, s.err
	}
	res := *s.result
	return &res, nil
}

func (s *stubService) EnhanceText(_ context.Context, text string, _ Mode) string { return text }
func (s *stubService) Name() string                                              { return "stub" }

// bucketStore behaves like an S3-only store: nothing is local and URLs are
// presigned.
type bucketStore struct{ *audio.LocalStore }

func (b bucketStore) LocalPath(string) string { return "" }

func (b bucketStore) URL(_ context.Context, key string) (string, error) {
	return "https://bucket.example.com/" + key + "?X-Amz-Signature=x", nil
}

// failingKV rejects every write.
type failingKV struct{ kv.Store }

func (failingKV) Set(context.Context, string, string) error { return errors.New("disk full") }

func newLibrary(t *testing.T) *storage.Service {
	t.Helper()
	kvs, err := kv.NewFileStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	return storage.New(storage.Options{KV: kvs, Log: zerolog.Nop()})
}

func writeSource(t *testing.T, name, data string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func storedFiles(t *testing.T, dir string) []string {
	t.Helper()
	var files []string
	filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err == nil && !d.IsDir() {
			files = append(files, path)
		}
		return nil
	})
	return files
}

func TestImportTranscriptionFailureKeepsSource(t *testing.T) {
	ctx := context.Background()
	audioDir := t.TempDir()
	lib := newLibrary(t)
	src := writeSource(t, "memo.wav", "pcm")
	svc := &stubService{err: &Error{Op: "transcribe", StatusCode: 503, Message: "overloaded"}}

	_, err := Import(ctx, ImportDeps{
		Transcriber: svc,
		Library:     lib,
		Audio:       audio.NewLocalStore(audioDir),
		Log:         zerolog.Nop(),
	}, Job{Path: src}, time.Now())

	var te *Error
	if !errors.As(err, &te) || te.StatusCode != 503 {
		t.Fatalf("err = %v, want the 503 *Error", err)
	}
	if data, err := os.ReadFile(src); err != nil || string(data) != "pcm" {
		t.Errorf("source after failure: %q, %v", data, err)
	}
	if files := storedFiles(t, audioDir); len(files) != 0 {
		t.Errorf("audio store holds %v after failed import", files)
	}
	if n := len(lib.GetAllRecordings(ctx)); n != 0 {
		t.Errorf("recordings = %d, want 0", n)
	}
	if len(svc.uris) != 1 || svc.uris[0] != audio.FileURI(src) {
		t.Errorf("transcribed %v, want the source in place", svc.uris)
	}
}

func TestImportSaveFailureReturnsAudio(t *testing.T) {
	ctx := context.Background()
	audioDir := t.TempDir()
	kvs, err := kv.NewFileStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	lib := storage.New(storage.Options{KV: failingKV{kvs}, Log: zerolog.Nop()})
	src := writeSource(t, "memo.wav", "pcm")

	_, err = Import(ctx, ImportDeps{
		Transcriber: fastMock(),
		Library:     lib,
		Audio:       audio.NewLocalStore(audioDir),
		Log:         zerolog.Nop(),
	}, Job{Path: src}, time.Now())
	if err == nil {
		t.Fatal("expected save error")
	}
	if _, err := os.Stat(src); err != nil {
		t.Errorf("source not returned after save failure: %v", err)
	}
	if files := storedFiles(t, audioDir); len(files) != 0 {
		t.Errorf("audio store holds %v after failed save", files)
	}
}

func TestImportJobFields(t *testing.T) {
	ctx := context.Background()
	lib := newLibrary(t)
	svc := &stubService{result: &recording.TranscriptionResult{Text: "First words of the memo."}}
	now := time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC)

	rec, err := Import(ctx, ImportDeps{
		Transcriber: svc,
		Library:     lib,
		Audio:       audio.NewLocalStore(t.TempDir()),
		Now:         func() time.Time { return now },
		Log:         zerolog.Nop(),
	}, Job{Path: writeSource(t, "memo.wav", "pcm"), Title: "  Standup  ", Tags: []string{"work"}, Elapsed: 42}, now)
	if err != nil {
		t.Fatal(err)
	}
	if rec.Title != "Standup" {
		t.Errorf("Title = %q, want Standup", rec.Title)
	}
	if rec.Transcription.Duration != 42 {
		t.Errorf("Duration = %v, want the elapsed 42", rec.Transcription.Duration)
	}
	if len(rec.Tags) != 1 || rec.Tags[0] != "work" {
		t.Errorf("Tags = %v", rec.Tags)
	}
	if !strings.Contains(rec.AudioURI, "/2026-10-18/memo.wav") {
		t.Errorf("AudioURI = %q", rec.AudioURI)
	}
}

func TestImportRemoteOnlyStore(t *testing.T) {
	ctx := context.Background()
	store := bucketStore{audio.NewLocalStore(t.TempDir())}
	lib := newLibrary(t)
	srv, uploads := transcriptionServer(t, "Call the plumber about the leak.")
	remote := NewRemote(RemoteOptions{APIKey: "sk-test", BaseURL: srv.URL + "/v1", Store: store, Log: zerolog.Nop()})
	now := time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC)

	rec, err := Import(ctx, ImportDeps{
		Transcriber: remote,
		Library:     lib,
		Audio:       store,
		Now:         func() time.Time { return now },
		Log:         zerolog.Nop(),
	}, Job{Path: writeSource(t, "memo.wav", "RIFF-pcm")}, now)
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if rec.AudioURI != "audio:2026-10-18/memo.wav" {
		t.Errorf("AudioURI = %q, want a stable key locator", rec.AudioURI)
	}
	if strings.Contains(rec.AudioURI, "Signature") {
		t.Error("presigned URL persisted on the recording")
	}
	if len(*uploads) != 1 || (*uploads)[0] != "memo.wav:RIFF-pcm" {
		t.Errorf("uploads = %v", *uploads)
	}

	// The stored locator stays transcribable through the store.
	if _, err := remote.TranscribeAudio(ctx, rec.AudioURI); err != nil {
		t.Errorf("re-transcribe %s: %v", rec.AudioURI, err)
	}
	if len(*uploads) != 2 || (*uploads)[1] != "memo.wav:RIFF-pcm" {
		t.Errorf("uploads = %v", *uploads)
	}
}
