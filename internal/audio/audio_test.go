package audio

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestWAVRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tone.wav")
	format := Format{SampleRate: 8000, Channels: 1}

	w, err := CreateWAV(path, format)
	if err != nil {
		t.Fatalf("CreateWAV: %v", err)
	}
	in := make([]int16, 8000)
	for i := range in {
		in[i] = int16(i % 200)
	}
	if err := w.WriteSamples(in[:4000]); err != nil {
		t.Fatal(err)
	}
	if err := w.WriteSamples(in[4000:]); err != nil {
		t.Fatal(err)
	}
	if got := w.Duration(); got != time.Second {
		t.Errorf("Duration = %v, want 1s", got)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	fi, _ := os.Stat(path)
	if fi.Size() != wavHeaderSize+16000 {
		t.Errorf("file size = %d, want %d", fi.Size(), wavHeaderSize+16000)
	}

	out, gotFormat, err := ReadWAV(path)
	if err != nil {
		t.Fatalf("ReadWAV: %v", err)
	}
	if gotFormat != format {
		t.Errorf("format = %+v, want %+v", gotFormat, format)
	}
	if len(out) != len(in) {
		t.Fatalf("len = %d, want %d", len(out), len(in))
	}
	for i := range in {
		if out[i] != in[i] {
			t.Fatalf("sample %d = %d, want %d", i, out[i], in[i])
		}
	}
}

func TestReadWAVRejectsOtherFiles(t *testing.T) {
	path := filepath.Join(t.TempDir(), "x.wav")
	os.WriteFile(path, make([]byte, 64), 0o644)
	if _, _, err := ReadWAV(path); err != ErrNotWAV {
		t.Errorf("err = %v, want ErrNotWAV", err)
	}
}

func TestResolveURI(t *testing.T) {
	dir := t.TempDir()
	rel := filepath.Join("2026-01-02", "memo.wav")
	full := filepath.Join(dir, rel)
	os.MkdirAll(filepath.Dir(full), 0o755)
	os.WriteFile(full, []byte("x"), 0o644)

	tests := []struct {
		name string
		uri  string
		want string
	}{
		{"file_uri", FileURI(full), full},
		{"absolute", full, full},
		{"relative", "2026-01-02/memo.wav", full},
		{"store_key", KeyURI("2026-01-02/memo.wav"), full},
		{"store_key_missing", KeyURI("2026-01-02/gone.wav"), ""},
		{"missing", filepath.Join(dir, "nope.wav"), ""},
		{"remote", "https://example.com/memo.wav", ""},
		{"directory", dir, ""},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ResolveURI(dir, tt.uri); got != tt.want {
				t.Errorf("ResolveURI(%q) = %q, want %q", tt.uri, got, tt.want)
			}
		})
	}
}

func TestContentType(t *testing.T) {
	tests := map[string]string{
		"a.wav":  "audio/wav",
		"B.M4A":  "audio/mp4",
		"c.mp3":  "audio/mpeg",
		"d.txt":  "application/octet-stream",
		"noext":  "application/octet-stream",
		"e.webm": "audio/webm",
	}
	for name, want := range tests {
		if got := ContentType(name); got != want {
			t.Errorf("ContentType(%q) = %q, want %q", name, got, want)
		}
	}
	if IsAudioFile("notes.txt") || !IsAudioFile("memo.wav") {
		t.Error("IsAudioFile misclassified")
	}
	if !Playable("/x/MEMO.WAV") || Playable("memo.m4a") || Playable("memo.mp3") {
		t.Error("Playable misclassified")
	}
}

func TestLocalStore(t *testing.T) {
	ctx := context.Background()
	s := NewLocalStore(t.TempDir())

	if s.Exists(ctx, "2026-01-02/a.wav") {
		t.Fatal("Exists before Save")
	}
	if _, err := s.URL(ctx, "2026-01-02/a.wav"); err == nil {
		t.Error("URL of missing file should fail")
	}
	if err := s.Save(ctx, "2026-01-02/a.wav", []byte("abc"), "audio/wav"); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if !s.Exists(ctx, "2026-01-02/a.wav") {
		t.Error("Exists after Save = false")
	}

	uri, err := s.URL(ctx, "2026-01-02/a.wav")
	if err != nil {
		t.Fatalf("URL: %v", err)
	}
	if ResolveURI("", uri) != s.LocalPath("2026-01-02/a.wav") {
		t.Errorf("URL %q does not resolve to the stored file", uri)
	}

	r, err := s.Open(ctx, "2026-01-02/a.wav")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	data, _ := io.ReadAll(r)
	r.Close()
	if string(data) != "abc" {
		t.Errorf("data = %q, want abc", data)
	}
}

func TestTieredStore(t *testing.T) {
	ctx := context.Background()
	local := NewLocalStore(t.TempDir())
	remote := NewLocalStore(t.TempDir())
	up := NewAsyncUploader(remote, 4, 1, zerolog.Nop())
	up.Start()
	s := NewTieredStore(local, up, zerolog.Nop())

	if err := s.Save(ctx, "k/a.wav", []byte("abc"), "audio/wav"); err != nil {
		t.Fatalf("Save: %v", err)
	}
	up.Stop()

	if !local.Exists(ctx, "k/a.wav") {
		t.Error("local copy missing")
	}
	if !remote.Exists(ctx, "k/a.wav") {
		t.Error("backup copy missing after uploader drained")
	}
	if st := up.Stats(); st.Uploaded != 1 || st.Failed != 0 {
		t.Errorf("Stats = %+v, want 1 uploaded", st)
	}

	t.Run("read_falls_back_and_caches", func(t *testing.T) {
		remote.Save(ctx, "k/only-remote.wav", []byte("xyz"), "")
		r, err := s.Open(ctx, "k/only-remote.wav")
		if err != nil {
			t.Fatalf("Open: %v", err)
		}
		data, _ := io.ReadAll(r)
		r.Close()
		if string(data) != "xyz" {
			t.Errorf("data = %q, want xyz", data)
		}
		if !local.Exists(ctx, "k/only-remote.wav") {
			t.Error("remote read was not cached locally")
		}
	})

	t.Run("enqueue_after_stop_drops", func(t *testing.T) {
		up.Enqueue("late", []byte("x"), "")
		if up.Stats().Dropped != 1 {
			t.Errorf("Dropped = %d, want 1", up.Stats().Dropped)
		}
	})
}

func TestIngest(t *testing.T) {
	ctx := context.Background()
	store := NewLocalStore(t.TempDir())
	src := filepath.Join(t.TempDir(), "capture-1.wav")
	os.WriteFile(src, []byte("pcm"), 0o644)
	now := time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC)

	stored, err := Ingest(ctx, store, src, now)
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	uri := stored.URI
	if stored.Key != "2026-03-04/capture-1.wav" {
		t.Errorf("Key = %q", stored.Key)
	}
	want := store.LocalPath("2026-03-04/capture-1.wav")
	if want == "" {
		t.Fatal("file not stored under date key")
	}
	if got := ResolveURI("", uri); got != want {
		t.Errorf("uri %q resolves to %q, want %q", uri, got, want)
	}
	if _, err := os.Stat(src); !os.IsNotExist(err) {
		t.Error("source not removed")
	}

	if _, err := Ingest(ctx, store, src, now); err == nil {
		t.Error("Ingest of missing source should fail")
	}
}

func TestIngestKeepsExistingAudio(t *testing.T) {
	ctx := context.Background()
	store := NewLocalStore(t.TempDir())
	now := time.Date(2026, 3, 4, 10, 15, 30, 0, time.UTC)

	first := filepath.Join(t.TempDir(), "memo.wav")
	os.WriteFile(first, []byte("one"), 0o644)
	if _, err := Ingest(ctx, store, first, now); err != nil {
		t.Fatal(err)
	}

	second := filepath.Join(t.TempDir(), "memo.wav")
	os.WriteFile(second, []byte("two"), 0o644)
	stored, err := Ingest(ctx, store, second, now)
	if err != nil {
		t.Fatal(err)
	}
	uri := stored.URI

	data, _ := os.ReadFile(store.LocalPath("2026-03-04/memo.wav"))
	if string(data) != "one" {
		t.Errorf("first file overwritten: %q", data)
	}
	got, _ := os.ReadFile(ResolveURI("", uri))
	if string(got) != "two" || !strings.HasSuffix(uri, "_memo.wav") {
		t.Errorf("second file at %q holds %q", uri, got)
	}
}

// bucketStore stands in for S3Store: no local paths and presigned URLs.
type bucketStore struct{ *LocalStore }

func (b bucketStore) LocalPath(string) string { return "" }

func (b bucketStore) URL(_ context.Context, key string) (string, error) {
	return "https://bucket.example.com/" + key + "?X-Amz-Signature=x", nil
}

func TestIngestRemoteOnlyStore(t *testing.T) {
	ctx := context.Background()
	store := bucketStore{NewLocalStore(t.TempDir())}
	src := filepath.Join(t.TempDir(), "memo.m4a")
	os.WriteFile(src, []byte("aac"), 0o644)
	now := time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC)

	stored, err := Ingest(ctx, store, src, now)
	if err != nil {
		t.Fatal(err)
	}
	if stored.URI != "audio:2026-10-18/memo.m4a" {
		t.Errorf("URI = %q, want a stable key locator", stored.URI)
	}
	if key, ok := KeyFromURI(stored.URI); !ok || key != stored.Key {
		t.Errorf("KeyFromURI = %q, %v", key, ok)
	}

	path, cleanup, err := Fetch(ctx, store, "", stored.URI)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	data, _ := os.ReadFile(path)
	if string(data) != "aac" || filepath.Ext(path) != ".m4a" {
		t.Errorf("fetched %q with %q", path, data)
	}
	cleanup()
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("cleanup left the temp file")
	}

	if err := Rollback(ctx, store, stored, src); err != nil {
		t.Fatalf("Rollback: %v", err)
	}
	if data, _ := os.ReadFile(src); string(data) != "aac" {
		t.Errorf("restored source holds %q", data)
	}
}

func TestRollbackLocal(t *testing.T) {
	ctx := context.Background()
	store := NewLocalStore(t.TempDir())
	src := filepath.Join(t.TempDir(), "memo.wav")
	os.WriteFile(src, []byte("pcm"), 0o644)

	stored, err := Ingest(ctx, store, src, time.Now())
	if err != nil {
		t.Fatal(err)
	}
	if err := Rollback(ctx, store, stored, src); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(src); err != nil {
		t.Errorf("source not restored: %v", err)
	}
	if store.Exists(ctx, stored.Key) {
		t.Error("local copy should move back, not stay in the store")
	}
}

func TestFetchMissing(t *testing.T) {
	ctx := context.Background()
	store := NewLocalStore(t.TempDir())
	for _, uri := range []string{"audio:2026-01-01/none.wav", "https://example.com/x.wav", ""} {
		if _, _, err := Fetch(ctx, store, "", uri); !errors.Is(err, os.ErrNotExist) {
			t.Errorf("Fetch(%q) err = %v, want ErrNotExist", uri, err)
		}
	}
}

func TestReconcile(t *testing.T) {
	ctx := context.Background()
	local := NewLocalStore(t.TempDir())
	remote := NewLocalStore(t.TempDir())
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	local.Save(ctx, "2026-03-09/a.wav", []byte("a"), "")
	local.Save(ctx, "2026-03-09/b.wav", []byte("b"), "")
	local.Save(ctx, "2026-01-01/old.wav", []byte("o"), "")
	remote.Save(ctx, "2026-03-09/b.wav", []byte("b"), "")

	r := NewReconciler(local.Dir(), remote, zerolog.Nop())
	r.now = func() time.Time { return now }

	res := r.Reconcile(ctx)
	if res.Checked != 2 || res.Uploaded != 1 || res.Failed != 0 {
		t.Errorf("Reconcile = %+v, want checked 2, uploaded 1", res)
	}
	if !remote.Exists(ctx, "2026-03-09/a.wav") {
		t.Error("missing file was not uploaded")
	}
	if remote.Exists(ctx, "2026-01-01/old.wav") {
		t.Error("file outside window was uploaded")
	}
}
