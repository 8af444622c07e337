// Package ingest imports audio files dropped into a watch folder.
package ingest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
	"github.com/snarg/voicememo/internal/audio"
	"github.com/snarg/voicememo/internal/transcribe"
)

const defaultDebounce = 500 * time.Millisecond

// Queue accepts import jobs without blocking. *transcribe.WorkerPool
// satisfies it.
type Queue interface {
	Enqueue(transcribe.Job) bool
}

type Options struct {
	Dir      string
	Queue    Queue
	Tags     []string      // applied to every imported recording
	Debounce time.Duration // quiet period after the last write; default 500ms
	Log      zerolog.Logger
}

// Stats is the watcher state reported by the API.
type Stats struct {
	Status   string `json:"status"` // starting, scanning, watching, stopped
	Dir      string `json:"dir"`
	Queued   int64  `json:"queued"`
	Rejected int64  `json:"rejected"`
}

// fileKey identifies one version of a file so repeated events for an
// unchanged file are ignored.
type fileKey struct {
	size    int64
	modTime time.Time
}

// Watcher hands audio files that appear in Dir to the import queue. Files
// already present when Run starts are queued oldest first.
type Watcher struct {
	dir      string
	queue    Queue
	tags     []string
	debounce time.Duration
	log      zerolog.Logger

	ready chan struct{}

	mu     sync.Mutex
	timers map[string]*time.Timer
	seen   map[string]fileKey
	closed bool

	queued   atomic.Int64
	rejected atomic.Int64
	status   atomic.Value // string
}

func New(opts Options) *Watcher {
	if opts.Debounce <= 0 {
		opts.Debounce = defaultDebounce
	}
	w := &Watcher{
		dir:      opts.Dir,
		queue:    opts.Queue,
		tags:     opts.Tags,
		debounce: opts.Debounce,
		log:      opts.Log.With().Str("component", "watcher").Logger(),
		ready:    make(chan struct{}),
		timers:   make(map[string]*time.Timer),
		seen:     make(map[string]fileKey),
	}
	w.status.Store("starting")
	return w
}

// Ready is closed once existing files have been queued and live events
// are being handled.
func (w *Watcher) Ready() <-chan struct{} { return w.ready }

func (w *Watcher) Stats() Stats {
	s, _ := w.status.Load().(string)
	return Stats{
		Status:   s,
		Dir:      w.dir,
		Queued:   w.queued.Load(),
		Rejected: w.rejected.Load(),
	}
}

// Run watches until ctx is cancelled. It returns an error only when the
// directory cannot be watched.
func (w *Watcher) Run(ctx context.Context) error {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return fmt.Errorf("create import dir: %w", err)
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fsw.Close()
	if err := fsw.Add(w.dir); err != nil {
		return fmt.Errorf("watch %s: %w", w.dir, err)
	}

	w.status.Store("scanning")
	n := w.scan()
	w.status.Store("watching")
	close(w.ready)
	w.log.Info().Str("dir", w.dir).Int("existing", n).Msg("import watcher started")

	defer w.shutdown()
	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			w.handle(ev)

		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			w.log.Error().Err(err).Msg("fsnotify error")
		}
	}
}

func (w *Watcher) handle(ev fsnotify.Event) {
	if ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename) {
		w.mu.Lock()
		delete(w.seen, ev.Name)
		w.mu.Unlock()
		return
	}
	if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) {
		return
	}
	if !importable(ev.Name) {
		return
	}
	w.schedule(ev.Name)
}

// schedule restarts path's debounce timer so a file is queued only after
// writes have stopped.
func (w *Watcher) schedule(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	if t, ok := w.timers[path]; ok {
		t.Reset(w.debounce)
		return
	}
	w.timers[path] = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		delete(w.timers, path)
		closed := w.closed
		w.mu.Unlock()
		if !closed {
			w.submit(path)
		}
	})
}

// scan queues files already in the directory, oldest first.
func (w *Watcher) scan() int {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		w.log.Warn().Err(err).Msg("failed to scan import dir")
		return 0
	}

	type candidate struct {
		path    string
		modTime time.Time
	}
	var files []candidate
	for _, e := range entries {
		path := filepath.Join(w.dir, e.Name())
		if e.IsDir() || !importable(path) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		files = append(files, candidate{path: path, modTime: info.ModTime()})
	}
	sort.SliceStable(files, func(i, j int) bool {
		return files[i].modTime.Before(files[j].modTime)
	})

	n := 0
	for _, f := range files {
		if w.submit(f.path) {
			n++
		}
	}
	return n
}

// submit queues path unless it is empty, gone, or was already queued in
// its current version.
func (w *Watcher) submit(path string) bool {
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() || info.Size() == 0 {
		return false
	}
	key := fileKey{size: info.Size(), modTime: info.ModTime()}

	w.mu.Lock()
	if w.seen[path] == key {
		w.mu.Unlock()
		return false
	}
	w.seen[path] = key
	w.mu.Unlock()

	if !w.queue.Enqueue(transcribe.Job{Path: path, Tags: w.tags}) {
		w.mu.Lock()
		delete(w.seen, path)
		w.mu.Unlock()
		w.rejected.Add(1)
		w.log.Warn().Str("file", filepath.Base(path)).Msg("import queue full, file left in place")
		return false
	}
	w.queued.Add(1)
	w.log.Debug().Str("file", filepath.Base(path)).Int64("size", info.Size()).Msg("file queued for import")
	return true
}

func (w *Watcher) shutdown() {
	w.mu.Lock()
	w.closed = true
	for path, t := range w.timers {
		t.Stop()
		delete(w.timers, path)
	}
	w.mu.Unlock()

	w.status.Store("stopped")
	w.log.Info().
		Int64("queued", w.queued.Load()).
		Int64("rejected", w.rejected.Load()).
		Msg("import watcher stopped")
}

// importable accepts audio files, skipping hidden and partial downloads.
func importable(path string) bool {
	name := filepath.Base(path)
	if strings.HasPrefix(name, ".") || strings.HasSuffix(name, ".part") {
		return false
	}
	return audio.IsAudioFile(name)
}
