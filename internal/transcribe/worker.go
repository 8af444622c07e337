package transcribe

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/snarg/voicememo/internal/audio"
	"github.com/snarg/voicememo/internal/metrics"
	"github.com/snarg/voicememo/internal/recording"
	"github.com/snarg/voicememo/internal/storage"
)

// Job is one audio file to import into the library.
type Job struct {
	Path  string   // file on local disk; moved into the audio store on success
	Title string   // overrides the generated title when set
	Tags  []string // applied to the new recording
	// Elapsed is the recorded length in seconds, used when the transcriber
	// reports no duration.
	Elapsed float64
}

// QueueStats reports the current state of the import queue.
type QueueStats struct {
	Pending   int   `json:"pending"`
	Completed int64 `json:"completed"`
	Failed    int64 `json:"failed"`
}

// WorkerPoolOptions configures the import worker pool.
type WorkerPoolOptions struct {
	Transcriber Service
	Library     *storage.Service
	Audio       audio.Store
	Workers     int
	QueueSize   int
	Timeout     time.Duration // per job
	Clock       func() time.Time
	OnDone      func(rec recording.Recording, err error) // optional, called per job
	Log         zerolog.Logger
}

// WorkerPool imports audio files in the background: store the audio,
// transcribe it, save a recording.
type WorkerPool struct {
	jobs   chan Job
	opts   WorkerPoolOptions
	log    zerolog.Logger
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.RWMutex
	stopped bool

	completed atomic.Int64
	failed    atomic.Int64
}

func NewWorkerPool(opts WorkerPoolOptions) *WorkerPool {
	if opts.Timeout <= 0 {
		opts.Timeout = 3 * time.Minute
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &WorkerPool{
		jobs:   make(chan Job, opts.QueueSize),
		opts:   opts,
		log:    opts.Log.With().Str("component", "import-pool").Logger(),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Start launches the worker goroutines.
func (wp *WorkerPool) Start() {
	for i := 0; i < wp.opts.Workers; i++ {
		wp.wg.Add(1)
		go wp.worker(i)
	}
	wp.log.Info().Int("workers", wp.opts.Workers).Int("queue_size", cap(wp.jobs)).Msg("import worker pool started")
}

// Stop closes the queue, waits for queued jobs to finish, then cancels
// any stragglers.
func (wp *WorkerPool) Stop() {
	wp.mu.Lock()
	if wp.stopped {
		wp.mu.Unlock()
		return
	}
	wp.stopped = true
	close(wp.jobs)
	wp.mu.Unlock()

	wp.wg.Wait()
	wp.cancel()
	wp.log.Info().
		Int64("completed", wp.completed.Load()).
		Int64("failed", wp.failed.Load()).
		Msg("import worker pool stopped")
}

// Enqueue adds a job without blocking. Returns false if the queue is full
// or the pool is stopped.
func (wp *WorkerPool) Enqueue(j Job) bool {
	wp.mu.RLock()
	defer wp.mu.RUnlock()
	if wp.stopped {
		return false
	}
	select {
	case wp.jobs <- j:
		return true
	default:
		return false
	}
}

// Stats returns current queue statistics.
func (wp *WorkerPool) Stats() QueueStats {
	return QueueStats{
		Pending:   len(wp.jobs),
		Completed: wp.completed.Load(),
		Failed:    wp.failed.Load(),
	}
}

// Workers returns the number of worker goroutines.
func (wp *WorkerPool) Workers() int { return wp.opts.Workers }

func (wp *WorkerPool) worker(id int) {
	defer wp.wg.Done()
	log := wp.log.With().Int("worker", id).Logger()

	for job := range wp.jobs {
		rec, err := wp.process(log, job)
		if err != nil {
			wp.failed.Add(1)
			metrics.ImportJobsTotal.WithLabelValues("failed").Inc()
			log.Warn().Err(err).Str("file", job.Path).Msg("import failed")
		} else {
			wp.completed.Add(1)
			metrics.ImportJobsTotal.WithLabelValues("completed").Inc()
		}
		if wp.opts.OnDone != nil {
			wp.opts.OnDone(rec, err)
		}
	}
}

func (wp *WorkerPool) process(log zerolog.Logger, job Job) (recording.Recording, error) {
	start := wp.opts.Clock()
	ctx, cancel := context.WithTimeout(wp.ctx, wp.opts.Timeout)
	defer cancel()

	return Import(ctx, ImportDeps{
		Transcriber: wp.opts.Transcriber,
		Library:     wp.opts.Library,
		Audio:       wp.opts.Audio,
		Now:         wp.opts.Clock,
		Log:         log,
	}, job, start)
}

// ImportDeps are the collaborators of Import.
type ImportDeps struct {
	Transcriber Service
	Library     *storage.Service
	Audio       audio.Store
	Now         func() time.Time
	Log         zerolog.Logger
}

// Import transcribes the file at job.Path, moves it into the audio store and
// saves a recording titled from the transcript. It is the shared pipeline
// behind the TUI's stop button, API uploads and the watch folder. The source
// file is only consumed once a recording exists; on any failure it is left
// at job.Path so the import can be retried.
func Import(ctx context.Context, d ImportDeps, job Job, start time.Time) (recording.Recording, error) {
	now := time.Now
	if d.Now != nil {
		now = d.Now
	}
	name := filepath.Base(job.Path)

	if _, err := os.Stat(job.Path); err != nil {
		return recording.Recording{}, fmt.Errorf("import %s: %w", name, err)
	}

	result, err := d.Transcriber.TranscribeAudio(ctx, audio.FileURI(job.Path))
	if err != nil {
		return recording.Recording{}, fmt.Errorf("transcribe %s: %w", name, err)
	}
	if result.Duration == 0 && job.Elapsed > 0 {
		result.Duration = job.Elapsed
	}

	title := strings.TrimSpace(job.Title)
	if title == "" {
		title = recording.GenerateTitle(result.Text)
	}
	if strings.TrimSpace(title) == "" {
		title = strings.TrimSuffix(name, filepath.Ext(name))
	}

	stored, err := audio.Ingest(ctx, d.Audio, job.Path, now())
	if err != nil {
		return recording.Recording{}, fmt.Errorf("ingest: %w", err)
	}

	rec, err := d.Library.SaveRecording(ctx, recording.Draft{
		Title:         title,
		AudioURI:      stored.URI,
		Transcription: *result,
		Tags:          job.Tags,
	})
	if err != nil {
		if rbErr := audio.Rollback(ctx, d.Audio, stored, job.Path); rbErr != nil {
			d.Log.Error().Err(rbErr).Str("key", stored.Key).Msg("failed to return audio after save error")
		}
		return recording.Recording{}, err
	}

	d.Log.Info().
		Str("id", rec.ID).
		Str("title", rec.Title).
		Int64("took_ms", now().Sub(start).Milliseconds()).
		Msg("recording imported")
	return rec, nil
}
