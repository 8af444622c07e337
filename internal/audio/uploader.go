package audio

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// AsyncUploader copies saved recordings to a remote store in the background
// so capture and import never wait on the network.
type AsyncUploader struct {
	remote   Store
	ch       chan uploadJob
	workers  int
	wg       sync.WaitGroup
	log      zerolog.Logger
	stopped  atomic.Bool
	stopOnce sync.Once

	uploaded atomic.Int64
	failed   atomic.Int64
	dropped  atomic.Int64
}

type uploadJob struct {
	key         string
	data        []byte
	contentType string
}

// UploaderStats is a snapshot of uploader counters.
type UploaderStats struct {
	Pending  int   `json:"pending"`
	Uploaded int64 `json:"uploaded"`
	Failed   int64 `json:"failed"`
	Dropped  int64 `json:"dropped"`
}

func NewAsyncUploader(remote Store, bufferSize, workers int, log zerolog.Logger) *AsyncUploader {
	if bufferSize <= 0 {
		bufferSize = 64
	}
	if workers <= 0 {
		workers = 1
	}
	return &AsyncUploader{
		remote:  remote,
		ch:      make(chan uploadJob, bufferSize),
		workers: workers,
		log:     log.With().Str("component", "async-uploader").Logger(),
	}
}

// Enqueue adds an upload job. Non-blocking: drops with a warning if the
// queue is full or the uploader is stopped. The local copy is already safe.
func (u *AsyncUploader) Enqueue(key string, data []byte, contentType string) {
	if u.stopped.Load() {
		u.dropped.Add(1)
		return
	}
	select {
	case u.ch <- uploadJob{key: key, data: data, contentType: contentType}:
	default:
		u.dropped.Add(1)
		u.log.Warn().Str("key", key).Msg("upload queue full, skipping (file safe locally)")
	}
}

func (u *AsyncUploader) Start() {
	for i := 0; i < u.workers; i++ {
		u.wg.Add(1)
		go u.worker()
	}
	u.log.Info().Int("workers", u.workers).Int("buffer", cap(u.ch)).Msg("async uploader started")
}

// Stop closes the queue and waits for workers to drain it.
func (u *AsyncUploader) Stop() {
	u.stopped.Store(true)
	u.stopOnce.Do(func() { close(u.ch) })
	u.wg.Wait()
}

func (u *AsyncUploader) Stats() UploaderStats {
	return UploaderStats{
		Pending:  len(u.ch),
		Uploaded: u.uploaded.Load(),
		Failed:   u.failed.Load(),
		Dropped:  u.dropped.Load(),
	}
}

func (u *AsyncUploader) worker() {
	defer u.wg.Done()
	for job := range u.ch {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		if err := u.remote.Save(ctx, job.key, job.data, job.contentType); err != nil {
			u.failed.Add(1)
			u.log.Error().Err(err).Str("key", job.key).Msg("backup upload failed (file safe locally)")
		} else {
			u.uploaded.Add(1)
		}
		cancel()
	}
}
