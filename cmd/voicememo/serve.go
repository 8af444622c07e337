package main

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/snarg/voicememo/internal/api"
	"github.com/snarg/voicememo/internal/ingest"
	"github.com/snarg/voicememo/internal/kv"
	"github.com/snarg/voicememo/internal/metrics"
	"github.com/snarg/voicememo/internal/transcribe"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

func runServe(ctx context.Context, rt *core, startTime time.Time) error {
	cfg := rt.cfg
	log := rt.log

	var (
		pool    *transcribe.WorkerPool
		watcher *ingest.Watcher
	)
	if cfg.ImportDir != "" {
		pool = transcribe.NewWorkerPool(transcribe.WorkerPoolOptions{
			Transcriber: rt.transcriber,
			Library:     rt.library,
			Audio:       rt.audio,
			Workers:     cfg.ImportWorkers,
			QueueSize:   cfg.ImportQueueSize,
			Timeout:     cfg.TranscribeTimeout,
			Log:         log,
		})
		pool.Start()
		defer pool.Stop()

		watcher = ingest.New(ingest.Options{
			Dir:   cfg.ImportDir,
			Queue: pool,
			Log:   log,
		})
	}

	src := metrics.Sources{
		Recordings:  func() int { return len(rt.library.GetAllRecordings(context.Background())) },
		UploadQueue: rt.uploadQueue,
	}
	if pool != nil {
		src.ImportQueue = func() int { return pool.Stats().Pending }
	}
	if pg, ok := rt.kv.(*kv.PostgresStore); ok {
		src.PostgresPool = pg.Pool
	}
	prometheus.MustRegister(metrics.NewCollector(src))

	opts := api.Options{
		Config:      cfg,
		Library:     rt.library,
		Transcriber: rt.transcriber,
		Audio:       rt.audio,
		Pool:        pool,
		Watcher:     watcher,
		Version:     version,
		StartTime:   startTime,
		Log:         log,
	}
	// Leave MQTT as a nil interface when no broker is connected.
	if rt.mqtt != nil {
		opts.MQTT = rt.mqtt
	} else if cfg.MQTT.Enabled() {
		opts.MQTT = disconnected{}
	}
	srv := api.NewServer(opts)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(srv.Start)
	if watcher != nil {
		g.Go(func() error { return watcher.Run(gctx) })
	}
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// disconnected reports a configured broker that could not be reached at
// startup.
type disconnected struct{}

func (disconnected) IsConnected() bool { return false }
