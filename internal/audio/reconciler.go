package audio

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Reconciler re-uploads recent local recordings that are missing from the
// backup store, covering dropped or failed async uploads.
type Reconciler struct {
	dir      string
	remote   Store
	interval time.Duration
	delay    time.Duration
	window   time.Duration
	log      zerolog.Logger
	stop     chan struct{}
	now      func() time.Time
}

// ReconcileResult counts one pass.
type ReconcileResult struct {
	Checked, Uploaded, Failed int
}

func NewReconciler(dir string, remote Store, log zerolog.Logger) *Reconciler {
	return &Reconciler{
		dir:      dir,
		remote:   remote,
		interval: 10 * time.Minute,
		delay:    time.Minute,
		window:   7 * 24 * time.Hour,
		log:      log.With().Str("component", "backup-reconciler").Logger(),
		stop:     make(chan struct{}),
		now:      time.Now,
	}
}

func (r *Reconciler) Start() { go r.loop() }
func (r *Reconciler) Stop()  { close(r.stop) }

func (r *Reconciler) loop() {
	select {
	case <-time.After(r.delay):
	case <-r.stop:
		return
	}

	r.Reconcile(context.Background())
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			r.Reconcile(context.Background())
		case <-r.stop:
			return
		}
	}
}

// Reconcile walks the date directories inside the window once.
func (r *Reconciler) Reconcile(ctx context.Context) ReconcileResult {
	var res ReconcileResult
	cutoff := r.now().Add(-r.window).Truncate(24 * time.Hour)

	dateDirs, _ := os.ReadDir(r.dir)
	for _, dateDir := range dateDirs {
		if !dateDir.IsDir() {
			continue
		}
		dirDate, err := time.Parse("2006-01-02", dateDir.Name())
		if err != nil || dirDate.Before(cutoff) {
			continue
		}

		datePath := filepath.Join(r.dir, dateDir.Name())
		files, _ := os.ReadDir(datePath)
		for _, f := range files {
			if f.IsDir() || (strings.HasPrefix(f.Name(), ".audio-") && strings.HasSuffix(f.Name(), ".tmp")) {
				continue
			}
			res.Checked++
			key := dateDir.Name() + "/" + f.Name()

			checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			exists := r.remote.Exists(checkCtx, key)
			cancel()
			if exists {
				continue
			}

			data, err := os.ReadFile(filepath.Join(datePath, f.Name()))
			if err != nil {
				continue
			}
			saveCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
			if err := r.remote.Save(saveCtx, key, data, ContentType(f.Name())); err != nil {
				r.log.Warn().Err(err).Str("key", key).Msg("reconcile upload failed")
				res.Failed++
			} else {
				res.Uploaded++
			}
			cancel()
		}
	}

	if res.Uploaded > 0 || res.Failed > 0 {
		r.log.Info().
			Int("uploaded", res.Uploaded).
			Int("failed", res.Failed).
			Int("checked", res.Checked).
			Msg("reconcile complete")
	}
	return res
}
