package device

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/snarg/voicememo/internal/audio"
	"github.com/snarg/voicememo/internal/recorder"
)

// CaptureOptions configures a Capture.
type CaptureOptions struct {
	Dir    string       // finished WAV files are left here
	Format audio.Format // defaults to DefaultFormat
	// OnLevel receives the peak amplitude in [0,1] of every buffer while
	// not paused. It runs on the audio thread and must not block.
	OnLevel func(level float64)
	Log     zerolog.Logger

	open       inputOpener
	checkInput func() error
}

// Capture records the default microphone into WAV files. It implements
// recorder.Capture.
type Capture struct {
	opts CaptureOptions
	log  zerolog.Logger
}

func NewCapture(opts CaptureOptions) *Capture {
	if opts.Format == (audio.Format{}) {
		opts.Format = DefaultFormat
	}
	if opts.open == nil {
		opts.open = openInput
	}
	if opts.checkInput == nil {
		opts.checkInput = hasInput
	}
	return &Capture{
		opts: opts,
		log:  opts.Log.With().Str("component", "capture").Logger(),
	}
}

// RequestPermission reports whether an input device can be used. Desktop
// systems grant access per process, so a missing device is the only
// refusal.
func (c *Capture) RequestPermission(ctx context.Context) (bool, error) {
	if err := c.opts.checkInput(); err != nil {
		c.log.Warn().Err(err).Msg("no input device")
		return false, nil
	}
	return true, nil
}

// Begin opens the microphone and starts writing a new WAV file.
func (c *Capture) Begin(ctx context.Context) (recorder.Session, error) {
	if err := os.MkdirAll(c.opts.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create capture dir: %w", err)
	}
	name := fmt.Sprintf("memo-%s-%s.wav", time.Now().Format("20060102-150405"), uuid.NewString()[:8])
	path := filepath.Join(c.opts.Dir, name)

	w, err := audio.CreateWAV(path, c.opts.Format)
	if err != nil {
		return nil, err
	}
	s := &captureSession{w: w, onLevel: c.opts.OnLevel, log: c.log}

	st, err := c.opts.open(c.opts.Format, s.process)
	if err != nil {
		w.Close()
		os.Remove(path)
		return nil, err
	}
	if err := st.Start(); err != nil {
		st.Close()
		w.Close()
		os.Remove(path)
		return nil, fmt.Errorf("start input stream: %w", err)
	}
	s.stream = st
	c.log.Debug().Str("file", path).Msg("capture started")
	return s, nil
}

var errFinished = errors.New("capture already finished")

type captureSession struct {
	stream  stream
	onLevel func(float64)
	log     zerolog.Logger
	paused  atomic.Bool
	closed  atomic.Bool

	mu       sync.Mutex
	w        *audio.WAVWriter
	writeErr error
	done     bool
}

// process is the PortAudio input callback.
func (s *captureSession) process(in []int16) {
	if s.paused.Load() {
		return
	}
	s.mu.Lock()
	if !s.done && s.writeErr == nil {
		s.writeErr = s.w.WriteSamples(in)
	}
	s.mu.Unlock()

	if s.onLevel != nil {
		s.onLevel(peak(in))
	}
}

func (s *captureSession) Pause() error {
	s.paused.Store(true)
	return nil
}

func (s *captureSession) Resume() error {
	s.paused.Store(false)
	return nil
}

// Finish stops the stream, closes the file and returns its file:// URI.
func (s *captureSession) Finish() (string, error) {
	path, err := s.close()
	if err != nil {
		if !errors.Is(err, errFinished) {
			os.Remove(path)
		}
		return "", err
	}
	return audio.FileURI(path), nil
}

// Discard stops the stream and deletes the file.
func (s *captureSession) Discard() error {
	path, err := s.close()
	if errors.Is(err, errFinished) {
		return err
	}
	if rmErr := os.Remove(path); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
		return rmErr
	}
	return err
}

func (s *captureSession) close() (string, error) {
	if !s.closed.CompareAndSwap(false, true) {
		return s.w.Path(), errFinished
	}

	// Stop waits for a running callback, so s.mu must not be held here.
	var errs []error
	if err := s.stream.Stop(); err != nil {
		errs = append(errs, fmt.Errorf("stop stream: %w", err))
	}
	if err := s.stream.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close stream: %w", err))
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	path := s.w.Path()
	s.done = true
	if s.writeErr != nil {
		errs = append(errs, fmt.Errorf("write samples: %w", s.writeErr))
	}
	if err := s.w.Close(); err != nil {
		errs = append(errs, fmt.Errorf("finalise wav: %w", err))
	}
	s.log.Debug().Str("file", path).Dur("duration", s.w.Duration()).Msg("capture closed")
	return path, errors.Join(errs...)
}

func peak(in []int16) float64 {
	var p float64
	for _, v := range in {
		p = math.Max(p, math.Abs(float64(v)/32768))
	}
	return math.Min(p, 1)
}
