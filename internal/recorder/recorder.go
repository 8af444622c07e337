// Package recorder drives microphone capture through the states
// Idle → Recording ⇄ Paused → Processing → Idle and keeps an elapsed-seconds
// counter. Platform failures are logged and shown to the user through an
// Alerter; no method returns them.
package recorder

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// ErrPermissionDenied is logged when the user refuses microphone access.
var ErrPermissionDenied = errors.New("microphone permission denied")

// State is the recorder lifecycle state.
type State int

const (
	Idle State = iota
	Recording
	Paused
	Processing
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Recording:
		return "recording"
	case Paused:
		return "paused"
	case Processing:
		return "processing"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Capture is the platform microphone.
type Capture interface {
	RequestPermission(ctx context.Context) (bool, error)
	Begin(ctx context.Context) (Session, error)
}

// Session is one capture in progress.
type Session interface {
	Pause() error
	Resume() error
	// Finish finalises the capture and returns the audio locator.
	Finish() (uri string, err error)
	// Discard stops the capture and removes anything written.
	Discard() error
}

// Alerter shows a message to the user.
type Alerter interface {
	Alert(title, message string)
}

// Ticker is the subset of time.Ticker the recorder needs.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

type stdTicker struct{ t *time.Ticker }

func (s stdTicker) C() <-chan time.Time { return s.t.C }
func (s stdTicker) Stop()               { s.t.Stop() }

// NewStdTicker wraps time.NewTicker.
func NewStdTicker(d time.Duration) Ticker { return stdTicker{time.NewTicker(d)} }

// Options configures a Recorder. Callbacks are optional and run on the
// goroutine that caused them, never while the recorder's lock is held.
type Options struct {
	Capture   Capture
	Alerter   Alerter
	NewTicker func(time.Duration) Ticker // defaults to NewStdTicker

	OnStateChange func(recording, paused bool)
	OnComplete    func(uri string, elapsedSeconds int)
	OnTick        func(elapsedSeconds int)

	Log zerolog.Logger
}

// Recorder is safe for concurrent use.
type Recorder struct {
	opts Options
	log  zerolog.Logger

	mu       sync.Mutex
	state    State
	starting bool
	closed   bool
	session  Session
	elapsed  int
	ticker   Ticker
	tickStop chan struct{}
}

func New(opts Options) *Recorder {
	if opts.NewTicker == nil {
		opts.NewTicker = NewStdTicker
	}
	return &Recorder{
		opts: opts,
		log:  opts.Log.With().Str("component", "recorder").Logger(),
	}
}

// State returns the current state.
func (r *Recorder) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Elapsed returns whole seconds recorded so far, excluding paused time.
func (r *Recorder) Elapsed() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.elapsed
}

// Start asks for permission and begins capture. Ignored unless Idle, and
// after Close.
func (r *Recorder) Start(ctx context.Context) {
	r.mu.Lock()
	if r.state != Idle || r.starting || r.closed {
		r.mu.Unlock()
		return
	}
	r.starting = true
	r.mu.Unlock()

	sess, ok := r.begin(ctx)

	r.mu.Lock()
	r.starting = false
	if !ok {
		r.mu.Unlock()
		return
	}
	if r.closed {
		// Close ran while Begin was in flight.
		r.mu.Unlock()
		if err := sess.Discard(); err != nil {
			r.log.Warn().Err(err).Msg("failed to discard capture started during close")
		}
		return
	}
	r.session = sess
	r.state = Recording
	r.elapsed = 0
	r.startTickerLocked()
	r.mu.Unlock()

	r.log.Info().Msg("recording started")
	r.notify(true, false)
}

func (r *Recorder) begin(ctx context.Context) (Session, bool) {
	granted, err := r.opts.Capture.RequestPermission(ctx)
	if err != nil || !granted {
		if err == nil {
			err = ErrPermissionDenied
		}
		r.log.Warn().Err(err).Msg("microphone permission not granted")
		r.alert("Permission required", "Microphone access is needed to record voice memos.")
		return nil, false
	}

	sess, err := r.opts.Capture.Begin(ctx)
	if err != nil {
		r.log.Error().Err(err).Msg("failed to start capture")
		r.alert("Recording failed", "Could not start recording: "+err.Error())
		return nil, false
	}
	return sess, true
}

// Pause suspends capture and the elapsed counter. Ignored unless Recording.
func (r *Recorder) Pause() {
	r.mu.Lock()
	if r.state != Recording {
		r.mu.Unlock()
		return
	}
	if err := r.session.Pause(); err != nil {
		r.mu.Unlock()
		r.log.Error().Err(err).Msg("failed to pause capture")
		r.alert("Recording error", "Could not pause recording: "+err.Error())
		return
	}
	r.state = Paused
	r.stopTickerLocked()
	r.mu.Unlock()

	r.notify(true, true)
}

// Resume continues a paused capture. Ignored unless Paused.
func (r *Recorder) Resume() {
	r.mu.Lock()
	if r.state != Paused {
		r.mu.Unlock()
		return
	}
	if err := r.session.Resume(); err != nil {
		r.mu.Unlock()
		r.log.Error().Err(err).Msg("failed to resume capture")
		r.alert("Recording error", "Could not resume recording: "+err.Error())
		return
	}
	r.state = Recording
	r.startTickerLocked()
	r.mu.Unlock()

	r.notify(true, false)
}

// TogglePause pauses a running capture or resumes a paused one.
func (r *Recorder) TogglePause() {
	switch r.State() {
	case Recording:
		r.Pause()
	case Paused:
		r.Resume()
	}
}

// Stop finalises the capture and hands it to OnComplete. Only the first of
// several concurrent calls does any work.
func (r *Recorder) Stop(ctx context.Context) {
	r.mu.Lock()
	if r.state != Recording && r.state != Paused {
		r.mu.Unlock()
		return
	}
	r.state = Processing
	r.stopTickerLocked()
	sess := r.session
	r.session = nil
	elapsed := r.elapsed
	r.mu.Unlock()

	uri, err := sess.Finish()
	if err != nil {
		r.log.Error().Err(err).Msg("failed to finalise capture")
		r.alert("Recording failed", "Could not save recording: "+err.Error())
	} else {
		r.log.Info().Str("uri", uri).Int("elapsed_s", elapsed).Msg("recording finished")
		if r.opts.OnComplete != nil {
			r.opts.OnComplete(uri, elapsed)
		}
	}

	r.mu.Lock()
	r.state = Idle
	r.mu.Unlock()
	r.notify(false, false)
}

// Close stops the ticker and discards any capture in progress, including
// one whose Begin is still running. The recorder cannot be started again.
func (r *Recorder) Close() error {
	r.mu.Lock()
	r.closed = true
	r.stopTickerLocked()
	sess := r.session
	r.session = nil
	wasActive := r.state == Recording || r.state == Paused
	if wasActive {
		r.state = Idle
	}
	r.mu.Unlock()

	if sess == nil {
		return nil
	}
	if err := sess.Discard(); err != nil {
		r.log.Warn().Err(err).Msg("failed to discard capture on close")
		return err
	}
	return nil
}

// startTickerLocked starts the 1 s ticker. Callers hold r.mu.
func (r *Recorder) startTickerLocked() {
	r.stopTickerLocked()
	t := r.opts.NewTicker(time.Second)
	stop := make(chan struct{})
	r.ticker = t
	r.tickStop = stop
	go r.tickLoop(t, stop)
}

// stopTickerLocked stops the running ticker, if any. Callers hold r.mu.
func (r *Recorder) stopTickerLocked() {
	if r.ticker == nil {
		return
	}
	r.ticker.Stop()
	close(r.tickStop)
	r.ticker = nil
	r.tickStop = nil
}

func (r *Recorder) tickLoop(t Ticker, stop chan struct{}) {
	for {
		select {
		case <-stop:
			return
		case <-t.C():
			r.mu.Lock()
			// A tick racing with Stop/Pause must not count.
			if r.tickStop != stop {
				r.mu.Unlock()
				return
			}
			r.elapsed++
			e := r.elapsed
			r.mu.Unlock()
			if r.opts.OnTick != nil {
				r.opts.OnTick(e)
			}
		}
	}
}

func (r *Recorder) notify(recording, paused bool) {
	if r.opts.OnStateChange != nil {
		r.opts.OnStateChange(recording, paused)
	}
}

func (r *Recorder) alert(title, msg string) {
	if r.opts.Alerter != nil {
		r.opts.Alerter.Alert(title, msg)
	}
}
