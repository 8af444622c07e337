package recorder

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

type fakeSession struct {
	mu        sync.Mutex
	paused    bool
	finished  int
	discarded bool
	finishErr error
	pauseErr  error
	delay     time.Duration
}

func (s *fakeSession) Pause() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pauseErr != nil {
		return s.pauseErr
	}
	s.paused = true
	return nil
}

func (s *fakeSession) Resume() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.paused = false
	return nil
}

func (s *fakeSession) Finish() (string, error) {
	time.Sleep(s.delay)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.finished++
	if s.finishErr != nil {
		return "", s.finishErr
	}
	return "file:///tmp/capture.wav", nil
}

func (s *fakeSession) Discard() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.discarded = true
	return nil
}

type fakeCapture struct {
	granted  bool
	permErr  error
	beginErr error
	session  *fakeSession
	// entered is closed when Begin starts; Begin then waits for release.
	entered chan struct{}
	release chan struct{}
}

func (c *fakeCapture) RequestPermission(ctx context.Context) (bool, error) {
	return c.granted, c.permErr
}

func (c *fakeCapture) Begin(ctx context.Context) (Session, error) {
	if c.entered != nil {
		close(c.entered)
		<-c.release
	}
	if c.beginErr != nil {
		return nil, c.beginErr
	}
	return c.session, nil
}

type fakeAlerter struct {
	mu     sync.Mutex
	titles []string
}

func (a *fakeAlerter) Alert(title, msg string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.titles = append(a.titles, title)
}

func (a *fakeAlerter) count() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.titles)
}

type fakeTicker struct {
	ch      chan time.Time
	stopped atomic.Bool
}

func (t *fakeTicker) C() <-chan time.Time { return t.ch }
func (t *fakeTicker) Stop()               { t.stopped.Store(true) }

type harness struct {
	rec      *Recorder
	capture  *fakeCapture
	alerts   *fakeAlerter
	tickers  chan *fakeTicker
	ticks    chan int
	states   chan [2]bool
	complete atomic.Int32
	lastURI  atomic.Value
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		capture: &fakeCapture{granted: true, session: &fakeSession{}},
		alerts:  &fakeAlerter{},
		tickers: make(chan *fakeTicker, 8),
		ticks:   make(chan int, 8),
		states:  make(chan [2]bool, 16),
	}
	h.rec = New(Options{
		Capture: h.capture,
		Alerter: h.alerts,
		NewTicker: func(time.Duration) Ticker {
			ft := &fakeTicker{ch: make(chan time.Time)}
			h.tickers <- ft
			return ft
		},
		OnStateChange: func(rec, paused bool) { h.states <- [2]bool{rec, paused} },
		OnComplete: func(uri string, elapsed int) {
			h.complete.Add(1)
			h.lastURI.Store(uri)
		},
		OnTick: func(e int) { h.ticks <- e },
		Log:    zerolog.Nop(),
	})
	return h
}

func (h *harness) tick(t *testing.T) int {
	t.Helper()
	var ft *fakeTicker
	select {
	case ft = <-h.tickers:
		h.tickers <- ft // keep it available for the next tick
	default:
		t.Fatal("no ticker running")
	}
	ft.ch <- time.Now()
	select {
	case e := <-h.ticks:
		return e
	case <-time.After(2 * time.Second):
		t.Fatal("tick not observed")
		return 0
	}
}

func TestPauseWhileIdleIsNoop(t *testing.T) {
	h := newHarness(t)
	h.rec.Pause()
	h.rec.Resume()
	h.rec.TogglePause()
	h.rec.Stop(context.Background())

	if h.rec.State() != Idle {
		t.Errorf("State = %v, want idle", h.rec.State())
	}
	if len(h.states) != 0 || h.complete.Load() != 0 || h.alerts.count() != 0 {
		t.Error("idle no-ops produced side effects")
	}
}

func TestStartPauseResumeStop(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.rec.Start(ctx)
	if h.rec.State() != Recording {
		t.Fatalf("State = %v, want recording", h.rec.State())
	}
	if got := <-h.states; got != [2]bool{true, false} {
		t.Errorf("state change = %v, want [true false]", got)
	}

	if e := h.tick(t); e != 1 {
		t.Errorf("elapsed = %d, want 1", e)
	}
	if e := h.tick(t); e != 2 {
		t.Errorf("elapsed = %d, want 2", e)
	}

	first := <-h.tickers
	h.rec.Pause()
	if h.rec.State() != Paused || !h.capture.session.paused {
		t.Fatalf("State = %v paused=%v, want paused", h.rec.State(), h.capture.session.paused)
	}
	if !first.stopped.Load() {
		t.Error("ticker not stopped on pause")
	}
	if got := <-h.states; got != [2]bool{true, true} {
		t.Errorf("state change = %v, want [true true]", got)
	}

	h.rec.Start(ctx) // ignored while paused
	h.rec.TogglePause()
	if h.rec.State() != Recording {
		t.Fatalf("State = %v, want recording", h.rec.State())
	}
	<-h.states
	if e := h.tick(t); e != 3 {
		t.Errorf("elapsed after resume = %d, want 3", e)
	}

	h.rec.Stop(ctx)
	if h.rec.State() != Idle {
		t.Errorf("State = %v, want idle", h.rec.State())
	}
	if h.complete.Load() != 1 || h.lastURI.Load() != "file:///tmp/capture.wav" {
		t.Errorf("completions = %d uri=%v", h.complete.Load(), h.lastURI.Load())
	}
	if got := <-h.states; got != [2]bool{false, false} {
		t.Errorf("final state change = %v, want [false false]", got)
	}
}

func TestConcurrentStopCompletesOnce(t *testing.T) {
	h := newHarness(t)
	h.capture.session.delay = 50 * time.Millisecond
	h.rec.Start(context.Background())

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			h.rec.Stop(context.Background())
		}()
	}
	wg.Wait()

	if n := h.complete.Load(); n != 1 {
		t.Errorf("OnComplete called %d times, want 1", n)
	}
	if n := h.capture.session.finished; n != 1 {
		t.Errorf("Finish called %d times, want 1", n)
	}
}

func TestStartFailures(t *testing.T) {
	tests := []struct {
		name    string
		capture *fakeCapture
	}{
		{"denied", &fakeCapture{granted: false}},
		{"permission_error", &fakeCapture{permErr: errors.New("no device")}},
		{"begin_error", &fakeCapture{granted: true, beginErr: errors.New("busy")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			h.capture = tt.capture
			h.rec.opts.Capture = tt.capture

			h.rec.Start(context.Background())
			if h.rec.State() != Idle {
				t.Errorf("State = %v, want idle", h.rec.State())
			}
			if h.alerts.count() != 1 {
				t.Errorf("alerts = %d, want 1", h.alerts.count())
			}
			if len(h.tickers) != 0 {
				t.Error("ticker started despite failure")
			}
		})
	}
}

func TestFinishFailureAlertsAndReturnsToIdle(t *testing.T) {
	h := newHarness(t)
	h.capture.session.finishErr = errors.New("disk full")
	h.rec.Start(context.Background())
	h.rec.Stop(context.Background())

	if h.rec.State() != Idle {
		t.Errorf("State = %v, want idle", h.rec.State())
	}
	if h.complete.Load() != 0 {
		t.Error("OnComplete called for failed capture")
	}
	if h.alerts.count() != 1 {
		t.Errorf("alerts = %d, want 1", h.alerts.count())
	}
}

func TestPauseFailureKeepsRecording(t *testing.T) {
	h := newHarness(t)
	h.capture.session.pauseErr = errors.New("driver")
	h.rec.Start(context.Background())
	h.rec.Pause()

	if h.rec.State() != Recording {
		t.Errorf("State = %v, want recording", h.rec.State())
	}
	if h.alerts.count() != 1 {
		t.Errorf("alerts = %d, want 1", h.alerts.count())
	}
}

func TestCloseDiscardsActiveCapture(t *testing.T) {
	h := newHarness(t)
	h.rec.Start(context.Background())
	ft := <-h.tickers

	if err := h.rec.Close(); err != nil {
		t.Fatal(err)
	}
	if !h.capture.session.discarded {
		t.Error("session not discarded")
	}
	if !ft.stopped.Load() {
		t.Error("ticker not stopped")
	}
	if h.rec.State() != Idle {
		t.Errorf("State = %v, want idle", h.rec.State())
	}
	if h.complete.Load() != 0 {
		t.Error("Close must not complete the recording")
	}
}

func TestCloseDuringBegin(t *testing.T) {
	h := newHarness(t)
	h.capture.entered = make(chan struct{})
	h.capture.release = make(chan struct{})

	started := make(chan struct{})
	go func() {
		h.rec.Start(context.Background())
		close(started)
	}()
	<-h.capture.entered

	if err := h.rec.Close(); err != nil {
		t.Fatal(err)
	}
	close(h.capture.release)
	select {
	case <-started:
	case <-time.After(2 * time.Second):
		t.Fatal("Start did not return")
	}

	if h.rec.State() != Idle {
		t.Errorf("State = %v, want idle", h.rec.State())
	}
	h.capture.session.mu.Lock()
	discarded := h.capture.session.discarded
	h.capture.session.mu.Unlock()
	if !discarded {
		t.Error("session begun during Close was not discarded")
	}
	select {
	case <-h.tickers:
		t.Error("ticker started after Close")
	default:
	}

	h.capture.entered = nil
	h.rec.Start(context.Background())
	if h.rec.State() != Idle {
		t.Error("Start after Close should be ignored")
	}
}

func TestStateString(t *testing.T) {
	if Processing.String() != "processing" || State(9).String() != "State(9)" {
		t.Error("unexpected State strings")
	}
}
