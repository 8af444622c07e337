// Package player plays one stored recording through a platform Backend and
// tracks position and duration from pushed status updates.
package player

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// nearEnd is how close to the end a paused position must be for the next
// Toggle to start over from the beginning.
const nearEnd = 100 * time.Millisecond

// State is the playback lifecycle state.
type State int

const (
	Unloaded State = iota
	Loading
	Playing
	Paused
	Stopped
)

func (s State) String() string {
	switch s {
	case Unloaded:
		return "unloaded"
	case Loading:
		return "loading"
	case Playing:
		return "playing"
	case Paused:
		return "paused"
	case Stopped:
		return "stopped"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Status is pushed by the backend while a sound is loaded.
type Status struct {
	Position      time.Duration
	Duration      time.Duration
	Playing       bool
	DidJustFinish bool
	Err           error
}

// Backend loads audio for playback. onStatus may be called from any
// goroutine until the Sound is unloaded.
type Backend interface {
	Load(ctx context.Context, uri string, onStatus func(Status)) (Sound, error)
}

// Sound is a loaded audio resource.
type Sound interface {
	Play() error
	Pause() error
	Stop() error
	SeekTo(pos time.Duration) error
	Unload() error
}

// Snapshot is the player state delivered to subscribers.
type Snapshot struct {
	URI      string
	State    State
	Position time.Duration
	Duration time.Duration
	Err      error
}

// Progress is Position/Duration in [0,1].
func (s Snapshot) Progress() float64 {
	if s.Duration <= 0 {
		return 0
	}
	f := float64(s.Position) / float64(s.Duration)
	return min(max(f, 0), 1)
}

// Player is bound to one audio locator. It is safe for concurrent use.
type Player struct {
	backend Backend
	uri     string
	log     zerolog.Logger

	op sync.Mutex // serialises calls into the Sound

	mu        sync.Mutex
	state     State
	sound     Sound
	pos       time.Duration
	dur       time.Duration
	err       error
	rewind    bool
	listeners map[int]func(Snapshot)
	nextID    int
}

func New(backend Backend, uri string, log zerolog.Logger) *Player {
	return &Player{
		backend:   backend,
		uri:       uri,
		log:       log.With().Str("component", "player").Str("uri", uri).Logger(),
		listeners: make(map[int]func(Snapshot)),
	}
}

// URI returns the audio locator the player is bound to.
func (p *Player) URI() string { return p.uri }

// Snapshot returns the current state.
func (p *Player) Snapshot() Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.snapshotLocked()
}

// Subscribe registers fn for every state change and returns a function
// that unregisters it.
func (p *Player) Subscribe(fn func(Snapshot)) (cancel func()) {
	p.mu.Lock()
	id := p.nextID
	p.nextID++
	p.listeners[id] = fn
	p.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			p.mu.Lock()
			delete(p.listeners, id)
			p.mu.Unlock()
		})
	}
}

// Toggle loads the audio on first use, then alternates play and pause.
// Playback that ended, or is paused within 100 ms of the end, restarts
// from the beginning.
func (p *Player) Toggle(ctx context.Context) {
	p.op.Lock()
	defer p.op.Unlock()

	p.mu.Lock()
	state, sound := p.state, p.sound
	p.mu.Unlock()

	switch state {
	case Unloaded:
		p.load(ctx)
	case Loading:
	case Playing:
		if err := sound.Pause(); err != nil {
			p.fail("pause", err)
			return
		}
		p.set(func() { p.state = Paused })
	case Paused, Stopped:
		p.play(sound)
	}
}

func (p *Player) load(ctx context.Context) {
	p.set(func() {
		p.state = Loading
		p.err = nil
	})

	sound, err := p.backend.Load(ctx, p.uri, p.onStatus)
	if err != nil {
		p.log.Error().Err(err).Msg("failed to load audio")
		p.set(func() {
			p.state = Unloaded
			p.err = err
		})
		return
	}

	p.mu.Lock()
	p.sound = sound
	p.pos = 0
	p.mu.Unlock()
	p.play(sound)
}

func (p *Player) play(sound Sound) {
	p.mu.Lock()
	restart := p.rewind || (p.dur > 0 && p.dur-p.pos <= nearEnd)
	p.mu.Unlock()

	if restart {
		if err := sound.SeekTo(0); err != nil {
			p.fail("seek", err)
			return
		}
	}
	if err := sound.Play(); err != nil {
		p.fail("play", err)
		return
	}
	p.set(func() {
		if restart {
			p.pos = 0
			p.rewind = false
		}
		p.state = Playing
	})
}

// SeekFraction moves to f of the duration, with f clamped to [0,1].
func (p *Player) SeekFraction(f float64) {
	p.op.Lock()
	defer p.op.Unlock()

	f = min(max(f, 0), 1)
	p.mu.Lock()
	sound, dur := p.sound, p.dur
	p.mu.Unlock()
	if sound == nil || dur <= 0 {
		return
	}

	target := time.Duration(f * float64(dur))
	if err := sound.SeekTo(target); err != nil {
		p.fail("seek", err)
		return
	}
	p.set(func() {
		p.pos = target
		p.rewind = false
	})
}

// SeekBy moves relative to the current position, clamped to the audio.
func (p *Player) SeekBy(d time.Duration) {
	p.mu.Lock()
	pos, dur := p.pos, p.dur
	p.mu.Unlock()
	if dur <= 0 {
		return
	}
	p.SeekFraction(float64(pos+d) / float64(dur))
}

// Stop halts playback and rewinds to the start.
func (p *Player) Stop() {
	p.op.Lock()
	defer p.op.Unlock()

	p.mu.Lock()
	sound := p.sound
	p.mu.Unlock()
	if sound == nil {
		return
	}
	if err := sound.Stop(); err != nil {
		p.fail("stop", err)
		return
	}
	if err := sound.SeekTo(0); err != nil {
		p.fail("seek", err)
		return
	}
	p.set(func() {
		p.state = Stopped
		p.pos = 0
		p.rewind = false
	})
}

// DismissError clears the error shown to the user.
func (p *Player) DismissError() {
	p.set(func() { p.err = nil })
}

// Retry unloads the failed sound and loads it again.
func (p *Player) Retry(ctx context.Context) {
	p.unload()
	p.Toggle(ctx)
}

// Close releases the platform sound. It must be called when the player is
// no longer shown.
func (p *Player) Close() error {
	err := p.unload()
	p.mu.Lock()
	p.listeners = make(map[int]func(Snapshot))
	p.mu.Unlock()
	return err
}

func (p *Player) unload() error {
	p.op.Lock()
	defer p.op.Unlock()

	p.mu.Lock()
	sound := p.sound
	p.sound = nil
	p.mu.Unlock()

	var err error
	if sound != nil {
		if err = sound.Unload(); err != nil {
			p.log.Warn().Err(err).Msg("unload failed")
		}
	}
	p.set(func() {
		p.state = Unloaded
		p.pos = 0
		p.dur = 0
		p.err = nil
		p.rewind = false
	})
	return err
}

// onStatus applies a pushed status update.
func (p *Player) onStatus(st Status) {
	p.mu.Lock()
	if p.sound == nil && p.state != Loading {
		p.mu.Unlock()
		return
	}
	switch {
	case st.Err != nil:
		p.err = st.Err
		p.state = Stopped
		p.log.Error().Err(st.Err).Msg("playback error")
	case st.DidJustFinish:
		p.state = Stopped
		p.pos = 0
		p.rewind = true
		if st.Duration > 0 {
			p.dur = st.Duration
		}
	default:
		p.pos = st.Position
		if st.Duration > 0 {
			p.dur = st.Duration
		}
	}
	snap, fns := p.publishLocked()
	p.mu.Unlock()
	deliver(snap, fns)
}

func (p *Player) fail(op string, err error) {
	p.log.Error().Err(err).Str("op", op).Msg("playback operation failed")
	p.set(func() { p.err = fmt.Errorf("%s: %w", op, err) })
}

// set mutates state under the lock and notifies subscribers afterwards.
func (p *Player) set(fn func()) {
	p.mu.Lock()
	fn()
	snap, fns := p.publishLocked()
	p.mu.Unlock()
	deliver(snap, fns)
}

func (p *Player) publishLocked() (Snapshot, []func(Snapshot)) {
	fns := make([]func(Snapshot), 0, len(p.listeners))
	for _, fn := range p.listeners {
		fns = append(fns, fn)
	}
	return p.snapshotLocked(), fns
}

func (p *Player) snapshotLocked() Snapshot {
	return Snapshot{URI: p.uri, State: p.state, Position: p.pos, Duration: p.dur, Err: p.err}
}

func deliver(s Snapshot, fns []func(Snapshot)) {
	for _, fn := range fns {
		fn(s)
	}
}
