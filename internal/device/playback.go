package device

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/snarg/voicememo/internal/audio"
	"github.com/snarg/voicememo/internal/player"
)

// ErrUnsupportedFormat is returned by Load for audio that is not WAV.
var ErrUnsupportedFormat = errors.New("only WAV recordings can be played")

// PlaybackOptions configures a Playback.
type PlaybackOptions struct {
	AudioDir       string        // base for relative audio locators
	StatusInterval time.Duration // defaults to 250ms
	Log            zerolog.Logger

	open outputOpener
}

// Playback plays WAV recordings on the default output device. It
// implements player.Backend.
type Playback struct {
	opts PlaybackOptions
	log  zerolog.Logger
}

func NewPlayback(opts PlaybackOptions) *Playback {
	if opts.StatusInterval <= 0 {
		opts.StatusInterval = 250 * time.Millisecond
	}
	if opts.open == nil {
		opts.open = openOutput
	}
	return &Playback{
		opts: opts,
		log:  opts.Log.With().Str("component", "playback").Logger(),
	}
}

// Load decodes the file behind uri and opens an output stream. Status
// updates are pushed to onStatus every StatusInterval until Unload.
func (p *Playback) Load(ctx context.Context, uri string, onStatus func(player.Status)) (player.Sound, error) {
	path := audio.ResolveURI(p.opts.AudioDir, uri)
	if path == "" {
		return nil, fmt.Errorf("audio %s: %w", uri, os.ErrNotExist)
	}
	if !audio.Playable(path) {
		return nil, fmt.Errorf("play %s: %w", filepath.Base(path), ErrUnsupportedFormat)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	samples, format, err := audio.ReadWAV(path)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}

	s := &sound{
		samples:  samples,
		format:   format,
		onStatus: onStatus,
		done:     make(chan struct{}),
	}
	st, err := p.opts.open(format, s.fill)
	if err != nil {
		return nil, err
	}
	if err := st.Start(); err != nil {
		st.Close()
		return nil, fmt.Errorf("start output stream: %w", err)
	}
	s.stream = st

	go s.statusLoop(p.opts.StatusInterval)
	p.log.Debug().Str("file", path).Dur("duration", s.duration()).Msg("audio loaded")
	return s, nil
}

type sound struct {
	samples  []int16
	format   audio.Format
	stream   stream
	onStatus func(player.Status)
	done     chan struct{}
	unload   sync.Once

	playing  atomic.Bool
	finished atomic.Bool

	mu  sync.Mutex
	pos int // index into samples
}

// fill is the PortAudio output callback.
func (s *sound) fill(out []int16) {
	if !s.playing.Load() {
		clear(out)
		return
	}
	s.mu.Lock()
	n := copy(out, s.samples[s.pos:])
	s.pos += n
	end := s.pos >= len(s.samples)
	s.mu.Unlock()

	clear(out[n:])
	if end && s.playing.CompareAndSwap(true, false) {
		s.finished.Store(true)
	}
}

func (s *sound) statusLoop(every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-s.done:
			return
		case <-t.C:
			s.push()
		}
	}
}

func (s *sound) push() {
	if s.onStatus == nil {
		return
	}
	s.onStatus(s.status())
}

func (s *sound) status() player.Status {
	s.mu.Lock()
	pos := s.pos
	s.mu.Unlock()
	return player.Status{
		Position:      s.at(pos),
		Duration:      s.duration(),
		Playing:       s.playing.Load(),
		DidJustFinish: s.finished.Swap(false),
	}
}

func (s *sound) at(i int) time.Duration {
	frames := i / s.format.Channels
	return time.Duration(frames) * time.Second / time.Duration(s.format.SampleRate)
}

func (s *sound) duration() time.Duration { return s.at(len(s.samples)) }

func (s *sound) Play() error {
	s.mu.Lock()
	if s.pos >= len(s.samples) {
		s.pos = 0
	}
	s.mu.Unlock()
	s.playing.Store(true)
	return nil
}

func (s *sound) Pause() error {
	s.playing.Store(false)
	return nil
}

func (s *sound) Stop() error {
	s.playing.Store(false)
	return s.SeekTo(0)
}

// SeekTo moves to pos, clamped to the audio and aligned to a frame.
func (s *sound) SeekTo(pos time.Duration) error {
	pos = min(max(pos, 0), s.duration())
	frame := int(pos * time.Duration(s.format.SampleRate) / time.Second)
	s.mu.Lock()
	s.pos = min(frame*s.format.Channels, len(s.samples))
	s.mu.Unlock()
	return nil
}

func (s *sound) Unload() error {
	var err error
	s.unload.Do(func() {
		close(s.done)
		s.playing.Store(false)
		if stopErr := s.stream.Stop(); stopErr != nil {
			err = stopErr
		}
		if closeErr := s.stream.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	})
	return err
}
