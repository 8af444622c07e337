// Package device binds the recorder and player to the system's default
// microphone and speakers through PortAudio.
package device

import (
	"errors"
	"fmt"
	"sync"

	"github.com/gordonklaus/portaudio"
	"github.com/snarg/voicememo/internal/audio"
)

// DefaultFormat is the capture format: 16 kHz mono, which is what the
// transcription endpoint resamples to anyway.
var DefaultFormat = audio.Format{SampleRate: 16000, Channels: 1}

const framesPerBuffer = 1024

// ErrNoDevice is returned when PortAudio reports no usable device.
var ErrNoDevice = errors.New("no audio device available")

// stream is the part of *portaudio.Stream the capture and playback use.
type stream interface {
	Start() error
	Stop() error
	Close() error
}

type (
	inputOpener  func(format audio.Format, cb func(in []int16)) (stream, error)
	outputOpener func(format audio.Format, cb func(out []int16)) (stream, error)
)

var (
	initMu   sync.Mutex
	refCount int
)

// Init initialises PortAudio. Every successful call must be paired with a
// call to the returned terminate function.
func Init() (terminate func() error, err error) {
	initMu.Lock()
	defer initMu.Unlock()
	if refCount == 0 {
		if err := portaudio.Initialize(); err != nil {
			return nil, fmt.Errorf("initialise portaudio: %w", err)
		}
	}
	refCount++

	var once sync.Once
	return func() error {
		var err error
		once.Do(func() {
			initMu.Lock()
			defer initMu.Unlock()
			refCount--
			if refCount == 0 {
				err = portaudio.Terminate()
			}
		})
		return err
	}, nil
}

// hasInput reports whether a default input device exists.
func hasInput() error {
	dev, err := portaudio.DefaultInputDevice()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNoDevice, err)
	}
	if dev == nil || dev.MaxInputChannels < 1 {
		return ErrNoDevice
	}
	return nil
}

func openInput(format audio.Format, cb func(in []int16)) (stream, error) {
	dev, err := portaudio.DefaultInputDevice()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoDevice, err)
	}
	params := portaudio.HighLatencyParameters(dev, nil)
	params.Input.Channels = min(format.Channels, dev.MaxInputChannels)
	params.SampleRate = float64(format.SampleRate)
	params.FramesPerBuffer = framesPerBuffer

	s, err := portaudio.OpenStream(params, cb)
	if err != nil {
		return nil, fmt.Errorf("open input stream on %s: %w", dev.Name, err)
	}
	return s, nil
}

func openOutput(format audio.Format, cb func(out []int16)) (stream, error) {
	dev, err := portaudio.DefaultOutputDevice()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoDevice, err)
	}
	params := portaudio.HighLatencyParameters(nil, dev)
	params.Output.Channels = format.Channels
	params.SampleRate = float64(format.SampleRate)
	params.FramesPerBuffer = framesPerBuffer

	s, err := portaudio.OpenStream(params, cb)
	if err != nil {
		return nil, fmt.Errorf("open output stream on %s: %w", dev.Name, err)
	}
	return s, nil
}
