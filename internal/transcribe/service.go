// Package transcribe turns recorded audio into text and rewrites transcripts
// (summary, bullet points, action items). Remote talks to an
// OpenAI-compatible API; Mock returns canned output after a fixed delay.
package transcribe

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/snarg/voicememo/internal/audio"
	"github.com/snarg/voicememo/internal/recording"
)

// Service is the capability shared by the remote and mock backends.
type Service interface {
	// TranscribeAudio converts the audio behind uri into a transcript.
	TranscribeAudio(ctx context.Context, uri string) (*recording.TranscriptionResult, error)

	// EnhanceText rewrites text according to mode. It never fails: on any
	// problem the original text is returned.
	EnhanceText(ctx context.Context, text string, mode Mode) string

	// Name identifies the backend in logs and metrics.
	Name() string
}

// Mode selects an enhancement.
type Mode string

const (
	ModeSummary     Mode = "summary"
	ModeBullets     Mode = "bullets"
	ModeActionItems Mode = "action_items"
)

// Modes lists every enhancement in menu order.
var Modes = []Mode{ModeSummary, ModeBullets, ModeActionItems}

// ParseMode accepts the wire names plus a few spellings used on the CLI.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "summary", "summarize":
		return ModeSummary, nil
	case "bullets", "bullet", "bullet_points":
		return ModeBullets, nil
	case "action_items", "actions", "action-items", "todo":
		return ModeActionItems, nil
	}
	return "", fmt.Errorf("unknown enhancement mode %q", s)
}

// Label is the human-readable mode name.
func (m Mode) Label() string {
	switch m {
	case ModeSummary:
		return "Summary"
	case ModeBullets:
		return "Bullet points"
	case ModeActionItems:
		return "Action items"
	}
	return string(m)
}

var prompts = map[Mode]string{
	ModeSummary:     "Please provide a concise summary of the following text:\n\n",
	ModeBullets:     "Please convert the following text into clear, concise bullet points:\n\n",
	ModeActionItems: "Please extract any action items or tasks from the following text as a numbered list:\n\n",
}

// Prompt returns the instruction prefixed to text for mode.
func Prompt(mode Mode) (string, bool) {
	p, ok := prompts[mode]
	return p, ok
}

// Options selects and configures a backend.
type Options struct {
	APIKey          string
	BaseURL         string
	TranscribeModel string
	EnhanceModel    string
	Language        string
	Timeout         time.Duration
	AudioDir        string      // resolves relative audio locators
	Store           audio.Store // source of audio not on local disk
	Preprocess      bool        // run sox before upload when available
	UseMock         bool
	Log             zerolog.Logger
}

// New returns the remote backend when an API key is configured and the mock
// is not forced, otherwise the mock.
func New(opts Options) Service {
	if opts.UseMock || opts.APIKey == "" {
		opts.Log.Info().Bool("forced", opts.UseMock).Msg("using mock transcription service")
		return NewMock(MockOptions{})
	}
	opts.Log.Info().
		Str("base_url", opts.BaseURL).
		Str("model", opts.TranscribeModel).
		Msg("using remote transcription service")
	return NewRemote(RemoteOptions{
		APIKey:          opts.APIKey,
		BaseURL:         opts.BaseURL,
		TranscribeModel: opts.TranscribeModel,
		EnhanceModel:    opts.EnhanceModel,
		Language:        opts.Language,
		Timeout:         opts.Timeout,
		AudioDir:        opts.AudioDir,
		Store:           opts.Store,
		Preprocess:      opts.Preprocess,
		Log:             opts.Log,
	})
}
