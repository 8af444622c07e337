package transcribe

import (
	"context"
	"time"
	"unicode/utf8"

	"github.com/snarg/voicememo/internal/recording"
)

// Default mock latencies.
const (
	MockTranscribeDelay = 2000 * time.Millisecond
	MockEnhanceDelay    = 1500 * time.Millisecond
)

// MockOptions overrides the artificial delays; zero means the default and
// a negative value means no delay.
type MockOptions struct {
	TranscribeDelay time.Duration
	EnhanceDelay    time.Duration
}

// Mock returns canned output after a fixed delay. It never fails unless the
// context is cancelled while waiting.
type Mock struct {
	transcribeDelay time.Duration
	enhanceDelay    time.Duration
}

func NewMock(opts MockOptions) *Mock {
	m := &Mock{transcribeDelay: MockTranscribeDelay, enhanceDelay: MockEnhanceDelay}
	if opts.TranscribeDelay != 0 {
		m.transcribeDelay = max(opts.TranscribeDelay, 0)
	}
	if opts.EnhanceDelay != 0 {
		m.enhanceDelay = max(opts.EnhanceDelay, 0)
	}
	return m
}

func (m *Mock) Name() string { return "mock" }

const (
	mockSentence1 = "This is a mock transcription of your voice memo."
	mockSentence2 = "Configure an API key to transcribe real recordings."
)

func (m *Mock) TranscribeAudio(ctx context.Context, uri string) (*recording.TranscriptionResult, error) {
	if err := sleep(ctx, m.transcribeDelay); err != nil {
		return nil, err
	}
	return &recording.TranscriptionResult{
		Text:       mockSentence1 + " " + mockSentence2,
		Duration:   10,
		Confidence: 0.95,
		Segments: []recording.Segment{
			{Start: 0, End: 5, Text: mockSentence1},
			{Start: 5, End: 10, Text: mockSentence2},
		},
	}, nil
}

func (m *Mock) EnhanceText(ctx context.Context, text string, mode Mode) string {
	if err := sleep(ctx, m.enhanceDelay); err != nil {
		return text
	}
	switch mode {
	case ModeSummary:
		return "**Summary:** " + truncate(text, 100)
	case ModeBullets:
		return "**Key Points:**\n• Main topic discussed in the recording\n• Supporting details mentioned\n• Conclusions and next steps"
	case ModeActionItems:
		return "**Action Items:**\n1. Follow up on the topics discussed\n2. Review the details mentioned\n3. Schedule time for next steps"
	default:
		return text
	}
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos] + "..."
		}
		i++
	}
	return s
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
