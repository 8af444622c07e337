package transcribe

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

func fastMock() *Mock {
	return NewMock(MockOptions{TranscribeDelay: -1, EnhanceDelay: -1})
}

func TestMockTranscribe(t *testing.T) {
	for _, uri := range []string{"", "file:///nope.wav", "anything"} {
		res, err := fastMock().TranscribeAudio(context.Background(), uri)
		if err != nil {
			t.Fatalf("TranscribeAudio(%q): %v", uri, err)
		}
		if res.Text == "" {
			t.Error("empty text")
		}
		if res.Duration != 10 {
			t.Errorf("Duration = %v, want 10", res.Duration)
		}
		if res.Confidence != 0.95 || len(res.Segments) != 2 {
			t.Errorf("result = %+v", res)
		}
	}
}

func TestMockEnhance(t *testing.T) {
	m := fastMock()
	ctx := context.Background()
	long := strings.Repeat("word ", 40)

	tests := []struct {
		mode   Mode
		prefix string
	}{
		{ModeSummary, "**Summary:**"},
		{ModeBullets, "**Key Points:**"},
		{ModeActionItems, "**Action Items:**"},
	}
	for _, tt := range tests {
		t.Run(string(tt.mode), func(t *testing.T) {
			if out := m.EnhanceText(ctx, long, tt.mode); !strings.HasPrefix(out, tt.prefix) {
				t.Errorf("EnhanceText = %q, want prefix %q", out, tt.prefix)
			}
		})
	}

	if out := m.EnhanceText(ctx, "short", ModeSummary); out != "**Summary:** short" {
		t.Errorf("short summary = %q", out)
	}
	if out := m.EnhanceText(ctx, long, ModeSummary); !strings.HasSuffix(out, "...") {
		t.Errorf("long summary not truncated: %q", out)
	}
	if out := m.EnhanceText(ctx, "as is", Mode("poem")); out != "as is" {
		t.Errorf("unknown mode = %q, want input", out)
	}
}

func TestMockDelays(t *testing.T) {
	m := NewMock(MockOptions{})
	if m.transcribeDelay != 2*time.Second || m.enhanceDelay != 1500*time.Millisecond {
		t.Errorf("defaults = %v/%v", m.transcribeDelay, m.enhanceDelay)
	}

	m = NewMock(MockOptions{TranscribeDelay: 20 * time.Millisecond})
	start := time.Now()
	if _, err := m.TranscribeAudio(context.Background(), ""); err != nil {
		t.Fatal(err)
	}
	if time.Since(start) < 20*time.Millisecond {
		t.Error("delay not honoured")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := m.TranscribeAudio(ctx, ""); !errors.Is(err, context.Canceled) {
		t.Errorf("cancelled err = %v", err)
	}
	if out := NewMock(MockOptions{}).EnhanceText(ctx, "orig", ModeBullets); out != "orig" {
		t.Errorf("cancelled enhance = %q, want orig", out)
	}
}
