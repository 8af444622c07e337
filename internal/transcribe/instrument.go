package transcribe

import (
	"context"
	"time"

	"github.com/snarg/voicememo/internal/metrics"
	"github.com/snarg/voicememo/internal/recording"
)

// Instrument wraps svc so every call is counted and timed.
func Instrument(svc Service) Service {
	return &instrumented{next: svc}
}

type instrumented struct {
	next Service
}

func (i *instrumented) Name() string { return i.next.Name() }

func (i *instrumented) TranscribeAudio(ctx context.Context, uri string) (*recording.TranscriptionResult, error) {
	start := time.Now()
	res, err := i.next.TranscribeAudio(ctx, uri)
	metrics.TranscriptionDuration.WithLabelValues(i.next.Name()).Observe(time.Since(start).Seconds())

	status := "ok"
	if err != nil {
		status = "error"
	}
	metrics.TranscriptionsTotal.WithLabelValues(i.next.Name(), status).Inc()
	return res, err
}

func (i *instrumented) EnhanceText(ctx context.Context, text string, mode Mode) string {
	out := i.next.EnhanceText(ctx, text, mode)
	outcome := "changed"
	if out == text {
		outcome = "unchanged"
	}
	metrics.EnhancementsTotal.WithLabelValues(i.next.Name(), string(mode), outcome).Inc()
	return out
}
