package main

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/snarg/voicememo/internal/app"
	"github.com/snarg/voicememo/internal/device"
	"github.com/snarg/voicememo/internal/export"
	"github.com/snarg/voicememo/internal/visualizer"
)

const visualizerBars = 32

func runTUI(ctx context.Context, rt *core) error {
	terminate, err := device.Init()
	if err != nil {
		return fmt.Errorf("audio devices unavailable: %w", err)
	}
	defer func() {
		if err := terminate(); err != nil {
			rt.log.Warn().Err(err).Msg("portaudio terminate failed")
		}
	}()

	bars := visualizer.New(visualizerBars, nil)
	model := app.New(app.Deps{
		Library:     rt.library,
		Transcriber: rt.transcriber,
		Audio:       rt.audio,
		Capture: device.NewCapture(device.CaptureOptions{
			Dir:     rt.cfg.CaptureDir,
			OnLevel: bars.Feed,
			Log:     rt.log,
		}),
		Playback: device.NewPlayback(device.PlaybackOptions{
			AudioDir: rt.cfg.AudioDir,
			Log:      rt.log,
		}),
		Sharer:    export.SystemSharer{Log: rt.log},
		Bars:      bars,
		ExportDir: rt.cfg.ExportDir,
		Log:       rt.log,
	})

	prog := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))
	final, err := prog.Run()
	if m, ok := final.(app.Model); ok {
		m.Close()
	} else {
		model.Close()
	}
	if err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}
