package app

import (
	"context"
	"fmt"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/snarg/voicememo/internal/audio"
	"github.com/snarg/voicememo/internal/export"
	"github.com/snarg/voicememo/internal/player"
	"github.com/snarg/voicememo/internal/recorder"
	"github.com/snarg/voicememo/internal/recording"
	"github.com/snarg/voicememo/internal/storage"
	"github.com/snarg/voicememo/internal/transcribe"
)

const (
	frameInterval = 100 * time.Millisecond
	noticeTTL     = 4 * time.Second
	seekStep      = 5 * time.Second
)

// listenCmd waits for the next event from recorder and player callbacks.
func listenCmd(ch <-chan any) tea.Cmd {
	return func() tea.Msg {
		return channelMsg{Msg: <-ch}
	}
}

func frameCmd() tea.Cmd {
	return tea.Tick(frameInterval, func(time.Time) tea.Msg {
		return frameMsg{}
	})
}

func clearNoticeCmd(seq int) tea.Cmd {
	return tea.Tick(noticeTTL, func(time.Time) tea.Msg {
		return clearNoticeMsg{seq: seq}
	})
}

func loadSortCmd(ctx context.Context, lib *storage.Service) tea.Cmd {
	return func() tea.Msg {
		s := storage.Setting(ctx, lib, storage.SettingHistorySort, recording.DefaultSort.String())
		return SortLoadedMsg{Order: recording.ParseSort(s)}
	}
}

func saveSortCmd(ctx context.Context, d Deps, o recording.SortOrder) tea.Cmd {
	return func() tea.Msg {
		if err := d.Library.SetSetting(ctx, storage.SettingHistorySort, o.String()); err != nil {
			d.Log.Warn().Err(err).Msg("failed to save sort order")
		}
		return nil
	}
}

// loadRecordingsCmd reads the history list, filtered by query when set.
func loadRecordingsCmd(ctx context.Context, lib *storage.Service, query string, o recording.SortOrder) tea.Cmd {
	return func() tea.Msg {
		var recs []recording.Recording
		if query != "" {
			recs = lib.SearchRecordings(ctx, query)
		} else {
			recs = lib.GetAllRecordings(ctx)
		}
		recording.Sort(recs, o)
		return RecordingsLoadedMsg{Recordings: recs}
	}
}

func startCmd(ctx context.Context, r *recorder.Recorder) tea.Cmd {
	return func() tea.Msg {
		r.Start(ctx)
		return nil
	}
}

func stopCmd(ctx context.Context, r *recorder.Recorder) tea.Cmd {
	return func() tea.Msg {
		r.Stop(ctx)
		return nil
	}
}

func togglePauseCmd(r *recorder.Recorder) tea.Cmd {
	return func() tea.Msg {
		r.TogglePause()
		return nil
	}
}

// processCmd transcribes and saves a finished capture. The recorder's
// elapsed time stands in for the duration when the transcriber does not
// report one. A failed capture stays on disk for a retry.
func processCmd(ctx context.Context, d Deps, capture CaptureDoneMsg) tea.Cmd {
	return func() tea.Msg {
		path := audio.ResolveURI("", capture.URI)
		if path == "" {
			return ProcessedMsg{Capture: capture, Err: fmt.Errorf("capture %s: %w", capture.URI, os.ErrNotExist)}
		}
		rec, err := transcribe.Import(ctx, transcribe.ImportDeps{
			Transcriber: d.Transcriber,
			Library:     d.Library,
			Audio:       d.Audio,
			Now:         d.Now,
			Log:         d.Log,
		}, transcribe.Job{Path: path, Elapsed: float64(capture.Elapsed)}, d.Now())
		return ProcessedMsg{Recording: rec, Capture: capture, Err: err}
	}
}

func saveEditCmd(ctx context.Context, lib *storage.Service, id, text string) tea.Cmd {
	return func() tea.Msg {
		rec, err := lib.UpdateRecording(ctx, id, recording.Patch{Text: &text})
		return RecordingUpdatedMsg{Recording: rec, Err: err}
	}
}

// enhanceCmd rewrites the transcript and saves the result in place of the
// original text.
func enhanceCmd(ctx context.Context, d Deps, rec recording.Recording, mode transcribe.Mode) tea.Cmd {
	return func() tea.Msg {
		if err := d.Library.SetSetting(ctx, storage.SettingLastEnhance, string(mode)); err != nil {
			d.Log.Warn().Err(err).Msg("failed to remember enhancement mode")
		}
		text := d.Transcriber.EnhanceText(ctx, rec.Transcription.Text, mode)
		if text == rec.Transcription.Text {
			return RecordingUpdatedMsg{Recording: rec, Mode: mode, Unchanged: true}
		}
		updated, err := d.Library.UpdateRecording(ctx, rec.ID, recording.Patch{Text: &text})
		return RecordingUpdatedMsg{Recording: updated, Mode: mode, Err: err}
	}
}

func deleteCmd(ctx context.Context, lib *storage.Service, id string) tea.Cmd {
	return func() tea.Msg {
		return RecordingDeletedMsg{ID: id, Deleted: lib.DeleteRecording(ctx, id)}
	}
}

func exportCmd(ctx context.Context, d Deps, rec recording.Recording) tea.Cmd {
	return func() tea.Msg {
		path, err := export.WriteTranscript(d.ExportDir, rec)
		if err != nil {
			return ExportedMsg{Err: err}
		}
		if err := d.Sharer.Share(ctx, path); err != nil {
			d.Log.Warn().Err(err).Str("file", path).Msg("share failed")
		}
		return ExportedMsg{Path: path}
	}
}

func playerCmd(fn func()) tea.Cmd {
	return func() tea.Msg {
		fn()
		return nil
	}
}

// playerToggleCmd runs Toggle off the UI goroutine since the first call
// loads the audio.
func playerToggleCmd(ctx context.Context, p *player.Player) tea.Cmd {
	return playerCmd(func() { p.Toggle(ctx) })
}
