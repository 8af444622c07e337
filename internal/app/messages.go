package app

import (
	"github.com/snarg/voicememo/internal/player"
	"github.com/snarg/voicememo/internal/recording"
	"github.com/snarg/voicememo/internal/transcribe"
)

// channelMsg wraps a message delivered through the event channel so the
// read loop can be re-armed after it is handled.
type channelMsg struct {
	Msg any
}

// RecorderStateMsg reports a recorder state change.
type RecorderStateMsg struct {
	Recording bool
	Paused    bool
}

// TickMsg carries the recorder's elapsed-seconds counter.
type TickMsg struct {
	Elapsed int
}

// CaptureDoneMsg is sent when a capture has been finalised on disk.
type CaptureDoneMsg struct {
	URI     string
	Elapsed int
}

// AlertMsg is a user-facing problem from the recorder or player.
type AlertMsg struct {
	Title   string
	Message string
}

// PlayerMsg carries a player state snapshot.
type PlayerMsg struct {
	Snapshot player.Snapshot
}

// ProcessedMsg is the outcome of transcribing and saving a capture.
type ProcessedMsg struct {
	Recording recording.Recording
	Capture   CaptureDoneMsg // the capture that was processed
	Err       error
}

// RecordingsLoadedMsg carries the history list.
type RecordingsLoadedMsg struct {
	Recordings []recording.Recording
}

// SortLoadedMsg carries the persisted history sort order.
type SortLoadedMsg struct {
	Order recording.SortOrder
}

// RecordingUpdatedMsg is sent after an edit or enhancement is saved.
type RecordingUpdatedMsg struct {
	Recording recording.Recording
	Mode      transcribe.Mode // empty for manual edits
	Unchanged bool            // enhancement returned the original text
	Err       error
}

// RecordingDeletedMsg is sent after a delete.
type RecordingDeletedMsg struct {
	ID      string
	Deleted bool
}

// ExportedMsg is sent after a transcript export.
type ExportedMsg struct {
	Path string
	Err  error
}

type frameMsg struct{}

type clearNoticeMsg struct{ seq int }
