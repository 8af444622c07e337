// Package app is the terminal user interface: a Record tab that captures,
// transcribes and enhances memos, and a History tab that searches, plays
// and exports saved recordings.
package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"
	"github.com/snarg/voicememo/internal/audio"
	"github.com/snarg/voicememo/internal/export"
	"github.com/snarg/voicememo/internal/player"
	"github.com/snarg/voicememo/internal/recorder"
	"github.com/snarg/voicememo/internal/recording"
	"github.com/snarg/voicememo/internal/storage"
	"github.com/snarg/voicememo/internal/transcribe"
	"github.com/snarg/voicememo/internal/visualizer"
)

// Tab selects the visible screen.
type Tab int

const (
	TabRecord Tab = iota
	TabHistory
)

const eventBuffer = 256

// Deps are the collaborators the UI drives.
type Deps struct {
	Library     *storage.Service
	Transcriber transcribe.Service
	Audio       audio.Store
	Capture     recorder.Capture
	Playback    player.Backend
	Sharer      export.Sharer     // defaults to NopSharer
	Bars        *visualizer.Bars  // defaults to 32 bars
	ExportDir   string
	Now         func() time.Time // defaults to time.Now
	NewTicker   func(time.Duration) recorder.Ticker
	Log         zerolog.Logger
}

// Model is the root bubbletea model.
type Model struct {
	deps   Deps
	log    zerolog.Logger
	ctx    context.Context
	cancel context.CancelFunc
	events chan any

	rec          *recorder.Recorder
	player       *player.Player
	playerCancel func()

	tab      Tab
	help     help.Model
	width    int
	height   int
	alert    string
	notice   string
	noticeID int

	// Record tab
	recording  bool
	paused     bool
	elapsed    int
	processing bool
	failed     *CaptureDoneMsg // capture whose transcription failed
	enhancing  transcribe.Mode
	current    *recording.Recording
	editing    bool
	editor     textarea.Model

	// History tab
	list          list.Model
	recordings    []recording.Recording
	search        textinput.Model
	searching     bool
	query         string
	sort          recording.SortOrder
	pendingDelete string
	playback      player.Snapshot
}

// New builds the model and its recorder. Call Close when the program
// exits.
func New(d Deps) Model {
	if d.Sharer == nil {
		d.Sharer = export.NopSharer{}
	}
	if d.Bars == nil {
		d.Bars = visualizer.New(32, nil)
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	ctx, cancel := context.WithCancel(context.Background())
	events := make(chan any, eventBuffer)
	log := d.Log.With().Str("component", "tui").Logger()

	m := Model{
		deps:   d,
		log:    log,
		ctx:    ctx,
		cancel: cancel,
		events: events,
		help:   help.New(),
		sort:   recording.DefaultSort,
	}
	send := func(msg any) {
		select {
		case events <- msg:
		default:
			log.Warn().Str("msg", fmt.Sprintf("%T", msg)).Msg("event buffer full, dropping")
		}
	}

	m.rec = recorder.New(recorder.Options{
		Capture:   d.Capture,
		Alerter:   alerter(send),
		NewTicker: d.NewTicker,
		OnStateChange: func(recording, paused bool) {
			send(RecorderStateMsg{Recording: recording, Paused: paused})
		},
		OnTick: func(elapsed int) {
			send(TickMsg{Elapsed: elapsed})
		},
		OnComplete: func(uri string, elapsed int) {
			send(CaptureDoneMsg{URI: uri, Elapsed: elapsed})
		},
		Log: d.Log,
	})

	m.editor = textarea.New()
	m.editor.Placeholder = "Transcript..."
	m.editor.ShowLineNumbers = false

	m.search = textinput.New()
	m.search.Placeholder = "Search title, transcript or tags"
	m.search.Prompt = "/ "
	m.search.CharLimit = 100

	m.list = list.New(nil, list.NewDefaultDelegate(), 0, 0)
	m.list.Title = "Recordings"
	m.list.SetShowHelp(false)
	m.list.SetFilteringEnabled(false)
	m.list.SetShowStatusBar(false)
	m.list.SetSize(60, 14)
	return m
}

type alerter func(any)

func (a alerter) Alert(title, message string) {
	a(AlertMsg{Title: title, Message: message})
}

// Init starts the event read loop, the visualizer and the history load.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		listenCmd(m.events),
		frameCmd(),
		loadSortCmd(m.ctx, m.deps.Library),
	)
}

// Close discards any capture in progress and unloads the player.
func (m Model) Close() {
	if err := m.rec.Close(); err != nil {
		m.log.Warn().Err(err).Msg("recorder close failed")
	}
	m.closePlayer()
	m.cancel()
}

func (m *Model) closePlayer() {
	if m.player == nil {
		return
	}
	if m.playerCancel != nil {
		m.playerCancel()
	}
	if err := m.player.Close(); err != nil {
		m.log.Warn().Err(err).Msg("player close failed")
	}
	m.player = nil
	m.playerCancel = nil
	m.playback = player.Snapshot{}
}

// Update processes messages and returns the updated model and any commands.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {

	case channelMsg:
		next, cmd := m.Update(msg.Msg)
		return next, tea.Batch(cmd, listenCmd(m.events))

	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		m.list.SetSize(max(msg.Width-4, 20), max(msg.Height-12, 5))
		m.editor.SetWidth(max(msg.Width-8, 20))
		m.editor.SetHeight(max(msg.Height/3, 4))
		return m, nil

	case frameMsg:
		m.deps.Bars.Step(m.recording, m.paused)
		return m, frameCmd()

	case RecorderStateMsg:
		m.recording = msg.Recording
		m.paused = msg.Paused
		if msg.Recording && !msg.Paused && m.elapsed == 0 {
			m.current = nil
			m.editing = false
		}
		if !msg.Recording {
			m.elapsed = 0
		}
		return m, nil

	case TickMsg:
		m.elapsed = msg.Elapsed
		return m, nil

	case CaptureDoneMsg:
		m.processing = true
		return m, processCmd(m.ctx, m.deps, msg)

	case ProcessedMsg:
		m.processing = false
		if msg.Err != nil {
			m.log.Error().Err(msg.Err).Str("capture", msg.Capture.URI).Msg("processing failed")
			m.alert = "Transcription failed: " + msg.Err.Error()
			if !errors.Is(msg.Err, os.ErrNotExist) {
				capture := msg.Capture
				m.failed = &capture
				m.alert += " (t to retry)"
			}
			return m, nil
		}
		rec := msg.Recording
		m.current = &rec
		m = m.withNotice("Saved “" + rec.Title + "”")
		return m, tea.Batch(m.reload(), clearNoticeCmd(m.noticeID))

	case AlertMsg:
		m.alert = msg.Title + ": " + msg.Message
		return m, nil

	case PlayerMsg:
		if m.player != nil && msg.Snapshot.URI == m.player.URI() {
			m.playback = msg.Snapshot
		}
		return m, nil

	case SortLoadedMsg:
		m.sort = msg.Order
		return m, m.reload()

	case RecordingsLoadedMsg:
		m.recordings = msg.Recordings
		m.list.SetItems(toItems(msg.Recordings, m.deps.Now()))
		return m, nil

	case RecordingUpdatedMsg:
		m.enhancing = ""
		if msg.Err != nil {
			m.alert = "Save failed: " + msg.Err.Error()
			return m, nil
		}
		if m.current != nil && m.current.ID == msg.Recording.ID {
			rec := msg.Recording
			m.current = &rec
		}
		switch {
		case msg.Unchanged:
			m = m.withNotice(msg.Mode.Label() + " unavailable, transcript unchanged")
		case msg.Mode != "":
			m = m.withNotice(msg.Mode.Label() + " applied")
		default:
			m = m.withNotice("Transcript saved")
		}
		return m, tea.Batch(m.reload(), clearNoticeCmd(m.noticeID))

	case RecordingDeletedMsg:
		m.pendingDelete = ""
		if !msg.Deleted {
			m = m.withNotice("Recording already gone")
		} else {
			m = m.withNotice("Recording deleted")
			if m.current != nil && m.current.ID == msg.ID {
				m.current = nil
			}
		}
		return m, tea.Batch(m.reload(), clearNoticeCmd(m.noticeID))

	case ExportedMsg:
		if msg.Err != nil {
			m.alert = "Export failed: " + msg.Err.Error()
			return m, nil
		}
		m = m.withNotice("Exported to " + msg.Path)
		return m, clearNoticeCmd(m.noticeID)

	case clearNoticeMsg:
		if msg.seq == m.noticeID {
			m.notice = ""
		}
		return m, nil
	}

	return m, nil
}

func (m Model) withNotice(s string) Model {
	m.notice = s
	m.noticeID++
	return m
}

func (m Model) reload() tea.Cmd {
	return loadRecordingsCmd(m.ctx, m.deps.Library, m.query, m.sort)
}

// handleKey processes key presses.
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.Type == tea.KeyCtrlC {
		return m, tea.Quit
	}
	if m.editing {
		return m.handleEditorKey(msg)
	}
	if m.searching {
		return m.handleSearchKey(msg)
	}

	switch {
	case key.Matches(msg, keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, keys.Dismiss):
		m.alert = ""
		m.pendingDelete = ""
		if m.player != nil && m.playback.Err != nil {
			m.player.DismissError()
		}
		return m, nil
	case key.Matches(msg, keys.Tab):
		if m.tab == TabRecord {
			m.tab = TabHistory
		} else {
			m.tab = TabRecord
		}
		return m, nil
	case key.Matches(msg, keys.Help):
		m.help.ShowAll = !m.help.ShowAll
		return m, nil
	}

	if m.tab == TabRecord {
		return m.handleRecordKey(msg)
	}
	return m.handleHistoryKey(msg)
}

func (m Model) handleRecordKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, keys.Record):
		if m.processing {
			return m, nil
		}
		if m.recording {
			return m, stopCmd(m.ctx, m.rec)
		}
		m.alert = ""
		return m, startCmd(m.ctx, m.rec)

	case key.Matches(msg, keys.Pause):
		if !m.recording {
			return m, nil
		}
		return m, togglePauseCmd(m.rec)

	case key.Matches(msg, keys.Transcribe):
		if m.failed == nil || m.processing || m.recording {
			return m, nil
		}
		capture := *m.failed
		m.failed = nil
		m.alert = ""
		m.processing = true
		return m, processCmd(m.ctx, m.deps, capture)

	case key.Matches(msg, keys.Edit):
		if m.current == nil || m.processing || m.enhancing != "" {
			return m, nil
		}
		m.editing = true
		m.editor.SetValue(m.current.Transcription.Text)
		cmd := m.editor.Focus()
		return m, cmd

	case key.Matches(msg, keys.Enhance):
		if m.current == nil || m.enhancing != "" {
			return m, nil
		}
		mode := transcribe.Modes[int(msg.String()[0]-'1')]
		m.enhancing = mode
		return m, enhanceCmd(m.ctx, m.deps, *m.current, mode)

	case key.Matches(msg, keys.Export):
		if m.current == nil {
			return m, nil
		}
		return m, exportCmd(m.ctx, m.deps, *m.current)
	}
	return m, nil
}

func (m Model) handleEditorKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, keys.Save):
		m.editing = false
		m.editor.Blur()
		if m.current == nil {
			return m, nil
		}
		return m, saveEditCmd(m.ctx, m.deps.Library, m.current.ID, m.editor.Value())
	case key.Matches(msg, keys.Dismiss):
		m.editing = false
		m.editor.Blur()
		return m, nil
	}
	var cmd tea.Cmd
	m.editor, cmd = m.editor.Update(msg)
	return m, cmd
}

func (m Model) handleSearchKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEnter:
		m.searching = false
		m.search.Blur()
		m.query = m.search.Value()
		return m, m.reload()
	case tea.KeyEsc:
		m.searching = false
		m.search.Blur()
		m.search.SetValue("")
		m.query = ""
		return m, m.reload()
	}
	var cmd tea.Cmd
	m.search, cmd = m.search.Update(msg)
	return m, cmd
}

func (m Model) handleHistoryKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	sel, hasSel := m.selected()
	if !key.Matches(msg, keys.Delete) {
		m.pendingDelete = ""
	}

	switch {
	case key.Matches(msg, keys.Search):
		m.searching = true
		m.search.SetValue(m.query)
		cmd := m.search.Focus()
		return m, cmd

	case key.Matches(msg, keys.Sort):
		m.sort = nextSort(m.sort)
		return m.withNotice("Sorted by " + sortLabel(m.sort)), tea.Batch(
			saveSortCmd(m.ctx, m.deps, m.sort),
			m.reload(),
		)

	case key.Matches(msg, keys.Delete):
		if !hasSel {
			return m, nil
		}
		if m.pendingDelete != sel.ID {
			m.pendingDelete = sel.ID
			return m.withNotice("Press d again to delete “" + sel.Title + "”"), nil
		}
		if m.player != nil && m.player.URI() == sel.AudioURI {
			m.closePlayer()
		}
		return m, deleteCmd(m.ctx, m.deps.Library, sel.ID)

	case key.Matches(msg, keys.Play):
		if !hasSel || sel.AudioURI == "" {
			return m, nil
		}
		if !audio.Playable(sel.AudioURI) {
			m = m.withNotice("Only WAV recordings can be played here")
			return m, clearNoticeCmd(m.noticeID)
		}
		if m.player == nil || m.player.URI() != sel.AudioURI {
			m.closePlayer()
			m.openPlayer(sel.AudioURI)
		}
		return m, playerToggleCmd(m.ctx, m.player)

	case key.Matches(msg, keys.Stop):
		if p := m.player; p != nil {
			return m, playerCmd(p.Stop)
		}
		return m, nil

	case key.Matches(msg, keys.Back), key.Matches(msg, keys.Fwd):
		p := m.player
		if p == nil {
			return m, nil
		}
		step := seekStep
		if key.Matches(msg, keys.Back) {
			step = -seekStep
		}
		return m, playerCmd(func() { p.SeekBy(step) })

	case key.Matches(msg, keys.Retry):
		if p := m.player; p != nil && m.playback.Err != nil {
			ctx := m.ctx
			return m, playerCmd(func() { p.Retry(ctx) })
		}
		return m, nil

	case key.Matches(msg, keys.View):
		if !hasSel {
			return m, nil
		}
		m.current = &sel
		m.tab = TabRecord
		return m, nil

	case key.Matches(msg, keys.Export):
		if !hasSel {
			return m, nil
		}
		return m, exportCmd(m.ctx, m.deps, sel)
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m *Model) openPlayer(uri string) {
	events := m.events
	log := m.log
	p := player.New(m.deps.Playback, uri, m.deps.Log)
	m.playerCancel = p.Subscribe(func(s player.Snapshot) {
		select {
		case events <- PlayerMsg{Snapshot: s}:
		default:
			log.Debug().Msg("event buffer full, dropping player update")
		}
	})
	m.player = p
	m.playback = p.Snapshot()
}

func (m Model) selected() (recording.Recording, bool) {
	it, ok := m.list.SelectedItem().(item)
	if !ok {
		return recording.Recording{}, false
	}
	return it.rec, true
}

// nextSort cycles through the sortable fields; dates sort newest first,
// title A-Z, duration longest first.
func nextSort(o recording.SortOrder) recording.SortOrder {
	i := 0
	for j, f := range recording.SortFields {
		if f == o.Field {
			i = j
			break
		}
	}
	f := recording.SortFields[(i+1)%len(recording.SortFields)]
	return recording.SortOrder{Field: f, Desc: f != recording.SortTitle}
}

func sortLabel(o recording.SortOrder) string {
	switch o.Field {
	case recording.SortUpdatedAt:
		return "last edited"
	case recording.SortTitle:
		return "title"
	case recording.SortDuration:
		return "duration"
	}
	return "date"
}
