package app

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	Record     key.Binding
	Pause      key.Binding
	Transcribe key.Binding
	Edit       key.Binding
	Save       key.Binding
	Enhance    key.Binding
	Export     key.Binding

	Play   key.Binding
	Stop   key.Binding
	Back   key.Binding
	Fwd    key.Binding
	Search key.Binding
	Sort   key.Binding
	Delete key.Binding
	View   key.Binding
	Retry  key.Binding

	Tab     key.Binding
	Dismiss key.Binding
	Help    key.Binding
	Quit    key.Binding
}

var keys = keyMap{
	Record: key.NewBinding(
		key.WithKeys(" ", "r"),
		key.WithHelp("space", "record/stop"),
	),
	Pause: key.NewBinding(
		key.WithKeys("p"),
		key.WithHelp("p", "pause/resume"),
	),
	Transcribe: key.NewBinding(
		key.WithKeys("t"),
		key.WithHelp("t", "retry transcription"),
	),
	Edit: key.NewBinding(
		key.WithKeys("e"),
		key.WithHelp("e", "edit"),
	),
	Save: key.NewBinding(
		key.WithKeys("ctrl+s"),
		key.WithHelp("ctrl+s", "save"),
	),
	Enhance: key.NewBinding(
		key.WithKeys("1", "2", "3"),
		key.WithHelp("1/2/3", "summary/bullets/actions"),
	),
	Export: key.NewBinding(
		key.WithKeys("x"),
		key.WithHelp("x", "export"),
	),
	Play: key.NewBinding(
		key.WithKeys("enter", " "),
		key.WithHelp("enter", "play/pause"),
	),
	Stop: key.NewBinding(
		key.WithKeys("s"),
		key.WithHelp("s", "stop"),
	),
	Back: key.NewBinding(
		key.WithKeys("left", "h"),
		key.WithHelp("←", "-5s"),
	),
	Fwd: key.NewBinding(
		key.WithKeys("right", "l"),
		key.WithHelp("→", "+5s"),
	),
	Search: key.NewBinding(
		key.WithKeys("/"),
		key.WithHelp("/", "search"),
	),
	Sort: key.NewBinding(
		key.WithKeys("o"),
		key.WithHelp("o", "sort"),
	),
	Delete: key.NewBinding(
		key.WithKeys("d"),
		key.WithHelp("d d", "delete"),
	),
	View: key.NewBinding(
		key.WithKeys("v"),
		key.WithHelp("v", "open transcript"),
	),
	Retry: key.NewBinding(
		key.WithKeys("R"),
		key.WithHelp("R", "retry playback"),
	),
	Tab: key.NewBinding(
		key.WithKeys("tab"),
		key.WithHelp("tab", "switch tab"),
	),
	Dismiss: key.NewBinding(
		key.WithKeys("esc"),
		key.WithHelp("esc", "dismiss"),
	),
	Help: key.NewBinding(
		key.WithKeys("?"),
		key.WithHelp("?", "help"),
	),
	Quit: key.NewBinding(
		key.WithKeys("q", "ctrl+c"),
		key.WithHelp("q", "quit"),
	),
}

// recordHelp and historyHelp adapt keyMap to help.KeyMap per tab.
type recordHelp struct{ keyMap }

func (k recordHelp) ShortHelp() []key.Binding {
	return []key.Binding{k.Record, k.Pause, k.Enhance, k.Tab, k.Help, k.Quit}
}

func (k recordHelp) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Record, k.Pause, k.Transcribe},
		{k.Edit, k.Save, k.Enhance, k.Export},
		{k.Tab, k.Dismiss, k.Help, k.Quit},
	}
}

type historyHelp struct{ keyMap }

func (k historyHelp) ShortHelp() []key.Binding {
	return []key.Binding{k.Play, k.Search, k.Sort, k.Tab, k.Help, k.Quit}
}

func (k historyHelp) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Play, k.Stop, k.Back, k.Fwd, k.Retry},
		{k.Search, k.Sort, k.Delete, k.View, k.Export},
		{k.Tab, k.Dismiss, k.Help, k.Quit},
	}
}
