package app

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/snarg/voicememo/internal/player"
	"github.com/snarg/voicememo/internal/recording"
	"github.com/snarg/voicememo/internal/ui"
)

// item adapts a Recording to list.Item.
type item struct {
	rec recording.Recording
	now time.Time
}

func (i item) Title() string { return i.rec.Title }

func (i item) Description() string {
	age := humanize.RelTime(i.rec.CreatedAt, i.now, "ago", "from now")
	if d := i.rec.Transcription.Duration; d > 0 {
		return age + " · " + clock(int(d))
	}
	return age
}

func (i item) FilterValue() string { return i.rec.Title }

func toItems(recs []recording.Recording, now time.Time) []list.Item {
	items := make([]list.Item, len(recs))
	for i, r := range recs {
		items[i] = item{rec: r, now: now}
	}
	return items
}

func clock(seconds int) string {
	return fmt.Sprintf("%02d:%02d", seconds/60, seconds%60)
}

// View renders the full TUI.
func (m Model) View() string {
	var sections []string
	sections = append(sections, m.renderTabs())

	if m.tab == TabRecord {
		sections = append(sections, m.renderRecordTab())
	} else {
		sections = append(sections, m.renderHistoryTab())
	}

	if m.alert != "" {
		sections = append(sections, ui.AlertStyle.Render("⚠ "+m.alert)+ui.DimStyle.Render("  (esc)"))
	}
	if m.notice != "" {
		sections = append(sections, ui.SuccessStyle.Render(m.notice))
	}

	if m.tab == TabRecord {
		sections = append(sections, m.help.View(recordHelp{keys}))
	} else {
		sections = append(sections, m.help.View(historyHelp{keys}))
	}
	return ui.AppStyle.Render(strings.Join(sections, "\n\n"))
}

func (m Model) renderTabs() string {
	tabs := []string{"Record", "History"}
	var out []string
	for i, t := range tabs {
		if Tab(i) == m.tab {
			out = append(out, ui.ActiveTabStyle.Render(t))
		} else {
			out = append(out, ui.TabStyle.Render(t))
		}
	}
	return ui.TitleStyle.Render("VOICE MEMOS") + "  " + lipgloss.JoinHorizontal(lipgloss.Top, out...)
}

func (m Model) renderRecordTab() string {
	var status string
	switch {
	case m.recording && m.paused:
		status = ui.PausedStyle.Render("❚❚ PAUSED")
	case m.recording:
		status = ui.RecordingStyle.Render("● REC")
	case m.processing:
		status = ui.StatusStyle.Render("Transcribing...")
	default:
		status = ui.IdleStyle.Render("○ Ready")
	}
	header := status + "  " + ui.ClockStyle.Render(clock(m.elapsed))
	bars := ui.BarsStyle.Render(m.deps.Bars.String())

	parts := []string{header, bars}
	if m.enhancing != "" {
		parts = append(parts, ui.StatusStyle.Render("Enhancing: "+m.enhancing.Label()+"..."))
	}
	if m.current != nil {
		parts = append(parts, m.renderTranscript(*m.current))
	} else if !m.recording && !m.processing {
		parts = append(parts, ui.DimStyle.Render("Press space to record a memo."))
	}
	return strings.Join(parts, "\n")
}

func (m Model) renderTranscript(rec recording.Recording) string {
	title := ui.TranscriptTitleStyle.Render(rec.Title)
	meta := []string{humanize.RelTime(rec.CreatedAt, m.deps.Now(), "ago", "from now")}
	if d := rec.Transcription.Duration; d > 0 {
		meta = append(meta, clock(int(d)))
	}
	if c := rec.Transcription.Confidence; c > 0 {
		meta = append(meta, fmt.Sprintf("%.0f%% confidence", c*100))
	}
	if len(rec.Tags) > 0 {
		meta = append(meta, "#"+strings.Join(rec.Tags, " #"))
	}

	body := rec.Transcription.Text
	if m.editing {
		body = m.editor.View() + "\n" + ui.DimStyle.Render("ctrl+s save · esc cancel")
	} else if strings.TrimSpace(body) == "" {
		body = ui.DimStyle.Render("(no speech detected)")
	}

	width := max(m.width-8, 40)
	content := title + "\n" + ui.DimStyle.Render(strings.Join(meta, " · ")) + "\n\n" +
		lipgloss.NewStyle().Width(width-4).Render(body)
	return ui.TranscriptBoxStyle.Width(width).Render(content)
}

func (m Model) renderHistoryTab() string {
	var parts []string
	if m.searching {
		parts = append(parts, m.search.View())
	} else if m.query != "" {
		parts = append(parts, ui.DimStyle.Render(fmt.Sprintf("Results for %q (esc in search to clear)", m.query)))
	}

	if len(m.recordings) == 0 {
		if m.query != "" {
			parts = append(parts, ui.DimStyle.Render("No recordings match."))
		} else {
			parts = append(parts, ui.DimStyle.Render("No recordings yet."))
		}
		return strings.Join(parts, "\n")
	}

	parts = append(parts, ui.DimStyle.Render("Sorted by "+sortLabel(m.sort)))
	parts = append(parts, m.list.View())
	if sel, ok := m.selected(); ok && m.player != nil && m.player.URI() == sel.AudioURI {
		parts = append(parts, m.renderPlayback())
	}
	return strings.Join(parts, "\n")
}

func (m Model) renderPlayback() string {
	s := m.playback
	if s.Err != nil {
		return ui.ErrorStyle.Render("Playback error: "+s.Err.Error()) +
			ui.DimStyle.Render("  (R retry · esc dismiss)")
	}

	var icon string
	switch s.State {
	case player.Loading:
		icon = "…"
	case player.Playing:
		icon = "▶"
	default:
		icon = "❚❚"
	}
	const width = 30
	filled := int(s.Progress() * width)
	bar := ui.ProgressFillStyle.Render(strings.Repeat("━", filled)) +
		ui.ProgressEmptyStyle.Render(strings.Repeat("─", width-filled))
	return fmt.Sprintf("%s %s %s / %s", icon, bar,
		clock(int(s.Position.Seconds())), clock(int(s.Duration.Seconds())))
}
