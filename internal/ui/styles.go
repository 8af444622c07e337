// Package ui holds the terminal colour palette and lipgloss styles.
package ui

import "github.com/charmbracelet/lipgloss"

var (
	ColorAccent  = lipgloss.AdaptiveColor{Light: "#5A3FC0", Dark: "#9D8CFF"}
	ColorRecord  = lipgloss.Color("#E5484D")
	ColorPaused  = lipgloss.Color("#F5A524")
	ColorOK      = lipgloss.Color("#30A46C")
	ColorMuted   = lipgloss.AdaptiveColor{Light: "#7C7C7C", Dark: "#8B8B8B"}
	ColorFaint   = lipgloss.AdaptiveColor{Light: "#C8C8C8", Dark: "#3A3A3A"}
	ColorText    = lipgloss.AdaptiveColor{Light: "#1A1A1A", Dark: "#EDEDED"}
	ColorWarning = lipgloss.Color("#FFB224")
)

var (
	AppStyle = lipgloss.NewStyle().Padding(1, 2)

	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorAccent)

	TabStyle = lipgloss.NewStyle().
			Foreground(ColorMuted).
			Padding(0, 2)

	ActiveTabStyle = lipgloss.NewStyle().
			Foreground(ColorText).
			Bold(true).
			Underline(true).
			Padding(0, 2)

	RecordingStyle = lipgloss.NewStyle().
			Foreground(ColorRecord).
			Bold(true)

	PausedStyle = lipgloss.NewStyle().
			Foreground(ColorPaused).
			Bold(true)

	IdleStyle = lipgloss.NewStyle().
			Foreground(ColorMuted)

	ClockStyle = lipgloss.NewStyle().
			Foreground(ColorText).
			Bold(true)

	BarsStyle = lipgloss.NewStyle().
			Foreground(ColorAccent)

	StatusStyle = lipgloss.NewStyle().
			Foreground(ColorMuted).
			Italic(true)

	SuccessStyle = lipgloss.NewStyle().
			Foreground(ColorOK)

	AlertStyle = lipgloss.NewStyle().
			Foreground(ColorWarning).
			Bold(true)

	ErrorStyle = lipgloss.NewStyle().
			Foreground(ColorRecord)

	TranscriptBoxStyle = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(ColorFaint).
				Padding(0, 1)

	TranscriptTitleStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(ColorText)

	DimStyle = lipgloss.NewStyle().
			Foreground(ColorMuted)

	ProgressFillStyle = lipgloss.NewStyle().
				Foreground(ColorAccent)

	ProgressEmptyStyle = lipgloss.NewStyle().
				Foreground(ColorFaint)

	DividerStyle = lipgloss.NewStyle().
			Foreground(ColorFaint)
)
