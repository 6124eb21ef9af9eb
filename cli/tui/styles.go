// Package tui renders read-only command results as Bubble Tea views.
// Views show the same payloads as the json/table/yaml output.
package tui

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

var (
	primaryColor   = lipgloss.Color("#0EA5E9")
	onlineColor    = lipgloss.Color("#10B981")
	pendingColor   = lipgloss.Color("#F59E0B")
	offlineColor   = lipgloss.Color("#EF4444")
	mutedColor     = lipgloss.Color("#6B7280")
	highlightColor = lipgloss.Color("#3B82F6")
	textColor      = lipgloss.Color("#F9FAFB")
)

// memberColumnWidth is the width of the wxid and nickname columns.
const memberColumnWidth = 16

var (
	TitleStyle   = lipgloss.NewStyle().Bold(true).Foreground(primaryColor).MarginBottom(1)
	LabelStyle   = lipgloss.NewStyle().Foreground(mutedColor).Width(12)
	ValueStyle   = lipgloss.NewStyle().Foreground(textColor)
	ColumnStyle  = ValueStyle.Width(memberColumnWidth)
	HeaderStyle  = lipgloss.NewStyle().Foreground(mutedColor).Underline(true).Width(memberColumnWidth)
	WarningStyle = lipgloss.NewStyle().Foreground(pendingColor)
	HelpStyle    = lipgloss.NewStyle().Foreground(mutedColor).MarginTop(1)

	BoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(mutedColor).
			Padding(1, 2)

	// Account counters under the status box.
	StatBoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			Padding(0, 2).
			Width(20).
			Align(lipgloss.Center)
	StatLabelStyle = lipgloss.NewStyle().Foreground(mutedColor)
	StatValueStyle = lipgloss.NewStyle().Bold(true)
)

// StateStyle colors an engine login state.
func StateStyle(state string) lipgloss.Style {
	switch state {
	case "online":
		return lipgloss.NewStyle().Bold(true).Foreground(onlineColor)
	case "connecting":
		return lipgloss.NewStyle().Foreground(pendingColor)
	case "offline":
		return lipgloss.NewStyle().Bold(true).Foreground(offlineColor)
	default:
		return ValueStyle
	}
}

// DisableColor renders every view without ANSI colors.
func DisableColor() {
	lipgloss.SetColorProfile(termenv.Ascii)
}
