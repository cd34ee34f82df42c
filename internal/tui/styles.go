package tui

import (
	"github.com/charmbracelet/lipgloss"

	"fg/internal/progress"
)

var (
	// HeaderStyle styles the column header row.
	HeaderStyle = lipgloss.NewStyle().Bold(true)
	// TitleStyle styles the line above the install table.
	TitleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("6"))

	okStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	activeStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("4"))

	statusStyles = map[string]lipgloss.Style{
		string(progress.StateCached):      okStyle,
		string(progress.StateDone):        okStyle,
		string(progress.StateResolving):   activeStyle,
		string(progress.StateDownloading): activeStyle,
		string(progress.StateExtracting):  activeStyle,
		string(progress.StateFailed):      lipgloss.NewStyle().Foreground(lipgloss.Color("1")),
		string(progress.StatePending):     lipgloss.NewStyle().Faint(true),
	}
)

// StatusStyle returns the lipgloss style for the given status string.
func StatusStyle(status string) lipgloss.Style {
	if s, ok := statusStyles[status]; ok {
		return s
	}
	return lipgloss.NewStyle()
}

// IsTerminal reports whether a status no longer changes.
func IsTerminal(status string) bool {
	switch progress.State(status) {
	case progress.StateCached, progress.StateDone, progress.StateFailed:
		return true
	}
	return false
}
