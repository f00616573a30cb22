package cmd

import "github.com/charmbracelet/lipgloss"

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#A78BFA"))
	liveStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#10B981"))
	staleStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#F59E0B"))
	deleteStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#F87171"))
	mutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#9CA3AF"))
)

// maxCellWidth bounds table cells so long paths do not wrap.
const maxCellWidth = 60
