package tui

import (
	"strings"

	"github.com/Iron-Ham/hostbridge/internal/lifecycle"
	"github.com/Iron-Ham/hostbridge/internal/logging"
	"github.com/Iron-Ham/hostbridge/internal/session"
	"github.com/charmbracelet/lipgloss"
)

var (
	// Colors meet WCAG AA contrast on both black and dark surfaces
	PrimaryColor   = lipgloss.Color("#A78BFA") // Purple
	SecondaryColor = lipgloss.Color("#10B981") // Green
	WarningColor   = lipgloss.Color("#F59E0B") // Amber
	ErrorColor     = lipgloss.Color("#F87171") // Red
	MutedColor     = lipgloss.Color("#9CA3AF") // Gray
	InfoColor      = lipgloss.Color("#60A5FA") // Blue
	TextColor      = lipgloss.Color("#F9FAFB") // Light text
	BorderColor    = lipgloss.Color("#6B7280") // Gray

	Title = lipgloss.NewStyle().
		Bold(true).
		Foreground(PrimaryColor)

	Muted = lipgloss.NewStyle().Foreground(MutedColor)
	Error = lipgloss.NewStyle().Foreground(ErrorColor)

	StatusBadge = lipgloss.NewStyle().
			Bold(true).
			Foreground(TextColor).
			Padding(0, 1).
			MarginRight(1)

	UserLabel = lipgloss.NewStyle().
			Bold(true).
			Foreground(InfoColor)

	AssistantLabel = lipgloss.NewStyle().
			Bold(true).
			Foreground(SecondaryColor)

	Transcript = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(BorderColor).
			Padding(0, 1)

	HelpBar = lipgloss.NewStyle().
		Foreground(MutedColor).
		MarginTop(1)
)

// StateBadge renders the graph state.
func StateBadge(s lifecycle.State) string {
	color := MutedColor
	switch s {
	case lifecycle.StateStarted:
		color = SecondaryColor
	case lifecycle.StateStarting:
		color = WarningColor
	}
	return StatusBadge.Background(color).Render(s.String())
}

// ConnectionBadge renders a session connection status.
func ConnectionBadge(s session.Status) string {
	color := MutedColor
	switch s {
	case session.StatusReady:
		color = SecondaryColor
	case session.StatusConnecting:
		color = WarningColor
	case session.StatusUnauthorized:
		color = ErrorColor
	}
	if s == "" {
		s = "unknown"
	}
	return StatusBadge.Background(color).Render(s.String())
}

// LevelStyle colors a log level the way the chat UI colors statuses.
func LevelStyle(level string) lipgloss.Style {
	switch strings.ToUpper(level) {
	case logging.LevelDebug:
		return Muted
	case logging.LevelInfo:
		return lipgloss.NewStyle().Foreground(InfoColor)
	case logging.LevelWarn:
		return lipgloss.NewStyle().Foreground(WarningColor)
	case logging.LevelError:
		return Error
	default:
		return lipgloss.NewStyle()
	}
}
