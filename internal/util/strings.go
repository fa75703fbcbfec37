// Package util holds small text helpers shared by the CLI and the chat UI.
package util

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
)

// Ellipsis marks truncated text.
const Ellipsis = "…"

// Truncate shortens s to at most maxRunes runes, ending in Ellipsis when
// anything was cut. It does not account for ANSI escape codes; use
// TruncateWidth for styled text.
func Truncate(s string, maxRunes int) string {
	if maxRunes <= 1 {
		return Ellipsis
	}
	runes := []rune(s)
	if len(runes) <= maxRunes {
		return s
	}
	return string(runes[:maxRunes-1]) + Ellipsis
}

// TruncateWidth shortens s to at most width terminal columns, keeping
// escape sequences intact and counting wide characters as two columns.
func TruncateWidth(s string, width int) string {
	if width <= 1 {
		return Ellipsis
	}
	if lipgloss.Width(s) <= width {
		return s
	}
	return ansi.Truncate(s, width, Ellipsis)
}

// CollapseSpace replaces every run of whitespace with one space and trims
// both ends.
func CollapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
