// Package tui renders command status for the terminal: severity badges,
// status listings and Markdown documentation.
package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/ormasoftchile/geoproc/pkg/kernel/status"
)

// Severity glyphs convey meaning without relying on color alone.
const (
	GlyphSuccess  = "✓"
	GlyphWarning  = "⚠"
	GlyphFailure  = "✗"
	GlyphDisabled = "○"
)

// Palette adapts to terminal capabilities via lipgloss.
var (
	colorGreen  = lipgloss.Color("42")
	colorRed    = lipgloss.Color("196")
	colorYellow = lipgloss.Color("214")
	colorCyan   = lipgloss.Color("51")
	colorDim    = lipgloss.Color("240")
)

var (
	successStyle = lipgloss.NewStyle().Foreground(colorGreen).Bold(true)
	warningStyle = lipgloss.NewStyle().Foreground(colorYellow).Bold(true)
	failureStyle = lipgloss.NewStyle().Foreground(colorRed).Bold(true)

	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(colorCyan)
	dimStyle   = lipgloss.NewStyle().Foreground(colorDim)
)

// Glyph returns the glyph of sev.
func Glyph(sev status.Severity) string {
	switch sev {
	case status.Warning:
		return GlyphWarning
	case status.Failure:
		return GlyphFailure
	default:
		return GlyphSuccess
	}
}

func styleFor(sev status.Severity) lipgloss.Style {
	switch sev {
	case status.Warning:
		return warningStyle
	case status.Failure:
		return failureStyle
	default:
		return successStyle
	}
}

// Badge renders "<glyph> <Severity>" in the severity's color.
func Badge(sev status.Severity) string {
	return styleFor(sev).Render(Glyph(sev) + " " + sev.String())
}

// Title renders a heading line.
func Title(s string) string { return titleStyle.Render(s) }

// Dim renders secondary text.
func Dim(s string) string { return dimStyle.Render(s) }
