// Package display renders suites, validation reports and PV trees for the
// terminal.
package display

import (
	"io"

	"github.com/charmbracelet/lipgloss"

	"github.com/ormasoftchile/wetest/pkg/suite"
)

// Status glyphs convey meaning without relying on color alone.
const (
	GlyphSelected = "○"
	GlyphRunning  = "▸"
	GlyphRetrying = "⟳"
	GlyphPassed   = "✓"
	GlyphFailed   = "✗"
	GlyphSkipped  = "-"
	GlyphWarning  = "!"
)

var (
	colorGreen  = lipgloss.Color("42")
	colorRed    = lipgloss.Color("196")
	colorYellow = lipgloss.Color("214")
	colorBlue   = lipgloss.Color("39")
	colorCyan   = lipgloss.Color("51")
	colorDim    = lipgloss.Color("240")
)

// styles are bound to the renderer of one writer so color support follows
// the destination.
type styles struct {
	title   lipgloss.Style
	header  lipgloss.Style
	column  lipgloss.Style
	passed  lipgloss.Style
	failed  lipgloss.Style
	running lipgloss.Style
	skipped lipgloss.Style
	warning lipgloss.Style
	path    lipgloss.Style
}

func newStyles(w io.Writer) styles {
	r := lipgloss.NewRenderer(w)
	return styles{
		title:   r.NewStyle().Bold(true).Foreground(colorCyan),
		header:  r.NewStyle().Bold(true).Foreground(colorBlue),
		column:  r.NewStyle().Foreground(colorDim),
		passed:  r.NewStyle().Foreground(colorGreen).Bold(true),
		failed:  r.NewStyle().Foreground(colorRed).Bold(true),
		running: r.NewStyle().Foreground(colorYellow),
		skipped: r.NewStyle().Faint(true),
		warning: r.NewStyle().Foreground(colorYellow),
		path:    r.NewStyle().Bold(true),
	}
}

// status returns the glyph and style of a unit status.
func (st styles) status(s suite.Status) (string, lipgloss.Style) {
	switch s {
	case suite.StatusSuccess:
		return GlyphPassed, st.passed
	case suite.StatusFailed, suite.StatusError:
		return GlyphFailed, st.failed
	case suite.StatusRunning:
		return GlyphRunning, st.running
	case suite.StatusRetrying:
		return GlyphRetrying, st.running
	case suite.StatusSkipped:
		return GlyphSkipped, st.skipped
	}
	return GlyphSelected, st.column
}
