// Package style separates visible text from ANSI escape sequences,
// producing styled segments that renderers can draw without reparsing the
// raw stream.
package style

import (
	"strconv"

	"github.com/charmbracelet/lipgloss/v2"
)

// The eight basic ANSI colors. Default means "no color set".
const (
	Default = -1
	Black   = 0
	Red     = 1
	Green   = 2
	Yellow  = 3
	Blue    = 4
	Magenta = 5
	Cyan    = 6
	White   = 7
)

// Style is the active SGR state for a run of text. The zero value is not
// the default style; use DefaultStyle.
type Style struct {
	Fg        int
	Bg        int
	Bold      bool
	Underline bool
	Reverse   bool
}

// DefaultStyle is the state at the start of every logical line: default
// colors, no attributes.
func DefaultStyle() Style {
	return Style{Fg: Default, Bg: Default}
}

// IsDefault reports whether the style carries no color or attribute at all.
func (s Style) IsDefault() bool {
	return s == DefaultStyle()
}

// Lipgloss converts the style for the renderer boundary.
func (s Style) Lipgloss() lipgloss.Style {
	out := lipgloss.NewStyle().
		Bold(s.Bold).
		Underline(s.Underline).
		Reverse(s.Reverse)

	if s.Fg >= 0 {
		out = out.Foreground(lipgloss.Color(strconv.Itoa(s.Fg)))
	}
	if s.Bg >= 0 {
		out = out.Background(lipgloss.Color(strconv.Itoa(s.Bg)))
	}

	return out
}

// apply folds one SGR code into the style. Unrecognized codes are ignored.
func (s Style) apply(code int) Style {
	switch {
	case code == 0:
		return DefaultStyle()
	case code == 1:
		s.Bold = true
	case code == 4:
		s.Underline = true
	case code == 7:
		s.Reverse = true
	case code == 22:
		s.Bold = false
	case code == 24:
		s.Underline = false
	case code == 27:
		s.Reverse = false
	case code >= 30 && code <= 37:
		s.Fg = code - 30
	case code == 39:
		s.Fg = Default
	case code >= 40 && code <= 47:
		s.Bg = code - 40
	case code == 49:
		s.Bg = Default
	case code >= 90 && code <= 97:
		// Bright foregrounds map onto bold basic colors.
		s.Fg = code - 90
		s.Bold = true
	}
	return s
}

// Segment is a run of visible text with one active style. A logical line
// is an ordered slice of segments whose concatenated text is the line's
// visible content.
type Segment struct {
	Text  string
	Style Style
}
