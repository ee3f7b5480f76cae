package style

import (
	"strings"

	"github.com/charmbracelet/x/ansi"
)

// Segments walks one logical line and splits it into styled text runs.
// Style persists across escape sequences within the line and always starts
// from the default state; servers in this protocol do not carry style
// across line breaks. Non-SGR escape sequences are dropped from the
// visible text. A malformed escape sequence dangling at the end of the
// line is kept as literal text so no visible characters are ever lost.
func Segments(line string) []Segment {
	if line == "" {
		return nil
	}

	var segments []Segment
	var text strings.Builder
	current := DefaultStyle()

	flush := func() {
		if text.Len() == 0 {
			return
		}
		segments = append(segments, Segment{Text: text.String(), Style: current})
		text.Reset()
	}

	parser := ansi.NewParser(nil)
	parser.SetDispatcher(func(seq ansi.Sequence) {
		switch typed := seq.(type) {
		case ansi.Rune:
			text.WriteRune(rune(typed))
		case ansi.Grapheme:
			text.WriteString(typed.Cluster)
		case ansi.ControlCode:
			if typed == ansi.HT {
				text.WriteByte('\t')
			}
		case ansi.CsiSequence:
			if typed.Cmd.Command() != 'm' {
				return
			}
			flush()
			current = applySGR(current, typed)
		}
	})

	tail := incompleteTail(line)
	complete := line[:len(line)-len(tail)]

	for i := 0; i < len(complete); i++ {
		parser.Advance(complete[i])
	}

	if tail != "" {
		text.WriteString(tail)
	}
	flush()

	if len(segments) == 0 {
		return []Segment{{Style: DefaultStyle()}}
	}

	return segments
}

// applySGR folds every parameter of one SGR sequence into a style. An
// empty parameter list means reset. Extended color introducers (38/48)
// consume their arguments so a 256-color sequence is skipped whole rather
// than misread as basic codes.
func applySGR(current Style, seq ansi.CsiSequence) Style {
	sawParam := false

	for i := 0; ; i++ {
		code, ok := seq.Param(i, 0)
		if !ok {
			break
		}
		sawParam = true

		if code == 38 || code == 48 {
			mode, _ := seq.Param(i+1, 0)
			if mode == 5 {
				i += 2
			} else if mode == 2 {
				i += 4
			}
			continue
		}

		current = current.apply(code)
	}

	if !sawParam {
		return DefaultStyle()
	}

	return current
}

// Strip returns the line's plain-text projection with all escape sequences
// removed, used for pattern matching.
func Strip(line string) string {
	tail := incompleteTail(line)
	return ansi.Strip(line[:len(line)-len(tail)]) + tail
}

// incompleteTail returns the trailing bytes of the line when they form an
// unterminated escape sequence, or "" when the line ends cleanly. The
// stream parser would silently buffer such a fragment; treating it as
// literal text instead fails open.
func incompleteTail(line string) string {
	escIndex := strings.LastIndexByte(line, 0x1b)
	if escIndex < 0 {
		return ""
	}

	rest := line[escIndex:]
	if len(rest) == 1 {
		return rest
	}

	if rest[1] != '[' {
		// Two-byte ESC sequences are complete by definition, and anything
		// else is beyond what this protocol's servers emit.
		return ""
	}

	// CSI: parameter and intermediate bytes, complete once a final byte
	// in 0x40..0x7E appears.
	for i := 2; i < len(rest); i++ {
		if rest[i] >= 0x40 && rest[i] <= 0x7e {
			return ""
		}
	}

	return rest
}
