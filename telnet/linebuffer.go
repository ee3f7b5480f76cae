package telnet

import "strings"

// LineBuffer assembles decoded text runs into logical lines. Text can
// arrive in fragments of any size, so the trailing incomplete line is
// carried between calls. Line breaks follow MUD convention: LF breaks the
// line and CR is discarded, which collapses CRLF, LFCR, and bare CR
// variants into a single break concept without ever producing doubled
// blank lines.
type LineBuffer struct {
	partial strings.Builder
}

// Feed consumes one text run and calls emit once per completed line, in
// order. The text after the last line break is retained as the new
// residual.
func (b *LineBuffer) Feed(text string, emit func(line string)) {
	for _, r := range text {
		switch r {
		case '\r':
			// dropped; LF is the break
		case '\n':
			line := b.partial.String()
			b.partial.Reset()
			emit(line)
		default:
			b.partial.WriteRune(r)
		}
	}
}

// Pending returns the current residual: the trailing text not yet
// terminated by a line break. Prompts usually live here.
func (b *LineBuffer) Pending() string {
	return b.partial.String()
}

// TakePending returns the residual and clears it. The session flushes the
// residual as a prompt line when the server sends IAC GA / IAC EOR.
func (b *LineBuffer) TakePending() string {
	pending := b.partial.String()
	b.partial.Reset()
	return pending
}
