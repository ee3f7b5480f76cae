package classify

import (
	"time"

	"github.com/moodclient/mudterm/style"
)

// Classifier routes each completed line to at most one content kind.
// Tag-delimited captures (help, map, room description) are tested first
// so their interior lines are never reclassified by the single-line
// patterns, then the info prefix, then the conversation patterns. Lines
// nothing claims pass through as OutputLine.
type Classifier struct {
	room roomCapture
	help helpCapture
	conv conversationMatcher
}

// Option configures a Classifier.
type Option func(*Classifier)

// WithClock substitutes the timestamp source, for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Classifier) { c.conv.now = now }
}

// WithRoomCaptureDisabled starts the classifier with map and room
// description capture off, until EnableRoomCapture is called. Used by
// sessions that only trust map tags after login.
func WithRoomCaptureDisabled() Option {
	return func(c *Classifier) { c.room.enabled = false }
}

// New compiles the pattern config and builds a classifier. A config with
// an invalid pattern is rejected whole.
func New(cfg PatternConfig, opts ...Option) (*Classifier, error) {
	p, err := cfg.Compile()
	if err != nil {
		return nil, err
	}

	c := &Classifier{
		room: roomCapture{patterns: p, enabled: true},
		help: helpCapture{patterns: p},
		conv: conversationMatcher{patterns: p.conversation, now: time.Now},
	}
	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

// EnableRoomCapture turns on map and room description tracking.
func (c *Classifier) EnableRoomCapture() {
	c.room.enabled = true
}

// Feed classifies one completed line and returns the events it produced.
// Lines absorbed into an open capture return nothing until the capture
// finalizes.
func (c *Classifier) Feed(raw string) []Event {
	plain := style.Strip(raw)

	if consumed, block := c.help.feed(plain, raw); consumed {
		if block != nil {
			return []Event{*block}
		}
		return nil
	}

	if consumed, block := c.room.feed(plain, raw); consumed {
		if block != nil {
			return []Event{*block}
		}
		return nil
	}

	if consumed, done := c.conv.continueCapture(plain, raw); consumed {
		if done != nil {
			return []Event{*done}
		}
		return nil
	}

	if c.room.patterns.infoPrefix != nil {
		if loc := c.room.patterns.infoPrefix.FindStringIndex(plain); loc != nil {
			return []Event{InfoMessage{
				Text:      plain[loc[1]:],
				Raw:       raw,
				Timestamp: c.conv.now(),
			}}
		}
	}

	if consumed, done := c.conv.match(plain, raw); consumed {
		if done != nil {
			return []Event{*done}
		}
		return nil
	}

	return []Event{c.outputLine(raw, plain, false)}
}

// Prompt wraps a partial line flushed by a go-ahead signal. Prompts are
// never pattern matched, the text may be incomplete.
func (c *Classifier) Prompt(raw string) OutputLine {
	return c.outputLine(raw, style.Strip(raw), true)
}

// Room returns the current merged room snapshot.
func (c *Classifier) Room() MapBlock {
	return *c.room.snapshot()
}

func (c *Classifier) outputLine(raw, plain string, prompt bool) OutputLine {
	return OutputLine{
		Segments: style.Segments(raw),
		Plain:    plain,
		Raw:      raw,
		Prompt:   prompt,
	}
}
