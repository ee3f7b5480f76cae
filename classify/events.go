// Package classify turns the styled line stream into typed structured
// events: plain output, map blocks, conversation lines, info messages, and
// help blocks. Recognition is driven entirely by externally supplied
// pattern configuration.
package classify

import (
	"time"

	"github.com/moodclient/mudterm/style"
)

// Event is the tagged variant over everything the classifier can emit.
// Every line fed to the classifier ends up in exactly one event: either
// passed through as an OutputLine or absorbed into a typed block.
type Event interface {
	isEvent()
}

// OutputLine is a line no content kind claimed, passed through with its
// styled segments unchanged.
type OutputLine struct {
	// Segments is the ANSI-segmented visible content.
	Segments []style.Segment
	// Plain is the text projection used for pattern matching.
	Plain string
	// Raw preserves escape sequences for renderers that want them.
	Raw string
	// Prompt marks a partial line flushed by IAC GA / IAC EOR.
	Prompt bool
}

func (OutputLine) isEvent() {}

// MapBlock is a snapshot of the current room: the ASCII map captured
// between the map tags, plus the room name, coordinates, exits, and
// description assembled from their own patterns. A new snapshot is emitted
// every time one of those parts updates.
type MapBlock struct {
	// Lines is the map art with ANSI styling preserved.
	Lines       []string
	RoomName    string
	Coords      string
	Exits       string
	Description []string
}

func (MapBlock) isEvent() {}

// ConversationLine is one completed speech event. Multi-line speech is
// accumulated until its closing quote, then emitted as a single event.
type ConversationLine struct {
	Speaker string
	// Label names the matched pattern ("says", "tells", ...).
	Label   string
	Message string
	// Raw holds the original line(s) with ANSI preserved, newline joined.
	Raw       string
	Timestamp time.Time
}

func (ConversationLine) isEvent() {}

// InfoMessage is a single line matching the info channel prefix.
type InfoMessage struct {
	Text      string
	Raw       string
	Timestamp time.Time
}

func (InfoMessage) isEvent() {}

// HelpBlock is the parsed content of one help capture.
type HelpBlock struct {
	Title string
	// HeaderLines are the lines between the opening tag and the body.
	HeaderLines []string
	// BodyLines are the raw lines of the body section.
	BodyLines []string
	// Tags lists the keywords from the tag line, if any.
	Tags []string
}

func (HelpBlock) isEvent() {}
