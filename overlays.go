package mudterm

import (
	"fmt"
	"time"

	"github.com/moodclient/mudterm/classify"
)

// InfoTicker queues info channel messages for a news-ticker display.  A
// message stays up for at least the minimum display time before the next
// queued one replaces it, and the ticker hides itself once the last message
// has been up long enough with nothing queued.
type InfoTicker struct {
	minDisplay time.Duration
	autoHide   time.Duration
	maxHistory int

	history      []classify.InfoMessage
	current      *classify.InfoMessage
	queue        []classify.InfoMessage
	displaySince time.Time
}

// NewInfoTicker builds a ticker from the configured timer values, which are
// in seconds.
func NewInfoTicker(minDisplaySeconds, autoHideSeconds float64, maxHistory int) *InfoTicker {
	return &InfoTicker{
		minDisplay: time.Duration(minDisplaySeconds * float64(time.Second)),
		autoHide:   time.Duration(autoHideSeconds * float64(time.Second)),
		maxHistory: maxHistory,
	}
}

// Add records a message in history and either shows it immediately or
// queues it behind the current one.
func (t *InfoTicker) Add(message classify.InfoMessage) {
	t.history = append(t.history, message)
	if t.maxHistory > 0 && len(t.history) > t.maxHistory {
		t.history = append([]classify.InfoMessage(nil), t.history[len(t.history)-t.maxHistory:]...)
	}

	if t.current == nil {
		t.show(message, message.Timestamp)
		return
	}
	t.queue = append(t.queue, message)
}

// Tick advances the queue or hides the ticker.  Called from the session's
// timer event.
func (t *InfoTicker) Tick(now time.Time) {
	if t.current == nil {
		return
	}

	elapsed := now.Sub(t.displaySince)
	switch {
	case len(t.queue) > 0 && elapsed >= t.minDisplay:
		next := t.queue[0]
		t.queue = t.queue[1:]
		t.show(next, now)
	case len(t.queue) == 0 && elapsed >= t.autoHide:
		t.current = nil
	}
}

// show puts a message on display. The minimum-display and auto-hide
// windows run from the moment it is shown, not from its arrival, so time
// spent queued never eats into its screen time.
func (t *InfoTicker) show(message classify.InfoMessage, shownAt time.Time) {
	snapshot := message
	t.current = &snapshot
	t.displaySince = shownAt
}

// Current returns the message on display, or nil when the ticker is hidden.
func (t *InfoTicker) Current() *classify.InfoMessage {
	return t.current
}

// Visible reports whether a message is on display.
func (t *InfoTicker) Visible() bool {
	return t.current != nil
}

// History returns the retained messages, oldest first.
func (t *InfoTicker) History() []classify.InfoMessage {
	return append([]classify.InfoMessage(nil), t.history...)
}

// ConversationOverlay queues completed speech events for an overlay that
// the user pages through.  New speech while the overlay is already up is
// queued rather than replacing what the user is reading.
type ConversationOverlay struct {
	autoClose time.Duration

	entries    []classify.ConversationLine
	viewIndex  int
	visible    bool
	lastSpeech time.Time
}

// NewConversationOverlay builds an overlay with the configured auto-close
// timeout in seconds.
func NewConversationOverlay(autoCloseSeconds float64) *ConversationOverlay {
	return &ConversationOverlay{
		autoClose: time.Duration(autoCloseSeconds * float64(time.Second)),
	}
}

// Add queues one completed speech event.
func (o *ConversationOverlay) Add(entry classify.ConversationLine) {
	o.entries = append(o.entries, entry)
	o.lastSpeech = entry.Timestamp
	if !o.visible {
		o.visible = true
		o.viewIndex = len(o.entries) - 1
	}
}

// Visible reports whether the overlay is up.
func (o *ConversationOverlay) Visible() bool {
	return o.visible
}

// Current returns the entry under the view cursor, or nil.
func (o *ConversationOverlay) Current() *classify.ConversationLine {
	if len(o.entries) == 0 || o.viewIndex < 0 || o.viewIndex >= len(o.entries) {
		return nil
	}
	entry := o.entries[o.viewIndex]
	return &entry
}

// HasUnread reports whether speech is queued beyond the view cursor.
func (o *ConversationOverlay) HasUnread() bool {
	return o.viewIndex < len(o.entries)-1
}

// QueueStatus describes the cursor position, e.g. "2/5".
func (o *ConversationOverlay) QueueStatus() string {
	if len(o.entries) == 0 {
		return ""
	}
	return fmt.Sprintf("%d/%d", o.viewIndex+1, len(o.entries))
}

// NavigateNext advances to the next queued entry, or dismisses the overlay
// when the user is already on the last one.
func (o *ConversationOverlay) NavigateNext(now time.Time) {
	if len(o.entries) == 0 {
		return
	}
	if o.viewIndex < len(o.entries)-1 {
		o.viewIndex++
		o.lastSpeech = now
		return
	}
	o.Dismiss()
}

// NavigatePrev moves back one entry.
func (o *ConversationOverlay) NavigatePrev(now time.Time) {
	if len(o.entries) == 0 || o.viewIndex == 0 {
		return
	}
	o.viewIndex--
	o.lastSpeech = now
}

// Dismiss closes the overlay and drops its queue.
func (o *ConversationOverlay) Dismiss() {
	o.visible = false
	o.entries = nil
	o.viewIndex = 0
}

// Tick closes the overlay once the last speech is old enough and the user
// has nothing left unread.
func (o *ConversationOverlay) Tick(now time.Time) {
	if !o.visible {
		return
	}
	if now.Sub(o.lastSpeech) >= o.autoClose && !o.HasUnread() {
		o.Dismiss()
	}
}
