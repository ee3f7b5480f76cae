package mudterm

import (
	"context"
	"time"

	"github.com/moodclient/mudterm/telnet"
)

type eventType byte

const (
	eventUnknown eventType = iota
	eventFatalError
	eventProtocolError
	eventToken
	eventUserLine
	eventTick
	eventQuit
)

type eventsTransport struct {
	eventType eventType
	err       error
	token     telnet.Token
	line      string
	now       time.Time
}

// sessionEventPump is the session's single serialization point.  The socket
// reader, the keyboard, and the timers all post here, and every mutation of
// session state happens on the goroutine draining the channel.
type sessionEventPump struct {
	events chan eventsTransport
	done   chan struct{}
}

func newEventPump() *sessionEventPump {
	return &sessionEventPump{
		events: make(chan eventsTransport, 100),
		done:   make(chan struct{}),
	}
}

func (p *sessionEventPump) processEvent(session *Session, event eventsTransport) {
	switch event.eventType {
	case eventFatalError:
		session.encounteredFatalError(event.err)
	case eventProtocolError:
		session.encounteredProtocolError(event.err)
	case eventToken:
		session.encounteredToken(event.token)
	case eventUserLine:
		session.encounteredUserLine(event.line)
	case eventTick:
		session.encounteredTick(event.now)
	case eventQuit:
		session.beginClose()
	default:
		panic("invalid event")
	}
}

func (p *sessionEventPump) loopCleanup(session *Session) {
	// Signal posters to stop, then drain whatever is already queued so no
	// received byte is silently dropped.
	close(p.done)

	for {
		select {
		case ev := <-p.events:
			p.processEvent(session, ev)
		default:
			return
		}
	}
}

// SessionLoop drains events until the context is cancelled or the session
// reaches the closed state.
func (p *sessionEventPump) SessionLoop(ctx context.Context, session *Session) {
	defer p.loopCleanup(session)

	for {
		select {
		case ev := <-p.events:
			p.processEvent(session, ev)

			if session.State() == StateClosed {
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

// post delivers an event unless the loop has already shut down.
func (p *sessionEventPump) post(ev eventsTransport) {
	select {
	case p.events <- ev:
	case <-p.done:
	}
}

func (p *sessionEventPump) EncounteredFatalError(err error) {
	p.post(eventsTransport{eventType: eventFatalError, err: err})
}

func (p *sessionEventPump) EncounteredProtocolError(err error) {
	p.post(eventsTransport{eventType: eventProtocolError, err: err})
}

func (p *sessionEventPump) EncounteredToken(token telnet.Token) {
	p.post(eventsTransport{eventType: eventToken, token: token})
}

func (p *sessionEventPump) EncounteredUserLine(line string) {
	p.post(eventsTransport{eventType: eventUserLine, line: line})
}

func (p *sessionEventPump) EncounteredTick(now time.Time) {
	p.post(eventsTransport{eventType: eventTick, now: now})
}

func (p *sessionEventPump) EncounteredQuit() {
	p.post(eventsTransport{eventType: eventQuit})
}
