package mudterm

import (
	"sync"

	"github.com/moodclient/mudterm/classify"
	"github.com/moodclient/mudterm/telnet"
)

// EventHook is a type for function pointers that are registered to receive events
type EventHook[T any] func(session *Session, data T)

// EventPublisher is a type used to register and fire arbitrary events
type EventPublisher[U any] struct {
	lock sync.Mutex

	registeredHooks []EventHook[U]
}

// NewPublisher creates a new EventPublisher for a particular EventHook. A slice of
// hooks can be passed in- in which case the hooks will be registered to receive events
// from the publisher.  Otherwise, nil can be passed in.
func NewPublisher[U any, T ~func(session *Session, data U)](hooks []T) *EventPublisher[U] {
	var convertedHooks []EventHook[U]

	for _, hook := range hooks {
		convertedHooks = append(convertedHooks, EventHook[U](hook))
	}

	return &EventPublisher[U]{
		registeredHooks: convertedHooks,
	}
}

// Register registers a single EventHook to receive events from this publisher.
func (e *EventPublisher[U]) Register(hook EventHook[U]) {
	e.lock.Lock()
	defer e.lock.Unlock()

	e.registeredHooks = append(e.registeredHooks, hook)
}

// Fire calls the event for all EventHook instances registered to this publisher with
// the provided parameters
func (e *EventPublisher[U]) Fire(session *Session, eventData U) {
	e.lock.Lock()
	defer e.lock.Unlock()

	for _, hook := range e.registeredHooks {
		hook(session, eventData)
	}
}

// ErrorHandler is an event hook type that receives errors
type ErrorHandler func(s *Session, err error)

// OutputHandler is an event hook type that receives classified output events
type OutputHandler func(s *Session, event classify.Event)

// GMCPHandler is an event hook type that receives decoded GMCP messages
type GMCPHandler func(s *Session, message telnet.Message)

// CommandHandler is an event hook type that receives telnet commands
type CommandHandler func(s *Session, command telnet.Command)

// TextHandler is an event hook type that receives raw text
type TextHandler func(s *Session, text string)

// StateHandler is an event hook type that receives session state transitions
type StateHandler func(s *Session, transition StateTransition)

// EventHooks is used to pass in a set of pre-registered event hooks to a
// Session when calling NewSession.  Hooks fire from the session's event loop
// goroutine; they must not block.
type EventHooks struct {
	EncounteredError []ErrorHandler
	Output           []OutputHandler
	GMCP             []GMCPHandler
	IncomingCommand  []CommandHandler
	OutboundCommand  []CommandHandler
	OutboundText     []TextHandler
	StateChange      []StateHandler
}
