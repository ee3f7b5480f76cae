package utils

import (
	"context"
	"log/slog"
	"sync/atomic"

	"github.com/moodclient/mudterm"
	"github.com/moodclient/mudterm/classify"
	"github.com/moodclient/mudterm/telnet"
)

const LevelNone slog.Level = -8

type DebugLogConfig struct {
	EncounteredErrorLevel slog.Level
	IncomingCommandLevel  slog.Level
	IncomingTextLevel     slog.Level
	OutboundCommandLevel  slog.Level
	OutboundTextLevel     slog.Level
	GMCPMessageLevel      slog.Level
	StateChangeLevel      slog.Level
}

// DebugLog taps a session's event hooks and writes a protocol trace to a
// structured logger. It can be toggled at runtime without re-registering
// hooks.
type DebugLog struct {
	logger  *slog.Logger
	config  DebugLogConfig
	enabled atomic.Bool
}

func NewDebugLog(session *mudterm.Session, logger *slog.Logger, config DebugLogConfig) *DebugLog {
	log := &DebugLog{logger: logger, config: config}
	log.enabled.Store(true)

	session.RegisterEncounteredErrorHook(log.logError)
	session.RegisterOutputHook(log.logOutput)
	session.RegisterGMCPHook(log.logGMCP)
	session.RegisterIncomingCommandHook(log.logIncomingCommand)
	session.RegisterOutboundCommandHook(log.logOutboundCommand)
	session.RegisterOutboundTextHook(log.logOutboundText)
	session.RegisterStateChangeHook(log.logStateChange)

	return log
}

// SetEnabled turns the trace on or off.
func (l *DebugLog) SetEnabled(enabled bool) {
	l.enabled.Store(enabled)
}

// Toggle flips the trace and returns the new state.
func (l *DebugLog) Toggle() bool {
	for {
		old := l.enabled.Load()
		if l.enabled.CompareAndSwap(old, !old) {
			return !old
		}
	}
}

// Enabled reports whether the trace is on.
func (l *DebugLog) Enabled() bool {
	return l.enabled.Load()
}

func (l *DebugLog) logError(session *mudterm.Session, err error) {
	if !l.enabled.Load() {
		return
	}
	l.logger.LogAttrs(context.Background(), l.config.EncounteredErrorLevel, "Encountered error", slog.Any("error", err))
}

func (l *DebugLog) logOutput(session *mudterm.Session, event classify.Event) {
	if !l.enabled.Load() {
		return
	}

	switch typed := event.(type) {
	case classify.OutputLine:
		l.logger.LogAttrs(context.Background(), l.config.IncomingTextLevel, "Received text",
			slog.String("contents", typed.Plain), slog.Bool("prompt", typed.Prompt))
	case classify.MapBlock:
		l.logger.LogAttrs(context.Background(), l.config.IncomingTextLevel, "Room update",
			slog.String("room", typed.RoomName), slog.String("coords", typed.Coords),
			slog.Int("mapLines", len(typed.Lines)))
	case classify.ConversationLine:
		l.logger.LogAttrs(context.Background(), l.config.IncomingTextLevel, "Speech",
			slog.String("speaker", typed.Speaker), slog.String("label", typed.Label),
			slog.String("message", typed.Message))
	case classify.InfoMessage:
		l.logger.LogAttrs(context.Background(), l.config.IncomingTextLevel, "Info",
			slog.String("text", typed.Text))
	case classify.HelpBlock:
		l.logger.LogAttrs(context.Background(), l.config.IncomingTextLevel, "Help",
			slog.String("title", typed.Title), slog.Int("bodyLines", len(typed.BodyLines)))
	}
}

func (l *DebugLog) logGMCP(session *mudterm.Session, message telnet.Message) {
	if !l.enabled.Load() {
		return
	}
	l.logger.LogAttrs(context.Background(), l.config.GMCPMessageLevel, "GMCP message",
		slog.String("package", message.Package), slog.String("raw", message.Raw))
}

func (l *DebugLog) logIncomingCommand(session *mudterm.Session, c telnet.Command) {
	if !l.enabled.Load() {
		return
	}
	l.logger.LogAttrs(context.Background(), l.config.IncomingCommandLevel, "Received command", slog.String("command", telnet.CommandString(c)))
}

func (l *DebugLog) logOutboundCommand(session *mudterm.Session, c telnet.Command) {
	if !l.enabled.Load() {
		return
	}
	l.logger.LogAttrs(context.Background(), l.config.OutboundCommandLevel, "Sent command", slog.String("command", telnet.CommandString(c)))
}

func (l *DebugLog) logOutboundText(session *mudterm.Session, text string) {
	if !l.enabled.Load() {
		return
	}
	l.logger.LogAttrs(context.Background(), l.config.OutboundTextLevel, "Sent text", slog.String("contents", text))
}

func (l *DebugLog) logStateChange(session *mudterm.Session, transition mudterm.StateTransition) {
	if !l.enabled.Load() {
		return
	}
	l.logger.LogAttrs(context.Background(), l.config.StateChangeLevel, "Session state change",
		slog.String("from", transition.From.String()),
		slog.String("to", transition.To.String()),
	)
}
