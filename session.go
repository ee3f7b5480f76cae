// Package mudterm implements a MUD client session: a telnet/GMCP
// connection whose incoming byte stream is reassembled into styled lines,
// classified into structured events, and retained in a bounded scrollback,
// all driven by a single event loop goroutine.
package mudterm

import (
	"context"
	"errors"
	"io"
	"net"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/moodclient/mudterm/classify"
	"github.com/moodclient/mudterm/config"
	"github.com/moodclient/mudterm/scrollback"
	"github.com/moodclient/mudterm/style"
	"github.com/moodclient/mudterm/telnet"
)

// SessionState tracks where the session is in its lifecycle. States only
// move forward; a fatal socket error at any state jumps straight to
// StateClosed.
type SessionState byte

const (
	StateConnecting SessionState = iota
	StateNegotiating
	StateAuthenticating
	StateActive
	StateClosing
	StateClosed
)

func (s SessionState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateNegotiating:
		return "negotiating"
	case StateAuthenticating:
		return "authenticating"
	case StateActive:
		return "active"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// StateTransition is delivered to state change hooks.
type StateTransition struct {
	From SessionState
	To   SessionState
}

// closeTimeout bounds the graceful teardown: on-exit hooks get this long
// to reach the wire before the socket is force-closed.
const closeTimeout = 2 * time.Second

// tickInterval drives the overlay timers.
const tickInterval = 250 * time.Millisecond

// SessionConfig carries everything a Session needs besides the connection
// itself.
type SessionConfig struct {
	// Config is the full client configuration, including patterns, timers,
	// hooks, and the login profile.
	Config config.Config

	// CharsetName selects the text encoding, defaulting to UTF-8.
	CharsetName string

	// ClientName and ClientVersion identify the client in the GMCP
	// Core.Hello handshake.
	ClientName    string
	ClientVersion string

	EventHooks EventHooks
}

// Session is one connection to a MUD server. All session state is mutated
// from the event loop goroutine only; event hooks fire from that goroutine
// and must not block.
type Session struct {
	reader io.Reader
	writer io.Writer
	closer io.Closer
	conn   net.Conn

	cfg           config.Config
	clientName    string
	clientVersion string

	charset       *telnet.Charset
	negotiator    *telnet.Negotiator
	lines         telnet.LineBuffer
	classifier    *classify.Classifier
	store         *scrollback.Store
	gmcpState     *telnet.GMCPState
	info          *InfoTicker
	conversations *ConversationOverlay
	pump          *sessionEventPump

	outputHooks          *EventPublisher[classify.Event]
	gmcpHooks            *EventPublisher[telnet.Message]
	incomingCommandHooks *EventPublisher[telnet.Command]
	outboundCommandHooks *EventPublisher[telnet.Command]
	outboundTextHooks    *EventPublisher[string]
	encounteredErrHooks  *EventPublisher[error]
	stateChangeHooks     *EventPublisher[StateTransition]

	stateLock sync.Mutex
	state     SessionState

	historyShow scrollback.Kind

	sentUsername  bool
	sentPassword  bool
	prevEchoOff   bool
	postLoginSent bool
	writeFailed   bool
	closeOnce     sync.Once
	exitErr       error
}

// NewSession builds a session over an established connection. Nothing is
// read or written until Run is called.
func NewSession(conn net.Conn, sessionConfig SessionConfig) (*Session, error) {
	session, err := NewSessionFromPipes(conn, conn, conn, sessionConfig)
	if err != nil {
		return nil, err
	}
	session.conn = conn
	return session, nil
}

// NewSessionFromPipes builds a session over separate reader and writer
// streams, mostly for tests. closer may be nil.
func NewSessionFromPipes(reader io.Reader, writer io.Writer, closer io.Closer, sessionConfig SessionConfig) (*Session, error) {
	charsetName := sessionConfig.CharsetName
	if charsetName == "" {
		charsetName = "UTF-8"
	}
	charset, err := telnet.NewCharset(charsetName)
	if err != nil {
		return nil, err
	}

	clientName := sessionConfig.ClientName
	if clientName == "" {
		clientName = "mudterm"
	}
	clientVersion := sessionConfig.ClientVersion
	if clientVersion == "" {
		clientVersion = "0.1.0"
	}

	cfg := sessionConfig.Config

	classifier, err := classify.New(cfg.ClassifyPatterns(), classify.WithRoomCaptureDisabled())
	if err != nil {
		return nil, err
	}

	capacity := cfg.UI.MaxOutputLines
	if capacity <= 0 {
		capacity = 5000
	}

	session := &Session{
		reader:        reader,
		writer:        writer,
		closer:        closer,
		cfg:           cfg,
		clientName:    clientName,
		clientVersion: clientVersion,

		charset:       charset,
		negotiator:    telnet.NewNegotiator(),
		classifier:    classifier,
		store:         scrollback.NewStore(capacity),
		gmcpState:     telnet.NewGMCPState(),
		info:          NewInfoTicker(cfg.Timers.Info.MinDisplay, cfg.Timers.Info.AutoHide, cfg.Timers.Info.MaxHistory),
		conversations: NewConversationOverlay(cfg.Timers.Conversation.AutoClose),
		pump:          newEventPump(),

		outputHooks:          NewPublisher(sessionConfig.EventHooks.Output),
		gmcpHooks:            NewPublisher(sessionConfig.EventHooks.GMCP),
		incomingCommandHooks: NewPublisher(sessionConfig.EventHooks.IncomingCommand),
		outboundCommandHooks: NewPublisher(sessionConfig.EventHooks.OutboundCommand),
		outboundTextHooks:    NewPublisher(sessionConfig.EventHooks.OutboundText),
		encounteredErrHooks:  NewPublisher(sessionConfig.EventHooks.EncounteredError),
		stateChangeHooks:     NewPublisher(sessionConfig.EventHooks.StateChange),

		state:       StateConnecting,
		historyShow: historyKindsFromConfig(cfg.UI.History),
	}

	return session, nil
}

func historyKindsFromConfig(h config.History) scrollback.Kind {
	var kinds scrollback.Kind
	if h.Conversations {
		kinds |= scrollback.KindConversation
	}
	if h.Help {
		kinds |= scrollback.KindHelp
	}
	if h.Maps {
		kinds |= scrollback.KindMap
	}
	if h.Info {
		kinds |= scrollback.KindInfo
	}
	return kinds
}

// Run drives the session until the connection closes, a fatal error
// occurs, or the context is cancelled. It returns the fatal error, or nil
// on a clean shutdown.
func (s *Session) Run(ctx context.Context) error {
	s.setState(StateNegotiating)

	// Request GMCP before the server says anything.
	for _, command := range s.negotiator.RequestGMCP() {
		s.sendCommand(command)
	}

	// Without credentials there is no login prompt to wait for.
	if s.cfg.Profile.Username == "" {
		s.setState(StateAuthenticating)
	}

	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		s.readLoop()
		return nil
	})
	group.Go(func() error {
		s.tickLoop(groupCtx)
		return nil
	})

	s.pump.SessionLoop(ctx, s)

	// Unblock the reader if it is still parked in a socket read.
	s.closeTransport()
	_ = group.Wait()

	if s.State() != StateClosed {
		s.setState(StateClosed)
	}

	return s.exitErr
}

// SendLine queues one line of user input. Safe to call from any
// goroutine.
func (s *Session) SendLine(line string) {
	s.pump.EncounteredUserLine(line)
}

// Close requests a graceful shutdown: on-exit hooks are sent best-effort
// and the socket is closed within the teardown timeout. Safe to call from
// any goroutine.
func (s *Session) Close() {
	s.pump.EncounteredQuit()
}

// State returns the current lifecycle state.
func (s *Session) State() SessionState {
	s.stateLock.Lock()
	defer s.stateLock.Unlock()
	return s.state
}

// Scrollback exposes the session's event log. Access it from event hooks
// only; the store is not safe for concurrent use.
func (s *Session) Scrollback() *scrollback.Store {
	return s.store
}

// GMCP exposes the merged GMCP state. Access it from event hooks only.
func (s *Session) GMCP() *telnet.GMCPState {
	return s.gmcpState
}

// Info exposes the info ticker. Access it from event hooks only.
func (s *Session) Info() *InfoTicker {
	return s.info
}

// Conversations exposes the speech overlay. Access it from event hooks
// only.
func (s *Session) Conversations() *ConversationOverlay {
	return s.conversations
}

// Room returns the current merged room snapshot. Access from event hooks
// only.
func (s *Session) Room() classify.MapBlock {
	return s.classifier.Room()
}

// EchoSuppressed reports password mode. Access from event hooks only.
func (s *Session) EchoSuppressed() bool {
	return s.negotiator.EchoSuppressed()
}

// HistoryView returns a page of scrollback filtered to plain output plus
// the content kinds enabled for history display. Access from event hooks
// only.
func (s *Session) HistoryView(offset, pageSize int) []scrollback.Entry {
	return s.store.View(offset, pageSize, scrollback.KindOutput|s.historyShow)
}

// RegisterOutputHook will register an event to be called for every
// classified output event.
func (s *Session) RegisterOutputHook(hook OutputHandler) {
	s.outputHooks.Register(EventHook[classify.Event](hook))
}

// RegisterGMCPHook will register an event to be called for every decoded
// GMCP message.
func (s *Session) RegisterGMCPHook(hook GMCPHandler) {
	s.gmcpHooks.Register(EventHook[telnet.Message](hook))
}

// RegisterIncomingCommandHook will register an event to be called when a
// telnet command arrives from the server. This is primarily useful for
// debug logging.
func (s *Session) RegisterIncomingCommandHook(hook CommandHandler) {
	s.incomingCommandHooks.Register(EventHook[telnet.Command](hook))
}

// RegisterOutboundCommandHook will register an event to be called when a
// command has been sent. This is primarily useful for debug logging.
func (s *Session) RegisterOutboundCommandHook(hook CommandHandler) {
	s.outboundCommandHooks.Register(EventHook[telnet.Command](hook))
}

// RegisterOutboundTextHook will register an event to be called when a line
// of text has been sent. This is primarily useful for debug logging.
func (s *Session) RegisterOutboundTextHook(hook TextHandler) {
	s.outboundTextHooks.Register(EventHook[string](hook))
}

// RegisterEncounteredErrorHook will register an event to be called when the
// session encounters an error it recovers from, or a fatal error just
// before teardown.
func (s *Session) RegisterEncounteredErrorHook(hook ErrorHandler) {
	s.encounteredErrHooks.Register(EventHook[error](hook))
}

// RegisterStateChangeHook will register an event to be called on every
// lifecycle state transition.
func (s *Session) RegisterStateChangeHook(hook StateHandler) {
	s.stateChangeHooks.Register(EventHook[StateTransition](hook))
}

func (s *Session) setState(newState SessionState) {
	s.stateLock.Lock()
	oldState := s.state
	s.state = newState
	s.stateLock.Unlock()

	if oldState != newState {
		s.stateChangeHooks.Fire(s, StateTransition{From: oldState, To: newState})
	}
}

func (s *Session) readLoop() {
	scanner := telnet.NewScanner(s.charset, s.reader)

	for scanner.Scan() {
		if err := scanner.Err(); err != nil {
			s.pump.EncounteredProtocolError(err)
		}
		if token := scanner.Token(); token != nil {
			s.pump.EncounteredToken(token)
		}
	}

	err := scanner.Err()
	if err == nil {
		err = io.EOF
	}
	s.pump.EncounteredFatalError(err)
}

func (s *Session) tickLoop(ctx context.Context) {
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	for {
		select {
		case now := <-ticker.C:
			s.pump.EncounteredTick(now)
		case <-ctx.Done():
			return
		case <-s.pump.done:
			return
		}
	}
}

func (s *Session) encounteredToken(token telnet.Token) {
	switch token := token.(type) {
	case telnet.TextToken:
		s.handleText(string(token))
	case telnet.PromptToken:
		s.handlePrompt()
	case telnet.CommandToken:
		s.handleCommand(token.Command)
	}
}

func (s *Session) handleText(text string) {
	s.lines.Feed(text, s.routeLine)

	if s.State() == StateNegotiating && s.store.Len() > 0 {
		s.setState(StateAuthenticating)
	}

	// Auto-login: the username goes out once the server has said anything
	// at all.
	if s.cfg.Profile.Username != "" && !s.sentUsername && s.store.Len() > 0 {
		s.sendLine(s.cfg.Profile.Username)
		s.sentUsername = true
	}
}

func (s *Session) handlePrompt() {
	pending := s.lines.TakePending()
	if pending == "" {
		return
	}
	s.dispatch(s.classifier.Prompt(pending))
}

func (s *Session) handleCommand(command telnet.Command) {
	s.incomingCommandHooks.Fire(s, command)

	negotiation, err := s.negotiator.Process(command)
	if err != nil {
		// Undecodable GMCP body: drop the message, keep the session.
		s.encounteredProtocolError(err)
	}

	for _, reply := range negotiation.Replies {
		s.sendCommand(reply)
	}

	if negotiation.GMCPActivated {
		s.sendGMCPHandshake()
	}

	if negotiation.GMCP != nil && err == nil {
		s.applyGMCP(*negotiation.GMCP)
	}

	s.checkEcho()
}

// checkEcho sends the profile password the moment the server turns echo
// off, confirming it is actually asking for a password.
func (s *Session) checkEcho() {
	echoOff := s.negotiator.EchoSuppressed()
	if echoOff && !s.prevEchoOff &&
		s.sentUsername && !s.sentPassword && s.cfg.Profile.Password != "" {
		s.sendLine(s.cfg.Profile.Password)
		s.sentPassword = true

		if s.State() == StateAuthenticating {
			s.setState(StateActive)
		}
	}
	s.prevEchoOff = echoOff
}

func (s *Session) applyGMCP(message telnet.Message) {
	s.gmcpState.Apply(message)
	s.gmcpHooks.Fire(s, message)

	// First vitals data doubles as the login-complete signal: enable map
	// capture before running the post-login commands so the initial room
	// output gets classified.
	if !s.postLoginSent && len(s.gmcpState.Vitals()) > 0 {
		s.postLoginSent = true
		s.classifier.EnableRoomCapture()

		for _, command := range s.cfg.Hooks.PostLogin {
			s.sendLine(command)
		}

		if state := s.State(); state == StateNegotiating || state == StateAuthenticating {
			s.setState(StateActive)
		}
	}
}

func (s *Session) routeLine(line string) {
	for _, event := range s.classifier.Feed(line) {
		s.dispatch(event)
	}
}

func (s *Session) dispatch(event classify.Event) {
	s.store.Append(event)

	switch typed := event.(type) {
	case classify.ConversationLine:
		s.conversations.Add(typed)
	case classify.InfoMessage:
		s.info.Add(typed)
	}

	s.outputHooks.Fire(s, event)
}

func (s *Session) encounteredTick(now time.Time) {
	s.info.Tick(now)
	s.conversations.Tick(now)
}

func (s *Session) encounteredUserLine(line string) {
	trimmed := strings.TrimSpace(strings.TrimRight(line, "\n"))
	lower := strings.ToLower(trimmed)

	switch {
	case lower == "/quit":
		s.beginClose()
	case lower == "/clear":
		s.store.Clear()
		s.systemMessage("Output cleared")
	case lower == "/info":
		s.showInfoHistory()
	case strings.HasPrefix(lower, "/history"):
		s.handleHistoryCommand(trimmed)
	default:
		s.sendLine(strings.TrimRight(line, "\n"))
	}
}

func (s *Session) showInfoHistory() {
	history := s.info.History()
	if len(history) == 0 {
		s.systemMessage("No info messages yet")
		return
	}
	for _, message := range history {
		s.systemMessage(message.Timestamp.Format("15:04:05") + "  " + message.Text)
	}
}

var historyKindNames = map[string]scrollback.Kind{
	"conversations": scrollback.KindConversation,
	"conversation":  scrollback.KindConversation,
	"conv":          scrollback.KindConversation,
	"help":          scrollback.KindHelp,
	"maps":          scrollback.KindMap,
	"map":           scrollback.KindMap,
	"info":          scrollback.KindInfo,
}

func (s *Session) handleHistoryCommand(line string) {
	parts := strings.Fields(line)
	if len(parts) == 1 {
		s.systemMessage("History visibility: " + s.historySettingsText())
		return
	}

	kind, known := historyKindNames[strings.ToLower(parts[1])]
	if !known {
		s.systemMessage("Unknown type '" + parts[1] + "'. Valid: conversations, help, maps, info")
		return
	}

	if len(parts) >= 3 {
		switch strings.ToLower(parts[2]) {
		case "on", "true", "yes", "1":
			s.historyShow |= kind
		case "off", "false", "no", "0":
			s.historyShow &^= kind
		default:
			s.systemMessage("Invalid value '" + parts[2] + "'. Use on/off.")
			return
		}
	} else {
		s.historyShow ^= kind
	}

	state := "OFF"
	if s.historyShow&kind != 0 {
		state = "ON"
	}
	s.systemMessage("History " + strings.ToLower(parts[1]) + ": " + state)
}

func (s *Session) historySettingsText() string {
	setting := func(kind scrollback.Kind) string {
		if s.historyShow&kind != 0 {
			return "on"
		}
		return "off"
	}
	return "conversations=" + setting(scrollback.KindConversation) +
		" help=" + setting(scrollback.KindHelp) +
		" maps=" + setting(scrollback.KindMap) +
		" info=" + setting(scrollback.KindInfo)
}

// systemMessage injects a client-generated line into the output stream.
func (s *Session) systemMessage(text string) {
	s.dispatch(classify.OutputLine{
		Segments: []style.Segment{{Text: text, Style: style.DefaultStyle()}},
		Plain:    text,
		Raw:      text,
	})
}

func (s *Session) sendGMCPHandshake() {
	commands, err := telnet.HandshakeCommands(s.clientName, s.clientVersion, s.cfg.GMCP.Subscriptions)
	if err != nil {
		s.encounteredProtocolError(err)
		return
	}
	for _, command := range commands {
		s.sendCommand(command)
	}
}

func (s *Session) sendCommand(command telnet.Command) {
	s.write(command.Bytes())
	s.outboundCommandHooks.Fire(s, command)
}

func (s *Session) sendLine(line string) {
	encoded, err := s.charset.Encode(line)
	if err != nil {
		s.encounteredProtocolError(err)
		return
	}

	data := telnet.EscapeText(encoded)
	data = append(data, '\r', '\n')
	s.write(data)

	s.outboundTextHooks.Fire(s, line)
}

func (s *Session) write(data []byte) {
	if s.writeFailed || s.writer == nil {
		return
	}

	if _, err := s.writer.Write(data); err != nil {
		s.writeFailed = true
		if state := s.State(); state != StateClosing && state != StateClosed {
			s.encounteredFatalError(err)
		}
	}
}

func (s *Session) encounteredProtocolError(err error) {
	s.encounteredErrHooks.Fire(s, err)
}

func (s *Session) encounteredFatalError(err error) {
	if state := s.State(); state == StateClosing || state == StateClosed {
		// Teardown already closed the transport; the reader's wake-up error
		// is not news.
		return
	}

	if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) {
		// Remote disconnect or our own teardown: a clean ending.
		s.beginClose()
		return
	}

	if s.exitErr == nil {
		s.exitErr = err
	}
	s.encounteredErrHooks.Fire(s, err)
	s.beginClose()
}

// beginClose runs the graceful teardown: on-exit hooks go out best-effort
// under a write deadline, then the transport closes.
func (s *Session) beginClose() {
	if state := s.State(); state == StateClosing || state == StateClosed {
		return
	}
	s.setState(StateClosing)

	if s.conn != nil {
		_ = s.conn.SetWriteDeadline(time.Now().Add(closeTimeout))
	}
	for _, command := range s.cfg.Hooks.OnExit {
		s.sendLine(command)
	}

	s.closeTransport()
	s.setState(StateClosed)
}

func (s *Session) closeTransport() {
	s.closeOnce.Do(func() {
		if s.closer != nil {
			_ = s.closer.Close()
		}
	})
}
