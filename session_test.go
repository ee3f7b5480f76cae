package mudterm

import (
	"bytes"
	"context"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moodclient/mudterm/classify"
	"github.com/moodclient/mudterm/config"
	"github.com/moodclient/mudterm/scrollback"
	"github.com/moodclient/mudterm/telnet"
)

// newTestSession builds a session over an in-memory writer so event handling
// can be driven directly, without the pump or a live socket.
func newTestSession(t *testing.T, cfg config.Config) (*Session, *bytes.Buffer) {
	t.Helper()
	var out bytes.Buffer
	session, err := NewSessionFromPipes(strings.NewReader(""), &out, nil, SessionConfig{Config: cfg})
	require.NoError(t, err)
	return session, &out
}

func lastEntry(t *testing.T, session *Session) scrollback.Entry {
	t.Helper()
	entries := session.Scrollback().View(0, 1, scrollback.KindAll)
	require.Len(t, entries, 1)
	return entries[0]
}

func subnegotiation(payload string) telnet.Command {
	return telnet.Command{
		OpCode:         telnet.SB,
		Option:         telnet.OptionGMCP,
		Subnegotiation: []byte(payload),
	}
}

func TestSessionAutoLogin(t *testing.T) {
	cfg := config.Default()
	cfg.Profile = config.Profile{Username: "hero", Password: "hunter2"}
	session, out := newTestSession(t, cfg)

	// The username goes out once the server has produced a full line.
	session.encounteredToken(telnet.TextToken("Welcome adventurer\r\nName: "))
	assert.Contains(t, out.String(), "hero\r\n")
	assert.NotContains(t, out.String(), "hunter2")

	// The password waits for the echo-off signal.
	session.encounteredToken(telnet.CommandToken{Command: telnet.Command{OpCode: telnet.WILL, Option: telnet.OptionEcho}})
	sent := out.Bytes()
	assert.True(t, bytes.Contains(sent, []byte{telnet.IAC, telnet.DO, byte(telnet.OptionEcho)}))
	assert.Contains(t, string(sent), "hunter2\r\n")
}

func TestSessionNoCredentialsNoAutoLogin(t *testing.T) {
	session, out := newTestSession(t, config.Default())

	session.encounteredToken(telnet.TextToken("Welcome\r\n"))
	session.encounteredToken(telnet.CommandToken{Command: telnet.Command{OpCode: telnet.WILL, Option: telnet.OptionEcho}})

	assert.NotContains(t, out.String(), "\r\n")
}

func TestSessionGMCPHandshake(t *testing.T) {
	session, out := newTestSession(t, config.Default())

	session.encounteredToken(telnet.CommandToken{Command: telnet.Command{OpCode: telnet.DO, Option: telnet.OptionGMCP}})

	sent := out.String()
	assert.Contains(t, sent, `Core.Hello {"client":"mudterm","version":"0.1.0"}`)
	assert.Contains(t, sent, `Core.Supports.Set`)
	assert.Contains(t, sent, `char.vitals 1`)
}

func TestSessionPostLoginOnFirstVitals(t *testing.T) {
	session, out := newTestSession(t, config.Default())

	session.encounteredToken(telnet.CommandToken{Command: telnet.Command{OpCode: telnet.DO, Option: telnet.OptionGMCP}})

	// Map tags before login pass through as plain output.
	session.encounteredToken(telnet.TextToken("<MAPSTART>\r\n"))
	assert.Equal(t, scrollback.KindOutput, lastEntry(t, session).Kind)

	session.encounteredToken(telnet.CommandToken{Command: subnegotiation(`char.vitals {"hp":100,"maxhp":100}`)})

	assert.Contains(t, out.String(), "map\r\n")
	assert.Contains(t, out.String(), "look\r\n")
	assert.Equal(t, StateActive, session.State())
	assert.Equal(t, float64(100), session.GMCP().Vitals()["hp"])

	// Vitals arriving again do not repeat the post-login commands.
	before := out.Len()
	session.encounteredToken(telnet.CommandToken{Command: subnegotiation(`char.vitals {"hp":90}`)})
	assert.Equal(t, before, out.Len())

	// Map capture is live now.
	session.encounteredToken(telnet.TextToken("<MAPSTART>\r\nTown Square\r\n<MAPEND>\r\n"))
	assert.Equal(t, "Town Square", session.Room().RoomName)
}

func TestSessionPromptFlush(t *testing.T) {
	session, _ := newTestSession(t, config.Default())

	session.encounteredToken(telnet.TextToken("HP:100> "))
	assert.Equal(t, 0, session.Scrollback().Len())

	session.encounteredToken(telnet.PromptToken(telnet.GA))
	entry := lastEntry(t, session)
	line, isOutput := entry.Event.(classify.OutputLine)
	require.True(t, isOutput)
	assert.True(t, line.Prompt)
	assert.Equal(t, "HP:100> ", line.Plain)

	// An empty residual produces nothing.
	session.encounteredToken(telnet.PromptToken(telnet.GA))
	assert.Equal(t, 1, session.Scrollback().Len())
}

func TestSessionDispatchFeedsOverlays(t *testing.T) {
	session, _ := newTestSession(t, config.Default())

	session.encounteredToken(telnet.TextToken("INFO: Bob has arrived.\r\n"))
	require.True(t, session.Info().Visible())
	assert.Equal(t, "Bob has arrived.", session.Info().Current().Text)

	session.encounteredToken(telnet.TextToken("Bob says, \"hi there!\"\r\n"))
	require.True(t, session.Conversations().Visible())
	assert.Equal(t, "hi there!", session.Conversations().Current().Message)
}

func TestSessionUserLinePassthrough(t *testing.T) {
	session, out := newTestSession(t, config.Default())

	session.encounteredUserLine("say hello\n")
	assert.Equal(t, "say hello\r\n", out.String())
}

func TestSessionClearCommand(t *testing.T) {
	session, out := newTestSession(t, config.Default())

	session.encounteredToken(telnet.TextToken("line one\r\nline two\r\n"))
	require.Equal(t, 2, session.Scrollback().Len())

	session.encounteredUserLine("/clear")
	assert.Equal(t, 1, session.Scrollback().Len())
	assert.Equal(t, "Output cleared", lastEntry(t, session).Event.(classify.OutputLine).Plain)
	assert.Empty(t, out.String())
}

func TestSessionHistoryCommand(t *testing.T) {
	session, _ := newTestSession(t, config.Default())

	session.encounteredUserLine("/history")
	status := lastEntry(t, session).Event.(classify.OutputLine).Plain
	assert.Contains(t, status, "conversations=on")
	assert.Contains(t, status, "maps=off")

	session.encounteredUserLine("/history maps on")
	assert.Contains(t, lastEntry(t, session).Event.(classify.OutputLine).Plain, "maps: ON")

	session.encounteredUserLine("/history conversations")
	assert.Contains(t, lastEntry(t, session).Event.(classify.OutputLine).Plain, "conversations: OFF")

	session.encounteredUserLine("/history bogus")
	assert.Contains(t, lastEntry(t, session).Event.(classify.OutputLine).Plain, "Unknown type")
}

func TestSessionHistoryViewHonorsToggles(t *testing.T) {
	session, _ := newTestSession(t, config.Default())

	session.encounteredToken(telnet.TextToken("plain line\r\nINFO: noise\r\nBob says, \"hi!\"\r\n"))

	// Defaults: conversations shown in history, info hidden.
	view := session.HistoryView(0, 10)
	require.Len(t, view, 2)
	assert.Equal(t, scrollback.KindOutput, view[0].Kind)
	assert.Equal(t, scrollback.KindConversation, view[1].Kind)

	session.encounteredUserLine("/history info on")
	view = session.HistoryView(0, 10)
	kinds := make([]scrollback.Kind, 0, len(view))
	for _, entry := range view {
		kinds = append(kinds, entry.Kind)
	}
	assert.Contains(t, kinds, scrollback.KindInfo)
}

func TestSessionInfoHistoryCommand(t *testing.T) {
	session, _ := newTestSession(t, config.Default())

	session.encounteredUserLine("/info")
	assert.Equal(t, "No info messages yet", lastEntry(t, session).Event.(classify.OutputLine).Plain)

	session.encounteredToken(telnet.TextToken("INFO: Bob has arrived.\r\n"))
	session.encounteredUserLine("/info")
	assert.Contains(t, lastEntry(t, session).Event.(classify.OutputLine).Plain, "Bob has arrived.")
}

func TestSessionQuitCommandRunsExitHooks(t *testing.T) {
	cfg := config.Default()
	cfg.Hooks.OnExit = []string{"quit"}
	session, out := newTestSession(t, cfg)

	session.encounteredUserLine("/quit")
	assert.Equal(t, StateClosed, session.State())
	assert.Equal(t, "quit\r\n", out.String())
}

func TestSessionOutboundIACEscaped(t *testing.T) {
	session, out := newTestSession(t, config.Default())

	session.sendLine("a�b")
	// The replacement rune encodes to UTF-8 bytes below 0xFF, so nothing
	// needs escaping; a raw 0xFF never reaches the charset layer unescaped.
	assert.Equal(t, "a�b\r\n", out.String())
}

func TestSessionRunLifecycle(t *testing.T) {
	clientConn, serverConn := net.Pipe()

	cfg := config.Default()
	cfg.Profile = config.Profile{Username: "hero", Password: "hunter2"}
	cfg.Hooks.OnExit = []string{"quit"}

	var receivedMu sync.Mutex
	var received []byte
	go func() {
		buffer := make([]byte, 1024)
		for {
			n, err := serverConn.Read(buffer)
			if n > 0 {
				receivedMu.Lock()
				received = append(received, buffer[:n]...)
				receivedMu.Unlock()
			}
			if err != nil {
				return
			}
		}
	}()

	var stateMu sync.Mutex
	var states []SessionState

	session, err := NewSession(clientConn, SessionConfig{
		Config: cfg,
		EventHooks: EventHooks{
			StateChange: []StateHandler{func(_ *Session, transition StateTransition) {
				stateMu.Lock()
				states = append(states, transition.To)
				stateMu.Unlock()
			}},
		},
	})
	require.NoError(t, err)

	runDone := make(chan error, 1)
	go func() { runDone <- session.Run(context.Background()) }()

	waitFor := func(want []byte) {
		require.Eventually(t, func() bool {
			receivedMu.Lock()
			defer receivedMu.Unlock()
			return bytes.Contains(received, want)
		}, 2*time.Second, 5*time.Millisecond, "waiting for %q", want)
	}
	send := func(data []byte) {
		_, err := serverConn.Write(data)
		require.NoError(t, err)
	}

	// GMCP is requested before the server says anything.
	waitFor([]byte{telnet.IAC, telnet.WILL, byte(telnet.OptionGMCP)})

	// Agreeing triggers the handshake, with no duplicate WILL.
	send([]byte{telnet.IAC, telnet.DO, byte(telnet.OptionGMCP)})
	waitFor([]byte("Core.Hello"))
	waitFor([]byte("Core.Supports.Set"))

	// First server text prompts the username.
	send([]byte("Welcome adventurer\r\nName: "))
	waitFor([]byte("hero\r\n"))

	// Echo-off prompts the password.
	send([]byte{telnet.IAC, telnet.WILL, byte(telnet.OptionEcho)})
	waitFor([]byte{telnet.IAC, telnet.DO, byte(telnet.OptionEcho)})
	waitFor([]byte("hunter2\r\n"))

	// First vitals data runs the post-login commands.
	vitals := []byte{telnet.IAC, telnet.SB, byte(telnet.OptionGMCP)}
	vitals = append(vitals, []byte(`char.vitals {"hp":100,"maxhp":100}`)...)
	vitals = append(vitals, telnet.IAC, telnet.SE)
	send(vitals)
	waitFor([]byte("map\r\n"))
	waitFor([]byte("look\r\n"))

	require.Eventually(t, func() bool {
		return session.State() == StateActive
	}, 2*time.Second, 5*time.Millisecond)

	// User input flows out through the pump.
	session.SendLine("say hello")
	waitFor([]byte("say hello\r\n"))

	// A server disconnect is a clean shutdown.
	require.NoError(t, serverConn.Close())

	select {
	case err := <-runDone:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("session did not shut down")
	}
	assert.Equal(t, StateClosed, session.State())

	stateMu.Lock()
	assert.Contains(t, states, StateNegotiating)
	assert.Contains(t, states, StateAuthenticating)
	assert.Contains(t, states, StateActive)
	assert.Contains(t, states, StateClosed)
	stateMu.Unlock()

	// Posting after shutdown never blocks or panics.
	session.SendLine("late")
	session.Close()
}

func TestSessionNoProfileAuthenticatesImmediately(t *testing.T) {
	clientConn, serverConn := net.Pipe()

	session, err := NewSession(clientConn, SessionConfig{Config: config.Default()})
	require.NoError(t, err)

	go func() {
		buffer := make([]byte, 256)
		for {
			if _, err := serverConn.Read(buffer); err != nil {
				return
			}
		}
	}()

	runDone := make(chan error, 1)
	go func() { runDone <- session.Run(context.Background()) }()

	// No credentials configured, so there is no login prompt to wait for.
	require.Eventually(t, func() bool {
		return session.State() == StateAuthenticating
	}, 2*time.Second, 5*time.Millisecond)

	require.NoError(t, serverConn.Close())
	select {
	case err := <-runDone:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("session did not shut down")
	}
}

func TestSessionCloseRequest(t *testing.T) {
	clientConn, serverConn := net.Pipe()

	session, err := NewSession(clientConn, SessionConfig{Config: config.Default()})
	require.NoError(t, err)

	go func() {
		buffer := make([]byte, 256)
		for {
			if _, err := serverConn.Read(buffer); err != nil {
				return
			}
		}
	}()

	runDone := make(chan error, 1)
	go func() { runDone <- session.Run(context.Background()) }()

	session.Close()

	select {
	case err := <-runDone:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("session did not shut down")
	}
	assert.Equal(t, StateClosed, session.State())
}
