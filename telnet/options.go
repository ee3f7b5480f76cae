package telnet

import (
	"strconv"
)

// OptionCode - each telnet option has a unique identification number between
// 0 and 255.
type OptionCode byte

// The closed set of options this client actually negotiates. Everything else
// is refused with WONT/DONT so the remote always gets a symmetric response.
const (
	// OptionEcho - RFC 857. A server activating ECHO on its side is telling
	// us it will handle echoing, which MUD servers use to signal password
	// mode (the client must stop echoing keystrokes locally).
	OptionEcho OptionCode = 1
	// OptionGMCP - Generic MUD Communication Protocol. JSON-over-telnet
	// carried in subnegotiation payloads.
	OptionGMCP OptionCode = 201
)

func (c OptionCode) String() string {
	switch c {
	case OptionEcho:
		return "ECHO"
	case OptionGMCP:
		return "GMCP"
	default:
		return "OPT(" + strconv.Itoa(int(c)) + ")"
	}
}

// OptionState tracks one side of a single option's negotiation.
type OptionState byte

const (
	// OptionInactive indicates the option is not currently active
	OptionInactive OptionState = iota
	// OptionRequested indicates we sent an activation request and have not
	// yet heard back
	OptionRequested
	// OptionActive indicates the option is active
	OptionActive
)

func (s OptionState) String() string {
	switch s {
	case OptionRequested:
		return "Requested"
	case OptionActive:
		return "Active"
	default:
		return "Inactive"
	}
}

// OptionSide distinguishes the two halves of an option negotiation: our side
// (DO/DONT received) and the remote's side (WILL/WONT received).
type OptionSide byte

const (
	SideLocal OptionSide = iota
	SideRemote
)

func (s OptionSide) String() string {
	if s == SideLocal {
		return "Local"
	}
	return "Remote"
}

type optionEntry struct {
	code        OptionCode
	allowLocal  bool
	allowRemote bool

	local  OptionState
	remote OptionState
}

// StateChange describes a single option transition observed by the
// negotiator, for protocol trace logging.
type StateChange struct {
	Option   OptionCode
	Side     OptionSide
	OldState OptionState
	NewState OptionState
}

// Negotiation is the outcome of feeding one command to the Negotiator.
type Negotiation struct {
	// Replies are commands that must be sent back to the remote.
	Replies []Command
	// Changes lists option state transitions caused by the command.
	Changes []StateChange
	// GMCPActivated is true the first time GMCP becomes active on either
	// side. The session uses it to send the Core.Hello handshake.
	GMCPActivated bool
	// GMCP carries the decoded message when the command was a GMCP
	// subnegotiation.
	GMCP *Message
}

// Negotiator drives the WILL/WONT/DO/DONT handshake over a closed table of
// known options. Unknown options are always refused rather than ignored.
// All mutation happens through Process, which the session calls from its
// single event loop goroutine.
type Negotiator struct {
	options map[OptionCode]*optionEntry

	echoSuppressed bool
	gmcpEnabled    bool
}

// NewNegotiator builds a negotiator supporting ECHO (remote side only, to
// detect password mode) and GMCP (both sides).
func NewNegotiator() *Negotiator {
	return &Negotiator{
		options: map[OptionCode]*optionEntry{
			OptionEcho: {code: OptionEcho, allowRemote: true},
			OptionGMCP: {code: OptionGMCP, allowLocal: true, allowRemote: true},
		},
	}
}

// EchoSuppressed is true while the server has ECHO active on its side,
// which MUD servers use to signal password entry.
func (n *Negotiator) EchoSuppressed() bool {
	return n.echoSuppressed
}

// GMCPEnabled is true once GMCP has been successfully negotiated.
func (n *Negotiator) GMCPEnabled() bool {
	return n.gmcpEnabled
}

// OptionStates returns a snapshot of the negotiation table for status
// display and trace logging.
func (n *Negotiator) OptionStates() map[OptionCode][2]OptionState {
	snapshot := make(map[OptionCode][2]OptionState, len(n.options))
	for code, entry := range n.options {
		snapshot[code] = [2]OptionState{entry.local, entry.remote}
	}
	return snapshot
}

// Process consumes one parsed command and returns the negotiation outcome.
// A returned error is always recoverable (an undecodable GMCP payload); the
// session logs it and continues.
func (n *Negotiator) Process(c Command) (Negotiation, error) {
	if c.OpCode == SB {
		return n.processSubnegotiation(c)
	}

	if c.OpCode != DO && c.OpCode != DONT && c.OpCode != WILL && c.OpCode != WONT {
		return Negotiation{}, nil
	}

	entry, known := n.options[c.Option]
	if !known {
		return n.refuse(c), nil
	}

	side := SideRemote
	oldState := entry.remote
	allowed := entry.allowRemote
	if c.isLocalNegotiation() {
		side = SideLocal
		oldState = entry.local
		allowed = entry.allowLocal
	}

	// WONT/DONT: deactivate if needed, no reply when already off.
	if !c.isActivateNegotiation() {
		if oldState == OptionInactive {
			return Negotiation{}, nil
		}
		return n.transition(entry, side, OptionInactive), nil
	}

	// WILL/DO for a known option.
	if oldState == OptionActive {
		return Negotiation{}, nil
	}

	if !allowed {
		return n.refuse(c), nil
	}

	result := n.transition(entry, side, OptionActive)
	if oldState == OptionInactive {
		// The remote initiated, so we owe them an acceptance. When the
		// state was Requested we already sent our half of the handshake.
		result.Replies = append(result.Replies, c.accept())
	}

	return result, nil
}

// RequestGMCP produces the activation request sent at connect time, before
// any server command arrives, and marks GMCP as requested on our side.
func (n *Negotiator) RequestGMCP() []Command {
	entry := n.options[OptionGMCP]
	if entry.local != OptionInactive {
		return nil
	}
	entry.local = OptionRequested
	return []Command{{OpCode: WILL, Option: OptionGMCP}}
}

func (n *Negotiator) refuse(c Command) Negotiation {
	if !c.isActivateNegotiation() {
		return Negotiation{}
	}
	return Negotiation{Replies: []Command{c.reject()}}
}

func (n *Negotiator) transition(entry *optionEntry, side OptionSide, newState OptionState) Negotiation {
	var oldState OptionState
	if side == SideLocal {
		oldState = entry.local
		entry.local = newState
	} else {
		oldState = entry.remote
		entry.remote = newState
	}

	result := Negotiation{
		Changes: []StateChange{{
			Option:   entry.code,
			Side:     side,
			OldState: oldState,
			NewState: newState,
		}},
	}

	switch entry.code {
	case OptionEcho:
		if side == SideRemote {
			n.echoSuppressed = newState == OptionActive
		}
	case OptionGMCP:
		wasEnabled := n.gmcpEnabled
		n.gmcpEnabled = entry.local == OptionActive || entry.remote == OptionActive
		if n.gmcpEnabled && !wasEnabled {
			result.GMCPActivated = true
		}
	}

	return result
}

func (n *Negotiator) processSubnegotiation(c Command) (Negotiation, error) {
	entry, known := n.options[c.Option]
	if !known {
		// Subnegotiation for an option we never agreed to: drop it.
		return Negotiation{}, nil
	}

	if entry.local != OptionActive && entry.remote != OptionActive {
		return Negotiation{}, nil
	}

	if entry.code != OptionGMCP {
		return Negotiation{}, nil
	}

	message, err := DecodeMessage(c.Subnegotiation)
	if err != nil {
		return Negotiation{}, err
	}

	return Negotiation{GMCP: &message}, nil
}
