package telnet

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Message is a single decoded GMCP message: a dot-separated package path and
// a decoded JSON payload. Messages are immutable values.
type Message struct {
	// Package is the lowercased package path, e.g. "char.vitals".
	Package string
	// Data is the decoded JSON body: a map, slice, string, number, bool, or
	// nil when the message had no body.
	Data any
	// Raw preserves the payload text as received, for trace logging.
	Raw string
}

// DecodeMessage parses the UTF-8 payload of a GMCP subnegotiation, which has
// the form "<package.path> <json-body>" with the body optional. A body that
// fails to parse as JSON is a recoverable error: the message is returned
// with Data nil and the caller drops it.
func DecodeMessage(payload []byte) (Message, error) {
	text := string(payload)

	space := strings.IndexByte(text, ' ')
	if space < 0 {
		return Message{Package: strings.ToLower(strings.TrimSpace(text)), Raw: text}, nil
	}

	message := Message{
		Package: strings.ToLower(strings.TrimSpace(text[:space])),
		Raw:     text,
	}

	body := strings.TrimSpace(text[space+1:])
	if body == "" {
		return message, nil
	}

	if err := json.Unmarshal([]byte(body), &message.Data); err != nil {
		return message, fmt.Errorf("gmcp %s: undecodable body: %w", message.Package, err)
	}

	return message, nil
}

// GMCPCommand builds the subnegotiation command carrying one outbound GMCP
// message. body may be empty for bare package messages.
func GMCPCommand(packagePath string, body string) Command {
	payload := packagePath
	if body != "" {
		payload = packagePath + " " + body
	}

	return Command{
		OpCode:         SB,
		Option:         OptionGMCP,
		Subnegotiation: []byte(payload),
	}
}

// HandshakeCommands builds the GMCP greeting sent after the option
// activates: Core.Hello identifying the client, then Core.Supports.Set
// naming every subscribed package.
func HandshakeCommands(clientName, clientVersion string, subscriptions []string) ([]Command, error) {
	hello, err := json.Marshal(map[string]string{
		"client":  clientName,
		"version": clientVersion,
	})
	if err != nil {
		return nil, err
	}

	supports, err := json.Marshal(subscriptions)
	if err != nil {
		return nil, err
	}

	return []Command{
		GMCPCommand("Core.Hello", string(hello)),
		GMCPCommand("Core.Supports.Set", string(supports)),
	}, nil
}

// GMCPState merges incoming messages into a per-package key/value store so
// consumers can read the latest vitals/status snapshot without replaying the
// stream.
type GMCPState struct {
	packages map[string]any
}

func NewGMCPState() *GMCPState {
	return &GMCPState{packages: make(map[string]any)}
}

// Apply merges a message into the store. Map payloads merge key-by-key over
// the existing package state; anything else replaces it.
func (s *GMCPState) Apply(m Message) {
	data, isMap := m.Data.(map[string]any)
	if !isMap {
		s.packages[m.Package] = m.Data
		return
	}

	existing, hasExisting := s.packages[m.Package].(map[string]any)
	if !hasExisting {
		existing = make(map[string]any, len(data))
		s.packages[m.Package] = existing
	}
	for key, value := range data {
		existing[key] = value
	}
}

// Package returns the current merged state for a package path, or nil.
func (s *GMCPState) Package(packagePath string) any {
	return s.packages[strings.ToLower(packagePath)]
}

// Vitals returns the merged char.vitals map, or nil before any arrive. The
// session uses a first non-nil result as its login-complete signal.
func (s *GMCPState) Vitals() map[string]any {
	vitals, _ := s.packages["char.vitals"].(map[string]any)
	return vitals
}

// Status returns the merged char.status map, or nil.
func (s *GMCPState) Status() map[string]any {
	status, _ := s.packages["char.status"].(map[string]any)
	return status
}
