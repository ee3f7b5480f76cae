package telnet

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCommand(t *testing.T) {
	tests := []struct {
		name     string
		input    []byte
		expected Command
	}{
		{"do gmcp", []byte{IAC, DO, 201}, Command{OpCode: DO, Option: OptionGMCP}},
		{"will echo", []byte{IAC, WILL, 1}, Command{OpCode: WILL, Option: OptionEcho}},
		{"wont unknown", []byte{IAC, WONT, 31}, Command{OpCode: WONT, Option: OptionCode(31)}},
		{"go ahead", []byte{IAC, GA}, Command{OpCode: GA}},
		{"end of record", []byte{IAC, EOR}, Command{OpCode: EOR}},
		{"nop", []byte{IAC, NOP}, Command{OpCode: NOP}},
		{
			"subnegotiation",
			append(append([]byte{IAC, SB, 201}, []byte("char.vitals {}")...), IAC, SE),
			Command{OpCode: SB, Option: OptionGMCP, Subnegotiation: []byte("char.vitals {}")},
		},
		{
			"subnegotiation with escaped 255",
			[]byte{IAC, SB, 201, 'a', IAC, IAC, 'b', IAC, SE},
			Command{OpCode: SB, Option: OptionGMCP, Subnegotiation: []byte{'a', IAC, 'b'}},
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			command, err := parseCommand(test.input)
			require.NoError(t, err)
			assert.Equal(t, test.expected, command)
		})
	}
}

func TestParseCommandMalformed(t *testing.T) {
	tests := []struct {
		name  string
		input []byte
	}{
		{"lone iac", []byte{IAC}},
		{"bad opcode", []byte{IAC, 100}},
		{"negotiation missing option", []byte{IAC, DO}},
		{"unterminated subnegotiation", []byte{IAC, SB, 201, 'a'}},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, err := parseCommand(test.input)
			require.Error(t, err)
		})
	}
}

func TestCommandBytesRoundTrip(t *testing.T) {
	original := Command{
		OpCode:         SB,
		Option:         OptionGMCP,
		Subnegotiation: []byte{'x', IAC, 'y'},
	}

	wire := original.Bytes()
	assert.Equal(t, []byte{IAC, SB, 201, 'x', IAC, IAC, 'y', IAC, SE}, wire)

	parsed, err := parseCommand(wire)
	require.NoError(t, err)
	assert.Equal(t, original, parsed)
}

func TestCommandBytesNegotiation(t *testing.T) {
	assert.Equal(t, []byte{IAC, WILL, 201}, Command{OpCode: WILL, Option: OptionGMCP}.Bytes())
	assert.Equal(t, []byte{IAC, GA}, Command{OpCode: GA}.Bytes())
}

func TestEscapeText(t *testing.T) {
	assert.Equal(t, []byte{'a', IAC, IAC, 'b'}, EscapeText([]byte{'a', IAC, 'b'}))
	assert.Equal(t, []byte("plain"), EscapeText([]byte("plain")))
}

func TestCommandString(t *testing.T) {
	assert.Equal(t, "IAC DO GMCP", CommandString(Command{OpCode: DO, Option: OptionGMCP}))
	assert.Equal(t, "IAC GA", CommandString(Command{OpCode: GA}))
	assert.Equal(t, `IAC SB GMCP "core.ping" IAC SE`,
		CommandString(Command{OpCode: SB, Option: OptionGMCP, Subnegotiation: []byte("core.ping")}))
}
