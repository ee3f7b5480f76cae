package telnet

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Telnet opcodes
const (
	// EOR - End Of Record. IAC EOR is mostly used by MUD servers as a cleaner
	// alternative to IAC GA for marking the end of a prompt line.
	EOR byte = 239
	// SE - Subnegotiation End. IAC SE marks the end of a subnegotiation payload.
	SE byte = 240
	// NOP - No-Op. IAC NOP carries no meaning and is dropped.
	NOP byte = 241
	// GA - Go Ahead. IAC GA traditionally marks the end of a prompt so clients
	// know where to place the cursor.
	GA byte = 249
	// SB - Subnegotiation Begin. IAC SB <option> opens an option-specific
	// payload terminated by IAC SE.
	SB byte = 250
	// WILL - the sender intends to activate an option on its side
	WILL byte = 251
	// WONT - the sender refuses to activate an option on its side
	WONT byte = 252
	// DO - the sender requests that the receiver activate an option
	DO byte = 253
	// DONT - the sender demands that the receiver deactivate an option
	DONT byte = 254
	// IAC - Interpret As Command, introduces every telnet command
	IAC byte = 255
)

var commandCodes = map[byte]string{
	EOR:  "EOR",
	SE:   "SE",
	NOP:  "NOP",
	GA:   "GA",
	SB:   "SB",
	WILL: "WILL",
	WONT: "WONT",
	DO:   "DO",
	DONT: "DONT",
	IAC:  "IAC",
}

// Command is a single IAC command received from or sent to the remote.
// Subnegotiations, which arrive as IAC SB <option> <payload> IAC SE, are
// represented as one Command with OpCode SB; IAC SE never appears on its own.
type Command struct {
	// OpCode is the code following IAC.
	OpCode byte
	// Option is the telnet option this command refers to, for the opcodes
	// that carry one (WILL/WONT/DO/DONT/SB).
	Option OptionCode
	// Subnegotiation holds the bytes between IAC SB <option> and IAC SE,
	// with doubled 255s already collapsed. Empty for non-SB commands.
	Subnegotiation []byte
}

// isActivateNegotiation reports whether this command requests activation
// of an option (DO/WILL).
func (c Command) isActivateNegotiation() bool {
	return c.OpCode == DO || c.OpCode == WILL
}

// isLocalNegotiation reports whether this command concerns an option on our
// side of the connection (DO/DONT).
func (c Command) isLocalNegotiation() bool {
	return c.OpCode == DO || c.OpCode == DONT
}

// reject produces the refusal (WONT/DONT) matching an activation request.
func (c Command) reject() Command {
	var newOpCode byte
	switch c.OpCode {
	case DO:
		newOpCode = WONT
	case WILL:
		newOpCode = DONT
	default:
		return Command{OpCode: NOP}
	}

	return Command{OpCode: newOpCode, Option: c.Option}
}

// accept produces the agreement (WILL/DO) matching an activation request.
func (c Command) accept() Command {
	var newOpCode byte
	switch c.OpCode {
	case DO:
		newOpCode = WILL
	case WILL:
		newOpCode = DO
	default:
		return Command{OpCode: NOP}
	}

	return Command{OpCode: newOpCode, Option: c.Option}
}

// appendBytes writes this command's wire form to b, escaping 0xFF bytes in
// subnegotiation payloads as IAC IAC.
func (c Command) appendBytes(b []byte) []byte {
	b = append(b, IAC, c.OpCode)
	if c.OpCode == GA || c.OpCode == NOP || c.OpCode == EOR {
		return b
	}

	b = append(b, byte(c.Option))
	if c.OpCode != SB {
		return b
	}

	for _, payloadByte := range c.Subnegotiation {
		if payloadByte == IAC {
			b = append(b, IAC, IAC)
			continue
		}
		b = append(b, payloadByte)
	}

	return append(b, IAC, SE)
}

// Bytes returns the command's wire form.
func (c Command) Bytes() []byte {
	return c.appendBytes(nil)
}

// EscapeText doubles any literal 0xFF bytes in outbound text so they are
// not mistaken for IAC.
func EscapeText(data []byte) []byte {
	escaped := make([]byte, 0, len(data))
	for _, b := range data {
		if b == IAC {
			escaped = append(escaped, IAC, IAC)
			continue
		}
		escaped = append(escaped, b)
	}
	return escaped
}

func parseCommand(data []byte) (Command, error) {
	if data[0] != IAC {
		return Command{}, fmt.Errorf("command did not begin with IAC: %q", commandStream(data))
	}

	if len(data) < 2 {
		return Command{}, errors.New("command was just a standalone IAC with no opcode")
	}

	_, validOpcode := commandCodes[data[1]]
	if !validOpcode {
		return Command{}, fmt.Errorf("command did not have valid opcode: %q", commandStream(data))
	}

	if data[1] == NOP || data[1] == GA || data[1] == EOR {
		return Command{
			OpCode: data[1],
		}, nil
	}

	if len(data) < 3 {
		return Command{}, fmt.Errorf("command did not contain parameters: %q", commandStream(data))
	}

	if data[1] != SB {
		return Command{
			OpCode: data[1],
			Option: OptionCode(data[2]),
		}, nil
	}

	if len(data) < 5 || data[len(data)-2] != IAC || data[len(data)-1] != SE {
		return Command{}, fmt.Errorf("subnegotiation command did not end with IAC SE: %q", commandStream(data))
	}

	// Doubled 255s in the subnegotiation payload collapse to a single 255,
	// just like in the main text stream.
	subnegotiationData := data[3 : len(data)-2]
	finalBuffer := make([]byte, len(subnegotiationData))
	bufferIndex, dataIndex := 0, 0

	for ; dataIndex < len(subnegotiationData); bufferIndex++ {
		finalBuffer[bufferIndex] = subnegotiationData[dataIndex]
		dataIndex++
		if subnegotiationData[bufferIndex] == IAC && dataIndex < len(subnegotiationData) && subnegotiationData[dataIndex] == IAC {
			dataIndex++
		}
	}

	return Command{
		OpCode:         data[1],
		Option:         OptionCode(data[2]),
		Subnegotiation: finalBuffer[:bufferIndex],
	}, nil
}

func commandStream(b []byte) string {
	var sb strings.Builder

	for i := 0; i < len(b); i++ {
		if i > 0 {
			sb.WriteRune(' ')
		}

		code, hasCode := commandCodes[b[i]]
		if !hasCode {
			sb.WriteString(strconv.Itoa(int(b[i])))
		} else {
			sb.WriteString(code)
		}
	}

	return sb.String()
}

// CommandString converts a Command into a legible string for protocol trace
// logging.
func CommandString(c Command) string {
	var sb strings.Builder
	sb.WriteString("IAC ")

	opCode, hasOpCode := commandCodes[c.OpCode]
	if !hasOpCode {
		opCode = strconv.Itoa(int(c.OpCode))
	}

	sb.WriteString(opCode)

	if c.OpCode == GA || c.OpCode == NOP || c.OpCode == EOR {
		return sb.String()
	}

	sb.WriteByte(' ')
	sb.WriteString(c.Option.String())

	if c.OpCode != SB {
		return sb.String()
	}

	sb.WriteByte(' ')
	sb.WriteString(strconv.Quote(string(c.Subnegotiation)))
	sb.WriteString(" IAC SE")
	return sb.String()
}
