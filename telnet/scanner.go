package telnet

import (
	"bufio"
	"bytes"
	"errors"
	"io"

	"golang.org/x/text/transform"
)

// Token is a single unit of output from the Scanner: a run of decoded text,
// a complete IAC command, or a prompt hint.
type Token interface {
	isToken()
}

// TextToken is decoded text from the remote with escape sequences intact.
// A literal 0xFF that arrived escaped as IAC IAC has already been collapsed.
type TextToken string

func (TextToken) isToken() {}

// CommandToken is one complete IAC command, including whole subnegotiation
// frames.
type CommandToken struct {
	Command
}

func (CommandToken) isToken() {}

// PromptToken is an IAC GA or IAC EOR hint marking the position of a prompt.
type PromptToken byte

func (PromptToken) isToken() {}

// Scanner tokenizes the raw telnet byte stream into text runs and commands.
// It wraps a bufio.Scanner with a telnet-aware split function, so sequences
// fragmented across socket reads are reassembled by the split machinery:
// the split function simply declines to advance until a sequence is
// complete. Text bytes run through the configured charset; a multi-byte
// character split across reads is carried until its remaining bytes arrive.
type Scanner struct {
	scanner *bufio.Scanner
	charset *Charset

	// undecoded text bytes carried between Scan calls
	pending []byte

	next Token
	err  error
}

// NewScanner builds a scanner over an input stream, decoding text with the
// provided charset.
func NewScanner(charset *Charset, input io.Reader) *Scanner {
	scan := bufio.NewScanner(input)

	scanner := &Scanner{
		scanner: scan,
		charset: charset,
		pending: make([]byte, 0, 64),
	}

	scan.Split(scanner.scanTelnet)
	return scanner
}

// Err returns the first error encountered, if any.
func (s *Scanner) Err() error {
	if s.err != nil {
		return s.err
	}
	return s.scanner.Err()
}

// Token returns the token produced by the last successful Scan.
func (s *Scanner) Token() Token {
	return s.next
}

// Scan advances to the next token. It returns false when the underlying
// stream ends or fails; protocol malformations do not stop the scanner,
// they surface through Err while scanning continues.
func (s *Scanner) Scan() bool {
	s.next = nil
	s.err = nil

	for s.scanner.Scan() {
		token := s.scanner.Bytes()
		if len(token) == 0 {
			continue
		}

		if len(token) > 1 && token[0] == IAC {
			command, err := parseCommand(token)
			if err != nil {
				// Recoverable malformation: report it and keep scanning.
				s.err = err
				s.next = TextToken("")
				return true
			}

			switch command.OpCode {
			case NOP:
				continue
			case GA, EOR:
				s.next = PromptToken(command.OpCode)
			default:
				s.next = CommandToken{command}
			}
			return true
		}

		s.pending = append(s.pending, token...)
		text := s.decodePending()
		if text == "" {
			continue
		}

		s.next = TextToken(text)
		return true
	}

	// Stream ended: flush any bytes still waiting on a rune that will
	// never complete.
	if len(s.pending) > 0 {
		s.next = TextToken(s.flushPending())
		return true
	}

	return false
}

// decodePending decodes as much of the carried byte buffer as forms
// complete characters, leaving the remainder for the next read.
func (s *Scanner) decodePending() string {
	var out []byte
	var decodeBuffer [256]byte

	for len(s.pending) > 0 {
		nDst, nSrc, err := s.charset.DecodeStream(decodeBuffer[:], s.pending)
		if nDst > 0 {
			out = append(out, decodeBuffer[:nDst]...)
		}
		if nSrc > 0 {
			remaining := copy(s.pending, s.pending[nSrc:])
			s.pending = s.pending[:remaining]
		}

		if errors.Is(err, transform.ErrShortSrc) {
			break
		}
		if errors.Is(err, transform.ErrShortDst) {
			continue
		}
		if err != nil {
			s.err = err
			break
		}
		if nSrc == 0 {
			break
		}
	}

	return string(out)
}

func (s *Scanner) flushPending() string {
	text := string(bytes.ToValidUTF8(s.pending, []byte("�")))
	s.pending = s.pending[:0]
	return text
}

// scanTelnet is the bufio.SplitFunc that tokenizes the telnet stream. Each
// token is either a run of plain bytes, a lone literal 0xFF (from an
// escaped IAC IAC pair), or one complete IAC command. Returning advance 0
// holds incomplete sequences until more bytes arrive, which is what makes
// arbitrary fragmentation across reads safe.
func (s *Scanner) scanTelnet(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if len(data) == 0 {
		return 0, nil, nil
	}

	advance = scanTelnetToken(data)

	if advance == 0 && !atEOF {
		return 0, nil, nil
	}

	if advance == 0 && atEOF {
		// Truncated sequence at stream end: release it as-is so parseCommand
		// can report the malformation.
		return len(data), data, nil
	}

	if advance == 2 && data[0] == IAC && data[1] == IAC {
		// Escaped 0xFF: emit the single literal byte.
		return 2, data[1:2], nil
	}

	return advance, data[:advance], nil
}

// scanTelnetToken finds the length of the next complete token, or 0 when
// more bytes are needed.
func scanTelnetToken(data []byte) int {
	iacIndex := bytes.IndexByte(data, IAC)

	if iacIndex > 0 {
		// Release all plain bytes up to the IAC.
		return iacIndex
	} else if iacIndex < 0 {
		// No IAC anywhere: release everything.
		return len(data)
	}

	// data starts with IAC.
	if len(data) < 2 {
		return 0
	}

	// IAC IAC is escaped text and releases on its own.
	if data[1] == IAC {
		return 2
	}

	// IAC GA, IAC EOR, and IAC NOP are two-byte commands. SE should never
	// appear alone, but consuming it recovers from a confused stream.
	if data[1] == GA || data[1] == NOP || data[1] == SE || data[1] == EOR {
		return 2
	}

	// Everything else needs at least three bytes.
	if len(data) < 3 {
		return 0
	}

	if data[1] != SB {
		// WILL/WONT/DO/DONT come in three-byte sets.
		return 3
	}

	// Subnegotiation: hold everything until IAC SE, skipping doubled IACs.
	nextIndex := 0
	for {
		nextIAC := bytes.IndexByte(data[nextIndex+1:], IAC)
		if nextIAC < 0 {
			return 0
		}

		nextIndex += nextIAC + 1
		if len(data) <= nextIndex+1 {
			// IAC is the last byte; need its follower.
			return 0
		}

		if data[nextIndex+1] == SE {
			return nextIndex + 2
		}

		if data[nextIndex+1] == IAC {
			nextIndex++
		}
	}
}
