package telnet

import (
	"fmt"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/ianaindex"
	"golang.org/x/text/transform"
)

// Charset decodes inbound text bytes and encodes outbound text. RFC 5198
// makes UTF-8 the default since 2008, but plenty of MUDs still speak other
// code pages, so the character set is configurable by IANA name.
// Subnegotiation payloads are always UTF-8 regardless of this setting.
type Charset struct {
	name    string
	encoder *encoding.Encoder
	decoder transform.Transformer
}

// NewCharset resolves an IANA character set name. An empty name selects
// UTF-8, which decodes with replacement runes for invalid bytes rather than
// erroring.
func NewCharset(name string) (*Charset, error) {
	if name == "" || strings.EqualFold(name, "utf-8") {
		// The Replacement encoding's encoder passes valid UTF-8 through and
		// substitutes U+FFFD for bad bytes; its decoder replaces everything,
		// so the encoder is used for both directions.
		return &Charset{
			name:    "UTF-8",
			encoder: encoding.Replacement.NewEncoder(),
			decoder: encoding.Replacement.NewEncoder(),
		}, nil
	}

	enc, err := ianaindex.IANA.Encoding(name)
	if err != nil {
		return nil, fmt.Errorf("charset %q: %w", name, err)
	}
	if enc == nil {
		return nil, fmt.Errorf("charset %q: unsupported encoding", name)
	}

	return &Charset{
		name:    name,
		encoder: enc.NewEncoder(),
		decoder: enc.NewDecoder(),
	}, nil
}

// Name returns the resolved character set name.
func (c *Charset) Name() string {
	return c.name
}

// DecodeStream converts inbound bytes without assuming the source is
// complete: a multi-byte character split across socket reads is left in the
// source (ErrShortSrc) for the caller to retry once more bytes arrive.
func (c *Charset) DecodeStream(dst, src []byte) (nDst, nSrc int, err error) {
	return c.decoder.Transform(dst, src, false)
}

// Encode converts UTF-8 text to outbound bytes.
func (c *Charset) Encode(text string) ([]byte, error) {
	return c.encoder.Bytes([]byte(text))
}
