package classify

import (
	"strings"
	"time"
)

// conversationMatcher detects speech lines and accumulates multi-line
// speech until the quote that opened it closes.
type conversationMatcher struct {
	patterns []conversationPattern
	now      func() time.Time

	pending   *ConversationLine
	openQuote string
}

// continueCapture absorbs a line into an open multi-line speech block.
// The finished entry is returned once the closing quote arrives.
func (c *conversationMatcher) continueCapture(plain, raw string) (consumed bool, done *ConversationLine) {
	if c.pending == nil {
		return false, nil
	}

	c.pending.Message += " " + strings.TrimSpace(plain)
	c.pending.Raw += "\n" + raw

	if strings.HasSuffix(strings.TrimRight(plain, " \t"), c.openQuote) {
		c.pending.Message = strings.TrimSuffix(c.pending.Message, c.openQuote)
		done = c.pending
		c.pending = nil
		c.openQuote = ""
		return true, done
	}

	return true, nil
}

// match tries each speech pattern in order and starts or completes a
// speech entry on the first hit.
func (c *conversationMatcher) match(plain, raw string) (consumed bool, done *ConversationLine) {
	for _, sp := range c.patterns {
		m := sp.re.FindStringSubmatch(plain)
		if m == nil {
			continue
		}

		message := m[sp.message]
		if message != "" {
			if last := message[len(message)-1]; last == '\'' || last == '"' {
				message = message[:len(message)-1]
			}
		}

		quote := ""
		if sp.quote >= 0 {
			quote = m[sp.quote]
		}

		entry := &ConversationLine{
			Speaker:   m[sp.speaker],
			Label:     sp.label,
			Message:   message,
			Raw:       raw,
			Timestamp: c.now(),
		}

		stripped := strings.TrimRight(plain, " \t")
		if quote == "" || (strings.HasSuffix(stripped, quote) && strings.Count(stripped, quote) >= 2) {
			return true, entry
		}

		// Quote opened but never closed on this line, hold until it does.
		c.pending = entry
		c.openQuote = quote
		return true, nil
	}

	return false, nil
}
