package classify

import (
	"fmt"
	"regexp"
)

// PatternConfig carries the recognition patterns as plain strings, the way
// a config file supplies them. Compile validates everything up front so a
// bad pattern surfaces at load time rather than mid-session.
type PatternConfig struct {
	// Map block delimiters and room metadata.
	MapStart   string
	MapEnd     string
	RdescStart string
	RdescEnd   string
	// Coords must capture the coordinate text in group 1.
	Coords string
	Exits  string

	// InfoPrefix matches lines belonging to the info channel.
	InfoPrefix string

	// Help block delimiters. HelpTags must capture the keyword list in
	// group 1.
	HelpStart     string
	HelpEnd       string
	HelpBodyStart string
	HelpBodyEnd   string
	HelpTags      string

	Conversation []ConversationPatternConfig
}

// ConversationPatternConfig is one speech pattern. The regex must define
// named groups "speaker" and "message"; a "quote" group is optional and
// marks speech that may continue across lines until the quote closes.
type ConversationPatternConfig struct {
	Label   string
	Pattern string
}

type conversationPattern struct {
	label   string
	re      *regexp.Regexp
	speaker int
	quote   int
	message int
}

// patterns is the compiled form consumed by the classifier.
type patterns struct {
	mapStart   *regexp.Regexp
	mapEnd     *regexp.Regexp
	rdescStart *regexp.Regexp
	rdescEnd   *regexp.Regexp
	coords     *regexp.Regexp
	exits      *regexp.Regexp

	infoPrefix *regexp.Regexp

	helpStart     *regexp.Regexp
	helpEnd       *regexp.Regexp
	helpBodyStart *regexp.Regexp
	helpBodyEnd   *regexp.Regexp
	helpTags      *regexp.Regexp

	conversation []conversationPattern
}

func compilePattern(name, expr string) (*regexp.Regexp, error) {
	if expr == "" {
		return nil, nil
	}

	re, err := regexp.Compile(expr)
	if err != nil {
		return nil, fmt.Errorf("pattern %s: %w", name, err)
	}

	return re, nil
}

// Compile validates and compiles a PatternConfig. Any invalid expression
// or a conversation pattern missing its required named groups fails the
// whole config.
func (c PatternConfig) Compile() (*patterns, error) {
	var p patterns
	var err error

	fields := []struct {
		name string
		expr string
		dst  **regexp.Regexp
	}{
		{"map_start", c.MapStart, &p.mapStart},
		{"map_end", c.MapEnd, &p.mapEnd},
		{"rdesc_start", c.RdescStart, &p.rdescStart},
		{"rdesc_end", c.RdescEnd, &p.rdescEnd},
		{"coords", c.Coords, &p.coords},
		{"exits", c.Exits, &p.exits},
		{"info_prefix", c.InfoPrefix, &p.infoPrefix},
		{"help_start", c.HelpStart, &p.helpStart},
		{"help_end", c.HelpEnd, &p.helpEnd},
		{"help_body_start", c.HelpBodyStart, &p.helpBodyStart},
		{"help_body_end", c.HelpBodyEnd, &p.helpBodyEnd},
		{"help_tags", c.HelpTags, &p.helpTags},
	}
	for _, f := range fields {
		if *f.dst, err = compilePattern(f.name, f.expr); err != nil {
			return nil, err
		}
	}

	for _, cp := range c.Conversation {
		re, err := compilePattern("conversation "+cp.Label, cp.Pattern)
		if err != nil {
			return nil, err
		}
		if re == nil {
			return nil, fmt.Errorf("conversation %s: empty pattern", cp.Label)
		}

		compiled := conversationPattern{
			label:   cp.Label,
			re:      re,
			speaker: -1,
			quote:   -1,
			message: -1,
		}
		for i, name := range re.SubexpNames() {
			switch name {
			case "speaker":
				compiled.speaker = i
			case "quote":
				compiled.quote = i
			case "message":
				compiled.message = i
			}
		}
		if compiled.speaker < 0 || compiled.message < 0 {
			return nil, fmt.Errorf("conversation %s: pattern requires named groups speaker and message", cp.Label)
		}

		p.conversation = append(p.conversation, compiled)
	}

	return &p, nil
}
