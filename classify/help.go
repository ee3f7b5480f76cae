package classify

import (
	"regexp"
	"strings"
)

// Keyword markers embedded in help headers are stripped before display.
var helpKeywords = regexp.MustCompile(`\{helpkeywords\}`)

// helpCapture accumulates one tagged help block: header lines until the
// body tag, body lines until its close, plus an optional keyword line.
type helpCapture struct {
	patterns *patterns

	inHelp bool
	inBody bool
	header []string
	body   []string
	tags   []string
	title  string
}

func (h *helpCapture) feed(plain, raw string) (consumed bool, block *HelpBlock) {
	p := h.patterns

	if p.helpStart != nil && p.helpStart.MatchString(plain) {
		h.inHelp = true
		h.inBody = false
		h.header = nil
		h.body = nil
		h.tags = nil
		h.title = ""
		return true, nil
	}

	if p.helpEnd != nil && p.helpEnd.MatchString(plain) {
		if !h.inHelp {
			return true, nil
		}
		h.inHelp = false
		h.inBody = false
		return true, h.finalize()
	}

	if !h.inHelp {
		return false, nil
	}

	if p.helpBodyStart != nil && p.helpBodyStart.MatchString(plain) {
		h.inBody = true
		return true, nil
	}
	if p.helpBodyEnd != nil && p.helpBodyEnd.MatchString(plain) {
		h.inBody = false
		return true, nil
	}

	if p.helpTags != nil {
		if m := p.helpTags.FindStringSubmatch(plain); m != nil {
			for _, tag := range strings.Split(m[1], ",") {
				if tag = strings.TrimSpace(tag); tag != "" {
					h.tags = append(h.tags, tag)
				}
			}
			return true, nil
		}
	}

	if h.inBody {
		h.body = append(h.body, raw)
		return true, nil
	}

	h.header = append(h.header, helpKeywords.ReplaceAllString(raw, ""))

	// First non-blank, non-separator header line becomes the title.
	stripped := strings.TrimSpace(plain)
	if stripped != "" && h.title == "" && !strings.HasPrefix(stripped, "-") {
		if title := strings.TrimSpace(helpKeywords.ReplaceAllString(stripped, "")); title != "" {
			h.title = title
		}
	}

	return true, nil
}

func (h *helpCapture) finalize() *HelpBlock {
	title := h.title
	if title == "" {
		title = "Help"
	}
	return &HelpBlock{
		Title:       title,
		HeaderLines: append([]string(nil), h.header...),
		BodyLines:   append([]string(nil), h.body...),
		Tags:        append([]string(nil), h.tags...),
	}
}
