package classify

import (
	"regexp"
	"strings"

	"github.com/moodclient/mudterm/style"
)

// Room name line after the map block: "Room Name", optionally followed by
// parenthetical markers like "(G)" or "(123)".
var roomNameLine = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9\s'\-,\.]+(?:\s*\([A-Za-z0-9]+\))*\s*$`)

// Strips the parenthetical markers off a room name line.
var roomNameExtract = regexp.MustCompile(`^([A-Za-z][A-Za-z0-9\s'\-,\.]+?)(?:\s*\([A-Za-z0-9]+\))*\s*$`)

// Lines with no run of two or more letters are treated as map art.
var alphaRun = regexp.MustCompile(`[a-zA-Z]{2,}`)

type capturedLine struct {
	plain string
	raw   string
}

// roomCapture tracks the merged room state: the tagged map block, the
// tagged description block, the coords line, and the room name line that
// follows the map. Each time a part updates, a fresh MapBlock snapshot is
// emitted.
type roomCapture struct {
	patterns *patterns
	enabled  bool

	inMap          bool
	inRdesc        bool
	expectRoomName bool
	blockLines     []capturedLine
	rdescLines     []string

	mapLines    []string
	roomName    string
	coords      string
	exits       string
	description []string
}

func (r *roomCapture) snapshot() *MapBlock {
	return &MapBlock{
		Lines:       append([]string(nil), r.mapLines...),
		RoomName:    r.roomName,
		Coords:      r.coords,
		Exits:       r.exits,
		Description: append([]string(nil), r.description...),
	}
}

// feed processes one line. consumed reports whether the line belongs to
// room tracking; block is a fresh snapshot when part of the room state
// just updated.
func (r *roomCapture) feed(plain, raw string) (consumed bool, block *MapBlock) {
	if !r.enabled {
		return false, nil
	}

	p := r.patterns

	if p.mapStart != nil && p.mapStart.MatchString(plain) {
		// A second start tag mid-capture restarts the capture.
		r.inMap = true
		r.expectRoomName = false
		r.blockLines = nil
		return true, nil
	}

	if p.mapEnd != nil && p.mapEnd.MatchString(plain) {
		updated := false
		if r.inMap {
			updated = r.finalizeBlock()
		}
		r.inMap = false
		r.expectRoomName = true
		if updated {
			return true, r.snapshot()
		}
		return true, nil
	}

	if r.inMap {
		r.blockLines = append(r.blockLines, capturedLine{plain: plain, raw: raw})
		return true, nil
	}

	if p.rdescStart != nil && p.rdescStart.MatchString(plain) {
		r.inRdesc = true
		r.expectRoomName = false
		r.rdescLines = nil
		return true, nil
	}

	if p.rdescEnd != nil && p.rdescEnd.MatchString(plain) {
		updated := r.inRdesc
		if r.inRdesc {
			r.finalizeRdesc()
		}
		r.inRdesc = false
		if updated {
			return true, r.snapshot()
		}
		return true, nil
	}

	if r.inRdesc {
		r.rdescLines = append(r.rdescLines, raw)
		return true, nil
	}

	if p.coords != nil {
		if m := p.coords.FindStringSubmatch(plain); m != nil {
			r.coords = m[1]
			r.expectRoomName = false
			return true, r.snapshot()
		}
	}

	if r.expectRoomName {
		stripped := strings.TrimSpace(plain)
		if stripped == "" {
			return true, nil
		}
		if roomNameLine.MatchString(stripped) {
			if m := roomNameExtract.FindStringSubmatch(stripped); m != nil {
				r.roomName = strings.TrimSpace(m[1])
			}
			r.expectRoomName = false
			return true, r.snapshot()
		}
		r.expectRoomName = false
	}

	return false, nil
}

// finalizeBlock parses the accumulated block: first non-blank line is the
// room name, an exits line is scanned for from the end, and everything in
// between is map art.
func (r *roomCapture) finalizeBlock() bool {
	if len(r.blockLines) == 0 {
		return false
	}

	roomIdx := -1
	for i, line := range r.blockLines {
		if strings.TrimSpace(line.plain) != "" {
			r.roomName = strings.TrimSpace(line.plain)
			roomIdx = i
			break
		}
	}
	if roomIdx < 0 {
		return false
	}

	exitsIdx := -1
	if r.patterns.exits != nil {
		for i := len(r.blockLines) - 1; i > roomIdx; i-- {
			if r.patterns.exits.MatchString(r.blockLines[i].plain) {
				r.exits = strings.TrimSpace(r.blockLines[i].plain)
				exitsIdx = i
				break
			}
		}
	}

	endIdx := len(r.blockLines)
	if exitsIdx > 0 {
		endIdx = exitsIdx
	}

	var mapLines []string
	for _, line := range r.blockLines[roomIdx+1 : endIdx] {
		if strings.TrimSpace(line.plain) == "" {
			// Interior blanks are part of the art, leading ones are not.
			if len(mapLines) > 0 {
				mapLines = append(mapLines, line.raw)
			}
			continue
		}
		mapLines = append(mapLines, line.raw)
	}

	for len(mapLines) > 0 && strings.TrimSpace(style.Strip(mapLines[len(mapLines)-1])) == "" {
		mapLines = mapLines[:len(mapLines)-1]
	}

	r.mapLines = mapLines
	return true
}

// finalizeRdesc decides whether the captured description is ASCII art or
// prose. Art keeps its lines verbatim; prose is joined into paragraphs
// with blank lines as breaks.
func (r *roomCapture) finalizeRdesc() {
	var nonBlank []string
	for _, raw := range r.rdescLines {
		if strings.TrimSpace(style.Strip(raw)) != "" {
			nonBlank = append(nonBlank, raw)
		}
	}
	if len(nonBlank) == 0 {
		r.description = nil
		return
	}

	artCount := 0
	for _, raw := range nonBlank {
		if !alphaRun.MatchString(strings.TrimSpace(style.Strip(raw))) {
			artCount++
		}
	}
	if artCount > len(nonBlank)/2 {
		r.description = append([]string(nil), r.rdescLines...)
		return
	}

	var paragraphs []string
	var parts []string
	for _, raw := range r.rdescLines {
		if strings.TrimSpace(style.Strip(raw)) == "" {
			if len(parts) > 0 {
				paragraphs = append(paragraphs, strings.Join(parts, " "))
				parts = nil
			}
			continue
		}
		parts = append(parts, raw)
	}
	if len(parts) > 0 {
		paragraphs = append(paragraphs, strings.Join(parts, " "))
	}
	r.description = paragraphs
}
