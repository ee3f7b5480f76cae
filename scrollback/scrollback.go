// Package scrollback keeps a bounded, append-only log of classified
// output. Entries carry stable sequence numbers so scroll positions
// survive eviction, and views filter by content kind without mutating
// the stored entries.
package scrollback

import (
	"github.com/moodclient/mudterm/classify"
)

// Kind flags an entry by the content kind that produced it.
type Kind uint8

const (
	KindOutput Kind = 1 << iota
	KindMap
	KindConversation
	KindInfo
	KindHelp

	KindAll = KindOutput | KindMap | KindConversation | KindInfo | KindHelp
)

// Entry is one stored event plus its bookkeeping.
type Entry struct {
	// Seq increases monotonically across the whole session, eviction
	// never reassigns it.
	Seq   uint64
	Kind  Kind
	Event classify.Event
}

// Store is the bounded event log. It is not safe for concurrent use;
// the session loop is its single writer and reader.
type Store struct {
	buffer     []Entry
	maxSize    int
	startIndex int
	endIndex   int
	nextSeq    uint64
}

// NewStore builds a store holding at most capacity entries. Older
// entries are evicted first once the bound is reached.
func NewStore(capacity int) *Store {
	if capacity < 1 {
		capacity = 1
	}
	return &Store{
		buffer:  make([]Entry, capacity),
		maxSize: capacity,
	}
}

func (s *Store) straighten() {
	if s.startIndex == 0 {
		return
	}

	length := s.endIndex - s.startIndex
	if length > 0 {
		copy(s.buffer[:length], s.buffer[s.startIndex:s.endIndex])
	}

	s.startIndex = 0
	s.endIndex = length
}

// Append stores an event and returns its sequence number.
func (s *Store) Append(event classify.Event) uint64 {
	if s.endIndex == len(s.buffer) {
		if s.endIndex-s.startIndex == s.maxSize {
			s.startIndex++
		}
		s.straighten()
	}

	seq := s.nextSeq
	s.nextSeq++

	s.buffer[s.endIndex] = Entry{
		Seq:   seq,
		Kind:  kindOf(event),
		Event: event,
	}
	s.endIndex++

	return seq
}

// Len reports the number of retained entries.
func (s *Store) Len() int {
	return s.endIndex - s.startIndex
}

// View returns a page of entries matching the show flags, newest last.
// offset counts matching entries back from the tail, so offset 0 with a
// page size of n returns the n most recent matching entries. The
// returned slice is fresh; stored entries are never mutated.
func (s *Store) View(offset, pageSize int, show Kind) []Entry {
	if pageSize < 1 {
		return nil
	}

	var matching []Entry
	for i := s.startIndex; i < s.endIndex; i++ {
		if s.buffer[i].Kind&show != 0 {
			matching = append(matching, s.buffer[i])
		}
	}

	end := len(matching) - offset
	if end < 0 {
		end = 0
	}
	start := end - pageSize
	if start < 0 {
		start = 0
	}

	return append([]Entry(nil), matching[start:end]...)
}

// Clear drops all retained entries. Sequence numbering continues from
// where it left off.
func (s *Store) Clear() {
	s.startIndex = 0
	s.endIndex = 0
}

func kindOf(event classify.Event) Kind {
	switch event.(type) {
	case classify.MapBlock:
		return KindMap
	case classify.ConversationLine:
		return KindConversation
	case classify.InfoMessage:
		return KindInfo
	case classify.HelpBlock:
		return KindHelp
	default:
		return KindOutput
	}
}
