package scrollback

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moodclient/mudterm/classify"
)

func outputLine(text string) classify.OutputLine {
	return classify.OutputLine{Plain: text, Raw: text}
}

func TestAppendAndLen(t *testing.T) {
	store := NewStore(10)
	assert.Equal(t, 0, store.Len())

	seq := store.Append(outputLine("one"))
	assert.Equal(t, uint64(0), seq)
	assert.Equal(t, 1, store.Len())

	seq = store.Append(outputLine("two"))
	assert.Equal(t, uint64(1), seq)
	assert.Equal(t, 2, store.Len())
}

func TestEvictionKeepsNewest(t *testing.T) {
	store := NewStore(3)
	for i := 0; i < 5; i++ {
		store.Append(outputLine(fmt.Sprintf("line %d", i)))
	}

	assert.Equal(t, 3, store.Len())

	entries := store.View(0, 10, KindAll)
	require.Len(t, entries, 3)
	assert.Equal(t, "line 2", entries[0].Event.(classify.OutputLine).Plain)
	assert.Equal(t, "line 4", entries[2].Event.(classify.OutputLine).Plain)
}

func TestSequenceSurvivesEviction(t *testing.T) {
	store := NewStore(2)
	for i := 0; i < 7; i++ {
		assert.Equal(t, uint64(i), store.Append(outputLine("x")))
	}

	entries := store.View(0, 10, KindAll)
	require.Len(t, entries, 2)
	assert.Equal(t, uint64(5), entries[0].Seq)
	assert.Equal(t, uint64(6), entries[1].Seq)
}

func TestKindTagging(t *testing.T) {
	store := NewStore(10)
	store.Append(outputLine("plain"))
	store.Append(classify.MapBlock{RoomName: "Square"})
	store.Append(classify.ConversationLine{Speaker: "Bob", Message: "hi"})
	store.Append(classify.InfoMessage{Text: "arrived"})
	store.Append(classify.HelpBlock{Title: "COMBAT"})

	entries := store.View(0, 10, KindAll)
	require.Len(t, entries, 5)
	assert.Equal(t, KindOutput, entries[0].Kind)
	assert.Equal(t, KindMap, entries[1].Kind)
	assert.Equal(t, KindConversation, entries[2].Kind)
	assert.Equal(t, KindInfo, entries[3].Kind)
	assert.Equal(t, KindHelp, entries[4].Kind)
}

func TestViewFiltering(t *testing.T) {
	store := NewStore(10)
	store.Append(outputLine("one"))
	store.Append(classify.InfoMessage{Text: "arrived"})
	store.Append(outputLine("two"))

	output := store.View(0, 10, KindOutput)
	require.Len(t, output, 2)
	assert.Equal(t, "one", output[0].Event.(classify.OutputLine).Plain)
	assert.Equal(t, "two", output[1].Event.(classify.OutputLine).Plain)

	both := store.View(0, 10, KindOutput|KindInfo)
	assert.Len(t, both, 3)

	assert.Empty(t, store.View(0, 10, KindHelp))
}

func TestViewPagingFromTail(t *testing.T) {
	store := NewStore(10)
	for i := 0; i < 6; i++ {
		store.Append(outputLine(fmt.Sprintf("line %d", i)))
	}

	page := store.View(0, 2, KindAll)
	require.Len(t, page, 2)
	assert.Equal(t, "line 4", page[0].Event.(classify.OutputLine).Plain)
	assert.Equal(t, "line 5", page[1].Event.(classify.OutputLine).Plain)

	page = store.View(2, 2, KindAll)
	require.Len(t, page, 2)
	assert.Equal(t, "line 2", page[0].Event.(classify.OutputLine).Plain)
	assert.Equal(t, "line 3", page[1].Event.(classify.OutputLine).Plain)

	// Scrolling past the front clamps instead of failing.
	page = store.View(5, 3, KindAll)
	require.Len(t, page, 1)
	assert.Equal(t, "line 0", page[0].Event.(classify.OutputLine).Plain)

	assert.Empty(t, store.View(10, 3, KindAll))
	assert.Empty(t, store.View(0, 0, KindAll))
}

func TestViewOffsetCountsMatchingEntriesOnly(t *testing.T) {
	store := NewStore(10)
	store.Append(outputLine("one"))
	store.Append(classify.InfoMessage{Text: "noise"})
	store.Append(outputLine("two"))
	store.Append(classify.InfoMessage{Text: "noise"})
	store.Append(outputLine("three"))

	page := store.View(1, 1, KindOutput)
	require.Len(t, page, 1)
	assert.Equal(t, "two", page[0].Event.(classify.OutputLine).Plain)
}

func TestClearKeepsSequence(t *testing.T) {
	store := NewStore(10)
	store.Append(outputLine("one"))
	store.Append(outputLine("two"))

	store.Clear()
	assert.Equal(t, 0, store.Len())
	assert.Empty(t, store.View(0, 10, KindAll))

	seq := store.Append(outputLine("three"))
	assert.Equal(t, uint64(2), seq)
}

func TestTinyCapacity(t *testing.T) {
	store := NewStore(0)
	store.Append(outputLine("a"))
	store.Append(outputLine("b"))

	require.Equal(t, 1, store.Len())
	entries := store.View(0, 1, KindAll)
	require.Len(t, entries, 1)
	assert.Equal(t, "b", entries[0].Event.(classify.OutputLine).Plain)
}
