package chat

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"finapp-server/internal/model"
)

func TestHistory_AppendBounded(t *testing.T) {
	t.Parallel()
	h := &History{}

	for i := 0; i < MaxMessages+10; i++ {
		h.Append(Message{Role: RoleUser, Content: fmt.Sprintf("msg-%d", i)})
	}

	msgs := h.Messages()
	require.Len(t, msgs, MaxMessages)
	// oldest ten were evicted, order preserved
	require.Equal(t, "msg-10", msgs[0].Content)
	require.Equal(t, fmt.Sprintf("msg-%d", MaxMessages+9), msgs[len(msgs)-1].Content)
}

// Appending a user/assistant pair that overflows by one evicts exactly
// one message, not the whole pair.
func TestHistory_AppendPairEvictsPerMessage(t *testing.T) {
	t.Parallel()
	h := &History{}
	for i := 0; i < MaxMessages-1; i++ {
		h.Append(Message{Role: RoleUser, Content: fmt.Sprintf("old-%d", i)})
	}

	h.Append(
		Message{Role: RoleUser, Content: "question"},
		Message{Role: RoleAssistant, Content: "answer"},
	)

	msgs := h.Messages()
	require.Len(t, msgs, MaxMessages)
	require.Equal(t, "old-1", msgs[0].Content)
	require.Equal(t, "answer", msgs[len(msgs)-1].Content)
}

func TestHistory_MessagesIsSnapshot(t *testing.T) {
	t.Parallel()
	h := &History{}
	h.Append(Message{Role: RoleUser, Content: "one"})

	snap := h.Messages()
	h.Append(Message{Role: RoleUser, Content: "two"})
	require.Len(t, snap, 1)
}

func TestHistory_ClearMessagesKeepsCategories(t *testing.T) {
	t.Parallel()
	h := &History{}
	h.Append(Message{Role: RoleUser, Content: "hello"})
	h.SetCategories([]model.Category{{ID: 1, Label: "Food"}})

	h.ClearMessages()

	require.Empty(t, h.Messages())
	cats, loaded := h.Categories()
	require.True(t, loaded)
	require.Len(t, cats, 1)
}

func TestHistory_CategoriesDirtyFlag(t *testing.T) {
	t.Parallel()
	h := &History{}

	_, loaded := h.Categories()
	require.False(t, loaded)

	h.SetCategories([]model.Category{{ID: 1}})
	_, loaded = h.Categories()
	require.True(t, loaded)

	h.MarkCategoriesDirty()
	_, loaded = h.Categories()
	require.False(t, loaded)
}

func TestHistoryCache_PerUserIsolation(t *testing.T) {
	t.Parallel()
	c := NewHistoryCache()

	c.GetOrCreate(1).Append(Message{Role: RoleUser, Content: "mine"})
	require.Empty(t, c.GetOrCreate(2).Messages())
	require.Len(t, c.GetOrCreate(1).Messages(), 1)

	c.Clear(1)
	require.Empty(t, c.GetOrCreate(1).Messages())
}
