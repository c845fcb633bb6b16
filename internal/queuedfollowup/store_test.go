package queuedfollowup

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEnqueueReplacesPriorSlot(t *testing.T) {
	s := New()
	s.Enqueue("ws-1", FollowUp{SessionID: "sess-1", Prompt: "first"})
	s.Enqueue("ws-1", FollowUp{SessionID: "sess-1", Prompt: "second"})

	got, ok := s.Take("ws-1")
	require.True(t, ok)
	require.Equal(t, "second", got.Prompt)
}

func TestTakeConsumesSlot(t *testing.T) {
	s := New()
	s.Enqueue("ws-1", FollowUp{Prompt: "x"})
	_, ok := s.Take("ws-1")
	require.True(t, ok)

	_, ok = s.Take("ws-1")
	require.False(t, ok)
}

func TestPeekDoesNotConsume(t *testing.T) {
	s := New()
	s.Enqueue("ws-1", FollowUp{Prompt: "x"})
	require.True(t, s.Peek("ws-1"))
	require.True(t, s.Peek("ws-1"))
}

func TestClearRemovesWithoutReturning(t *testing.T) {
	s := New()
	s.Enqueue("ws-1", FollowUp{Prompt: "x"})
	s.Clear("ws-1")
	require.False(t, s.Peek("ws-1"))
}
