package events

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSubscribeReceivesEmittedEvents(t *testing.T) {
	b := NewBus()
	ch, unsub := b.Subscribe(4)
	defer unsub()

	b.Emit("execution.completed", map[string]any{"id": "e1"})

	select {
	case ev := <-ch:
		require.Equal(t, "execution.completed", ev.Topic)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	b := NewBus()
	ch, unsub := b.Subscribe(1)
	unsub()

	_, ok := <-ch
	require.False(t, ok)
}

func TestCloseClosesAllSubscribers(t *testing.T) {
	b := NewBus()
	ch1, _ := b.Subscribe(1)
	ch2, _ := b.Subscribe(1)
	b.Close()

	_, ok := <-ch1
	require.False(t, ok)
	_, ok = <-ch2
	require.False(t, ok)
}

func TestEmitAfterCloseIsNoOp(t *testing.T) {
	b := NewBus()
	b.Close()
	require.NotPanics(t, func() { b.Emit("x", nil) })
}
