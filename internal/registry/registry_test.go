package registry

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestStopCancelsAndReturnsTrue(t *testing.T) {
	r := New()
	cancelled := false
	r.Register(&Handle{ExecutionID: "e1", Cancel: func() { cancelled = true }})

	require.True(t, r.Stop("e1"))
	require.True(t, cancelled)
}

func TestStopUnknownReturnsFalse(t *testing.T) {
	r := New()
	require.False(t, r.Stop("missing"))
}

func TestStopAllCancelsEveryHandle(t *testing.T) {
	r := New()
	var n int
	r.Register(&Handle{ExecutionID: "e1", Cancel: func() { n++ }})
	r.Register(&Handle{ExecutionID: "e2", Cancel: func() { n++ }})
	r.StopAll()
	require.Equal(t, 2, n)
}

func TestHasRunningProcesses(t *testing.T) {
	r := New()
	r.Register(&Handle{ExecutionID: "e1", Cancel: func() {}})
	require.True(t, r.HasRunningProcesses([]string{"e1", "e2"}))
	require.False(t, r.HasRunningProcesses([]string{"e2", "e3"}))
}

func TestUnregisterRemovesHandle(t *testing.T) {
	r := New()
	r.Register(&Handle{ExecutionID: "e1", Cancel: func() {}})
	r.Unregister("e1")
	_, ok := r.Get("e1")
	require.False(t, ok)
}

func TestWaitThenKillReturnsFalseWhenUnregisteredPromptly(t *testing.T) {
	r := New()
	r.Register(&Handle{ExecutionID: "e1", Cancel: func() {}})
	go func() {
		time.Sleep(10 * time.Millisecond)
		r.Unregister("e1")
	}()
	require.False(t, r.WaitThenKill("e1", 200*time.Millisecond))
}
