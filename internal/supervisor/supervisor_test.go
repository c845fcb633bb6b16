package supervisor

import (
	"context"
	"os/exec"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"station/internal/actionchain"
	"station/internal/lognormalizer"
	"station/internal/messagestore"
	"station/pkg/models"
)

// idleCountingNormalizer is a minimal lognormalizer.Normalizer stub that
// counts Flush calls, used to assert the supervisor's idle ticker fires
// independently of the final EOF flush.
type idleCountingNormalizer struct {
	mu     sync.Mutex
	idle   time.Duration
	flushN int
}

func (n *idleCountingNormalizer) ProcessStdout([]byte) []lognormalizer.Patch { return nil }
func (n *idleCountingNormalizer) ProcessStderr([]byte) []lognormalizer.Patch { return nil }
func (n *idleCountingNormalizer) Flush() []lognormalizer.Patch {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.flushN++
	return nil
}
func (n *idleCountingNormalizer) SessionID() string          { return "" }
func (n *idleCountingNormalizer) MessageID() string          { return "" }
func (n *idleCountingNormalizer) IdleTimeout() time.Duration { return n.idle }
func (n *idleCountingNormalizer) flushCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.flushN
}

// fakeChild lets tests drive Run without a real exec.Cmd, exercising the
// non-exec.Cmd branch of runLink (Process left nil).
func fakeChild(exitCode int, err error, delay time.Duration) actionchain.SpawnFunc {
	return func(ctx context.Context, dir string, env []string) (*actionchain.SpawnedChild, error) {
		return &actionchain.SpawnedChild{
			Wait: func() (int, error) {
				if delay > 0 {
					select {
					case <-time.After(delay):
					case <-ctx.Done():
						return -1, ctx.Err()
					}
				}
				return exitCode, err
			},
			Cancel: func() {},
		}, nil
	}
}

func newTestSupervisor() *Supervisor {
	store := messagestore.New()
	return New(store, lognormalizer.New(lognormalizer.AgentClaude, nil))
}

func TestRunSucceedsThroughWholeChain(t *testing.T) {
	s := newTestSupervisor()
	head := actionchain.NewAction(actionchain.KindScriptRequest, models.RunReasonSetupScript, "", fakeChild(0, nil, 0))
	chain := actionchain.Append(head, actionchain.NewAction(actionchain.KindCodingAgentInitial, models.RunReasonCodingAgent, "", fakeChild(0, nil, 0)))

	result := s.Run(context.Background(), chain, t.TempDir(), make(chan struct{}))
	require.Equal(t, 0, result.ExitCode)
	require.NoError(t, result.Err)
}

func TestRunAbortsChainOnNonZeroExit(t *testing.T) {
	s := newTestSupervisor()
	var secondRan bool
	second := actionchain.NewAction(actionchain.KindCodingAgentInitial, models.RunReasonCodingAgent, "", func(ctx context.Context, dir string, env []string) (*actionchain.SpawnedChild, error) {
		secondRan = true
		return fakeChild(0, nil, 0)(ctx, dir, env)
	})
	head := actionchain.NewAction(actionchain.KindScriptRequest, models.RunReasonSetupScript, "", fakeChild(1, nil, 0))
	chain := actionchain.Append(head, second)

	result := s.Run(context.Background(), chain, t.TempDir(), make(chan struct{}))
	require.Equal(t, 1, result.ExitCode)
	require.False(t, secondRan)
}

func TestRunContinuesPastDevServerLink(t *testing.T) {
	s := newTestSupervisor()
	devServer := actionchain.NewAction(actionchain.KindScriptRequest, models.RunReasonDevServer, "", fakeChild(1, nil, 0))
	next := actionchain.NewAction(actionchain.KindCodingAgentInitial, models.RunReasonCodingAgent, "", fakeChild(0, nil, 0))
	chain := actionchain.Append(devServer, next)

	result := s.Run(context.Background(), chain, t.TempDir(), make(chan struct{}))
	require.Equal(t, 0, result.ExitCode)
}

// TestRunFlushesOnIdleGap is the literal seed scenario of spec §8
// boundary scenario 4: a process that keeps running but goes idle past
// its normalizer's time_gap must be flushed before it exits, not only
// once at EOF.
func TestRunFlushesOnIdleGap(t *testing.T) {
	norm := &idleCountingNormalizer{idle: 50 * time.Millisecond}
	s := New(messagestore.New(), norm)

	spawn := func(ctx context.Context, dir string, env []string) (*actionchain.SpawnedChild, error) {
		cmd := exec.CommandContext(ctx, "sh", "-c", "printf hello; sleep 0.3; printf world")
		return &actionchain.SpawnedChild{Process: cmd}, nil
	}
	head := actionchain.NewAction(actionchain.KindCodingAgentInitial, models.RunReasonCodingAgent, "", spawn)

	result := s.Run(context.Background(), head, t.TempDir(), make(chan struct{}))
	require.Equal(t, 0, result.ExitCode)
	// At least one idle-triggered flush (during the 0.3s sleep) plus the
	// final EOF flush.
	require.GreaterOrEqual(t, norm.flushCount(), 2)
}

func TestRunStopSignalAbortsLink(t *testing.T) {
	s := newTestSupervisor()
	stop := make(chan struct{})
	head := actionchain.NewAction(actionchain.KindCodingAgentInitial, models.RunReasonCodingAgent, "", fakeChild(0, nil, time.Hour))

	go func() {
		time.Sleep(10 * time.Millisecond)
		close(stop)
	}()

	result := s.Run(context.Background(), head, t.TempDir(), stop)
	require.Equal(t, -1, result.ExitCode)
}
