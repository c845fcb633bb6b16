// Package actionchain implements the Action tagged union and singly
// linked Chain of spec §4.6: the supervisor runs each link in order,
// resolving working directories relative to the one before it. Grounded
// on the teacher's internal/coding package, which built one exec.Cmd per
// backend call; here that single spawn point is generalized into a
// reusable link type so setup/cleanup/review/coding-agent steps can be
// composed uniformly.
package actionchain

import (
	"context"
	"path/filepath"

	"station/pkg/models"
)

// ActionKind discriminates the tagged union (spec §4.6).
type ActionKind string

const (
	KindCodingAgentInitial  ActionKind = "coding_agent_initial"
	KindCodingAgentFollowUp ActionKind = "coding_agent_follow_up"
	KindReviewRequest       ActionKind = "review_request"
	KindScriptRequest       ActionKind = "script_request"
)

// SpawnedChild is what Action.Spawn hands back to the supervisor: a
// running child process plus the means to cancel it.
type SpawnedChild struct {
	Cancel func()
	Wait   func() (exitCode int, err error)
	Stdout func() ([]byte, error) // convenience for callers that want to tee later; supervisor uses pipes directly via Process
	Stderr func() ([]byte, error)
	// Process carries the *os/exec.Cmd-equivalent needed for signalling;
	// kept as an any to avoid a hard dependency from this package on the
	// concrete process type used by internal/supervisor.
	Process any
}

// SpawnFunc performs the actual subprocess launch for one Action. dir is
// the action's resolved effective directory; env is the composed
// environment (agentlauncher.Command.Env shape, "KEY=VALUE" pairs).
type SpawnFunc func(ctx context.Context, dir string, env []string) (*SpawnedChild, error)

// Action is one link of the chain.
type Action struct {
	Kind       ActionKind
	RunReason  models.RunReason
	RelDir     string // working dir relative to the current dir when this link runs
	Spawn      SpawnFunc
	next       *Action
}

// NewAction constructs a leaf action (no next link).
func NewAction(kind ActionKind, reason models.RunReason, relDir string, spawn SpawnFunc) *Action {
	return &Action{Kind: kind, RunReason: reason, RelDir: relDir, Spawn: spawn}
}

// EffectiveDir concatenates RelDir onto current, matching spec §4.6's
// effective_dir(current) resolver.
func (a *Action) EffectiveDir(current string) string {
	if a.RelDir == "" {
		return current
	}
	return filepath.Join(current, a.RelDir)
}

// Next returns the next link in the chain, or nil at the tail.
func (a *Action) Next() *Action { return a.next }

// Append returns a new chain with node appended after the current tail,
// without mutating the original links (spec §4.6: "producing a new
// chain"). head may be nil to start a fresh single-node chain.
func Append(head *Action, node *Action) *Action {
	if head == nil {
		return node
	}
	clone := *head
	clone.next = Append(head.next, node)
	return &clone
}

// IsLongLived reports whether a link's run_reason exempts it from the
// "non-zero exit aborts the chain" rule (spec §4.6: dev_server links are
// never waited on).
func (a *Action) IsLongLived() bool {
	return a.RunReason == models.RunReasonDevServer
}
