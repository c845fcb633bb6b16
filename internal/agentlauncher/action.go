package agentlauncher

import (
	"context"
	"os/exec"

	"station/internal/actionchain"
	"station/pkg/models"
)

// DefaultProfiles maps a Session.Executor name (the same strings as
// lognormalizer.AgentKind) to its built-in ExecutorProfile. Base commands
// and default params are the shipped defaults spec §4.5 gives as examples;
// an operator config layer may override BaseCommand/DefaultParams per
// profile in a future revision, but every executor this core knows about
// resolves to one of these out of the box.
var DefaultProfiles = map[string]ExecutorProfile{
	"claude": {
		BaseCommand:      "npx -y @anthropic-ai/claude-code@latest",
		DefaultParams:    []string{"--print", "--output-format", "stream-json"},
		SupportsFollowUp: true,
	},
	"codex": {
		BaseCommand:      "npx -y @openai/codex@latest",
		DefaultParams:    []string{"exec", "--json"},
		SupportsFollowUp: true,
	},
	"cursor": {
		BaseCommand:      "cursor-agent",
		DefaultParams:    []string{"--output-format", "stream-json"},
		SupportsFollowUp: true,
	},
	"opencode": {
		BaseCommand:      "opencode",
		DefaultParams:    []string{"run", "--print-logs"},
		SupportsFollowUp: true,
	},
	// The remaining five agent kinds are wired into lognormalizer's
	// plain-text strategy (no stream-JSON mapping exists for them yet, see
	// internal/lognormalizer/streamjson.go) and ship with
	// SupportsFollowUp false: none of their CLIs has a documented
	// --resume/--continue flag in the retrieval pack, so spawn_follow_up
	// correctly surfaces ErrFollowUpNotSupported for them (spec §4.8)
	// rather than guessing at a flag.
	"copilot": {BaseCommand: "gh copilot"},
	"gemini":  {BaseCommand: "gemini"},
	"amp":     {BaseCommand: "amp"},
	"qwen":    {BaseCommand: "qwen"},
	"droid":   {BaseCommand: "droid"},
}

// ProfileFor resolves an executor name to its default profile.
func ProfileFor(executor string) (ExecutorProfile, bool) {
	p, ok := DefaultProfiles[executor]
	return p, ok
}

// CommandAction wraps a resolved Command into an actionchain.Action whose
// SpawnFunc hands the supervisor an unstarted *exec.Cmd, mirroring
// workspacelifecycle.ScriptAction's shape for script links.
func CommandAction(kind actionchain.ActionKind, reason models.RunReason, relDir string, cmd *Command) *actionchain.Action {
	return actionchain.NewAction(kind, reason, relDir, func(ctx context.Context, dir string, env []string) (*actionchain.SpawnedChild, error) {
		c := exec.CommandContext(ctx, cmd.Path, cmd.Args[1:]...)
		c.Dir = dir
		c.Env = append(append([]string{}, cmd.Env...), env...)
		return &actionchain.SpawnedChild{
			Process: c,
			Wait: func() (int, error) {
				err := c.Wait()
				if exitErr, ok := err.(*exec.ExitError); ok {
					return exitErr.ExitCode(), nil
				}
				if err != nil {
					return 127, err
				}
				return 0, nil
			},
			Cancel: func() {
				if c.Process != nil {
					_ = c.Process.Kill()
				}
			},
		}, nil
	})
}
