// Package config loads CoreConfig, the execution core's settings, via a
// layered defaults → config file → environment variable chain; Load
// reads no command-line flags.
// Grounded on the teacher's internal/config.Load (spf13/viper with a
// registered defaults map and STATION_-prefixed env override), cut down
// from the teacher's much larger MCP-template config surface to the
// handful of settings this execution core actually needs.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// CoreConfig groups every execution-core setting named in SPEC_FULL.md's
// ambient-stack section.
type CoreConfig struct {
	// WorktreeRoot is the parent directory under which per-workspace,
	// per-repo git worktrees are created (internal/workspacelifecycle).
	WorktreeRoot string

	// ImageStoreRoot is the content-addressed disk root for uploaded
	// images (internal/images.DiskStore).
	ImageStoreRoot string

	// DBPath is the sqlite file path.
	DBPath string

	// DefaultApprovalTimeout is how long an approval waits before the
	// sweeper marks it timed_out, absent a tool-specific override
	// (internal/approval).
	DefaultApprovalTimeout time.Duration

	// ApprovalSweepInterval is how often RunSweeper polls for expired
	// approvals.
	ApprovalSweepInterval time.Duration

	// ExecutorTimeout is loaded from executor_timeout (default 2h). No
	// component reads it: executions are not stopped on a timer.
	ExecutorTimeout time.Duration

	// AutoCommit toggles Orchestrator.AutoCommit (spec §4.8 step 3).
	AutoCommit bool

	// BranchPrefix is prepended to every derived workspace branch name
	// (internal/workspacelifecycle.BranchName).
	BranchPrefix string
}

// Load reads CoreConfig from (in increasing priority) built-in defaults,
// an optional config file, and STATION_-prefixed environment variables,
// matching the teacher's own precedence order.
func Load(configPath string) (*CoreConfig, error) {
	v := viper.New()

	v.SetDefault("worktree_root", "./.vibe/worktrees")
	v.SetDefault("image_store_root", "./.vibe/images")
	v.SetDefault("db_path", "./.vibe/core.sqlite")
	v.SetDefault("default_approval_timeout", "15m")
	v.SetDefault("approval_sweep_interval", "30s")
	v.SetDefault("executor_timeout", "2h")
	v.SetDefault("auto_commit", true)
	v.SetDefault("branch_prefix", "vibe")

	v.SetEnvPrefix("station")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", configPath, err)
		}
	}

	approvalTimeout, err := time.ParseDuration(v.GetString("default_approval_timeout"))
	if err != nil {
		return nil, fmt.Errorf("config: default_approval_timeout: %w", err)
	}
	sweepInterval, err := time.ParseDuration(v.GetString("approval_sweep_interval"))
	if err != nil {
		return nil, fmt.Errorf("config: approval_sweep_interval: %w", err)
	}
	executorTimeout, err := time.ParseDuration(v.GetString("executor_timeout"))
	if err != nil {
		return nil, fmt.Errorf("config: executor_timeout: %w", err)
	}

	return &CoreConfig{
		WorktreeRoot:           v.GetString("worktree_root"),
		ImageStoreRoot:         v.GetString("image_store_root"),
		DBPath:                 v.GetString("db_path"),
		DefaultApprovalTimeout: approvalTimeout,
		ApprovalSweepInterval:  sweepInterval,
		ExecutorTimeout:        executorTimeout,
		AutoCommit:             v.GetBool("auto_commit"),
		BranchPrefix:           v.GetString("branch_prefix"),
	}, nil
}
