package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, "vibe", cfg.BranchPrefix)
	require.Equal(t, 15*time.Minute, cfg.DefaultApprovalTimeout)
	require.True(t, cfg.AutoCommit)
}

func TestLoadEnvOverridesDefault(t *testing.T) {
	t.Setenv("STATION_BRANCH_PREFIX", "custom")
	t.Setenv("STATION_AUTO_COMMIT", "false")
	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, "custom", cfg.BranchPrefix)
	require.False(t, cfg.AutoCommit)
}

func TestLoadConfigFileOverridesDefault(t *testing.T) {
	path := t.TempDir() + "/core.yaml"
	require.NoError(t, os.WriteFile(path, []byte("worktree_root: /tmp/custom-root\n"), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "/tmp/custom-root", cfg.WorktreeRoot)
}
