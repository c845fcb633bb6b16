package gitservice

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInitAndAutoCommit(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	svc := New()

	require.NoError(t, svc.InitRepoWithMainBranch(ctx, dir))

	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("hello"), 0644))

	dirty, err := svc.HasUncommittedChanges(ctx, dir)
	require.NoError(t, err)
	require.True(t, dirty)

	sha, err := svc.AutoCommit(ctx, dir, "auto: checkpoint")
	require.NoError(t, err)
	require.NotEmpty(t, sha)

	dirty, err = svc.HasUncommittedChanges(ctx, dir)
	require.NoError(t, err)
	require.False(t, dirty)
}

func TestAutoCommitNoChangesReturnsEmpty(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	svc := New()
	require.NoError(t, svc.InitRepoWithMainBranch(ctx, dir))

	sha, err := svc.AutoCommit(ctx, dir, "auto: checkpoint")
	require.NoError(t, err)
	require.Empty(t, sha)
}

func TestCreateAndDeleteWorktree(t *testing.T) {
	ctx := context.Background()
	repoDir := t.TempDir()
	svc := New()
	require.NoError(t, svc.InitRepoWithMainBranch(ctx, repoDir))
	require.NoError(t, os.WriteFile(filepath.Join(repoDir, "README.md"), []byte("x"), 0644))
	_, err := svc.AutoCommit(ctx, repoDir, "init")
	require.NoError(t, err)

	worktreeDir := filepath.Join(t.TempDir(), "wt1")
	require.NoError(t, svc.CreateWorktree(ctx, repoDir, worktreeDir, "feature/test", "main"))

	branch, err := svc.CurrentBranch(ctx, worktreeDir)
	require.NoError(t, err)
	require.Equal(t, "feature/test", branch)

	require.NoError(t, svc.DeleteWorktree(ctx, repoDir, worktreeDir))
}

func TestHasCommitsSince(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	svc := New()
	require.NoError(t, svc.InitRepoWithMainBranch(ctx, dir))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "f"), []byte("1"), 0644))
	base, err := svc.AutoCommit(ctx, dir, "base")
	require.NoError(t, err)

	has, err := svc.HasCommitsSince(ctx, dir, base)
	require.NoError(t, err)
	require.False(t, has)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "f"), []byte("2"), 0644))
	_, err = svc.AutoCommit(ctx, dir, "second")
	require.NoError(t, err)

	has, err = svc.HasCommitsSince(ctx, dir, base)
	require.NoError(t, err)
	require.True(t, has)
}

func TestSummarizeDiffReportsChanges(t *testing.T) {
	diffs := SummarizeDiff("line one\nline two\n", "line one\nline three\n")
	require.NotEmpty(t, diffs)
}
