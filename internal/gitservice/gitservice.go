// Package gitservice implements the named git collaborator of spec §6:
// clone, init, worktree lifecycle, rev-parse, status, auto-commit, diff,
// branch/remote listing. Grounded on the exec.CommandContext-per-git-verb
// style of the teacher's internal/coding/workspace.go (InitGit, CloneRepo,
// GetCommitsSince), generalized from a single flat workspace directory
// into the worktree-per-(workspace,repo) model spec §4.10 needs, and
// extended with a diff-summarization helper (SummarizeDiff) built on
// sergi/go-diff; no other package in this module calls it.
package gitservice

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"regexp"
	"strings"
	"sync"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// ErrWorktreeExists and ErrDirtyWorkingCopy are GitError-kind failures
// per spec §7.
var (
	ErrWorktreeExists    = fmt.Errorf("gitservice: worktree already exists")
	ErrDirtyWorkingCopy  = fmt.Errorf("gitservice: working copy has uncommitted changes")
)

// Service mutates git repositories via the system `git` binary. Mutations
// on the same worktree are serialized via a per-path mutex (spec §5
// "concurrent mutations on the same worktree are not permitted").
type Service struct {
	mu        sync.Mutex
	repoLocks map[string]*sync.Mutex
}

func New() *Service {
	return &Service{repoLocks: make(map[string]*sync.Mutex)}
}

func (s *Service) lockFor(path string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.repoLocks[path]
	if !ok {
		l = &sync.Mutex{}
		s.repoLocks[path] = l
	}
	return l
}

func (s *Service) run(ctx context.Context, dir string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = dir
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("git %s: %w: %s", strings.Join(args, " "), err, strings.TrimSpace(stderr.String()))
	}
	return strings.TrimSpace(stdout.String()), nil
}

// Clone clones repoURL into dir at the given branch (empty for default).
func (s *Service) Clone(ctx context.Context, dir, repoURL, branch string) error {
	lock := s.lockFor(dir)
	lock.Lock()
	defer lock.Unlock()

	args := []string{"clone"}
	if branch != "" {
		args = append(args, "-b", branch)
	}
	args = append(args, repoURL, dir)
	_, err := s.run(ctx, ".", args...)
	return err
}

// InitRepoWithMainBranch initializes a fresh repo with an initial commit
// on `main`, grounded on the teacher's InitGit + config user.email/name
// sequence.
func (s *Service) InitRepoWithMainBranch(ctx context.Context, dir string) error {
	lock := s.lockFor(dir)
	lock.Lock()
	defer lock.Unlock()

	if _, err := s.run(ctx, dir, "init", "-b", "main"); err != nil {
		return err
	}
	_, _ = s.run(ctx, dir, "config", "user.email", "execution-core@localhost")
	_, _ = s.run(ctx, dir, "config", "user.name", "execution-core")
	return nil
}

// CreateWorktree adds a worktree at worktreePath on a new branch,
// branched off base (the repo's target_branch). Fails with
// ErrWorktreeExists if worktreePath is already a registered worktree.
func (s *Service) CreateWorktree(ctx context.Context, repoDir, worktreePath, branch, base string) error {
	lock := s.lockFor(repoDir)
	lock.Lock()
	defer lock.Unlock()

	existing, err := s.run(ctx, repoDir, "worktree", "list", "--porcelain")
	if err == nil && strings.Contains(existing, worktreePath) {
		return ErrWorktreeExists
	}

	_, err = s.run(ctx, repoDir, "worktree", "add", "-b", branch, worktreePath, base)
	return err
}

// DeleteWorktree removes a worktree and prunes its administrative files.
func (s *Service) DeleteWorktree(ctx context.Context, repoDir, worktreePath string) error {
	lock := s.lockFor(repoDir)
	lock.Lock()
	defer lock.Unlock()

	_, err := s.run(ctx, repoDir, "worktree", "remove", "--force", worktreePath)
	if err != nil {
		_, _ = s.run(ctx, repoDir, "worktree", "prune")
	}
	return err
}

// RevParse resolves a ref (e.g. "HEAD" or a branch name) to a full commit sha.
func (s *Service) RevParse(ctx context.Context, dir, ref string) (string, error) {
	return s.run(ctx, dir, "rev-parse", ref)
}

// CurrentBranch returns the checked-out branch name of dir.
func (s *Service) CurrentBranch(ctx context.Context, dir string) (string, error) {
	return s.run(ctx, dir, "rev-parse", "--abbrev-ref", "HEAD")
}

// HasUncommittedChanges reports whether dir's working tree is dirty.
func (s *Service) HasUncommittedChanges(ctx context.Context, dir string) (bool, error) {
	out, err := s.run(ctx, dir, "status", "--porcelain")
	if err != nil {
		return false, err
	}
	return out != "", nil
}

// AutoCommit commits all changes in dir with message, returning the new
// commit sha. Returns "" with no error if there was nothing to commit.
func (s *Service) AutoCommit(ctx context.Context, dir, message string) (string, error) {
	lock := s.lockFor(dir)
	lock.Lock()
	defer lock.Unlock()

	dirty, err := s.HasUncommittedChanges(ctx, dir)
	if err != nil {
		return "", err
	}
	if !dirty {
		return "", nil
	}
	if _, err := s.run(ctx, dir, "add", "-A"); err != nil {
		return "", err
	}
	if _, err := s.run(ctx, dir, "commit", "-m", message); err != nil {
		return "", err
	}
	return s.RevParse(ctx, dir, "HEAD")
}

// WorktreeStatus returns the raw `git status --porcelain` output.
func (s *Service) WorktreeStatus(ctx context.Context, dir string) (string, error) {
	return s.run(ctx, dir, "status", "--porcelain")
}

var commitHashPrefix = regexp.MustCompile(`^[a-f0-9]+`)

// HasCommitsSince reports whether HEAD has any commits since base.
func (s *Service) HasCommitsSince(ctx context.Context, dir, base string) (bool, error) {
	args := []string{"log", "--oneline"}
	if base != "" {
		args = append(args, base+"..HEAD")
	}
	out, err := s.run(ctx, dir, args...)
	if err != nil {
		return false, err
	}
	for _, line := range strings.Split(out, "\n") {
		if commitHashPrefix.MatchString(line) {
			return true, nil
		}
	}
	return false, nil
}

// ListBranches lists local branch names.
func (s *Service) ListBranches(ctx context.Context, dir string) ([]string, error) {
	out, err := s.run(ctx, dir, "branch", "--format=%(refname:short)")
	if err != nil {
		return nil, err
	}
	if out == "" {
		return nil, nil
	}
	return strings.Split(out, "\n"), nil
}

// ListRemotes lists configured remote names.
func (s *Service) ListRemotes(ctx context.Context, dir string) ([]string, error) {
	out, err := s.run(ctx, dir, "remote")
	if err != nil {
		return nil, err
	}
	if out == "" {
		return nil, nil
	}
	return strings.Split(out, "\n"), nil
}

// GetRemoteURL returns the fetch URL of a named remote.
func (s *Service) GetRemoteURL(ctx context.Context, dir, remote string) (string, error) {
	return s.run(ctx, dir, "remote", "get-url", remote)
}

// Diff returns the raw patch text between two refs via `git diff`. It
// computes no summary; SummarizeDiff is a separate helper.
func (s *Service) Diff(ctx context.Context, dir, from, to string) (string, error) {
	args := []string{"diff"}
	if from != "" && to != "" {
		args = append(args, from+".."+to)
	} else if from != "" {
		args = append(args, from)
	}
	return s.run(ctx, dir, args...)
}

// SummarizeDiff produces a character-level diffmatchpatch diff of before
// vs after file content (DiffMain followed by semantic cleanup), distinct
// from the raw `git diff` text.
func SummarizeDiff(before, after string) []diffmatchpatch.Diff {
	dmp := diffmatchpatch.New()
	diffs := dmp.DiffMain(before, after, false)
	return dmp.DiffCleanupSemantic(diffs)
}
