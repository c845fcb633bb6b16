// Package workspacelifecycle implements WorkspaceLifecycle (spec §4.10):
// turning a Task into one or more live git worktrees, running each repo's
// setup/tool-install scripts, and copying any task images in before the
// first coding-agent execution ever starts. Grounded on the teacher's
// internal/coding/workspace.go WorkspaceManager.Create, generalized from
// one ephemeral temp-dir-per-session into the spec's persistent
// per-(workspace,repo) worktree model, and from a single setup call into
// per-repo tool_install/setup/archive script runs that share one helper
// (runScript), which executes each script as a direct subprocess.
package workspacelifecycle

import (
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"station/internal/actionchain"
	"station/internal/agentlauncher"
	"station/internal/db/repositories"
	"station/internal/gitservice"
	"station/internal/images"
	"station/pkg/models"
)

// Lifecycle owns worktree creation/teardown for workspaces.
type Lifecycle struct {
	git        *gitservice.Service
	repos      *repositories.Repositories
	images     *images.Service
	rootDir    string // parent directory under which all worktrees are created
}

func New(git *gitservice.Service, repos *repositories.Repositories, imgs *images.Service, rootDir string) *Lifecycle {
	return &Lifecycle{git: git, repos: repos, images: imgs, rootDir: rootDir}
}

// BranchName derives the per-workspace branch name, spec §4.10:
// "<prefix>/<slug of task title, max 16 chars>-<first 4 chars of workspace id>".
func BranchName(prefix, taskTitle, workspaceID string) string {
	slug := slugify16(taskTitle)
	short := workspaceID
	if len(short) > 4 {
		short = short[:4]
	}
	if prefix == "" {
		prefix = "vibe"
	}
	return fmt.Sprintf("%s/%s-%s", prefix, slug, short)
}

func slugify16(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ', r == '-', r == '_':
			b.WriteRune('-')
		}
	}
	out := strings.Trim(b.String(), "-")
	if len(out) > 16 {
		out = out[:16]
	}
	if out == "" {
		out = "task"
	}
	return out
}

// CreateWorkspaceRepo materializes one repo's worktree for a workspace:
// creates the git worktree, records its path, and runs that repo's
// tool_install script and then its setup script, each through runScript
// (spec §4.10 steps 1-2).
func (l *Lifecycle) CreateWorkspaceRepo(ctx context.Context, ws *models.Workspace, repo *models.Repo, branch string) (worktreePath string, err error) {
	worktreePath = filepath.Join(l.rootDir, ws.ID, repo.ID)

	if err := l.git.CreateWorktree(ctx, repo.Path, worktreePath, branch, repo.DefaultTargetBranch); err != nil {
		return "", fmt.Errorf("workspacelifecycle: create worktree: %w", err)
	}
	if err := l.repos.WorkspaceRepos.SetWorktreePath(ctx, ws.ID, repo.ID, worktreePath); err != nil {
		return "", fmt.Errorf("workspacelifecycle: persist worktree path: %w", err)
	}

	if err := l.runScript(ctx, repo.ToolInstallScript, worktreePath, models.RunReasonToolInstall); err != nil {
		return worktreePath, fmt.Errorf("workspacelifecycle: tool install: %w", err)
	}
	if err := l.runScript(ctx, repo.SetupScript, worktreePath, models.RunReasonSetupScript); err != nil {
		return worktreePath, fmt.Errorf("workspacelifecycle: setup script: %w", err)
	}
	return worktreePath, nil
}

// CreateWorkspace sets up every repo attached to ws. When any one repo has
// parallel_setup_script set, all of that workspace's repos are set up
// concurrently via errgroup (spec §4.10 "parallel_setup_script=true" —
// domain-stack wiring of golang.org/x/sync/errgroup); otherwise repos are
// set up in order, matching the teacher's default sequential behavior.
func (l *Lifecycle) CreateWorkspace(ctx context.Context, ws *models.Workspace, branchPrefix string, repos []*models.Repo) error {
	branch := BranchName(branchPrefix, ws.Name, ws.ID)

	parallel := false
	for _, r := range repos {
		if r.ParallelSetupScript {
			parallel = true
		}
	}

	if !parallel {
		for _, r := range repos {
			if _, err := l.CreateWorkspaceRepo(ctx, ws, r, branch); err != nil {
				return err
			}
		}
	} else {
		g, gctx := errgroup.WithContext(ctx)
		for _, r := range repos {
			r := r
			g.Go(func() error {
				_, err := l.CreateWorkspaceRepo(gctx, ws, r, branch)
				return err
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}
	}

	return l.repos.Workspaces.SetBranch(ctx, ws.ID, branch)
}

// CopyTaskImages copies every supplied image into each of the workspace's
// repo worktrees (spec §4.10 step 3).
func (l *Lifecycle) CopyTaskImages(ctx context.Context, ws *models.Workspace, imgs []*models.Image) error {
	wrs, err := l.repos.WorkspaceRepos.ListByWorkspace(ctx, ws.ID)
	if err != nil {
		return err
	}
	for _, wr := range wrs {
		if wr.WorktreePath == nil {
			continue
		}
		for _, img := range imgs {
			if err := l.images.CopyToWorktree(ctx, img, *wr.WorktreePath); err != nil {
				return fmt.Errorf("workspacelifecycle: copy image %s: %w", img.ID, err)
			}
		}
	}
	return nil
}

// Archive runs each repo's archive_script then marks the workspace
// archived (spec §4.10 step 4 / teardown path).
func (l *Lifecycle) Archive(ctx context.Context, ws *models.Workspace, repos []*models.Repo) error {
	wrs, err := l.repos.WorkspaceRepos.ListByWorkspace(ctx, ws.ID)
	if err != nil {
		return err
	}
	pathByRepo := map[string]string{}
	for _, wr := range wrs {
		if wr.WorktreePath != nil {
			pathByRepo[wr.RepoID] = *wr.WorktreePath
		}
	}

	for _, r := range repos {
		dir, ok := pathByRepo[r.ID]
		if !ok {
			continue
		}
		if err := l.runScript(ctx, r.ArchiveScript, dir, models.RunReasonArchiveScript); err != nil {
			return fmt.Errorf("workspacelifecycle: archive script for %s: %w", r.ID, err)
		}
	}
	return l.repos.Workspaces.SetArchived(ctx, ws.ID, true)
}

// runScript tokenizes script and runs it to completion synchronously as a
// plain subprocess (10-minute timeout), used for the tool_install/setup/
// archive scripts that aren't part of a supervised ExecutionProcess.
func (l *Lifecycle) runScript(ctx context.Context, script *string, dir string, reason models.RunReason) error {
	if script == nil || strings.TrimSpace(*script) == "" {
		return nil
	}

	argv, err := agentlauncher.Tokenize(*script)
	if err != nil {
		return fmt.Errorf("tokenize %s script: %w", reason, err)
	}
	if len(argv) == 0 {
		return nil
	}

	deadline, cancel := context.WithTimeout(ctx, 10*time.Minute)
	defer cancel()

	cmd := exec.CommandContext(deadline, argv[0], argv[1:]...)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("%s exited: %w: %s", reason, err, string(out))
	}
	return nil
}

// ScriptAction mirrors a script into an actionchain.Action for callers that
// want it driven through the supervisor instead of run inline (e.g.
// dev_server, which must stay alive past setup — spec §4.6's exemption).
func ScriptAction(script string, reason models.RunReason, relDir string) *actionchain.Action {
	return actionchain.NewAction(actionchain.KindScriptRequest, reason, relDir, func(ctx context.Context, dir string, env []string) (*actionchain.SpawnedChild, error) {
		argv, err := agentlauncher.Tokenize(script)
		if err != nil || len(argv) == 0 {
			return nil, fmt.Errorf("tokenize script: %w", err)
		}
		cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
		cmd.Dir = dir
		cmd.Env = env
		return &actionchain.SpawnedChild{
			Process: cmd,
			Wait: func() (int, error) {
				err := cmd.Wait()
				if exitErr, ok := err.(*exec.ExitError); ok {
					return exitErr.ExitCode(), nil
				}
				if err != nil {
					return 127, err
				}
				return 0, nil
			},
			Cancel: func() {
				if cmd.Process != nil {
					_ = cmd.Process.Kill()
				}
			},
		}, nil
	})
}
