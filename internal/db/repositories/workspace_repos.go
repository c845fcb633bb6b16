package repositories

import (
	"context"
	"database/sql"

	"station/pkg/models"
)

type WorkspaceRepoRepo struct {
	db *sql.DB
}

func NewWorkspaceRepoRepo(db *sql.DB) *WorkspaceRepoRepo {
	return &WorkspaceRepoRepo{db: db}
}

// Upsert enforces the §3 invariant "at most one WorkspaceRepo row exists for
// (w, r)" using the database's native ON CONFLICT primitive per §4.11,
// rather than a check-then-insert race.
func (r *WorkspaceRepoRepo) Upsert(ctx context.Context, wr *models.WorkspaceRepo) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO workspace_repos (workspace_id, repo_id, target_branch, worktree_path)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (workspace_id, repo_id) DO UPDATE SET
			target_branch = excluded.target_branch,
			worktree_path = excluded.worktree_path`,
		wr.WorkspaceID, wr.RepoID, wr.TargetBranch, nullString(wr.WorktreePath))
	return err
}

func (r *WorkspaceRepoRepo) SetWorktreePath(ctx context.Context, workspaceID, repoID, path string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE workspace_repos SET worktree_path = ? WHERE workspace_id = ? AND repo_id = ?`,
		path, workspaceID, repoID)
	return err
}

func (r *WorkspaceRepoRepo) ListByWorkspace(ctx context.Context, workspaceID string) ([]*models.WorkspaceRepo, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT workspace_id, repo_id, target_branch, worktree_path
		FROM workspace_repos WHERE workspace_id = ?`, workspaceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.WorkspaceRepo
	for rows.Next() {
		var wr models.WorkspaceRepo
		var path sql.NullString
		if err := rows.Scan(&wr.WorkspaceID, &wr.RepoID, &wr.TargetBranch, &path); err != nil {
			return nil, err
		}
		wr.WorktreePath = strPtr(path)
		out = append(out, &wr)
	}
	return out, rows.Err()
}
