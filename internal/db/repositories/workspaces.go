package repositories

import (
	"context"
	"database/sql"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"station/pkg/models"
)

type WorkspaceRepo struct {
	db     *sql.DB
	tracer trace.Tracer
}

func NewWorkspaceRepo(db *sql.DB) *WorkspaceRepo {
	return &WorkspaceRepo{db: db, tracer: otel.Tracer("core-database")}
}

func (r *WorkspaceRepo) Create(ctx context.Context, w *models.Workspace) error {
	now := time.Now()
	w.CreatedAt, w.UpdatedAt = now, now
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO workspaces (id, task_id, name, branch, agent_working_dir, archived, pinned, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		w.ID, w.TaskID, w.Name, nullString(w.Branch), w.AgentWorkingDir, w.Archived, w.Pinned, w.CreatedAt, w.UpdatedAt)
	return err
}

func (r *WorkspaceRepo) Get(ctx context.Context, id string) (*models.Workspace, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, task_id, name, branch, agent_working_dir, archived, pinned, created_at, updated_at
		FROM workspaces WHERE id = ?`, id)
	var w models.Workspace
	var branch sql.NullString
	if err := row.Scan(&w.ID, &w.TaskID, &w.Name, &branch, &w.AgentWorkingDir, &w.Archived, &w.Pinned, &w.CreatedAt, &w.UpdatedAt); err != nil {
		return nil, err
	}
	w.Branch = strPtr(branch)
	return &w, nil
}

// SetBranch records the worktree branch once WorkspaceLifecycle derives it
// (§4.10 step 1). Idempotent: re-setting the same branch is a no-op write.
func (r *WorkspaceRepo) SetBranch(ctx context.Context, id, branch string) error {
	_, err := r.db.ExecContext(ctx, `UPDATE workspaces SET branch = ?, updated_at = ? WHERE id = ?`, branch, time.Now(), id)
	return err
}

func (r *WorkspaceRepo) SetArchived(ctx context.Context, id string, archived bool) error {
	_, err := r.db.ExecContext(ctx, `UPDATE workspaces SET archived = ?, updated_at = ? WHERE id = ?`, archived, time.Now(), id)
	return err
}
