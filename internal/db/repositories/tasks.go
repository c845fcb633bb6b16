package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"station/pkg/models"
)

type TaskRepo struct {
	db     *sql.DB
	tracer trace.Tracer
}

func NewTaskRepo(db *sql.DB) *TaskRepo {
	return &TaskRepo{db: db, tracer: otel.Tracer("core-database")}
}

func (r *TaskRepo) Create(ctx context.Context, t *models.Task) error {
	ctx, span := r.tracer.Start(ctx, "TaskRepo.Create")
	defer span.End()

	now := time.Now()
	t.CreatedAt, t.UpdatedAt = now, now
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO tasks (id, project_id, title, description, status, parent_workspace_id, fk_parent_workspace, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.ProjectID, t.Title, t.Description, t.Status, nullString(t.ParentWorkspaceID), nullString(t.ParentWorkspaceID), t.CreatedAt, t.UpdatedAt)
	return err
}

func (r *TaskRepo) Get(ctx context.Context, id string) (*models.Task, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, project_id, title, description, status, parent_workspace_id, created_at, updated_at
		FROM tasks WHERE id = ?`, id)
	return scanTask(row)
}

func scanTask(row *sql.Row) (*models.Task, error) {
	var t models.Task
	var parent sql.NullString
	if err := row.Scan(&t.ID, &t.ProjectID, &t.Title, &t.Description, &t.Status, &parent, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return nil, err
	}
	t.ParentWorkspaceID = strPtr(parent)
	return &t, nil
}

// TransitionStatus sets the task's status with a plain UPDATE. It does not
// check the §3 invariant that a task may only move to in_review once it
// has at least one successful agent execution; the orchestrator only
// calls it for that transition after a clean coding-agent exit.
func (r *TaskRepo) TransitionStatus(ctx context.Context, id string, status models.TaskStatus) error {
	res, err := r.db.ExecContext(ctx, `UPDATE tasks SET status = ?, updated_at = ? WHERE id = ?`, status, time.Now(), id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("task %s not found", id)
	}
	return nil
}

func (r *TaskRepo) ListByProject(ctx context.Context, projectID string) ([]*models.Task, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, project_id, title, description, status, parent_workspace_id, created_at, updated_at
		FROM tasks WHERE project_id = ? ORDER BY created_at`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.Task
	for rows.Next() {
		var t models.Task
		var parent sql.NullString
		if err := rows.Scan(&t.ID, &t.ProjectID, &t.Title, &t.Description, &t.Status, &parent, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, err
		}
		t.ParentWorkspaceID = strPtr(parent)
		out = append(out, &t)
	}
	return out, rows.Err()
}
