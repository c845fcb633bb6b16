package repositories

import (
	"context"
	"database/sql"
)

type ExecutionProcessRepoStateRepo struct {
	db *sql.DB
}

func NewExecutionProcessRepoStateRepo(db *sql.DB) *ExecutionProcessRepoStateRepo {
	return &ExecutionProcessRepoStateRepo{db: db}
}

// RecordBefore writes the pre-spawn HEAD snapshot (§4.7 step 1).
func (r *ExecutionProcessRepoStateRepo) RecordBefore(ctx context.Context, executionProcessID, repoID, beforeHead string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO execution_process_repo_states (execution_process_id, repo_id, before_head_commit)
		VALUES (?, ?, ?)
		ON CONFLICT (execution_process_id, repo_id) DO UPDATE SET before_head_commit = excluded.before_head_commit`,
		executionProcessID, repoID, beforeHead)
	return err
}

// RecordAfter writes the post-exit HEAD snapshot (§4.7 step 7).
func (r *ExecutionProcessRepoStateRepo) RecordAfter(ctx context.Context, executionProcessID, repoID, afterHead string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE execution_process_repo_states SET after_head_commit = ?
		WHERE execution_process_id = ? AND repo_id = ?`,
		afterHead, executionProcessID, repoID)
	return err
}

func (r *ExecutionProcessRepoStateRepo) Get(ctx context.Context, executionProcessID, repoID string) (before, after *string, err error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT before_head_commit, after_head_commit FROM execution_process_repo_states
		WHERE execution_process_id = ? AND repo_id = ?`, executionProcessID, repoID)
	var b, a sql.NullString
	if err := row.Scan(&b, &a); err != nil {
		return nil, nil, err
	}
	return strPtr(b), strPtr(a), nil
}
