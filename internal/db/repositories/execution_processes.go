package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"station/internal/db"
	"station/pkg/models"
)

type ExecutionProcessRepo struct {
	db     *sql.DB
	tracer trace.Tracer
}

func NewExecutionProcessRepo(db *sql.DB) *ExecutionProcessRepo {
	return &ExecutionProcessRepo{db: db, tracer: otel.Tracer("core-database")}
}

// Create enforces the §3 invariant "at most one row per session with
// status=running among the non-dev_server run_reasons" inside the same
// transaction as the insert, returning a plain error naming the session if
// violated (StartExecution wraps it with fmt.Errorf; no ConcurrencyError
// type exists in this module).
func (r *ExecutionProcessRepo) Create(ctx context.Context, e *models.ExecutionProcess) error {
	ctx, span := r.tracer.Start(ctx, "ExecutionProcessRepo.Create")
	defer span.End()

	db.SQLiteWriteMutex.Lock()
	defer db.SQLiteWriteMutex.Unlock()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if e.RunReason != models.RunReasonDevServer {
		var count int
		err := tx.QueryRowContext(ctx, `
			SELECT COUNT(*) FROM execution_processes
			WHERE session_id = ? AND status = 'running' AND dropped = 0 AND run_reason != 'dev_server'`,
			e.SessionID).Scan(&count)
		if err != nil {
			return err
		}
		if count > 0 {
			return fmt.Errorf("session %s already has a running execution process", e.SessionID)
		}
	}

	e.StartedAt = time.Now()
	if e.Status == "" {
		e.Status = models.ExecutionStatusRunning
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO execution_processes (id, session_id, run_reason, action, status, exit_code, started_at, completed_at, dropped)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.SessionID, e.RunReason, e.Action, e.Status, nullInt64(e.ExitCode), e.StartedAt, nullTime(e.CompletedAt), e.Dropped)
	if err != nil {
		return err
	}
	return tx.Commit()
}

func (r *ExecutionProcessRepo) Get(ctx context.Context, id string) (*models.ExecutionProcess, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, session_id, run_reason, action, status, exit_code, started_at, completed_at, dropped
		FROM execution_processes WHERE id = ?`, id)
	return scanExecutionProcess(row)
}

func scanExecutionProcess(row scannable) (*models.ExecutionProcess, error) {
	var e models.ExecutionProcess
	var exitCode sql.NullInt64
	var completedAt sql.NullTime
	if err := row.Scan(&e.ID, &e.SessionID, &e.RunReason, &e.Action, &e.Status, &exitCode, &e.StartedAt, &completedAt, &e.Dropped); err != nil {
		return nil, err
	}
	e.ExitCode = intPtr(exitCode)
	if completedAt.Valid {
		e.CompletedAt = &completedAt.Time
	}
	return &e, nil
}

// Finish persists the post-exit state of an execution (§4.7 step 7 /
// §4.11): status, exit code, completed_at, all in one statement so the
// observable transition is atomic. Enforces started_at <= completed_at
// (§8) by stamping completed_at with time.Now() server-side, never trusting
// a caller-supplied timestamp that could predate started_at.
func (r *ExecutionProcessRepo) Finish(ctx context.Context, id string, status models.ExecutionStatus, exitCode int) error {
	now := time.Now()
	_, err := r.db.ExecContext(ctx, `
		UPDATE execution_processes SET status = ?, exit_code = ?, completed_at = ? WHERE id = ?`,
		status, exitCode, now, id)
	return err
}

// MarkDropped tombstones a row (§4.11 soft delete) so in-flight log index
// invariants survive while the row is hidden from listings.
func (r *ExecutionProcessRepo) MarkDropped(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `UPDATE execution_processes SET dropped = 1 WHERE id = ?`, id)
	return err
}

// LatestForSession returns the most-recently-created non-dropped execution
// process for a session, used by spawn_follow_up to find the turn to
// resume (§4.8).
func (r *ExecutionProcessRepo) LatestForSession(ctx context.Context, sessionID string) (*models.ExecutionProcess, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, session_id, run_reason, action, status, exit_code, started_at, completed_at, dropped
		FROM execution_processes
		WHERE session_id = ? AND dropped = 0
		ORDER BY started_at DESC LIMIT 1`, sessionID)
	return scanExecutionProcess(row)
}

// RecoverCrashed implements §7 crash recovery: every row left `running`
// across a process restart transitions to `failed` with the sentinel exit
// code. Returns the ids transitioned so the caller can log them.
func (r *ExecutionProcessRepo) RecoverCrashed(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id FROM execution_processes WHERE status = 'running'`)
	if err != nil {
		return nil, err
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, err
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	now := time.Now()
	_, err = r.db.ExecContext(ctx, `
		UPDATE execution_processes SET status = 'failed', exit_code = ?, completed_at = ? WHERE status = 'running'`,
		models.CrashRecoveryExitCode, now)
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
