package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"station/pkg/models"
)

type ApprovalRepo struct {
	db *sql.DB
}

func NewApprovalRepo(db *sql.DB) *ApprovalRepo {
	return &ApprovalRepo{db: db}
}

// Create enforces the §3 invariant "exactly one active (pending) approval
// per (execution_process_id, tool_call_id)" via the UNIQUE constraint on
// that pair; a duplicate request surfaces as the driver's UNIQUE-constraint
// error, returned unwrapped.
func (r *ApprovalRepo) Create(ctx context.Context, a *models.Approval) error {
	a.RequestedAt = time.Now()
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO approvals (id, execution_process_id, tool_name, tool_input, tool_call_id, status, requested_at, timeout_at, reason)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.ExecutionProcessID, a.ToolName, a.ToolInput, a.ToolCallID, models.ApprovalPending, a.RequestedAt, a.TimeoutAt, nullString(a.Reason))
	return err
}

func (r *ApprovalRepo) Get(ctx context.Context, id string) (*models.Approval, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, execution_process_id, tool_name, tool_input, tool_call_id, status, requested_at, timeout_at, reason
		FROM approvals WHERE id = ?`, id)
	return scanApproval(row)
}

func scanApproval(row scannable) (*models.Approval, error) {
	var a models.Approval
	var reason sql.NullString
	if err := row.Scan(&a.ID, &a.ExecutionProcessID, &a.ToolName, &a.ToolInput, &a.ToolCallID, &a.Status, &a.RequestedAt, &a.TimeoutAt, &reason); err != nil {
		return nil, err
	}
	a.Reason = strPtr(reason)
	return &a, nil
}

// Resolve transitions a pending approval to a terminal status. It is
// idempotent: if the row is no longer pending the update affects zero
// rows and Resolve returns ErrAlreadyResolved rather than clobbering a
// decision already recorded (§4.4 "respond... is idempotent").
var ErrAlreadyResolved = errors.New("approval already resolved")

func (r *ApprovalRepo) Resolve(ctx context.Context, id string, status models.ApprovalStatus, reason *string) error {
	if status == models.ApprovalPending {
		return fmt.Errorf("cannot resolve to pending status")
	}
	res, err := r.db.ExecContext(ctx, `
		UPDATE approvals SET status = ?, reason = ? WHERE id = ? AND status = 'pending'`,
		status, nullString(reason), id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrAlreadyResolved
	}
	return nil
}

// SweepTimeouts transitions every pending row whose timeout has elapsed to
// timed_out (§4.4 sweep_timeouts), returning the ids transitioned so the
// coordinator can resolve their parked waiters.
func (r *ApprovalRepo) SweepTimeouts(ctx context.Context, now time.Time) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id FROM approvals WHERE status = 'pending' AND timeout_at < ?`, now)
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
	if len(ids) == 0 {
		return nil, nil
	}
	_, err = r.db.ExecContext(ctx, `
		UPDATE approvals SET status = 'timed_out' WHERE status = 'pending' AND timeout_at < ?`, now)
	if err != nil {
		return nil, err
	}
	return ids, nil
}
