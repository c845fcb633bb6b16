package repositories

import (
	"context"
	"database/sql"
	"time"

	"station/pkg/models"
)

type MergeRepo struct {
	db *sql.DB
}

func NewMergeRepo(db *sql.DB) *MergeRepo {
	return &MergeRepo{db: db}
}

func (r *MergeRepo) Create(ctx context.Context, m *models.Merge) error {
	m.CreatedAt = time.Now()
	var prMergedAt sql.NullTime
	if m.PRMergedAt != nil {
		prMergedAt = sql.NullTime{Time: *m.PRMergedAt, Valid: true}
	}
	var prStatus sql.NullString
	if m.PRStatus != nil {
		prStatus = sql.NullString{String: string(*m.PRStatus), Valid: true}
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO merges (id, workspace_id, kind, merge_commit, target_branch, pr_number, pr_url, pr_status, pr_merged_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.ID, m.WorkspaceID, m.Kind, nullString(m.MergeCommit), nullString(m.TargetBranch),
		nullInt64(m.PRNumber), nullString(m.PRUrl), prStatus, prMergedAt, m.CreatedAt)
	return err
}

func (r *MergeRepo) ListByWorkspace(ctx context.Context, workspaceID string) ([]*models.Merge, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, workspace_id, kind, merge_commit, target_branch, pr_number, pr_url, pr_status, pr_merged_at, created_at
		FROM merges WHERE workspace_id = ? ORDER BY created_at`, workspaceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.Merge
	for rows.Next() {
		var m models.Merge
		var mergeCommit, targetBranch, prURL, prStatus sql.NullString
		var prNumber sql.NullInt64
		var prMergedAt sql.NullTime
		if err := rows.Scan(&m.ID, &m.WorkspaceID, &m.Kind, &mergeCommit, &targetBranch, &prNumber, &prURL, &prStatus, &prMergedAt, &m.CreatedAt); err != nil {
			return nil, err
		}
		m.MergeCommit, m.TargetBranch, m.PRUrl = strPtr(mergeCommit), strPtr(targetBranch), strPtr(prURL)
		if n := intPtr(prNumber); n != nil {
			m.PRNumber = n
		}
		if prStatus.Valid {
			s := models.PRStatus(prStatus.String)
			m.PRStatus = &s
		}
		if prMergedAt.Valid {
			m.PRMergedAt = &prMergedAt.Time
		}
		out = append(out, &m)
	}
	return out, rows.Err()
}
