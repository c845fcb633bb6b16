package repositories

import (
	"context"
	"database/sql"
	"time"

	"station/pkg/models"
)

type SessionRepo struct {
	db *sql.DB
}

func NewSessionRepo(db *sql.DB) *SessionRepo {
	return &SessionRepo{db: db}
}

func (r *SessionRepo) Create(ctx context.Context, s *models.Session) error {
	now := time.Now()
	s.CreatedAt, s.UpdatedAt = now, now
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO sessions (id, workspace_id, executor, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		s.ID, s.WorkspaceID, s.Executor, s.CreatedAt, s.UpdatedAt)
	return err
}

func (r *SessionRepo) Get(ctx context.Context, id string) (*models.Session, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, workspace_id, executor, created_at, updated_at FROM sessions WHERE id = ?`, id)
	var s models.Session
	if err := row.Scan(&s.ID, &s.WorkspaceID, &s.Executor, &s.CreatedAt, &s.UpdatedAt); err != nil {
		return nil, err
	}
	return &s, nil
}
