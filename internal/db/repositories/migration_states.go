package repositories

import (
	"context"
	"database/sql"

	"station/pkg/models"
)

type MigrationStateRepo struct {
	db *sql.DB
}

func NewMigrationStateRepo(db *sql.DB) *MigrationStateRepo {
	return &MigrationStateRepo{db: db}
}

// Upsert uses the native ON CONFLICT primitive keyed on (entity_type,
// local_id) per §4.11.
func (r *MigrationStateRepo) Upsert(ctx context.Context, m *models.MigrationState) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO migration_states (entity_type, local_id, status, remote_id, attempts)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (entity_type, local_id) DO UPDATE SET
			status = excluded.status, remote_id = excluded.remote_id, attempts = excluded.attempts`,
		m.EntityType, m.LocalID, m.Status, nullString(m.RemoteID), m.Attempts)
	return err
}

func (r *MigrationStateRepo) Get(ctx context.Context, entityType, localID string) (*models.MigrationState, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT entity_type, local_id, status, remote_id, attempts FROM migration_states
		WHERE entity_type = ? AND local_id = ?`, entityType, localID)
	var m models.MigrationState
	var remoteID sql.NullString
	if err := row.Scan(&m.EntityType, &m.LocalID, &m.Status, &remoteID, &m.Attempts); err != nil {
		return nil, err
	}
	m.RemoteID = strPtr(remoteID)
	return &m, nil
}
