package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"station/pkg/models"
)

type ScratchRepo struct {
	db *sql.DB
}

func NewScratchRepo(db *sql.DB) *ScratchRepo {
	return &ScratchRepo{db: db}
}

// scratchEnvelope is the minimal shape every Scratch payload must carry so
// its discriminant can be checked against scratch_type on read (§9 design
// notes: "the two must be validated to match on read").
type scratchEnvelope struct {
	Type string `json:"type"`
}

// Upsert replaces the payload for (id, scratch_type), per §3's "Upsert
// replaces the payload" invariant.
func (r *ScratchRepo) Upsert(ctx context.Context, s *models.Scratch) error {
	s.UpdatedAt = time.Now()
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO scratches (id, scratch_type, payload, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT (id, scratch_type) DO UPDATE SET payload = excluded.payload, updated_at = excluded.updated_at`,
		s.ID, s.ScratchType, s.Payload, s.UpdatedAt)
	return err
}

// Get returns the scratch row, validating that its payload's declared type
// discriminant matches scratch_type; a mismatch returns *models.ErrTypeMismatch
// instead of silently returning the stale/foreign payload.
func (r *ScratchRepo) Get(ctx context.Context, id string, scratchType models.ScratchType) (*models.Scratch, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, scratch_type, payload, updated_at FROM scratches WHERE id = ? AND scratch_type = ?`, id, scratchType)
	var s models.Scratch
	if err := row.Scan(&s.ID, &s.ScratchType, &s.Payload, &s.UpdatedAt); err != nil {
		return nil, err
	}

	var env scratchEnvelope
	if err := json.Unmarshal([]byte(s.Payload), &env); err == nil && env.Type != "" && env.Type != string(s.ScratchType) {
		return nil, &models.ErrTypeMismatch{Expected: s.ScratchType, Got: env.Type}
	}
	return &s, nil
}
