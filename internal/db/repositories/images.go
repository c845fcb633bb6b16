package repositories

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"station/pkg/models"
)

type ImageRepo struct {
	db *sql.DB
}

func NewImageRepo(db *sql.DB) *ImageRepo {
	return &ImageRepo{db: db}
}

// FindBySHA256 supports the upload-dedup invariant (§8 property + seed test
// 1): "∀ image I uploaded twice with identical bytes: a single row exists
// whose hash = SHA256(bytes)".
func (r *ImageRepo) FindBySHA256(ctx context.Context, hash string) (*models.Image, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, stored_filename, original_filename, mime_type, size_bytes, sha256_hex, created_at
		FROM images WHERE sha256_hex = ?`, hash)
	var img models.Image
	if err := row.Scan(&img.ID, &img.StoredFilename, &img.OriginalFilename, &img.MimeType, &img.SizeBytes, &img.SHA256Hex, &img.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &img, nil
}

// Create inserts a new image row. Callers must call FindBySHA256 first and
// reuse the existing row on a hit; Create assumes the hash is new (the
// sha256_hex column is UNIQUE as a backstop against a racing duplicate
// upload, which surfaces as a ConcurrencyError-flavored constraint error).
func (r *ImageRepo) Create(ctx context.Context, img *models.Image) error {
	img.CreatedAt = time.Now()
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO images (id, stored_filename, original_filename, mime_type, size_bytes, sha256_hex, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		img.ID, img.StoredFilename, img.OriginalFilename, img.MimeType, img.SizeBytes, img.SHA256Hex, img.CreatedAt)
	return err
}

// AttachToTask records the N:M join, deduplicating on insert per §3.
func (r *ImageRepo) AttachToTask(ctx context.Context, taskID, imageID string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO task_images (task_id, image_id) VALUES (?, ?)
		ON CONFLICT (task_id, image_id) DO NOTHING`, taskID, imageID)
	return err
}

func (r *ImageRepo) ListByTask(ctx context.Context, taskID string) ([]*models.Image, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT i.id, i.stored_filename, i.original_filename, i.mime_type, i.size_bytes, i.sha256_hex, i.created_at
		FROM images i JOIN task_images ti ON ti.image_id = i.id
		WHERE ti.task_id = ?`, taskID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.Image
	for rows.Next() {
		var img models.Image
		if err := rows.Scan(&img.ID, &img.StoredFilename, &img.OriginalFilename, &img.MimeType, &img.SizeBytes, &img.SHA256Hex, &img.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, &img)
	}
	return out, rows.Err()
}
