package repositories

import (
	"context"
	"database/sql"
	"time"

	"station/pkg/models"
)

type RepoRepo struct {
	db *sql.DB
}

func NewRepoRepo(db *sql.DB) *RepoRepo {
	return &RepoRepo{db: db}
}

func (r *RepoRepo) Create(ctx context.Context, repo *models.Repo) error {
	repo.CreatedAt = time.Now()
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO repos (id, project_id, path, display_name, setup_script, cleanup_script, archive_script,
			dev_server_script, tool_install_script, parallel_setup_script, default_target_branch, default_working_dir, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		repo.ID, repo.ProjectID, repo.Path, repo.DisplayName, nullString(repo.SetupScript), nullString(repo.CleanupScript),
		nullString(repo.ArchiveScript), nullString(repo.DevServerScript), nullString(repo.ToolInstallScript),
		repo.ParallelSetupScript, repo.DefaultTargetBranch, repo.DefaultWorkingDir, repo.CreatedAt)
	return err
}

func (r *RepoRepo) Get(ctx context.Context, id string) (*models.Repo, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, project_id, path, display_name, setup_script, cleanup_script, archive_script,
			dev_server_script, tool_install_script, parallel_setup_script, default_target_branch, default_working_dir, created_at
		FROM repos WHERE id = ?`, id)
	return scanRepo(row)
}

func (r *RepoRepo) ListByProject(ctx context.Context, projectID string) ([]*models.Repo, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, project_id, path, display_name, setup_script, cleanup_script, archive_script,
			dev_server_script, tool_install_script, parallel_setup_script, default_target_branch, default_working_dir, created_at
		FROM repos WHERE project_id = ?`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*models.Repo
	for rows.Next() {
		repo, err := scanRepoRows(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, repo)
	}
	return out, rows.Err()
}

type scannable interface {
	Scan(dest ...any) error
}

func scanRepo(row scannable) (*models.Repo, error) {
	return scanRepoRows(row)
}

func scanRepoRows(row scannable) (*models.Repo, error) {
	var repo models.Repo
	var setup, cleanup, archive, devServer, toolInstall sql.NullString
	if err := row.Scan(&repo.ID, &repo.ProjectID, &repo.Path, &repo.DisplayName, &setup, &cleanup, &archive,
		&devServer, &toolInstall, &repo.ParallelSetupScript, &repo.DefaultTargetBranch, &repo.DefaultWorkingDir, &repo.CreatedAt); err != nil {
		return nil, err
	}
	repo.SetupScript = strPtr(setup)
	repo.CleanupScript = strPtr(cleanup)
	repo.ArchiveScript = strPtr(archive)
	repo.DevServerScript = strPtr(devServer)
	repo.ToolInstallScript = strPtr(toolInstall)
	return &repo, nil
}
