package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/good-yellow-bee/buildpulse/internal/models"
)

type sqliteProjectRepo struct {
	db *sql.DB
}

const projectColumns = `id, name, display_name, repo_url, last_build_id, last_status,
	last_build_at, created_at, updated_at`

func (r *sqliteProjectRepo) Upsert(ctx context.Context, project *models.Project) (err error) {
	defer observeQuery("projects.upsert")(&err)

	// Last write wins on the latest-status fields; webhooks are assumed
	// to arrive close to build completion order.
	query := `
		INSERT INTO projects (` + projectColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (name) DO UPDATE SET
			display_name = excluded.display_name,
			repo_url = excluded.repo_url,
			last_build_id = excluded.last_build_id,
			last_status = excluded.last_status,
			last_build_at = excluded.last_build_at,
			updated_at = excluded.updated_at
	`
	_, err = r.db.ExecContext(ctx, query,
		project.ID, project.Name, nullString(project.DisplayName), nullString(project.RepoURL),
		nullString(project.LastBuildID), nullString(string(project.LastStatus)),
		project.LastBuildAt, project.CreatedAt, project.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert project: %v: %w", err, ErrUnavailable)
	}
	return nil
}

func (r *sqliteProjectRepo) GetByName(ctx context.Context, name string) (_ *models.Project, err error) {
	defer observeQuery("projects.get")(&err)

	query := `SELECT ` + projectColumns + ` FROM projects WHERE name = ?`
	project, err := scanProject(r.db.QueryRowContext(ctx, query, name))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get project: %w", err)
	}
	return project, nil
}

func (r *sqliteProjectRepo) List(ctx context.Context) (_ []*models.Project, err error) {
	defer observeQuery("projects.list")(&err)

	query := `SELECT ` + projectColumns + ` FROM projects ORDER BY name`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query projects: %v: %w", err, ErrUnavailable)
	}
	defer rows.Close()

	var projects []*models.Project
	for rows.Next() {
		project, err := scanProject(rows)
		if err != nil {
			return nil, fmt.Errorf("scan project: %w", err)
		}
		projects = append(projects, project)
	}
	return projects, rows.Err()
}

func scanProject(row scanner) (*models.Project, error) {
	project := &models.Project{}
	var displayName, repoURL, lastBuildID, lastStatus sql.NullString
	var lastBuildAt sql.NullTime

	err := row.Scan(
		&project.ID, &project.Name, &displayName, &repoURL, &lastBuildID, &lastStatus,
		&lastBuildAt, &project.CreatedAt, &project.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	project.DisplayName = displayName.String
	project.RepoURL = repoURL.String
	project.LastBuildID = lastBuildID.String
	project.LastStatus = models.BuildStatus(lastStatus.String)
	project.LastBuildAt = lastBuildAt.Time

	return project, nil
}
