package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/good-yellow-bee/buildpulse/internal/models"
)

type sqliteBuildRepo struct {
	db *sql.DB
}

const buildColumns = `id, build_id, project, repo_url, branch, commit_hash, status,
	duration_seconds, started_at, finished_at, number, triggered_by, environment,
	tests_json, stages_json, log_url, artifacts_json, source, raw_payload,
	created_at, updated_at`

func (r *sqliteBuildRepo) Upsert(ctx context.Context, build *models.Build) (err error) {
	defer observeQuery("builds.upsert")(&err)

	testsJSON, err := json.Marshal(build.Tests)
	if err != nil {
		return fmt.Errorf("marshal tests: %w", err)
	}
	stages := build.Stages
	if stages == nil {
		stages = []models.Stage{}
	}
	stagesJSON, err := json.Marshal(stages)
	if err != nil {
		return fmt.Errorf("marshal stages: %w", err)
	}
	artifacts := build.Artifacts
	if artifacts == nil {
		artifacts = []string{}
	}
	artifactsJSON, err := json.Marshal(artifacts)
	if err != nil {
		return fmt.Errorf("marshal artifacts: %w", err)
	}

	// Re-delivery of the same webhook updates the existing record in
	// place; the internal id and created_at of the first arrival win.
	query := `
		INSERT INTO builds (` + buildColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (project, build_id) DO UPDATE SET
			repo_url = excluded.repo_url,
			branch = excluded.branch,
			commit_hash = excluded.commit_hash,
			status = excluded.status,
			duration_seconds = excluded.duration_seconds,
			started_at = excluded.started_at,
			finished_at = excluded.finished_at,
			number = excluded.number,
			triggered_by = excluded.triggered_by,
			environment = excluded.environment,
			tests_json = excluded.tests_json,
			stages_json = excluded.stages_json,
			log_url = excluded.log_url,
			artifacts_json = excluded.artifacts_json,
			source = excluded.source,
			raw_payload = excluded.raw_payload,
			updated_at = excluded.updated_at
	`
	_, err = r.db.ExecContext(ctx, query,
		build.ID, build.BuildID, build.Project, nullString(build.RepoURL), build.Branch,
		nullString(build.Commit), string(build.Status), build.DurationSeconds,
		build.StartedAt, build.FinishedAt, build.Number, build.TriggeredBy, build.Environment,
		string(testsJSON), string(stagesJSON), nullString(build.LogURL), string(artifactsJSON),
		build.Source, []byte(build.RawPayload), build.CreatedAt, build.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert build: %v: %w", err, ErrUnavailable)
	}
	return nil
}

func (r *sqliteBuildRepo) GetByKey(ctx context.Context, project, buildID string) (_ *models.Build, err error) {
	defer observeQuery("builds.get")(&err)

	query := `SELECT ` + buildColumns + ` FROM builds WHERE project = ? AND build_id = ?`
	row := r.db.QueryRowContext(ctx, query, project, buildID)
	build, err := scanBuild(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get build: %w", err)
	}
	return build, nil
}

func (r *sqliteBuildRepo) ListSince(ctx context.Context, project string, since time.Time) ([]*models.Build, error) {
	query := `SELECT ` + buildColumns + ` FROM builds WHERE finished_at >= ?`
	args := []any{since}
	if project != "" {
		query += ` AND project = ?`
		args = append(args, project)
	}
	query += ` ORDER BY finished_at`
	return r.queryBuilds(ctx, query, args...)
}

func (r *sqliteBuildRepo) ListRange(ctx context.Context, project string, start, end time.Time) ([]*models.Build, error) {
	query := `SELECT ` + buildColumns + ` FROM builds WHERE finished_at >= ? AND finished_at < ?`
	args := []any{start, end}
	if project != "" {
		query += ` AND project = ?`
		args = append(args, project)
	}
	query += ` ORDER BY finished_at`
	return r.queryBuilds(ctx, query, args...)
}

func (r *sqliteBuildRepo) ListRecent(ctx context.Context, project, branch string, limit int) ([]*models.Build, error) {
	query := `SELECT ` + buildColumns + ` FROM builds WHERE project = ?`
	args := []any{project}
	if branch != "" {
		query += ` AND branch = ?`
		args = append(args, branch)
	}
	query += ` ORDER BY number DESC, finished_at DESC LIMIT ?`
	args = append(args, limit)
	return r.queryBuilds(ctx, query, args...)
}

func (r *sqliteBuildRepo) queryBuilds(ctx context.Context, query string, args ...any) (_ []*models.Build, err error) {
	defer observeQuery("builds.list")(&err)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query builds: %v: %w", err, ErrUnavailable)
	}
	defer rows.Close()

	var builds []*models.Build
	for rows.Next() {
		build, err := scanBuild(rows)
		if err != nil {
			return nil, fmt.Errorf("scan build: %w", err)
		}
		builds = append(builds, build)
	}
	return builds, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanBuild(row scanner) (*models.Build, error) {
	build := &models.Build{}
	var repoURL, commit, logURL sql.NullString
	var testsJSON, stagesJSON, artifactsJSON string
	var rawPayload []byte

	err := row.Scan(
		&build.ID, &build.BuildID, &build.Project, &repoURL, &build.Branch,
		&commit, &build.Status, &build.DurationSeconds,
		&build.StartedAt, &build.FinishedAt, &build.Number, &build.TriggeredBy, &build.Environment,
		&testsJSON, &stagesJSON, &logURL, &artifactsJSON,
		&build.Source, &rawPayload, &build.CreatedAt, &build.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	build.RepoURL = repoURL.String
	build.Commit = commit.String
	build.LogURL = logURL.String
	build.RawPayload = rawPayload

	if err := json.Unmarshal([]byte(testsJSON), &build.Tests); err != nil {
		return nil, fmt.Errorf("unmarshal tests: %w", err)
	}
	if err := json.Unmarshal([]byte(stagesJSON), &build.Stages); err != nil {
		return nil, fmt.Errorf("unmarshal stages: %w", err)
	}
	if err := json.Unmarshal([]byte(artifactsJSON), &build.Artifacts); err != nil {
		return nil, fmt.Errorf("unmarshal artifacts: %w", err)
	}

	return build, nil
}
