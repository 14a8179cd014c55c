package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/good-yellow-bee/buildpulse/internal/models"
)

type sqliteMetricRepo struct {
	db *sql.DB
}

const metricColumns = `id, project, period, bucket, computed_at, total_builds,
	successful_builds, failed_builds, success_rate, avg_duration_seconds,
	max_duration_seconds, min_duration_seconds, build_ids_json`

func (r *sqliteMetricRepo) Upsert(ctx context.Context, metric *models.Metric) (err error) {
	defer observeQuery("metrics.upsert")(&err)

	buildIDs := metric.BuildIDs
	if buildIDs == nil {
		buildIDs = []string{}
	}
	buildIDsJSON, err := json.Marshal(buildIDs)
	if err != nil {
		return fmt.Errorf("marshal build ids: %w", err)
	}

	// Recomputation inside the same clock hour overwrites in place.
	query := `
		INSERT INTO metrics (` + metricColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (project, period, bucket) DO UPDATE SET
			computed_at = excluded.computed_at,
			total_builds = excluded.total_builds,
			successful_builds = excluded.successful_builds,
			failed_builds = excluded.failed_builds,
			success_rate = excluded.success_rate,
			avg_duration_seconds = excluded.avg_duration_seconds,
			max_duration_seconds = excluded.max_duration_seconds,
			min_duration_seconds = excluded.min_duration_seconds,
			build_ids_json = excluded.build_ids_json
	`
	_, err = r.db.ExecContext(ctx, query,
		metric.ID, metric.Project, string(metric.Period), metric.Bucket, metric.ComputedAt,
		metric.TotalBuilds, metric.SuccessfulBuilds, metric.FailedBuilds, metric.SuccessRate,
		metric.AvgDurationSeconds, metric.MaxDurationSeconds, metric.MinDurationSeconds,
		string(buildIDsJSON),
	)
	if err != nil {
		return fmt.Errorf("upsert metric: %v: %w", err, ErrUnavailable)
	}
	return nil
}

func (r *sqliteMetricRepo) Get(ctx context.Context, project string, period models.Period, bucket time.Time) (_ *models.Metric, err error) {
	defer observeQuery("metrics.get")(&err)

	query := `SELECT ` + metricColumns + ` FROM metrics WHERE project = ? AND period = ? AND bucket = ?`
	metric, err := scanMetric(r.db.QueryRowContext(ctx, query, project, string(period), bucket))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get metric: %w", err)
	}
	return metric, nil
}

func (r *sqliteMetricRepo) ListByProject(ctx context.Context, project string, period models.Period, limit int) (_ []*models.Metric, err error) {
	defer observeQuery("metrics.list")(&err)

	query := `SELECT ` + metricColumns + ` FROM metrics WHERE project = ? AND period = ?
		ORDER BY bucket DESC LIMIT ?`
	rows, err := r.db.QueryContext(ctx, query, project, string(period), limit)
	if err != nil {
		return nil, fmt.Errorf("query metrics: %v: %w", err, ErrUnavailable)
	}
	defer rows.Close()

	var metrics []*models.Metric
	for rows.Next() {
		metric, err := scanMetric(rows)
		if err != nil {
			return nil, fmt.Errorf("scan metric: %w", err)
		}
		metrics = append(metrics, metric)
	}
	return metrics, rows.Err()
}

func scanMetric(row scanner) (*models.Metric, error) {
	metric := &models.Metric{}
	var buildIDsJSON string

	err := row.Scan(
		&metric.ID, &metric.Project, &metric.Period, &metric.Bucket, &metric.ComputedAt,
		&metric.TotalBuilds, &metric.SuccessfulBuilds, &metric.FailedBuilds, &metric.SuccessRate,
		&metric.AvgDurationSeconds, &metric.MaxDurationSeconds, &metric.MinDurationSeconds,
		&buildIDsJSON,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(buildIDsJSON), &metric.BuildIDs); err != nil {
		return nil, fmt.Errorf("unmarshal build ids: %w", err)
	}

	return metric, nil
}
