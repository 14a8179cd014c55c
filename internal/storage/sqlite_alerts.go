package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/good-yellow-bee/buildpulse/internal/models"
)

type sqliteAlertRepo struct {
	db *sql.DB
}

const alertColumns = `id, rule_id, rule_name, severity, message, project, build_id,
	build_number, status, fired_at, acknowledged_at, acknowledged_by,
	resolved_at, resolved_by, resolution, metadata_json`

func (r *sqliteAlertRepo) Create(ctx context.Context, alert *models.Alert) (err error) {
	defer observeQuery("alerts.create")(&err)

	metadata := alert.Metadata
	if metadata == nil {
		metadata = map[string]string{}
	}
	metadataJSON, err := json.Marshal(metadata)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}

	query := `
		INSERT INTO alerts (` + alertColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = r.db.ExecContext(ctx, query,
		alert.ID, alert.RuleID, alert.RuleName, string(alert.Severity), alert.Message,
		alert.Project, alert.BuildID, alert.BuildNumber, string(alert.Status), alert.FiredAt,
		nullTime(alert.AcknowledgedAt), nullString(alert.AcknowledgedBy),
		nullTime(alert.ResolvedAt), nullString(alert.ResolvedBy), nullString(alert.Resolution),
		string(metadataJSON),
	)
	if err != nil {
		return fmt.Errorf("insert alert: %v: %w", err, ErrUnavailable)
	}
	return nil
}

func (r *sqliteAlertRepo) GetByID(ctx context.Context, id string) (_ *models.Alert, err error) {
	defer observeQuery("alerts.get")(&err)

	query := `SELECT ` + alertColumns + ` FROM alerts WHERE id = ?`
	alert, err := scanAlert(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get alert: %w", err)
	}
	return alert, nil
}

func (r *sqliteAlertRepo) List(ctx context.Context, status models.AlertStatus, project string, limit, offset int) (_ []*models.Alert, _ int64, err error) {
	defer observeQuery("alerts.list")(&err)

	where := " WHERE 1=1"
	var args []any
	if status != "" {
		where += " AND status = ?"
		args = append(args, string(status))
	}
	if project != "" {
		where += " AND project = ?"
		args = append(args, project)
	}

	var total int64
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM alerts"+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count alerts: %w", err)
	}

	query := `SELECT ` + alertColumns + ` FROM alerts` + where + ` ORDER BY fired_at DESC LIMIT ? OFFSET ?`
	args = append(args, limit, offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("query alerts: %w", err)
	}
	defer rows.Close()

	var alerts []*models.Alert
	for rows.Next() {
		alert, err := scanAlert(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan alert: %w", err)
		}
		alerts = append(alerts, alert)
	}
	return alerts, total, rows.Err()
}

func (r *sqliteAlertRepo) CountActive(ctx context.Context) (_ int64, err error) {
	defer observeQuery("alerts.count")(&err)

	var count int64
	err = r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM alerts WHERE status = 'active'").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count active alerts: %w", err)
	}
	return count, nil
}

func (r *sqliteAlertRepo) Acknowledge(ctx context.Context, id, by string, at time.Time) (err error) {
	defer observeQuery("alerts.acknowledge")(&err)

	// Only an active alert can be acknowledged.
	result, err := r.db.ExecContext(ctx, `
		UPDATE alerts SET status = 'acknowledged', acknowledged_at = ?, acknowledged_by = ?
		WHERE id = ? AND status = 'active'
	`, at, by, id)
	if err != nil {
		return fmt.Errorf("acknowledge alert: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("alert not found or not active: %s", id)
	}
	return nil
}

func (r *sqliteAlertRepo) Resolve(ctx context.Context, id, by, resolution string, at time.Time) (err error) {
	defer observeQuery("alerts.resolve")(&err)

	// Active or acknowledged alerts can be resolved; resolved is final.
	result, err := r.db.ExecContext(ctx, `
		UPDATE alerts SET status = 'resolved', resolved_at = ?, resolved_by = ?, resolution = ?
		WHERE id = ? AND status IN ('active', 'acknowledged')
	`, at, by, nullString(resolution), id)
	if err != nil {
		return fmt.Errorf("resolve alert: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("alert not found or already resolved: %s", id)
	}
	return nil
}

func scanAlert(row scanner) (*models.Alert, error) {
	alert := &models.Alert{}
	var acknowledgedAt, resolvedAt sql.NullTime
	var acknowledgedBy, resolvedBy, resolution sql.NullString
	var metadataJSON string

	err := row.Scan(
		&alert.ID, &alert.RuleID, &alert.RuleName, &alert.Severity, &alert.Message,
		&alert.Project, &alert.BuildID, &alert.BuildNumber, &alert.Status, &alert.FiredAt,
		&acknowledgedAt, &acknowledgedBy, &resolvedAt, &resolvedBy, &resolution,
		&metadataJSON,
	)
	if err != nil {
		return nil, err
	}

	if acknowledgedAt.Valid {
		t := acknowledgedAt.Time
		alert.AcknowledgedAt = &t
	}
	alert.AcknowledgedBy = acknowledgedBy.String
	if resolvedAt.Valid {
		t := resolvedAt.Time
		alert.ResolvedAt = &t
	}
	alert.ResolvedBy = resolvedBy.String
	alert.Resolution = resolution.String

	if err := json.Unmarshal([]byte(metadataJSON), &alert.Metadata); err != nil {
		return nil, fmt.Errorf("unmarshal metadata: %w", err)
	}

	return alert, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
