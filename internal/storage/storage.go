// Package storage provides database storage interfaces and implementations.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/good-yellow-bee/buildpulse/internal/models"
)

// ErrUnavailable wraps transient store failures so callers can decide to
// retry the whole ingest (the source system re-delivers the webhook).
var ErrUnavailable = errors.New("storage unavailable")

// Storage is the main interface for database operations.
type Storage interface {
	// Open initializes the database connection.
	Open() error
	// Close closes the database connection.
	Close() error
	// Migrate runs database migrations.
	Migrate() error
	// Ping verifies the database connection for health checks.
	Ping(ctx context.Context) error

	// Repository accessors
	Builds() BuildRepository
	Projects() ProjectRepository
	Metrics() MetricRepository
	Rules() RuleRepository
	Alerts() AlertRepository
}

// BuildRepository defines operations for build records.
type BuildRepository interface {
	// Upsert inserts or updates a build keyed on (project, build_id).
	Upsert(ctx context.Context, build *models.Build) error
	GetByKey(ctx context.Context, project, buildID string) (*models.Build, error)
	// ListSince returns builds for a project whose finish time is at or
	// after the cutoff. An empty project matches all projects.
	ListSince(ctx context.Context, project string, since time.Time) ([]*models.Build, error)
	// ListRange returns builds finished within [start, end).
	ListRange(ctx context.Context, project string, start, end time.Time) ([]*models.Build, error)
	// ListRecent returns the most recent builds for (project, branch)
	// ordered by build number descending.
	ListRecent(ctx context.Context, project, branch string, limit int) ([]*models.Build, error)
}

// ProjectRepository defines operations for project status snapshots.
type ProjectRepository interface {
	// Upsert inserts or updates a project keyed on name.
	Upsert(ctx context.Context, project *models.Project) error
	GetByName(ctx context.Context, name string) (*models.Project, error)
	List(ctx context.Context) ([]*models.Project, error)
}

// MetricRepository defines operations for aggregate snapshots.
type MetricRepository interface {
	// Upsert inserts or overwrites a metric keyed on (project, period, bucket).
	Upsert(ctx context.Context, metric *models.Metric) error
	Get(ctx context.Context, project string, period models.Period, bucket time.Time) (*models.Metric, error)
	ListByProject(ctx context.Context, project string, period models.Period, limit int) ([]*models.Metric, error)
}

// RuleRepository defines operations for alert rule management.
type RuleRepository interface {
	Create(ctx context.Context, rule *models.AlertRule) error
	GetByID(ctx context.Context, id string) (*models.AlertRule, error)
	GetByName(ctx context.Context, name string) (*models.AlertRule, error)
	Update(ctx context.Context, rule *models.AlertRule) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]*models.AlertRule, error)
	ListEnabled(ctx context.Context) ([]*models.AlertRule, error)
	SetEnabled(ctx context.Context, id string, enabled bool) error
}

// AlertRepository defines operations for fired alerts.
type AlertRepository interface {
	Create(ctx context.Context, alert *models.Alert) error
	GetByID(ctx context.Context, id string) (*models.Alert, error)
	// List returns alerts filtered by status and project (empty = any),
	// newest first, with pagination.
	List(ctx context.Context, status models.AlertStatus, project string, limit, offset int) ([]*models.Alert, int64, error)
	CountActive(ctx context.Context) (int64, error)
	// Acknowledge moves an active alert to acknowledged.
	Acknowledge(ctx context.Context, id, by string, at time.Time) error
	// Resolve moves an active or acknowledged alert to resolved.
	Resolve(ctx context.Context, id, by, resolution string, at time.Time) error
}
