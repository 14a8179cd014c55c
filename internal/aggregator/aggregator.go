// Package aggregator maintains rolling-window build metrics. Metrics are
// always re-derived from the store rather than incrementally patched, so
// concurrent recomputation for the same project cannot lose updates.
package aggregator

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/good-yellow-bee/buildpulse/internal/models"
	"github.com/good-yellow-bee/buildpulse/internal/storage"
)

// Aggregator records builds and recomputes per-project aggregates.
type Aggregator struct {
	store storage.Storage
	clock func() time.Time
}

// New creates an aggregator backed by the given store.
func New(store storage.Storage) *Aggregator {
	return &Aggregator{
		store: store,
		clock: time.Now,
	}
}

// NewWithClock creates an aggregator with a fixed clock (useful for testing).
func NewWithClock(store storage.Storage, clock func() time.Time) *Aggregator {
	return &Aggregator{store: store, clock: clock}
}

// Result is the outcome of recording one build.
type Result struct {
	Build   *models.Build
	Project *models.Project
	Metrics map[models.Period]*models.Metric
}

// Record upserts the build, refreshes the project snapshot, and
// recomputes the rolling metrics for every period. A store failure
// aborts the call; the caller retries the whole ingest. Each per-period
// recomputation is independently idempotent, so a failure partway
// through leaves earlier periods correct and later ones recoverable on
// the next build event.
func (a *Aggregator) Record(ctx context.Context, build *models.Build) (*Result, error) {
	now := a.clock()

	// Preserve the internal identity of an earlier delivery.
	existing, err := a.store.Builds().GetByKey(ctx, build.Project, build.BuildID)
	if err != nil {
		return nil, fmt.Errorf("lookup build: %w", err)
	}
	if existing != nil {
		build.ID = existing.ID
		build.CreatedAt = existing.CreatedAt
	}
	build.UpdatedAt = now

	if err := a.store.Builds().Upsert(ctx, build); err != nil {
		return nil, fmt.Errorf("record build: %w", err)
	}

	project, err := a.refreshProject(ctx, build, now)
	if err != nil {
		return nil, fmt.Errorf("refresh project: %w", err)
	}

	metrics := make(map[models.Period]*models.Metric, len(models.Periods()))
	for _, period := range models.Periods() {
		metric, err := a.recompute(ctx, build.Project, period, now)
		if err != nil {
			return nil, fmt.Errorf("recompute %s metrics: %w", period, err)
		}
		metrics[period] = metric
	}

	return &Result{Build: build, Project: project, Metrics: metrics}, nil
}

// refreshProject updates the denormalized latest-status cache. Last
// write wins: no ordering check is made against the previous snapshot,
// so an out-of-order webhook may overwrite with stale data.
func (a *Aggregator) refreshProject(ctx context.Context, build *models.Build, now time.Time) (*models.Project, error) {
	existing, err := a.store.Projects().GetByName(ctx, build.Project)
	if err != nil {
		return nil, err
	}

	project := &models.Project{
		ID:          uuid.New().String(),
		Name:        build.Project,
		RepoURL:     build.RepoURL,
		LastBuildID: build.BuildID,
		LastStatus:  build.Status,
		LastBuildAt: build.FinishedAt,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if existing != nil {
		project.ID = existing.ID
		project.DisplayName = existing.DisplayName
		project.CreatedAt = existing.CreatedAt
		if project.RepoURL == "" {
			project.RepoURL = existing.RepoURL
		}
	}

	if err := a.store.Projects().Upsert(ctx, project); err != nil {
		return nil, err
	}
	return project, nil
}

// recompute re-derives the rolling aggregate for (project, period) from
// the builds currently in the store and upserts the hour-bucketed metric.
func (a *Aggregator) recompute(ctx context.Context, project string, period models.Period, now time.Time) (*models.Metric, error) {
	builds, err := a.store.Builds().ListSince(ctx, project, now.Add(-period.Duration()))
	if err != nil {
		return nil, err
	}

	agg := aggregate(builds)
	metric := &models.Metric{
		ID:                 uuid.New().String(),
		Project:            project,
		Period:             period,
		Bucket:             now.Truncate(time.Hour),
		ComputedAt:         now,
		TotalBuilds:        agg.total,
		SuccessfulBuilds:   agg.successful,
		FailedBuilds:       agg.failed,
		SuccessRate:        agg.successRate,
		AvgDurationSeconds: agg.avgDuration,
		MaxDurationSeconds: agg.maxDuration,
		MinDurationSeconds: agg.minDuration,
		BuildIDs:           agg.buildIDs,
	}

	if err := a.store.Metrics().Upsert(ctx, metric); err != nil {
		return nil, err
	}
	return metric, nil
}

// buildAggregate is the in-process reduction over a set of builds.
type buildAggregate struct {
	total       int
	successful  int
	failed      int
	successRate float64 // percent, 0 when total is 0
	avgDuration float64
	maxDuration float64
	minDuration float64
	buildIDs    []string
}

// aggregate computes counts, success rate, and duration statistics.
// The zero-count guard keeps the success rate at 0 rather than NaN.
func aggregate(builds []*models.Build) buildAggregate {
	agg := buildAggregate{buildIDs: make([]string, 0, len(builds))}

	var totalDuration float64
	for i, b := range builds {
		agg.total++
		agg.buildIDs = append(agg.buildIDs, b.BuildID)
		switch b.Status {
		case models.StatusSuccess:
			agg.successful++
		case models.StatusFailure:
			agg.failed++
		}
		totalDuration += b.DurationSeconds
		if i == 0 || b.DurationSeconds > agg.maxDuration {
			agg.maxDuration = b.DurationSeconds
		}
		if i == 0 || b.DurationSeconds < agg.minDuration {
			agg.minDuration = b.DurationSeconds
		}
	}

	if agg.total > 0 {
		agg.successRate = float64(agg.successful) / float64(agg.total) * 100
		agg.avgDuration = totalDuration / float64(agg.total)
	}

	return agg
}
