package aggregator

import (
	"context"
	"fmt"
	"time"

	"github.com/good-yellow-bee/buildpulse/internal/models"
)

// DashboardOptions selects the range and scope of a dashboard query.
type DashboardOptions struct {
	Period  models.Period
	Project string // empty or "all" means every project
	Start   time.Time
	End     time.Time // zero means now
}

// TrendPoint is one bucket of a time-bucketed trend series.
type TrendPoint struct {
	Timestamp time.Time `json:"timestamp"`
	Value     float64   `json:"value"`
	Count     int       `json:"count"`
}

// DashboardMetrics is the read-path snapshot consumed by the dashboard.
type DashboardMetrics struct {
	TotalBuilds         int               `json:"total_builds"`
	SuccessRate         float64           `json:"success_rate"`
	AverageBuildTime    float64           `json:"average_build_time"`
	ActiveAlerts        int64             `json:"active_alerts"`
	SuccessRateTrend    []TrendPoint      `json:"success_rate_trend"`
	BuildTimeTrend      []TrendPoint      `json:"build_time_trend"`
	DeploymentFrequency []TrendPoint      `json:"deployment_frequency"`
	ProjectStatus       []*models.Project `json:"project_status"`
}

// trendIntervals returns the sub-interval count and width for a period:
// 1h is sliced into 12 five-minute buckets, 24h into 24 hours, 7d and
// 30d into days.
func trendIntervals(period models.Period) (int, time.Duration) {
	switch period {
	case models.PeriodHour:
		return 12, 5 * time.Minute
	case models.PeriodDay:
		return 24, time.Hour
	case models.PeriodWeek:
		return 7, 24 * time.Hour
	case models.PeriodMonth:
		return 30, 24 * time.Hour
	default:
		return 0, 0
	}
}

// DashboardMetrics serves the aggregated read path. Missing data renders
// as zero-valued buckets, never as an error, so the dashboard always has
// something to draw.
func (a *Aggregator) DashboardMetrics(ctx context.Context, opts DashboardOptions) (*DashboardMetrics, error) {
	if !opts.Period.Valid() {
		return nil, fmt.Errorf("invalid period %q", opts.Period)
	}

	project := opts.Project
	if project == "all" {
		project = ""
	}

	end := opts.End
	if end.IsZero() {
		end = a.clock()
	}
	start := opts.Start
	if start.IsZero() {
		start = end.Add(-opts.Period.Duration())
	}

	builds, err := a.store.Builds().ListRange(ctx, project, start, end)
	if err != nil {
		return nil, fmt.Errorf("list builds: %w", err)
	}

	overall := aggregate(builds)

	activeAlerts, err := a.store.Alerts().CountActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("count active alerts: %w", err)
	}

	projects, err := a.store.Projects().List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}

	n, step := trendIntervals(opts.Period)
	successTrend := make([]TrendPoint, 0, n)
	timeTrend := make([]TrendPoint, 0, n)
	deployTrend := make([]TrendPoint, 0, n)

	// Run the same aggregate computation per sub-interval. O(N x builds
	// in range), which is fine at the volumes a single collector sees.
	for i := 0; i < n; i++ {
		bucketStart := start.Add(time.Duration(i) * step)
		bucketEnd := bucketStart.Add(step)

		var bucket []*models.Build
		deployments := 0
		for _, b := range builds {
			if b.FinishedAt.Before(bucketStart) || !b.FinishedAt.Before(bucketEnd) {
				continue
			}
			bucket = append(bucket, b)
			if b.Environment == "production" {
				deployments++
			}
		}

		agg := aggregate(bucket)
		successTrend = append(successTrend, TrendPoint{Timestamp: bucketStart, Value: agg.successRate, Count: agg.total})
		timeTrend = append(timeTrend, TrendPoint{Timestamp: bucketStart, Value: agg.avgDuration, Count: agg.total})
		deployTrend = append(deployTrend, TrendPoint{Timestamp: bucketStart, Value: float64(deployments), Count: deployments})
	}

	return &DashboardMetrics{
		TotalBuilds:         overall.total,
		SuccessRate:         overall.successRate,
		AverageBuildTime:    overall.avgDuration,
		ActiveAlerts:        activeAlerts,
		SuccessRateTrend:    successTrend,
		BuildTimeTrend:      timeTrend,
		DeploymentFrequency: deployTrend,
		ProjectStatus:       projects,
	}, nil
}
