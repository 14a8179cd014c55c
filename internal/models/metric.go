package models

import (
	"time"
)

// Period is a fixed rolling time window over which metrics are aggregated.
type Period string

const (
	PeriodHour  Period = "1h"
	PeriodDay   Period = "24h"
	PeriodWeek  Period = "7d"
	PeriodMonth Period = "30d"
)

// Periods lists every period recomputed after each build, in order.
func Periods() []Period {
	return []Period{PeriodHour, PeriodDay, PeriodWeek, PeriodMonth}
}

// Duration returns the rolling window length for the period.
func (p Period) Duration() time.Duration {
	switch p {
	case PeriodHour:
		return time.Hour
	case PeriodDay:
		return 24 * time.Hour
	case PeriodWeek:
		return 7 * 24 * time.Hour
	case PeriodMonth:
		return 30 * 24 * time.Hour
	default:
		return 0
	}
}

// Valid reports whether p is one of the fixed aggregation periods.
func (p Period) Valid() bool {
	return p.Duration() > 0
}

// Metric is one rolling-window aggregate snapshot for a project.
// At most one Metric exists per (project, period, hour-aligned bucket);
// recomputation within the same clock hour overwrites in place.
type Metric struct {
	ID                 string    `json:"id"`
	Project            string    `json:"project"`
	Period             Period    `json:"period"`
	Bucket             time.Time `json:"bucket"` // truncated to the hour
	ComputedAt         time.Time `json:"computed_at"`
	TotalBuilds        int       `json:"total_builds"`
	SuccessfulBuilds   int       `json:"successful_builds"`
	FailedBuilds       int       `json:"failed_builds"`
	SuccessRate        float64   `json:"success_rate"` // percent, 0 when no builds
	AvgDurationSeconds float64   `json:"avg_duration_seconds"`
	MaxDurationSeconds float64   `json:"max_duration_seconds"`
	MinDurationSeconds float64   `json:"min_duration_seconds"`
	BuildIDs           []string  `json:"build_ids,omitempty"`
}
