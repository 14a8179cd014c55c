package models

import (
	"strconv"
	"time"
)

// AlertStatus tracks the operator lifecycle of a fired alert.
// Transitions: active -> acknowledged -> resolved, or active -> resolved
// directly. There is no path back from resolved.
type AlertStatus string

const (
	AlertActive       AlertStatus = "active"
	AlertAcknowledged AlertStatus = "acknowledged"
	AlertResolved     AlertStatus = "resolved"
)

// Alert is one firing instance of a rule against a build.
type Alert struct {
	ID             string            `json:"id"`
	RuleID         string            `json:"rule_id"`
	RuleName       string            `json:"rule_name"` // denormalized
	Severity       Severity          `json:"severity"`
	Message        string            `json:"message"`
	Project        string            `json:"project"`
	BuildID        string            `json:"build_id"`
	BuildNumber    int64             `json:"build_number"`
	Status         AlertStatus       `json:"status"`
	FiredAt        time.Time         `json:"fired_at"`
	AcknowledgedAt *time.Time        `json:"acknowledged_at,omitempty"`
	AcknowledgedBy string            `json:"acknowledged_by,omitempty"`
	ResolvedAt     *time.Time        `json:"resolved_at,omitempty"`
	ResolvedBy     string            `json:"resolved_by,omitempty"`
	Resolution     string            `json:"resolution,omitempty"`
	Metadata       map[string]string `json:"metadata,omitempty"` // triggering build snapshot
}

// BuildMetadata captures a snapshot of the triggering build for an alert.
func BuildMetadata(b *Build) map[string]string {
	return map[string]string{
		"status":           string(b.Status),
		"branch":           b.Branch,
		"commit":           b.Commit,
		"environment":      b.Environment,
		"duration_seconds": strconv.FormatFloat(b.DurationSeconds, 'f', -1, 64),
		"source":           b.Source,
	}
}
