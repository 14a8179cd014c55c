// Package models defines the core data types shared across BuildPulse.
package models

import (
	"encoding/json"
	"strings"
	"time"
)

// BuildStatus is the normalized status vocabulary for builds.
type BuildStatus string

const (
	StatusSuccess  BuildStatus = "success"
	StatusFailure  BuildStatus = "failure"
	StatusAborted  BuildStatus = "aborted"
	StatusUnstable BuildStatus = "unstable"
	StatusRunning  BuildStatus = "running"
	StatusPending  BuildStatus = "pending"
	StatusUnknown  BuildStatus = "unknown"
)

// TestSummary aggregates test results reported with a build.
type TestSummary struct {
	Total   int `json:"total"`
	Passed  int `json:"passed"`
	Failed  int `json:"failed"`
	Skipped int `json:"skipped"`
}

// Stage is one pipeline stage within a build.
type Stage struct {
	Name            string      `json:"name"`
	Status          BuildStatus `json:"status"`
	DurationSeconds float64     `json:"duration_seconds"`
	StartedAt       time.Time   `json:"started_at,omitempty"`
}

// Build represents one recorded execution of a CI/CD pipeline.
// (Project, BuildID) is the natural key: re-delivery of the same
// webhook updates the existing record instead of duplicating it.
type Build struct {
	ID              string          `json:"id"`
	BuildID         string          `json:"build_id"` // identifier from the source system
	Project         string          `json:"project"`
	RepoURL         string          `json:"repo_url,omitempty"`
	Branch          string          `json:"branch"`
	Commit          string          `json:"commit,omitempty"`
	Status          BuildStatus     `json:"status"`
	DurationSeconds float64         `json:"duration_seconds"`
	StartedAt       time.Time       `json:"started_at"`
	FinishedAt      time.Time       `json:"finished_at"`
	Number          int64           `json:"number"` // sequence within the project
	TriggeredBy     string          `json:"triggered_by"`
	Environment     string          `json:"environment"`
	Tests           TestSummary     `json:"tests"`
	Stages          []Stage         `json:"stages"`
	LogURL          string          `json:"log_url,omitempty"`
	Artifacts       []string        `json:"artifacts,omitempty"`
	Source          string          `json:"source"` // origin system (jenkins, github, ...)
	RawPayload      json.RawMessage `json:"raw_payload,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// DurationMinutes returns the build duration in whole minutes,
// as rendered in notification messages.
func (b *Build) DurationMinutes() int {
	return int(b.DurationSeconds / 60)
}

// ParseBuildStatus maps a raw source-system status onto the normalized
// vocabulary. Matching is case-insensitive and many-to-one; unrecognized
// values pass through lower-cased rather than being coerced to unknown.
// Only a wholly absent status becomes StatusUnknown.
func ParseBuildStatus(raw string) BuildStatus {
	if raw == "" {
		return StatusUnknown
	}
	switch s := strings.ToLower(raw); s {
	case "success", "passed", "completed":
		return StatusSuccess
	case "failure", "failed", "error":
		return StatusFailure
	case "aborted", "cancelled":
		return StatusAborted
	case "unstable":
		return StatusUnstable
	case "running", "in_progress":
		return StatusRunning
	case "pending", "queued":
		return StatusPending
	default:
		return BuildStatus(s)
	}
}
