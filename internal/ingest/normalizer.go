// Package ingest normalizes heterogeneous CI webhook payloads into the
// canonical build record. Normalization is a pure transformation: every
// optional field has a default and only missing identifying fields
// (project name, build identifier) are errors.
package ingest

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/good-yellow-bee/buildpulse/internal/models"
)

// ErrValidation marks malformed or incomplete inbound payloads. The
// webhook layer rejects these without any partial write.
var ErrValidation = errors.New("validation failed")

// Defaults applied when a payload omits optional fields.
const (
	DefaultBranch      = "main"
	DefaultEnvironment = "development"
	DefaultTriggeredBy = "system"
)

// Normalize maps a raw webhook payload from the named source system into
// a canonical Build. It never fails on missing optional fields.
func Normalize(payload []byte, source string) (*models.Build, error) {
	return NormalizeAt(payload, source, time.Now())
}

// NormalizeAt normalizes with an explicit current time (useful for testing).
func NormalizeAt(payload []byte, source string, now time.Time) (*models.Build, error) {
	var raw map[string]any
	if err := json.Unmarshal(payload, &raw); err != nil {
		return nil, fmt.Errorf("parse payload: %v: %w", err, ErrValidation)
	}

	project := str(raw, "project", "projectName", "job_name", "jobName")
	if project == "" {
		return nil, fmt.Errorf("project name is required: %w", ErrValidation)
	}
	buildID := str(raw, "buildId", "build_id", "id")
	if buildID == "" {
		return nil, fmt.Errorf("build identifier is required: %w", ErrValidation)
	}

	build := &models.Build{
		ID:              uuid.New().String(),
		BuildID:         buildID,
		Project:         project,
		RepoURL:         str(raw, "repoUrl", "repo_url", "repository"),
		Branch:          strDefault(raw, DefaultBranch, "branch"),
		Commit:          str(raw, "commit", "commitHash", "commit_hash", "sha"),
		Status:          models.ParseBuildStatus(str(raw, "status", "result")),
		DurationSeconds: num(raw, "duration", "durationSeconds", "duration_seconds"),
		Number:          int64(num(raw, "buildNumber", "build_number", "number")),
		TriggeredBy:     strDefault(raw, DefaultTriggeredBy, "triggeredBy", "triggered_by", "actor"),
		Environment:     strDefault(raw, DefaultEnvironment, "environment", "env"),
		Tests:           testSummary(raw),
		Stages:          stages(raw),
		LogURL:          str(raw, "logUrl", "log_url"),
		Artifacts:       artifacts(raw),
		Source:          source,
		RawPayload:      json.RawMessage(payload),
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	build.StartedAt = timestamp(raw, now, "startedAt", "started_at", "startTime", "timestamp")
	build.FinishedAt = timestamp(raw, time.Time{}, "finishedAt", "finished_at", "endTime")
	if build.FinishedAt.IsZero() {
		// Derive the end time from start + duration when absent.
		build.FinishedAt = build.StartedAt.Add(time.Duration(build.DurationSeconds * float64(time.Second)))
	}

	return build, nil
}

// str returns the first non-empty string value among the given keys.
func str(raw map[string]any, keys ...string) string {
	for _, key := range keys {
		if v, ok := raw[key].(string); ok && v != "" {
			return v
		}
	}
	return ""
}

func strDefault(raw map[string]any, def string, keys ...string) string {
	if v := str(raw, keys...); v != "" {
		return v
	}
	return def
}

// num returns the first numeric value among the given keys. JSON numbers
// decode as float64; numeric strings are accepted for source systems
// that stringify everything.
func num(raw map[string]any, keys ...string) float64 {
	for _, key := range keys {
		switch v := raw[key].(type) {
		case float64:
			return v
		case string:
			var f float64
			if _, err := fmt.Sscanf(v, "%f", &f); err == nil {
				return f
			}
		}
	}
	return 0
}

func timestamp(raw map[string]any, def time.Time, keys ...string) time.Time {
	for _, key := range keys {
		switch v := raw[key].(type) {
		case string:
			if t, err := time.Parse(time.RFC3339, v); err == nil {
				return t
			}
		case float64:
			// Epoch milliseconds (Jenkins) vs seconds.
			if v > 1e12 {
				return time.UnixMilli(int64(v)).UTC()
			}
			if v > 0 {
				return time.Unix(int64(v), 0).UTC()
			}
		}
	}
	return def
}

func testSummary(raw map[string]any) models.TestSummary {
	m, ok := raw["testResults"].(map[string]any)
	if !ok {
		if m, ok = raw["test_results"].(map[string]any); !ok {
			return models.TestSummary{}
		}
	}
	return models.TestSummary{
		Total:   int(num(m, "total")),
		Passed:  int(num(m, "passed")),
		Failed:  int(num(m, "failed")),
		Skipped: int(num(m, "skipped")),
	}
}

func stages(raw map[string]any) []models.Stage {
	list, ok := raw["stages"].([]any)
	if !ok {
		return []models.Stage{}
	}
	result := make([]models.Stage, 0, len(list))
	for _, item := range list {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		stage := models.Stage{
			Name:            str(m, "name"),
			Status:          models.ParseBuildStatus(str(m, "status")),
			DurationSeconds: num(m, "duration", "durationSeconds", "duration_seconds"),
			StartedAt:       timestamp(m, time.Time{}, "startedAt", "started_at", "startTime"),
		}
		result = append(result, stage)
	}
	return result
}

func artifacts(raw map[string]any) []string {
	list, ok := raw["artifacts"].([]any)
	if !ok {
		return nil
	}
	result := make([]string, 0, len(list))
	for _, item := range list {
		switch v := item.(type) {
		case string:
			result = append(result, v)
		case map[string]any:
			if url := str(v, "url", "path"); url != "" {
				result = append(result, url)
			}
		}
	}
	return result
}
