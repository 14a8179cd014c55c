package ingest

import (
	"errors"
	"testing"
	"time"

	"github.com/good-yellow-bee/buildpulse/internal/models"
)

// TestNormalize_Validation tests rejection of malformed payloads.
func TestNormalize_Validation(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		wantErr bool
	}{
		{
			name:    "valid minimal payload",
			payload: `{"project": "api-server", "buildId": "42"}`,
			wantErr: false,
		},
		{
			name:    "not JSON",
			payload: `this is not json`,
			wantErr: true,
		},
		{
			name:    "missing project",
			payload: `{"buildId": "42"}`,
			wantErr: true,
		},
		{
			name:    "missing build identifier",
			payload: `{"project": "api-server"}`,
			wantErr: true,
		},
		{
			name:    "snake_case aliases accepted",
			payload: `{"job_name": "api-server", "build_id": "42"}`,
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Normalize([]byte(tt.payload), "jenkins")
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				if !errors.Is(err, ErrValidation) {
					t.Errorf("error %v is not ErrValidation", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

// TestNormalize_Defaults tests that optional fields get their defaults.
func TestNormalize_Defaults(t *testing.T) {
	now := time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC)
	payload := `{"project": "api-server", "buildId": "42"}`

	build, err := NormalizeAt([]byte(payload), "jenkins", now)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}

	if build.Branch != DefaultBranch {
		t.Errorf("branch = %q, want %q", build.Branch, DefaultBranch)
	}
	if build.Environment != DefaultEnvironment {
		t.Errorf("environment = %q, want %q", build.Environment, DefaultEnvironment)
	}
	if build.TriggeredBy != DefaultTriggeredBy {
		t.Errorf("triggeredBy = %q, want %q", build.TriggeredBy, DefaultTriggeredBy)
	}
	if build.Status != models.StatusUnknown {
		t.Errorf("status = %q, want unknown", build.Status)
	}
	if build.Source != "jenkins" {
		t.Errorf("source = %q, want jenkins", build.Source)
	}
	if !build.StartedAt.Equal(now) {
		t.Errorf("startedAt = %v, want %v", build.StartedAt, now)
	}
	if build.ID == "" {
		t.Error("internal ID not assigned")
	}
}

// TestNormalize_FullPayload tests a fully populated payload.
func TestNormalize_FullPayload(t *testing.T) {
	payload := `{
		"project": "checkout",
		"buildId": "build-381",
		"buildNumber": 381,
		"branch": "release/2.4",
		"commit": "deadbeef",
		"status": "FAILED",
		"duration": 754.2,
		"startedAt": "2026-03-15T09:45:00Z",
		"finishedAt": "2026-03-15T09:57:34Z",
		"triggeredBy": "alice",
		"environment": "production",
		"testResults": {"total": 120, "passed": 110, "failed": 8, "skipped": 2},
		"stages": [
			{"name": "build", "status": "success", "duration": 120},
			{"name": "deploy", "status": "failed", "duration": 30}
		],
		"artifacts": ["https://ci.example.com/a/1.tgz", {"url": "https://ci.example.com/a/2.tgz"}],
		"logUrl": "https://ci.example.com/jobs/381/log"
	}`

	build, err := Normalize([]byte(payload), "jenkins")
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}

	if build.Project != "checkout" {
		t.Errorf("project = %q", build.Project)
	}
	if build.BuildID != "build-381" {
		t.Errorf("buildID = %q", build.BuildID)
	}
	if build.Number != 381 {
		t.Errorf("number = %d", build.Number)
	}
	if build.Status != models.StatusFailure {
		t.Errorf("status = %q, want failure", build.Status)
	}
	if build.DurationSeconds != 754.2 {
		t.Errorf("duration = %f", build.DurationSeconds)
	}
	if build.Tests.Failed != 8 {
		t.Errorf("tests failed = %d, want 8", build.Tests.Failed)
	}
	if len(build.Stages) != 2 {
		t.Fatalf("stages = %d, want 2", len(build.Stages))
	}
	if build.Stages[1].Status != models.StatusFailure {
		t.Errorf("stage status = %q, want failure", build.Stages[1].Status)
	}
	if len(build.Artifacts) != 2 {
		t.Errorf("artifacts = %d, want 2", len(build.Artifacts))
	}
	wantFinish := time.Date(2026, 3, 15, 9, 57, 34, 0, time.UTC)
	if !build.FinishedAt.Equal(wantFinish) {
		t.Errorf("finishedAt = %v, want %v", build.FinishedAt, wantFinish)
	}
}

// TestNormalize_DerivedFinishTime tests that a missing finish time is
// derived from start plus duration.
func TestNormalize_DerivedFinishTime(t *testing.T) {
	payload := `{
		"project": "api-server",
		"buildId": "7",
		"startedAt": "2026-03-15T09:00:00Z",
		"duration": 600
	}`

	build, err := Normalize([]byte(payload), "github")
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}

	want := time.Date(2026, 3, 15, 9, 10, 0, 0, time.UTC)
	if !build.FinishedAt.Equal(want) {
		t.Errorf("finishedAt = %v, want %v", build.FinishedAt, want)
	}
}

// TestNormalize_EpochTimestamps tests epoch seconds and milliseconds.
func TestNormalize_EpochTimestamps(t *testing.T) {
	// Jenkins sends epoch milliseconds.
	payload := `{"project": "p", "buildId": "1", "timestamp": 1773568800000}`
	build, err := Normalize([]byte(payload), "jenkins")
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if build.StartedAt.Unix() != 1773568800 {
		t.Errorf("startedAt = %v, want epoch 1773568800", build.StartedAt)
	}

	payload = `{"project": "p", "buildId": "2", "timestamp": 1773568800}`
	build, err = Normalize([]byte(payload), "custom")
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if build.StartedAt.Unix() != 1773568800 {
		t.Errorf("startedAt = %v, want epoch 1773568800", build.StartedAt)
	}
}

// TestNormalize_NumericStrings tests that stringified numbers are accepted.
func TestNormalize_NumericStrings(t *testing.T) {
	payload := `{"project": "p", "buildId": "3", "duration": "12.5"}`
	build, err := Normalize([]byte(payload), "custom")
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if build.DurationSeconds != 12.5 {
		t.Errorf("duration = %f, want 12.5", build.DurationSeconds)
	}
}

// TestNormalize_RawPayloadPreserved tests that the original payload is kept.
func TestNormalize_RawPayloadPreserved(t *testing.T) {
	payload := `{"project": "p", "buildId": "9", "extra": "field"}`
	build, err := Normalize([]byte(payload), "custom")
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if string(build.RawPayload) != payload {
		t.Errorf("raw payload not preserved: %s", build.RawPayload)
	}
}
