package alerting

import (
	"testing"

	"github.com/good-yellow-bee/buildpulse/internal/models"
)

func TestRenderMessage(t *testing.T) {
	build := &models.Build{
		Project:         "checkout",
		Number:          381,
		Status:          models.StatusFailure,
		Branch:          "release/2.4",
		DurationSeconds: 754,
		Environment:     "production",
		TriggeredBy:     "alice",
	}

	tests := []struct {
		name     string
		template string
		expected string
	}{
		{
			name:     "all placeholders",
			template: "{projectName} #{buildNumber} on {branch}: {status} after {duration} in {environment} by {triggeredBy}",
			expected: "checkout #381 on release/2.4: failure after 12m in production by alice",
		},
		{
			name:     "empty template uses default",
			template: "",
			expected: "checkout build #381 on release/2.4: failure",
		},
		{
			name:     "unknown placeholders left verbatim",
			template: "{projectName} {unknown} {status}",
			expected: "checkout {unknown} failure",
		},
		{
			name:     "no placeholders",
			template: "static message",
			expected: "static message",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := RenderMessage(tt.template, build); got != tt.expected {
				t.Errorf("RenderMessage() = %q, want %q", got, tt.expected)
			}
		})
	}
}
