package alerting

import (
	"testing"

	"github.com/good-yellow-bee/buildpulse/internal/models"
)

func TestValidateRule(t *testing.T) {
	slackChannel := models.Channel{
		Type:  models.ChannelSlack,
		Slack: &models.SlackChannel{WebhookURL: "https://hooks.slack.com/x"},
	}

	tests := []struct {
		name    string
		rule    *models.AlertRule
		wantErr bool
	}{
		{
			name: "valid build failure rule",
			rule: &models.AlertRule{
				Name:      "main-failures",
				Condition: models.Condition{Type: models.ConditionBuildFailure},
				Channels:  []models.Channel{slackChannel},
				Severity:  models.SeverityCritical,
			},
			wantErr: false,
		},
		{
			name: "missing name",
			rule: &models.AlertRule{
				Condition: models.Condition{Type: models.ConditionBuildFailure},
			},
			wantErr: true,
		},
		{
			name: "missing condition type",
			rule: &models.AlertRule{
				Name:      "r",
				Condition: models.Condition{},
			},
			wantErr: true,
		},
		{
			name: "unknown condition type",
			rule: &models.AlertRule{
				Name:      "r",
				Condition: models.Condition{Type: "full_moon"},
			},
			wantErr: true,
		},
		{
			name: "duration threshold requires positive minutes",
			rule: &models.AlertRule{
				Name: "slow",
				Condition: models.Condition{
					Type:              models.ConditionDurationThreshold,
					DurationThreshold: &models.DurationThresholdCondition{Minutes: 0},
				},
			},
			wantErr: true,
		},
		{
			name: "valid duration threshold",
			rule: &models.AlertRule{
				Name: "slow",
				Condition: models.Condition{
					Type:              models.ConditionDurationThreshold,
					DurationThreshold: &models.DurationThresholdCondition{Minutes: 20},
				},
			},
			wantErr: false,
		},
		{
			name: "error rate requires parameters",
			rule: &models.AlertRule{
				Name:      "flaky",
				Condition: models.Condition{Type: models.ConditionErrorRate},
			},
			wantErr: true,
		},
		{
			name: "error rate threshold over 100",
			rule: &models.AlertRule{
				Name: "flaky",
				Condition: models.Condition{
					Type: models.ConditionErrorRate,
					ErrorRate: &models.ErrorRateCondition{
						WindowMinutes: 60, ThresholdPercent: 150, MinimumBuilds: 5,
					},
				},
			},
			wantErr: true,
		},
		{
			name: "valid error rate",
			rule: &models.AlertRule{
				Name: "flaky",
				Condition: models.Condition{
					Type: models.ConditionErrorRate,
					ErrorRate: &models.ErrorRateCondition{
						WindowMinutes: 60, ThresholdPercent: 50, MinimumBuilds: 5,
					},
				},
			},
			wantErr: false,
		},
		{
			name: "consecutive failures requires positive count",
			rule: &models.AlertRule{
				Name: "streak",
				Condition: models.Condition{
					Type:                models.ConditionConsecutiveFailures,
					ConsecutiveFailures: &models.ConsecutiveFailuresCondition{Count: 0},
				},
			},
			wantErr: true,
		},
		{
			name: "deployment failure needs no parameters",
			rule: &models.AlertRule{
				Name:      "deploys",
				Condition: models.Condition{Type: models.ConditionDeploymentFailure},
			},
			wantErr: false,
		},
		{
			name: "negative cooldown",
			rule: &models.AlertRule{
				Name:            "r",
				Condition:       models.Condition{Type: models.ConditionBuildFailure},
				CooldownMinutes: -1,
			},
			wantErr: true,
		},
		{
			name: "invalid severity",
			rule: &models.AlertRule{
				Name:      "r",
				Condition: models.Condition{Type: models.ConditionBuildFailure},
				Severity:  "catastrophic",
			},
			wantErr: true,
		},
		{
			name: "slack channel without URL",
			rule: &models.AlertRule{
				Name:      "r",
				Condition: models.Condition{Type: models.ConditionBuildFailure},
				Channels:  []models.Channel{{Type: models.ChannelSlack, Slack: &models.SlackChannel{}}},
			},
			wantErr: true,
		},
		{
			name: "email channel without recipients",
			rule: &models.AlertRule{
				Name:      "r",
				Condition: models.Condition{Type: models.ConditionBuildFailure},
				Channels:  []models.Channel{{Type: models.ChannelEmail, Email: &models.EmailChannel{}}},
			},
			wantErr: true,
		},
		{
			name: "unknown channel type",
			rule: &models.AlertRule{
				Name:      "r",
				Condition: models.Condition{Type: models.ConditionBuildFailure},
				Channels:  []models.Channel{{Type: "pager"}},
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateRule(tt.rule)
			if tt.wantErr && err == nil {
				t.Error("expected error, got nil")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestValidateRule_DefaultsSeverity(t *testing.T) {
	rule := &models.AlertRule{
		Name:      "r",
		Condition: models.Condition{Type: models.ConditionBuildFailure},
	}
	if err := ValidateRule(rule); err != nil {
		t.Fatalf("validate: %v", err)
	}
	if rule.Severity != models.SeverityWarning {
		t.Errorf("severity = %q, want warning default", rule.Severity)
	}
}
