package models

import (
	"encoding/json"
	"time"
)

// ConditionType tags the variant of an alert rule condition.
type ConditionType string

const (
	ConditionBuildFailure        ConditionType = "build_failure"
	ConditionDurationThreshold   ConditionType = "duration_threshold"
	ConditionErrorRate           ConditionType = "error_rate"
	ConditionConsecutiveFailures ConditionType = "consecutive_failures"
	ConditionTestFailureRate     ConditionType = "test_failure_rate"
	ConditionDeploymentFailure   ConditionType = "deployment_failure"
)

// BuildFailureCondition matches failed builds, optionally filtered by
// project, branch, and environment. An empty filter list is a wildcard.
type BuildFailureCondition struct {
	Projects     []string `json:"projects,omitempty" yaml:"projects,omitempty"`
	Branches     []string `json:"branches,omitempty" yaml:"branches,omitempty"`
	Environments []string `json:"environments,omitempty" yaml:"environments,omitempty"`
}

// DurationThresholdCondition matches builds running longer than the threshold.
type DurationThresholdCondition struct {
	Minutes float64 `json:"minutes" yaml:"minutes"`
}

// ErrorRateCondition matches when the failure rate across a recent window
// reaches the threshold, once at least MinimumBuilds have been seen.
type ErrorRateCondition struct {
	WindowMinutes    int     `json:"window_minutes" yaml:"window_minutes"`
	ThresholdPercent float64 `json:"threshold_percent" yaml:"threshold_percent"`
	MinimumBuilds    int     `json:"minimum_builds" yaml:"minimum_builds"`
}

// ConsecutiveFailuresCondition matches when the most recent Count builds
// for (project, branch) all failed.
type ConsecutiveFailuresCondition struct {
	Count int `json:"count" yaml:"count"`
}

// TestFailureRateCondition matches when failed/total tests reaches the
// threshold. Builds reporting no tests never match.
type TestFailureRateCondition struct {
	ThresholdPercent float64 `json:"threshold_percent" yaml:"threshold_percent"`
}

// DeploymentFailureCondition matches failed builds targeting one of the
// listed environments (production and staging when unspecified).
type DeploymentFailureCondition struct {
	Environments []string `json:"environments,omitempty" yaml:"environments,omitempty"`
}

// Condition is the closed tagged union of rule condition variants.
// Exactly the parameter record matching Type is populated.
type Condition struct {
	Type                ConditionType                 `json:"type" yaml:"type"`
	BuildFailure        *BuildFailureCondition        `json:"build_failure,omitempty" yaml:"build_failure,omitempty"`
	DurationThreshold   *DurationThresholdCondition   `json:"duration_threshold,omitempty" yaml:"duration_threshold,omitempty"`
	ErrorRate           *ErrorRateCondition           `json:"error_rate,omitempty" yaml:"error_rate,omitempty"`
	ConsecutiveFailures *ConsecutiveFailuresCondition `json:"consecutive_failures,omitempty" yaml:"consecutive_failures,omitempty"`
	TestFailureRate     *TestFailureRateCondition     `json:"test_failure_rate,omitempty" yaml:"test_failure_rate,omitempty"`
	DeploymentFailure   *DeploymentFailureCondition   `json:"deployment_failure,omitempty" yaml:"deployment_failure,omitempty"`
}

// ChannelType identifies a notification transport.
type ChannelType string

const (
	ChannelSlack   ChannelType = "slack"
	ChannelEmail   ChannelType = "email"
	ChannelWebhook ChannelType = "webhook"
)

// SlackChannel configures a Slack incoming-webhook destination.
type SlackChannel struct {
	WebhookURL string `json:"webhook_url" yaml:"webhook_url"`
	Channel    string `json:"channel,omitempty" yaml:"channel,omitempty"`
}

// EmailChannel configures email recipients for a rule.
type EmailChannel struct {
	Recipients []string `json:"recipients" yaml:"recipients"`
}

// WebhookChannel configures a generic HTTP webhook destination.
type WebhookChannel struct {
	URL     string            `json:"url" yaml:"url"`
	Headers map[string]string `json:"headers,omitempty" yaml:"headers,omitempty"`
}

// Channel is one notification destination attached to a rule.
type Channel struct {
	Type    ChannelType     `json:"type" yaml:"type"`
	Slack   *SlackChannel   `json:"slack,omitempty" yaml:"slack,omitempty"`
	Email   *EmailChannel   `json:"email,omitempty" yaml:"email,omitempty"`
	Webhook *WebhookChannel `json:"webhook,omitempty" yaml:"webhook,omitempty"`
}

// Severity represents alert severity level.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityWarning  Severity = "warning"
	SeverityInfo     Severity = "info"
)

// ParseSeverity converts a string to Severity, defaulting to warning.
func ParseSeverity(s string) Severity {
	switch s {
	case "critical":
		return SeverityCritical
	case "warning":
		return SeverityWarning
	case "info":
		return SeverityInfo
	default:
		return SeverityWarning
	}
}

// AlertRule is a persisted matching rule evaluated against each build.
type AlertRule struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	Description     string    `json:"description,omitempty"`
	Condition       Condition `json:"condition"`
	Channels        []Channel `json:"channels"`
	Severity        Severity  `json:"severity"`
	MessageTemplate string    `json:"message_template,omitempty"`
	CooldownMinutes int       `json:"cooldown_minutes"`
	Enabled         bool      `json:"enabled"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// Cooldown returns the rule's cooldown window as a duration.
func (r *AlertRule) Cooldown() time.Duration {
	return time.Duration(r.CooldownMinutes) * time.Minute
}

// EncodeCondition serializes the condition for storage.
func (r *AlertRule) EncodeCondition() (string, error) {
	data, err := json.Marshal(r.Condition)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// EncodeChannels serializes the channel list for storage.
func (r *AlertRule) EncodeChannels() (string, error) {
	data, err := json.Marshal(r.Channels)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
