// Package alerting evaluates alert rules against incoming builds and
// dispatches deduplicated, cooldown-gated notifications.
package alerting

import (
	"fmt"

	"github.com/good-yellow-bee/buildpulse/internal/models"
)

// DefaultDeploymentEnvironments is used when a deployment-failure
// condition does not name explicit environments.
var DefaultDeploymentEnvironments = []string{"production", "staging"}

// ValidateRule validates a rule's condition and channel configuration.
func ValidateRule(rule *models.AlertRule) error {
	if rule.Name == "" {
		return fmt.Errorf("rule name is required")
	}
	if err := validateCondition(rule.Name, rule.Condition); err != nil {
		return err
	}
	for i, ch := range rule.Channels {
		if err := validateChannel(ch); err != nil {
			return fmt.Errorf("channel %d of rule %q: %w", i, rule.Name, err)
		}
	}
	if rule.CooldownMinutes < 0 {
		return fmt.Errorf("cooldown must not be negative for rule %q", rule.Name)
	}
	switch rule.Severity {
	case models.SeverityCritical, models.SeverityWarning, models.SeverityInfo:
	case "":
		rule.Severity = models.SeverityWarning
	default:
		return fmt.Errorf("invalid severity %q for rule %q", rule.Severity, rule.Name)
	}
	return nil
}

func validateCondition(name string, c models.Condition) error {
	switch c.Type {
	case models.ConditionBuildFailure:
		// All filters optional; nil parameter record means no filters.
		return nil
	case models.ConditionDurationThreshold:
		if c.DurationThreshold == nil || c.DurationThreshold.Minutes <= 0 {
			return fmt.Errorf("duration threshold must be positive for rule %q", name)
		}
	case models.ConditionErrorRate:
		p := c.ErrorRate
		if p == nil {
			return fmt.Errorf("error rate parameters are required for rule %q", name)
		}
		if p.WindowMinutes <= 0 {
			return fmt.Errorf("error rate window must be positive for rule %q", name)
		}
		if p.ThresholdPercent <= 0 || p.ThresholdPercent > 100 {
			return fmt.Errorf("error rate threshold must be in (0, 100] for rule %q", name)
		}
		if p.MinimumBuilds <= 0 {
			return fmt.Errorf("error rate minimum builds must be positive for rule %q", name)
		}
	case models.ConditionConsecutiveFailures:
		if c.ConsecutiveFailures == nil || c.ConsecutiveFailures.Count <= 0 {
			return fmt.Errorf("consecutive failure count must be positive for rule %q", name)
		}
	case models.ConditionTestFailureRate:
		p := c.TestFailureRate
		if p == nil || p.ThresholdPercent <= 0 || p.ThresholdPercent > 100 {
			return fmt.Errorf("test failure threshold must be in (0, 100] for rule %q", name)
		}
	case models.ConditionDeploymentFailure:
		// Environments default to production and staging when unset.
		return nil
	case "":
		return fmt.Errorf("condition type is required for rule %q", name)
	default:
		return fmt.Errorf("unknown condition type %q for rule %q", c.Type, name)
	}
	return nil
}

func validateChannel(ch models.Channel) error {
	switch ch.Type {
	case models.ChannelSlack:
		if ch.Slack == nil || ch.Slack.WebhookURL == "" {
			return fmt.Errorf("slack webhook URL is required")
		}
	case models.ChannelEmail:
		if ch.Email == nil || len(ch.Email.Recipients) == 0 {
			return fmt.Errorf("at least one email recipient is required")
		}
	case models.ChannelWebhook:
		if ch.Webhook == nil || ch.Webhook.URL == "" {
			return fmt.Errorf("webhook URL is required")
		}
	default:
		return fmt.Errorf("unknown channel type %q", ch.Type)
	}
	return nil
}
