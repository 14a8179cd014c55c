package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/good-yellow-bee/buildpulse/internal/models"
)

// SlackNotifier sends alerts to Slack via incoming webhooks. The webhook
// URL is carried per-rule in the channel configuration.
type SlackNotifier struct {
	httpClient *http.Client
}

// NewSlackNotifier creates a new Slack notifier.
func NewSlackNotifier() *SlackNotifier {
	return &SlackNotifier{
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// Type returns "slack".
func (s *SlackNotifier) Type() models.ChannelType {
	return models.ChannelSlack
}

// Send posts the alert to the channel's Slack webhook.
func (s *SlackNotifier) Send(ctx context.Context, channel models.Channel, alert *models.Alert) error {
	if channel.Slack == nil || channel.Slack.WebhookURL == "" {
		return fmt.Errorf("slack webhook URL is not configured")
	}

	payload := buildSlackPayload(channel.Slack, alert)
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, channel.Slack.WebhookURL, bytes.NewReader(jsonData))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("slack API error: status %d, body: %s", resp.StatusCode, string(body))
	}

	return nil
}

// Close is a no-op for Slack notifier.
func (s *SlackNotifier) Close() error {
	return nil
}

// slackMessage represents the Slack webhook payload.
type slackMessage struct {
	Channel string       `json:"channel,omitempty"`
	Blocks  []slackBlock `json:"blocks"`
}

// slackBlock represents a Slack Block Kit block.
type slackBlock struct {
	Type     string      `json:"type"`
	Text     *slackText  `json:"text,omitempty"`
	Fields   []slackText `json:"fields,omitempty"`
	Elements []slackText `json:"elements,omitempty"`
}

// slackText represents text in Slack Block Kit.
type slackText struct {
	Type  string `json:"type"`
	Text  string `json:"text"`
	Emoji bool   `json:"emoji,omitempty"`
}

// buildSlackPayload builds the Slack Block Kit message payload.
func buildSlackPayload(cfg *models.SlackChannel, alert *models.Alert) slackMessage {
	emoji := severityEmoji(alert.Severity)
	timestamp := alert.FiredAt.Format("2006-01-02 15:04:05 MST")

	blocks := []slackBlock{
		{
			Type: "header",
			Text: &slackText{
				Type:  "plain_text",
				Text:  fmt.Sprintf("%s BuildPulse Alert: %s", emoji, alert.RuleName),
				Emoji: true,
			},
		},
		{
			Type: "section",
			Fields: []slackText{
				{
					Type: "mrkdwn",
					Text: fmt.Sprintf("*Severity:*\n%s %s", emoji, strings.ToUpper(string(alert.Severity))),
				},
				{
					Type: "mrkdwn",
					Text: fmt.Sprintf("*Time:*\n%s", timestamp),
				},
			},
		},
		{
			Type: "section",
			Fields: []slackText{
				{
					Type: "mrkdwn",
					Text: fmt.Sprintf("*Project:*\n%s", alert.Project),
				},
				{
					Type: "mrkdwn",
					Text: fmt.Sprintf("*Build:*\n#%d (%s)", alert.BuildNumber, alert.BuildID),
				},
			},
		},
		{
			Type: "section",
			Text: &slackText{
				Type: "mrkdwn",
				Text: fmt.Sprintf("*Message:*\n%s", truncate(alert.Message, 2000)),
			},
		},
	}

	if len(alert.Metadata) > 0 {
		metaParts := make([]string, 0, len(alert.Metadata))
		for _, key := range []string{"branch", "environment", "status", "commit"} {
			if v, ok := alert.Metadata[key]; ok && v != "" {
				metaParts = append(metaParts, fmt.Sprintf("`%s=%s`", key, v))
			}
		}
		if len(metaParts) > 0 {
			blocks = append(blocks, slackBlock{
				Type: "context",
				Elements: []slackText{
					{
						Type: "mrkdwn",
						Text: strings.Join(metaParts, " "),
					},
				},
			})
		}
	}

	return slackMessage{Channel: cfg.Channel, Blocks: blocks}
}

// severityEmoji returns an emoji for the severity level.
func severityEmoji(severity models.Severity) string {
	switch severity {
	case models.SeverityCritical:
		return "\U0001F534" // red circle
	case models.SeverityWarning:
		return "\U0001F7E1" // yellow circle
	case models.SeverityInfo:
		return "\U0001F535" // blue circle
	default:
		return "\u26AA" // white circle
	}
}
