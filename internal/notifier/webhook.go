package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/good-yellow-bee/buildpulse/internal/models"
)

// WebhookNotifier posts alerts as JSON to an arbitrary HTTP endpoint.
type WebhookNotifier struct {
	httpClient *http.Client
}

// NewWebhookNotifier creates a new webhook notifier.
func NewWebhookNotifier() *WebhookNotifier {
	return &WebhookNotifier{
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// Type returns "webhook".
func (w *WebhookNotifier) Type() models.ChannelType {
	return models.ChannelWebhook
}

// webhookPayload is the JSON body posted to the configured endpoint.
type webhookPayload struct {
	ID        string            `json:"id"`
	RuleName  string            `json:"rule_name"`
	Severity  string            `json:"severity"`
	Message   string            `json:"message"`
	Project   string            `json:"project"`
	BuildID   string            `json:"build_id"`
	BuildNum  int64             `json:"build_number"`
	FiredAt   time.Time         `json:"fired_at"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// Send posts the alert to the channel's webhook URL with any configured
// extra headers.
func (w *WebhookNotifier) Send(ctx context.Context, channel models.Channel, alert *models.Alert) error {
	if channel.Webhook == nil || channel.Webhook.URL == "" {
		return fmt.Errorf("webhook URL is not configured")
	}

	payload := webhookPayload{
		ID:       alert.ID,
		RuleName: alert.RuleName,
		Severity: string(alert.Severity),
		Message:  alert.Message,
		Project:  alert.Project,
		BuildID:  alert.BuildID,
		BuildNum: alert.BuildNumber,
		FiredAt:  alert.FiredAt,
		Metadata: alert.Metadata,
	}
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, channel.Webhook.URL, bytes.NewReader(jsonData))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for key, value := range channel.Webhook.Headers {
		req.Header.Set(key, value)
	}

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("webhook error: status %d, body: %s", resp.StatusCode, string(body))
	}

	return nil
}

// Close is a no-op for webhook notifier.
func (w *WebhookNotifier) Close() error {
	return nil
}
