package notifier

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/good-yellow-bee/buildpulse/internal/models"
)

func TestWebhookNotifier_Send(t *testing.T) {
	var body []byte
	var gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		body, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	n := NewWebhookNotifier()
	channel := models.Channel{
		Type: models.ChannelWebhook,
		Webhook: &models.WebhookChannel{
			URL:     server.URL,
			Headers: map[string]string{"Authorization": "Bearer token123"},
		},
	}

	if err := n.Send(context.Background(), channel, testAlert()); err != nil {
		t.Fatalf("send: %v", err)
	}

	if gotAuth != "Bearer token123" {
		t.Errorf("authorization header = %q, custom headers not forwarded", gotAuth)
	}

	var payload webhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if payload.ID != "a1" || payload.RuleName != "main-failures" {
		t.Errorf("payload = %+v", payload)
	}
	if payload.BuildNum != 381 {
		t.Errorf("build number = %d, want 381", payload.BuildNum)
	}
	if payload.Metadata["branch"] != "release/2.4" {
		t.Error("metadata not forwarded")
	}
}

func TestWebhookNotifier_SendNon2xx(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "server error", http.StatusInternalServerError)
	}))
	defer server.Close()

	n := NewWebhookNotifier()
	channel := models.Channel{
		Type:    models.ChannelWebhook,
		Webhook: &models.WebhookChannel{URL: server.URL},
	}

	if err := n.Send(context.Background(), channel, testAlert()); err == nil {
		t.Fatal("expected error for 5xx response")
	}
}

func TestWebhookNotifier_SendMissingURL(t *testing.T) {
	n := NewWebhookNotifier()
	if err := n.Send(context.Background(), models.Channel{Type: models.ChannelWebhook}, testAlert()); err == nil {
		t.Fatal("expected error for missing URL")
	}
}

func TestRegistry_RoutesByChannelType(t *testing.T) {
	registry := NewRegistry()
	registry.Register(NewSlackNotifier())
	registry.Register(NewWebhookNotifier())

	if _, ok := registry.Get(models.ChannelSlack); !ok {
		t.Error("slack notifier not registered")
	}
	if _, ok := registry.Get(models.ChannelEmail); ok {
		t.Error("email notifier should not be registered")
	}

	err := registry.Send(context.Background(), models.Channel{Type: models.ChannelEmail}, testAlert())
	if err == nil {
		t.Error("expected error for unregistered channel type")
	}
}
