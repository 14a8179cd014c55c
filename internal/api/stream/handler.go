// Package stream pushes build and alert events to dashboard clients
// over Server-Sent Events.
package stream

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/good-yellow-bee/buildpulse/internal/events"
	"github.com/good-yellow-bee/buildpulse/internal/metrics"
)

// keepaliveInterval spaces the SSE comments that keep intermediaries
// from closing an idle stream.
const keepaliveInterval = 15 * time.Second

// Handler streams bus events to connected clients.
type Handler struct {
	broker      *events.Broker
	maxDuration time.Duration
}

// NewHandler creates a stream handler. maxDuration caps each connection's
// lifetime; clients reconnect via the SSE retry hint.
func NewHandler(broker *events.Broker, maxDuration time.Duration) *Handler {
	return &Handler{broker: broker, maxDuration: maxDuration}
}

// Events serves one SSE connection, optionally filtered to a single
// project via ?project=.
func (h *Handler) Events(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	sse := NewSSEWriter(w, flusher)
	if err := sse.SendRetry(3000); err != nil {
		return
	}

	project := r.URL.Query().Get("project")
	ch, cancel := h.broker.Subscribe(project)
	defer cancel()

	metrics.EventSubscribers.Inc()
	defer metrics.EventSubscribers.Dec()

	deadline := time.NewTimer(h.maxDuration)
	defer deadline.Stop()
	keepalive := time.NewTicker(keepaliveInterval)
	defer keepalive.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-deadline.C:
			// Let the client reconnect rather than holding the stream forever.
			return
		case <-keepalive.C:
			if err := sse.SendComment("keepalive"); err != nil {
				return
			}
		case event, open := <-ch:
			if !open {
				return
			}
			data, err := json.Marshal(event)
			if err != nil {
				log.Printf("stream: marshal event: %v", err)
				continue
			}
			if err := sse.SendEvent(event.Topic, string(data)); err != nil {
				return
			}
		}
	}
}
