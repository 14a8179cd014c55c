// Package webhooks receives build completion payloads from CI systems.
package webhooks

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/good-yellow-bee/buildpulse/internal/ingest"
	"github.com/good-yellow-bee/buildpulse/internal/models"
	"github.com/good-yellow-bee/buildpulse/internal/storage"
)

// maxPayloadBytes bounds inbound webhook bodies.
const maxPayloadBytes = 1 << 20 // 1 MiB

// Ingester runs the full build pipeline for one inbound payload.
type Ingester interface {
	Ingest(ctx context.Context, source string, payload []byte) (*models.Build, error)
}

// Response helpers
type errorResponse struct {
	Error errorBody `json:"error"`
}
type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
type dataResponse struct {
	Data any `json:"data"`
}

const (
	errCodeBadRequest       = "BAD_REQUEST"
	errCodeValidationFailed = "VALIDATION_FAILED"
	errCodeUnavailable      = "UNAVAILABLE"
	errCodeInternalError    = "INTERNAL_ERROR"
)

func jsonError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(errorResponse{Error: errorBody{Code: code, Message: message}}); err != nil {
		log.Printf("json encode error: %v", err)
	}
}

func jsonAccepted(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	if err := json.NewEncoder(w).Encode(dataResponse{Data: data}); err != nil {
		log.Printf("json encode error: %v", err)
	}
}

// IngestResponse acknowledges an accepted build event.
type IngestResponse struct {
	ID      string `json:"id"`
	Project string `json:"project"`
	BuildID string `json:"build_id"`
	Status  string `json:"status"`
}

// Handler handles webhook ingestion endpoints.
type Handler struct {
	ingester Ingester
}

func NewHandler(ingester Ingester) *Handler {
	return &Handler{ingester: ingester}
}

// Receive accepts one build event from the CI system named in the URL.
// Validation failures are rejected with 400 and no partial write;
// transient storage failures return 503 so the sender retries.
func (h *Handler) Receive(w http.ResponseWriter, r *http.Request) {
	source := chi.URLParam(r, "source")
	if source == "" {
		jsonError(w, http.StatusBadRequest, errCodeBadRequest, "webhook source required")
		return
	}

	payload, err := io.ReadAll(io.LimitReader(r.Body, maxPayloadBytes+1))
	if err != nil {
		jsonError(w, http.StatusBadRequest, errCodeBadRequest, "read request body")
		return
	}
	if len(payload) > maxPayloadBytes {
		jsonError(w, http.StatusRequestEntityTooLarge, errCodeBadRequest, "payload too large")
		return
	}
	if len(payload) == 0 {
		jsonError(w, http.StatusBadRequest, errCodeBadRequest, "empty payload")
		return
	}

	build, err := h.ingester.Ingest(r.Context(), source, payload)
	if err != nil {
		switch {
		case errors.Is(err, ingest.ErrValidation):
			jsonError(w, http.StatusBadRequest, errCodeValidationFailed, err.Error())
		case errors.Is(err, storage.ErrUnavailable):
			jsonError(w, http.StatusServiceUnavailable, errCodeUnavailable, "storage temporarily unavailable, retry")
		default:
			log.Printf("ingest error: source=%s: %v", source, err)
			jsonError(w, http.StatusInternalServerError, errCodeInternalError, "internal server error")
		}
		return
	}

	jsonAccepted(w, IngestResponse{
		ID:      build.ID,
		Project: build.Project,
		BuildID: build.BuildID,
		Status:  string(build.Status),
	})
}
