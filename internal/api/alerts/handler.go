// Package alerts serves the fired alert list and its lifecycle actions.
package alerts

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/good-yellow-bee/buildpulse/internal/events"
	"github.com/good-yellow-bee/buildpulse/internal/models"
	"github.com/good-yellow-bee/buildpulse/internal/storage"
)

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
	errCodeBadRequest    = "BAD_REQUEST"
	errCodeNotFound      = "NOT_FOUND"
	errCodeConflict      = "CONFLICT"
	errCodeInternalError = "INTERNAL_ERROR"
)

func jsonError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(errorResponse{Error: errorBody{Code: code, Message: message}}); err != nil {
		log.Printf("json encode error: %v", err)
	}
}

func jsonOK(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(dataResponse{Data: data}); err != nil {
		log.Printf("json encode error: %v", err)
	}
}

// ListResponse wraps alerts with pagination info.
type ListResponse struct {
	Items   []*models.Alert `json:"items"`
	Total   int64           `json:"total"`
	Page    int             `json:"page"`
	PerPage int             `json:"per_page"`
}

// Handler handles fired alert endpoints.
type Handler struct {
	alerts storage.AlertRepository
	bus    events.Bus
}

func NewHandler(alerts storage.AlertRepository, bus events.Bus) *Handler {
	return &Handler{alerts: alerts, bus: bus}
}

// Request types
type AcknowledgeRequest struct {
	By string `json:"by"`
}

type ResolveRequest struct {
	By         string `json:"by"`
	Resolution string `json:"resolution"`
}

// List returns fired alerts, newest first, optionally filtered by
// status and project.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	status := models.AlertStatus(q.Get("status"))
	switch status {
	case "", models.AlertActive, models.AlertAcknowledged, models.AlertResolved:
	default:
		jsonError(w, http.StatusBadRequest, errCodeBadRequest, "invalid status filter")
		return
	}

	page := 1
	perPage := 50
	if p := q.Get("page"); p != "" {
		if v, err := strconv.Atoi(p); err == nil && v > 0 {
			page = v
		}
	}
	if pp := q.Get("per_page"); pp != "" {
		if v, err := strconv.Atoi(pp); err == nil && v > 0 && v <= 100 {
			perPage = v
		}
	}

	offset := (page - 1) * perPage
	items, total, err := h.alerts.List(r.Context(), status, q.Get("project"), perPage, offset)
	if err != nil {
		log.Printf("list alerts error: %v", err)
		jsonError(w, http.StatusInternalServerError, errCodeInternalError, "internal server error")
		return
	}
	if items == nil {
		items = []*models.Alert{}
	}

	jsonOK(w, ListResponse{
		Items:   items,
		Total:   total,
		Page:    page,
		PerPage: perPage,
	})
}

// GetByID returns one alert.
func (h *Handler) GetByID(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		jsonError(w, http.StatusBadRequest, errCodeBadRequest, "alert id required")
		return
	}

	alert, err := h.alerts.GetByID(r.Context(), id)
	if err != nil {
		log.Printf("get alert error: %v", err)
		jsonError(w, http.StatusInternalServerError, errCodeInternalError, "internal server error")
		return
	}
	if alert == nil {
		jsonError(w, http.StatusNotFound, errCodeNotFound, "alert not found")
		return
	}

	jsonOK(w, alert)
}

// Acknowledge moves an active alert to acknowledged.
func (h *Handler) Acknowledge(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		jsonError(w, http.StatusBadRequest, errCodeBadRequest, "alert id required")
		return
	}

	var req AcknowledgeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, http.StatusBadRequest, errCodeBadRequest, "invalid request body")
		return
	}
	by := strings.TrimSpace(req.By)
	if by == "" {
		jsonError(w, http.StatusBadRequest, errCodeBadRequest, "by field required")
		return
	}

	ctx := r.Context()
	alert, err := h.alerts.GetByID(ctx, id)
	if err != nil {
		log.Printf("acknowledge alert error: get: %v", err)
		jsonError(w, http.StatusInternalServerError, errCodeInternalError, "internal server error")
		return
	}
	if alert == nil {
		jsonError(w, http.StatusNotFound, errCodeNotFound, "alert not found")
		return
	}
	if alert.Status != models.AlertActive {
		jsonError(w, http.StatusConflict, errCodeConflict, "only active alerts can be acknowledged")
		return
	}

	now := time.Now()
	if err := h.alerts.Acknowledge(ctx, id, by, now); err != nil {
		log.Printf("acknowledge alert error: %v", err)
		jsonError(w, http.StatusConflict, errCodeConflict, "only active alerts can be acknowledged")
		return
	}

	alert.Status = models.AlertAcknowledged
	alert.AcknowledgedAt = &now
	alert.AcknowledgedBy = by

	h.bus.Publish(events.TopicAlertAcknowledged, alert.Project, events.AlertAcknowledged{
		ID: alert.ID,
		By: by,
	})

	log.Printf("alert acknowledged: %s by %s", alert.ID, by)
	jsonOK(w, alert)
}

// Resolve moves an active or acknowledged alert to resolved. Resolved
// is final.
func (h *Handler) Resolve(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		jsonError(w, http.StatusBadRequest, errCodeBadRequest, "alert id required")
		return
	}

	var req ResolveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, http.StatusBadRequest, errCodeBadRequest, "invalid request body")
		return
	}
	by := strings.TrimSpace(req.By)
	if by == "" {
		jsonError(w, http.StatusBadRequest, errCodeBadRequest, "by field required")
		return
	}

	ctx := r.Context()
	alert, err := h.alerts.GetByID(ctx, id)
	if err != nil {
		log.Printf("resolve alert error: get: %v", err)
		jsonError(w, http.StatusInternalServerError, errCodeInternalError, "internal server error")
		return
	}
	if alert == nil {
		jsonError(w, http.StatusNotFound, errCodeNotFound, "alert not found")
		return
	}
	if alert.Status == models.AlertResolved {
		jsonError(w, http.StatusConflict, errCodeConflict, "alert is already resolved")
		return
	}

	now := time.Now()
	resolution := strings.TrimSpace(req.Resolution)
	if err := h.alerts.Resolve(ctx, id, by, resolution, now); err != nil {
		log.Printf("resolve alert error: %v", err)
		jsonError(w, http.StatusConflict, errCodeConflict, "alert is already resolved")
		return
	}

	alert.Status = models.AlertResolved
	alert.ResolvedAt = &now
	alert.ResolvedBy = by
	alert.Resolution = resolution

	h.bus.Publish(events.TopicAlertResolved, alert.Project, events.AlertResolved{
		ID:         alert.ID,
		By:         by,
		Resolution: resolution,
	})

	log.Printf("alert resolved: %s by %s", alert.ID, by)
	jsonOK(w, alert)
}
