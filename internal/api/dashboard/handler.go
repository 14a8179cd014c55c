// Package dashboard serves the aggregated metrics read path.
package dashboard

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/good-yellow-bee/buildpulse/internal/aggregator"
	"github.com/good-yellow-bee/buildpulse/internal/models"
)

// Provider computes dashboard metrics for a range and scope.
type Provider interface {
	DashboardMetrics(ctx context.Context, opts aggregator.DashboardOptions) (*aggregator.DashboardMetrics, error)
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
	errCodeBadRequest    = "BAD_REQUEST"
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

// Handler handles dashboard endpoints.
type Handler struct {
	provider Provider
}

func NewHandler(provider Provider) *Handler {
	return &Handler{provider: provider}
}

// Metrics returns the aggregated dashboard snapshot.
// Query parameters: period (1h, 24h, 7d, 30d; default 24h), project
// (default all), start and end (RFC 3339, default the trailing period).
func (h *Handler) Metrics(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	period := models.Period(q.Get("period"))
	if period == "" {
		period = models.PeriodDay
	}
	if !period.Valid() {
		jsonError(w, http.StatusBadRequest, errCodeBadRequest, "invalid period, want one of 1h, 24h, 7d, 30d")
		return
	}

	opts := aggregator.DashboardOptions{
		Period:  period,
		Project: q.Get("project"),
	}

	if s := q.Get("start"); s != "" {
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			jsonError(w, http.StatusBadRequest, errCodeBadRequest, "invalid start, want RFC 3339")
			return
		}
		opts.Start = t
	}
	if s := q.Get("end"); s != "" {
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			jsonError(w, http.StatusBadRequest, errCodeBadRequest, "invalid end, want RFC 3339")
			return
		}
		opts.End = t
	}
	if !opts.Start.IsZero() && !opts.End.IsZero() && !opts.Start.Before(opts.End) {
		jsonError(w, http.StatusBadRequest, errCodeBadRequest, "start must precede end")
		return
	}

	result, err := h.provider.DashboardMetrics(r.Context(), opts)
	if err != nil {
		log.Printf("dashboard metrics error: %v", err)
		jsonError(w, http.StatusInternalServerError, errCodeInternalError, "internal server error")
		return
	}

	jsonOK(w, result)
}
