// Package rules manages alert rule CRUD endpoints.
package rules

import (
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/good-yellow-bee/buildpulse/internal/alerting"
	"github.com/good-yellow-bee/buildpulse/internal/models"
	"github.com/good-yellow-bee/buildpulse/internal/storage"
)

// Invalidator marks the evaluator's rule cache stale after a mutation.
type Invalidator interface {
	Invalidate()
}

// CooldownClearer drops cooldown state for a removed rule.
type CooldownClearer interface {
	Clear(ruleID string)
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
	errCodeNotFound         = "NOT_FOUND"
	errCodeConflict         = "CONFLICT"
	errCodeInternalError    = "INTERNAL_ERROR"
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

func jsonCreated(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	if err := json.NewEncoder(w).Encode(dataResponse{Data: data}); err != nil {
		log.Printf("json encode error: %v", err)
	}
}

func jsonNoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

// Handler handles alert rule endpoints.
type Handler struct {
	rules     storage.RuleRepository
	registry  Invalidator
	cooldowns CooldownClearer
}

func NewHandler(rules storage.RuleRepository, registry Invalidator, cooldowns CooldownClearer) *Handler {
	return &Handler{rules: rules, registry: registry, cooldowns: cooldowns}
}

// Request types
type CreateRequest struct {
	Name            string           `json:"name"`
	Description     string           `json:"description"`
	Condition       models.Condition `json:"condition"`
	Channels        []models.Channel `json:"channels"`
	Severity        string           `json:"severity"`
	MessageTemplate string           `json:"message_template"`
	CooldownMinutes int              `json:"cooldown_minutes"`
	Enabled         *bool            `json:"enabled"`
}

type UpdateRequest struct {
	Name            string            `json:"name,omitempty"`
	Description     *string           `json:"description,omitempty"`
	Condition       *models.Condition `json:"condition,omitempty"`
	Channels        []models.Channel  `json:"channels,omitempty"`
	Severity        string            `json:"severity,omitempty"`
	MessageTemplate *string           `json:"message_template,omitempty"`
	CooldownMinutes *int              `json:"cooldown_minutes,omitempty"`
	Enabled         *bool             `json:"enabled,omitempty"`
}

type SetEnabledRequest struct {
	Enabled *bool `json:"enabled"`
}

// List returns all rules.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	rules, err := h.rules.List(r.Context())
	if err != nil {
		log.Printf("list rules error: %v", err)
		jsonError(w, http.StatusInternalServerError, errCodeInternalError, "internal server error")
		return
	}
	jsonOK(w, rules)
}

// Create creates a new rule.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, http.StatusBadRequest, errCodeBadRequest, "invalid request body")
		return
	}

	ctx := r.Context()
	name := strings.TrimSpace(req.Name)

	existing, err := h.rules.GetByName(ctx, name)
	if err != nil {
		log.Printf("create rule error: check name: %v", err)
		jsonError(w, http.StatusInternalServerError, errCodeInternalError, "internal server error")
		return
	}
	if existing != nil {
		jsonError(w, http.StatusConflict, errCodeConflict, "rule name already exists")
		return
	}

	now := time.Now()
	rule := &models.AlertRule{
		ID:              uuid.New().String(),
		Name:            name,
		Description:     strings.TrimSpace(req.Description),
		Condition:       req.Condition,
		Channels:        req.Channels,
		Severity:        models.ParseSeverity(req.Severity),
		MessageTemplate: req.MessageTemplate,
		CooldownMinutes: req.CooldownMinutes,
		Enabled:         req.Enabled == nil || *req.Enabled,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if err := alerting.ValidateRule(rule); err != nil {
		jsonError(w, http.StatusBadRequest, errCodeValidationFailed, err.Error())
		return
	}

	if err := h.rules.Create(ctx, rule); err != nil {
		log.Printf("create rule error: %v", err)
		jsonError(w, http.StatusInternalServerError, errCodeInternalError, "internal server error")
		return
	}
	h.registry.Invalidate()

	log.Printf("rule created: %s (%s)", rule.Name, rule.ID)
	jsonCreated(w, rule)
}

// GetByID returns a rule by ID.
func (h *Handler) GetByID(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		jsonError(w, http.StatusBadRequest, errCodeBadRequest, "rule id required")
		return
	}

	rule, err := h.rules.GetByID(r.Context(), id)
	if err != nil {
		log.Printf("get rule error: %v", err)
		jsonError(w, http.StatusInternalServerError, errCodeInternalError, "internal server error")
		return
	}
	if rule == nil {
		jsonError(w, http.StatusNotFound, errCodeNotFound, "rule not found")
		return
	}

	jsonOK(w, rule)
}

// Update applies a partial update to a rule.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		jsonError(w, http.StatusBadRequest, errCodeBadRequest, "rule id required")
		return
	}

	var req UpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, http.StatusBadRequest, errCodeBadRequest, "invalid request body")
		return
	}

	ctx := r.Context()
	rule, err := h.rules.GetByID(ctx, id)
	if err != nil {
		log.Printf("update rule error: get: %v", err)
		jsonError(w, http.StatusInternalServerError, errCodeInternalError, "internal server error")
		return
	}
	if rule == nil {
		jsonError(w, http.StatusNotFound, errCodeNotFound, "rule not found")
		return
	}

	// Update fields if provided
	if req.Name != "" {
		name := strings.TrimSpace(req.Name)
		if name != rule.Name {
			existing, err := h.rules.GetByName(ctx, name)
			if err != nil {
				log.Printf("update rule error: check name: %v", err)
				jsonError(w, http.StatusInternalServerError, errCodeInternalError, "internal server error")
				return
			}
			if existing != nil {
				jsonError(w, http.StatusConflict, errCodeConflict, "rule name already exists")
				return
			}
		}
		rule.Name = name
	}
	if req.Description != nil {
		rule.Description = strings.TrimSpace(*req.Description)
	}
	if req.Condition != nil {
		rule.Condition = *req.Condition
	}
	if req.Channels != nil {
		rule.Channels = req.Channels
	}
	if req.Severity != "" {
		rule.Severity = models.ParseSeverity(req.Severity)
	}
	if req.MessageTemplate != nil {
		rule.MessageTemplate = *req.MessageTemplate
	}
	if req.CooldownMinutes != nil {
		rule.CooldownMinutes = *req.CooldownMinutes
	}
	if req.Enabled != nil {
		rule.Enabled = *req.Enabled
	}
	rule.UpdatedAt = time.Now()

	if err := alerting.ValidateRule(rule); err != nil {
		jsonError(w, http.StatusBadRequest, errCodeValidationFailed, err.Error())
		return
	}

	if err := h.rules.Update(ctx, rule); err != nil {
		log.Printf("update rule error: %v", err)
		jsonError(w, http.StatusInternalServerError, errCodeInternalError, "internal server error")
		return
	}
	h.registry.Invalidate()

	log.Printf("rule updated: %s (%s)", rule.Name, rule.ID)
	jsonOK(w, rule)
}

// SetEnabled toggles a rule without touching its definition.
func (h *Handler) SetEnabled(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		jsonError(w, http.StatusBadRequest, errCodeBadRequest, "rule id required")
		return
	}

	var req SetEnabledRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Enabled == nil {
		jsonError(w, http.StatusBadRequest, errCodeBadRequest, "enabled field required")
		return
	}

	ctx := r.Context()
	rule, err := h.rules.GetByID(ctx, id)
	if err != nil {
		log.Printf("toggle rule error: get: %v", err)
		jsonError(w, http.StatusInternalServerError, errCodeInternalError, "internal server error")
		return
	}
	if rule == nil {
		jsonError(w, http.StatusNotFound, errCodeNotFound, "rule not found")
		return
	}

	if err := h.rules.SetEnabled(ctx, id, *req.Enabled); err != nil {
		log.Printf("toggle rule error: %v", err)
		jsonError(w, http.StatusInternalServerError, errCodeInternalError, "internal server error")
		return
	}
	h.registry.Invalidate()

	rule.Enabled = *req.Enabled
	log.Printf("rule %s: enabled=%v", rule.Name, rule.Enabled)
	jsonOK(w, rule)
}

// Delete deletes a rule. Already-fired alerts keep their denormalized
// rule name.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		jsonError(w, http.StatusBadRequest, errCodeBadRequest, "rule id required")
		return
	}

	ctx := r.Context()
	rule, err := h.rules.GetByID(ctx, id)
	if err != nil {
		log.Printf("delete rule error: get: %v", err)
		jsonError(w, http.StatusInternalServerError, errCodeInternalError, "internal server error")
		return
	}
	if rule == nil {
		jsonError(w, http.StatusNotFound, errCodeNotFound, "rule not found")
		return
	}

	if err := h.rules.Delete(ctx, id); err != nil {
		log.Printf("delete rule error: %v", err)
		jsonError(w, http.StatusInternalServerError, errCodeInternalError, "internal server error")
		return
	}
	h.registry.Invalidate()
	h.cooldowns.Clear(id)

	log.Printf("rule deleted: %s (%s)", rule.Name, rule.ID)
	jsonNoContent(w)
}
