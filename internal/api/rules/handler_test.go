package rules

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/good-yellow-bee/buildpulse/internal/models"
	"github.com/good-yellow-bee/buildpulse/internal/storage"
)

// fakeInvalidator counts cache invalidations.
type fakeInvalidator struct {
	count int
}

func (f *fakeInvalidator) Invalidate() { f.count++ }

// fakeClearer records cleared rule IDs.
type fakeClearer struct {
	cleared []string
}

func (f *fakeClearer) Clear(ruleID string) { f.cleared = append(f.cleared, ruleID) }

func newTestHandler(t *testing.T) (*chi.Mux, storage.RuleRepository, *fakeInvalidator, *fakeClearer) {
	t.Helper()

	store := storage.NewSQLiteStorage(filepath.Join(t.TempDir(), "test.db"))
	if err := store.Open(); err != nil {
		t.Fatalf("open storage: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	if err := store.Migrate(); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	invalidator := &fakeInvalidator{}
	clearer := &fakeClearer{}
	h := NewHandler(store.Rules(), invalidator, clearer)

	r := chi.NewRouter()
	r.Route("/rules", func(r chi.Router) {
		r.Get("/", h.List)
		r.Post("/", h.Create)
		r.Get("/{id}", h.GetByID)
		r.Put("/{id}", h.Update)
		r.Delete("/{id}", h.Delete)
		r.Patch("/{id}/enabled", h.SetEnabled)
	})
	return r, store.Rules(), invalidator, clearer
}

const createBody = `{
	"name": "main-failures",
	"description": "Failed builds on main",
	"condition": {
		"type": "build_failure",
		"build_failure": {"branches": ["main"]}
	},
	"channels": [
		{"type": "slack", "slack": {"webhook_url": "https://hooks.slack.com/x"}}
	],
	"severity": "critical",
	"cooldown_minutes": 15
}`

func createRule(t *testing.T, router *chi.Mux) models.AlertRule {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, "/rules", bytes.NewBufferString(createBody))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body: %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Data models.AlertRule `json:"data"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return resp.Data
}

func TestCreate(t *testing.T) {
	router, _, invalidator, _ := newTestHandler(t)

	rule := createRule(t, router)
	if rule.ID == "" {
		t.Error("no ID assigned")
	}
	if rule.Name != "main-failures" {
		t.Errorf("name = %q", rule.Name)
	}
	if !rule.Enabled {
		t.Error("enabled should default to true")
	}
	if rule.Severity != models.SeverityCritical {
		t.Errorf("severity = %q", rule.Severity)
	}
	if invalidator.count != 1 {
		t.Errorf("invalidations = %d, want 1", invalidator.count)
	}
}

func TestCreate_DuplicateName(t *testing.T) {
	router, _, _, _ := newTestHandler(t)
	createRule(t, router)

	req := httptest.NewRequest(http.MethodPost, "/rules", bytes.NewBufferString(createBody))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409 for duplicate name", rec.Code)
	}
}

func TestCreate_InvalidCondition(t *testing.T) {
	router, _, _, _ := newTestHandler(t)

	body := `{"name": "broken", "condition": {"type": "duration_threshold"}}`
	req := httptest.NewRequest(http.MethodPost, "/rules", bytes.NewBufferString(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400 for invalid condition", rec.Code)
	}
}

func TestGetByID(t *testing.T) {
	router, _, _, _ := newTestHandler(t)
	rule := createRule(t, router)

	req := httptest.NewRequest(http.MethodGet, "/rules/"+rule.ID, nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/rules/missing", nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Errorf("missing rule status = %d, want 404", rec.Code)
	}
}

func TestList(t *testing.T) {
	router, _, _, _ := newTestHandler(t)
	createRule(t, router)

	req := httptest.NewRequest(http.MethodGet, "/rules", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp struct {
		Data []models.AlertRule `json:"data"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Data) != 1 {
		t.Errorf("rules = %d, want 1", len(resp.Data))
	}
}

func TestUpdate_Partial(t *testing.T) {
	router, repo, invalidator, _ := newTestHandler(t)
	rule := createRule(t, router)
	invalidator.count = 0

	body := `{"cooldown_minutes": 30, "severity": "info"}`
	req := httptest.NewRequest(http.MethodPut, "/rules/"+rule.ID, bytes.NewBufferString(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body: %s", rec.Code, rec.Body.String())
	}

	updated, err := repo.GetByID(context.Background(), rule.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if updated.CooldownMinutes != 30 {
		t.Errorf("cooldown = %d, want 30", updated.CooldownMinutes)
	}
	if updated.Severity != models.SeverityInfo {
		t.Errorf("severity = %q, want info", updated.Severity)
	}
	// Untouched fields survive.
	if updated.Name != "main-failures" {
		t.Errorf("name = %q, partial update must not clear it", updated.Name)
	}
	if updated.Condition.Type != models.ConditionBuildFailure {
		t.Error("condition lost on partial update")
	}
	if invalidator.count != 1 {
		t.Errorf("invalidations = %d, want 1", invalidator.count)
	}
}

func TestUpdate_InvalidConditionRejected(t *testing.T) {
	router, _, _, _ := newTestHandler(t)
	rule := createRule(t, router)

	body := `{"condition": {"type": "error_rate"}}`
	req := httptest.NewRequest(http.MethodPut, "/rules/"+rule.ID, bytes.NewBufferString(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestSetEnabled(t *testing.T) {
	router, repo, _, _ := newTestHandler(t)
	rule := createRule(t, router)

	body := `{"enabled": false}`
	req := httptest.NewRequest(http.MethodPatch, "/rules/"+rule.ID+"/enabled", bytes.NewBufferString(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body: %s", rec.Code, rec.Body.String())
	}

	updated, err := repo.GetByID(context.Background(), rule.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if updated.Enabled {
		t.Error("rule still enabled after disable")
	}

	// Missing enabled field is a bad request.
	req = httptest.NewRequest(http.MethodPatch, "/rules/"+rule.ID+"/enabled", bytes.NewBufferString(`{}`))
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400 without enabled field", rec.Code)
	}
}

func TestDelete(t *testing.T) {
	router, repo, _, clearer := newTestHandler(t)
	rule := createRule(t, router)

	req := httptest.NewRequest(http.MethodDelete, "/rules/"+rule.ID, nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", rec.Code)
	}

	gone, err := repo.GetByID(context.Background(), rule.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if gone != nil {
		t.Error("rule still present after delete")
	}
	if len(clearer.cleared) != 1 || clearer.cleared[0] != rule.ID {
		t.Errorf("cooldowns cleared = %v, want [%s]", clearer.cleared, rule.ID)
	}

	// Deleting again is a 404.
	req = httptest.NewRequest(http.MethodDelete, "/rules/"+rule.ID, nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Errorf("second delete status = %d, want 404", rec.Code)
	}
}
