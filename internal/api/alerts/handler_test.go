package alerts

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/good-yellow-bee/buildpulse/internal/models"
	"github.com/good-yellow-bee/buildpulse/internal/storage"
)

// recordingBus captures published topics.
type recordingBus struct {
	mu     sync.Mutex
	topics []string
}

func (b *recordingBus) Publish(topic, project string, payload any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.topics = append(b.topics, topic)
}

func newTestHandler(t *testing.T) (*chi.Mux, storage.AlertRepository, *recordingBus) {
	t.Helper()

	store := storage.NewSQLiteStorage(filepath.Join(t.TempDir(), "test.db"))
	if err := store.Open(); err != nil {
		t.Fatalf("open storage: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	if err := store.Migrate(); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	bus := &recordingBus{}
	h := NewHandler(store.Alerts(), bus)

	r := chi.NewRouter()
	r.Route("/alerts", func(r chi.Router) {
		r.Get("/", h.List)
		r.Get("/{id}", h.GetByID)
		r.Post("/{id}/acknowledge", h.Acknowledge)
		r.Post("/{id}/resolve", h.Resolve)
	})
	return r, store.Alerts(), bus
}

func seedAlert(t *testing.T, repo storage.AlertRepository, id string, firedAt time.Time) {
	t.Helper()
	alert := &models.Alert{
		ID:       id,
		RuleID:   "r1",
		RuleName: "main-failures",
		Severity: models.SeverityCritical,
		Message:  "build failed",
		Project:  "api",
		BuildID:  "42",
		Status:   models.AlertActive,
		FiredAt:  firedAt,
	}
	if err := repo.Create(context.Background(), alert); err != nil {
		t.Fatalf("seed alert: %v", err)
	}
}

func TestList(t *testing.T) {
	router, repo, _ := newTestHandler(t)
	now := time.Now().UTC().Truncate(time.Second)
	seedAlert(t, repo, "a1", now)
	seedAlert(t, repo, "a2", now.Add(time.Minute))

	req := httptest.NewRequest(http.MethodGet, "/alerts?status=active", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Data ListResponse `json:"data"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Data.Total != 2 || len(resp.Data.Items) != 2 {
		t.Errorf("total = %d items = %d, want 2", resp.Data.Total, len(resp.Data.Items))
	}
	// Newest first.
	if resp.Data.Items[0].ID != "a2" {
		t.Errorf("first item = %q, want a2", resp.Data.Items[0].ID)
	}
}

func TestList_InvalidStatus(t *testing.T) {
	router, _, _ := newTestHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/alerts?status=exploded", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestList_EmptyStoreReturnsEmptyList(t *testing.T) {
	router, _, _ := newTestHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/alerts", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	// items must be [], not null.
	if !bytes.Contains(rec.Body.Bytes(), []byte(`"items":[]`)) {
		t.Errorf("body = %s, want empty items array", rec.Body.String())
	}
}

func TestGetByID_NotFound(t *testing.T) {
	router, _, _ := newTestHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/alerts/missing", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestAcknowledge(t *testing.T) {
	router, repo, bus := newTestHandler(t)
	seedAlert(t, repo, "a1", time.Now().UTC())

	body := `{"by": "alice"}`
	req := httptest.NewRequest(http.MethodPost, "/alerts/a1/acknowledge", bytes.NewBufferString(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Data models.Alert `json:"data"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Data.Status != models.AlertAcknowledged {
		t.Errorf("status = %q, want acknowledged", resp.Data.Status)
	}
	if resp.Data.AcknowledgedBy != "alice" {
		t.Errorf("acknowledgedBy = %q", resp.Data.AcknowledgedBy)
	}

	if len(bus.topics) != 1 || bus.topics[0] != "alert.acknowledged" {
		t.Errorf("published = %v, want [alert.acknowledged]", bus.topics)
	}

	// Second acknowledge conflicts.
	req = httptest.NewRequest(http.MethodPost, "/alerts/a1/acknowledge", bytes.NewBufferString(body))
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusConflict {
		t.Errorf("second acknowledge status = %d, want 409", rec.Code)
	}
}

func TestAcknowledge_RequiresBy(t *testing.T) {
	router, repo, _ := newTestHandler(t)
	seedAlert(t, repo, "a1", time.Now().UTC())

	req := httptest.NewRequest(http.MethodPost, "/alerts/a1/acknowledge", bytes.NewBufferString(`{}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400 without by", rec.Code)
	}
}

func TestAcknowledge_NotFound(t *testing.T) {
	router, _, _ := newTestHandler(t)

	req := httptest.NewRequest(http.MethodPost, "/alerts/missing/acknowledge", bytes.NewBufferString(`{"by":"alice"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestResolve(t *testing.T) {
	router, repo, bus := newTestHandler(t)
	seedAlert(t, repo, "a1", time.Now().UTC())

	body := `{"by": "alice", "resolution": "flaky runner"}`
	req := httptest.NewRequest(http.MethodPost, "/alerts/a1/resolve", bytes.NewBufferString(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Data models.Alert `json:"data"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Data.Status != models.AlertResolved {
		t.Errorf("status = %q, want resolved", resp.Data.Status)
	}
	if resp.Data.Resolution != "flaky runner" {
		t.Errorf("resolution = %q", resp.Data.Resolution)
	}

	if len(bus.topics) != 1 || bus.topics[0] != "alert.resolved" {
		t.Errorf("published = %v, want [alert.resolved]", bus.topics)
	}

	// Resolved is final.
	req = httptest.NewRequest(http.MethodPost, "/alerts/a1/resolve", bytes.NewBufferString(body))
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusConflict {
		t.Errorf("second resolve status = %d, want 409", rec.Code)
	}
}

func TestResolve_AcknowledgedAlert(t *testing.T) {
	router, repo, _ := newTestHandler(t)
	seedAlert(t, repo, "a1", time.Now().UTC())
	if err := repo.Acknowledge(context.Background(), "a1", "alice", time.Now().UTC()); err != nil {
		t.Fatalf("acknowledge: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/alerts/a1/resolve", bytes.NewBufferString(`{"by":"bob"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, acknowledged alert must be resolvable", rec.Code)
	}
}
