package server

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/good-yellow-bee/buildpulse/internal/aggregator"
	"github.com/good-yellow-bee/buildpulse/internal/alerting"
	"github.com/good-yellow-bee/buildpulse/internal/events"
	"github.com/good-yellow-bee/buildpulse/internal/ingest"
	"github.com/good-yellow-bee/buildpulse/internal/models"
	"github.com/good-yellow-bee/buildpulse/internal/notifier"
	"github.com/good-yellow-bee/buildpulse/internal/storage"
)

func newTestStorage(t *testing.T) *storage.SQLiteStorage {
	t.Helper()

	store := storage.NewSQLiteStorage(filepath.Join(t.TempDir(), "test.db"))
	if err := store.Open(); err != nil {
		t.Fatalf("open storage: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	if err := store.Migrate(); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return store
}

func newTestPipeline(t *testing.T, store *storage.SQLiteStorage) (*Pipeline, *events.Broker, *alerting.Dispatcher) {
	t.Helper()

	broker := events.NewBroker()
	registry := alerting.NewStoreRegistry(store.Rules())
	agg := aggregator.New(store)
	eval := alerting.NewEvaluator(registry, store.Builds())
	disp := alerting.NewDispatcher(store.Alerts(), notifier.NewRegistry(), alerting.NewCooldownTracker(), broker)
	return NewPipeline(agg, eval, disp, broker, false), broker, disp
}

func TestPipeline_IngestRecordsAndBroadcasts(t *testing.T) {
	store := newTestStorage(t)
	pipeline, broker, disp := newTestPipeline(t, store)
	ctx := context.Background()

	ch, cancel := broker.Subscribe("")
	defer cancel()

	payload := `{"project": "api", "buildId": "42", "status": "success", "duration": 120}`
	build, err := pipeline.Ingest(ctx, "jenkins", []byte(payload))
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	disp.Drain()

	if build.Project != "api" || build.Status != models.StatusSuccess {
		t.Errorf("build = %+v", build)
	}

	stored, err := store.Builds().GetByKey(ctx, "api", "42")
	if err != nil {
		t.Fatalf("get build: %v", err)
	}
	if stored == nil {
		t.Fatal("build not persisted")
	}

	project, err := store.Projects().GetByName(ctx, "api")
	if err != nil {
		t.Fatalf("get project: %v", err)
	}
	if project == nil || project.LastStatus != models.StatusSuccess {
		t.Errorf("project snapshot = %+v", project)
	}

	select {
	case event := <-ch:
		if event.Topic != events.TopicBuildCompleted {
			t.Errorf("topic = %q, want build.completed", event.Topic)
		}
	case <-time.After(time.Second):
		t.Fatal("build.completed not published")
	}
}

func TestPipeline_IngestRejectsInvalidPayload(t *testing.T) {
	store := newTestStorage(t)
	pipeline, _, _ := newTestPipeline(t, store)

	_, err := pipeline.Ingest(context.Background(), "jenkins", []byte(`{"buildId": "42"}`))
	if err == nil {
		t.Fatal("expected validation error")
	}
	if !errors.Is(err, ingest.ErrValidation) {
		t.Errorf("error %v is not ErrValidation", err)
	}

	// Nothing written.
	builds, err := store.Builds().ListSince(context.Background(), "", time.Time{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(builds) != 0 {
		t.Errorf("builds = %d, want 0 after rejected payload", len(builds))
	}
}

func TestPipeline_IngestFiresMatchingRules(t *testing.T) {
	store := newTestStorage(t)
	pipeline, broker, disp := newTestPipeline(t, store)
	ctx := context.Background()

	rule := &models.AlertRule{
		ID:   "r1",
		Name: "main-failures",
		Condition: models.Condition{
			Type:         models.ConditionBuildFailure,
			BuildFailure: &models.BuildFailureCondition{Branches: []string{"main"}},
		},
		Severity:        models.SeverityCritical,
		CooldownMinutes: 15,
		Enabled:         true,
		CreatedAt:       time.Now(),
		UpdatedAt:       time.Now(),
	}
	if err := store.Rules().Create(ctx, rule); err != nil {
		t.Fatalf("create rule: %v", err)
	}

	ch, cancel := broker.Subscribe("")
	defer cancel()

	payload := `{"project": "api", "buildId": "7", "branch": "main", "status": "failure"}`
	if _, err := pipeline.Ingest(ctx, "jenkins", []byte(payload)); err != nil {
		t.Fatalf("ingest: %v", err)
	}
	disp.Drain()

	alerts, total, err := store.Alerts().List(ctx, models.AlertActive, "", 10, 0)
	if err != nil {
		t.Fatalf("list alerts: %v", err)
	}
	if total != 1 || len(alerts) != 1 {
		t.Fatalf("alerts = %d, want 1", total)
	}
	if alerts[0].RuleName != "main-failures" {
		t.Errorf("alert rule = %q", alerts[0].RuleName)
	}

	topics := map[string]bool{}
	for i := 0; i < 2; i++ {
		select {
		case event := <-ch:
			topics[event.Topic] = true
		case <-time.After(time.Second):
			t.Fatal("expected build.completed and alert.triggered")
		}
	}
	if !topics[events.TopicBuildCompleted] || !topics[events.TopicAlertTriggered] {
		t.Errorf("topics = %v", topics)
	}
}

// TestPipeline_SuccessfulBuildFiresNoAlert tests that a passing build on
// a failure rule produces no alert.
func TestPipeline_SuccessfulBuildFiresNoAlert(t *testing.T) {
	store := newTestStorage(t)
	pipeline, _, disp := newTestPipeline(t, store)
	ctx := context.Background()

	rule := &models.AlertRule{
		ID:        "r1",
		Name:      "failures",
		Condition: models.Condition{Type: models.ConditionBuildFailure},
		Severity:  models.SeverityWarning,
		Enabled:   true,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	if err := store.Rules().Create(ctx, rule); err != nil {
		t.Fatalf("create rule: %v", err)
	}

	payload := `{"project": "api", "buildId": "8", "status": "success"}`
	if _, err := pipeline.Ingest(ctx, "jenkins", []byte(payload)); err != nil {
		t.Fatalf("ingest: %v", err)
	}
	disp.Drain()

	count, err := store.Alerts().CountActive(ctx)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 0 {
		t.Errorf("active alerts = %d, want 0", count)
	}
}
