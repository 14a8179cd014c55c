package alerting

import (
	"context"
	"testing"

	"github.com/good-yellow-bee/buildpulse/internal/models"
)

// fakeRuleRepo counts ListEnabled calls so cache behavior is observable.
type fakeRuleRepo struct {
	rules []*models.AlertRule
	calls int
}

func (f *fakeRuleRepo) Create(ctx context.Context, rule *models.AlertRule) error  { return nil }
func (f *fakeRuleRepo) GetByID(ctx context.Context, id string) (*models.AlertRule, error) {
	return nil, nil
}
func (f *fakeRuleRepo) GetByName(ctx context.Context, name string) (*models.AlertRule, error) {
	return nil, nil
}
func (f *fakeRuleRepo) Update(ctx context.Context, rule *models.AlertRule) error { return nil }
func (f *fakeRuleRepo) Delete(ctx context.Context, id string) error              { return nil }
func (f *fakeRuleRepo) List(ctx context.Context) ([]*models.AlertRule, error)    { return f.rules, nil }
func (f *fakeRuleRepo) SetEnabled(ctx context.Context, id string, enabled bool) error {
	return nil
}

func (f *fakeRuleRepo) ListEnabled(ctx context.Context) ([]*models.AlertRule, error) {
	f.calls++
	return f.rules, nil
}

func TestStoreRegistry_CachesUntilInvalidated(t *testing.T) {
	repo := &fakeRuleRepo{rules: []*models.AlertRule{{ID: "r1", Name: "a", Enabled: true}}}
	registry := NewStoreRegistry(repo)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		rules, err := registry.Enabled(ctx)
		if err != nil {
			t.Fatalf("enabled: %v", err)
		}
		if len(rules) != 1 {
			t.Fatalf("rules = %d, want 1", len(rules))
		}
	}
	if repo.calls != 1 {
		t.Errorf("store reads = %d, want 1 (cached)", repo.calls)
	}

	repo.rules = append(repo.rules, &models.AlertRule{ID: "r2", Name: "b", Enabled: true})
	registry.Invalidate()

	rules, err := registry.Enabled(ctx)
	if err != nil {
		t.Fatalf("enabled after invalidate: %v", err)
	}
	if len(rules) != 2 {
		t.Errorf("rules = %d, want 2 after reload", len(rules))
	}
	if repo.calls != 2 {
		t.Errorf("store reads = %d, want 2", repo.calls)
	}
}
