package alerting

import (
	"context"
	"sync"

	"github.com/good-yellow-bee/buildpulse/internal/models"
	"github.com/good-yellow-bee/buildpulse/internal/storage"
)

// RuleRegistry provides the evaluator's view of the enabled rules.
// Implementations cache; Invalidate forces a reload on next read.
type RuleRegistry interface {
	Enabled(ctx context.Context) ([]*models.AlertRule, error)
	Invalidate()
}

// StoreRegistry caches the enabled rules from the rule repository.
// Invalidation is explicit, driven by rule mutations, never time-based.
type StoreRegistry struct {
	mu    sync.RWMutex
	rules storage.RuleRepository

	cached []*models.AlertRule
	valid  bool
}

// NewStoreRegistry creates a registry backed by the given repository.
func NewStoreRegistry(rules storage.RuleRepository) *StoreRegistry {
	return &StoreRegistry{rules: rules}
}

// Enabled returns the cached enabled rules, reloading from the store
// after an invalidation.
func (r *StoreRegistry) Enabled(ctx context.Context) ([]*models.AlertRule, error) {
	r.mu.RLock()
	if r.valid {
		cached := r.cached
		r.mu.RUnlock()
		return cached, nil
	}
	r.mu.RUnlock()

	rules, err := r.rules.ListEnabled(ctx)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	r.cached = rules
	r.valid = true
	r.mu.Unlock()

	return rules, nil
}

// Invalidate marks the cache stale. The next Enabled call reloads.
func (r *StoreRegistry) Invalidate() {
	r.mu.Lock()
	r.valid = false
	r.cached = nil
	r.mu.Unlock()
}
