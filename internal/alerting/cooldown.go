package alerting

import (
	"sync"
	"time"
)

// CooldownTracker suppresses repeat firings of the same rule for the
// same project within the rule's cooldown window. The map is in-memory
// only: a restart clears cooldowns, which at minutes-scale windows is an
// acceptable trade for simplicity.
type CooldownTracker struct {
	mu        sync.Mutex
	lastFired map[cooldownKey]time.Time
}

type cooldownKey struct {
	ruleID  string
	project string
}

// NewCooldownTracker creates an empty tracker.
func NewCooldownTracker() *CooldownTracker {
	return &CooldownTracker{
		lastFired: make(map[cooldownKey]time.Time),
	}
}

// TryAcquire reports whether (rule, project) may fire at now, and if so
// records now as the last firing time. Acquisition happens on the
// dispatch attempt, not on delivery success, so a flapping notification
// channel cannot cause an alert storm. A zero window always acquires.
func (t *CooldownTracker) TryAcquire(ruleID, project string, window time.Duration, now time.Time) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	key := cooldownKey{ruleID: ruleID, project: project}
	if window > 0 {
		if last, ok := t.lastFired[key]; ok && now.Sub(last) < window {
			return false
		}
	}
	t.lastFired[key] = now
	return true
}

// Remaining returns how long until (rule, project) may fire again.
func (t *CooldownTracker) Remaining(ruleID, project string, window time.Duration, now time.Time) time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()

	last, ok := t.lastFired[cooldownKey{ruleID: ruleID, project: project}]
	if !ok {
		return 0
	}
	remaining := window - now.Sub(last)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Release removes the stamp for (rule, project). Called when a dispatch
// that acquired the window fails before the alert is persisted, so the
// failed firing does not suppress the retry.
func (t *CooldownTracker) Release(ruleID, project string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	delete(t.lastFired, cooldownKey{ruleID: ruleID, project: project})
}

// Clear removes all cooldown state for a rule, e.g. after deletion.
func (t *CooldownTracker) Clear(ruleID string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for key := range t.lastFired {
		if key.ruleID == ruleID {
			delete(t.lastFired, key)
		}
	}
}
