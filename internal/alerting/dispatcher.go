package alerting

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/good-yellow-bee/buildpulse/internal/events"
	"github.com/good-yellow-bee/buildpulse/internal/metrics"
	"github.com/good-yellow-bee/buildpulse/internal/models"
	"github.com/good-yellow-bee/buildpulse/internal/notifier"
	"github.com/good-yellow-bee/buildpulse/internal/storage"
)

// sendTimeout bounds each channel delivery so one hung endpoint cannot
// stall the rest of the fan-out.
const sendTimeout = 10 * time.Second

// Dispatcher turns a matched rule into a persisted alert and fans the
// notification out to the rule's channels. Channel deliveries run on
// their own goroutine so webhook ingestion never waits on Slack or SMTP.
type Dispatcher struct {
	alerts    storage.AlertRepository
	notifiers *notifier.Registry
	cooldowns *CooldownTracker
	bus       events.Bus
	clock     func() time.Time
	wg        sync.WaitGroup
}

// NewDispatcher creates a dispatcher.
func NewDispatcher(alerts storage.AlertRepository, notifiers *notifier.Registry, cooldowns *CooldownTracker, bus events.Bus) *Dispatcher {
	return &Dispatcher{
		alerts:    alerts,
		notifiers: notifiers,
		cooldowns: cooldowns,
		bus:       bus,
		clock:     time.Now,
	}
}

// NewDispatcherWithClock creates a dispatcher with a fixed clock (useful for testing).
func NewDispatcherWithClock(alerts storage.AlertRepository, notifiers *notifier.Registry, cooldowns *CooldownTracker, bus events.Bus, clock func() time.Time) *Dispatcher {
	d := NewDispatcher(alerts, notifiers, cooldowns, bus)
	d.clock = clock
	return d
}

// Dispatch fires a rule for a build. It returns (nil, nil) when the
// rule is inside its cooldown window for the build's project.
func (d *Dispatcher) Dispatch(ctx context.Context, rule *models.AlertRule, build *models.Build) (*models.Alert, error) {
	now := d.clock()

	if !d.cooldowns.TryAcquire(rule.ID, build.Project, rule.Cooldown(), now) {
		metrics.AlertsSuppressedTotal.WithLabelValues(rule.Name).Inc()
		log.Printf("dispatcher: rule %q suppressed for project %q, cooldown remaining %s",
			rule.Name, build.Project, d.cooldowns.Remaining(rule.ID, build.Project, rule.Cooldown(), now).Round(time.Second))
		return nil, nil
	}

	alert := &models.Alert{
		ID:          uuid.New().String(),
		RuleID:      rule.ID,
		RuleName:    rule.Name,
		Severity:    rule.Severity,
		Message:     RenderMessage(rule.MessageTemplate, build),
		Project:     build.Project,
		BuildID:     build.BuildID,
		BuildNumber: build.Number,
		Status:      models.AlertActive,
		FiredAt:     now,
		Metadata:    models.BuildMetadata(build),
	}

	if err := d.alerts.Create(ctx, alert); err != nil {
		// The window was stamped on acquisition; a firing that never
		// produced an alert must not suppress the retry.
		d.cooldowns.Release(rule.ID, build.Project)
		return nil, fmt.Errorf("persist alert: %w", err)
	}
	metrics.AlertsFiredTotal.WithLabelValues(rule.Name, string(rule.Severity)).Inc()

	d.bus.Publish(events.TopicAlertTriggered, alert.Project, events.AlertTriggered{
		ID:        alert.ID,
		RuleName:  alert.RuleName,
		Severity:  string(alert.Severity),
		Project:   alert.Project,
		BuildID:   alert.BuildID,
		Timestamp: alert.FiredAt,
	})

	d.wg.Add(1)
	go d.fanOut(rule.Channels, alert)

	return alert, nil
}

// fanOut delivers the alert to every configured channel. Each delivery
// gets its own timeout and its failure is logged without affecting the
// others. Deliveries run off the request context so an already-answered
// webhook cannot cancel them.
func (d *Dispatcher) fanOut(channels []models.Channel, alert *models.Alert) {
	defer d.wg.Done()

	for _, channel := range channels {
		ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
		err := d.notifiers.Send(ctx, channel, alert)
		cancel()

		if err != nil {
			metrics.NotificationsSentTotal.WithLabelValues(string(channel.Type), "failure").Inc()
			log.Printf("dispatcher: alert %s: %s delivery failed: %v", alert.ID, channel.Type, err)
			continue
		}
		metrics.NotificationsSentTotal.WithLabelValues(string(channel.Type), "success").Inc()
	}
}

// Drain blocks until all in-flight channel deliveries finish. Called
// during shutdown after the HTTP server stops accepting requests.
func (d *Dispatcher) Drain() {
	d.wg.Wait()
}
