// Package events provides the in-process pub/sub bus that decouples the
// build pipeline from the real-time broadcast layer. The transport (SSE
// here) is swappable without touching aggregation or evaluation logic.
package events

import (
	"log"
	"sync"
	"time"

	"github.com/good-yellow-bee/buildpulse/internal/metrics"
)

// Topic names emitted by the core.
const (
	TopicBuildCompleted    = "build.completed"
	TopicAlertTriggered    = "alert.triggered"
	TopicAlertAcknowledged = "alert.acknowledged"
	TopicAlertResolved     = "alert.resolved"
)

// BuildCompleted is the payload for build.completed events.
type BuildCompleted struct {
	Project     string    `json:"project"`
	Status      string    `json:"status"`
	BuildNumber int64     `json:"buildNumber"`
	Branch      string    `json:"branch"`
	Duration    float64   `json:"duration"`
	Timestamp   time.Time `json:"timestamp"`
}

// AlertTriggered is the payload for alert.triggered events.
type AlertTriggered struct {
	ID        string    `json:"id"`
	RuleName  string    `json:"ruleName"`
	Severity  string    `json:"severity"`
	Project   string    `json:"project"`
	BuildID   string    `json:"buildId"`
	Timestamp time.Time `json:"timestamp"`
}

// AlertAcknowledged is the payload for alert.acknowledged events.
type AlertAcknowledged struct {
	ID string `json:"id"`
	By string `json:"by"`
}

// AlertResolved is the payload for alert.resolved events.
type AlertResolved struct {
	ID         string `json:"id"`
	By         string `json:"by"`
	Resolution string `json:"resolution,omitempty"`
}

// Event is one published message.
type Event struct {
	Topic     string    `json:"topic"`
	Project   string    `json:"project,omitempty"`
	Payload   any       `json:"payload"`
	Timestamp time.Time `json:"timestamp"`
}

// Bus is the publish side the core depends on.
type Bus interface {
	Publish(topic, project string, payload any)
}

// subscriber is one attached client channel with an optional project filter.
type subscriber struct {
	ch      chan Event
	project string // "" subscribes to every project
}

// Broker is an in-memory Bus fanning events out to subscribers.
// Delivery is best-effort: a slow subscriber's full buffer drops the
// event for that subscriber rather than blocking the publisher.
type Broker struct {
	mu     sync.RWMutex
	subs   map[int]*subscriber
	nextID int
}

// NewBroker creates an empty broker.
func NewBroker() *Broker {
	return &Broker{
		subs: make(map[int]*subscriber),
	}
}

// subscriberBuffer is per-client; dashboards consume far faster than
// builds complete, so a small buffer suffices.
const subscriberBuffer = 16

// Subscribe attaches a client, optionally scoped to one project.
// The returned cancel function detaches it and closes the channel.
func (b *Broker) Subscribe(project string) (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++
	sub := &subscriber{
		ch:      make(chan Event, subscriberBuffer),
		project: project,
	}
	b.subs[id] = sub

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if s, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(s.ch)
		}
	}
	return sub.ch, cancel
}

// Publish fans an event out to all matching subscribers.
func (b *Broker) Publish(topic, project string, payload any) {
	event := Event{
		Topic:     topic,
		Project:   project,
		Payload:   payload,
		Timestamp: time.Now(),
	}
	metrics.EventsPublishedTotal.WithLabelValues(topic).Inc()

	b.mu.RLock()
	defer b.mu.RUnlock()

	dropped := 0
	for _, sub := range b.subs {
		if sub.project != "" && sub.project != project {
			continue
		}
		select {
		case sub.ch <- event:
		default:
			dropped++
		}
	}
	if dropped > 0 {
		log.Printf("events: dropped %s for %d slow subscriber(s)", topic, dropped)
	}
}

// Subscribers returns the current subscriber count.
func (b *Broker) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
