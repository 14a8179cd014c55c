// Package notifier provides the notification transports alerts fan out to.
package notifier

import (
	"context"
	"fmt"
	"sync"

	"github.com/good-yellow-bee/buildpulse/internal/models"
)

// Notifier is the interface for one notification transport. Send
// delivers an alert to the destination described by the channel's
// configuration.
type Notifier interface {
	// Type returns the channel type this notifier serves.
	Type() models.ChannelType
	// Send delivers an alert notification.
	Send(ctx context.Context, channel models.Channel, alert *models.Alert) error
	// Close releases any resources.
	Close() error
}

// Registry routes channels to the notifier registered for their type.
type Registry struct {
	mu        sync.RWMutex
	notifiers map[models.ChannelType]Notifier
}

// NewRegistry creates an empty notifier registry.
func NewRegistry() *Registry {
	return &Registry{
		notifiers: make(map[models.ChannelType]Notifier),
	}
}

// Register adds a notifier, replacing any previous one of the same type.
func (r *Registry) Register(n Notifier) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notifiers[n.Type()] = n
}

// Get returns the notifier for a channel type.
func (r *Registry) Get(channelType models.ChannelType) (Notifier, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n, ok := r.notifiers[channelType]
	return n, ok
}

// Send routes one channel's delivery to its registered notifier.
func (r *Registry) Send(ctx context.Context, channel models.Channel, alert *models.Alert) error {
	n, ok := r.Get(channel.Type)
	if !ok {
		return fmt.Errorf("no notifier registered for channel type %q", channel.Type)
	}
	return n.Send(ctx, channel, alert)
}

// Close closes all registered notifiers.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var errs []error
	for name, n := range r.notifiers {
		if err := n.Close(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}
	r.notifiers = make(map[models.ChannelType]Notifier)

	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}

// truncate truncates a string to max length with ellipsis.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
