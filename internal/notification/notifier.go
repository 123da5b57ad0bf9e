// Package notification delivers trading alerts to external channels
// (Telegram, webhooks) as they are raised by the alert manager.
package notification

import (
	"context"
	"log"

	"tickflow/internal/alert"
)

// Notifier is the interface for all notification backends.
type Notifier interface {
	// Send delivers an alert. Returns error if delivery fails.
	Send(ctx context.Context, a alert.Alert) error
}

// LogNotifier is a simple notifier that logs alerts (useful for development).
type LogNotifier struct{}

// NewLogNotifier creates a log-based notifier.
func NewLogNotifier() *LogNotifier {
	return &LogNotifier{}
}

func (n *LogNotifier) Send(ctx context.Context, a alert.Alert) error {
	log.Printf("[notify] [%s] %s %s @ %.5f (conf %.2f): %s",
		a.ID, a.Type, a.Direction, a.Price, a.Confidence, a.Description)
	return nil
}

// Dispatcher fans one alert out to every configured backend. Delivery
// failures are logged and do not stop the remaining backends.
type Dispatcher struct {
	backends []Notifier
}

// NewDispatcher creates a dispatcher over the given backends.
func NewDispatcher(backends ...Notifier) *Dispatcher {
	return &Dispatcher{backends: backends}
}

func (d *Dispatcher) Send(ctx context.Context, a alert.Alert) error {
	for _, b := range d.backends {
		if err := b.Send(ctx, a); err != nil {
			log.Printf("[notify] backend %T failed for alert %s: %v", b, a.ID, err)
		}
	}
	return nil
}
