package dispatch

import (
	"context"
	"time"

	"github.com/poolfi/notifier/pkg/notification"
)

// Storage persists deliveries. Implementations must enforce the delivery
// state machine on Update: transitions out of a terminal status are rejected
// with ErrTerminalState and a retry count above the maximum with
// ErrRetryLimit.
type Storage interface {
	// Create stores a new delivery.
	Create(ctx context.Context, d Delivery) error

	// Get retrieves a delivery by ID.
	Get(ctx context.Context, deliveryID string) (*Delivery, error)

	// Update replaces a delivery after validating the status transition.
	Update(ctx context.Context, d Delivery) error

	// FindByProviderID looks a delivery up by the provider's message ID,
	// used to correlate inbound provider confirmations.
	FindByProviderID(ctx context.Context, providerID string) (*Delivery, error)

	// ListByNotification returns all deliveries for a notification.
	ListByNotification(ctx context.Context, notificationID string) ([]Delivery, error)

	// HasActive reports whether a non-terminal delivery exists for the
	// (notification, channel) pair.
	HasActive(ctx context.Context, notificationID string, ch notification.Channel) (bool, error)

	// DueForAttempt returns up to limit PENDING deliveries whose next
	// attempt time has passed, oldest first.
	DueForAttempt(ctx context.Context, now time.Time, limit int) ([]Delivery, error)
}
