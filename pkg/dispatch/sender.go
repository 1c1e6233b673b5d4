package dispatch

import (
	"context"

	"github.com/poolfi/notifier/pkg/notification"
)

// Sender delivers one notification over one channel. Implementations wrap
// failures with ErrChannelUnavailable (transient, retried with backoff) or
// ErrChannelRejected (permanent, fails immediately); an unwrapped error is
// treated as transient.
type Sender interface {
	// Channel returns the delivery medium this sender serves.
	Channel() notification.Channel

	// Send performs one delivery attempt and returns the provider's message
	// identifier when the provider supplies one.
	Send(ctx context.Context, notif notification.Notification) (providerID string, err error)
}
