package digest

import (
	"context"
	"strings"
	"time"

	"github.com/poolfi/notifier/pkg/notification"
)

// BufferKey identifies one per-user, per-channel digest buffer.
type BufferKey struct {
	UserAddress string
	Channel     notification.Channel
}

// String encodes the key for storage backends.
func (k BufferKey) String() string {
	return k.UserAddress + "|" + string(k.Channel)
}

// ParseBufferKey decodes a stored buffer key.
func ParseBufferKey(s string) (BufferKey, bool) {
	user, channel, ok := strings.Cut(s, "|")
	if !ok || user == "" || channel == "" {
		return BufferKey{}, false
	}
	return BufferKey{UserAddress: user, Channel: notification.Channel(channel)}, true
}

// BufferStore persists pending digest buffers and flush idempotency markers.
//
// Concurrent Append calls for the same key must not lose updates, and Take
// must atomically read and clear so two concurrent flushes can never hand the
// same notification to two digests. Durable implementations (Redis) survive
// restarts, which is what makes missed-period recovery possible.
type BufferStore interface {
	// Append adds a notification to the pending buffer for the key. The
	// timestamp records when the item was buffered and decides which
	// flush period it belongs to.
	Append(ctx context.Context, key BufferKey, notificationID string, at time.Time) error

	// Take atomically returns and clears the notification IDs buffered at
	// or before the cutoff. Items buffered later stay in place for the
	// next period's flush.
	Take(ctx context.Context, key BufferKey, until time.Time) ([]string, error)

	// Pending lists every key that currently has buffered notifications.
	Pending(ctx context.Context) ([]BufferKey, error)

	// MarkFlushed claims the flush for the given period. It returns false
	// when the period was already claimed, guaranteeing exactly-once flushes
	// even when ticks repeat or the process restarts mid-period.
	MarkFlushed(ctx context.Context, key BufferKey, periodKey string) (bool, error)
}
