package notifier

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/poolfi/notifier/pkg/dispatch"
	"github.com/poolfi/notifier/pkg/event"
	"github.com/poolfi/notifier/pkg/grouping"
	"github.com/poolfi/notifier/pkg/logger"
	"github.com/poolfi/notifier/pkg/notification"
)

// Notifications lists a user's notifications. When the user configured
// auto-mark-read, unread notifications older than the configured age are
// marked read as a side effect of the query, mirroring an inbox that
// ages items out of the unread state.
func (s *Service) Notifications(ctx context.Context, userAddress string, opts notification.ListOptions) ([]notification.Notification, error) {
	if err := s.autoMarkRead(ctx, userAddress); err != nil {
		s.logger.LogAttrs(ctx, slog.LevelWarn, "auto mark-read sweep failed",
			logger.UserAddress(userAddress),
			logger.Error(err),
		)
	}
	return s.notifs.List(ctx, userAddress, opts)
}

// autoMarkRead marks unread notifications older than the user's
// AutoMarkReadAfter preference as read.
func (s *Service) autoMarkRead(ctx context.Context, userAddress string) error {
	prefs, err := s.Preferences(ctx, userAddress)
	if err != nil {
		return err
	}
	maxAge := prefs.InApp.AutoMarkReadAfter
	if maxAge <= 0 {
		return nil
	}

	cutoff := s.clock().Add(-maxAge)
	stale, err := s.notifs.List(ctx, userAddress, notification.ListOptions{
		OnlyUnread: true,
		Until:      &cutoff,
	})
	if err != nil {
		return err
	}
	if len(stale) == 0 {
		return nil
	}

	ids := make([]string, len(stale))
	for i, n := range stale {
		ids[i] = n.ID
	}
	return s.MarkRead(ctx, true, ids...)
}

// Notification returns a single notification by ID.
func (s *Service) Notification(ctx context.Context, notifID string) (*notification.Notification, error) {
	return s.notifs.Get(ctx, notifID)
}

// UnreadCount returns the user's unread notification count, e.g. for a
// badge.
func (s *Service) UnreadCount(ctx context.Context, userAddress string) (int, error) {
	return s.notifs.CountUnread(ctx, userAddress)
}

// Groups lists the user's notification groups for display.
func (s *Service) Groups(ctx context.Context, userAddress string, opts grouping.ListOptions) ([]grouping.Group, error) {
	return s.groups.Groups(ctx, userAddress, opts)
}

// Timeline returns the full per-notification event history in order.
func (s *Service) Timeline(ctx context.Context, notifID string) ([]event.Event, error) {
	return s.recorder.Timeline(ctx, notifID)
}

// Events returns lifecycle events matching the criteria.
func (s *Service) Events(ctx context.Context, c event.Criteria) ([]event.Event, error) {
	return s.recorder.Find(ctx, c)
}

// Metrics computes delivery statistics over the matching events.
func (s *Service) Metrics(ctx context.Context, c event.Criteria) (event.DeliveryMetrics, error) {
	return s.recorder.Metrics(ctx, c)
}

// Deliveries returns every delivery recorded for a notification.
func (s *Service) Deliveries(ctx context.Context, notifID string) ([]dispatch.Delivery, error) {
	return s.dispatcher.Deliveries(ctx, notifID)
}

// OverallStatus summarizes a notification's delivery outcome across channels.
type OverallStatus string

const (
	// StatusNone means no delivery was ever enqueued, e.g. everything was
	// suppressed or buffered for a digest.
	StatusNone OverallStatus = "none"
	// StatusPending means at least one delivery is still being attempted.
	StatusPending OverallStatus = "pending"
	// StatusSent means at least one channel accepted the notification and
	// none is still pending.
	StatusSent OverallStatus = "sent"
	// StatusDelivered means at least one channel confirmed receipt.
	StatusDelivered OverallStatus = "delivered"
	// StatusFailed means every enqueued delivery failed terminally. One
	// surviving channel keeps the notification out of this state.
	StatusFailed OverallStatus = "failed"
)

// Status computes the cross-channel outcome for a notification. The
// notification counts as failed only when every enqueued delivery reached
// a terminal failure.
func (s *Service) Status(ctx context.Context, notifID string) (OverallStatus, error) {
	deliveries, err := s.dispatcher.Deliveries(ctx, notifID)
	if err != nil {
		return "", fmt.Errorf("list deliveries for notification %s: %w", notifID, err)
	}
	if len(deliveries) == 0 {
		return StatusNone, nil
	}

	var delivered, sent, pending bool
	for _, d := range deliveries {
		switch d.Status {
		case dispatch.StatusDelivered:
			delivered = true
		case dispatch.StatusSent:
			sent = true
		case dispatch.StatusPending:
			pending = true
		}
	}

	switch {
	case delivered:
		return StatusDelivered, nil
	case pending:
		return StatusPending, nil
	case sent:
		return StatusSent, nil
	default:
		return StatusFailed, nil
	}
}
