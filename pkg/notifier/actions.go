package notifier

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/poolfi/notifier/pkg/event"
	"github.com/poolfi/notifier/pkg/logger"
	"github.com/poolfi/notifier/pkg/notification"
)

// MarkRead flips the read flag on the given notifications, records a READ
// event per notification and recomputes the owning groups' aggregates.
func (s *Service) MarkRead(ctx context.Context, read bool, notifIDs ...string) error {
	if len(notifIDs) == 0 {
		return ErrNoIDs
	}

	if err := s.notifs.SetRead(ctx, read, notifIDs...); err != nil {
		return fmt.Errorf("set read flag: %w", err)
	}

	var errs []error
	for _, id := range notifIDs {
		if read {
			if _, err := s.recorder.Record(ctx, id, event.TypeRead, ""); err != nil {
				errs = append(errs, err)
			}
		}
		if _, err := s.groups.OnReadChange(ctx, id); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// MarkAllRead marks every unread notification of the user as read.
func (s *Service) MarkAllRead(ctx context.Context, userAddress string) (int, error) {
	unread, err := s.notifs.List(ctx, userAddress, notification.ListOptions{OnlyUnread: true})
	if err != nil {
		return 0, fmt.Errorf("list unread notifications: %w", err)
	}
	if len(unread) == 0 {
		return 0, nil
	}

	ids := make([]string, len(unread))
	for i, n := range unread {
		ids[i] = n.ID
	}

	if err := s.MarkRead(ctx, true, ids...); err != nil {
		return 0, err
	}
	return len(ids), nil
}

// MarkClicked records a click on the notification. Clicking implies reading.
func (s *Service) MarkClicked(ctx context.Context, notifID string) error {
	notif, err := s.notifs.Get(ctx, notifID)
	if err != nil {
		return err
	}

	if _, err := s.recorder.Record(ctx, notifID, event.TypeClicked, notif.UserAddress); err != nil {
		return err
	}

	if !notif.Read {
		return s.MarkRead(ctx, true, notifID)
	}
	return nil
}

// SetArchived flips the archived flag on the given notifications, records
// an ARCHIVED event on archive and recomputes the owning groups.
func (s *Service) SetArchived(ctx context.Context, archived bool, notifIDs ...string) error {
	if len(notifIDs) == 0 {
		return ErrNoIDs
	}

	if err := s.notifs.SetArchived(ctx, archived, notifIDs...); err != nil {
		return fmt.Errorf("set archived flag: %w", err)
	}

	var errs []error
	for _, id := range notifIDs {
		if archived {
			if _, err := s.recorder.Record(ctx, id, event.TypeArchived, ""); err != nil {
				errs = append(errs, err)
			}
		}
		if _, err := s.groups.OnArchiveChange(ctx, id); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Delete removes notifications, detaching each from its group first. The
// DELETED event outlives the notification in the audit trail.
func (s *Service) Delete(ctx context.Context, notifIDs ...string) error {
	if len(notifIDs) == 0 {
		return ErrNoIDs
	}

	var errs []error
	for _, id := range notifIDs {
		notif, err := s.notifs.Get(ctx, id)
		if err != nil {
			if errors.Is(err, notification.ErrNotFound) {
				continue
			}
			errs = append(errs, err)
			continue
		}

		if err := s.groups.OnDelete(ctx, *notif); err != nil {
			errs = append(errs, err)
		}

		if _, err := s.recorder.Record(ctx, id, event.TypeDeleted, notif.UserAddress); err != nil {
			errs = append(errs, err)
		}

		if err := s.notifs.Delete(ctx, id); err != nil {
			errs = append(errs, fmt.Errorf("delete notification %s: %w", id, err))
			continue
		}

		s.logger.LogAttrs(ctx, slog.LevelDebug, "notification deleted",
			logger.NotificationID(id),
			logger.UserAddress(notif.UserAddress),
		)
	}
	return errors.Join(errs...)
}
