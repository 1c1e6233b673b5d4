package notification

import (
	"context"
	"time"
)

// Storage handles notification persistence and retrieval.
type Storage interface {
	// Create stores a new notification.
	Create(ctx context.Context, notif Notification) error

	// Get retrieves a single notification by ID.
	Get(ctx context.Context, notifID string) (*Notification, error)

	// List returns notifications for a user.
	List(ctx context.Context, userAddress string, opts ListOptions) ([]Notification, error)

	// SetRead updates the read flag on the given notifications.
	SetRead(ctx context.Context, read bool, notifIDs ...string) error

	// SetArchived updates the archived flag on the given notifications.
	SetArchived(ctx context.Context, archived bool, notifIDs ...string) error

	// Delete removes notification(s).
	Delete(ctx context.Context, notifIDs ...string) error

	// CountUnread returns the unread count for a user.
	CountUnread(ctx context.Context, userAddress string) (int, error)
}

// ListOptions provides filtering and pagination options for listing notifications.
type ListOptions struct {
	Limit      int        // Maximum number of notifications to return (0 = no limit)
	Offset     int        // Number of notifications to skip for pagination
	OnlyUnread bool       // When true, only return unread notifications
	Archived   *bool      // If set, filter by archived flag
	Types      []Type     // If specified, only return notifications of these types
	PoolID     string     // If specified, only return notifications for this pool
	Since      *time.Time // If specified, only return notifications created after this time
	Until      *time.Time // If specified, only return notifications created before this time
}
