package event

import "errors"

var (
	// ErrStorageNil is returned when a nil storage is provided to a constructor.
	ErrStorageNil = errors.New("storage cannot be nil")

	// ErrMissingNotificationID is returned when appending an event without a
	// notification reference.
	ErrMissingNotificationID = errors.New("notification ID is required")

	// ErrInvalidEventType is returned for unknown event types.
	ErrInvalidEventType = errors.New("unknown event type")
)
