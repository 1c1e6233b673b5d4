package notification

import "errors"

var (
	// ErrNotFound is returned when a notification is not found.
	ErrNotFound = errors.New("notification not found")

	// ErrMissingID is returned when a notification without an ID is stored.
	ErrMissingID = errors.New("notification ID is required")

	// ErrMissingUserAddress is returned when a notification has no recipient.
	ErrMissingUserAddress = errors.New("user address is required")

	// ErrInvalidType is returned for unknown notification types.
	ErrInvalidType = errors.New("unknown notification type")
)
