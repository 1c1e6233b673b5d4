package notifier

import "errors"

var (
	// ErrDependencyNil is returned when a required dependency is missing
	// from the service constructor.
	ErrDependencyNil = errors.New("notifier: dependency cannot be nil")

	// ErrMissingTitle is returned when a notification is created without a title.
	ErrMissingTitle = errors.New("notifier: title is required")

	// ErrNoIDs is returned when a bulk operation is called with no notification IDs.
	ErrNoIDs = errors.New("notifier: at least one notification ID is required")

	// ErrAlreadyStarted is returned when Start is called on a running service.
	ErrAlreadyStarted = errors.New("notifier: service already started")

	// ErrNotStarted is returned when Stop is called on a stopped service.
	ErrNotStarted = errors.New("notifier: service is not running")
)
