package digest

import "errors"

var (
	// ErrStoreNil is returned when a nil buffer store is provided to a constructor.
	ErrStoreNil = errors.New("buffer store cannot be nil")

	// ErrEnqueuerNil is returned when a nil dispatcher is provided.
	ErrEnqueuerNil = errors.New("enqueuer cannot be nil")

	// ErrMissingNotificationID is returned when buffering without a notification.
	ErrMissingNotificationID = errors.New("notification ID is required")

	// ErrSchedulerStopped is returned when operating a scheduler that is not running.
	ErrSchedulerStopped = errors.New("digest scheduler is not running")
)
