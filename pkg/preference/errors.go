package preference

import "errors"

var (
	// ErrNotFound is returned when no preferences record exists for a user.
	ErrNotFound = errors.New("preferences not found")

	// ErrConfigInvalid is returned when stored preference data is malformed,
	// e.g. an unparseable digest time. Callers recover with safe defaults;
	// it must never cause a notification to be dropped.
	ErrConfigInvalid = errors.New("invalid preference configuration")

	// ErrMissingUserAddress is returned when saving preferences without a user.
	ErrMissingUserAddress = errors.New("user address is required")
)
