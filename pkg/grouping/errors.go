package grouping

import "errors"

var (
	// ErrStorageNil is returned when a nil storage is provided to a constructor.
	ErrStorageNil = errors.New("storage cannot be nil")

	// ErrNotFound is returned when a group is not found.
	ErrNotFound = errors.New("group not found")
)
