package preference

import (
	"context"
	"errors"
)

// ErrStorageNil is returned when a nil storage is provided to a constructor.
var ErrStorageNil = errors.New("storage cannot be nil")

// Storage handles preference persistence. One record per user.
type Storage interface {
	// Get retrieves the preferences for a user.
	// Returns ErrNotFound if the user never saved any.
	Get(ctx context.Context, userAddress string) (*Preferences, error)

	// Save creates or replaces the preferences for a user.
	Save(ctx context.Context, prefs Preferences) error
}
