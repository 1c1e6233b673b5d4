package channels

import "errors"

var (
	// ErrInvalidConfig is returned when a sender is constructed with
	// incomplete or malformed configuration.
	ErrInvalidConfig = errors.New("channels: invalid config")

	// ErrMissingRecipient is returned when the user has no usable
	// destination for the channel, e.g. no email address on file or an
	// empty device token list.
	ErrMissingRecipient = errors.New("channels: no recipient for channel")

	// ErrStorageNil is returned when a nil dependency is provided to a
	// sender constructor.
	ErrStorageNil = errors.New("channels: storage cannot be nil")
)
