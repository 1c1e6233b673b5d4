package dispatch

import "errors"

var (
	// ErrChannelUnavailable marks a transient sender failure. The delivery
	// stays PENDING and is retried with backoff.
	ErrChannelUnavailable = errors.New("channel temporarily unavailable")

	// ErrChannelRejected marks a permanent sender failure, e.g. an invalid
	// destination. The delivery fails immediately without retries.
	ErrChannelRejected = errors.New("channel rejected the delivery")

	// ErrStorageNil is returned when a nil storage is provided to a constructor.
	ErrStorageNil = errors.New("storage cannot be nil")

	// ErrRecorderNil is returned when a nil event recorder is provided.
	ErrRecorderNil = errors.New("event recorder cannot be nil")

	// ErrNotFound is returned when a delivery is not found.
	ErrNotFound = errors.New("delivery not found")

	// ErrTerminalState is returned when attempting to act on a delivery that
	// already reached DELIVERED, FAILED or BOUNCED.
	ErrTerminalState = errors.New("delivery is in a terminal state")

	// ErrInvalidTransition is returned when a status update violates the
	// delivery state machine.
	ErrInvalidTransition = errors.New("invalid delivery status transition")

	// ErrRetryLimit is returned when a delivery's retry count would exceed
	// its maximum.
	ErrRetryLimit = errors.New("retry count exceeds max retries")

	// ErrAttemptInFlight is returned when a send attempt is already running
	// for the same (notification, channel) pair.
	ErrAttemptInFlight = errors.New("send attempt already in flight")

	// ErrDuplicateDelivery is returned when enqueueing a (notification,
	// channel) pair that already has an active delivery.
	ErrDuplicateDelivery = errors.New("active delivery already exists for this notification and channel")

	// ErrNoSenderForChannel is returned when no sender is registered for the
	// delivery's channel.
	ErrNoSenderForChannel = errors.New("no sender registered for channel")

	// ErrDispatcherStopped is returned when submitting work to a dispatcher
	// that is not running.
	ErrDispatcherStopped = errors.New("dispatcher is not running")
)
