package event

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// EventOption enriches an event before it is appended.
type EventOption func(*Event)

// WithMetadata adds one metadata entry to the event.
func WithMetadata(key string, value any) EventOption {
	return func(e *Event) {
		if e.Metadata == nil {
			e.Metadata = make(map[string]any)
		}
		e.Metadata[key] = value
	}
}

// WithChannel records the delivery channel the event relates to.
func WithChannel(channel string) EventOption {
	return WithMetadata("channel", channel)
}

// WithDeliveryID records the delivery the event relates to.
func WithDeliveryID(deliveryID string) EventOption {
	return WithMetadata("delivery_id", deliveryID)
}

// WithError records the failure message that caused the event.
func WithError(err error) EventOption {
	return func(e *Event) {
		if err == nil {
			return
		}
		if e.Metadata == nil {
			e.Metadata = make(map[string]any)
		}
		e.Metadata["error"] = err.Error()
	}
}

// Recorder appends lifecycle events to the audit trail.
type Recorder struct {
	storage Storage
}

// NewRecorder creates an event recorder backed by the given storage.
func NewRecorder(storage Storage) (*Recorder, error) {
	if storage == nil {
		return nil, ErrStorageNil
	}
	return &Recorder{storage: storage}, nil
}

// Record appends one event and returns its ID. Failures to record are
// surfaced to the caller; the delivery subsystem treats a lost event as an
// error, never a silent drop.
func (r *Recorder) Record(ctx context.Context, notificationID string, t Type, userAddress string, opts ...EventOption) (string, error) {
	e := Event{
		ID:             uuid.New().String(),
		NotificationID: notificationID,
		Type:           t,
		UserAddress:    userAddress,
		CreatedAt:      time.Now(),
	}

	for _, opt := range opts {
		opt(&e)
	}

	if err := e.Validate(); err != nil {
		return "", err
	}

	stored, err := r.storage.Append(ctx, e)
	if err != nil {
		return "", fmt.Errorf("append %s event for notification %s: %w", t, notificationID, err)
	}
	return stored.ID, nil
}

// Timeline reconstructs the full per-notification event sequence.
func (r *Recorder) Timeline(ctx context.Context, notificationID string) ([]Event, error) {
	return r.storage.Timeline(ctx, notificationID)
}

// Find returns events matching the criteria.
func (r *Recorder) Find(ctx context.Context, c Criteria) ([]Event, error) {
	return r.storage.Query(ctx, c)
}
