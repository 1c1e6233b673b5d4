package event

import (
	"time"
)

// Type identifies a notification lifecycle transition.
type Type string

const (
	TypeCreated   Type = "CREATED"
	TypeSent      Type = "SENT"
	TypeDelivered Type = "DELIVERED"
	TypeRead      Type = "READ"
	TypeClicked   Type = "CLICKED"
	TypeArchived  Type = "ARCHIVED"
	TypeDeleted   Type = "DELETED"
	TypeFailed    Type = "FAILED"
	TypeRetried   Type = "RETRIED"
	TypeBounced   Type = "BOUNCED"
	TypeExpired   Type = "EXPIRED"
)

// Valid reports whether t is a known event type.
func (t Type) Valid() bool {
	switch t {
	case TypeCreated, TypeSent, TypeDelivered, TypeRead, TypeClicked,
		TypeArchived, TypeDeleted, TypeFailed, TypeRetried, TypeBounced, TypeExpired:
		return true
	}
	return false
}

// Event is one row of the append-only audit trail. Events are never mutated
// or deleted. Seq orders events within a single notification; it carries no
// meaning across notifications.
type Event struct {
	ID             string         `json:"id"`
	NotificationID string         `json:"notification_id"`
	Seq            int64          `json:"seq"`
	Type           Type           `json:"type"`
	UserAddress    string         `json:"user_address"`
	Metadata       map[string]any `json:"metadata,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
}

// Validate checks the minimal fields required before an event is appended.
func (e Event) Validate() error {
	if e.NotificationID == "" {
		return ErrMissingNotificationID
	}
	if !e.Type.Valid() {
		return ErrInvalidEventType
	}
	return nil
}

// Criteria filters event queries.
type Criteria struct {
	NotificationID string
	UserAddress    string
	Types          []Type
	Since          *time.Time
	Until          *time.Time
	Limit          int
	Offset         int
}
