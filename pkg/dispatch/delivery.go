package dispatch

import (
	"time"

	"github.com/poolfi/notifier/pkg/notification"
)

// Status represents the delivery state.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusSent      Status = "SENT"
	StatusDelivered Status = "DELIVERED"
	StatusFailed    Status = "FAILED"
	StatusBounced   Status = "BOUNCED"
)

// allowedTransitions encodes the delivery state machine. Statuses absent as
// keys are terminal.
var allowedTransitions = map[Status][]Status{
	StatusPending: {StatusPending, StatusSent, StatusFailed},
	StatusSent:    {StatusDelivered, StatusBounced},
}

// Terminal reports whether no further transition is permitted out of s.
func (s Status) Terminal() bool {
	switch s {
	case StatusDelivered, StatusFailed, StatusBounced:
		return true
	}
	return false
}

// CanTransition reports whether the state machine permits moving to the
// target status. A PENDING->PENDING transition models a scheduled retry.
func (s Status) CanTransition(to Status) bool {
	for _, allowed := range allowedTransitions[s] {
		if allowed == to {
			return true
		}
	}
	return false
}

// Delivery tracks one send of one notification through one channel. It is
// never deleted; it only advances to a terminal status.
type Delivery struct {
	ID             string               `json:"id"`
	NotificationID string               `json:"notification_id"`
	Channel        notification.Channel `json:"channel"`
	Status         Status               `json:"status"`
	RetryCount     int                  `json:"retry_count"`
	MaxRetries     int                  `json:"max_retries"`
	ProviderID     string               `json:"provider_id,omitempty"`
	ErrorMessage   string               `json:"error_message,omitempty"`
	NextAttemptAt  time.Time            `json:"next_attempt_at"`
	SentAt         *time.Time           `json:"sent_at,omitempty"`
	DeliveredAt    *time.Time           `json:"delivered_at,omitempty"`
	FailedAt       *time.Time           `json:"failed_at,omitempty"`
	CreatedAt      time.Time            `json:"created_at"`
	UpdatedAt      time.Time            `json:"updated_at"`
}
