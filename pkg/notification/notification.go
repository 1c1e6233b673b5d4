package notification

import (
	"time"
)

// Notification is the core domain model. Everything except the Read and
// Archived flags is immutable after creation.
type Notification struct {
	ID          string         `json:"id"`
	Type        Type           `json:"type"`
	UserAddress string         `json:"user_address"`
	PoolID      string         `json:"pool_id,omitempty"`
	Title       string         `json:"title"`
	Message     string         `json:"message"`
	Payload     map[string]any `json:"payload,omitempty"`
	Read        bool           `json:"read"`
	ReadAt      *time.Time     `json:"read_at,omitempty"`
	Archived    bool           `json:"archived"`
	ArchivedAt  *time.Time     `json:"archived_at,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
}

// MarkAsRead marks the notification as read with the current timestamp.
func (n *Notification) MarkAsRead() {
	n.Read = true
	now := time.Now()
	n.ReadAt = &now
}

// MarkAsUnread clears the read flag and timestamp.
func (n *Notification) MarkAsUnread() {
	n.Read = false
	n.ReadAt = nil
}

// SetArchived updates the archived flag with the current timestamp.
func (n *Notification) SetArchived(archived bool) {
	n.Archived = archived
	if archived {
		now := time.Now()
		n.ArchivedAt = &now
	} else {
		n.ArchivedAt = nil
	}
}
