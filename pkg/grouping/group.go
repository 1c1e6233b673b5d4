package grouping

import (
	"time"

	"github.com/poolfi/notifier/pkg/notification"
)

// Group is a collapsed cluster of notifications sharing a derived key, used
// for aggregate read/archive display. It is a derived entity: every field is
// recomputed from the member set, never trusted incrementally.
type Group struct {
	ID          string                    `json:"id"`
	UserAddress string                    `json:"user_address"`
	Key         string                    `json:"key"`
	Count       int                       `json:"count"`
	MemberIDs   []string                  `json:"member_ids"` // ordered by notification time
	Latest      notification.Notification `json:"latest"`
	FirstDate   time.Time                 `json:"first_date"`
	LastDate    time.Time                 `json:"last_date"`
	IsRead      bool                      `json:"is_read"`
	IsArchived  bool                      `json:"is_archived"`
	UpdatedAt   time.Time                 `json:"updated_at"`
}

// Key derives the deterministic group key from a notification's type and
// pool. Notifications without a pool group purely by type.
func Key(t notification.Type, poolID string) string {
	if poolID == "" {
		return string(t)
	}
	return string(t) + "|" + poolID
}
