package event

import "context"

// Storage persists the append-only event log. There is deliberately no
// update or delete operation.
//
// Append assigns the per-notification sequence number: implementations must
// serialize appends for the same notification so Seq reflects the order
// transitions actually occurred, without requiring a global lock.
type Storage interface {
	// Append stores the event and returns it with Seq assigned.
	Append(ctx context.Context, e Event) (Event, error)

	// Timeline returns all events for one notification in Seq order.
	Timeline(ctx context.Context, notificationID string) ([]Event, error)

	// Query returns events matching the criteria, oldest first.
	Query(ctx context.Context, c Criteria) ([]Event, error)
}
