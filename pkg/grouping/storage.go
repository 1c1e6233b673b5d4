package grouping

import "context"

// Storage persists notification groups.
type Storage interface {
	// GetByKey retrieves a user's group by its derived key.
	// Returns ErrNotFound when no group exists yet.
	GetByKey(ctx context.Context, userAddress, key string) (*Group, error)

	// GetByID retrieves a group by ID.
	GetByID(ctx context.Context, groupID string) (*Group, error)

	// Save creates or replaces a group.
	Save(ctx context.Context, g Group) error

	// Delete removes a group. Used when its last member is deleted.
	Delete(ctx context.Context, groupID string) error

	// ListByUser returns a user's groups, most recently updated first.
	ListByUser(ctx context.Context, userAddress string, opts ListOptions) ([]Group, error)
}

// ListOptions provides filtering and pagination for group listings.
type ListOptions struct {
	Limit    int
	Offset   int
	Archived *bool // if set, filter by the aggregate archived flag
	Unread   bool  // when true, only groups with unread members
}
