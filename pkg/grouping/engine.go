package grouping

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/poolfi/notifier/pkg/logger"
	"github.com/poolfi/notifier/pkg/notification"
)

// Engine clusters notifications into display groups and keeps the aggregate
// read/archived flags consistent with the member set. Updates for the same
// group key are serialized with a per-key lock so concurrent member changes
// cannot overwrite each other with stale aggregates.
type Engine struct {
	groups Storage
	notifs notification.Storage
	logger *slog.Logger

	locks   map[string]*sync.Mutex
	locksMu sync.Mutex
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithEngineLogger sets the logger for the Engine.
func WithEngineLogger(l *slog.Logger) EngineOption {
	return func(e *Engine) {
		e.logger = l
	}
}

// NewEngine creates a grouping engine.
func NewEngine(groups Storage, notifs notification.Storage, opts ...EngineOption) (*Engine, error) {
	if groups == nil {
		return nil, ErrStorageNil
	}
	if notifs == nil {
		return nil, fmt.Errorf("%w: notification storage", ErrStorageNil)
	}

	e := &Engine{
		groups: groups,
		notifs: notifs,
		logger: slog.Default(),
		locks:  make(map[string]*sync.Mutex),
	}

	for _, opt := range opts {
		opt(e)
	}

	return e, nil
}

// Index places the notification into its group, creating the group if
// absent, and returns the updated group.
func (e *Engine) Index(ctx context.Context, notif notification.Notification) (*Group, error) {
	key := Key(notif.Type, notif.PoolID)

	unlock := e.lockKey(notif.UserAddress, key)
	defer unlock()

	g, err := e.groups.GetByKey(ctx, notif.UserAddress, key)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("load group %s: %w", key, err)
		}
		g = &Group{
			ID:          uuid.New().String(),
			UserAddress: notif.UserAddress,
			Key:         key,
			Latest:      notif,
			FirstDate:   notif.CreatedAt,
			LastDate:    notif.CreatedAt,
			IsRead:      true,
			IsArchived:  true,
		}
	}

	for _, id := range g.MemberIDs {
		if id == notif.ID {
			// Already indexed; recompute to pick up any flag change.
			return e.recomputeLocked(ctx, g)
		}
	}

	g.MemberIDs = append(g.MemberIDs, notif.ID)
	g.Count = len(g.MemberIDs)

	if notif.CreatedAt.After(g.Latest.CreatedAt) || g.Count == 1 {
		g.Latest = notif
	}
	if notif.CreatedAt.Before(g.FirstDate) || g.Count == 1 {
		g.FirstDate = notif.CreatedAt
	}
	if notif.CreatedAt.After(g.LastDate) || g.Count == 1 {
		g.LastDate = notif.CreatedAt
	}

	// Union-of-unread: one unread member makes the group unread regardless
	// of the prior aggregate.
	g.IsRead = g.IsRead && notif.Read
	g.IsArchived = g.IsArchived && notif.Archived
	g.UpdatedAt = time.Now()

	if err := e.groups.Save(ctx, *g); err != nil {
		return nil, fmt.Errorf("save group %s: %w", key, err)
	}

	e.logger.LogAttrs(ctx, slog.LevelDebug, "notification indexed into group",
		logger.NotificationID(notif.ID),
		logger.GroupKey(key),
		slog.Int("count", g.Count),
	)

	return g, nil
}

// OnReadChange recomputes the owning group's aggregate flags after a
// member's read flag changed.
func (e *Engine) OnReadChange(ctx context.Context, notificationID string) (*Group, error) {
	return e.recomputeFor(ctx, notificationID)
}

// OnArchiveChange recomputes the owning group's aggregate flags after a
// member's archived flag changed.
func (e *Engine) OnArchiveChange(ctx context.Context, notificationID string) (*Group, error) {
	return e.recomputeFor(ctx, notificationID)
}

// OnDelete removes a deleted notification from its group and recomputes.
// The group itself is deleted when its last member goes away.
func (e *Engine) OnDelete(ctx context.Context, notif notification.Notification) error {
	key := Key(notif.Type, notif.PoolID)

	unlock := e.lockKey(notif.UserAddress, key)
	defer unlock()

	g, err := e.groups.GetByKey(ctx, notif.UserAddress, key)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		return fmt.Errorf("load group %s: %w", key, err)
	}

	members := g.MemberIDs[:0]
	for _, id := range g.MemberIDs {
		if id != notif.ID {
			members = append(members, id)
		}
	}
	g.MemberIDs = members

	if len(g.MemberIDs) == 0 {
		if err := e.groups.Delete(ctx, g.ID); err != nil {
			return fmt.Errorf("delete empty group %s: %w", key, err)
		}
		return nil
	}

	_, err = e.recomputeLocked(ctx, g)
	return err
}

// Groups returns a user's groups for display.
func (e *Engine) Groups(ctx context.Context, userAddress string, opts ListOptions) ([]Group, error) {
	return e.groups.ListByUser(ctx, userAddress, opts)
}

// recomputeFor resolves the owning group from the notification and
// recomputes it under the key lock.
func (e *Engine) recomputeFor(ctx context.Context, notificationID string) (*Group, error) {
	notif, err := e.notifs.Get(ctx, notificationID)
	if err != nil {
		return nil, fmt.Errorf("load notification %s: %w", notificationID, err)
	}

	key := Key(notif.Type, notif.PoolID)

	unlock := e.lockKey(notif.UserAddress, key)
	defer unlock()

	g, err := e.groups.GetByKey(ctx, notif.UserAddress, key)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("load group %s: %w", key, err)
	}

	return e.recomputeLocked(ctx, g)
}

// recomputeLocked rebuilds the aggregate state from the current member set.
// Flags are the logical AND over all members rather than an optimistic flip,
// which is what keeps the aggregate from drifting.
func (e *Engine) recomputeLocked(ctx context.Context, g *Group) (*Group, error) {
	// Rebuilt from zero values so a removed newest or oldest member cannot
	// leave the aggregate pointing at a notification that is gone.
	isRead, isArchived := true, true
	var (
		members   []string
		latest    notification.Notification
		firstDate time.Time
		lastDate  time.Time
	)

	for _, id := range g.MemberIDs {
		notif, err := e.notifs.Get(ctx, id)
		if err != nil {
			if errors.Is(err, notification.ErrNotFound) {
				// Member deleted out-of-band; drop it from the group.
				continue
			}
			return nil, fmt.Errorf("load group member %s: %w", id, err)
		}

		members = append(members, id)
		isRead = isRead && notif.Read
		isArchived = isArchived && notif.Archived

		if latest.ID == "" || notif.CreatedAt.After(latest.CreatedAt) {
			latest = *notif
		}
		if firstDate.IsZero() || notif.CreatedAt.Before(firstDate) {
			firstDate = notif.CreatedAt
		}
		if lastDate.IsZero() || notif.CreatedAt.After(lastDate) {
			lastDate = notif.CreatedAt
		}
	}

	g.MemberIDs = members
	g.Count = len(members)
	g.IsRead = isRead
	g.IsArchived = isArchived
	if g.Count > 0 {
		g.Latest = latest
		g.FirstDate = firstDate
		g.LastDate = lastDate
	}
	g.UpdatedAt = time.Now()

	if g.Count == 0 {
		if err := e.groups.Delete(ctx, g.ID); err != nil {
			return nil, fmt.Errorf("delete empty group %s: %w", g.Key, err)
		}
		return nil, nil
	}

	if err := e.groups.Save(ctx, *g); err != nil {
		return nil, fmt.Errorf("save group %s: %w", g.Key, err)
	}
	return g, nil
}

// lockKey serializes updates per (user, key) pair.
func (e *Engine) lockKey(userAddress, key string) func() {
	compound := userAddress + "|" + key

	e.locksMu.Lock()
	mu, ok := e.locks[compound]
	if !ok {
		mu = &sync.Mutex{}
		e.locks[compound] = mu
	}
	e.locksMu.Unlock()

	mu.Lock()
	return mu.Unlock
}
