package grouping_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poolfi/notifier/pkg/grouping"
	"github.com/poolfi/notifier/pkg/notification"
)

type groupFixture struct {
	engine *grouping.Engine
	groups *grouping.MemoryStorage
	notifs *notification.MemoryStorage
}

func newGroupFixture(t *testing.T) *groupFixture {
	t.Helper()

	groups := grouping.NewMemoryStorage()
	notifs := notification.NewMemoryStorage()
	engine, err := grouping.NewEngine(groups, notifs)
	require.NoError(t, err)

	return &groupFixture{engine: engine, groups: groups, notifs: notifs}
}

func (f *groupFixture) add(t *testing.T, id string, typ notification.Type, poolID string, at time.Time) notification.Notification {
	t.Helper()
	n := notification.Notification{
		ID:          id,
		Type:        typ,
		UserAddress: "0xabc",
		PoolID:      poolID,
		Title:       "title " + id,
		CreatedAt:   at,
	}
	require.NoError(t, f.notifs.Create(context.Background(), n))
	_, err := f.engine.Index(context.Background(), n)
	require.NoError(t, err)
	return n
}

func TestKey(t *testing.T) {
	assert.Equal(t, "MEMBER_JOINED|pool-7", grouping.Key(notification.TypeMemberJoined, "pool-7"))
	assert.Equal(t, "SYSTEM_ANNOUNCEMENT", grouping.Key(notification.TypeSystemAnnouncement, ""))
}

func TestEngine_Index(t *testing.T) {
	base := time.Date(2026, time.September, 1, 10, 0, 0, 0, time.UTC)

	t.Run("same type and pool share a group", func(t *testing.T) {
		f := newGroupFixture(t)
		ctx := context.Background()

		f.add(t, "n1", notification.TypeMemberJoined, "pool-7", base)
		f.add(t, "n2", notification.TypeMemberJoined, "pool-7", base.Add(time.Minute))

		g, err := f.groups.GetByKey(ctx, "0xabc", "MEMBER_JOINED|pool-7")
		require.NoError(t, err)
		assert.Equal(t, 2, g.Count)
		assert.Equal(t, "n2", g.Latest.ID)
		assert.Equal(t, base, g.FirstDate)
		assert.Equal(t, base.Add(time.Minute), g.LastDate)
		assert.False(t, g.IsRead)
		assert.False(t, g.IsArchived)
	})

	t.Run("different pools split groups", func(t *testing.T) {
		f := newGroupFixture(t)
		ctx := context.Background()

		f.add(t, "n1", notification.TypeMemberJoined, "pool-7", base)
		f.add(t, "n2", notification.TypeMemberJoined, "pool-8", base)

		groups, err := f.engine.Groups(ctx, "0xabc", grouping.ListOptions{})
		require.NoError(t, err)
		assert.Len(t, groups, 2)
	})

	t.Run("reindexing the same notification does not double count", func(t *testing.T) {
		f := newGroupFixture(t)
		ctx := context.Background()

		n := f.add(t, "n1", notification.TypeMemberJoined, "pool-7", base)
		_, err := f.engine.Index(ctx, n)
		require.NoError(t, err)

		g, err := f.groups.GetByKey(ctx, "0xabc", "MEMBER_JOINED|pool-7")
		require.NoError(t, err)
		assert.Equal(t, 1, g.Count)
	})
}

func TestEngine_ReadAggregate(t *testing.T) {
	base := time.Date(2026, time.September, 1, 10, 0, 0, 0, time.UTC)
	ctx := context.Background()

	t.Run("group read only when every member is read", func(t *testing.T) {
		f := newGroupFixture(t)

		f.add(t, "n1", notification.TypeMemberJoined, "pool-7", base)
		f.add(t, "n2", notification.TypeMemberJoined, "pool-7", base.Add(time.Minute))

		require.NoError(t, f.notifs.SetRead(ctx, true, "n1"))
		g, err := f.engine.OnReadChange(ctx, "n1")
		require.NoError(t, err)
		assert.False(t, g.IsRead, "one unread member keeps the group unread")

		require.NoError(t, f.notifs.SetRead(ctx, true, "n2"))
		g, err = f.engine.OnReadChange(ctx, "n2")
		require.NoError(t, err)
		assert.True(t, g.IsRead)
	})

	t.Run("unreading one member flips the group back", func(t *testing.T) {
		f := newGroupFixture(t)

		f.add(t, "n1", notification.TypeMemberJoined, "pool-7", base)
		require.NoError(t, f.notifs.SetRead(ctx, true, "n1"))
		g, err := f.engine.OnReadChange(ctx, "n1")
		require.NoError(t, err)
		require.True(t, g.IsRead)

		require.NoError(t, f.notifs.SetRead(ctx, false, "n1"))
		g, err = f.engine.OnReadChange(ctx, "n1")
		require.NoError(t, err)
		assert.False(t, g.IsRead)
	})

	t.Run("archive aggregate follows the same rule", func(t *testing.T) {
		f := newGroupFixture(t)

		f.add(t, "n1", notification.TypeMemberJoined, "pool-7", base)
		f.add(t, "n2", notification.TypeMemberJoined, "pool-7", base.Add(time.Minute))

		require.NoError(t, f.notifs.SetArchived(ctx, true, "n1", "n2"))
		g, err := f.engine.OnArchiveChange(ctx, "n1")
		require.NoError(t, err)
		assert.True(t, g.IsArchived)
	})
}

func TestEngine_OnDelete(t *testing.T) {
	base := time.Date(2026, time.September, 1, 10, 0, 0, 0, time.UTC)
	ctx := context.Background()

	t.Run("removes member and recomputes", func(t *testing.T) {
		f := newGroupFixture(t)

		f.add(t, "n1", notification.TypeMemberJoined, "pool-7", base)
		n2 := f.add(t, "n2", notification.TypeMemberJoined, "pool-7", base.Add(time.Minute))

		require.NoError(t, f.notifs.Delete(ctx, "n2"))
		require.NoError(t, f.engine.OnDelete(ctx, n2))

		g, err := f.groups.GetByKey(ctx, "0xabc", "MEMBER_JOINED|pool-7")
		require.NoError(t, err)
		assert.Equal(t, 1, g.Count)
		assert.Equal(t, "n1", g.Latest.ID, "removing the newest member demotes Latest")
		assert.Equal(t, base, g.LastDate)
		assert.Equal(t, base, g.FirstDate)
	})

	t.Run("deleting the last member removes the group", func(t *testing.T) {
		f := newGroupFixture(t)

		n := f.add(t, "n1", notification.TypeMemberJoined, "pool-7", base)
		require.NoError(t, f.notifs.Delete(ctx, "n1"))
		require.NoError(t, f.engine.OnDelete(ctx, n))

		_, err := f.groups.GetByKey(ctx, "0xabc", "MEMBER_JOINED|pool-7")
		assert.ErrorIs(t, err, grouping.ErrNotFound)
	})

	t.Run("delete on unknown group is a no-op", func(t *testing.T) {
		f := newGroupFixture(t)

		err := f.engine.OnDelete(ctx, notification.Notification{
			ID:          "ghost",
			Type:        notification.TypeMemberJoined,
			UserAddress: "0xabc",
		})
		assert.NoError(t, err)
	})
}

func TestEngine_Groups(t *testing.T) {
	base := time.Date(2026, time.September, 1, 10, 0, 0, 0, time.UTC)
	ctx := context.Background()
	f := newGroupFixture(t)

	f.add(t, "n1", notification.TypeMemberJoined, "pool-7", base)
	f.add(t, "n2", notification.TypePaymentReminder, "pool-7", base.Add(time.Minute))
	f.add(t, "n3", notification.TypeSystemAnnouncement, "", base.Add(2*time.Minute))

	require.NoError(t, f.notifs.SetRead(ctx, true, "n3"))
	_, err := f.engine.OnReadChange(ctx, "n3")
	require.NoError(t, err)

	t.Run("newest activity first", func(t *testing.T) {
		groups, err := f.engine.Groups(ctx, "0xabc", grouping.ListOptions{})
		require.NoError(t, err)
		require.Len(t, groups, 3)
		assert.Equal(t, "SYSTEM_ANNOUNCEMENT", groups[0].Key)
	})

	t.Run("unread filter", func(t *testing.T) {
		groups, err := f.engine.Groups(ctx, "0xabc", grouping.ListOptions{Unread: true})
		require.NoError(t, err)
		assert.Len(t, groups, 2)
	})

	t.Run("pagination", func(t *testing.T) {
		groups, err := f.engine.Groups(ctx, "0xabc", grouping.ListOptions{Limit: 1, Offset: 1})
		require.NoError(t, err)
		require.Len(t, groups, 1)
		assert.Equal(t, "PAYMENT_REMINDER|pool-7", groups[0].Key)
	})
}
