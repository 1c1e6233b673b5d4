package dispatch_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poolfi/notifier/pkg/dispatch"
	"github.com/poolfi/notifier/pkg/notification"
)

func TestStatus_Terminal(t *testing.T) {
	assert.False(t, dispatch.StatusPending.Terminal())
	assert.False(t, dispatch.StatusSent.Terminal())
	assert.True(t, dispatch.StatusDelivered.Terminal())
	assert.True(t, dispatch.StatusFailed.Terminal())
	assert.True(t, dispatch.StatusBounced.Terminal())
}

func TestStatus_CanTransition(t *testing.T) {
	cases := []struct {
		from, to dispatch.Status
		ok       bool
	}{
		{dispatch.StatusPending, dispatch.StatusPending, true},
		{dispatch.StatusPending, dispatch.StatusSent, true},
		{dispatch.StatusPending, dispatch.StatusFailed, true},
		{dispatch.StatusPending, dispatch.StatusDelivered, false},
		{dispatch.StatusPending, dispatch.StatusBounced, false},
		{dispatch.StatusSent, dispatch.StatusDelivered, true},
		{dispatch.StatusSent, dispatch.StatusBounced, true},
		{dispatch.StatusSent, dispatch.StatusPending, false},
		{dispatch.StatusSent, dispatch.StatusFailed, false},
		{dispatch.StatusDelivered, dispatch.StatusSent, false},
		{dispatch.StatusFailed, dispatch.StatusPending, false},
		{dispatch.StatusBounced, dispatch.StatusSent, false},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.ok, tc.from.CanTransition(tc.to), "%s -> %s", tc.from, tc.to)
	}
}

func TestMemoryStorage_Update(t *testing.T) {
	ctx := context.Background()

	seed := func(t *testing.T, status dispatch.Status) (*dispatch.MemoryStorage, dispatch.Delivery) {
		t.Helper()
		s := dispatch.NewMemoryStorage()
		d := dispatch.Delivery{
			ID:             "d1",
			NotificationID: "n1",
			Channel:        notification.ChannelEmail,
			Status:         status,
			MaxRetries:     3,
			NextAttemptAt:  time.Now(),
		}
		require.NoError(t, s.Create(ctx, d))
		return s, d
	}

	t.Run("valid transition", func(t *testing.T) {
		s, d := seed(t, dispatch.StatusPending)
		d.Status = dispatch.StatusSent
		assert.NoError(t, s.Update(ctx, d))
	})

	t.Run("invalid transition rejected", func(t *testing.T) {
		s, d := seed(t, dispatch.StatusPending)
		d.Status = dispatch.StatusDelivered
		assert.ErrorIs(t, s.Update(ctx, d), dispatch.ErrInvalidTransition)
	})

	t.Run("terminal state locked", func(t *testing.T) {
		s, d := seed(t, dispatch.StatusFailed)
		d.Status = dispatch.StatusPending
		assert.ErrorIs(t, s.Update(ctx, d), dispatch.ErrTerminalState)
	})

	t.Run("retry budget enforced", func(t *testing.T) {
		s, d := seed(t, dispatch.StatusPending)
		d.RetryCount = 4
		assert.ErrorIs(t, s.Update(ctx, d), dispatch.ErrRetryLimit)
	})

	t.Run("unknown delivery", func(t *testing.T) {
		s := dispatch.NewMemoryStorage()
		err := s.Update(ctx, dispatch.Delivery{ID: "missing"})
		assert.ErrorIs(t, err, dispatch.ErrNotFound)
	})
}

func TestMemoryStorage_DueForAttempt(t *testing.T) {
	ctx := context.Background()
	s := dispatch.NewMemoryStorage()
	now := time.Now()

	mk := func(id string, status dispatch.Status, next time.Time) {
		require.NoError(t, s.Create(ctx, dispatch.Delivery{
			ID:             id,
			NotificationID: "n-" + id,
			Channel:        notification.ChannelEmail,
			Status:         status,
			MaxRetries:     3,
			NextAttemptAt:  next,
		}))
	}

	mk("due-early", dispatch.StatusPending, now.Add(-2*time.Minute))
	mk("due-late", dispatch.StatusPending, now.Add(-time.Minute))
	mk("future", dispatch.StatusPending, now.Add(time.Hour))
	mk("sent", dispatch.StatusSent, now.Add(-time.Minute))

	due, err := s.DueForAttempt(ctx, now, 10)
	require.NoError(t, err)
	require.Len(t, due, 2)
	assert.Equal(t, "due-early", due[0].ID, "oldest first")
	assert.Equal(t, "due-late", due[1].ID)

	due, err = s.DueForAttempt(ctx, now, 1)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, "due-early", due[0].ID)
}
