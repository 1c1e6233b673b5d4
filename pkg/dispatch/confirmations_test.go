package dispatch_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poolfi/notifier/pkg/dispatch"
	"github.com/poolfi/notifier/pkg/event"
	"github.com/poolfi/notifier/pkg/notification"
)

// sentFixture enqueues and sends one email delivery, then starts the
// dispatcher so confirmations can be applied.
func sentFixture(t *testing.T) (*fixture, string) {
	t.Helper()
	ctx := context.Background()

	f := newFixture(t, dispatch.WithPullInterval(time.Hour))
	f.dispatcher.RegisterSender(&stubSender{channel: notification.ChannelEmail})

	id, err := f.dispatcher.Enqueue(ctx, f.notif, notification.ChannelEmail)
	require.NoError(t, err)
	require.NoError(t, f.dispatcher.AttemptSend(ctx, id))

	require.NoError(t, f.dispatcher.Start(ctx))
	t.Cleanup(func() { _ = f.dispatcher.Stop() })

	return f, id
}

func TestDispatcher_Confirmations(t *testing.T) {
	ctx := context.Background()

	t.Run("delivered confirmation by delivery ID", func(t *testing.T) {
		f, id := sentFixture(t)

		require.NoError(t, f.dispatcher.SubmitConfirmation(ctx, dispatch.Confirmation{
			DeliveryID: id,
			Kind:       dispatch.KindDelivered,
			OccurredAt: time.Now(),
		}))

		require.Eventually(t, func() bool {
			d, err := f.deliveries.Get(ctx, id)
			return err == nil && d.Status == dispatch.StatusDelivered
		}, 2*time.Second, 10*time.Millisecond)

		d, err := f.deliveries.Get(ctx, id)
		require.NoError(t, err)
		require.NotNil(t, d.DeliveredAt)

		assert.Equal(t, []event.Type{event.TypeSent, event.TypeDelivered}, eventTypes(t, f.recorder, "n1"))
	})

	t.Run("bounce confirmation by provider ID", func(t *testing.T) {
		f, id := sentFixture(t)

		require.NoError(t, f.dispatcher.SubmitConfirmation(ctx, dispatch.Confirmation{
			ProviderID: "prov-1",
			Kind:       dispatch.KindBounced,
			Reason:     "mailbox full",
			OccurredAt: time.Now(),
		}))

		require.Eventually(t, func() bool {
			d, err := f.deliveries.Get(ctx, id)
			return err == nil && d.Status == dispatch.StatusBounced
		}, 2*time.Second, 10*time.Millisecond)

		d, err := f.deliveries.Get(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, "mailbox full", d.ErrorMessage)

		assert.Equal(t, []event.Type{event.TypeSent, event.TypeBounced}, eventTypes(t, f.recorder, "n1"))
	})

	t.Run("late confirmation audited without status change", func(t *testing.T) {
		f, id := sentFixture(t)

		// First confirmation bounces the delivery.
		require.NoError(t, f.dispatcher.SubmitConfirmation(ctx, dispatch.Confirmation{
			DeliveryID: id,
			Kind:       dispatch.KindBounced,
			OccurredAt: time.Now(),
		}))
		require.Eventually(t, func() bool {
			d, err := f.deliveries.Get(ctx, id)
			return err == nil && d.Status == dispatch.StatusBounced
		}, 2*time.Second, 10*time.Millisecond)

		// A delivered confirmation arriving after the terminal state is
		// recorded but does not resurrect the delivery.
		require.NoError(t, f.dispatcher.SubmitConfirmation(ctx, dispatch.Confirmation{
			DeliveryID: id,
			Kind:       dispatch.KindDelivered,
			OccurredAt: time.Now(),
		}))

		require.Eventually(t, func() bool {
			return len(eventTypes(t, f.recorder, "n1")) == 3
		}, 2*time.Second, 10*time.Millisecond)

		d, err := f.deliveries.Get(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, dispatch.StatusBounced, d.Status)

		timeline, err := f.recorder.Timeline(ctx, "n1")
		require.NoError(t, err)
		last := timeline[len(timeline)-1]
		assert.Equal(t, event.TypeDelivered, last.Type)
		assert.Equal(t, true, last.Metadata["late"])
	})

	t.Run("queued confirmation survives stop", func(t *testing.T) {
		f, id := sentFixture(t)

		require.NoError(t, f.dispatcher.SubmitConfirmation(ctx, dispatch.Confirmation{
			DeliveryID: id,
			Kind:       dispatch.KindDelivered,
			OccurredAt: time.Now(),
		}))

		// Stop waits for the confirmation loop, which drains its inbox
		// before exiting. The event must be applied, not discarded.
		require.NoError(t, f.dispatcher.Stop())

		d, err := f.deliveries.Get(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, dispatch.StatusDelivered, d.Status)
		assert.Equal(t, []event.Type{event.TypeSent, event.TypeDelivered}, eventTypes(t, f.recorder, "n1"))
	})

	t.Run("rejected without any reference", func(t *testing.T) {
		f, _ := sentFixture(t)

		err := f.dispatcher.SubmitConfirmation(ctx, dispatch.Confirmation{Kind: dispatch.KindDelivered})
		assert.Error(t, err)
	})

	t.Run("rejected when stopped", func(t *testing.T) {
		f := newFixture(t)

		err := f.dispatcher.SubmitConfirmation(ctx, dispatch.Confirmation{
			DeliveryID: "d1",
			Kind:       dispatch.KindDelivered,
		})
		assert.ErrorIs(t, err, dispatch.ErrDispatcherStopped)
	})
}
