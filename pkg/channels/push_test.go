package channels_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poolfi/notifier/pkg/channels"
	"github.com/poolfi/notifier/pkg/dispatch"
	"github.com/poolfi/notifier/pkg/notification"
	"github.com/poolfi/notifier/pkg/preference"
)

type fakePushProvider struct {
	tokens []string
	data   map[string]any
	err    error
}

func (p *fakePushProvider) Push(ctx context.Context, tokens []string, title, message string, data map[string]any) (string, error) {
	p.tokens = tokens
	p.data = data
	if p.err != nil {
		return "", p.err
	}
	return "batch-1", nil
}

func pushPrefs(t *testing.T, tokens ...string) preference.Storage {
	t.Helper()
	store := preference.NewMemoryStorage()
	prefs := preference.Default("0xabc")
	prefs.Push.DeviceTokens = tokens
	require.NoError(t, store.Save(context.Background(), prefs))
	return store
}

func TestPushSender(t *testing.T) {
	ctx := context.Background()
	notif := notification.Notification{
		ID:          "n1",
		Type:        notification.TypePaymentReminder,
		UserAddress: "0xabc",
		PoolID:      "pool-7",
		Title:       "Payment due",
		Message:     "Your contribution is due tomorrow",
	}

	t.Run("fans out to all device tokens", func(t *testing.T) {
		provider := &fakePushProvider{}
		sender, err := channels.NewPushSender(provider, pushPrefs(t, "tok-1", "tok-2"))
		require.NoError(t, err)
		assert.Equal(t, notification.ChannelPush, sender.Channel())

		providerID, err := sender.Send(ctx, notif)
		require.NoError(t, err)
		assert.Equal(t, "batch-1", providerID)
		assert.Equal(t, []string{"tok-1", "tok-2"}, provider.tokens)
		assert.Equal(t, "n1", provider.data["notification_id"])
		assert.Equal(t, "pool-7", provider.data["pool_id"])
	})

	t.Run("no device tokens is a permanent failure", func(t *testing.T) {
		sender, err := channels.NewPushSender(&fakePushProvider{}, pushPrefs(t))
		require.NoError(t, err)

		_, err = sender.Send(ctx, notif)
		assert.ErrorIs(t, err, dispatch.ErrChannelRejected)
		assert.ErrorIs(t, err, channels.ErrMissingRecipient)
	})

	t.Run("missing preferences is a permanent failure", func(t *testing.T) {
		sender, err := channels.NewPushSender(&fakePushProvider{}, preference.NewMemoryStorage())
		require.NoError(t, err)

		_, err = sender.Send(ctx, notif)
		assert.ErrorIs(t, err, dispatch.ErrChannelRejected)
	})

	t.Run("provider failure is transient", func(t *testing.T) {
		provider := &fakePushProvider{err: errors.New("gateway timeout")}
		sender, err := channels.NewPushSender(provider, pushPrefs(t, "tok-1"))
		require.NoError(t, err)

		_, err = sender.Send(ctx, notif)
		assert.ErrorIs(t, err, dispatch.ErrChannelUnavailable)
	})

	t.Run("nil dependencies rejected", func(t *testing.T) {
		_, err := channels.NewPushSender(nil, preference.NewMemoryStorage())
		assert.Error(t, err)

		_, err = channels.NewPushSender(&fakePushProvider{}, nil)
		assert.ErrorIs(t, err, channels.ErrStorageNil)
	})
}

func TestLogPushProvider(t *testing.T) {
	p := channels.NewLogPushProvider(nil)

	id, err := p.Push(context.Background(), []string{"tok-1"}, "title", "message", nil)
	require.NoError(t, err)
	assert.NotEmpty(t, id)
}
