package channels_test

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poolfi/notifier/pkg/channels"
	"github.com/poolfi/notifier/pkg/notification"
	"github.com/poolfi/notifier/pkg/preference"
)

func validEmailConfig() channels.EmailConfig {
	return channels.EmailConfig{
		PostmarkServerToken:  "server-token",
		PostmarkAccountToken: "account-token",
		SenderEmail:          "noreply@poolfi.example",
		SupportEmail:         "support@poolfi.example",
	}
}

func TestNewEmailSender(t *testing.T) {
	prefs := preference.NewMemoryStorage()

	t.Run("valid config", func(t *testing.T) {
		s, err := channels.NewEmailSender(validEmailConfig(), prefs)
		require.NoError(t, err)
		assert.Equal(t, notification.ChannelEmail, s.Channel())
	})

	t.Run("nil preference storage", func(t *testing.T) {
		_, err := channels.NewEmailSender(validEmailConfig(), nil)
		assert.ErrorIs(t, err, channels.ErrStorageNil)
	})

	t.Run("config validation", func(t *testing.T) {
		cases := []func(*channels.EmailConfig){
			func(c *channels.EmailConfig) { c.PostmarkServerToken = "" },
			func(c *channels.EmailConfig) { c.PostmarkAccountToken = "" },
			func(c *channels.EmailConfig) { c.SenderEmail = "not-an-email" },
			func(c *channels.EmailConfig) { c.SupportEmail = "" },
		}
		for _, mutate := range cases {
			cfg := validEmailConfig()
			mutate(&cfg)
			_, err := channels.NewEmailSender(cfg, prefs)
			assert.ErrorIs(t, err, channels.ErrInvalidConfig)
		}
	})
}

func TestDevEmailSender(t *testing.T) {
	ctx := context.Background()

	notif := notification.Notification{
		ID:          "n1",
		Type:        notification.TypePaymentReminder,
		UserAddress: "0xabc",
		Title:       "Payment due",
		Message:     "Your contribution is due tomorrow",
		PoolID:      "pool-7",
	}

	t.Run("writes html and metadata files", func(t *testing.T) {
		dir := t.TempDir()
		sender := channels.NewDevEmailSender(dir)
		assert.Equal(t, notification.ChannelEmail, sender.Channel())

		providerID, err := sender.Send(ctx, notif)
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(providerID, "dev-"))

		entries, err := os.ReadDir(dir)
		require.NoError(t, err)
		require.Len(t, entries, 2)

		var htmlFile, jsonFile string
		for _, e := range entries {
			switch filepath.Ext(e.Name()) {
			case ".html":
				htmlFile = filepath.Join(dir, e.Name())
			case ".json":
				jsonFile = filepath.Join(dir, e.Name())
			}
		}
		require.NotEmpty(t, htmlFile)
		require.NotEmpty(t, jsonFile)

		html, err := os.ReadFile(htmlFile)
		require.NoError(t, err)
		assert.Contains(t, string(html), "Payment due")
		assert.Contains(t, string(html), "pool-7")

		raw, err := os.ReadFile(jsonFile)
		require.NoError(t, err)
		var meta map[string]any
		require.NoError(t, json.Unmarshal(raw, &meta))
		assert.Equal(t, "0xabc", meta["user_address"])
		assert.Equal(t, "PAYMENT_REMINDER", meta["type"])
		assert.Equal(t, providerID, meta["provider_id"])
	})

	t.Run("creates the directory", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "nested", "outbox")
		sender := channels.NewDevEmailSender(dir)

		_, err := sender.Send(ctx, notif)
		require.NoError(t, err)

		entries, err := os.ReadDir(dir)
		require.NoError(t, err)
		assert.Len(t, entries, 2)
	})
}
