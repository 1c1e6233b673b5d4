package logger_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poolfi/notifier/pkg/logger"
)

func TestNew(t *testing.T) {
	t.Run("json output with static attributes", func(t *testing.T) {
		var buf bytes.Buffer
		log := logger.New(
			logger.WithOutput(&buf),
			logger.WithFormat(logger.FormatJSON),
			logger.WithAttr(slog.String("service", "notifier")),
		)

		log.Info("hello", slog.String("key", "value"))

		var record map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
		assert.Equal(t, "hello", record["msg"])
		assert.Equal(t, "value", record["key"])
		assert.Equal(t, "notifier", record["service"])
	})

	t.Run("text output", func(t *testing.T) {
		var buf bytes.Buffer
		log := logger.New(
			logger.WithOutput(&buf),
			logger.WithFormat(logger.FormatText),
		)

		log.Info("hello")
		assert.Contains(t, buf.String(), "msg=hello")
	})

	t.Run("level filters records", func(t *testing.T) {
		var buf bytes.Buffer
		log := logger.New(
			logger.WithOutput(&buf),
			logger.WithLevel(slog.LevelWarn),
		)

		log.Info("dropped")
		assert.Empty(t, buf.String())

		log.Warn("kept")
		assert.Contains(t, buf.String(), "kept")
	})

	t.Run("invalid format panics", func(t *testing.T) {
		assert.Panics(t, func() {
			logger.New(logger.WithFormat("yaml"))
		})
	})

	t.Run("development preset", func(t *testing.T) {
		var buf bytes.Buffer
		log := logger.New(
			logger.WithDevelopment("notifier"),
			logger.WithOutput(&buf),
		)

		log.Debug("verbose")
		assert.Contains(t, buf.String(), "env=development")
	})
}

func TestAttrHelpers(t *testing.T) {
	t.Run("nil error yields empty attr", func(t *testing.T) {
		assert.Equal(t, slog.Attr{}, logger.Error(nil))
	})

	t.Run("error attr", func(t *testing.T) {
		attr := logger.Error(errors.New("boom"))
		assert.Equal(t, "error", attr.Key)
	})

	t.Run("empty identifiers yield empty attrs", func(t *testing.T) {
		assert.Equal(t, slog.Attr{}, logger.UserAddress(""))
		assert.Equal(t, slog.Attr{}, logger.PoolID(""))
		assert.Equal(t, slog.Attr{}, logger.NotificationID(nil))
		assert.Equal(t, slog.Attr{}, logger.DeliveryID(nil))
	})

	t.Run("keys", func(t *testing.T) {
		assert.Equal(t, "user_address", logger.UserAddress("0xabc").Key)
		assert.Equal(t, "channel", logger.Channel("email").Key)
		assert.Equal(t, "group_key", logger.GroupKey("PAYMENT_REMINDER|pool-7").Key)
		assert.Equal(t, "retry_count", logger.RetryCount(2).Key)
		assert.Equal(t, "period_key", logger.PeriodKey("2026-09-01").Key)
		assert.Equal(t, "component", logger.Component("dispatcher").Key)
	})
}
