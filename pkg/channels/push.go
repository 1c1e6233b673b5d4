package channels

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"

	"github.com/poolfi/notifier/pkg/dispatch"
	"github.com/poolfi/notifier/pkg/logger"
	"github.com/poolfi/notifier/pkg/notification"
	"github.com/poolfi/notifier/pkg/preference"
)

// PushProvider abstracts the mobile push gateway. A single logical send
// fans out to every registered device token.
type PushProvider interface {
	// Push sends one payload to the given device tokens and returns the
	// provider's batch identifier.
	Push(ctx context.Context, tokens []string, title, message string, data map[string]any) (string, error)
}

// PushSender delivers notifications to a user's registered devices. Device
// tokens are resolved from preferences at send time so newly linked devices
// are included without re-enqueueing.
type PushSender struct {
	provider PushProvider
	prefs    preference.Storage
}

// NewPushSender creates a push notification sender.
func NewPushSender(provider PushProvider, prefs preference.Storage) (*PushSender, error) {
	if provider == nil {
		return nil, errors.New("channels: push provider cannot be nil")
	}
	if prefs == nil {
		return nil, ErrStorageNil
	}
	return &PushSender{provider: provider, prefs: prefs}, nil
}

func (s *PushSender) Channel() notification.Channel {
	return notification.ChannelPush
}

func (s *PushSender) Send(ctx context.Context, notif notification.Notification) (string, error) {
	prefs, err := s.prefs.Get(ctx, notif.UserAddress)
	if err != nil {
		if errors.Is(err, preference.ErrNotFound) {
			return "", errors.Join(dispatch.ErrChannelRejected, ErrMissingRecipient)
		}
		return "", errors.Join(dispatch.ErrChannelUnavailable, err)
	}
	if len(prefs.Push.DeviceTokens) == 0 {
		return "", errors.Join(dispatch.ErrChannelRejected, ErrMissingRecipient)
	}

	data := map[string]any{
		"notification_id": notif.ID,
		"type":            string(notif.Type),
	}
	if notif.PoolID != "" {
		data["pool_id"] = notif.PoolID
	}

	providerID, err := s.provider.Push(ctx, prefs.Push.DeviceTokens, notif.Title, notif.Message, data)
	if err != nil {
		return "", errors.Join(dispatch.ErrChannelUnavailable, err)
	}
	return providerID, nil
}

// LogPushProvider is a development push gateway that logs instead of
// calling a real service.
type LogPushProvider struct {
	logger *slog.Logger
}

// NewLogPushProvider creates a logging push provider for development.
func NewLogPushProvider(l *slog.Logger) *LogPushProvider {
	if l == nil {
		l = slog.Default()
	}
	return &LogPushProvider{logger: l}
}

func (p *LogPushProvider) Push(ctx context.Context, tokens []string, title, message string, data map[string]any) (string, error) {
	id := "dev-" + uuid.New().String()
	p.logger.LogAttrs(ctx, slog.LevelInfo, "push notification (dev)",
		logger.Component("push"),
		slog.Int("devices", len(tokens)),
		slog.String("title", title),
		slog.String("provider_id", id),
	)
	return id, nil
}
