package logger

import "log/slog"

// Error creates an attribute for a single error under the key "error".
// If err is nil, it returns an empty Attr.
func Error(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.Any("error", err)
}

// UserAddress records the user's wallet address under the key "user_address".
func UserAddress(addr string) slog.Attr {
	if addr == "" {
		return slog.Attr{}
	}
	return slog.String("user_address", addr)
}

// NotificationID records the notification identifier under the key "notification_id".
func NotificationID(id any) slog.Attr {
	if id == nil {
		return slog.Attr{}
	}
	return slog.Any("notification_id", id)
}

// DeliveryID records the delivery identifier under the key "delivery_id".
func DeliveryID(id any) slog.Attr {
	if id == nil {
		return slog.Attr{}
	}
	return slog.Any("delivery_id", id)
}

// Channel records the delivery channel under the key "channel".
func Channel(ch string) slog.Attr {
	return slog.String("channel", ch)
}

// PoolID records the pool identifier under the key "pool_id".
func PoolID(id string) slog.Attr {
	if id == "" {
		return slog.Attr{}
	}
	return slog.String("pool_id", id)
}

// GroupKey records the notification group key under the key "group_key".
func GroupKey(key string) slog.Attr {
	return slog.String("group_key", key)
}

// EventType records the lifecycle event type under the key "event_type".
func EventType(eventType string) slog.Attr {
	return slog.String("event_type", eventType)
}

// RetryCount records the retry count under the key "retry_count".
func RetryCount(count int) slog.Attr {
	return slog.Int("retry_count", count)
}

// PeriodKey records the digest period identifier under the key "period_key".
func PeriodKey(key string) slog.Attr {
	return slog.String("period_key", key)
}

// Component records the component name under the key "component".
func Component(name string) slog.Attr {
	return slog.String("component", name)
}
