package event_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poolfi/notifier/pkg/event"
)

func appendAt(t *testing.T, store *event.MemoryStorage, notifID string, typ event.Type, at time.Time) {
	t.Helper()
	_, err := store.Append(context.Background(), event.Event{
		ID:             notifID + "-" + string(typ) + at.String(),
		NotificationID: notifID,
		Type:           typ,
		CreatedAt:      at,
	})
	require.NoError(t, err)
}

func TestRecorder_Metrics(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2026, time.September, 1, 10, 0, 0, 0, time.UTC)

	store := event.NewMemoryStorage()
	r, err := event.NewRecorder(store)
	require.NoError(t, err)

	// n1: delivered after one retry, 2 minutes end to end.
	appendAt(t, store, "n1", event.TypeCreated, base)
	appendAt(t, store, "n1", event.TypeRetried, base.Add(30*time.Second))
	appendAt(t, store, "n1", event.TypeSent, base.Add(time.Minute))
	appendAt(t, store, "n1", event.TypeDelivered, base.Add(2*time.Minute))

	// n2: exhausted retries and failed.
	appendAt(t, store, "n2", event.TypeCreated, base)
	appendAt(t, store, "n2", event.TypeRetried, base.Add(time.Minute))
	appendAt(t, store, "n2", event.TypeRetried, base.Add(2*time.Minute))
	appendAt(t, store, "n2", event.TypeRetried, base.Add(3*time.Minute))
	appendAt(t, store, "n2", event.TypeFailed, base.Add(4*time.Minute))

	// n3: created only, no send activity; excluded from totals.
	appendAt(t, store, "n3", event.TypeCreated, base)

	m, err := r.Metrics(ctx, event.Criteria{})
	require.NoError(t, err)

	assert.Equal(t, 2, m.Notifications)
	assert.Equal(t, 1, m.Delivered)
	assert.Equal(t, 1, m.Failed)
	assert.InDelta(t, 0.5, m.SuccessRate, 1e-9)
	assert.InDelta(t, 2.0, m.MeanRetries, 1e-9)
	assert.Equal(t, 2*time.Minute, m.MeanTimeToSend)
}

func TestRecorder_Metrics_FailedThenDelivered(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2026, time.September, 1, 10, 0, 0, 0, time.UTC)

	store := event.NewMemoryStorage()
	r, err := event.NewRecorder(store)
	require.NoError(t, err)

	// Email failed but push got through: the notification is not a failure.
	appendAt(t, store, "n1", event.TypeCreated, base)
	appendAt(t, store, "n1", event.TypeFailed, base.Add(time.Minute))
	appendAt(t, store, "n1", event.TypeSent, base.Add(time.Minute))
	appendAt(t, store, "n1", event.TypeDelivered, base.Add(2*time.Minute))

	m, err := r.Metrics(ctx, event.Criteria{})
	require.NoError(t, err)

	assert.Equal(t, 1, m.Notifications)
	assert.Equal(t, 1, m.Delivered)
	assert.Equal(t, 0, m.Failed)
	assert.InDelta(t, 1.0, m.SuccessRate, 1e-9)
}

func TestRecorder_Metrics_Empty(t *testing.T) {
	store := event.NewMemoryStorage()
	r, err := event.NewRecorder(store)
	require.NoError(t, err)

	m, err := r.Metrics(context.Background(), event.Criteria{})
	require.NoError(t, err)
	assert.Zero(t, m.Notifications)
	assert.Zero(t, m.SuccessRate)
	assert.Zero(t, m.MeanTimeToSend)
}
