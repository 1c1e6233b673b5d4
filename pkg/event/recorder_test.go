package event_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poolfi/notifier/pkg/event"
)

func newRecorder(t *testing.T) (*event.Recorder, *event.MemoryStorage) {
	t.Helper()
	store := event.NewMemoryStorage()
	r, err := event.NewRecorder(store)
	require.NoError(t, err)
	return r, store
}

func TestNewRecorder(t *testing.T) {
	_, err := event.NewRecorder(nil)
	assert.ErrorIs(t, err, event.ErrStorageNil)
}

func TestRecorder_Record(t *testing.T) {
	ctx := context.Background()

	t.Run("records and returns ID", func(t *testing.T) {
		r, _ := newRecorder(t)

		id, err := r.Record(ctx, "n1", event.TypeCreated, "0xabc")
		require.NoError(t, err)
		assert.NotEmpty(t, id)

		timeline, err := r.Timeline(ctx, "n1")
		require.NoError(t, err)
		require.Len(t, timeline, 1)
		assert.Equal(t, event.TypeCreated, timeline[0].Type)
		assert.Equal(t, int64(1), timeline[0].Seq)
	})

	t.Run("rejects missing notification ID", func(t *testing.T) {
		r, _ := newRecorder(t)

		_, err := r.Record(ctx, "", event.TypeCreated, "0xabc")
		assert.ErrorIs(t, err, event.ErrMissingNotificationID)
	})

	t.Run("rejects unknown type", func(t *testing.T) {
		r, _ := newRecorder(t)

		_, err := r.Record(ctx, "n1", event.Type("WAT"), "0xabc")
		assert.ErrorIs(t, err, event.ErrInvalidEventType)
	})

	t.Run("options attach metadata", func(t *testing.T) {
		r, _ := newRecorder(t)

		_, err := r.Record(ctx, "n1", event.TypeFailed, "0xabc",
			event.WithChannel("email"),
			event.WithDeliveryID("d1"),
			event.WithError(errors.New("smtp down")),
			event.WithMetadata("retry_count", 2),
		)
		require.NoError(t, err)

		timeline, err := r.Timeline(ctx, "n1")
		require.NoError(t, err)
		require.Len(t, timeline, 1)
		md := timeline[0].Metadata
		assert.Equal(t, "email", md["channel"])
		assert.Equal(t, "d1", md["delivery_id"])
		assert.Equal(t, "smtp down", md["error"])
		assert.Equal(t, 2, md["retry_count"])
	})
}

func TestMemoryStorage_Sequencing(t *testing.T) {
	ctx := context.Background()

	t.Run("seq is monotonic per notification", func(t *testing.T) {
		r, _ := newRecorder(t)

		for _, typ := range []event.Type{event.TypeCreated, event.TypeSent, event.TypeDelivered} {
			_, err := r.Record(ctx, "n1", typ, "0xabc")
			require.NoError(t, err)
		}
		_, err := r.Record(ctx, "n2", event.TypeCreated, "0xabc")
		require.NoError(t, err)

		timeline, err := r.Timeline(ctx, "n1")
		require.NoError(t, err)
		require.Len(t, timeline, 3)
		for i, e := range timeline {
			assert.Equal(t, int64(i+1), e.Seq)
		}

		other, err := r.Timeline(ctx, "n2")
		require.NoError(t, err)
		require.Len(t, other, 1)
		assert.Equal(t, int64(1), other[0].Seq, "sequences are independent per notification")
	})

	t.Run("concurrent appends never skip or repeat seq", func(t *testing.T) {
		store := event.NewMemoryStorage()
		ctx := context.Background()

		const writers = 16
		var wg sync.WaitGroup
		wg.Add(writers)
		for i := 0; i < writers; i++ {
			go func(i int) {
				defer wg.Done()
				_, err := store.Append(ctx, event.Event{
					ID:             fmt.Sprintf("e%d", i),
					NotificationID: "n1",
					Type:           event.TypeRetried,
					CreatedAt:      time.Now(),
				})
				assert.NoError(t, err)
			}(i)
		}
		wg.Wait()

		timeline, err := store.Timeline(ctx, "n1")
		require.NoError(t, err)
		require.Len(t, timeline, writers)

		seen := make(map[int64]bool)
		for i, e := range timeline {
			assert.Equal(t, int64(i+1), e.Seq, "storage order matches seq order")
			assert.False(t, seen[e.Seq], "seq %d assigned twice", e.Seq)
			seen[e.Seq] = true
		}
	})
}

func TestMemoryStorage_Query(t *testing.T) {
	ctx := context.Background()
	r, _ := newRecorder(t)

	_, err := r.Record(ctx, "n1", event.TypeCreated, "0xabc")
	require.NoError(t, err)
	_, err = r.Record(ctx, "n1", event.TypeSent, "")
	require.NoError(t, err)
	_, err = r.Record(ctx, "n2", event.TypeCreated, "0xdef")
	require.NoError(t, err)

	t.Run("by notification", func(t *testing.T) {
		events, err := r.Find(ctx, event.Criteria{NotificationID: "n1"})
		require.NoError(t, err)
		assert.Len(t, events, 2)
	})

	t.Run("by user", func(t *testing.T) {
		events, err := r.Find(ctx, event.Criteria{UserAddress: "0xdef"})
		require.NoError(t, err)
		assert.Len(t, events, 1)
	})

	t.Run("by type", func(t *testing.T) {
		events, err := r.Find(ctx, event.Criteria{Types: []event.Type{event.TypeSent}})
		require.NoError(t, err)
		require.Len(t, events, 1)
		assert.Equal(t, "n1", events[0].NotificationID)
	})

	t.Run("pagination", func(t *testing.T) {
		events, err := r.Find(ctx, event.Criteria{Limit: 2})
		require.NoError(t, err)
		assert.Len(t, events, 2)

		events, err = r.Find(ctx, event.Criteria{Offset: 5})
		require.NoError(t, err)
		assert.Empty(t, events)
	})
}
