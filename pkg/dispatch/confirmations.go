package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/poolfi/notifier/pkg/event"
	"github.com/poolfi/notifier/pkg/logger"
)

// ConfirmationKind classifies an inbound provider callback.
type ConfirmationKind string

const (
	// KindDelivered reports that the provider confirmed delivery.
	KindDelivered ConfirmationKind = "delivered"
	// KindBounced reports that the provider rejected the message after accepting it.
	KindBounced ConfirmationKind = "bounced"
)

// Confirmation is an inbound provider event. Providers identify the message
// either by our delivery ID or by their own provider ID; at least one must be
// set.
type Confirmation struct {
	DeliveryID string
	ProviderID string
	Kind       ConfirmationKind
	Reason     string
	OccurredAt time.Time
}

// SubmitConfirmation hands a provider event to the dispatcher's inbox. The
// event is applied asynchronously in submission order, which keeps the
// per-delivery event trail consistent with arrival order.
func (d *Dispatcher) SubmitConfirmation(ctx context.Context, c Confirmation) error {
	if c.DeliveryID == "" && c.ProviderID == "" {
		return errors.New("confirmation must reference a delivery or provider ID")
	}

	d.mu.Lock()
	running := d.running
	d.mu.Unlock()
	if !running {
		return ErrDispatcherStopped
	}

	select {
	case d.confirmations <- c:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// runConfirmations applies inbound provider events one at a time.
func (d *Dispatcher) runConfirmations(ctx context.Context) {
	defer d.wg.Done()

	for {
		select {
		case <-ctx.Done():
			d.drainConfirmations()
			return
		case c := <-d.confirmations:
			if err := d.applyConfirmation(ctx, c); err != nil {
				d.logger.LogAttrs(ctx, slog.LevelError, "failed to apply provider confirmation",
					logger.DeliveryID(c.DeliveryID),
					slog.String("kind", string(c.Kind)),
					logger.Error(err),
				)
			}
		}
	}
}

// drainConfirmations applies events still queued in the inbox at shutdown.
// Stop rejects new submissions before cancelling, so the queue can only
// shrink here; each event gets a fresh context because the loop's is done.
func (d *Dispatcher) drainConfirmations() {
	for {
		select {
		case c := <-d.confirmations:
			ctx, cancel := context.WithTimeout(context.Background(), d.storeTimeout)
			if err := d.applyConfirmation(ctx, c); err != nil {
				d.logger.LogAttrs(ctx, slog.LevelError, "failed to apply provider confirmation during shutdown",
					logger.DeliveryID(c.DeliveryID),
					slog.String("kind", string(c.Kind)),
					logger.Error(err),
				)
			}
			cancel()
		default:
			return
		}
	}
}

// applyConfirmation transitions SENT deliveries to DELIVERED or BOUNCED. A
// confirmation arriving after the delivery already reached a terminal state
// is recorded as an event but does not change status.
func (d *Dispatcher) applyConfirmation(ctx context.Context, c Confirmation) error {
	delivery, err := d.lookupConfirmed(ctx, c)
	if err != nil {
		return err
	}

	var (
		eventType event.Type
		target    Status
	)
	switch c.Kind {
	case KindDelivered:
		eventType, target = event.TypeDelivered, StatusDelivered
	case KindBounced:
		eventType, target = event.TypeBounced, StatusBounced
	default:
		return fmt.Errorf("unknown confirmation kind %q", c.Kind)
	}

	opts := []event.EventOption{
		event.WithChannel(string(delivery.Channel)),
		event.WithDeliveryID(delivery.ID),
	}
	if c.Reason != "" {
		opts = append(opts, event.WithMetadata("reason", c.Reason))
	}

	if delivery.Status != StatusSent {
		// Late or out-of-order confirmation: audit it, leave status alone.
		opts = append(opts, event.WithMetadata("late", true))
		_, err := d.recorder.Record(ctx, delivery.NotificationID, eventType, "", opts...)
		return err
	}

	now := time.Now()
	delivery.Status = target
	switch target {
	case StatusDelivered:
		delivery.DeliveredAt = &now
	case StatusBounced:
		delivery.FailedAt = &now
		delivery.ErrorMessage = c.Reason
	}

	sctx, cancel := context.WithTimeout(ctx, d.storeTimeout)
	err = d.storage.Update(sctx, *delivery)
	cancel()
	if err != nil {
		return fmt.Errorf("apply %s confirmation to delivery %s: %w", c.Kind, delivery.ID, err)
	}

	_, err = d.recorder.Record(ctx, delivery.NotificationID, eventType, "", opts...)
	return err
}

func (d *Dispatcher) lookupConfirmed(ctx context.Context, c Confirmation) (*Delivery, error) {
	sctx, cancel := context.WithTimeout(ctx, d.storeTimeout)
	defer cancel()

	if c.DeliveryID != "" {
		return d.storage.Get(sctx, c.DeliveryID)
	}
	return d.storage.FindByProviderID(sctx, c.ProviderID)
}
