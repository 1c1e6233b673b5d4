package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/poolfi/notifier/pkg/event"
	"github.com/poolfi/notifier/pkg/logger"
	"github.com/poolfi/notifier/pkg/notification"
)

// Dispatcher sends per-channel delivery attempts, manages the retry/backoff
// loop and feeds every state transition into the event recorder.
type Dispatcher struct {
	storage  Storage
	notifs   notification.Storage
	recorder *event.Recorder
	senders  map[notification.Channel]Sender
	logger   *slog.Logger

	backoffBase  time.Duration
	backoffMax   time.Duration
	sendTimeout  time.Duration
	storeTimeout time.Duration
	maxRetries   int

	pullInterval  time.Duration
	maxConcurrent int

	confirmations chan Confirmation

	// inflight holds one entry per (notification, channel) pair with a send
	// attempt currently running. It guarantees at most one attempt in flight
	// per pair.
	inflight   map[string]struct{}
	inflightMu sync.Mutex

	mu      sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithLogger sets the logger for the Dispatcher.
func WithLogger(l *slog.Logger) Option {
	return func(d *Dispatcher) {
		d.logger = l
	}
}

// WithBackoff sets the retry backoff base and cap. The delay before retry n
// is base * 2^n, capped at max.
func WithBackoff(base, max time.Duration) Option {
	return func(d *Dispatcher) {
		if base > 0 {
			d.backoffBase = base
		}
		if max > 0 {
			d.backoffMax = max
		}
	}
}

// WithSendTimeout bounds the call into a channel sender. An attempt that
// exceeds it is treated as a transient failure and folds into the retry path.
func WithSendTimeout(t time.Duration) Option {
	return func(d *Dispatcher) {
		if t > 0 {
			d.sendTimeout = t
		}
	}
}

// WithStoreTimeout bounds calls into delivery persistence.
func WithStoreTimeout(t time.Duration) Option {
	return func(d *Dispatcher) {
		if t > 0 {
			d.storeTimeout = t
		}
	}
}

// WithMaxRetries sets the default retry budget for new deliveries.
func WithMaxRetries(n int) Option {
	return func(d *Dispatcher) {
		if n >= 0 {
			d.maxRetries = n
		}
	}
}

// WithPullInterval sets how often the background loop polls for due attempts.
func WithPullInterval(t time.Duration) Option {
	return func(d *Dispatcher) {
		if t > 0 {
			d.pullInterval = t
		}
	}
}

// WithMaxConcurrent caps the number of parallel send attempts.
func WithMaxConcurrent(n int) Option {
	return func(d *Dispatcher) {
		if n > 0 {
			d.maxConcurrent = n
		}
	}
}

// New creates a Dispatcher. Senders are registered separately so channel
// wiring stays explicit at startup.
func New(storage Storage, notifs notification.Storage, recorder *event.Recorder, opts ...Option) (*Dispatcher, error) {
	if storage == nil {
		return nil, ErrStorageNil
	}
	if notifs == nil {
		return nil, fmt.Errorf("%w: notification storage", ErrStorageNil)
	}
	if recorder == nil {
		return nil, ErrRecorderNil
	}

	d := &Dispatcher{
		storage:       storage,
		notifs:        notifs,
		recorder:      recorder,
		senders:       make(map[notification.Channel]Sender),
		logger:        slog.Default(),
		backoffBase:   30 * time.Second,
		backoffMax:    time.Hour,
		sendTimeout:   10 * time.Second,
		storeTimeout:  10 * time.Second,
		maxRetries:    3,
		pullInterval:  5 * time.Second,
		maxConcurrent: 4,
		inflight:      make(map[string]struct{}),
	}

	for _, opt := range opts {
		opt(d)
	}

	d.confirmations = make(chan Confirmation, 64)

	return d, nil
}

// RegisterSender registers the sender for its channel, replacing any
// previous one.
func (d *Dispatcher) RegisterSender(s Sender) {
	if s == nil {
		return
	}
	d.senders[s.Channel()] = s
}

// RegisterSenders registers multiple senders.
func (d *Dispatcher) RegisterSenders(senders ...Sender) {
	for _, s := range senders {
		d.RegisterSender(s)
	}
}

// Enqueue creates a delivery in PENDING and schedules its first send
// attempt. A (notification, channel) pair with an active delivery is
// rejected rather than double-sent.
func (d *Dispatcher) Enqueue(ctx context.Context, notif notification.Notification, ch notification.Channel) (string, error) {
	sctx, cancel := context.WithTimeout(ctx, d.storeTimeout)
	defer cancel()

	active, err := d.storage.HasActive(sctx, notif.ID, ch)
	if err != nil {
		return "", fmt.Errorf("check active delivery for notification %s: %w", notif.ID, err)
	}
	if active {
		return "", ErrDuplicateDelivery
	}

	now := time.Now()
	delivery := Delivery{
		ID:             uuid.New().String(),
		NotificationID: notif.ID,
		Channel:        ch,
		Status:         StatusPending,
		MaxRetries:     d.maxRetries,
		NextAttemptAt:  now,
		CreatedAt:      now,
	}

	if err := d.storage.Create(sctx, delivery); err != nil {
		return "", fmt.Errorf("create delivery for notification %s: %w", notif.ID, err)
	}

	d.logger.LogAttrs(ctx, slog.LevelDebug, "delivery enqueued",
		logger.DeliveryID(delivery.ID),
		logger.NotificationID(notif.ID),
		logger.Channel(string(ch)),
	)

	return delivery.ID, nil
}

// AttemptSend performs one send attempt for the delivery and applies the
// outcome: SENT on success, a backoff-scheduled retry or a terminal FAILED on
// failure. Every outcome appends exactly one event.
func (d *Dispatcher) AttemptSend(ctx context.Context, deliveryID string) error {
	sctx, cancel := context.WithTimeout(ctx, d.storeTimeout)
	delivery, err := d.storage.Get(sctx, deliveryID)
	cancel()
	if err != nil {
		return fmt.Errorf("load delivery %s: %w", deliveryID, err)
	}

	if delivery.Status.Terminal() {
		return ErrTerminalState
	}

	key := inflightKey(delivery.NotificationID, delivery.Channel)
	if !d.tryAcquire(key) {
		return ErrAttemptInFlight
	}
	defer d.release(key)

	sctx, cancel = context.WithTimeout(ctx, d.storeTimeout)
	notif, err := d.notifs.Get(sctx, delivery.NotificationID)
	cancel()
	if err != nil {
		return fmt.Errorf("load notification %s: %w", delivery.NotificationID, err)
	}

	sender, ok := d.senders[delivery.Channel]
	if !ok {
		// Retrying cannot help without a sender; fail permanently.
		return d.applyFailure(ctx, *delivery, fmt.Errorf("%w: %s", ErrNoSenderForChannel, delivery.Channel), true)
	}

	sendCtx, cancel := context.WithTimeout(ctx, d.sendTimeout)
	providerID, sendErr := sender.Send(sendCtx, *notif)
	cancel()

	if sendErr != nil {
		permanent := errors.Is(sendErr, ErrChannelRejected)
		return d.applyFailure(ctx, *delivery, sendErr, permanent)
	}

	return d.applySuccess(ctx, *delivery, providerID)
}

// applySuccess moves the delivery to SENT and records the transition.
func (d *Dispatcher) applySuccess(ctx context.Context, delivery Delivery, providerID string) error {
	now := time.Now()
	delivery.Status = StatusSent
	delivery.SentAt = &now
	delivery.ProviderID = providerID
	delivery.ErrorMessage = ""

	sctx, cancel := context.WithTimeout(ctx, d.storeTimeout)
	err := d.storage.Update(sctx, delivery)
	cancel()
	if err != nil {
		return fmt.Errorf("mark delivery %s sent: %w", delivery.ID, err)
	}

	if _, err := d.recorder.Record(ctx, delivery.NotificationID, event.TypeSent, "",
		event.WithChannel(string(delivery.Channel)),
		event.WithDeliveryID(delivery.ID),
		event.WithMetadata("provider_id", providerID),
	); err != nil {
		return err
	}

	d.logger.LogAttrs(ctx, slog.LevelInfo, "delivery sent",
		logger.DeliveryID(delivery.ID),
		logger.NotificationID(delivery.NotificationID),
		logger.Channel(string(delivery.Channel)),
	)

	return nil
}

// applyFailure either schedules a retry with exponential backoff or, when the
// failure is permanent or the retry budget is spent, fails the delivery
// terminally.
func (d *Dispatcher) applyFailure(ctx context.Context, delivery Delivery, sendErr error, permanent bool) error {
	now := time.Now()

	if permanent || delivery.RetryCount >= delivery.MaxRetries {
		delivery.Status = StatusFailed
		delivery.FailedAt = &now
		delivery.ErrorMessage = sendErr.Error()

		sctx, cancel := context.WithTimeout(ctx, d.storeTimeout)
		err := d.storage.Update(sctx, delivery)
		cancel()
		if err != nil {
			return fmt.Errorf("mark delivery %s failed: %w", delivery.ID, err)
		}

		if _, err := d.recorder.Record(ctx, delivery.NotificationID, event.TypeFailed, "",
			event.WithChannel(string(delivery.Channel)),
			event.WithDeliveryID(delivery.ID),
			event.WithError(sendErr),
		); err != nil {
			return err
		}

		d.logger.LogAttrs(ctx, slog.LevelWarn, "delivery failed permanently",
			logger.DeliveryID(delivery.ID),
			logger.NotificationID(delivery.NotificationID),
			logger.Channel(string(delivery.Channel)),
			logger.RetryCount(delivery.RetryCount),
			logger.Error(sendErr),
		)

		return nil
	}

	delay := d.backoffFor(delivery.RetryCount)
	delivery.RetryCount++
	delivery.NextAttemptAt = now.Add(delay)
	delivery.ErrorMessage = sendErr.Error()

	sctx, cancel := context.WithTimeout(ctx, d.storeTimeout)
	err := d.storage.Update(sctx, delivery)
	cancel()
	if err != nil {
		return fmt.Errorf("schedule retry for delivery %s: %w", delivery.ID, err)
	}

	if _, err := d.recorder.Record(ctx, delivery.NotificationID, event.TypeRetried, "",
		event.WithChannel(string(delivery.Channel)),
		event.WithDeliveryID(delivery.ID),
		event.WithError(sendErr),
		event.WithMetadata("retry_count", delivery.RetryCount),
		event.WithMetadata("next_attempt_at", delivery.NextAttemptAt),
	); err != nil {
		return err
	}

	d.logger.LogAttrs(ctx, slog.LevelWarn, "delivery attempt failed, retry scheduled",
		logger.DeliveryID(delivery.ID),
		logger.NotificationID(delivery.NotificationID),
		logger.Channel(string(delivery.Channel)),
		logger.RetryCount(delivery.RetryCount),
		slog.Duration("backoff", delay),
		logger.Error(sendErr),
	)

	return nil
}

// backoffFor returns backoffBase * 2^retryCount capped at backoffMax.
func (d *Dispatcher) backoffFor(retryCount int) time.Duration {
	delay := d.backoffBase
	for i := 0; i < retryCount; i++ {
		delay *= 2
		if delay >= d.backoffMax {
			return d.backoffMax
		}
	}
	if delay > d.backoffMax {
		return d.backoffMax
	}
	return delay
}

// Deliveries returns all deliveries recorded for a notification.
func (d *Dispatcher) Deliveries(ctx context.Context, notificationID string) ([]Delivery, error) {
	return d.storage.ListByNotification(ctx, notificationID)
}

func inflightKey(notificationID string, ch notification.Channel) string {
	return notificationID + "|" + string(ch)
}

func (d *Dispatcher) tryAcquire(key string) bool {
	d.inflightMu.Lock()
	defer d.inflightMu.Unlock()

	if _, held := d.inflight[key]; held {
		return false
	}
	d.inflight[key] = struct{}{}
	return true
}

func (d *Dispatcher) release(key string) {
	d.inflightMu.Lock()
	defer d.inflightMu.Unlock()
	delete(d.inflight, key)
}
