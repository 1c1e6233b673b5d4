package digest

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
	"github.com/poolfi/notifier/pkg/preference"
)

// Enqueuer hands a digest notification to the delivery dispatcher.
type Enqueuer interface {
	Enqueue(ctx context.Context, notif notification.Notification, ch notification.Channel) (string, error)
}

// Indexer places a notification into its display group. Digest notifications
// are indexed like any other.
type Indexer interface {
	Index(ctx context.Context, notif notification.Notification) error
}

// Scheduler buffers digest-eligible notifications per user and channel and
// flushes them on the user's configured schedule. Each (user, channel,
// period) flushes exactly once; the idempotency marker lives in the buffer
// store, so repeated ticks and restarts cannot double-send.
type Scheduler struct {
	buffers  BufferStore
	prefs    preference.Storage
	notifs   notification.Storage
	enqueuer Enqueuer
	recorder *event.Recorder
	indexer  Indexer
	logger   *slog.Logger
	clock    func() time.Time

	tickInterval time.Duration

	mu      sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
}

// SchedulerOption configures a Scheduler.
type SchedulerOption func(*Scheduler)

// WithSchedulerLogger sets the logger for the Scheduler.
func WithSchedulerLogger(l *slog.Logger) SchedulerOption {
	return func(s *Scheduler) {
		s.logger = l
	}
}

// WithClock overrides the time source, used by tests.
func WithClock(now func() time.Time) SchedulerOption {
	return func(s *Scheduler) {
		s.clock = now
	}
}

// WithTickInterval sets the timer cadence. It must be fine enough to hit
// configured digest times; the default is one minute.
func WithTickInterval(t time.Duration) SchedulerOption {
	return func(s *Scheduler) {
		if t > 0 {
			s.tickInterval = t
		}
	}
}

// WithIndexer registers the grouping hook applied to digest notifications.
func WithIndexer(ix Indexer) SchedulerOption {
	return func(s *Scheduler) {
		s.indexer = ix
	}
}

// NewScheduler creates a digest scheduler.
func NewScheduler(buffers BufferStore, prefs preference.Storage, notifs notification.Storage, enqueuer Enqueuer, recorder *event.Recorder, opts ...SchedulerOption) (*Scheduler, error) {
	if buffers == nil {
		return nil, ErrStoreNil
	}
	if prefs == nil || notifs == nil {
		return nil, fmt.Errorf("%w: preference and notification storage are required", ErrStoreNil)
	}
	if enqueuer == nil {
		return nil, ErrEnqueuerNil
	}
	if recorder == nil {
		return nil, errors.New("event recorder cannot be nil")
	}

	s := &Scheduler{
		buffers:      buffers,
		prefs:        prefs,
		notifs:       notifs,
		enqueuer:     enqueuer,
		recorder:     recorder,
		logger:       slog.Default(),
		clock:        time.Now,
		tickInterval: time.Minute,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s, nil
}

// Buffer appends a notification to the pending digest set for the user and
// channel. The buffering time pins the item to the next flush period, so a
// tick before the period's flush instant leaves it in place.
func (s *Scheduler) Buffer(ctx context.Context, userAddress string, ch notification.Channel, notificationID string) error {
	key := BufferKey{UserAddress: userAddress, Channel: ch}
	if err := s.buffers.Append(ctx, key, notificationID, s.clock()); err != nil {
		return fmt.Errorf("buffer notification %s for digest: %w", notificationID, err)
	}

	s.logger.LogAttrs(ctx, slog.LevelDebug, "notification buffered for digest",
		logger.UserAddress(userAddress),
		logger.Channel(string(ch)),
		logger.NotificationID(notificationID),
	)
	return nil
}

// Tick checks every pending buffer and flushes the ones whose schedule is
// due at now. It is safe to call repeatedly with the same now.
func (s *Scheduler) Tick(ctx context.Context, now time.Time) error {
	keys, err := s.buffers.Pending(ctx)
	if err != nil {
		return fmt.Errorf("list pending digest buffers: %w", err)
	}

	var errs []error
	for _, key := range keys {
		if err := s.flushIfDue(ctx, key, now); err != nil {
			errs = append(errs, fmt.Errorf("flush digest for %s: %w", key, err))
		}
	}
	return errors.Join(errs...)
}

func (s *Scheduler) flushIfDue(ctx context.Context, key BufferKey, now time.Time) error {
	sched := s.scheduleFor(ctx, key.UserAddress)

	flushAt, ok := sched.PrevFlush(now)
	if !ok {
		// The user switched back to immediate delivery while items were
		// buffered. Drain now so nothing is stranded.
		flushAt = now
		sched.Frequency = preference.DigestDaily
	}

	periodKey := sched.PeriodKey(flushAt)

	claimed, err := s.buffers.MarkFlushed(ctx, key, periodKey)
	if err != nil {
		return err
	}
	if !claimed {
		// Already flushed this period: a guarded no-op, not an error.
		return nil
	}

	// Only items buffered at or before the flush instant belong to this
	// period. Anything appended afterwards stays for the next one, so a
	// tick ahead of the digest time never drains the buffer early.
	ids, err := s.buffers.Take(ctx, key, flushAt)
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		return nil
	}

	if err := s.flush(ctx, key, ids, periodKey); err != nil {
		// The period is already claimed, so put the items back for the
		// next period. A duplicate send beats a lost one.
		s.requeue(ctx, key, ids, flushAt)
		return err
	}
	return nil
}

// requeue restores taken items after a failed flush so they drain with the
// next period instead of disappearing.
func (s *Scheduler) requeue(ctx context.Context, key BufferKey, ids []string, at time.Time) {
	for _, id := range ids {
		if err := s.buffers.Append(ctx, key, id, at); err != nil {
			s.logger.LogAttrs(ctx, slog.LevelError, "failed to requeue digest item after flush failure",
				logger.UserAddress(key.UserAddress),
				logger.Channel(string(key.Channel)),
				logger.NotificationID(id),
				logger.Error(err),
			)
		}
	}
}

// scheduleFor loads the user's digest schedule, falling back to a daily
// 09:00 schedule when preferences are missing or malformed so buffered items
// always drain eventually.
func (s *Scheduler) scheduleFor(ctx context.Context, userAddress string) Schedule {
	fallback := Schedule{Frequency: preference.DigestDaily, Hour: 9}

	prefs, err := s.prefs.Get(ctx, userAddress)
	if err != nil {
		if !errors.Is(err, preference.ErrNotFound) {
			s.logger.LogAttrs(ctx, slog.LevelWarn, "failed to load preferences for digest flush",
				logger.UserAddress(userAddress),
				logger.Error(err),
			)
		}
		return fallback
	}

	sched, err := FromPreferences(prefs.Email)
	if err != nil {
		s.logger.LogAttrs(ctx, slog.LevelWarn, "invalid digest schedule, using daily fallback",
			logger.UserAddress(userAddress),
			slog.String("digest_time", prefs.Email.DigestTime),
			logger.Error(err),
		)
		return fallback
	}
	return sched
}

// flush builds one digest notification referencing all buffered members and
// hands it to the dispatcher as a single enqueue.
func (s *Scheduler) flush(ctx context.Context, key BufferKey, ids []string, periodKey string) error {
	members := make([]any, len(ids))
	for i, id := range ids {
		members[i] = id
	}

	digest := notification.Notification{
		ID:          uuid.New().String(),
		Type:        notification.TypeDigest,
		UserAddress: key.UserAddress,
		Title:       "Notification digest",
		Message:     fmt.Sprintf("You have %d new notifications", len(ids)),
		Payload: map[string]any{
			"notification_ids": members,
			"period_key":       periodKey,
			"count":            len(ids),
		},
		CreatedAt: s.clock(),
	}

	if err := s.notifs.Create(ctx, digest); err != nil {
		return fmt.Errorf("store digest notification: %w", err)
	}

	if _, err := s.recorder.Record(ctx, digest.ID, event.TypeCreated, key.UserAddress,
		event.WithChannel(string(key.Channel)),
		event.WithMetadata("digest", true),
		event.WithMetadata("period_key", periodKey),
		event.WithMetadata("member_count", len(ids)),
	); err != nil {
		return err
	}

	if s.indexer != nil {
		if err := s.indexer.Index(ctx, digest); err != nil {
			// Grouping is a display concern; a failure must not lose the send.
			s.logger.LogAttrs(ctx, slog.LevelWarn, "failed to index digest notification",
				logger.NotificationID(digest.ID),
				logger.Error(err),
			)
		}
	}

	if _, err := s.enqueuer.Enqueue(ctx, digest, key.Channel); err != nil {
		return fmt.Errorf("enqueue digest delivery: %w", err)
	}

	s.logger.LogAttrs(ctx, slog.LevelInfo, "digest flushed",
		logger.UserAddress(key.UserAddress),
		logger.Channel(string(key.Channel)),
		logger.PeriodKey(periodKey),
		slog.Int("member_count", len(ids)),
	)

	return nil
}

// Start launches the tick loop. The first tick runs immediately so a missed
// period is recovered right after startup.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return errors.New("digest scheduler already started")
	}

	var runCtx context.Context
	runCtx, s.cancel = context.WithCancel(ctx)
	s.running = true
	s.mu.Unlock()

	s.wg.Add(1)
	go s.run(runCtx)

	s.logger.LogAttrs(ctx, slog.LevelInfo, "digest scheduler started",
		logger.Component("digest"),
		slog.Duration("tick_interval", s.tickInterval),
	)

	return nil
}

// Stop cancels the tick loop, waits for it, and runs one final tick so any
// flush due at shutdown is not lost. Buffered items that are not yet due stay
// in the store.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return ErrSchedulerStopped
	}
	cancel := s.cancel
	s.cancel = nil
	s.running = false
	s.mu.Unlock()

	cancel()
	s.wg.Wait()

	ctx, cancelFinal := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelFinal()

	if err := s.Tick(ctx, s.clock()); err != nil {
		s.logger.LogAttrs(ctx, slog.LevelError, "final digest tick failed during shutdown",
			logger.Component("digest"),
			logger.Error(err),
		)
	}

	s.logger.LogAttrs(ctx, slog.LevelInfo, "digest scheduler stopped",
		logger.Component("digest"),
	)
	return nil
}

// Run returns a function suitable for errgroup.Group.Go.
func (s *Scheduler) Run(ctx context.Context) func() error {
	return func() error {
		if err := s.Start(ctx); err != nil {
			return err
		}

		<-ctx.Done()

		return s.Stop()
	}
}

func (s *Scheduler) run(ctx context.Context) {
	defer s.wg.Done()

	// Immediate tick on start covers flushes missed while the process was down.
	if err := s.Tick(ctx, s.clock()); err != nil {
		s.logger.LogAttrs(ctx, slog.LevelError, "startup digest tick failed",
			logger.Component("digest"),
			logger.Error(err),
		)
	}

	ticker := time.NewTicker(s.tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.Tick(ctx, s.clock()); err != nil {
				s.logger.LogAttrs(ctx, slog.LevelError, "digest tick failed",
					logger.Component("digest"),
					logger.Error(err),
				)
			}
		}
	}
}
