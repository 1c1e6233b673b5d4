package notifier

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/poolfi/notifier/pkg/digest"
	"github.com/poolfi/notifier/pkg/dispatch"
	"github.com/poolfi/notifier/pkg/event"
	"github.com/poolfi/notifier/pkg/grouping"
	"github.com/poolfi/notifier/pkg/logger"
	"github.com/poolfi/notifier/pkg/notification"
	"github.com/poolfi/notifier/pkg/preference"
)

// Service is the application-facing facade. It owns the full notification
// pipeline: persist, record, group, resolve preferences, then either
// dispatch immediately, buffer for a digest, or suppress.
type Service struct {
	notifs     notification.Storage
	prefs      preference.Storage
	resolver   *preference.Resolver
	dispatcher *dispatch.Dispatcher
	scheduler  *digest.Scheduler
	groups     *grouping.Engine
	recorder   *event.Recorder
	logger     *slog.Logger
	clock      func() time.Time

	// channels are the candidate channels evaluated for every notification.
	channels []notification.Channel

	timersMu sync.Mutex
	timers   map[string]*time.Timer
	running  bool
	wg       sync.WaitGroup
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithServiceLogger sets the logger for the Service.
func WithServiceLogger(l *slog.Logger) ServiceOption {
	return func(s *Service) {
		s.logger = l
	}
}

// WithServiceClock overrides the time source, used by tests.
func WithServiceClock(now func() time.Time) ServiceOption {
	return func(s *Service) {
		s.clock = now
	}
}

// WithChannels restricts the candidate channels evaluated per notification.
// The default is every known channel.
func WithChannels(chs ...notification.Channel) ServiceOption {
	return func(s *Service) {
		if len(chs) > 0 {
			s.channels = chs
		}
	}
}

// NewService creates the notification service facade.
func NewService(
	notifs notification.Storage,
	prefs preference.Storage,
	resolver *preference.Resolver,
	dispatcher *dispatch.Dispatcher,
	scheduler *digest.Scheduler,
	groups *grouping.Engine,
	recorder *event.Recorder,
	opts ...ServiceOption,
) (*Service, error) {
	if notifs == nil || prefs == nil {
		return nil, fmt.Errorf("%w: storage", ErrDependencyNil)
	}
	if resolver == nil || dispatcher == nil || scheduler == nil || groups == nil || recorder == nil {
		return nil, ErrDependencyNil
	}

	s := &Service{
		notifs:     notifs,
		prefs:      prefs,
		resolver:   resolver,
		dispatcher: dispatcher,
		scheduler:  scheduler,
		groups:     groups,
		recorder:   recorder,
		logger:     slog.Default(),
		clock:      time.Now,
		channels:   notification.AllChannels,
		timers:     make(map[string]*time.Timer),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s, nil
}

// CreateInput describes a notification to create. Channels defaults to
// every candidate channel when empty.
type CreateInput struct {
	Type        notification.Type
	UserAddress string
	PoolID      string
	Title       string
	Message     string
	Payload     map[string]any
	Channels    []notification.Channel
}

func (in CreateInput) validate() error {
	if in.UserAddress == "" {
		return notification.ErrMissingUserAddress
	}
	if !in.Type.Valid() {
		return notification.ErrInvalidType
	}
	if in.Title == "" {
		return ErrMissingTitle
	}
	return nil
}

// Notify persists the notification, records its creation, indexes it into
// the user's groups and routes it per channel according to the user's
// preferences. The notification itself is always stored, even when every
// channel resolves to suppressed; suppression governs delivery only.
func (s *Service) Notify(ctx context.Context, in CreateInput) (*notification.Notification, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	notif := notification.Notification{
		ID:          uuid.New().String(),
		Type:        in.Type,
		UserAddress: in.UserAddress,
		PoolID:      in.PoolID,
		Title:       in.Title,
		Message:     in.Message,
		Payload:     in.Payload,
		CreatedAt:   s.clock(),
	}

	if err := s.notifs.Create(ctx, notif); err != nil {
		return nil, fmt.Errorf("store notification: %w", err)
	}

	if _, err := s.recorder.Record(ctx, notif.ID, event.TypeCreated, notif.UserAddress,
		event.WithMetadata("type", string(notif.Type)),
	); err != nil {
		return nil, err
	}

	if _, err := s.groups.Index(ctx, notif); err != nil {
		// Grouping is a display concern; a failure must not block delivery.
		s.logger.LogAttrs(ctx, slog.LevelWarn, "failed to index notification into group",
			logger.NotificationID(notif.ID),
			logger.Error(err),
		)
	}

	candidates := in.Channels
	if len(candidates) == 0 {
		candidates = s.channels
	}

	if err := s.route(ctx, notif, candidates); err != nil {
		return nil, err
	}

	return &notif, nil
}

// route applies preference decisions to the candidate channels.
func (s *Service) route(ctx context.Context, notif notification.Notification, candidates []notification.Channel) error {
	decisions, err := s.resolver.Resolve(ctx, notif.UserAddress, notif.Type, candidates)
	if err != nil {
		return err
	}

	var errs []error
	for _, d := range decisions {
		switch d.Mode {
		case preference.ModeImmediate:
			if _, err := s.dispatcher.Enqueue(ctx, notif, d.Channel); err != nil {
				if errors.Is(err, dispatch.ErrDuplicateDelivery) {
					continue
				}
				errs = append(errs, fmt.Errorf("enqueue %s delivery: %w", d.Channel, err))
			}
		case preference.ModeDigest:
			if err := s.scheduler.Buffer(ctx, notif.UserAddress, d.Channel, notif.ID); err != nil {
				errs = append(errs, err)
			}
		case preference.ModeSuppressed:
			if d.ResumeAt != nil {
				// Quiet hours: deliver when the window ends.
				s.scheduleResume(notif, d.Channel, *d.ResumeAt)
			}
			s.logger.LogAttrs(ctx, slog.LevelDebug, "channel suppressed by preferences",
				logger.NotificationID(notif.ID),
				logger.Channel(string(d.Channel)),
			)
		}
	}
	return errors.Join(errs...)
}

// scheduleResume re-routes the channel once the quiet-hours window ends.
// The re-route goes through the resolver again, so a preference change made
// during the window is honored.
func (s *Service) scheduleResume(notif notification.Notification, ch notification.Channel, at time.Time) {
	s.timersMu.Lock()
	defer s.timersMu.Unlock()

	if !s.running {
		// Resume timers only live in a started service; the delivery for
		// this channel is skipped, not retried later.
		s.logger.LogAttrs(context.Background(), slog.LevelWarn, "dropping quiet-hours resume, service not started",
			logger.NotificationID(notif.ID),
			logger.Channel(string(ch)),
			slog.Time("resume_at", at),
		)
		return
	}

	key := notif.ID + "|" + string(ch)
	if _, exists := s.timers[key]; exists {
		return
	}

	delay := time.Until(at)
	if delay < 0 {
		delay = 0
	}

	s.wg.Add(1)
	s.timers[key] = time.AfterFunc(delay, func() {
		defer s.wg.Done()

		s.timersMu.Lock()
		delete(s.timers, key)
		running := s.running
		s.timersMu.Unlock()
		if !running {
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := s.route(ctx, notif, []notification.Channel{ch}); err != nil {
			s.logger.LogAttrs(ctx, slog.LevelError, "failed to deliver after quiet hours",
				logger.NotificationID(notif.ID),
				logger.Channel(string(ch)),
				logger.Error(err),
			)
		}
	})
}

// Preferences returns the user's saved preferences, or the defaults when
// none were ever saved.
func (s *Service) Preferences(ctx context.Context, userAddress string) (*preference.Preferences, error) {
	prefs, err := s.prefs.Get(ctx, userAddress)
	if err != nil {
		if errors.Is(err, preference.ErrNotFound) {
			def := preference.Default(userAddress)
			return &def, nil
		}
		return nil, err
	}
	return prefs, nil
}

// UpdatePreferences merges a partial update into the user's preferences,
// creating the record from defaults on first write.
func (s *Service) UpdatePreferences(ctx context.Context, userAddress string, upd preference.Update) (*preference.Preferences, error) {
	prefs, err := s.Preferences(ctx, userAddress)
	if err != nil {
		return nil, err
	}

	prefs.Apply(upd)

	if err := s.prefs.Save(ctx, *prefs); err != nil {
		return nil, fmt.Errorf("save preferences for %s: %w", userAddress, err)
	}

	s.logger.LogAttrs(ctx, slog.LevelInfo, "preferences updated",
		logger.UserAddress(userAddress),
	)
	return prefs, nil
}
