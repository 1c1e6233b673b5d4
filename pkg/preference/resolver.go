package preference

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/poolfi/notifier/pkg/logger"
	"github.com/poolfi/notifier/pkg/notification"
)

// Mode classifies how a channel should handle a notification.
type Mode string

const (
	// ModeImmediate delivers right away through the dispatcher.
	ModeImmediate Mode = "immediate"
	// ModeDigest buffers the notification until the next scheduled flush.
	ModeDigest Mode = "digest"
	// ModeSuppressed produces no delivery. When ResumeAt is set on the
	// decision, the caller should re-resolve at that time (quiet hours).
	ModeSuppressed Mode = "suppressed"
)

// Decision is the resolver's verdict for one candidate channel.
type Decision struct {
	Channel  notification.Channel
	Mode     Mode
	ResumeAt *time.Time // end of the quiet-hours window, if that caused suppression
}

// Resolver decides, per user, type and channel, whether and when a
// notification should be delivered.
type Resolver struct {
	store  Storage
	logger *slog.Logger
	now    func() time.Time
}

// ResolverOption configures a Resolver.
type ResolverOption func(*Resolver)

// WithResolverLogger sets the logger for the Resolver.
func WithResolverLogger(l *slog.Logger) ResolverOption {
	return func(r *Resolver) {
		r.logger = l
	}
}

// WithResolverClock overrides the time source, used by tests.
func WithResolverClock(now func() time.Time) ResolverOption {
	return func(r *Resolver) {
		r.now = now
	}
}

// NewResolver creates a preference resolver backed by the given storage.
func NewResolver(store Storage, opts ...ResolverOption) (*Resolver, error) {
	if store == nil {
		return nil, ErrStorageNil
	}

	r := &Resolver{
		store:  store,
		logger: slog.Default(),
		now:    time.Now,
	}

	for _, opt := range opts {
		opt(r)
	}

	return r, nil
}

// Resolve classifies each candidate channel as immediate, digest or
// suppressed for the given user and notification type. Users without a stored
// preferences record get the defaults. The returned slice preserves the order
// of candidates.
func (r *Resolver) Resolve(ctx context.Context, userAddress string, t notification.Type, candidates []notification.Channel) ([]Decision, error) {
	prefs, err := r.store.Get(ctx, userAddress)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("load preferences for %s: %w", userAddress, err)
		}
		def := Default(userAddress)
		prefs = &def
	}

	decisions := make([]Decision, 0, len(candidates))
	for _, ch := range candidates {
		decisions = append(decisions, r.resolveChannel(ctx, *prefs, t, ch))
	}
	return decisions, nil
}

func (r *Resolver) resolveChannel(ctx context.Context, prefs Preferences, t notification.Type, ch notification.Channel) Decision {
	if !prefs.ChannelEnabled(ch, t) {
		return Decision{Channel: ch, Mode: ModeSuppressed}
	}

	switch ch {
	case notification.ChannelEmail:
		return r.resolveEmail(ctx, prefs, t)
	case notification.ChannelPush, notification.ChannelInApp:
		return r.resolveRealtime(prefs, t, ch)
	default:
		return Decision{Channel: ch, Mode: ModeSuppressed}
	}
}

// resolveEmail applies digest batching. Urgent types always force immediate
// delivery. A malformed digest time is a ConfigInvalid condition: it is
// logged and the notification falls back to immediate, never dropped.
func (r *Resolver) resolveEmail(ctx context.Context, prefs Preferences, t notification.Type) Decision {
	d := Decision{Channel: notification.ChannelEmail, Mode: ModeImmediate}

	if prefs.Email.DigestFrequency == DigestImmediate || t.Urgent() {
		return d
	}

	if _, _, err := ParseTimeOfDay(prefs.Email.DigestTime); err != nil {
		r.logger.LogAttrs(ctx, slog.LevelWarn, "invalid digest time, falling back to immediate delivery",
			logger.UserAddress(prefs.UserAddress),
			slog.String("digest_time", prefs.Email.DigestTime),
			logger.Error(err),
		)
		return d
	}

	d.Mode = ModeDigest
	return d
}

// resolveRealtime defers non-urgent push and in-app notifications that fall
// inside the user's quiet-hours window. The resolver reports the window end;
// scheduling the re-resolve is the caller's timer's job.
func (r *Resolver) resolveRealtime(prefs Preferences, t notification.Type, ch notification.Channel) Decision {
	d := Decision{Channel: ch, Mode: ModeImmediate}

	if !prefs.Quiet.Enabled || t.Urgent() {
		return d
	}

	resumeAt, inside, err := quietWindowEnd(prefs.Quiet, r.now())
	if err != nil {
		r.logger.LogAttrs(context.Background(), slog.LevelWarn, "invalid quiet hours window, delivering immediately",
			logger.UserAddress(prefs.UserAddress),
			logger.Error(err),
		)
		return d
	}
	if inside {
		d.Mode = ModeSuppressed
		d.ResumeAt = &resumeAt
	}
	return d
}

// ParseTimeOfDay parses a "15:04" time-of-day string. It returns
// ErrConfigInvalid for anything else.
func ParseTimeOfDay(s string) (hour, minute int, err error) {
	parsed, perr := time.Parse("15:04", s)
	if perr != nil {
		return 0, 0, fmt.Errorf("%w: digest time %q is not a valid HH:MM value", ErrConfigInvalid, s)
	}
	return parsed.Hour(), parsed.Minute(), nil
}

// quietWindowEnd reports whether now falls inside the quiet window and, if
// so, when the window ends. Windows may wrap past midnight (22:00-08:00).
func quietWindowEnd(q QuietHours, now time.Time) (time.Time, bool, error) {
	startH, startM, err := ParseTimeOfDay(q.Start)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("%w: quiet hours start %q", ErrConfigInvalid, q.Start)
	}
	endH, endM, err := ParseTimeOfDay(q.End)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("%w: quiet hours end %q", ErrConfigInvalid, q.End)
	}

	start := time.Date(now.Year(), now.Month(), now.Day(), startH, startM, 0, 0, now.Location())
	end := time.Date(now.Year(), now.Month(), now.Day(), endH, endM, 0, 0, now.Location())

	if !end.After(start) {
		// Window wraps midnight: inside means after start today or before end today.
		switch {
		case !now.Before(start):
			return end.AddDate(0, 0, 1), true, nil
		case now.Before(end):
			return end, true, nil
		default:
			return time.Time{}, false, nil
		}
	}

	if !now.Before(start) && now.Before(end) {
		return end, true, nil
	}
	return time.Time{}, false, nil
}
