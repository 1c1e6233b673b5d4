package notifier

import (
	"context"
	"errors"
	"log/slog"

	"github.com/poolfi/notifier/pkg/digest"
	"github.com/poolfi/notifier/pkg/grouping"
	"github.com/poolfi/notifier/pkg/logger"
	"github.com/poolfi/notifier/pkg/notification"
)

// Start launches the dispatcher and the digest scheduler and enables
// quiet-hours resume timers.
func (s *Service) Start(ctx context.Context) error {
	s.timersMu.Lock()
	if s.running {
		s.timersMu.Unlock()
		return ErrAlreadyStarted
	}
	s.running = true
	s.timersMu.Unlock()

	if err := s.dispatcher.Start(ctx); err != nil {
		return err
	}
	if err := s.scheduler.Start(ctx); err != nil {
		serr := s.dispatcher.Stop()
		return errors.Join(err, serr)
	}

	s.logger.LogAttrs(ctx, slog.LevelInfo, "notification service started",
		logger.Component("notifier"),
	)
	return nil
}

// Stop shuts the pipeline down in reverse order: no new flushes, then no
// new sends, then drop pending resume timers.
func (s *Service) Stop() error {
	s.timersMu.Lock()
	if !s.running {
		s.timersMu.Unlock()
		return ErrNotStarted
	}
	s.running = false
	for key, t := range s.timers {
		if t.Stop() {
			s.wg.Done()
		}
		delete(s.timers, key)
	}
	s.timersMu.Unlock()

	errs := []error{
		s.scheduler.Stop(),
		s.dispatcher.Stop(),
	}
	s.wg.Wait()

	s.logger.LogAttrs(context.Background(), slog.LevelInfo, "notification service stopped",
		logger.Component("notifier"),
	)
	return errors.Join(errs...)
}

// Run returns a function suitable for errgroup.Group.Go.
func (s *Service) Run(ctx context.Context) func() error {
	return func() error {
		if err := s.Start(ctx); err != nil {
			return err
		}

		<-ctx.Done()

		return s.Stop()
	}
}

// DigestIndexer adapts the grouping engine to the digest scheduler's
// indexing hook.
func DigestIndexer(engine *grouping.Engine) digest.Indexer {
	return groupIndexer{engine: engine}
}

type groupIndexer struct {
	engine *grouping.Engine
}

func (g groupIndexer) Index(ctx context.Context, notif notification.Notification) error {
	_, err := g.engine.Index(ctx, notif)
	return err
}
