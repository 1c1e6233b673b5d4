package dispatch

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/poolfi/notifier/pkg/logger"
)

// Start launches the background loops: the retry pump that picks up due
// PENDING deliveries and the provider confirmation loop.
func (d *Dispatcher) Start(ctx context.Context) error {
	d.mu.Lock()
	if d.running {
		d.mu.Unlock()
		return errors.New("dispatcher already started")
	}

	var runCtx context.Context
	runCtx, d.cancel = context.WithCancel(ctx)
	d.running = true
	d.mu.Unlock()

	d.wg.Add(2)
	go d.runPump(runCtx)
	go d.runConfirmations(runCtx)

	d.logger.LogAttrs(ctx, slog.LevelInfo, "dispatcher started",
		logger.Component("dispatch"),
		slog.Duration("pull_interval", d.pullInterval),
		slog.Int("max_concurrent", d.maxConcurrent),
	)

	return nil
}

// Stop cancels the background loops and waits for in-flight attempts to
// finish.
func (d *Dispatcher) Stop() error {
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return ErrDispatcherStopped
	}
	cancel := d.cancel
	d.cancel = nil
	d.running = false
	d.mu.Unlock()

	cancel()
	d.wg.Wait()

	d.logger.LogAttrs(context.Background(), slog.LevelInfo, "dispatcher stopped",
		logger.Component("dispatch"),
	)

	return nil
}

// Run returns a function suitable for errgroup.Group.Go.
func (d *Dispatcher) Run(ctx context.Context) func() error {
	return func() error {
		if err := d.Start(ctx); err != nil {
			return err
		}

		<-ctx.Done()

		return d.Stop()
	}
}

// runPump polls storage for due deliveries and attempts them, at most
// maxConcurrent sends in parallel.
func (d *Dispatcher) runPump(ctx context.Context) {
	defer d.wg.Done()

	grp := new(errgroup.Group)
	grp.SetLimit(d.maxConcurrent)
	// Attempt errors are logged per delivery; Wait only fences shutdown.
	defer func() { _ = grp.Wait() }()

	ticker := time.NewTicker(d.pullInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.pumpOnce(ctx, grp)
		}
	}
}

func (d *Dispatcher) pumpOnce(ctx context.Context, grp *errgroup.Group) {
	sctx, cancel := context.WithTimeout(ctx, d.storeTimeout)
	due, err := d.storage.DueForAttempt(sctx, time.Now(), d.maxConcurrent)
	cancel()
	if err != nil {
		d.logger.LogAttrs(ctx, slog.LevelError, "failed to poll due deliveries",
			logger.Component("dispatch"),
			logger.Error(err),
		)
		return
	}

	for _, delivery := range due {
		id := delivery.ID
		grp.Go(func() error {
			err := d.AttemptSend(ctx, id)
			// A concurrent attempt or a racing terminal transition is
			// expected under parallel workers, not an error.
			if err != nil && !errors.Is(err, ErrAttemptInFlight) && !errors.Is(err, ErrTerminalState) {
				d.logger.LogAttrs(ctx, slog.LevelError, "send attempt failed",
					logger.DeliveryID(id),
					logger.Error(err),
				)
			}
			return nil
		})
	}
}
