package engine

import (
	"context"
	"errors"

	"github.com/tsera-dev/tsera/internal/watch"
)

// WatchReporter observes watch-mode cycles. Errors from individual
// cycles are reported here and do not stop the loop; drift is retried
// on the next trigger.
type WatchReporter func(report CycleReport, err error)

// Watch runs cycles continuously: one immediately, then one after every
// debounced batch of entity changes, until ctx is cancelled.
//
// Triggers coalesce through a single-slot queue (a buffered channel of
// size one): a burst of flushes during a long cycle collapses into
// exactly one follow-up cycle, which covers the union of changed paths
// because every cycle re-reads all entity inputs. This is what keeps
// cycles strictly sequential without any locking in the engine proper.
func (e *Engine) Watch(ctx context.Context, report WatchReporter) error {
	trigger := make(chan struct{}, 1)

	w, err := watch.New(e.watchDir, func(batch []watch.Event) {
		e.logger.Debug("entity changes detected", "paths", watch.Paths(batch))
		select {
		case trigger <- struct{}{}:
		default:
			// A rerun is already queued; this batch folds into it.
		}
	}, watch.Options{
		Debounce: e.debounce,
		Ignore:   e.ignore,
		Logger:   e.logger,
		OnError: func(werr error) {
			e.logger.Warn("watch source error", "error", werr)
		},
	})
	if err != nil {
		return err
	}
	defer w.Close()

	runCycle := func() error {
		rep, runErr := e.RunOnce(ctx)
		if report != nil {
			report(rep, runErr)
		}
		// Cancellation ends the loop; cycle failures do not.
		if runErr != nil && errors.Is(runErr, ctx.Err()) && ctx.Err() != nil {
			return runErr
		}
		return nil
	}

	if err := runCycle(); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-trigger:
			if err := runCycle(); err != nil {
				return err
			}
		}
	}
}
