package worker

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/testnest/cbt-backend/internal/repository"
)

// ReconcileWorker periodically recomputes every test's rolling stats from
// scratch out of its completed sessions. The incremental outcome updates
// are atomic but delivered at-least-once; this pass keeps the stats
// convergent regardless of redeliveries or dropped outcomes.
type ReconcileWorker struct {
	tests    *repository.TestRepository
	interval time.Duration
	log      zerolog.Logger
}

// NewReconcileWorker creates a new ReconcileWorker.
func NewReconcileWorker(tests *repository.TestRepository, interval time.Duration, log zerolog.Logger) *ReconcileWorker {
	return &ReconcileWorker{
		tests:    tests,
		interval: interval,
		log:      log.With().Str("component", "reconcile_worker").Logger(),
	}
}

// Start begins the reconcile loop. Call in a goroutine.
func (w *ReconcileWorker) Start(ctx context.Context) {
	w.log.Info().Dur("interval", w.interval).Msg("Worker started")

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Worker stopped")
			return
		case <-ticker.C:
			w.reconcile(ctx)
		}
	}
}

func (w *ReconcileWorker) reconcile(ctx context.Context) {
	ids, err := w.tests.ListIDsWithSessions(ctx)
	if err != nil {
		w.log.Error().Err(err).Msg("List tests failed")
		return
	}

	for _, id := range ids {
		if err := w.tests.RecomputeStats(ctx, id); err != nil {
			w.log.Warn().Err(err).Str("test_id", id.String()).Msg("Recompute failed")
		}
	}

	if len(ids) > 0 {
		w.log.Debug().Int("tests", len(ids)).Msg("Stats reconciled")
	}
}
