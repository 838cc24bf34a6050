package worker

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/testnest/cbt-backend/internal/config"
	"github.com/testnest/cbt-backend/internal/model"
	"github.com/testnest/cbt-backend/internal/repository"
)

// OutcomeWorker consumes session_outcomes_queue and folds completed
// session scores into each test's rolling stats. Delivery is
// at-least-once (failed items are requeued); the reconcile worker bounds
// any drift from redelivery.
type OutcomeWorker struct {
	tests *repository.TestRepository
	rdb   *redis.Client
	log   zerolog.Logger
}

// NewOutcomeWorker creates a new OutcomeWorker.
func NewOutcomeWorker(tests *repository.TestRepository, rdb *redis.Client, log zerolog.Logger) *OutcomeWorker {
	return &OutcomeWorker{
		tests: tests,
		rdb:   rdb,
		log:   log.With().Str("component", "outcome_worker").Logger(),
	}
}

// Start begins the infinite worker loop. Call in a goroutine.
func (w *OutcomeWorker) Start(ctx context.Context) {
	w.log.Info().Msg("Worker started")

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Worker stopping...")
			// Drain remaining items before exit.
			w.drain(context.Background())
			w.log.Info().Msg("Worker stopped")
			return
		default:
			w.processNext(ctx)
		}
	}
}

func (w *OutcomeWorker) processNext(ctx context.Context) {
	// BLPop blocks until an item is available or timeout (1 second).
	result, err := w.rdb.BLPop(ctx, time.Second, config.WorkerKey.SessionOutcomesQueue).Result()
	if err != nil {
		if err != redis.Nil && ctx.Err() == nil {
			w.log.Error().Err(err).Msg("BLPop error")
		}
		return
	}

	if len(result) < 2 {
		return
	}

	var outcome model.SessionOutcome
	if err := json.Unmarshal([]byte(result[1]), &outcome); err != nil {
		w.log.Error().Err(err).Msg("Unmarshal error")
		return
	}

	if err := w.apply(ctx, &outcome); err != nil {
		w.log.Error().Err(err).
			Str("test_id", outcome.TestID.String()).
			Str("session_id", outcome.SessionID.String()).
			Msg("Apply error, retrying in 5s")
		// Push back to queue for retry.
		w.rdb.RPush(ctx, config.WorkerKey.SessionOutcomesQueue, result[1])
		time.Sleep(5 * time.Second)
	}
}

func (w *OutcomeWorker) apply(ctx context.Context, outcome *model.SessionOutcome) error {
	err := w.tests.ApplyOutcome(ctx, outcome.TestID, float64(outcome.Score))
	if err == repository.ErrNotFound {
		// Test deleted after completion; drop the outcome.
		w.log.Warn().Str("test_id", outcome.TestID.String()).Msg("outcome for missing test dropped")
		return nil
	}
	return err
}

// drain processes all remaining items in the queue before shutdown.
func (w *OutcomeWorker) drain(ctx context.Context) {
	drained := 0
	for {
		result, err := w.rdb.LPop(ctx, config.WorkerKey.SessionOutcomesQueue).Result()
		if err != nil {
			break
		}

		var outcome model.SessionOutcome
		if err := json.Unmarshal([]byte(result), &outcome); err != nil {
			w.log.Error().Err(err).Msg("Drain unmarshal error")
			continue
		}

		if err := w.apply(ctx, &outcome); err != nil {
			w.log.Error().Err(err).Msg("Drain apply error")
			w.rdb.RPush(ctx, config.WorkerKey.SessionOutcomesQueue, result)
			break
		}
		drained++
	}

	if drained > 0 {
		w.log.Info().Int("count", drained).Msg("Drained remaining items")
	}
}
