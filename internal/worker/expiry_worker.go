package worker

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/testnest/cbt-backend/internal/service"
)

// ExpiryWorker periodically runs the session engine's expiry sweep so
// overdue in-progress sessions are force-expired even when their clients
// never come back. The sweep itself is idempotent, so overlapping runs
// (or an operator-triggered manual sweep) are harmless.
type ExpiryWorker struct {
	sessions *service.SessionService
	interval time.Duration
	log      zerolog.Logger
}

// NewExpiryWorker creates a new ExpiryWorker.
func NewExpiryWorker(sessions *service.SessionService, interval time.Duration, log zerolog.Logger) *ExpiryWorker {
	return &ExpiryWorker{
		sessions: sessions,
		interval: interval,
		log:      log.With().Str("component", "expiry_worker").Logger(),
	}
}

// Start begins the sweep loop. Call in a goroutine.
func (w *ExpiryWorker) Start(ctx context.Context) {
	w.log.Info().Dur("interval", w.interval).Msg("Worker started")

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Worker stopped")
			return
		case <-ticker.C:
			count, err := w.sessions.SweepExpiredSessions(ctx)
			if err != nil {
				w.log.Error().Err(err).Msg("Sweep failed")
				continue
			}
			if count > 0 {
				w.log.Info().Int("expired", count).Msg("Sweep expired sessions")
			}
		}
	}
}
