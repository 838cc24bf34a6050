package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testnest/cbt-backend/internal/model"
)

// AnalyticsRepository serves the read-only aggregate queries behind the
// Analytics Aggregator. It never mutates session state.
type AnalyticsRepository struct {
	pool *pgxpool.Pool
}

// NewAnalyticsRepository creates a new AnalyticsRepository.
func NewAnalyticsRepository(pool *pgxpool.Pool) *AnalyticsRepository {
	return &AnalyticsRepository{pool: pool}
}

// GetTestAggregates computes the test-level summary in one pass over the
// sessions table. COALESCE keeps every numeric well-defined when the test
// has no sessions or no completed sessions.
func (r *AnalyticsRepository) GetTestAggregates(ctx context.Context, testID uuid.UUID, ownerID int) (*model.TestAnalytics, error) {
	a := &model.TestAnalytics{TestID: testID}
	err := r.pool.QueryRow(ctx,
		`SELECT
			COUNT(*)::int,
			COUNT(*) FILTER (WHERE status = 'COMPLETED')::int,
			COUNT(*) FILTER (WHERE status = 'ABANDONED')::int,
			COUNT(*) FILTER (WHERE status = 'EXPIRED')::int,
			COUNT(*) FILTER (WHERE status = 'IN_PROGRESS')::int,
			COALESCE(AVG(score) FILTER (WHERE status = 'COMPLETED'), 0)::float8,
			COALESCE(MAX(score) FILTER (WHERE status = 'COMPLETED'), 0)::float8,
			COALESCE(MIN(score) FILTER (WHERE status = 'COMPLETED'), 0)::float8,
			COALESCE(AVG(CASE WHEN is_passed THEN 1.0 ELSE 0.0 END)
				FILTER (WHERE status = 'COMPLETED'), 0)::float8,
			COALESCE(AVG(EXTRACT(EPOCH FROM finished_at - started_at))
				FILTER (WHERE status = 'COMPLETED'), 0)::float8
		 FROM test_sessions
		 WHERE test_id = $1 AND owner_id = $2`,
		testID, ownerID,
	).Scan(
		&a.TotalSessions, &a.CompletedSessions, &a.AbandonedSessions, &a.ExpiredSessions,
		&a.InProgress, &a.AverageScore, &a.HighestScore, &a.LowestScore,
		&a.PassRate, &a.AverageDuration,
	)
	if err != nil {
		return nil, err
	}
	if a.TotalSessions > 0 {
		a.AbandonmentRate = float64(a.AbandonedSessions) / float64(a.TotalSessions)
	}
	return a, nil
}
