package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testnest/cbt-backend/internal/model"
)

// TestRepository is the Test Catalog's storage: immutable-during-session
// test configuration, question selection, and the rolling score stats
// maintained per test.
type TestRepository struct {
	pool *pgxpool.Pool
}

// NewTestRepository creates a new TestRepository.
func NewTestRepository(pool *pgxpool.Pool) *TestRepository {
	return &TestRepository{pool: pool}
}

// GetByID retrieves a test with its rolling stats block.
func (r *TestRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Test, error) {
	t := &model.Test{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, owner_id, subject_id, title, status, duration_minutes, passing_score,
		        access_code, scheduled_start, scheduled_end, question_selection, question_count,
		        stats_attempts, stats_mean, stats_m2, stats_highest, stats_lowest,
		        created_at, updated_at
		 FROM tests WHERE id = $1`, id,
	).Scan(
		&t.ID, &t.OwnerID, &t.SubjectID, &t.Title, &t.Status, &t.DurationMinutes, &t.PassingScore,
		&t.AccessCode, &t.ScheduledStart, &t.ScheduledEnd, &t.QuestionSelection, &t.QuestionCount,
		&t.Stats.Attempts, &t.Stats.MeanScore, &t.Stats.M2, &t.Stats.HighestScore, &t.Stats.LowestScore,
		&t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return t, nil
}

// SelectQuestionIDs resolves the test's question set once, at session
// creation. Selection policy is owned here, not by the session engine:
// MANUAL returns the curated list in order, RANDOM samples question_count
// entries from the subject bank, MIXED keeps the manual list and fills the
// remainder with a random sample excluding the manual picks.
func (r *TestRepository) SelectQuestionIDs(ctx context.Context, t *model.Test) ([]uuid.UUID, error) {
	switch t.QuestionSelection {
	case model.SelectionRandom:
		return r.randomQuestionIDs(ctx, t, t.QuestionCount, nil)
	case model.SelectionMixed:
		manual, err := r.manualQuestionIDs(ctx, t.ID)
		if err != nil {
			return nil, err
		}
		fill := t.QuestionCount - len(manual)
		if fill <= 0 {
			return manual, nil
		}
		random, err := r.randomQuestionIDs(ctx, t, fill, manual)
		if err != nil {
			return nil, err
		}
		return append(manual, random...), nil
	default: // MANUAL
		return r.manualQuestionIDs(ctx, t.ID)
	}
}

func (r *TestRepository) manualQuestionIDs(ctx context.Context, testID uuid.UUID) ([]uuid.UUID, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT question_id FROM test_questions
		 WHERE test_id = $1 ORDER BY order_num`, testID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectIDs(rows)
}

func (r *TestRepository) randomQuestionIDs(ctx context.Context, t *model.Test, limit int, exclude []uuid.UUID) ([]uuid.UUID, error) {
	if exclude == nil {
		exclude = []uuid.UUID{}
	}
	rows, err := r.pool.Query(ctx,
		`SELECT id FROM questions
		 WHERE subject_id = $1 AND NOT (id = ANY($2))
		 ORDER BY random() LIMIT $3`,
		t.SubjectID, exclude, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectIDs(rows)
}

// ApplyOutcome folds one completed-session score into the test's rolling
// stats. The whole Welford step (count, mean, M2, high/low) is a single
// UPDATE whose right-hand sides read the pre-update column values, so
// concurrent completions serialize on the row lock instead of losing
// updates to a read-modify-write.
func (r *TestRepository) ApplyOutcome(ctx context.Context, testID uuid.UUID, score float64) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE tests SET
			stats_attempts = stats_attempts + 1,
			stats_mean = stats_mean + ($2 - stats_mean) / (stats_attempts + 1),
			stats_m2 = stats_m2 + ($2 - stats_mean) *
				($2 - (stats_mean + ($2 - stats_mean) / (stats_attempts + 1))),
			stats_highest = GREATEST(stats_highest, $2),
			stats_lowest = CASE WHEN stats_attempts = 0 THEN $2 ELSE LEAST(stats_lowest, $2) END,
			updated_at = NOW()
		 WHERE id = $1`, testID, score)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// RecomputeStats rebuilds a test's rolling stats from scratch out of its
// completed sessions. Run periodically as a reconciliation pass behind the
// incremental ApplyOutcome updates.
func (r *TestRepository) RecomputeStats(ctx context.Context, testID uuid.UUID) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE tests t SET
			stats_attempts = agg.n,
			stats_mean = agg.mean,
			stats_m2 = agg.m2,
			stats_highest = agg.highest,
			stats_lowest = agg.lowest,
			updated_at = NOW()
		 FROM (
			SELECT
				COUNT(*)::int AS n,
				COALESCE(AVG(score), 0)::float8 AS mean,
				COALESCE(VAR_SAMP(score) * GREATEST(COUNT(*) - 1, 0), 0)::float8 AS m2,
				COALESCE(MAX(score), 0)::float8 AS highest,
				COALESCE(MIN(score), 0)::float8 AS lowest
			FROM test_sessions
			WHERE test_id = $1 AND status = $2
		 ) AS agg
		 WHERE t.id = $1`, testID, model.SessionStatusCompleted)
	return err
}

// ListIDsWithSessions returns ids of tests that have at least one
// completed session, for the reconcile pass.
func (r *TestRepository) ListIDsWithSessions(ctx context.Context) ([]uuid.UUID, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT DISTINCT test_id FROM test_sessions WHERE status = $1`,
		model.SessionStatusCompleted)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectIDs(rows)
}

func collectIDs(rows pgx.Rows) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
