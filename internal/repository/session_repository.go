package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testnest/cbt-backend/internal/model"
)

const sessionColumns = `id, test_id, student_id, owner_id, status, started_at, finished_at,
	assigned_question_ids, total_questions, answers, time_remaining_seconds,
	current_question_index, score, correct_count, incorrect_count, unanswered_count,
	is_passed, access_code_used, browser_info, flagged, admin_notes, version`

// SessionRepository is the durable Session Store: one row per session with
// a JSONB answers document, conditional terminal transitions and a version
// column for optimistic concurrency on answer writes.
type SessionRepository struct {
	pool *pgxpool.Pool
}

// NewSessionRepository creates a new SessionRepository.
func NewSessionRepository(pool *pgxpool.Pool) *SessionRepository {
	return &SessionRepository{pool: pool}
}

func scanSession(row pgx.Row) (*model.TestSession, error) {
	s := &model.TestSession{}
	var answersRaw []byte
	err := row.Scan(
		&s.ID, &s.TestID, &s.StudentID, &s.OwnerID, &s.Status, &s.StartedAt, &s.FinishedAt,
		&s.AssignedQuestionIDs, &s.TotalQuestions, &answersRaw, &s.TimeRemainingSeconds,
		&s.CurrentQuestionIndex, &s.Score, &s.CorrectCount, &s.IncorrectCount, &s.UnansweredCount,
		&s.IsPassed, &s.AccessCodeUsed, &s.BrowserInfo, &s.Flagged, &s.AdminNotes, &s.Version,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if len(answersRaw) > 0 {
		if err := json.Unmarshal(answersRaw, &s.Answers); err != nil {
			return nil, fmt.Errorf("decode answers: %w", err)
		}
	}
	if s.Answers == nil {
		s.Answers = model.AnswerMap{}
	}
	return s, nil
}

// Create inserts a new IN_PROGRESS session. The partial unique index on
// (test_id, student_id) WHERE status = 'IN_PROGRESS' closes the
// create-or-resume race at the storage layer; a conflicting insert returns
// ErrActiveSessionExists so the engine can fall back to the resume path.
func (r *SessionRepository) Create(ctx context.Context, s *model.TestSession) error {
	answersRaw, err := json.Marshal(s.Answers)
	if err != nil {
		return fmt.Errorf("encode answers: %w", err)
	}

	err = r.pool.QueryRow(ctx,
		`INSERT INTO test_sessions
			(test_id, student_id, owner_id, status, assigned_question_ids, total_questions,
			 answers, time_remaining_seconds, current_question_index, access_code_used, browser_info)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		 RETURNING id, started_at, version`,
		s.TestID, s.StudentID, s.OwnerID, model.SessionStatusInProgress,
		s.AssignedQuestionIDs, s.TotalQuestions, answersRaw, s.TimeRemainingSeconds,
		s.CurrentQuestionIndex, s.AccessCodeUsed, s.BrowserInfo,
	).Scan(&s.ID, &s.StartedAt, &s.Version)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrActiveSessionExists
		}
		return err
	}
	s.Status = model.SessionStatusInProgress
	return nil
}

// GetByID retrieves a session by id.
func (r *SessionRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.TestSession, error) {
	return scanSession(r.pool.QueryRow(ctx,
		`SELECT `+sessionColumns+` FROM test_sessions WHERE id = $1`, id))
}

// GetActive retrieves the IN_PROGRESS session for a (test, student) pair.
func (r *SessionRepository) GetActive(ctx context.Context, testID uuid.UUID, studentID int) (*model.TestSession, error) {
	return scanSession(r.pool.QueryRow(ctx,
		`SELECT `+sessionColumns+` FROM test_sessions
		 WHERE test_id = $1 AND student_id = $2 AND status = $3`,
		testID, studentID, model.SessionStatusInProgress))
}

// UpdateResume persists the recomputed remaining time and merged browser
// info on resume. Conditional on the session still being in progress.
func (r *SessionRepository) UpdateResume(ctx context.Context, s *model.TestSession) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE test_sessions
		 SET time_remaining_seconds = $1, browser_info = $2
		 WHERE id = $3 AND status = $4`,
		s.TimeRemainingSeconds, s.BrowserInfo, s.ID, model.SessionStatusInProgress)
	return err
}

// ApplyAnswers writes the full answers document plus time accounting under
// optimistic concurrency: the update only lands if the version still
// matches and the session is still in progress. Returns false when the
// version check (or the status guard) fails, so the engine can re-read and
// retry without losing a concurrent submission for another question.
func (r *SessionRepository) ApplyAnswers(
	ctx context.Context,
	id uuid.UUID,
	version int,
	answers model.AnswerMap,
	timeRemainingSeconds, currentQuestionIndex int,
) (bool, error) {
	answersRaw, err := json.Marshal(answers)
	if err != nil {
		return false, fmt.Errorf("encode answers: %w", err)
	}

	tag, err := r.pool.Exec(ctx,
		`UPDATE test_sessions
		 SET answers = $1, time_remaining_seconds = $2, current_question_index = $3,
		     version = version + 1
		 WHERE id = $4 AND status = $5 AND version = $6`,
		answersRaw, timeRemainingSeconds, currentQuestionIndex,
		id, model.SessionStatusInProgress, version)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// Checkpoint is the lightweight autosave write: last-write-wins on the
// client-reported remaining time and position, conditional on the session
// still being in progress.
func (r *SessionRepository) Checkpoint(ctx context.Context, id uuid.UUID, currentQuestionIndex, timeRemainingSeconds int) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE test_sessions
		 SET current_question_index = $1, time_remaining_seconds = $2
		 WHERE id = $3 AND status = $4`,
		currentQuestionIndex, timeRemainingSeconds, id, model.SessionStatusInProgress)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// Complete applies the one-shot scored terminal transition. The WHERE
// status = 'IN_PROGRESS' guard makes it a compare-and-swap: under a
// complete-vs-sweep race exactly one caller observes rowsAffected == 1.
func (r *SessionRepository) Complete(
	ctx context.Context,
	id uuid.UUID,
	score, correctCount, incorrectCount, unansweredCount int,
	isPassed bool,
	finishedAt time.Time,
) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE test_sessions
		 SET status = $1, finished_at = $2, score = $3, correct_count = $4,
		     incorrect_count = $5, unanswered_count = $6, is_passed = $7
		 WHERE id = $8 AND status = $9`,
		model.SessionStatusCompleted, finishedAt, score, correctCount,
		incorrectCount, unansweredCount, isPassed, id, model.SessionStatusInProgress)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// Terminate applies an unscored terminal transition (ABANDONED or EXPIRED)
// with the same in-progress CAS guard as Complete.
func (r *SessionRepository) Terminate(ctx context.Context, id uuid.UUID, status model.SessionStatus, finishedAt time.Time) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE test_sessions
		 SET status = $1, finished_at = $2
		 WHERE id = $3 AND status = $4`,
		status, finishedAt, id, model.SessionStatusInProgress)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// ListOverdueIDs returns ids of IN_PROGRESS sessions whose wall-clock
// elapsed time exceeds their test's duration as of now.
func (r *SessionRepository) ListOverdueIDs(ctx context.Context, now time.Time) ([]uuid.UUID, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT s.id
		 FROM test_sessions s
		 JOIN tests t ON s.test_id = t.id
		 WHERE s.status = $1
		   AND s.started_at + make_interval(mins => t.duration_minutes) < $2`,
		model.SessionStatusInProgress, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

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

// ListByStudent retrieves all sessions for a student, newest first.
func (r *SessionRepository) ListByStudent(ctx context.Context, studentID int) ([]model.TestSession, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+sessionColumns+` FROM test_sessions
		 WHERE student_id = $1
		 ORDER BY created_at DESC`, studentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectSessions(rows)
}

// ListByTest retrieves sessions for a test, owner-scoped and paginated,
// with an optional status filter.
func (r *SessionRepository) ListByTest(
	ctx context.Context,
	testID uuid.UUID,
	ownerID int,
	status *model.SessionStatus,
	page, perPage int,
) ([]model.TestSession, int64, error) {
	offset := (page - 1) * perPage

	baseQuery := ` FROM test_sessions WHERE test_id = $1 AND owner_id = $2`
	args := []any{testID, ownerID}
	if status != nil {
		args = append(args, *status)
		baseQuery += fmt.Sprintf(" AND status = $%d", len(args))
	}

	var total int64
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*)`+baseQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, perPage, offset)
	query := `SELECT ` + sessionColumns + baseQuery +
		fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d OFFSET $%d`, len(args)-1, len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	sessions, err := collectSessions(rows)
	return sessions, total, err
}

// ListCompletedByTest retrieves all completed sessions for a test; the
// analytics aggregator walks their answer maps for the per-question
// breakdown.
func (r *SessionRepository) ListCompletedByTest(ctx context.Context, testID uuid.UUID) ([]model.TestSession, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+sessionColumns+` FROM test_sessions
		 WHERE test_id = $1 AND status = $2`, testID, model.SessionStatusCompleted)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectSessions(rows)
}

// SetFlag marks or unmarks a session for review, owner-scoped.
func (r *SessionRepository) SetFlag(ctx context.Context, id uuid.UUID, ownerID int, flagged bool) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE test_sessions SET flagged = $1 WHERE id = $2 AND owner_id = $3`,
		flagged, id, ownerID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// SetNotes attaches admin notes to a session, owner-scoped.
func (r *SessionRepository) SetNotes(ctx context.Context, id uuid.UUID, ownerID int, notes string) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE test_sessions SET admin_notes = $1 WHERE id = $2 AND owner_id = $3`,
		notes, id, ownerID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func collectSessions(rows pgx.Rows) ([]model.TestSession, error) {
	var sessions []model.TestSession
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, *s)
	}
	return sessions, rows.Err()
}
