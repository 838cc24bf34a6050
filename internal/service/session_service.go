package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/testnest/cbt-backend/internal/config"
	"github.com/testnest/cbt-backend/internal/model"
	"github.com/testnest/cbt-backend/internal/repository"
)

// maxSubmitRetries bounds the optimistic-concurrency retry loop for
// answer submissions.
const maxSubmitRetries = 5

// sessionStore is the Session Store surface the engine depends on.
// *repository.SessionRepository satisfies it; tests use fakes.
type sessionStore interface {
	Create(ctx context.Context, s *model.TestSession) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.TestSession, error)
	GetActive(ctx context.Context, testID uuid.UUID, studentID int) (*model.TestSession, error)
	UpdateResume(ctx context.Context, s *model.TestSession) error
	ApplyAnswers(ctx context.Context, id uuid.UUID, version int, answers model.AnswerMap, timeRemainingSeconds, currentQuestionIndex int) (bool, error)
	Checkpoint(ctx context.Context, id uuid.UUID, currentQuestionIndex, timeRemainingSeconds int) (bool, error)
	Complete(ctx context.Context, id uuid.UUID, score, correctCount, incorrectCount, unansweredCount int, isPassed bool, finishedAt time.Time) (bool, error)
	Terminate(ctx context.Context, id uuid.UUID, status model.SessionStatus, finishedAt time.Time) (bool, error)
	ListOverdueIDs(ctx context.Context, now time.Time) ([]uuid.UUID, error)
	ListByStudent(ctx context.Context, studentID int) ([]model.TestSession, error)
}

// testCatalog is the Test Catalog surface the engine consumes.
type testCatalog interface {
	GetTestConfig(ctx context.Context, testID uuid.UUID) (*model.Test, error)
	GetTestConfigFresh(ctx context.Context, testID uuid.UUID) (*model.Test, error)
	Startable(t *model.Test, now time.Time) error
	SelectQuestions(ctx context.Context, t *model.Test) ([]uuid.UUID, error)
	RecordSessionOutcome(ctx context.Context, outcome model.SessionOutcome) error
}

// questionBank supplies stored question definitions to the evaluator.
type questionBank interface {
	GetDefinition(ctx context.Context, id uuid.UUID) (*model.Question, error)
}

// SessionService owns the test session state machine: create-or-resume,
// answer submission with time accounting, completion with scoring,
// abandonment, and the time-based expiry sweep. Stateless between calls;
// all session state lives in the store.
type SessionService struct {
	store   sessionStore
	catalog testCatalog
	bank    questionBank
	rdb     *redis.Client
	cfg     *config.Config
	log     zerolog.Logger
	now     func() time.Time
}

// NewSessionService creates a new SessionService. rdb may be nil, which
// disables the live monitor event stream.
func NewSessionService(
	store sessionStore,
	catalog testCatalog,
	bank questionBank,
	rdb *redis.Client,
	cfg *config.Config,
	log zerolog.Logger,
) *SessionService {
	return &SessionService{
		store:   store,
		catalog: catalog,
		bank:    bank,
		rdb:     rdb,
		cfg:     cfg,
		log:     log.With().Str("component", "session_service").Logger(),
		now:     time.Now,
	}
}

// CreateOrResume starts a session for (testID, studentID), or re-attaches
// to the existing in-progress one. A lost create race (the store's
// uniqueness constraint fired) degrades gracefully into a resume.
func (s *SessionService) CreateOrResume(
	ctx context.Context,
	testID uuid.UUID,
	studentID int,
	browserInfo model.BrowserInfo,
	accessCode string,
) (*model.SessionView, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	t, err := s.catalog.GetTestConfig(ctx, testID)
	if err != nil {
		return nil, err
	}
	if err := s.catalog.Startable(t, s.now()); err != nil {
		return nil, err
	}
	if t.RequiresAccessCode() {
		if accessCode == "" {
			return nil, ErrAccessCodeRequired
		}
		if accessCode != t.AccessCode {
			return nil, ErrInvalidAccessCode
		}
	}

	existing, err := s.store.GetActive(ctx, testID, studentID)
	if err == nil {
		return s.resume(ctx, existing, t, browserInfo)
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, s.storeErr(err)
	}

	qids, err := s.catalog.SelectQuestions(ctx, t)
	if err != nil {
		return nil, err
	}

	sess := &model.TestSession{
		TestID:               testID,
		StudentID:            studentID,
		OwnerID:              t.OwnerID,
		Status:               model.SessionStatusInProgress,
		AssignedQuestionIDs:  qids,
		TotalQuestions:       len(qids),
		Answers:              model.AnswerMap{},
		TimeRemainingSeconds: t.DurationSeconds(),
		AccessCodeUsed:       accessCode,
		BrowserInfo:          browserInfo,
	}

	if err := s.store.Create(ctx, sess); err != nil {
		if errors.Is(err, repository.ErrActiveSessionExists) {
			// Concurrent start won the insert; fall back to resume.
			existing, fetchErr := s.store.GetActive(ctx, testID, studentID)
			if fetchErr != nil {
				return nil, s.storeErr(fetchErr)
			}
			return s.resume(ctx, existing, t, browserInfo)
		}
		return nil, s.storeErr(err)
	}

	s.publish(ctx, sess, model.MonitorSessionStarted, nil)
	return &model.SessionView{Session: sess, Resumed: false}, nil
}

// resume recomputes the remaining time from wall-clock elapsed since
// start rather than from the stored remaining budget, and merges any new
// browser info fields non-destructively over the stored ones.
func (s *SessionService) resume(
	ctx context.Context,
	sess *model.TestSession,
	t *model.Test,
	browserInfo model.BrowserInfo,
) (*model.SessionView, error) {
	sess.TimeRemainingSeconds = wallClockRemaining(t, sess.StartedAt, s.now())
	sess.BrowserInfo = sess.BrowserInfo.Merge(browserInfo)

	if err := s.store.UpdateResume(ctx, sess); err != nil {
		return nil, s.storeErr(err)
	}

	s.publish(ctx, sess, model.MonitorSessionResumed, nil)
	return &model.SessionView{Session: sess, Resumed: true}, nil
}

// SubmitAnswer records one answer. Resubmission for an already-answered
// question replaces the record (last write wins) while the time spent
// accumulates. Concurrent submissions for different questions are
// serialized by the store's version check; the loop re-reads and retries
// on conflict so neither update is lost.
func (s *SessionService) SubmitAnswer(
	ctx context.Context,
	sessionID, questionID uuid.UUID,
	submittedValue string,
	timeSpentSeconds int,
	currentQuestionIndex *int,
	requesterStudentID int,
) (*model.SubmissionResult, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	if timeSpentSeconds < 0 {
		timeSpentSeconds = 0
	}

	for attempt := 0; attempt < maxSubmitRetries; attempt++ {
		sess, err := s.loadOwned(ctx, sessionID, requesterStudentID)
		if err != nil {
			return nil, err
		}
		if sess.Status.Terminal() {
			return nil, ErrSessionNotActive
		}
		if !sess.HasQuestion(questionID) {
			return nil, ErrQuestionNotInSession
		}

		q, err := s.bank.GetDefinition(ctx, questionID)
		if err != nil {
			return nil, s.storeErr(err)
		}

		isCorrect, points, err := evaluateAnswer(q, submittedValue)
		if err != nil {
			return nil, err
		}

		answers := make(model.AnswerMap, len(sess.Answers)+1)
		for k, v := range sess.Answers {
			answers[k] = v
		}
		answer := model.Answer{
			QuestionID:       questionID,
			SubmittedValue:   submittedValue,
			IsCorrect:        isCorrect,
			PointsAwarded:    points,
			TimeSpentSeconds: timeSpentSeconds,
		}
		if prior, ok := answers[questionID]; ok {
			answer.TimeSpentSeconds = prior.TimeSpentSeconds + timeSpentSeconds
		}
		answers[questionID] = answer

		remaining := sess.TimeRemainingSeconds - timeSpentSeconds
		if remaining < 0 {
			remaining = 0
		}
		index := sess.CurrentQuestionIndex
		if currentQuestionIndex != nil {
			index = *currentQuestionIndex
		}

		applied, err := s.store.ApplyAnswers(ctx, sess.ID, sess.Version, answers, remaining, index)
		if err != nil {
			return nil, s.storeErr(err)
		}
		if !applied {
			// Version race with another submission (or a terminal
			// transition); re-read and retry.
			continue
		}

		sess.Answers = answers
		s.publish(ctx, sess, model.MonitorAnswerSubmitted, nil)

		return &model.SubmissionResult{
			SessionID:            sess.ID,
			QuestionID:           questionID,
			IsCorrect:            isCorrect,
			AnsweredCount:        len(answers),
			TimeRemainingSeconds: remaining,
			CurrentQuestionIndex: index,
		}, nil
	}

	return nil, ErrSubmissionConflict
}

// AutoSave is the lightweight checkpoint write: no evaluator involvement,
// last-write-wins on the client-reported position and remaining time. The
// client-authoritative timer here is an accepted trust boundary.
func (s *SessionService) AutoSave(
	ctx context.Context,
	sessionID uuid.UUID,
	currentQuestionIndex, timeRemainingSeconds int,
	requesterStudentID int,
) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	sess, err := s.loadOwned(ctx, sessionID, requesterStudentID)
	if err != nil {
		return err
	}
	if sess.Status.Terminal() {
		return ErrSessionNotActive
	}
	if timeRemainingSeconds < 0 {
		timeRemainingSeconds = 0
	}

	applied, err := s.store.Checkpoint(ctx, sess.ID, currentQuestionIndex, timeRemainingSeconds)
	if err != nil {
		return s.storeErr(err)
	}
	if !applied {
		return ErrSessionNotActive
	}
	return nil
}

// Complete transitions the session to COMPLETED and scores it. The guard
// is a single compare-and-swap on status, so under a race with the expiry
// sweep exactly one terminal transition is ever applied — and only that
// winner records the outcome with the catalog.
func (s *SessionService) Complete(ctx context.Context, sessionID uuid.UUID, requesterStudentID int) (*model.TestSession, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	sess, err := s.loadOwned(ctx, sessionID, requesterStudentID)
	if err != nil {
		return nil, err
	}
	if sess.Status.Terminal() {
		return nil, ErrSessionNotActive
	}

	// Passing threshold must come from a fresh read, never the cache.
	t, err := s.catalog.GetTestConfigFresh(ctx, sess.TestID)
	if err != nil {
		return nil, err
	}

	answered := len(sess.Answers)
	correct := 0
	for _, a := range sess.Answers {
		if a.IsCorrect {
			correct++
		}
	}
	incorrect := answered - correct
	unanswered := sess.TotalQuestions - answered
	score := 0
	if sess.TotalQuestions > 0 {
		score = int(math.Round(float64(correct) / float64(sess.TotalQuestions) * 100))
	}
	passed := score >= t.PassingScore
	finishedAt := s.now()

	won, err := s.store.Complete(ctx, sess.ID, score, correct, incorrect, unanswered, passed, finishedAt)
	if err != nil {
		return nil, s.storeErr(err)
	}
	if !won {
		return nil, ErrSessionNotActive
	}

	sess.Status = model.SessionStatusCompleted
	sess.FinishedAt = &finishedAt
	sess.Score = &score
	sess.CorrectCount = &correct
	sess.IncorrectCount = &incorrect
	sess.UnansweredCount = &unanswered
	sess.IsPassed = &passed

	outcome := model.SessionOutcome{
		TestID:    sess.TestID,
		SessionID: sess.ID,
		Score:     score,
		Passed:    passed,
	}
	if err := s.catalog.RecordSessionOutcome(ctx, outcome); err != nil {
		// The reconcile pass will heal the stats; the completion stands.
		s.log.Error().Err(err).
			Str("session_id", sess.ID.String()).
			Msg("record outcome failed")
	}

	s.publish(ctx, sess, model.MonitorSessionCompleted, &score)
	return sess, nil
}

// Abandon transitions the session to ABANDONED without scoring.
func (s *SessionService) Abandon(ctx context.Context, sessionID uuid.UUID, requesterStudentID int) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	sess, err := s.loadOwned(ctx, sessionID, requesterStudentID)
	if err != nil {
		return err
	}
	return s.terminate(ctx, sess, model.SessionStatusAbandoned, model.MonitorSessionAbandoned)
}

// Expire force-expires an overdue session. Invoked by the sweep, not by
// clients.
func (s *SessionService) Expire(ctx context.Context, sessionID uuid.UUID) error {
	sess, err := s.store.GetByID(ctx, sessionID)
	if err != nil {
		return s.storeErr(err)
	}
	return s.terminate(ctx, sess, model.SessionStatusExpired, model.MonitorSessionExpired)
}

func (s *SessionService) terminate(ctx context.Context, sess *model.TestSession, status model.SessionStatus, event string) error {
	if sess.Status.Terminal() {
		return ErrSessionNotActive
	}
	applied, err := s.store.Terminate(ctx, sess.ID, status, s.now())
	if err != nil {
		return s.storeErr(err)
	}
	if !applied {
		return ErrSessionNotActive
	}
	sess.Status = status
	s.publish(ctx, sess, event, nil)
	return nil
}

// SweepExpiredSessions force-expires every in-progress session whose
// wall-clock elapsed time exceeds its test's duration. Idempotent and safe
// to run concurrently with itself: a session that reached a terminal
// status before the sweep touches it is skipped, not an error. A single
// session's failure is logged and does not abort the batch.
func (s *SessionService) SweepExpiredSessions(ctx context.Context) (int, error) {
	ids, err := s.store.ListOverdueIDs(ctx, s.now())
	if err != nil {
		return 0, s.storeErr(err)
	}

	expired := 0
	for _, id := range ids {
		if err := s.Expire(ctx, id); err != nil {
			if errors.Is(err, ErrSessionNotActive) || errors.Is(err, ErrNotFound) {
				continue // already transitioned by a racing call
			}
			s.log.Warn().Err(err).Str("session_id", id.String()).Msg("sweep: expire failed")
			continue
		}
		expired++
	}
	return expired, nil
}

// GetProgress returns the session for resume UX. For in-progress sessions
// the reported remaining time is recomputed from wall clock; the read has
// no side effects.
func (s *SessionService) GetProgress(ctx context.Context, sessionID uuid.UUID, requesterStudentID int) (*model.TestSession, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	sess, err := s.loadOwned(ctx, sessionID, requesterStudentID)
	if err != nil {
		return nil, err
	}
	if sess.Status == model.SessionStatusInProgress {
		if t, err := s.catalog.GetTestConfig(ctx, sess.TestID); err == nil {
			sess.TimeRemainingSeconds = wallClockRemaining(t, sess.StartedAt, s.now())
		}
	}
	return sess, nil
}

// ListByStudent returns all of a student's sessions, newest first.
func (s *SessionService) ListByStudent(ctx context.Context, studentID int) ([]model.TestSession, error) {
	sessions, err := s.store.ListByStudent(ctx, studentID)
	if err != nil {
		return nil, s.storeErr(err)
	}
	return sessions, nil
}

// ─── internals ──────────────────────────────────────────────────────────────

// loadOwned fetches a session and enforces ownership. Ownership failures
// report ErrNotFound so callers cannot probe for session existence.
// Internal callers that bypass ownership go through Expire instead.
func (s *SessionService) loadOwned(ctx context.Context, sessionID uuid.UUID, requesterStudentID int) (*model.TestSession, error) {
	sess, err := s.store.GetByID(ctx, sessionID)
	if err != nil {
		return nil, s.storeErr(err)
	}
	if sess.StudentID != requesterStudentID {
		return nil, ErrNotFound
	}
	return sess, nil
}

// wallClockRemaining derives the remaining budget from elapsed wall-clock
// time since start, floored at zero. This is deliberately independent of
// the submission-debited time_remaining_seconds column.
func wallClockRemaining(t *model.Test, startedAt, now time.Time) int {
	remaining := t.DurationSeconds() - int(now.Sub(startedAt).Seconds())
	if remaining < 0 {
		remaining = 0
	}
	return remaining
}

func (s *SessionService) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.cfg != nil && s.cfg.StoreTimeout > 0 {
		return context.WithTimeout(ctx, s.cfg.StoreTimeout)
	}
	return context.WithCancel(ctx)
}

func (s *SessionService) storeErr(err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return ErrNotFound
	}
	return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
}

// publish sends a monitor event to the test's Redis channel. Best effort:
// monitoring must never fail a session operation.
func (s *SessionService) publish(ctx context.Context, sess *model.TestSession, eventType string, score *int) {
	if s.rdb == nil {
		return
	}
	event := model.MonitorEvent{
		Type:          eventType,
		SessionID:     sess.ID,
		StudentID:     sess.StudentID,
		AnsweredCount: len(sess.Answers),
		Score:         score,
		At:            s.now(),
	}
	raw, err := json.Marshal(event)
	if err != nil {
		return
	}
	channel := config.CacheKey.TestMonitorChannel(sess.TestID.String())
	if err := s.rdb.Publish(ctx, channel, raw).Err(); err != nil {
		s.log.Debug().Err(err).Msg("monitor publish failed")
	}
}
