package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"github.com/testnest/cbt-backend/internal/config"
	"github.com/testnest/cbt-backend/internal/model"
	"github.com/testnest/cbt-backend/internal/repository"
)

// ─── fakes ──────────────────────────────────────────────────────────────────

// fakeStore mimics the SQL session store's semantics in memory: the
// partial-unique constraint on active sessions, the version CAS on answer
// writes, and the in-progress guard on terminal transitions.
type fakeStore struct {
	mu       sync.Mutex
	sessions map[uuid.UUID]*model.TestSession
	// durations maps test id to duration minutes for ListOverdueIDs.
	durations map[uuid.UUID]int
	now       func() time.Time

	// applyFailures makes the next N ApplyAnswers calls fail the version
	// check, to exercise the retry loop.
	applyFailures int
	// conflictWinner, when set, makes Create fail with the uniqueness
	// violation after inserting this session, simulating a concurrent
	// create that won the insert race.
	conflictWinner *model.TestSession
}

func newFakeStore(now func() time.Time) *fakeStore {
	return &fakeStore{
		sessions:  make(map[uuid.UUID]*model.TestSession),
		durations: make(map[uuid.UUID]int),
		now:       now,
	}
}

func copySession(s *model.TestSession) *model.TestSession {
	cp := *s
	cp.Answers = make(model.AnswerMap, len(s.Answers))
	for k, v := range s.Answers {
		cp.Answers[k] = v
	}
	return &cp
}

func (f *fakeStore) put(s *model.TestSession) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sessions[s.ID] = copySession(s)
}

func (f *fakeStore) Create(ctx context.Context, s *model.TestSession) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.conflictWinner != nil {
		winner := f.conflictWinner
		f.conflictWinner = nil
		f.sessions[winner.ID] = copySession(winner)
		return repository.ErrActiveSessionExists
	}
	for _, existing := range f.sessions {
		if existing.TestID == s.TestID && existing.StudentID == s.StudentID &&
			existing.Status == model.SessionStatusInProgress {
			return repository.ErrActiveSessionExists
		}
	}

	s.ID = uuid.New()
	s.StartedAt = f.now()
	s.Version = 1
	s.Status = model.SessionStatusInProgress
	f.sessions[s.ID] = copySession(s)
	return nil
}

func (f *fakeStore) GetByID(ctx context.Context, id uuid.UUID) (*model.TestSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessions[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return copySession(s), nil
}

func (f *fakeStore) GetActive(ctx context.Context, testID uuid.UUID, studentID int) (*model.TestSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range f.sessions {
		if s.TestID == testID && s.StudentID == studentID && s.Status == model.SessionStatusInProgress {
			return copySession(s), nil
		}
	}
	return nil, repository.ErrNotFound
}

func (f *fakeStore) UpdateResume(ctx context.Context, s *model.TestSession) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	stored, ok := f.sessions[s.ID]
	if !ok || stored.Status != model.SessionStatusInProgress {
		return nil
	}
	stored.TimeRemainingSeconds = s.TimeRemainingSeconds
	stored.BrowserInfo = s.BrowserInfo
	return nil
}

func (f *fakeStore) ApplyAnswers(ctx context.Context, id uuid.UUID, version int, answers model.AnswerMap, timeRemainingSeconds, currentQuestionIndex int) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.applyFailures > 0 {
		f.applyFailures--
		return false, nil
	}

	stored, ok := f.sessions[id]
	if !ok || stored.Status != model.SessionStatusInProgress || stored.Version != version {
		return false, nil
	}
	stored.Answers = make(model.AnswerMap, len(answers))
	for k, v := range answers {
		stored.Answers[k] = v
	}
	stored.TimeRemainingSeconds = timeRemainingSeconds
	stored.CurrentQuestionIndex = currentQuestionIndex
	stored.Version++
	return true, nil
}

func (f *fakeStore) Checkpoint(ctx context.Context, id uuid.UUID, currentQuestionIndex, timeRemainingSeconds int) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	stored, ok := f.sessions[id]
	if !ok || stored.Status != model.SessionStatusInProgress {
		return false, nil
	}
	stored.CurrentQuestionIndex = currentQuestionIndex
	stored.TimeRemainingSeconds = timeRemainingSeconds
	return true, nil
}

func (f *fakeStore) Complete(ctx context.Context, id uuid.UUID, score, correctCount, incorrectCount, unansweredCount int, isPassed bool, finishedAt time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	stored, ok := f.sessions[id]
	if !ok || stored.Status != model.SessionStatusInProgress {
		return false, nil
	}
	stored.Status = model.SessionStatusCompleted
	stored.FinishedAt = &finishedAt
	stored.Score = &score
	stored.CorrectCount = &correctCount
	stored.IncorrectCount = &incorrectCount
	stored.UnansweredCount = &unansweredCount
	stored.IsPassed = &isPassed
	return true, nil
}

func (f *fakeStore) Terminate(ctx context.Context, id uuid.UUID, status model.SessionStatus, finishedAt time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	stored, ok := f.sessions[id]
	if !ok || stored.Status != model.SessionStatusInProgress {
		return false, nil
	}
	stored.Status = status
	stored.FinishedAt = &finishedAt
	return true, nil
}

func (f *fakeStore) ListOverdueIDs(ctx context.Context, now time.Time) ([]uuid.UUID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var ids []uuid.UUID
	for _, s := range f.sessions {
		if s.Status != model.SessionStatusInProgress {
			continue
		}
		deadline := s.StartedAt.Add(time.Duration(f.durations[s.TestID]) * time.Minute)
		if deadline.Before(now) {
			ids = append(ids, s.ID)
		}
	}
	return ids, nil
}

func (f *fakeStore) ListByStudent(ctx context.Context, studentID int) ([]model.TestSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.TestSession
	for _, s := range f.sessions {
		if s.StudentID == studentID {
			out = append(out, *copySession(s))
		}
	}
	return out, nil
}

// fakeCatalog reuses the real gating rules against an in-memory test map
// and records outcomes instead of enqueueing them.
type fakeCatalog struct {
	mu        sync.Mutex
	tests     map[uuid.UUID]*model.Test
	questions map[uuid.UUID][]uuid.UUID
	outcomes  []model.SessionOutcome
}

func newFakeCatalog() *fakeCatalog {
	return &fakeCatalog{
		tests:     make(map[uuid.UUID]*model.Test),
		questions: make(map[uuid.UUID][]uuid.UUID),
	}
}

func (f *fakeCatalog) GetTestConfig(ctx context.Context, testID uuid.UUID) (*model.Test, error) {
	return f.GetTestConfigFresh(ctx, testID)
}

func (f *fakeCatalog) GetTestConfigFresh(ctx context.Context, testID uuid.UUID) (*model.Test, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.tests[testID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (f *fakeCatalog) Startable(t *model.Test, now time.Time) error {
	if t.Status != model.TestStatusPublished {
		return ErrTestNotStartable
	}
	if t.ScheduledStart != nil && now.Before(*t.ScheduledStart) {
		return ErrTestNotStartable
	}
	if t.ScheduledEnd != nil && now.After(*t.ScheduledEnd) {
		return ErrTestNotStartable
	}
	if t.DurationMinutes <= 0 {
		return ErrTestNotStartable
	}
	return nil
}

func (f *fakeCatalog) SelectQuestions(ctx context.Context, t *model.Test) ([]uuid.UUID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ids := f.questions[t.ID]
	if len(ids) == 0 {
		return nil, ErrTestNotStartable
	}
	return ids, nil
}

func (f *fakeCatalog) RecordSessionOutcome(ctx context.Context, outcome model.SessionOutcome) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.outcomes = append(f.outcomes, outcome)
	return nil
}

type fakeBank struct {
	questions map[uuid.UUID]*model.Question
}

func (f *fakeBank) GetDefinition(ctx context.Context, id uuid.UUID) (*model.Question, error) {
	q, ok := f.questions[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return q, nil
}

// ─── fixture ────────────────────────────────────────────────────────────────

type fixture struct {
	svc     *SessionService
	store   *fakeStore
	catalog *fakeCatalog
	bank    *fakeBank
	test    *model.Test
	qids    []uuid.UUID
	clock   time.Time
}

const fixtureStudentID = 42

// newFixture builds a published 60-minute test with five multiple-choice
// questions whose correct answer is always "opt-a".
func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		store:   nil,
		catalog: newFakeCatalog(),
		bank:    &fakeBank{questions: make(map[uuid.UUID]*model.Question)},
		clock:   time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC),
	}
	f.store = newFakeStore(func() time.Time { return f.clock })

	f.test = &model.Test{
		ID:                uuid.New(),
		OwnerID:           7,
		Title:             "Algebra Midterm",
		Status:            model.TestStatusPublished,
		DurationMinutes:   60,
		PassingScore:      60,
		QuestionSelection: model.SelectionManual,
	}
	f.catalog.tests[f.test.ID] = f.test
	f.store.durations[f.test.ID] = f.test.DurationMinutes

	for i := 0; i < 5; i++ {
		qid := uuid.New()
		f.qids = append(f.qids, qid)
		f.bank.questions[qid] = &model.Question{
			ID:           qid,
			QuestionType: model.QuestionTypeMultipleChoice,
			CorrectValue: "opt-a",
			Points:       1,
		}
	}
	f.catalog.questions[f.test.ID] = f.qids

	cfg := &config.Config{StoreTimeout: 5 * time.Second}
	f.svc = NewSessionService(f.store, f.catalog, f.bank, nil, cfg, zerolog.Nop())
	f.svc.now = func() time.Time { return f.clock }
	return f
}

func (f *fixture) advance(d time.Duration) {
	f.clock = f.clock.Add(d)
}

func (f *fixture) start(t *testing.T) *model.TestSession {
	t.Helper()
	view, err := f.svc.CreateOrResume(context.Background(), f.test.ID, fixtureStudentID, nil, "")
	require.NoError(t, err)
	require.False(t, view.Resumed)
	return view.Session
}

// ─── create / resume ────────────────────────────────────────────────────────

func TestCreateOrResume_NewSession(t *testing.T) {
	f := newFixture(t)

	sess := f.start(t)

	require.Equal(t, model.SessionStatusInProgress, sess.Status)
	require.Equal(t, 5, sess.TotalQuestions)
	require.Equal(t, f.qids, sess.AssignedQuestionIDs)
	require.Equal(t, 3600, sess.TimeRemainingSeconds)
	require.Empty(t, sess.Answers)
	require.Equal(t, f.clock, sess.StartedAt)
}

func TestCreateOrResume_ResumesActiveSession(t *testing.T) {
	f := newFixture(t)
	first := f.start(t)

	f.advance(10 * time.Minute)

	view, err := f.svc.CreateOrResume(context.Background(), f.test.ID, fixtureStudentID,
		model.BrowserInfo{"screen": "1920x1080"}, "")
	require.NoError(t, err)
	require.True(t, view.Resumed)
	require.Equal(t, first.ID, view.Session.ID)
	// Remaining time is wall clock: 60min budget minus 10min elapsed.
	require.Equal(t, 3000, view.Session.TimeRemainingSeconds)
	require.Equal(t, "1920x1080", view.Session.BrowserInfo["screen"])
	// Question assignment is frozen at creation.
	require.Equal(t, first.AssignedQuestionIDs, view.Session.AssignedQuestionIDs)
}

func TestCreateOrResume_ResumePreservesBrowserInfo(t *testing.T) {
	f := newFixture(t)

	view, err := f.svc.CreateOrResume(context.Background(), f.test.ID, fixtureStudentID,
		model.BrowserInfo{"user_agent": "firefox", "screen": "800x600"}, "")
	require.NoError(t, err)

	view, err = f.svc.CreateOrResume(context.Background(), f.test.ID, fixtureStudentID,
		model.BrowserInfo{"screen": "1920x1080"}, "")
	require.NoError(t, err)
	require.True(t, view.Resumed)
	require.Equal(t, "firefox", view.Session.BrowserInfo["user_agent"])
	require.Equal(t, "1920x1080", view.Session.BrowserInfo["screen"])
}

func TestCreateOrResume_LostRaceFallsBackToResume(t *testing.T) {
	f := newFixture(t)

	// Simulate a concurrent start winning the insert between our GetActive
	// miss and our Create.
	winner := &model.TestSession{
		ID:                   uuid.New(),
		TestID:               f.test.ID,
		StudentID:            fixtureStudentID,
		OwnerID:              f.test.OwnerID,
		Status:               model.SessionStatusInProgress,
		StartedAt:            f.clock,
		AssignedQuestionIDs:  f.qids,
		TotalQuestions:       5,
		Answers:              model.AnswerMap{},
		TimeRemainingSeconds: 3600,
		Version:              1,
	}
	f.store.conflictWinner = winner

	view, err := f.svc.CreateOrResume(context.Background(), f.test.ID, fixtureStudentID, nil, "")
	require.NoError(t, err)
	require.True(t, view.Resumed)
	require.Equal(t, winner.ID, view.Session.ID)
}

func TestCreateOrResume_AccessCodeGating(t *testing.T) {
	f := newFixture(t)
	f.test.AccessCode = "SECRET1"

	_, err := f.svc.CreateOrResume(context.Background(), f.test.ID, fixtureStudentID, nil, "")
	require.ErrorIs(t, err, ErrAccessCodeRequired)

	_, err = f.svc.CreateOrResume(context.Background(), f.test.ID, fixtureStudentID, nil, "WRONG")
	require.ErrorIs(t, err, ErrInvalidAccessCode)

	view, err := f.svc.CreateOrResume(context.Background(), f.test.ID, fixtureStudentID, nil, "SECRET1")
	require.NoError(t, err)
	require.Equal(t, "SECRET1", view.Session.AccessCodeUsed)
}

func TestCreateOrResume_Gating(t *testing.T) {
	f := newFixture(t)

	f.test.Status = model.TestStatusDraft
	_, err := f.svc.CreateOrResume(context.Background(), f.test.ID, fixtureStudentID, nil, "")
	require.ErrorIs(t, err, ErrTestNotStartable)

	f.test.Status = model.TestStatusPublished
	past := f.clock.Add(-time.Hour)
	f.test.ScheduledEnd = &past
	_, err = f.svc.CreateOrResume(context.Background(), f.test.ID, fixtureStudentID, nil, "")
	require.ErrorIs(t, err, ErrTestNotStartable)

	_, err = f.svc.CreateOrResume(context.Background(), uuid.New(), fixtureStudentID, nil, "")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestCreateOrResume_EmptyQuestionSet(t *testing.T) {
	f := newFixture(t)
	f.catalog.questions[f.test.ID] = nil

	_, err := f.svc.CreateOrResume(context.Background(), f.test.ID, fixtureStudentID, nil, "")
	require.ErrorIs(t, err, ErrTestNotStartable)
}

// ─── answer submission ──────────────────────────────────────────────────────

func TestSubmitAnswer(t *testing.T) {
	f := newFixture(t)
	sess := f.start(t)

	res, err := f.svc.SubmitAnswer(context.Background(), sess.ID, f.qids[0], "opt-a", 30, nil, fixtureStudentID)
	require.NoError(t, err)
	require.True(t, res.IsCorrect)
	require.Equal(t, 1, res.AnsweredCount)
	require.Equal(t, 3570, res.TimeRemainingSeconds)

	stored, err := f.store.GetByID(context.Background(), sess.ID)
	require.NoError(t, err)
	require.Equal(t, "opt-a", stored.Answers[f.qids[0]].SubmittedValue)
	require.Equal(t, 2, stored.Version)
}

func TestSubmitAnswer_ResubmissionReplacesAndAccumulatesTime(t *testing.T) {
	f := newFixture(t)
	sess := f.start(t)

	_, err := f.svc.SubmitAnswer(context.Background(), sess.ID, f.qids[0], "opt-b", 20, nil, fixtureStudentID)
	require.NoError(t, err)

	res, err := f.svc.SubmitAnswer(context.Background(), sess.ID, f.qids[0], "opt-a", 15, nil, fixtureStudentID)
	require.NoError(t, err)
	require.True(t, res.IsCorrect)
	// Still one answered question: resubmission replaced the record.
	require.Equal(t, 1, res.AnsweredCount)

	stored, err := f.store.GetByID(context.Background(), sess.ID)
	require.NoError(t, err)
	answer := stored.Answers[f.qids[0]]
	require.Equal(t, "opt-a", answer.SubmittedValue)
	require.True(t, answer.IsCorrect)
	require.Equal(t, 35, answer.TimeSpentSeconds)
}

func TestSubmitAnswer_RemainingTimeFloorsAtZero(t *testing.T) {
	f := newFixture(t)
	sess := f.start(t)

	res, err := f.svc.SubmitAnswer(context.Background(), sess.ID, f.qids[0], "opt-a", 4000, nil, fixtureStudentID)
	require.NoError(t, err)
	require.Equal(t, 0, res.TimeRemainingSeconds)
}

func TestSubmitAnswer_RetriesOnVersionConflict(t *testing.T) {
	f := newFixture(t)
	sess := f.start(t)

	f.store.applyFailures = 2

	res, err := f.svc.SubmitAnswer(context.Background(), sess.ID, f.qids[0], "opt-a", 10, nil, fixtureStudentID)
	require.NoError(t, err)
	require.Equal(t, 1, res.AnsweredCount)
}

func TestSubmitAnswer_ExhaustedRetriesConflict(t *testing.T) {
	f := newFixture(t)
	sess := f.start(t)

	f.store.applyFailures = maxSubmitRetries

	_, err := f.svc.SubmitAnswer(context.Background(), sess.ID, f.qids[0], "opt-a", 10, nil, fixtureStudentID)
	require.ErrorIs(t, err, ErrSubmissionConflict)
}

func TestSubmitAnswer_Rejections(t *testing.T) {
	f := newFixture(t)
	sess := f.start(t)

	// Question outside the assigned set.
	_, err := f.svc.SubmitAnswer(context.Background(), sess.ID, uuid.New(), "opt-a", 5, nil, fixtureStudentID)
	require.ErrorIs(t, err, ErrQuestionNotInSession)

	// Non-auto-gradable question type.
	essayID := uuid.New()
	f.bank.questions[essayID] = &model.Question{ID: essayID, QuestionType: model.QuestionTypeEssay}
	withEssay, _ := f.store.GetByID(context.Background(), sess.ID)
	withEssay.AssignedQuestionIDs = append(withEssay.AssignedQuestionIDs, essayID)
	f.store.put(withEssay)

	_, err = f.svc.SubmitAnswer(context.Background(), sess.ID, essayID, "my essay", 5, nil, fixtureStudentID)
	require.ErrorIs(t, err, ErrRequiresManualGrading)

	// Terminal session.
	require.NoError(t, f.svc.Abandon(context.Background(), sess.ID, fixtureStudentID))
	_, err = f.svc.SubmitAnswer(context.Background(), sess.ID, f.qids[0], "opt-a", 5, nil, fixtureStudentID)
	require.ErrorIs(t, err, ErrSessionNotActive)
}

// ─── completion and scoring ─────────────────────────────────────────────────

func TestComplete_ScoresSession(t *testing.T) {
	f := newFixture(t)
	sess := f.start(t)

	// Three correct, one incorrect, one unanswered out of five.
	for _, qid := range f.qids[:3] {
		_, err := f.svc.SubmitAnswer(context.Background(), sess.ID, qid, "opt-a", 10, nil, fixtureStudentID)
		require.NoError(t, err)
	}
	_, err := f.svc.SubmitAnswer(context.Background(), sess.ID, f.qids[3], "opt-c", 10, nil, fixtureStudentID)
	require.NoError(t, err)

	done, err := f.svc.Complete(context.Background(), sess.ID, fixtureStudentID)
	require.NoError(t, err)

	require.Equal(t, model.SessionStatusCompleted, done.Status)
	require.NotNil(t, done.FinishedAt)
	require.Equal(t, 60, *done.Score)
	require.Equal(t, 3, *done.CorrectCount)
	require.Equal(t, 1, *done.IncorrectCount)
	require.Equal(t, 1, *done.UnansweredCount)
	// Passing score is 60, score is 60: passed.
	require.True(t, *done.IsPassed)

	require.Len(t, f.catalog.outcomes, 1)
	require.Equal(t, model.SessionOutcome{
		TestID:    f.test.ID,
		SessionID: sess.ID,
		Score:     60,
		Passed:    true,
	}, f.catalog.outcomes[0])
}

func TestComplete_TerminalIsFinal(t *testing.T) {
	f := newFixture(t)
	sess := f.start(t)

	_, err := f.svc.Complete(context.Background(), sess.ID, fixtureStudentID)
	require.NoError(t, err)

	// A second completion, an abandon and an expire all bounce off the
	// terminal state, and the outcome is recorded exactly once.
	_, err = f.svc.Complete(context.Background(), sess.ID, fixtureStudentID)
	require.ErrorIs(t, err, ErrSessionNotActive)
	require.ErrorIs(t, f.svc.Abandon(context.Background(), sess.ID, fixtureStudentID), ErrSessionNotActive)
	require.ErrorIs(t, f.svc.Expire(context.Background(), sess.ID), ErrSessionNotActive)
	require.Len(t, f.catalog.outcomes, 1)
}

func TestAbandon(t *testing.T) {
	f := newFixture(t)
	sess := f.start(t)

	require.NoError(t, f.svc.Abandon(context.Background(), sess.ID, fixtureStudentID))

	stored, err := f.store.GetByID(context.Background(), sess.ID)
	require.NoError(t, err)
	require.Equal(t, model.SessionStatusAbandoned, stored.Status)
	require.NotNil(t, stored.FinishedAt)
	// Abandonment produces no score and no outcome.
	require.Nil(t, stored.Score)
	require.Empty(t, f.catalog.outcomes)
}

// ─── expiry sweep ───────────────────────────────────────────────────────────

func TestSweepExpiredSessions(t *testing.T) {
	f := newFixture(t)
	overdue := f.start(t)

	// A second student's session starts later and is still inside its
	// budget when the sweep runs.
	f.advance(50 * time.Minute)
	view, err := f.svc.CreateOrResume(context.Background(), f.test.ID, 99, nil, "")
	require.NoError(t, err)
	fresh := view.Session

	f.advance(11 * time.Minute) // overdue at 61min elapsed, fresh at 11min

	expired, err := f.svc.SweepExpiredSessions(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, expired)

	stored, _ := f.store.GetByID(context.Background(), overdue.ID)
	require.Equal(t, model.SessionStatusExpired, stored.Status)
	stored, _ = f.store.GetByID(context.Background(), fresh.ID)
	require.Equal(t, model.SessionStatusInProgress, stored.Status)

	// Idempotent: a second sweep finds nothing new.
	expired, err = f.svc.SweepExpiredSessions(context.Background())
	require.NoError(t, err)
	require.Equal(t, 0, expired)
}

// ─── progress and ownership ─────────────────────────────────────────────────

func TestGetProgress_WallClockRemaining(t *testing.T) {
	f := newFixture(t)
	sess := f.start(t)

	f.advance(10 * time.Minute)

	got, err := f.svc.GetProgress(context.Background(), sess.ID, fixtureStudentID)
	require.NoError(t, err)
	require.Equal(t, 3000, got.TimeRemainingSeconds)

	// Past the deadline the remaining time floors at zero.
	f.advance(2 * time.Hour)
	got, err = f.svc.GetProgress(context.Background(), sess.ID, fixtureStudentID)
	require.NoError(t, err)
	require.Equal(t, 0, got.TimeRemainingSeconds)
}

func TestOwnership_ReportedAsNotFound(t *testing.T) {
	f := newFixture(t)
	sess := f.start(t)

	const otherStudent = 777
	_, err := f.svc.GetProgress(context.Background(), sess.ID, otherStudent)
	require.ErrorIs(t, err, ErrNotFound)
	_, err = f.svc.SubmitAnswer(context.Background(), sess.ID, f.qids[0], "opt-a", 5, nil, otherStudent)
	require.ErrorIs(t, err, ErrNotFound)
	_, err = f.svc.Complete(context.Background(), sess.ID, otherStudent)
	require.ErrorIs(t, err, ErrNotFound)
	require.ErrorIs(t, f.svc.Abandon(context.Background(), sess.ID, otherStudent), ErrNotFound)

	// A requester ID of zero is an ordinary non-owner, not a bypass: a
	// token whose user_id decodes to 0 must not see anyone's session.
	_, err = f.svc.GetProgress(context.Background(), sess.ID, 0)
	require.ErrorIs(t, err, ErrNotFound)
	_, err = f.svc.Complete(context.Background(), sess.ID, 0)
	require.ErrorIs(t, err, ErrNotFound)
	require.ErrorIs(t, f.svc.Abandon(context.Background(), sess.ID, 0), ErrNotFound)
}

func TestAutoSave(t *testing.T) {
	f := newFixture(t)
	sess := f.start(t)

	require.NoError(t, f.svc.AutoSave(context.Background(), sess.ID, 3, 3400, fixtureStudentID))

	stored, err := f.store.GetByID(context.Background(), sess.ID)
	require.NoError(t, err)
	require.Equal(t, 3, stored.CurrentQuestionIndex)
	require.Equal(t, 3400, stored.TimeRemainingSeconds)

	require.NoError(t, f.svc.Abandon(context.Background(), sess.ID, fixtureStudentID))
	require.ErrorIs(t,
		f.svc.AutoSave(context.Background(), sess.ID, 4, 3300, fixtureStudentID),
		ErrSessionNotActive)
}

// End-to-end through the service: start, answer both ways, reload, finish.
func TestSessionLifecycle(t *testing.T) {
	f := newFixture(t)
	sess := f.start(t)

	_, err := f.svc.SubmitAnswer(context.Background(), sess.ID, f.qids[0], "opt-a", 60, nil, fixtureStudentID)
	require.NoError(t, err)
	_, err = f.svc.SubmitAnswer(context.Background(), sess.ID, f.qids[1], "opt-b", 60, nil, fixtureStudentID)
	require.NoError(t, err)

	// Simulated reload mid-test.
	f.advance(5 * time.Minute)
	view, err := f.svc.CreateOrResume(context.Background(), f.test.ID, fixtureStudentID, nil, "")
	require.NoError(t, err)
	require.True(t, view.Resumed)
	require.Len(t, view.Session.Answers, 2)
	require.Equal(t, 3300, view.Session.TimeRemainingSeconds)

	done, err := f.svc.Complete(context.Background(), sess.ID, fixtureStudentID)
	require.NoError(t, err)
	require.Equal(t, 20, *done.Score) // 1 of 5 correct
	require.False(t, *done.IsPassed)

	sessions, err := f.svc.ListByStudent(context.Background(), fixtureStudentID)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	require.Equal(t, model.SessionStatusCompleted, sessions[0].Status)
}
