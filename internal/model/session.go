package model

import (
	"time"

	"github.com/google/uuid"
)

// SessionStatus enumerates test session states. IN_PROGRESS is the only
// non-terminal state; every transition out of it is final.
type SessionStatus string

const (
	SessionStatusInProgress SessionStatus = "IN_PROGRESS"
	SessionStatusCompleted  SessionStatus = "COMPLETED"
	SessionStatusAbandoned  SessionStatus = "ABANDONED"
	SessionStatusExpired    SessionStatus = "EXPIRED"
)

// Terminal reports whether the status permits no further transitions.
func (s SessionStatus) Terminal() bool {
	return s != SessionStatusInProgress
}

// Answer is one recorded submission for a question. A resubmission replaces
// the record but TimeSpentSeconds accumulates across submissions.
type Answer struct {
	QuestionID       uuid.UUID `json:"question_id"`
	SubmittedValue   string    `json:"submitted_value"`
	IsCorrect        bool      `json:"is_correct"`
	PointsAwarded    float64   `json:"points_awarded"`
	TimeSpentSeconds int       `json:"time_spent_seconds"`
}

// AnswerMap holds a session's answers keyed by question id.
type AnswerMap map[uuid.UUID]Answer

// BrowserInfo is free-form client metadata recorded at start and merged
// non-destructively on resume.
type BrowserInfo map[string]string

// Merge overlays the fields present in other onto b, returning the result.
// Stored fields absent from other are preserved.
func (b BrowserInfo) Merge(other BrowserInfo) BrowserInfo {
	if len(other) == 0 {
		return b
	}
	merged := make(BrowserInfo, len(b)+len(other))
	for k, v := range b {
		merged[k] = v
	}
	for k, v := range other {
		merged[k] = v
	}
	return merged
}

// TestSession is one student's timed attempt at one test.
type TestSession struct {
	ID                   uuid.UUID     `json:"id"`
	TestID               uuid.UUID     `json:"test_id"`
	StudentID            int           `json:"student_id"`
	OwnerID              int           `json:"owner_id"`
	Status               SessionStatus `json:"status"`
	StartedAt            time.Time     `json:"started_at"`
	FinishedAt           *time.Time    `json:"finished_at,omitempty"`
	AssignedQuestionIDs  []uuid.UUID   `json:"assigned_question_ids"`
	TotalQuestions       int           `json:"total_questions"`
	Answers              AnswerMap     `json:"answers"`
	TimeRemainingSeconds int           `json:"time_remaining_seconds"`
	CurrentQuestionIndex int           `json:"current_question_index"`
	Score                *int          `json:"score,omitempty"`
	CorrectCount         *int          `json:"correct_count,omitempty"`
	IncorrectCount       *int          `json:"incorrect_count,omitempty"`
	UnansweredCount      *int          `json:"unanswered_count,omitempty"`
	IsPassed             *bool         `json:"is_passed,omitempty"`
	AccessCodeUsed       string        `json:"access_code_used,omitempty"`
	BrowserInfo          BrowserInfo   `json:"browser_info,omitempty"`
	Flagged              bool          `json:"flagged"`
	AdminNotes           string        `json:"admin_notes,omitempty"`
	// Version backs the store's optimistic concurrency control and is not
	// exposed to clients.
	Version int `json:"-"`
}

// HasQuestion reports whether questionID belongs to the assigned set.
func (s *TestSession) HasQuestion(questionID uuid.UUID) bool {
	for _, id := range s.AssignedQuestionIDs {
		if id == questionID {
			return true
		}
	}
	return false
}

// ─── Request payloads ───────────────────────────────────────────────────────

// StartSessionRequest is the payload for starting or resuming a session.
type StartSessionRequest struct {
	AccessCode  string      `json:"access_code" binding:"omitempty,max=20"`
	BrowserInfo BrowserInfo `json:"browser_info" binding:"omitempty"`
}

// SubmitAnswerRequest is the payload for submitting one answer.
type SubmitAnswerRequest struct {
	QuestionID           uuid.UUID `json:"question_id" binding:"required"`
	SubmittedValue       string    `json:"submitted_value" binding:"required,max=4000"`
	TimeSpentSeconds     int       `json:"time_spent_seconds" binding:"min=0"`
	CurrentQuestionIndex *int      `json:"current_question_index" binding:"omitempty,min=0"`
}

// AutoSaveRequest is the lightweight checkpoint payload.
type AutoSaveRequest struct {
	CurrentQuestionIndex int `json:"current_question_index" binding:"min=0"`
	TimeRemainingSeconds int `json:"time_remaining_seconds" binding:"min=0"`
}

// FlagSessionRequest marks a session for instructor review.
type FlagSessionRequest struct {
	Flagged bool   `json:"flagged"`
	Reason  string `json:"reason" binding:"omitempty,max=500"`
}

// AdminNotesRequest attaches reviewer notes to a session.
type AdminNotesRequest struct {
	Notes string `json:"notes" binding:"max=4000"`
}

// ─── Views ──────────────────────────────────────────────────────────────────

// SessionView is what start/resume returns to the client.
type SessionView struct {
	Session *TestSession `json:"session"`
	Resumed bool         `json:"resumed"`
}

// SubmissionResult is returned per answer submission.
type SubmissionResult struct {
	SessionID            uuid.UUID `json:"session_id"`
	QuestionID           uuid.UUID `json:"question_id"`
	IsCorrect            bool      `json:"is_correct"`
	AnsweredCount        int       `json:"answered_count"`
	TimeRemainingSeconds int       `json:"time_remaining_seconds"`
	CurrentQuestionIndex int       `json:"current_question_index"`
}

// SessionOutcome is the queue payload delivered to the catalog once per
// completed session so it can fold the result into its rolling stats.
type SessionOutcome struct {
	TestID    uuid.UUID `json:"test_id"`
	SessionID uuid.UUID `json:"session_id"`
	Score     int       `json:"score"`
	Passed    bool      `json:"passed"`
}

// MonitorEvent is published to the test's Redis channel for the live
// admin monitor on every session state change.
type MonitorEvent struct {
	Type          string    `json:"type"`
	SessionID     uuid.UUID `json:"session_id"`
	StudentID     int       `json:"student_id"`
	AnsweredCount int       `json:"answered_count"`
	Score         *int      `json:"score,omitempty"`
	At            time.Time `json:"at"`
}

// Monitor event types.
const (
	MonitorSessionStarted   = "session_started"
	MonitorSessionResumed   = "session_resumed"
	MonitorAnswerSubmitted  = "answer_submitted"
	MonitorSessionCompleted = "session_completed"
	MonitorSessionAbandoned = "session_abandoned"
	MonitorSessionExpired   = "session_expired"
)
