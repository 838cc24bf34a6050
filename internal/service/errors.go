package service

import "errors"

// Domain errors surfaced by the session engine and its collaborators.
// Handlers map these to response codes with errors.Is; everything else
// is reported as internal.
var (
	// ErrNotFound covers absent sessions/tests/questions and ownership
	// failures alike, so unauthorized callers cannot probe for existence.
	ErrNotFound = errors.New("resource not found")

	// ErrTestNotStartable means the test's own schedule or status gating
	// rejected session creation.
	ErrTestNotStartable = errors.New("test is not startable")

	// ErrAccessCodeRequired means the test defines an access code and none
	// was supplied.
	ErrAccessCodeRequired = errors.New("access code required")

	// ErrInvalidAccessCode means the supplied code does not match.
	ErrInvalidAccessCode = errors.New("invalid access code")

	// ErrSessionNotActive means the operation requires an IN_PROGRESS
	// session. Terminal sessions reject further transitions with this
	// error rather than silently no-opping, so callers can detect
	// double-submission bugs.
	ErrSessionNotActive = errors.New("session is not in progress")

	// ErrQuestionNotInSession means the question is not part of the
	// session's assigned set.
	ErrQuestionNotInSession = errors.New("question not in session")

	// ErrRequiresManualGrading means the question type cannot be
	// auto-graded; the submission is rejected instead of being scored zero.
	ErrRequiresManualGrading = errors.New("question requires manual grading")

	// ErrSubmissionConflict means the optimistic write lost its version
	// race more times than the engine is willing to retry.
	ErrSubmissionConflict = errors.New("submission conflicted with a concurrent update")

	// ErrStorageUnavailable wraps store timeouts/unavailability; callers
	// may retry with backoff.
	ErrStorageUnavailable = errors.New("storage unavailable")
)
