package response

// ErrCode is a typed error code enum for consistent API error identification.
type ErrCode string

const (
	// ─── Authentication ────────────────────────────────────────────────
	ErrTokenRequired ErrCode = "TOKEN_REQUIRED"
	ErrTokenInvalid  ErrCode = "TOKEN_INVALID"
	ErrTokenExpired  ErrCode = "TOKEN_EXPIRED"

	// ─── Authorization ─────────────────────────────────────────────────
	ErrForbidden         ErrCode = "FORBIDDEN"
	ErrStudentAccessOnly ErrCode = "STUDENT_ACCESS_ONLY"
	ErrAdminAccessOnly   ErrCode = "ADMIN_ACCESS_ONLY"

	// ─── Validation ────────────────────────────────────────────────────
	ErrValidation     ErrCode = "VALIDATION_ERROR"
	ErrInvalidID      ErrCode = "INVALID_ID"
	ErrInvalidPayload ErrCode = "INVALID_PAYLOAD"

	// ─── Resources ─────────────────────────────────────────────────────
	ErrNotFound ErrCode = "NOT_FOUND"
	ErrConflict ErrCode = "CONFLICT"

	// ─── Session engine ────────────────────────────────────────────────
	ErrTestNotStartable       ErrCode = "TEST_NOT_STARTABLE"
	ErrAccessCodeRequired     ErrCode = "ACCESS_CODE_REQUIRED"
	ErrInvalidAccessCode      ErrCode = "INVALID_ACCESS_CODE"
	ErrSessionNotActive       ErrCode = "SESSION_NOT_ACTIVE"
	ErrQuestionNotInSession   ErrCode = "QUESTION_NOT_IN_SESSION"
	ErrRequiresManualGrading  ErrCode = "REQUIRES_MANUAL_GRADING"
	ErrSubmissionConflict     ErrCode = "SUBMISSION_CONFLICT"

	// ─── Infrastructure ────────────────────────────────────────────────
	ErrRateLimitExceeded  ErrCode = "RATE_LIMIT_EXCEEDED"
	ErrStorageUnavailable ErrCode = "STORAGE_UNAVAILABLE"
	ErrInternal           ErrCode = "INTERNAL_ERROR"
)

// GetMessage returns a human-readable message for a given error code.
func GetMessage(code ErrCode) string {
	switch code {
	// ─── Authentication ────────────────────────────────────────────────
	case ErrTokenRequired:
		return "An authentication token is required."
	case ErrTokenInvalid:
		return "The authentication token is invalid."
	case ErrTokenExpired:
		return "The authentication token has expired."

	// ─── Authorization ─────────────────────────────────────────────────
	case ErrForbidden:
		return "You do not have permission to access this resource."
	case ErrStudentAccessOnly:
		return "This resource is restricted to students."
	case ErrAdminAccessOnly:
		return "This resource is restricted to administrators."

	// ─── Validation ────────────────────────────────────────────────────
	case ErrValidation:
		return "Validation failed. Please check your input."
	case ErrInvalidID:
		return "Invalid identifier format."
	case ErrInvalidPayload:
		return "Invalid request payload."

	// ─── Resources ─────────────────────────────────────────────────────
	case ErrNotFound:
		return "Resource not found."
	case ErrConflict:
		return "The resource already exists."

	// ─── Session engine ────────────────────────────────────────────────
	case ErrTestNotStartable:
		return "This test cannot be started right now."
	case ErrAccessCodeRequired:
		return "This test requires an access code."
	case ErrInvalidAccessCode:
		return "The supplied access code is incorrect."
	case ErrSessionNotActive:
		return "The session is no longer in progress."
	case ErrQuestionNotInSession:
		return "The question is not part of this session."
	case ErrRequiresManualGrading:
		return "This question type requires manual grading."
	case ErrSubmissionConflict:
		return "The submission conflicted with another update. Please retry."

	// ─── Infrastructure ────────────────────────────────────────────────
	case ErrRateLimitExceeded:
		return "Too many requests. Please slow down."
	case ErrStorageUnavailable:
		return "Storage is temporarily unavailable. Please retry shortly."
	case ErrInternal:
		return "An internal server error occurred."
	default:
		return "An unexpected error occurred."
	}
}
