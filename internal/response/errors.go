package response

// ErrCode is a typed error code enum for consistent API error identification.
type ErrCode string

const (
	// ─── Authentication ────────────────────────────────────────────────
	ErrTokenRequired ErrCode = "TOKEN_REQUIRED"
	ErrTokenInvalid  ErrCode = "TOKEN_INVALID"

	// ─── Authorization ─────────────────────────────────────────────────
	ErrStudentAccessOnly ErrCode = "STUDENT_ACCESS_ONLY"
	ErrAdminAccessOnly   ErrCode = "ADMIN_ACCESS_ONLY"

	// ─── Validation ────────────────────────────────────────────────────
	ErrValidation     ErrCode = "VALIDATION_ERROR"
	ErrInvalidID      ErrCode = "INVALID_ID"
	ErrInvalidPayload ErrCode = "INVALID_PAYLOAD"

	// ─── Resources ─────────────────────────────────────────────────────
	ErrNotFound         ErrCode = "NOT_FOUND"
	ErrExamNotFound     ErrCode = "EXAM_NOT_FOUND"
	ErrSessionNotFound  ErrCode = "SESSION_NOT_FOUND"
	ErrSubmissionAbsent ErrCode = "SUBMISSION_NOT_FOUND"

	// ─── Exam session ──────────────────────────────────────────────────
	ErrInvalidEntryToken  ErrCode = "INVALID_ENTRY_TOKEN"
	ErrUnknownQuestion    ErrCode = "UNKNOWN_QUESTION"
	ErrOptionOutOfRange   ErrCode = "OPTION_OUT_OF_RANGE"
	ErrSessionFinished    ErrCode = "SESSION_FINISHED"
	ErrExitConfirmPending ErrCode = "EXIT_CONFIRM_PENDING"
	ErrInvalidTransition  ErrCode = "INVALID_TRANSITION"
	ErrUnavailable        ErrCode = "SERVICE_UNAVAILABLE"

	// ─── Rate Limiting ─────────────────────────────────────────────────
	ErrRateLimitExceeded ErrCode = "RATE_LIMIT_EXCEEDED"

	// ─── Server ────────────────────────────────────────────────────────
	ErrInternal ErrCode = "INTERNAL_ERROR"
)

// GetMessage returns a human-readable message for a given error code.
func GetMessage(code ErrCode) string {
	switch code {
	// ─── Authentication ────────────────────────────────────────────────
	case ErrTokenRequired:
		return "Authentication token is required."
	case ErrTokenInvalid:
		return "Authentication token is invalid or expired."

	// ─── Authorization ─────────────────────────────────────────────────
	case ErrStudentAccessOnly:
		return "This resource is restricted to students."
	case ErrAdminAccessOnly:
		return "This resource is restricted to proctors."

	// ─── Validation ────────────────────────────────────────────────────
	case ErrValidation:
		return "Validation failed. Please check your input."
	case ErrInvalidID:
		return "Invalid ID format."
	case ErrInvalidPayload:
		return "Invalid request payload."

	// ─── Resources ─────────────────────────────────────────────────────
	case ErrNotFound:
		return "Resource not found."
	case ErrExamNotFound:
		return "Exam not found."
	case ErrSessionNotFound:
		return "Exam session not found or already finished."
	case ErrSubmissionAbsent:
		return "No submission has been stored for this session yet."

	// ─── Exam session ──────────────────────────────────────────────────
	case ErrInvalidEntryToken:
		return "Exam entry token is invalid."
	case ErrUnknownQuestion:
		return "The question does not belong to this exam."
	case ErrOptionOutOfRange:
		return "The option does not exist for this question."
	case ErrSessionFinished:
		return "This exam session is already finished."
	case ErrExitConfirmPending:
		return "Confirm or cancel leaving the exam first."
	case ErrInvalidTransition:
		return "This action is not allowed in the current session state."
	case ErrUnavailable:
		return "The service is shutting down. Please try again shortly."

	// ─── Rate Limiting ─────────────────────────────────────────────────
	case ErrRateLimitExceeded:
		return "Too many requests. Please try again later."

	// ─── Server ────────────────────────────────────────────────────────
	case ErrInternal:
		return "Internal server error."
	default:
		return "An unexpected error occurred."
	}
}
