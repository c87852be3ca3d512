package model

import (
	"time"

	"github.com/google/uuid"
)

// SessionState enumerates the exit/submit gate states of an exam session.
type SessionState string

const (
	SessionStateActive             SessionState = "ACTIVE"
	SessionStateExitConfirmPending SessionState = "EXIT_CONFIRM_PENDING"
	SessionStateExited             SessionState = "EXITED"
	SessionStateSubmittedByTimeout SessionState = "SUBMITTED_BY_TIMEOUT"
	SessionStateSubmittedManually  SessionState = "SUBMITTED_MANUALLY"
)

// Terminal reports whether the session accepts no further changes.
func (s SessionState) Terminal() bool {
	switch s {
	case SessionStateExited, SessionStateSubmittedByTimeout, SessionStateSubmittedManually:
		return true
	default:
		return false
	}
}

// QuestionStatus is the overview-grid status of one question.
type QuestionStatus string

const (
	QuestionStatusCurrent    QuestionStatus = "current"
	QuestionStatusAnswered   QuestionStatus = "answered"
	QuestionStatusUnanswered QuestionStatus = "unanswered"
)

// QuestionState pairs a question id with its derived status.
type QuestionState struct {
	ID     int            `json:"id"`
	Status QuestionStatus `json:"status"`
}

// SessionSnapshot is a point-in-time copy of a session, safe to serialize.
type SessionSnapshot struct {
	SessionID         uuid.UUID           `json:"session_id"`
	ExamID            string              `json:"exam_id"`
	Title             string              `json:"title"`
	State             SessionState        `json:"state"`
	CurrentQuestionID int                 `json:"current_question_id"`
	SecondsRemaining  int                 `json:"seconds_remaining"`
	Clock             string              `json:"clock"`
	SubmitRequested   bool                `json:"submit_requested"`
	ExitRequested     bool                `json:"exit_requested"`
	OverviewOpen      bool                `json:"overview_open"`
	AnsweredCount     int                 `json:"answered_count"`
	TotalQuestions    int                 `json:"total_questions"`
	Answers           map[int]AnswerValue `json:"answers"`
	Questions         []QuestionState     `json:"questions"`
}

// Submission is the final answer ledger of a finished session, handed to the
// submission pipeline.
type Submission struct {
	SessionID        uuid.UUID           `json:"session_id"`
	ExamID           string              `json:"exam_id"`
	StudentID        int                 `json:"student_id"`
	Outcome          SessionState        `json:"outcome"`
	Answers          map[int]AnswerValue `json:"answers"`
	AnsweredCount    int                 `json:"answered_count"`
	TotalQuestions   int                 `json:"total_questions"`
	SecondsRemaining int                 `json:"seconds_remaining"`
	StartedAt        time.Time           `json:"started_at"`
	FinishedAt       time.Time           `json:"finished_at"`
}

// StartSessionRequest is the payload for entering an exam.
type StartSessionRequest struct {
	EntryToken string `json:"entry_token" binding:"omitempty,max=64"`
}

// AnswerRequest records or toggles one option of a question.
type AnswerRequest struct {
	QuestionID int  `json:"question_id" binding:"required,min=1"`
	Option     *int `json:"option" binding:"required,min=0"`
}

// GoToRequest moves the cursor to a question.
type GoToRequest struct {
	QuestionID int `json:"question_id" binding:"required,min=1"`
}
