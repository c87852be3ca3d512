package examsession

import "errors"

// Session errors. Callers match them with errors.Is.
var (
	ErrUnknownQuestion    = errors.New("unknown question")
	ErrOptionOutOfRange   = errors.New("option index out of range")
	ErrSessionFinished    = errors.New("exam session is finished")
	ErrExitConfirmPending = errors.New("exit confirmation is pending")
	ErrInvalidTransition  = errors.New("invalid session transition")
)
