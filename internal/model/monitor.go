package model

import (
	"time"

	"github.com/google/uuid"
)

// MonitorEventType names the events published on an exam's monitor channel.
type MonitorEventType string

const (
	MonitorSessionStarted  MonitorEventType = "session_started"
	MonitorSessionFinished MonitorEventType = "session_finished"
)

// MonitorEvent is published to proctors watching an exam.
type MonitorEvent struct {
	Type           MonitorEventType `json:"type"`
	SessionID      uuid.UUID        `json:"session_id"`
	ExamID         string           `json:"exam_id"`
	StudentID      int              `json:"student_id"`
	Outcome        SessionState     `json:"outcome,omitempty"`
	AnsweredCount  int              `json:"answered_count"`
	TotalQuestions int              `json:"total_questions"`
	At             time.Time        `json:"at"`
}

// LiveSession summarizes an in-memory session for the monitor snapshot.
type LiveSession struct {
	SessionID        uuid.UUID    `json:"session_id"`
	StudentID        int          `json:"student_id"`
	State            SessionState `json:"state"`
	AnsweredCount    int          `json:"answered_count"`
	SecondsRemaining int          `json:"seconds_remaining"`
}

// ExamProgress is the monitor's initial view of one exam.
type ExamProgress struct {
	Exam     ExamSummary   `json:"exam"`
	Live     []LiveSession `json:"live"`
	Finished []Submission  `json:"finished"`
}
