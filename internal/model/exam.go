package model

import (
	"errors"
	"fmt"
)

// ErrInvalidExam marks an exam definition that breaks a structural invariant.
var ErrInvalidExam = errors.New("invalid exam definition")

// MinOptions is the smallest option count a question may carry.
const MinOptions = 2

// ExamDefinition is the immutable content of one exam attempt.
type ExamDefinition struct {
	ID              string     `json:"id"`
	Title           string     `json:"title"`
	Course          string     `json:"course,omitempty"`
	DurationSeconds int        `json:"duration_seconds"`
	EntryTokenHash  string     `json:"-"`
	Questions       []Question `json:"questions"`
}

// ExamSummary is the catalog listing entry for an exam.
type ExamSummary struct {
	ID                 string `json:"id"`
	Title              string `json:"title"`
	Course             string `json:"course,omitempty"`
	DurationSeconds    int    `json:"duration_seconds"`
	QuestionCount      int    `json:"question_count"`
	RequiresEntryToken bool   `json:"requires_entry_token"`
}

// RequiresEntryToken reports whether starting the exam needs an entry token.
func (e *ExamDefinition) RequiresEntryToken() bool {
	return e.EntryTokenHash != ""
}

// Summary builds the listing entry. The token hash never leaves the definition.
func (e *ExamDefinition) Summary() ExamSummary {
	return ExamSummary{
		ID:                 e.ID,
		Title:              e.Title,
		Course:             e.Course,
		DurationSeconds:    e.DurationSeconds,
		QuestionCount:      len(e.Questions),
		RequiresEntryToken: e.RequiresEntryToken(),
	}
}

// Question looks up a question by id.
func (e *ExamDefinition) Question(id int) (Question, bool) {
	for _, q := range e.Questions {
		if q.ID == id {
			return q, true
		}
	}
	return Question{}, false
}

// Validate checks the invariants every session relies on.
func (e *ExamDefinition) Validate() error {
	if e == nil {
		return fmt.Errorf("%w: nil definition", ErrInvalidExam)
	}
	if e.DurationSeconds < 1 {
		return fmt.Errorf("%w: exam %q: duration must be at least 1 second", ErrInvalidExam, e.ID)
	}
	if len(e.Questions) == 0 {
		return fmt.Errorf("%w: exam %q has no questions", ErrInvalidExam, e.ID)
	}

	seen := make(map[int]struct{}, len(e.Questions))
	for _, q := range e.Questions {
		if q.ID < 1 {
			return fmt.Errorf("%w: exam %q: question ids start at 1, got %d", ErrInvalidExam, e.ID, q.ID)
		}
		if _, dup := seen[q.ID]; dup {
			return fmt.Errorf("%w: exam %q: duplicate question id %d", ErrInvalidExam, e.ID, q.ID)
		}
		seen[q.ID] = struct{}{}

		if !q.Kind.Valid() {
			return fmt.Errorf("%w: exam %q: question %d: %v", ErrInvalidExam, e.ID, q.ID, ErrUnknownQuestionKind)
		}
		if len(q.Options) < MinOptions {
			return fmt.Errorf("%w: exam %q: question %d needs at least %d options", ErrInvalidExam, e.ID, q.ID, MinOptions)
		}
	}
	return nil
}
