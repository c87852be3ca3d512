package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/exstem-session/internal/model"
)

// ErrSubmissionNotFound is returned when no submission exists for a session.
var ErrSubmissionNotFound = errors.New("submission not found")

// SubmissionRepository persists finished session ledgers.
type SubmissionRepository struct {
	pool *pgxpool.Pool
}

// NewSubmissionRepository creates a new SubmissionRepository.
func NewSubmissionRepository(pool *pgxpool.Pool) *SubmissionRepository {
	return &SubmissionRepository{pool: pool}
}

const submissionColumns = `session_id, exam_id, student_id, outcome, answers,
	answered_count, total_questions, seconds_remaining, started_at, finished_at`

// Save inserts a submission. A second save for the same session is a no-op,
// so a retried delivery never overwrites the first record.
func (r *SubmissionRepository) Save(ctx context.Context, s *model.Submission) error {
	answers, err := json.Marshal(s.Answers)
	if err != nil {
		return fmt.Errorf("encode answers: %w", err)
	}

	_, err = r.pool.Exec(ctx,
		`INSERT INTO exam_submissions (`+submissionColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 ON CONFLICT (session_id) DO NOTHING`,
		s.SessionID, s.ExamID, s.StudentID, string(s.Outcome), answers,
		s.AnsweredCount, s.TotalQuestions, s.SecondsRemaining, s.StartedAt, s.FinishedAt,
	)
	return err
}

// GetBySession returns the stored submission of a session.
func (r *SubmissionRepository) GetBySession(ctx context.Context, sessionID uuid.UUID) (*model.Submission, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+submissionColumns+` FROM exam_submissions WHERE session_id = $1`, sessionID)

	s, err := scanSubmission(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrSubmissionNotFound
	}
	return s, err
}

// ListByExam returns every submission for an exam, newest first.
func (r *SubmissionRepository) ListByExam(ctx context.Context, examID string) ([]model.Submission, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+submissionColumns+`
		 FROM exam_submissions
		 WHERE exam_id = $1
		 ORDER BY finished_at DESC`, examID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]model.Submission, 0)
	for rows.Next() {
		s, err := scanSubmission(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *s)
	}
	return out, rows.Err()
}

func scanSubmission(row pgx.Row) (*model.Submission, error) {
	var (
		s       model.Submission
		outcome string
		answers []byte
	)
	if err := row.Scan(&s.SessionID, &s.ExamID, &s.StudentID, &outcome, &answers,
		&s.AnsweredCount, &s.TotalQuestions, &s.SecondsRemaining, &s.StartedAt, &s.FinishedAt); err != nil {
		return nil, err
	}
	s.Outcome = model.SessionState(outcome)
	if err := json.Unmarshal(answers, &s.Answers); err != nil {
		return nil, fmt.Errorf("decode answers: %w", err)
	}
	return &s, nil
}
