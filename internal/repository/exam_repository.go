package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/exstem-session/internal/model"
)

// PostgresCatalog reads exam definitions from the exams and exam_questions tables.
type PostgresCatalog struct {
	pool *pgxpool.Pool
}

// NewPostgresCatalog creates a new PostgresCatalog.
func NewPostgresCatalog(pool *pgxpool.Pool) *PostgresCatalog {
	return &PostgresCatalog{pool: pool}
}

// List returns a summary of every exam, ordered by title.
func (r *PostgresCatalog) List(ctx context.Context) ([]model.ExamSummary, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT e.id, e.title, e.course, e.duration_seconds, e.entry_token_hash <> '',
		        (SELECT COUNT(*) FROM exam_questions q WHERE q.exam_id = e.id)
		 FROM exams e
		 ORDER BY e.title`,
	)
	if err != nil {
		return nil, fmt.Errorf("list exams: %w", err)
	}
	defer rows.Close()

	var out []model.ExamSummary
	for rows.Next() {
		var s model.ExamSummary
		if err := rows.Scan(&s.ID, &s.Title, &s.Course, &s.DurationSeconds, &s.RequiresEntryToken, &s.QuestionCount); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// Get loads a full definition including its questions in display order.
func (r *PostgresCatalog) Get(ctx context.Context, examID string) (*model.ExamDefinition, error) {
	def := &model.ExamDefinition{ID: examID}
	err := r.pool.QueryRow(ctx,
		`SELECT title, course, duration_seconds, entry_token_hash
		 FROM exams WHERE id = $1`, examID,
	).Scan(&def.Title, &def.Course, &def.DurationSeconds, &def.EntryTokenHash)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrExamNotFound, examID)
	}
	if err != nil {
		return nil, fmt.Errorf("get exam %s: %w", examID, err)
	}

	rows, err := r.pool.Query(ctx,
		`SELECT question_id, text, kind, options
		 FROM exam_questions
		 WHERE exam_id = $1
		 ORDER BY position`, examID,
	)
	if err != nil {
		return nil, fmt.Errorf("get questions %s: %w", examID, err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			q       model.Question
			kind    string
			options []byte
		)
		if err := rows.Scan(&q.ID, &q.Text, &kind, &options); err != nil {
			return nil, err
		}
		if q.Kind, err = model.ParseQuestionKind(kind); err != nil {
			return nil, fmt.Errorf("exam %s question %d: %w", examID, q.ID, err)
		}
		if err := json.Unmarshal(options, &q.Options); err != nil {
			return nil, fmt.Errorf("exam %s question %d options: %w", examID, q.ID, err)
		}
		def.Questions = append(def.Questions, q)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if err := def.Validate(); err != nil {
		return nil, err
	}
	return def, nil
}

// Upsert replaces an exam and its questions atomically.
func (r *PostgresCatalog) Upsert(ctx context.Context, def *model.ExamDefinition) error {
	if err := def.Validate(); err != nil {
		return err
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx,
		`INSERT INTO exams (id, title, course, duration_seconds, entry_token_hash)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (id) DO UPDATE
		 SET title = EXCLUDED.title,
		     course = EXCLUDED.course,
		     duration_seconds = EXCLUDED.duration_seconds,
		     entry_token_hash = EXCLUDED.entry_token_hash,
		     updated_at = NOW()`,
		def.ID, def.Title, def.Course, def.DurationSeconds, def.EntryTokenHash,
	); err != nil {
		return fmt.Errorf("upsert exam %s: %w", def.ID, err)
	}

	if _, err := tx.Exec(ctx, `DELETE FROM exam_questions WHERE exam_id = $1`, def.ID); err != nil {
		return fmt.Errorf("clear questions %s: %w", def.ID, err)
	}

	batch := &pgx.Batch{}
	for pos, q := range def.Questions {
		options, err := json.Marshal(q.Options)
		if err != nil {
			return err
		}
		batch.Queue(
			`INSERT INTO exam_questions (exam_id, question_id, position, text, kind, options)
			 VALUES ($1, $2, $3, $4, $5, $6)`,
			def.ID, q.ID, pos, q.Text, q.Kind.String(), options,
		)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("insert questions %s: %w", def.ID, err)
	}

	return tx.Commit(ctx)
}
