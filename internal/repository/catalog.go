package repository

import (
	"context"
	"errors"

	"github.com/stemsi/exstem-session/internal/model"
)

// ErrExamNotFound is returned when a catalog has no exam with the given id.
var ErrExamNotFound = errors.New("exam not found")

// ExamCatalog resolves exam definitions by id. The session layer depends on
// this interface only; where the exams live is a deployment choice.
type ExamCatalog interface {
	List(ctx context.Context) ([]model.ExamSummary, error)
	Get(ctx context.Context, examID string) (*model.ExamDefinition, error)
}
