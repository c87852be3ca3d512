package service

import (
	"context"
	"sync"

	"github.com/stemsi/exstem-session/internal/model"
	"github.com/stemsi/exstem-session/internal/repository"
)

// SubmissionLister lists persisted submissions of an exam.
type SubmissionLister interface {
	ListByExam(ctx context.Context, examID string) ([]model.Submission, error)
}

// MonitorService assembles the proctor's view of an exam.
type MonitorService struct {
	catalog     repository.ExamCatalog
	sessions    *ExamSessionService
	submissions SubmissionLister
}

// NewMonitorService creates a new MonitorService.
func NewMonitorService(catalog repository.ExamCatalog, sessions *ExamSessionService, submissions SubmissionLister) *MonitorService {
	return &MonitorService{catalog: catalog, sessions: sessions, submissions: submissions}
}

// GetExamProgress returns live sessions and stored submissions for an exam.
// The catalog lookup and the submission query run concurrently.
func (s *MonitorService) GetExamProgress(ctx context.Context, examID string) (*model.ExamProgress, error) {
	var (
		exam        *model.ExamDefinition
		finished    []model.Submission
		examErr     error
		finishedErr error
		wg          sync.WaitGroup
	)

	wg.Add(1)
	go func() {
		defer wg.Done()
		exam, examErr = s.catalog.Get(ctx, examID)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		finished, finishedErr = s.submissions.ListByExam(ctx, examID)
	}()

	wg.Wait()

	// The exam is critical; stored submissions are best-effort.
	if examErr != nil {
		return nil, examErr
	}
	if finishedErr != nil || finished == nil {
		finished = []model.Submission{}
	}

	return &model.ExamProgress{
		Exam:     exam.Summary(),
		Live:     s.sessions.LiveSessions(examID),
		Finished: finished,
	}, nil
}
