package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-session/internal/config"
	"github.com/stemsi/exstem-session/internal/examsession"
	"github.com/stemsi/exstem-session/internal/model"
	"github.com/stemsi/exstem-session/internal/repository"
)

const (
	deliverTimeout    = 5 * time.Second
	subscriberBacklog = 16
)

// SubmissionSink receives finished ledgers and monitor notifications.
type SubmissionSink interface {
	Deliver(ctx context.Context, s *model.Submission) error
	Announce(ctx context.Context, ev *model.MonitorEvent) error
}

// ExamSessionService owns every live exam session of this process.
type ExamSessionService struct {
	catalog repository.ExamCatalog
	sink    SubmissionSink
	log     zerolog.Logger

	clock         examsession.Clock
	tickInterval  time.Duration
	submitRetries int
	retryBackoff  time.Duration

	mu       sync.Mutex
	sessions map[uuid.UUID]*liveSession
	byOwner  map[ownerKey]uuid.UUID
	closed   bool

	deliveries sync.WaitGroup
}

// ServiceOption tunes an ExamSessionService.
type ServiceOption func(*ExamSessionService)

// WithSessionClock replaces the wall clock used by new sessions.
func WithSessionClock(c examsession.Clock) ServiceOption {
	return func(s *ExamSessionService) { s.clock = c }
}

// WithRetryBackoff sets the base delay between delivery attempts.
func WithRetryBackoff(d time.Duration) ServiceOption {
	return func(s *ExamSessionService) { s.retryBackoff = d }
}

// NewExamSessionService creates a new ExamSessionService.
func NewExamSessionService(
	catalog repository.ExamCatalog,
	sink SubmissionSink,
	cfg *config.Config,
	log zerolog.Logger,
	opts ...ServiceOption,
) *ExamSessionService {
	s := &ExamSessionService{
		catalog:       catalog,
		sink:          sink,
		log:           log.With().Str("component", "exam_session_service").Logger(),
		clock:         examsession.SystemClock,
		tickInterval:  cfg.TickInterval,
		submitRetries: cfg.SubmitRetries,
		retryBackoff:  time.Second,
		sessions:      make(map[uuid.UUID]*liveSession),
		byOwner:       make(map[ownerKey]uuid.UUID),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.submitRetries < 1 {
		s.submitRetries = 1
	}
	return s
}

type ownerKey struct {
	examID    string
	studentID int
}

type liveSession struct {
	*examsession.Session
	studentID int
	hub       *eventHub
}

// StartResult is returned by Start.
type StartResult struct {
	Snapshot model.SessionSnapshot
	// Created is false when an existing session was resumed.
	Created bool
}

// Start opens an exam for a student. A student holds at most one live session
// per exam; starting again returns that session.
func (s *ExamSessionService) Start(ctx context.Context, examID string, studentID int, entryToken string) (*StartResult, error) {
	exam, err := s.catalog.Get(ctx, examID)
	if err != nil {
		return nil, err
	}
	if err := CompareEntryToken(exam.EntryTokenHash, entryToken); err != nil {
		return nil, err
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrShuttingDown
	}
	key := ownerKey{examID: examID, studentID: studentID}
	if id, ok := s.byOwner[key]; ok {
		live := s.sessions[id]
		s.mu.Unlock()
		return &StartResult{Snapshot: live.Snapshot()}, nil
	}

	live := &liveSession{studentID: studentID, hub: newEventHub()}
	sess, err := examsession.New(exam,
		examsession.WithClock(s.clock),
		examsession.WithTickInterval(s.tickInterval),
		examsession.WithLogger(s.log.With().Int("student_id", studentID).Logger()),
		examsession.WithListener(func(ev examsession.Event) { s.onEvent(live, ev) }),
	)
	if err != nil {
		s.mu.Unlock()
		return nil, fmt.Errorf("new session: %w", err)
	}
	live.Session = sess
	s.sessions[sess.ID()] = live
	s.byOwner[key] = sess.ID()
	s.mu.Unlock()

	sess.Start(context.Background())
	snap := sess.Snapshot()

	s.log.Info().
		Str("session_id", sess.ID().String()).
		Str("exam_id", examID).
		Int("student_id", studentID).
		Int("duration_seconds", exam.DurationSeconds).
		Msg("Exam session started")

	s.announce(&model.MonitorEvent{
		Type:           model.MonitorSessionStarted,
		SessionID:      sess.ID(),
		ExamID:         examID,
		StudentID:      studentID,
		TotalQuestions: snap.TotalQuestions,
		At:             time.Now(),
	})

	return &StartResult{Snapshot: snap, Created: true}, nil
}

// Answer records or toggles one option.
func (s *ExamSessionService) Answer(sessionID uuid.UUID, studentID, questionID, option int) (model.SessionSnapshot, error) {
	return s.apply(sessionID, studentID, func(sess *examsession.Session) error {
		_, err := sess.RecordAnswer(questionID, option)
		return err
	})
}

// GoTo moves the question cursor.
func (s *ExamSessionService) GoTo(sessionID uuid.UUID, studentID, questionID int) (model.SessionSnapshot, error) {
	return s.apply(sessionID, studentID, func(sess *examsession.Session) error {
		return sess.GoTo(questionID)
	})
}

// OpenOverview shows the question overview.
func (s *ExamSessionService) OpenOverview(sessionID uuid.UUID, studentID int) (model.SessionSnapshot, error) {
	return s.apply(sessionID, studentID, (*examsession.Session).OpenOverview)
}

// CloseOverview hides the question overview.
func (s *ExamSessionService) CloseOverview(sessionID uuid.UUID, studentID int) (model.SessionSnapshot, error) {
	return s.apply(sessionID, studentID, (*examsession.Session).CloseOverview)
}

// Back handles the platform back gesture.
func (s *ExamSessionService) Back(sessionID uuid.UUID, studentID int) (model.SessionSnapshot, error) {
	return s.apply(sessionID, studentID, (*examsession.Session).Back)
}

// ConfirmExit leaves the exam from the exit prompt.
func (s *ExamSessionService) ConfirmExit(sessionID uuid.UUID, studentID int) (model.SessionSnapshot, error) {
	return s.apply(sessionID, studentID, (*examsession.Session).ConfirmExit)
}

// CancelExit dismisses the exit prompt.
func (s *ExamSessionService) CancelExit(sessionID uuid.UUID, studentID int) (model.SessionSnapshot, error) {
	return s.apply(sessionID, studentID, (*examsession.Session).CancelExit)
}

// Submit hands the exam in.
func (s *ExamSessionService) Submit(sessionID uuid.UUID, studentID int) (model.SessionSnapshot, error) {
	return s.apply(sessionID, studentID, (*examsession.Session).Submit)
}

// Snapshot returns the current state of a live session.
func (s *ExamSessionService) Snapshot(sessionID uuid.UUID, studentID int) (model.SessionSnapshot, error) {
	return s.apply(sessionID, studentID, func(*examsession.Session) error { return nil })
}

// Paper returns the exam definition behind a live session, for rendering
// question texts and options.
func (s *ExamSessionService) Paper(sessionID uuid.UUID, studentID int) (*model.ExamDefinition, error) {
	s.mu.Lock()
	live, err := s.lookupLocked(sessionID, studentID)
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return live.Exam(), nil
}

// LiveCount reports how many sessions are running.
func (s *ExamSessionService) LiveCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Discard tears a live session down without submitting it.
func (s *ExamSessionService) Discard(sessionID uuid.UUID, studentID int) error {
	s.mu.Lock()
	live, err := s.lookupLocked(sessionID, studentID)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	s.removeLocked(live)
	s.mu.Unlock()

	live.Close()
	live.hub.close()

	s.log.Info().
		Str("session_id", sessionID.String()).
		Int("student_id", studentID).
		Msg("Exam session discarded")
	return nil
}

// Subscribe streams the events of a live session. The channel is closed when
// the session finishes or is discarded; cancel releases it early.
func (s *ExamSessionService) Subscribe(sessionID uuid.UUID, studentID int) (<-chan examsession.Event, func(), error) {
	s.mu.Lock()
	live, err := s.lookupLocked(sessionID, studentID)
	s.mu.Unlock()
	if err != nil {
		return nil, nil, err
	}

	ch, cancel := live.hub.subscribe()
	return ch, cancel, nil
}

// LiveSessions lists the in-memory sessions of an exam.
func (s *ExamSessionService) LiveSessions(examID string) []model.LiveSession {
	s.mu.Lock()
	lives := make([]*liveSession, 0, len(s.sessions))
	for _, live := range s.sessions {
		if live.Exam().ID == examID {
			lives = append(lives, live)
		}
	}
	s.mu.Unlock()

	out := make([]model.LiveSession, 0, len(lives))
	for _, live := range lives {
		snap := live.Snapshot()
		out = append(out, model.LiveSession{
			SessionID:        snap.SessionID,
			StudentID:        live.studentID,
			State:            snap.State,
			AnsweredCount:    snap.AnsweredCount,
			SecondsRemaining: snap.SecondsRemaining,
		})
	}
	return out
}

// Shutdown discards every live session and waits for pending deliveries.
func (s *ExamSessionService) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	lives := make([]*liveSession, 0, len(s.sessions))
	for _, live := range s.sessions {
		lives = append(lives, live)
		s.removeLocked(live)
	}
	s.mu.Unlock()

	for _, live := range lives {
		live.Close()
		live.hub.close()
	}
	if len(lives) > 0 {
		s.log.Info().Int("count", len(lives)).Msg("Discarded live sessions on shutdown")
	}

	done := make(chan struct{})
	go func() {
		s.deliveries.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Wait blocks until every pending submission delivery has finished.
func (s *ExamSessionService) Wait() {
	s.deliveries.Wait()
}

func (s *ExamSessionService) apply(sessionID uuid.UUID, studentID int, op func(*examsession.Session) error) (model.SessionSnapshot, error) {
	s.mu.Lock()
	live, err := s.lookupLocked(sessionID, studentID)
	s.mu.Unlock()
	if err != nil {
		return model.SessionSnapshot{}, err
	}

	if err := op(live.Session); err != nil {
		return live.Snapshot(), err
	}
	return live.Snapshot(), nil
}

func (s *ExamSessionService) lookupLocked(sessionID uuid.UUID, studentID int) (*liveSession, error) {
	live, ok := s.sessions[sessionID]
	if !ok || live.studentID != studentID {
		return nil, ErrSessionNotFound
	}
	return live, nil
}

func (s *ExamSessionService) removeLocked(live *liveSession) {
	delete(s.sessions, live.ID())
	key := ownerKey{examID: live.Exam().ID, studentID: live.studentID}
	if s.byOwner[key] == live.ID() {
		delete(s.byOwner, key)
	}
}

// onEvent runs on the session's emit path, never with the session lock held.
func (s *ExamSessionService) onEvent(live *liveSession, ev examsession.Event) {
	live.hub.publish(ev)
	if ev.Type != examsession.EventFinished || ev.Result == nil {
		return
	}

	s.mu.Lock()
	if s.sessions[live.ID()] == live {
		s.removeLocked(live)
	}
	s.mu.Unlock()
	live.hub.close()

	sub := toSubmission(ev.Result, live.studentID)
	s.deliveries.Add(1)
	go func() {
		defer s.deliveries.Done()
		s.deliver(sub)
	}()
}

// deliver hands the submission to the sink, retrying with linear backoff.
func (s *ExamSessionService) deliver(sub *model.Submission) {
	log := s.log.With().
		Str("session_id", sub.SessionID.String()).
		Str("exam_id", sub.ExamID).
		Int("student_id", sub.StudentID).
		Logger()

	var err error
	for attempt := 1; attempt <= s.submitRetries; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), deliverTimeout)
		err = s.sink.Deliver(ctx, sub)
		cancel()
		if err == nil {
			log.Info().Str("outcome", string(sub.Outcome)).Int("attempt", attempt).Msg("Submission delivered")
			return
		}

		log.Warn().Err(err).Int("attempt", attempt).Msg("Submission delivery failed")
		if attempt < s.submitRetries {
			time.Sleep(time.Duration(attempt) * s.retryBackoff)
		}
	}
	log.Error().Err(err).Msg("Submission dropped after retries")
}

func (s *ExamSessionService) announce(ev *model.MonitorEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), deliverTimeout)
	defer cancel()
	if err := s.sink.Announce(ctx, ev); err != nil {
		s.log.Warn().Err(err).Str("exam_id", ev.ExamID).Msg("Failed to announce monitor event")
	}
}

func toSubmission(r *examsession.Result, studentID int) *model.Submission {
	return &model.Submission{
		SessionID:        r.SessionID,
		ExamID:           r.ExamID,
		StudentID:        studentID,
		Outcome:          r.Outcome,
		Answers:          r.Answers,
		AnsweredCount:    r.AnsweredCount,
		TotalQuestions:   r.TotalQuestions,
		SecondsRemaining: r.SecondsRemaining,
		StartedAt:        r.StartedAt,
		FinishedAt:       r.FinishedAt,
	}
}
