// Package examsession holds the in-memory state of one timed exam attempt:
// the countdown, the answer ledger, the question cursor and the exit/submit
// gate. A Session never persists itself; its final ledger is exposed through
// Result once a terminal state is reached.
package examsession

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-session/internal/model"
)

// DefaultTickInterval is one real-time second.
const DefaultTickInterval = time.Second

// EventType names the notifications a Session emits.
type EventType string

const (
	EventState    EventType = "state"
	EventTick     EventType = "tick"
	EventFinished EventType = "finished"
)

// Event is delivered to the session listener after every change.
type Event struct {
	Type     EventType
	Snapshot model.SessionSnapshot
	Result   *Result
}

// Result is the final ledger of a session in a terminal state.
type Result struct {
	SessionID        uuid.UUID
	ExamID           string
	Outcome          model.SessionState
	Answers          map[int]model.AnswerValue
	AnsweredCount    int
	TotalQuestions   int
	SecondsRemaining int
	StartedAt        time.Time
	FinishedAt       time.Time
}

// Option configures a Session.
type Option func(*Session)

// WithID fixes the session id instead of generating one.
func WithID(id uuid.UUID) Option {
	return func(s *Session) { s.id = id }
}

// WithClock replaces the wall clock used by Start.
func WithClock(c Clock) Option {
	return func(s *Session) { s.clock = c }
}

// WithTickInterval changes the length of one countdown second.
func WithTickInterval(d time.Duration) Option {
	return func(s *Session) {
		if d > 0 {
			s.interval = d
		}
	}
}

// WithListener registers fn to receive events. fn runs synchronously, in
// order, without the session lock held. It must not call Close.
func WithListener(fn func(Event)) Option {
	return func(s *Session) { s.listener = fn }
}

// WithLogger attaches a logger.
func WithLogger(log zerolog.Logger) Option {
	return func(s *Session) { s.log = log }
}

// Session is one exam attempt. All methods are safe for concurrent use; they
// are serialized by an internal lock.
type Session struct {
	id       uuid.UUID
	exam     *model.ExamDefinition
	clock    Clock
	interval time.Duration
	listener func(Event)
	log      zerolog.Logger

	mu              sync.Mutex
	emitMu          sync.Mutex
	ledger          *Ledger
	countdown       *Countdown
	current         int
	state           model.SessionState
	overviewOpen    bool
	submitRequested bool
	exitRequested   bool
	startedAt       time.Time
	finishedAt      time.Time
	stop            context.CancelFunc
	done            chan struct{}
}

// New creates an Active session positioned on the first question.
func New(exam *model.ExamDefinition, opts ...Option) (*Session, error) {
	if err := exam.Validate(); err != nil {
		return nil, err
	}

	s := &Session{
		id:        uuid.New(),
		exam:      exam,
		clock:     SystemClock,
		interval:  DefaultTickInterval,
		listener:  func(Event) {},
		log:       zerolog.Nop(),
		ledger:    NewLedger(exam.Questions),
		countdown: NewCountdown(exam.DurationSeconds),
		current:   exam.Questions[0].ID,
		state:     model.SessionStateActive,
		startedAt: time.Now(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.With().
		Str("session_id", s.id.String()).
		Str("exam_id", exam.ID).
		Logger()

	return s, nil
}

// ID returns the session id.
func (s *Session) ID() uuid.UUID { return s.id }

// Exam returns the definition the session was created with.
func (s *Session) Exam() *model.ExamDefinition { return s.exam }

// Start schedules the countdown. Calling Start twice, or on a finished
// session, does nothing.
func (s *Session) Start(ctx context.Context) {
	s.mu.Lock()
	if s.stop != nil || s.state.Terminal() {
		s.mu.Unlock()
		return
	}
	runCtx, cancel := context.WithCancel(ctx)
	s.stop = cancel
	s.done = make(chan struct{})
	ticker := s.clock.NewTicker(s.interval)
	done := s.done
	s.mu.Unlock()

	s.log.Debug().
		Int("duration_seconds", s.exam.DurationSeconds).
		Dur("tick", s.interval).
		Msg("Countdown started")

	go s.run(runCtx, ticker, done)
}

func (s *Session) run(ctx context.Context, ticker Ticker, done chan struct{}) {
	defer close(done)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C():
			s.Tick()
		}
	}
}

// Close tears the session down without submitting. The countdown goroutine
// has exited when Close returns.
func (s *Session) Close() {
	s.mu.Lock()
	stop, done := s.stop, s.done
	s.mu.Unlock()

	if stop == nil {
		return
	}
	stop()
	<-done
}

// Tick advances the countdown by one second. Reaching zero submits the
// session; ticks after that change nothing.
func (s *Session) Tick() {
	s.mu.Lock()
	if s.state.Terminal() {
		s.mu.Unlock()
		return
	}

	if s.countdown.Tick() {
		s.submitRequested = true
		s.unlockAndEmit(s.finishLocked(model.SessionStateSubmittedByTimeout))
		return
	}
	s.unlockAndEmit(s.eventLocked(EventTick))
}

// RecordAnswer applies one option pick. It reports whether the ledger changed.
func (s *Session) RecordAnswer(questionID, option int) (bool, error) {
	s.mu.Lock()
	if err := s.acceptingLocked(); err != nil {
		s.mu.Unlock()
		return false, err
	}

	changed, err := s.ledger.Record(questionID, option)
	if err != nil || !changed {
		s.mu.Unlock()
		return changed, err
	}
	s.unlockAndEmit(s.eventLocked(EventState))
	return true, nil
}

// GoTo moves the cursor to questionID and closes the overview.
func (s *Session) GoTo(questionID int) error {
	s.mu.Lock()
	if err := s.acceptingLocked(); err != nil {
		s.mu.Unlock()
		return err
	}
	if !s.ledger.Knows(questionID) {
		s.mu.Unlock()
		return fmt.Errorf("%w: %d", ErrUnknownQuestion, questionID)
	}

	s.current = questionID
	s.overviewOpen = false
	s.unlockAndEmit(s.eventLocked(EventState))
	return nil
}

// OpenOverview shows the question overview grid.
func (s *Session) OpenOverview() error {
	return s.setOverview(true)
}

// CloseOverview hides the question overview grid.
func (s *Session) CloseOverview() error {
	return s.setOverview(false)
}

func (s *Session) setOverview(open bool) error {
	s.mu.Lock()
	if err := s.acceptingLocked(); err != nil {
		s.mu.Unlock()
		return err
	}
	if s.overviewOpen == open {
		s.mu.Unlock()
		return nil
	}
	s.overviewOpen = open
	s.unlockAndEmit(s.eventLocked(EventState))
	return nil
}

// Back handles the hardware back action. An open overview is closed first;
// otherwise an Active session moves to ExitConfirmPending.
func (s *Session) Back() error {
	s.mu.Lock()
	switch {
	case s.state.Terminal():
		s.mu.Unlock()
		return ErrSessionFinished
	case s.state == model.SessionStateExitConfirmPending:
		s.mu.Unlock()
		return nil
	case s.overviewOpen:
		s.overviewOpen = false
	default:
		s.state = model.SessionStateExitConfirmPending
	}
	s.unlockAndEmit(s.eventLocked(EventState))
	return nil
}

// ConfirmExit leaves the exam. The ledger as it stands is the final submission.
func (s *Session) ConfirmExit() error {
	s.mu.Lock()
	switch {
	case s.state.Terminal():
		s.mu.Unlock()
		return ErrSessionFinished
	case s.state != model.SessionStateExitConfirmPending:
		s.mu.Unlock()
		return fmt.Errorf("%w: confirm exit from %s", ErrInvalidTransition, s.state)
	}

	s.exitRequested = true
	s.unlockAndEmit(s.finishLocked(model.SessionStateExited))
	return nil
}

// CancelExit dismisses the exit confirmation.
func (s *Session) CancelExit() error {
	s.mu.Lock()
	switch {
	case s.state.Terminal():
		s.mu.Unlock()
		return ErrSessionFinished
	case s.state != model.SessionStateExitConfirmPending:
		s.mu.Unlock()
		return fmt.Errorf("%w: cancel exit from %s", ErrInvalidTransition, s.state)
	}

	s.state = model.SessionStateActive
	s.unlockAndEmit(s.eventLocked(EventState))
	return nil
}

// Submit ends the session on the user's request.
func (s *Session) Submit() error {
	s.mu.Lock()
	if err := s.acceptingLocked(); err != nil {
		s.mu.Unlock()
		return err
	}

	s.submitRequested = true
	s.unlockAndEmit(s.finishLocked(model.SessionStateSubmittedManually))
	return nil
}

// StatusOf derives the overview status of a question. The cursor wins over
// the ledger.
func (s *Session) StatusOf(questionID int) (model.QuestionStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.ledger.Knows(questionID) {
		return "", fmt.Errorf("%w: %d", ErrUnknownQuestion, questionID)
	}
	return s.statusLocked(questionID), nil
}

// AnsweredCount returns the number of answered questions.
func (s *Session) AnsweredCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ledger.Count()
}

// Answer returns the recorded answer for questionID.
func (s *Session) Answer(questionID int) (model.AnswerValue, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ledger.Get(questionID)
}

// State returns the gate state.
func (s *Session) State() model.SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// SecondsRemaining returns the countdown value.
func (s *Session) SecondsRemaining() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.countdown.Remaining()
}

// Snapshot copies the full session state.
func (s *Session) Snapshot() model.SessionSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Result returns the final ledger. ok is false until the session is terminal.
func (s *Session) Result() (res Result, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.state.Terminal() {
		return Result{}, false
	}
	return s.resultLocked(), true
}

func (s *Session) acceptingLocked() error {
	switch {
	case s.state.Terminal():
		return ErrSessionFinished
	case s.state == model.SessionStateExitConfirmPending:
		return ErrExitConfirmPending
	default:
		return nil
	}
}

func (s *Session) statusLocked(questionID int) model.QuestionStatus {
	switch {
	case questionID == s.current:
		return model.QuestionStatusCurrent
	case s.ledger.Answered(questionID):
		return model.QuestionStatusAnswered
	default:
		return model.QuestionStatusUnanswered
	}
}

func (s *Session) snapshotLocked() model.SessionSnapshot {
	statuses := make([]model.QuestionState, len(s.exam.Questions))
	for i, q := range s.exam.Questions {
		statuses[i] = model.QuestionState{ID: q.ID, Status: s.statusLocked(q.ID)}
	}

	return model.SessionSnapshot{
		SessionID:         s.id,
		ExamID:            s.exam.ID,
		Title:             s.exam.Title,
		State:             s.state,
		CurrentQuestionID: s.current,
		SecondsRemaining:  s.countdown.Remaining(),
		Clock:             FormatClock(s.countdown.Remaining()),
		SubmitRequested:   s.submitRequested,
		ExitRequested:     s.exitRequested,
		OverviewOpen:      s.overviewOpen,
		AnsweredCount:     s.ledger.Count(),
		TotalQuestions:    len(s.exam.Questions),
		Answers:           s.ledger.Snapshot(),
		Questions:         statuses,
	}
}

func (s *Session) resultLocked() Result {
	return Result{
		SessionID:        s.id,
		ExamID:           s.exam.ID,
		Outcome:          s.state,
		Answers:          s.ledger.Snapshot(),
		AnsweredCount:    s.ledger.Count(),
		TotalQuestions:   len(s.exam.Questions),
		SecondsRemaining: s.countdown.Remaining(),
		StartedAt:        s.startedAt,
		FinishedAt:       s.finishedAt,
	}
}

func (s *Session) eventLocked(t EventType) []Event {
	return []Event{{Type: t, Snapshot: s.snapshotLocked()}}
}

// finishLocked moves to a terminal state and cancels the countdown.
func (s *Session) finishLocked(outcome model.SessionState) []Event {
	s.state = outcome
	s.overviewOpen = false
	s.finishedAt = time.Now()
	if s.stop != nil {
		s.stop()
	}

	s.log.Info().
		Str("outcome", string(outcome)).
		Int("answered", s.ledger.Count()).
		Int("total", len(s.exam.Questions)).
		Int("seconds_remaining", s.countdown.Remaining()).
		Msg("Exam session finished")

	res := s.resultLocked()
	return []Event{{Type: EventFinished, Snapshot: s.snapshotLocked(), Result: &res}}
}

// unlockAndEmit releases the state lock and delivers events in order.
func (s *Session) unlockAndEmit(events []Event) {
	s.emitMu.Lock()
	s.mu.Unlock()
	defer s.emitMu.Unlock()

	for _, e := range events {
		s.listener(e)
	}
}
