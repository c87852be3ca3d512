package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-session/internal/config"
	"github.com/stemsi/exstem-session/internal/examsession"
	"github.com/stemsi/exstem-session/internal/model"
	"github.com/stemsi/exstem-session/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type fakeCatalog map[string]*model.ExamDefinition

func (c fakeCatalog) List(context.Context) ([]model.ExamSummary, error) {
	out := make([]model.ExamSummary, 0, len(c))
	for _, def := range c {
		out = append(out, def.Summary())
	}
	return out, nil
}

func (c fakeCatalog) Get(_ context.Context, id string) (*model.ExamDefinition, error) {
	def, ok := c[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", repository.ErrExamNotFound, id)
	}
	return def, nil
}

type fakeSink struct {
	mu        sync.Mutex
	failures  int
	attempts  int
	delivered []*model.Submission
	announced []*model.MonitorEvent
}

func (s *fakeSink) Deliver(_ context.Context, sub *model.Submission) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attempts++
	if s.failures > 0 {
		s.failures--
		return errors.New("redis unavailable")
	}
	s.delivered = append(s.delivered, sub)
	return nil
}

func (s *fakeSink) Announce(_ context.Context, ev *model.MonitorEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.announced = append(s.announced, ev)
	return nil
}

func (s *fakeSink) submissions() []*model.Submission {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*model.Submission(nil), s.delivered...)
}

func quizExam(id string, seconds int) *model.ExamDefinition {
	return &model.ExamDefinition{
		ID:              id,
		Title:           "Quiz " + id,
		DurationSeconds: seconds,
		Questions: []model.Question{
			{ID: 1, Text: "Pick one", Kind: model.QuestionKindSingle, Options: []string{"a", "b", "c"}},
			{ID: 2, Text: "Pick many", Kind: model.QuestionKindMultiple, Options: []string{"a", "b", "c", "d"}},
		},
	}
}

func newTestService(t *testing.T, tick time.Duration, catalog fakeCatalog) (*ExamSessionService, *fakeSink) {
	t.Helper()
	sink := &fakeSink{}
	cfg := &config.Config{TickInterval: tick, SubmitRetries: 3}
	svc := NewExamSessionService(catalog, sink, cfg, zerolog.Nop(), WithRetryBackoff(time.Millisecond))
	t.Cleanup(func() { _ = svc.Shutdown(context.Background()) })
	return svc, sink
}

func TestStartIsIdempotentPerStudent(t *testing.T) {
	svc, sink := newTestService(t, time.Hour, fakeCatalog{"q1": quizExam("q1", 60)})
	ctx := context.Background()

	first, err := svc.Start(ctx, "q1", 7, "")
	require.NoError(t, err)
	assert.True(t, first.Created)
	assert.Equal(t, model.SessionStateActive, first.Snapshot.State)
	assert.Equal(t, 1, first.Snapshot.CurrentQuestionID)
	assert.Equal(t, "01:00", first.Snapshot.Clock)

	again, err := svc.Start(ctx, "q1", 7, "")
	require.NoError(t, err)
	assert.False(t, again.Created)
	assert.Equal(t, first.Snapshot.SessionID, again.Snapshot.SessionID)

	other, err := svc.Start(ctx, "q1", 8, "")
	require.NoError(t, err)
	assert.NotEqual(t, first.Snapshot.SessionID, other.Snapshot.SessionID)

	sink.mu.Lock()
	defer sink.mu.Unlock()
	require.Len(t, sink.announced, 2)
	assert.Equal(t, model.MonitorSessionStarted, sink.announced[0].Type)
}

func TestStartChecksEntryToken(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("open-sesame"), bcrypt.MinCost)
	require.NoError(t, err)
	exam := quizExam("locked", 60)
	exam.EntryTokenHash = string(hash)

	svc, _ := newTestService(t, time.Hour, fakeCatalog{"locked": exam})
	ctx := context.Background()

	_, err = svc.Start(ctx, "locked", 1, "wrong")
	assert.ErrorIs(t, err, ErrInvalidEntryToken)

	_, err = svc.Start(ctx, "locked", 1, "open-sesame")
	assert.NoError(t, err)

	_, err = svc.Start(ctx, "missing", 1, "")
	assert.ErrorIs(t, err, repository.ErrExamNotFound)
}

func TestOperationsRouteToOwnedSession(t *testing.T) {
	svc, _ := newTestService(t, time.Hour, fakeCatalog{"q1": quizExam("q1", 60)})
	res, err := svc.Start(context.Background(), "q1", 7, "")
	require.NoError(t, err)
	id := res.Snapshot.SessionID

	snap, err := svc.Answer(id, 7, 2, 3)
	require.NoError(t, err)
	assert.True(t, snap.Answers[2].Equal(model.MultipleAnswer(3)))

	snap, err = svc.GoTo(id, 7, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, snap.CurrentQuestionID)

	snap, err = svc.OpenOverview(id, 7)
	require.NoError(t, err)
	assert.True(t, snap.OverviewOpen)

	snap, err = svc.Back(id, 7)
	require.NoError(t, err)
	assert.False(t, snap.OverviewOpen)
	assert.Equal(t, model.SessionStateActive, snap.State)

	_, err = svc.Answer(id, 7, 9, 0)
	assert.ErrorIs(t, err, examsession.ErrUnknownQuestion)

	_, err = svc.Snapshot(id, 8)
	assert.ErrorIs(t, err, ErrSessionNotFound)

	_, err = svc.Snapshot(uuid.New(), 7)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestSubmitDeliversLedgerAndDropsSession(t *testing.T) {
	svc, sink := newTestService(t, time.Hour, fakeCatalog{"q1": quizExam("q1", 60)})
	res, err := svc.Start(context.Background(), "q1", 7, "")
	require.NoError(t, err)
	id := res.Snapshot.SessionID

	_, err = svc.Answer(id, 7, 1, 2)
	require.NoError(t, err)

	snap, err := svc.Submit(id, 7)
	require.NoError(t, err)
	assert.Equal(t, model.SessionStateSubmittedManually, snap.State)

	svc.Wait()
	subs := sink.submissions()
	require.Len(t, subs, 1)
	assert.Equal(t, id, subs[0].SessionID)
	assert.Equal(t, 7, subs[0].StudentID)
	assert.Equal(t, model.SessionStateSubmittedManually, subs[0].Outcome)
	assert.True(t, subs[0].Answers[1].Equal(model.SingleAnswer(2)))

	_, err = svc.Snapshot(id, 7)
	assert.ErrorIs(t, err, ErrSessionNotFound)

	again, err := svc.Start(context.Background(), "q1", 7, "")
	require.NoError(t, err)
	assert.True(t, again.Created)
}

func TestConfirmedExitIsDelivered(t *testing.T) {
	svc, sink := newTestService(t, time.Hour, fakeCatalog{"q1": quizExam("q1", 60)})
	res, err := svc.Start(context.Background(), "q1", 7, "")
	require.NoError(t, err)
	id := res.Snapshot.SessionID

	snap, err := svc.Back(id, 7)
	require.NoError(t, err)
	assert.Equal(t, model.SessionStateExitConfirmPending, snap.State)

	_, err = svc.Answer(id, 7, 1, 0)
	assert.ErrorIs(t, err, examsession.ErrExitConfirmPending)

	_, err = svc.ConfirmExit(id, 7)
	require.NoError(t, err)

	svc.Wait()
	subs := sink.submissions()
	require.Len(t, subs, 1)
	assert.Equal(t, model.SessionStateExited, subs[0].Outcome)
	assert.Empty(t, subs[0].Answers)
}

func TestDeliveryRetries(t *testing.T) {
	svc, sink := newTestService(t, time.Hour, fakeCatalog{"q1": quizExam("q1", 60)})
	sink.failures = 2

	res, err := svc.Start(context.Background(), "q1", 7, "")
	require.NoError(t, err)
	_, err = svc.Submit(res.Snapshot.SessionID, 7)
	require.NoError(t, err)

	svc.Wait()
	assert.Len(t, sink.submissions(), 1)
	assert.Equal(t, 3, sink.attempts)
}

func TestDeliveryGivesUpAfterRetries(t *testing.T) {
	svc, sink := newTestService(t, time.Hour, fakeCatalog{"q1": quizExam("q1", 60)})
	sink.failures = 10

	res, err := svc.Start(context.Background(), "q1", 7, "")
	require.NoError(t, err)
	_, err = svc.Submit(res.Snapshot.SessionID, 7)
	require.NoError(t, err)

	svc.Wait()
	assert.Empty(t, sink.submissions())
	assert.Equal(t, 3, sink.attempts)
}

func TestDiscardDoesNotSubmit(t *testing.T) {
	svc, sink := newTestService(t, time.Hour, fakeCatalog{"q1": quizExam("q1", 60)})
	res, err := svc.Start(context.Background(), "q1", 7, "")
	require.NoError(t, err)
	id := res.Snapshot.SessionID

	events, cancel, err := svc.Subscribe(id, 7)
	require.NoError(t, err)
	defer cancel()

	require.NoError(t, svc.Discard(id, 7))
	_, open := <-events
	assert.False(t, open)

	svc.Wait()
	assert.Empty(t, sink.submissions())
	assert.ErrorIs(t, svc.Discard(id, 7), ErrSessionNotFound)
}

func TestTimeoutSubmitsAndStreamsFinished(t *testing.T) {
	svc, sink := newTestService(t, 20*time.Millisecond, fakeCatalog{"short": quizExam("short", 3)})
	res, err := svc.Start(context.Background(), "short", 3, "")
	require.NoError(t, err)

	events, cancel, err := svc.Subscribe(res.Snapshot.SessionID, 3)
	require.NoError(t, err)
	defer cancel()

	var last examsession.Event
	for ev := range events {
		last = ev
	}
	assert.Equal(t, examsession.EventFinished, last.Type)
	assert.Equal(t, model.SessionStateSubmittedByTimeout, last.Snapshot.State)
	assert.Equal(t, 0, last.Snapshot.SecondsRemaining)
	assert.True(t, last.Snapshot.SubmitRequested)

	svc.Wait()
	subs := sink.submissions()
	require.Len(t, subs, 1)
	assert.Equal(t, model.SessionStateSubmittedByTimeout, subs[0].Outcome)
}

func TestLiveSessionsAndShutdown(t *testing.T) {
	svc, sink := newTestService(t, time.Hour, fakeCatalog{"q1": quizExam("q1", 60), "q2": quizExam("q2", 60)})
	ctx := context.Background()

	_, err := svc.Start(ctx, "q1", 1, "")
	require.NoError(t, err)
	_, err = svc.Start(ctx, "q1", 2, "")
	require.NoError(t, err)
	_, err = svc.Start(ctx, "q2", 1, "")
	require.NoError(t, err)

	live := svc.LiveSessions("q1")
	assert.Len(t, live, 2)

	require.NoError(t, svc.Shutdown(ctx))
	assert.Empty(t, svc.LiveSessions("q1"))
	assert.Empty(t, sink.submissions())

	_, err = svc.Start(ctx, "q1", 3, "")
	assert.ErrorIs(t, err, ErrShuttingDown)
}

func TestEntryTokenHashing(t *testing.T) {
	hash, err := HashEntryToken("", bcrypt.MinCost)
	require.NoError(t, err)
	assert.Empty(t, hash)
	assert.NoError(t, CompareEntryToken(hash, "anything"))

	hash, err = HashEntryToken("abc123", bcrypt.MinCost)
	require.NoError(t, err)
	assert.NoError(t, CompareEntryToken(hash, "abc123"))
	assert.ErrorIs(t, CompareEntryToken(hash, "abc124"), ErrInvalidEntryToken)
}
