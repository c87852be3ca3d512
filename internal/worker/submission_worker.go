package worker

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-session/internal/config"
	"github.com/stemsi/exstem-session/internal/model"
)

const (
	// PollTimeout bounds each BLPop so shutdown is noticed promptly.
	PollTimeout = time.Second
	// DefaultRetryDelay is the pause after a failed persist.
	DefaultRetryDelay = 5 * time.Second
)

// SubmissionStore persists finished ledgers.
type SubmissionStore interface {
	Save(ctx context.Context, s *model.Submission) error
}

// SubmissionWorker consumes persist_submissions_queue and stores each
// submission in PostgreSQL.
type SubmissionWorker struct {
	store      SubmissionStore
	rdb        *redis.Client
	log        zerolog.Logger
	retryDelay time.Duration
}

// NewSubmissionWorker creates a new SubmissionWorker.
func NewSubmissionWorker(store SubmissionStore, rdb *redis.Client, log zerolog.Logger) *SubmissionWorker {
	return &SubmissionWorker{
		store:      store,
		rdb:        rdb,
		log:        log.With().Str("component", "submission_worker").Logger(),
		retryDelay: DefaultRetryDelay,
	}
}

// WithRetryDelay overrides the pause after a failed persist.
func (w *SubmissionWorker) WithRetryDelay(d time.Duration) *SubmissionWorker {
	w.retryDelay = d
	return w
}

// Start begins the worker loop and returns once ctx is cancelled and the
// queue has been drained. Call in a goroutine.
func (w *SubmissionWorker) Start(ctx context.Context) {
	w.log.Info().Msg("Worker started")

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Worker stopping...")
			// Drain remaining items before exit.
			w.drain(context.Background())
			w.log.Info().Msg("Worker stopped")
			return
		default:
			w.processNext(ctx)
		}
	}
}

func (w *SubmissionWorker) processNext(ctx context.Context) {
	// BLPop blocks until an item is available or PollTimeout passes.
	result, err := w.rdb.BLPop(ctx, PollTimeout, config.WorkerKey.PersistSubmissionsQueue).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) && ctx.Err() == nil {
			w.log.Error().Err(err).Msg("BLPop error")
		}
		return
	}

	if len(result) < 2 {
		return
	}

	sub, err := decodeSubmission(result[1])
	if err != nil {
		w.log.Error().Err(err).Msg("Unmarshal error, dropping item")
		return
	}

	if err := w.store.Save(ctx, sub); err != nil {
		w.log.Error().Err(err).
			Str("session_id", sub.SessionID.String()).
			Str("exam_id", sub.ExamID).
			Dur("retry_in", w.retryDelay).
			Msg("Persist error, requeueing")
		// Push back to queue for retry.
		w.rdb.RPush(context.Background(), config.WorkerKey.PersistSubmissionsQueue, result[1])

		select {
		case <-ctx.Done():
		case <-time.After(w.retryDelay):
		}
		return
	}

	w.log.Debug().
		Str("session_id", sub.SessionID.String()).
		Str("outcome", string(sub.Outcome)).
		Msg("Submission persisted")
}

// drain processes all remaining items in the queue before shutdown.
func (w *SubmissionWorker) drain(ctx context.Context) {
	drained := 0
	for {
		raw, err := w.rdb.LPop(ctx, config.WorkerKey.PersistSubmissionsQueue).Result()
		if err != nil {
			break
		}

		sub, err := decodeSubmission(raw)
		if err != nil {
			w.log.Error().Err(err).Msg("Drain unmarshal error")
			continue
		}

		if err := w.store.Save(ctx, sub); err != nil {
			w.log.Error().Err(err).Msg("Drain persist error")
			w.rdb.RPush(ctx, config.WorkerKey.PersistSubmissionsQueue, raw)
			break
		}
		drained++
	}

	if drained > 0 {
		w.log.Info().Int("count", drained).Msg("Drained remaining items")
	}
}

func decodeSubmission(raw string) (*model.Submission, error) {
	var sub model.Submission
	if err := json.Unmarshal([]byte(raw), &sub); err != nil {
		return nil, err
	}
	return &sub, nil
}
