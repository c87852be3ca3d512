package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stemsi/exstem-session/internal/config"
	"github.com/stemsi/exstem-session/internal/model"
)

// SubmissionAnswersTTL bounds how long a finished ledger stays mirrored in Redis.
const SubmissionAnswersTTL = 24 * time.Hour

// SubmissionQueue hands finished ledgers to the persistence worker and
// notifies exam monitors.
type SubmissionQueue struct {
	rdb *redis.Client
}

// NewSubmissionQueue creates a new SubmissionQueue.
func NewSubmissionQueue(rdb *redis.Client) *SubmissionQueue {
	return &SubmissionQueue{rdb: rdb}
}

// Deliver mirrors the ledger into session:{id}:answers, enqueues it for
// persistence and announces the finished session.
func (q *SubmissionQueue) Deliver(ctx context.Context, s *model.Submission) error {
	payload, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode submission: %w", err)
	}

	key := config.CacheKey.SessionAnswersKey(s.SessionID)
	fields := make(map[string]any, len(s.Answers))
	for qid, v := range s.Answers {
		fields[strconv.Itoa(qid)] = v.String()
	}

	pipe := q.rdb.TxPipeline()
	pipe.Del(ctx, key)
	if len(fields) > 0 {
		pipe.HSet(ctx, key, fields)
		pipe.Expire(ctx, key, SubmissionAnswersTTL)
	}
	pipe.RPush(ctx, config.WorkerKey.PersistSubmissionsQueue, payload)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("enqueue submission %s: %w", s.SessionID, err)
	}

	// The submission is queued; a lost monitor event must not trigger a redelivery.
	_ = q.Announce(ctx, &model.MonitorEvent{
		Type:           model.MonitorSessionFinished,
		SessionID:      s.SessionID,
		ExamID:         s.ExamID,
		StudentID:      s.StudentID,
		Outcome:        s.Outcome,
		AnsweredCount:  s.AnsweredCount,
		TotalQuestions: s.TotalQuestions,
		At:             s.FinishedAt,
	})
	return nil
}

// Announce publishes ev on the exam's monitor channel.
func (q *SubmissionQueue) Announce(ctx context.Context, ev *model.MonitorEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return q.rdb.Publish(ctx, config.CacheKey.ExamMonitorChannel(ev.ExamID), payload).Err()
}

// MirroredAnswers reads back the Redis mirror of a finished ledger.
func (q *SubmissionQueue) MirroredAnswers(ctx context.Context, sessionID uuid.UUID) (map[string]string, error) {
	return q.rdb.HGetAll(ctx, config.CacheKey.SessionAnswersKey(sessionID)).Result()
}
