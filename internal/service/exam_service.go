package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-session/internal/config"
	"github.com/stemsi/exstem-session/internal/model"
	"github.com/stemsi/exstem-session/internal/repository"
)

// ExamPayloadTTL bounds how long an edited exam can be served stale.
const ExamPayloadTTL = 10 * time.Minute

// ExamService is a read-through Redis cache in front of an ExamCatalog.
// Every session start resolves its exam here, so the database only sees
// cache misses.
type ExamService struct {
	catalog repository.ExamCatalog
	rdb     *redis.Client
	ttl     time.Duration
	log     zerolog.Logger
}

// NewExamService creates a new ExamService.
func NewExamService(catalog repository.ExamCatalog, rdb *redis.Client, log zerolog.Logger) *ExamService {
	return &ExamService{
		catalog: catalog,
		rdb:     rdb,
		ttl:     ExamPayloadTTL,
		log:     log.With().Str("component", "exam_service").Logger(),
	}
}

// cachedExam is the Redis payload. Unlike the API shape it keeps the token hash.
type cachedExam struct {
	model.ExamDefinition
	EntryTokenHash string `json:"entry_token_hash"`
}

// List delegates to the catalog; listings are small and always fresh.
func (s *ExamService) List(ctx context.Context) ([]model.ExamSummary, error) {
	return s.catalog.List(ctx)
}

// Get serves a definition from Redis, falling back to the catalog on a miss.
// A Redis outage degrades to direct catalog reads.
func (s *ExamService) Get(ctx context.Context, examID string) (*model.ExamDefinition, error) {
	def, err := s.getCached(ctx, examID)
	if err == nil {
		return def, nil
	}
	if !errors.Is(err, redis.Nil) {
		s.log.Warn().Err(err).Str("exam_id", examID).Msg("Exam cache read failed")
	}

	def, err = s.catalog.Get(ctx, examID)
	if err != nil {
		return nil, err
	}
	if err := s.WarmExamCache(ctx, def); err != nil {
		s.log.Warn().Err(err).Str("exam_id", examID).Msg("Exam cache write failed")
	}
	return def, nil
}

// WarmExamCache stores def in Redis.
func (s *ExamService) WarmExamCache(ctx context.Context, def *model.ExamDefinition) error {
	data, err := json.Marshal(cachedExam{ExamDefinition: *def, EntryTokenHash: def.EntryTokenHash})
	if err != nil {
		return fmt.Errorf("marshal exam: %w", err)
	}
	if err := s.rdb.Set(ctx, config.CacheKey.ExamPayloadKey(def.ID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("cache to redis: %w", err)
	}

	s.log.Debug().
		Str("exam_id", def.ID).
		Int("questions", len(def.Questions)).
		Msg("Cache warmed")
	return nil
}

// Invalidate drops a cached definition after the exam was edited.
func (s *ExamService) Invalidate(ctx context.Context, examID string) error {
	return s.rdb.Del(ctx, config.CacheKey.ExamPayloadKey(examID)).Err()
}

// PrewarmAllCaches loads every exam into Redis on startup so the first wave
// of session starts does not stampede the database.
func (s *ExamService) PrewarmAllCaches(ctx context.Context) error {
	exams, err := s.catalog.List(ctx)
	if err != nil {
		return fmt.Errorf("list exams: %w", err)
	}

	warmed := 0
	for _, summary := range exams {
		def, err := s.catalog.Get(ctx, summary.ID)
		if err == nil {
			err = s.WarmExamCache(ctx, def)
		}
		if err != nil {
			s.log.Warn().
				Err(err).
				Str("exam_id", summary.ID).
				Msg("Failed to warm exam, skipping")
			continue
		}
		warmed++
	}

	s.log.Info().
		Int("warmed", warmed).
		Int("total", len(exams)).
		Msg("Prewarming complete")
	return nil
}

func (s *ExamService) getCached(ctx context.Context, examID string) (*model.ExamDefinition, error) {
	data, err := s.rdb.Get(ctx, config.CacheKey.ExamPayloadKey(examID)).Bytes()
	if err != nil {
		return nil, err
	}

	var cached cachedExam
	if err := json.Unmarshal(data, &cached); err != nil {
		return nil, fmt.Errorf("unmarshal exam: %w", err)
	}
	def := cached.ExamDefinition
	def.EntryTokenHash = cached.EntryTokenHash
	return &def, nil
}
