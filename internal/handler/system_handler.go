package handler

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-session/internal/config"
	"github.com/stemsi/exstem-session/internal/response"
	"github.com/stemsi/exstem-session/internal/service"
)

const healthTimeout = 2 * time.Second

// SystemHandler reports process health.
type SystemHandler struct {
	pool           *pgxpool.Pool
	rdb            *redis.Client
	sessionService *service.ExamSessionService
	startTime      time.Time
	log            zerolog.Logger
}

// NewSystemHandler creates a new SystemHandler. pool may be nil when the
// catalog is file-backed and no worker runs in this process.
func NewSystemHandler(pool *pgxpool.Pool, rdb *redis.Client, sessionService *service.ExamSessionService, log zerolog.Logger) *SystemHandler {
	return &SystemHandler{
		pool:           pool,
		rdb:            rdb,
		sessionService: sessionService,
		startTime:      time.Now(),
		log:            log.With().Str("component", "system_handler").Logger(),
	}
}

type healthReport struct {
	Status          string `json:"status"`
	Uptime          string `json:"uptime"`
	Redis           string `json:"redis"`
	Postgres        string `json:"postgres,omitempty"`
	LiveSessions    int    `json:"live_sessions"`
	QueueSubmission int64  `json:"queue_submissions"`
	Goroutines      int    `json:"goroutines"`
	GoVersion       string `json:"go_version"`
}

// Health godoc
// GET /health
func (h *SystemHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), healthTimeout)
	defer cancel()

	report := healthReport{
		Status:       "ok",
		Uptime:       time.Since(h.startTime).Truncate(time.Second).String(),
		Redis:        "ok",
		LiveSessions: h.sessionService.LiveCount(),
		Goroutines:   runtime.NumGoroutine(),
		GoVersion:    runtime.Version(),
	}

	pipe := h.rdb.Pipeline()
	pingCmd := pipe.Ping(ctx)
	queueCmd := pipe.LLen(ctx, config.WorkerKey.PersistSubmissionsQueue)
	_, _ = pipe.Exec(ctx)
	if err := pingCmd.Err(); err != nil {
		h.log.Warn().Err(err).Msg("Redis health check failed")
		report.Redis = "down"
		report.Status = "degraded"
	}
	report.QueueSubmission, _ = queueCmd.Result()

	if h.pool != nil {
		report.Postgres = "ok"
		if err := h.pool.Ping(ctx); err != nil {
			h.log.Warn().Err(err).Msg("Postgres health check failed")
			report.Postgres = "down"
			report.Status = "degraded"
		}
	}

	status := http.StatusOK
	if report.Status != "ok" {
		status = http.StatusServiceUnavailable
	}
	response.Success(c, status, report)
}
