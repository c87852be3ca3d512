package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-session/internal/config"
	"github.com/stemsi/exstem-session/internal/database"
	"github.com/stemsi/exstem-session/internal/handler"
	"github.com/stemsi/exstem-session/internal/logger"
	"github.com/stemsi/exstem-session/internal/middleware"
	"github.com/stemsi/exstem-session/internal/repository"
	"github.com/stemsi/exstem-session/internal/router"
	"github.com/stemsi/exstem-session/internal/service"
	"github.com/stemsi/exstem-session/internal/validator"
	"github.com/stemsi/exstem-session/internal/worker"
)

const (
	startRate     = 10
	startInterval = time.Minute
)

func main() {
	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()

	// ─── Initialize Logger ─────────────────────────────────────────────
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	log.Info().
		Str("port", cfg.ServerPort).
		Str("mode", cfg.GinMode).
		Str("log_level", cfg.LogLevel).
		Str("catalog", cfg.CatalogSource).
		Dur("tick", cfg.TickInterval).
		Msg("Starting ExStem Session")

	// ─── Initialize Validator ──────────────────────────────────────────
	validator.Setup()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ─── Connect to PostgreSQL ─────────────────────────────────────────
	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	// ─── Connect to Redis ──────────────────────────────────────────────
	rdb, err := database.NewRedisClient(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()

	// ─── Load Exam Catalog ─────────────────────────────────────────────
	var catalog repository.ExamCatalog
	switch cfg.CatalogSource {
	case config.CatalogSourcePostgres:
		examService := service.NewExamService(repository.NewPostgresCatalog(pool), rdb, log)
		if err := examService.PrewarmAllCaches(ctx); err != nil {
			log.Warn().Err(err).Msg("Exam cache prewarm failed")
		}
		catalog = examService
	default:
		fileCatalog, err := repository.LoadFileCatalog(cfg.CatalogPath)
		if err != nil {
			log.Fatal().Err(err).Str("path", cfg.CatalogPath).Msg("Failed to load exam catalog")
		}
		log.Info().Int("exams", len(fileCatalog.Definitions())).Str("path", cfg.CatalogPath).Msg("Exam catalog loaded")
		catalog = fileCatalog
	}

	// ─── Initialize Repositories ───────────────────────────────────────
	submissionRepo := repository.NewSubmissionRepository(pool)
	submissionQueue := repository.NewSubmissionQueue(rdb)

	// ─── Initialize Services ──────────────────────────────────────────
	authService := service.NewAuthService(cfg)
	sessionService := service.NewExamSessionService(catalog, submissionQueue, cfg, log)
	monitorService := service.NewMonitorService(catalog, sessionService, submissionRepo)

	// ─── Initialize Handlers ──────────────────────────────────────────
	handlers := &router.Handlers{
		Exam:          handler.NewExamHandler(catalog, log),
		StudentPortal: handler.NewStudentPortalHandler(sessionService, submissionRepo),
		WS:            handler.NewWSHandler(sessionService, log, cfg.AllowedOrigins),
		Monitor:       handler.NewMonitorHandler(rdb, monitorService, log),
		System:        handler.NewSystemHandler(pool, rdb, sessionService, log),
	}

	// ─── Start Background Workers ─────────────────────────────────────
	workerCtx, workerCancel := context.WithCancel(context.Background())

	submissionWorker := worker.NewSubmissionWorker(submissionRepo, rdb, log)
	workerDone := make(chan struct{})
	go func() {
		defer close(workerDone)
		submissionWorker.Start(workerCtx)
	}()

	// ─── Setup Router ──────────────────────────────────────────────────
	startLimiter := middleware.NewRateLimiter(ctx, startRate, startInterval, middleware.KeyByStudent)
	r := router.SetupRouter(authService, handlers, cfg, startLimiter)

	// ─── Create HTTP Server ────────────────────────────────────────────
	srv := &http.Server{
		Addr:    ":" + cfg.ServerPort,
		Handler: r,
	}

	// ─── Start Server in Goroutine ─────────────────────────────────────
	go func() {
		log.Info().Str("addr", ":"+cfg.ServerPort).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server error")
		}
	}()

	// ─── Graceful Shutdown ─────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	log.Info().Str("signal", sig.String()).Msg("Shutting down gracefully...")

	// 1. Stop accepting new HTTP requests (5s timeout).
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}

	// 2. Tear live sessions down and flush pending deliveries to Redis.
	if err := sessionService.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Session shutdown incomplete")
	}

	// 3. Stop the worker and wait for the queue to drain.
	workerCancel()
	<-workerDone

	log.Info().Msg("Shutdown complete")
}

// init sets zerolog global defaults before main runs.
func init() {
	zerolog.TimeFieldFormat = time.RFC3339
}
