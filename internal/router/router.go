package router

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/stemsi/exstem-session/internal/config"
	"github.com/stemsi/exstem-session/internal/handler"
	"github.com/stemsi/exstem-session/internal/middleware"
	"github.com/stemsi/exstem-session/internal/response"
	"github.com/stemsi/exstem-session/internal/service"
)

// catalogMaxAge is how long clients may cache catalog reads.
const catalogMaxAge = 60

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Exam          *handler.ExamHandler
	StudentPortal *handler.StudentPortalHandler
	WS            *handler.WSHandler
	Monitor       *handler.MonitorHandler
	System        *handler.SystemHandler
}

// SetupRouter configures all Gin route groups with appropriate middlewares.
// startLimiter throttles session starts, which is where entry tokens are checked.
func SetupRouter(
	authService *service.AuthService,
	handlers *Handlers,
	cfg *config.Config,
	startLimiter *middleware.RateLimiter,
) *gin.Engine {
	gin.SetMode(cfg.GinMode)
	router := gin.Default()

	// ─── CORS ──────────────────────────────────────────────────────────
	// If AllowedOrigins is set in config, restrict to that list;
	// otherwise allow all (*) so dev works without extra config.
	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"}
	corsConfig.ExposeHeaders = []string{"X-Request-ID"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	// Apply request ID middleware globally so every response includes metadata.
	router.Use(response.RequestIDMiddleware())

	// Streams are skipped inside the middleware, so it is safe to apply globally.
	router.Use(middleware.Compress(middleware.DefaultCompressMinLength))

	// Health check.
	router.GET("/health", handlers.System.Health)

	// ─── 1. Catalog (Student JWT) ──────────────────────────────────────
	catalog := router.Group("/api/v1/exams")
	catalog.Use(middleware.RequireStudentJWT(authService), middleware.CacheControl(catalogMaxAge))
	{
		catalog.GET("", handlers.Exam.ListExams)
		catalog.GET("/:exam_id", handlers.Exam.GetExam)
	}

	// ─── 2. Student Sessions (Student JWT) ─────────────────────────────
	studentAPI := router.Group("/api/v1/student")
	studentAPI.Use(middleware.RequireStudentJWT(authService), middleware.NoStore())
	{
		studentAPI.POST("/exams/:exam_id/sessions", startLimiter.Middleware(), handlers.StudentPortal.StartSession)

		sessions := studentAPI.Group("/sessions/:session_id")
		sessions.GET("", handlers.StudentPortal.GetSession)
		sessions.DELETE("", handlers.StudentPortal.DiscardSession)
		sessions.GET("/paper", handlers.StudentPortal.GetPaper)
		sessions.GET("/submission", handlers.StudentPortal.GetSubmission)
		sessions.POST("/answers", handlers.StudentPortal.RecordAnswer)
		sessions.POST("/cursor", handlers.StudentPortal.MoveCursor)
		sessions.POST("/overview/open", handlers.StudentPortal.OpenOverview)
		sessions.POST("/overview/close", handlers.StudentPortal.CloseOverview)
		sessions.POST("/back", handlers.StudentPortal.Back)
		sessions.POST("/exit/confirm", handlers.StudentPortal.ConfirmExit)
		sessions.POST("/exit/cancel", handlers.StudentPortal.CancelExit)
		sessions.POST("/submit", handlers.StudentPortal.Submit)
	}

	// ─── 3. WebSocket (Student JWT via ?token=) ────────────────────────
	ws := router.Group("/ws/v1")
	ws.Use(middleware.RequireStudentWSAuth(authService))
	{
		ws.GET("/student/sessions/:session_id/stream", handlers.WS.SessionStream)
	}

	// ─── 4. Proctor (Admin JWT) ────────────────────────────────────────
	adminAPI := router.Group("/api/v1/admin")
	adminAPI.Use(middleware.RequireAdminJWT(authService))
	{
		adminAPI.GET("/exams/:exam_id/monitor", handlers.Monitor.MonitorExamSSE)
	}

	return router
}
