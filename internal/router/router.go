package router

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/testnest/cbt-backend/internal/config"
	"github.com/testnest/cbt-backend/internal/handler"
	"github.com/testnest/cbt-backend/internal/middleware"
	"github.com/testnest/cbt-backend/internal/response"
	"github.com/testnest/cbt-backend/internal/service"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Session      *handler.SessionHandler
	AdminSession *handler.AdminSessionHandler
	Analytics    *handler.AnalyticsHandler
	Monitor      *handler.MonitorHandler
}

// SetupRouter configures all Gin route groups with appropriate middlewares.
func SetupRouter(
	authService *service.AuthService,
	handlers *Handlers,
	cfg *config.Config,
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
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"}
	corsConfig.ExposeHeaders = []string{"X-Request-ID"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	// Apply request ID middleware globally so every response includes metadata.
	router.Use(response.RequestIDMiddleware())

	// Health check.
	router.GET("/health", func(c *gin.Context) {
		response.Success(c, http.StatusOK, gin.H{"status": "ok"})
	})

	// Rate limiter for session starts (30 per minute per IP) so a stuck
	// client loop cannot hammer the question selector.
	startLimiter := middleware.NewRateLimiter(30, time.Minute)

	// ─── 1. Student Group (JWT) ────────────────────────────────────────
	studentAPI := router.Group("/api/v1/student")
	studentAPI.Use(middleware.RequireStudentJWT(authService))
	{
		studentAPI.POST("/tests/:test_id/sessions", startLimiter.Middleware(), handlers.Session.StartSession)
		studentAPI.GET("/sessions", handlers.Session.ListMySessions)
		studentAPI.GET("/sessions/:session_id/progress", handlers.Session.GetProgress)
		studentAPI.POST("/sessions/:session_id/answers", handlers.Session.SubmitAnswer)
		studentAPI.POST("/sessions/:session_id/autosave", handlers.Session.AutoSave)
		studentAPI.POST("/sessions/:session_id/complete", handlers.Session.Complete)
		studentAPI.POST("/sessions/:session_id/abandon", handlers.Session.Abandon)
	}

	// ─── 2. Admin Group (JWT) ──────────────────────────────────────────
	adminAPI := router.Group("/api/v1/admin")
	adminAPI.Use(middleware.RequireAdminJWT(authService))
	{
		adminAPI.GET("/tests/:test_id/sessions", handlers.AdminSession.ListTestSessions)
		adminAPI.GET("/tests/:test_id/analytics", handlers.Analytics.GetTestAnalytics)
		adminAPI.GET("/tests/:test_id/analytics/questions", handlers.Analytics.GetQuestionBreakdown)

		adminAPI.POST("/sessions/:session_id/flag", handlers.AdminSession.FlagSession)
		adminAPI.PUT("/sessions/:session_id/notes", handlers.AdminSession.UpdateSessionNotes)
		adminAPI.POST("/maintenance/sweep", handlers.AdminSession.SweepSessions)
	}

	// ─── 3. WebSocket Group (Admin WS Auth) ────────────────────────────
	ws := router.Group("/ws/v1")
	ws.Use(middleware.RequireAdminWSAuth(authService))
	{
		ws.GET("/admin/tests/:test_id/monitor", handlers.Monitor.MonitorTest)
	}

	return router
}
