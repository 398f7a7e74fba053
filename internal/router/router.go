package router

import (
	"context"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/ump-quiz/quiz-backend/internal/config"
	"github.com/ump-quiz/quiz-backend/internal/handler"
	"github.com/ump-quiz/quiz-backend/internal/metrics"
	"github.com/ump-quiz/quiz-backend/internal/middleware"
	"github.com/ump-quiz/quiz-backend/internal/model"
	"github.com/ump-quiz/quiz-backend/internal/response"
	"github.com/ump-quiz/quiz-backend/internal/service"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Health    *handler.HealthHandler
	Quiz      *handler.QuizHandler
	Auth      *handler.AuthHandler
	Token     *handler.TokenHandler
	Result    *handler.ResultHandler
	Dashboard *handler.DashboardHandler
	Realtime  *handler.RealtimeHandler
	System    *handler.SystemHandler
}

// SetupRouter configures all Gin route groups with appropriate middlewares.
// ctx bounds the rate limiter's cleanup goroutine.
func SetupRouter(
	ctx context.Context,
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
		corsConfig.AllowCredentials = true
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"}
	corsConfig.ExposeHeaders = []string{"X-Request-ID", "Content-Disposition"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	router.Use(response.RequestIDMiddleware())
	router.Use(metrics.MetricsMiddleware())
	router.Use(middleware.Brotli())

	router.GET("/health", handlers.Health.Health)
	router.GET("/metrics", metrics.PrometheusHandler())

	// ─── 1. Quiz Group (Public, Rate Limited) ──────────────────────────
	quizLimiter := middleware.NewRateLimiter(ctx, cfg.RateLimitPerMinute, time.Minute)
	quiz := router.Group("/api/v1/quiz")
	quiz.Use(quizLimiter.Middleware(), middleware.NoStore())
	{
		quiz.GET("/validate-token", handlers.Quiz.ValidateToken)
		quiz.POST("/sessions", handlers.Quiz.StartSession)
		quiz.POST("/answers", handlers.Quiz.SubmitAnswer)
		quiz.POST("/complete", handlers.Quiz.Complete)
	}

	// Login is public but throttled on its own, tighter budget.
	loginLimiter := middleware.NewRateLimiter(ctx, 30, time.Minute)
	router.POST("/api/v1/admin/auth/login", loginLimiter.Middleware(), handlers.Auth.Login)

	// ─── 2. Admin Group (JWT + revocable session) ──────────────────────
	adminAPI := router.Group("/api/v1/admin")
	adminAPI.Use(
		middleware.RequireAdminJWT(authService),
		middleware.CheckAdminSession(authService),
		middleware.NoStore(),
	)
	{
		adminAPI.POST("/auth/logout", handlers.Auth.Logout)
		adminAPI.GET("/auth/me", handlers.Auth.Me)
		adminAPI.POST("/auth/register",
			middleware.RequireRole(model.AdminRoleSuperAdmin),
			handlers.Auth.Register,
		)

		// Access tokens
		adminAPI.GET("/tokens", handlers.Token.List)
		adminAPI.POST("/tokens", handlers.Token.Create)
		adminAPI.GET("/tokens/:code", handlers.Token.Get)
		adminAPI.PATCH("/tokens/:code", handlers.Token.Update)
		adminAPI.DELETE("/tokens/:code", handlers.Token.Delete)

		// Results
		adminAPI.GET("/results", handlers.Result.List)
		adminAPI.GET("/results/export", handlers.Result.Export)
		adminAPI.GET("/results/:session_id", handlers.Result.Detail)
		adminAPI.POST("/results/:session_id/recompute", handlers.Result.Recompute)
		adminAPI.DELETE("/sessions/:session_id",
			middleware.RequireRole(model.AdminRoleSuperAdmin),
			handlers.Result.DeleteSession,
		)

		// Dashboard
		adminAPI.GET("/dashboard", handlers.Dashboard.GetDashboardData)
		adminAPI.GET("/analytics", handlers.Dashboard.GetAnalytics)
		adminAPI.GET("/logs", handlers.Dashboard.GetLogs)
		adminAPI.GET("/realtime", handlers.Realtime.StreamSSE)

		// System
		adminAPI.GET("/system",
			middleware.RequireRole(model.AdminRoleSuperAdmin),
			handlers.System.Status,
		)
	}

	// ─── 3. WebSocket Group (token from query) ─────────────────────────
	ws := router.Group("/ws/v1")
	ws.Use(
		middleware.RequireAdminJWT(authService),
		middleware.CheckAdminSession(authService),
	)
	{
		ws.GET("/admin/realtime", handlers.Realtime.StreamWS)
	}

	return router
}
