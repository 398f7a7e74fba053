package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/ump-quiz/quiz-backend/internal/config"
	"github.com/ump-quiz/quiz-backend/internal/database"
	"github.com/ump-quiz/quiz-backend/internal/handler"
	"github.com/ump-quiz/quiz-backend/internal/logger"
	"github.com/ump-quiz/quiz-backend/internal/metrics"
	"github.com/ump-quiz/quiz-backend/internal/repository"
	"github.com/ump-quiz/quiz-backend/internal/router"
	"github.com/ump-quiz/quiz-backend/internal/service"
	"github.com/ump-quiz/quiz-backend/internal/validator"
	"github.com/ump-quiz/quiz-backend/internal/worker"
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
		Bool("require_access_token", cfg.RequireAccessToken).
		Msg("Starting Quiz Backend")

	if cfg.JWTSecret == "" {
		log.Fatal().Msg("JWT_SECRET is not set")
	}

	// ─── Initialize Validator & Metrics ────────────────────────────────
	validator.Setup()
	metrics.Init()

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

	// ─── Initialize Repositories ───────────────────────────────────────
	studentRepo := repository.NewStudentRepository(pool)
	sessionRepo := repository.NewQuizSessionRepository(pool)
	answerRepo := repository.NewQuizAnswerRepository(pool)
	resultRepo := repository.NewQuizResultRepository(pool)
	tokenRepo := repository.NewTokenRepository(pool)
	adminRepo := repository.NewAdminRepository(pool)
	adminLogRepo := repository.NewAdminLogRepository(pool)
	dashboardRepo := repository.NewDashboardRepository(pool)

	// ─── Initialize Services ──────────────────────────────────────────
	realtimeService := service.NewRealtimeService(rdb, log)
	authService := service.NewAuthService(cfg, rdb, adminRepo, log)
	auditService := service.NewAuditService(rdb, adminLogRepo, log)
	tokenService := service.NewTokenService(tokenRepo, log)
	sessionService := service.NewSessionService(studentRepo, sessionRepo, realtimeService, cfg.InitialLevel, log)
	if cfg.RequireAccessToken {
		sessionService.RequireAccess(tokenService)
	}
	answerService := service.NewAnswerService(sessionRepo, realtimeService, log)
	resultService := service.NewResultService(sessionRepo, answerRepo, resultRepo, realtimeService, cfg.TotalAvailableQuestions, log)
	exportService := service.NewExportService(resultRepo, answerRepo)
	dashboardService := service.NewDashboardService(dashboardRepo)

	// ─── Initialize Handlers ──────────────────────────────────────────
	handlers := &router.Handlers{
		Health:    handler.NewHealthHandler(pool, rdb),
		Quiz:      handler.NewQuizHandler(tokenService, sessionService, answerService, resultService, cfg.RequireAccessToken, log),
		Auth:      handler.NewAuthHandler(authService, auditService, cfg.CookieSecure, log),
		Token:     handler.NewTokenHandler(tokenService, auditService, log),
		Result:    handler.NewResultHandler(resultService, exportService, auditService, log),
		Dashboard: handler.NewDashboardHandler(dashboardService, auditService, log),
		Realtime:  handler.NewRealtimeHandler(realtimeService, dashboardService, cfg.AllowedOrigins, log),
		System:    handler.NewSystemHandler(pool, rdb, dashboardRepo, log),
	}

	// ─── Start Background Workers ─────────────────────────────────────
	workerCtx, workerCancel := context.WithCancel(context.Background())
	var workers sync.WaitGroup

	auditWorker := worker.NewAuditWorker(adminLogRepo, rdb, log)
	workers.Add(1)
	go func() {
		defer workers.Done()
		auditWorker.Start(workerCtx)
	}()

	if cfg.SweepEnabled {
		sweeper := worker.NewSessionSweeper(resultService, cfg.SessionTimeout, cfg.SweepInterval, log)
		workers.Add(1)
		go func() {
			defer workers.Done()
			sweeper.Start(workerCtx)
		}()
	}

	// ─── Setup Router ──────────────────────────────────────────────────
	r := router.SetupRouter(ctx, authService, handlers, cfg)

	// ─── Create HTTP Server ────────────────────────────────────────────
	srv := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		// Request contexts derive from ctx so open realtime streams end on shutdown.
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	// ─── Start Server in Goroutine ─────────────────────────────────────
	go func() {
		log.Info().Str("addr", ":"+cfg.ServerPort).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Server error")
		}
	}()

	// ─── Graceful Shutdown ─────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	log.Info().Str("signal", sig.String()).Msg("Shutting down gracefully...")

	// 1. Stop accepting new HTTP requests.
	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}

	// 2. Stop background workers and wait for the audit queue to drain.
	workerCancel()
	workers.Wait()

	log.Info().Msg("Shutdown complete")
}

// init sets zerolog global defaults before main runs.
func init() {
	zerolog.TimeFieldFormat = time.RFC3339
}
