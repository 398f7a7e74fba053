package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/ump-quiz/quiz-backend/internal/config"
	"github.com/ump-quiz/quiz-backend/internal/database"
	"github.com/ump-quiz/quiz-backend/internal/logger"
	"github.com/ump-quiz/quiz-backend/internal/validator"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

// env is what every subcommand needs. Built lazily so --help works without a database.
type env struct {
	cfg  *config.Config
	log  zerolog.Logger
	pool *pgxpool.Pool
}

func connect(ctx context.Context) (*env, error) {
	cfg := config.Load()
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)

	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		return nil, err
	}
	return &env{cfg: cfg, log: log, pool: pool}, nil
}

func (e *env) Close() {
	e.pool.Close()
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "quizctl",
		Short:        "Operator tooling for the quiz backend",
		SilenceUsage: true,
	}
	cmd.PersistentPreRun = func(*cobra.Command, []string) {
		validator.Setup()
	}

	cmd.AddCommand(newAdminCmd())
	cmd.AddCommand(newTokenCmd())
	cmd.AddCommand(newSessionsCmd())
	return cmd
}
