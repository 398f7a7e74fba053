package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/ump-quiz/quiz-backend/internal/repository"
	"github.com/ump-quiz/quiz-backend/internal/service"
	"github.com/ump-quiz/quiz-backend/internal/worker"
)

func newSessionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "Maintain quiz sessions",
	}
	cmd.AddCommand(newSessionsSweepCmd())
	return cmd
}

func newSessionsSweepCmd() *cobra.Command {
	var olderThan time.Duration

	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Finalize idle active sessions with status timeout",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := connect(cmd.Context())
			if err != nil {
				return err
			}
			defer e.Close()

			timeout := olderThan
			if timeout <= 0 {
				timeout = e.cfg.SessionTimeout
			}

			sessions := repository.NewQuizSessionRepository(e.pool)
			results := service.NewResultService(
				sessions,
				repository.NewQuizAnswerRepository(e.pool),
				repository.NewQuizResultRepository(e.pool),
				nil,
				e.cfg.TotalAvailableQuestions,
				e.log,
			)

			n := worker.NewSessionSweeper(results, timeout, timeout, e.log).Sweep(cmd.Context())
			fmt.Fprintf(cmd.OutOrStdout(), "Finalized %d sessions idle longer than %s\n", n, timeout)
			return nil
		},
	}

	cmd.Flags().DurationVar(&olderThan, "older-than", 0, "idle threshold (default SESSION_TIMEOUT_HOURS)")
	return cmd
}
