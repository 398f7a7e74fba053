package worker

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/ump-quiz/quiz-backend/internal/metrics"
)

// SweepBatchSize caps how many sessions one tick finalizes.
const SweepBatchSize = 100

// StaleSweeper is satisfied by *service.ResultService.
type StaleSweeper interface {
	SweepStale(ctx context.Context, before time.Time, limit int) (int, error)
}

// SessionSweeper periodically closes sessions abandoned mid-quiz with a
// timeout summary, so they show up in results and stop counting as active.
type SessionSweeper struct {
	results  StaleSweeper
	timeout  time.Duration
	interval time.Duration
	log      zerolog.Logger
	now      func() time.Time
}

func NewSessionSweeper(results StaleSweeper, timeout, interval time.Duration, log zerolog.Logger) *SessionSweeper {
	return &SessionSweeper{
		results:  results,
		timeout:  timeout,
		interval: interval,
		log:      log.With().Str("component", "session_sweeper").Logger(),
		now:      time.Now,
	}
}

// Start sweeps once immediately and then every interval until ctx is cancelled.
func (s *SessionSweeper) Start(ctx context.Context) {
	s.log.Info().
		Dur("timeout", s.timeout).
		Dur("interval", s.interval).
		Msg("SessionSweeper started")

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		s.Sweep(ctx)

		select {
		case <-ctx.Done():
			s.log.Info().Msg("SessionSweeper stopped")
			return
		case <-ticker.C:
		}
	}
}

// Sweep runs one pass and returns the number of sessions finalized.
// A full batch is followed immediately by another.
func (s *SessionSweeper) Sweep(ctx context.Context) int {
	before := s.now().Add(-s.timeout)
	total := 0
	for ctx.Err() == nil {
		n, err := s.results.SweepStale(ctx, before, SweepBatchSize)
		if err != nil {
			if ctx.Err() == nil {
				s.log.Error().Err(err).Msg("Stale session sweep failed")
			}
			break
		}
		total += n
		metrics.SessionsSwept.Add(float64(n))
		if n < SweepBatchSize {
			break
		}
	}

	if total > 0 {
		s.log.Info().Int("finalized", total).Msg("Stale sessions timed out")
	}
	return total
}
