package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/ump-quiz/quiz-backend/internal/metrics"
	"github.com/ump-quiz/quiz-backend/internal/model"
	"github.com/ump-quiz/quiz-backend/internal/repository"
)

// FinalizeInput names the session to close. SessionToken wins over SessionID.
type FinalizeInput struct {
	SessionToken string
	SessionID    int64
	Status       string
}

// FinalizeResult is the stored summary and whether it existed before this call.
type FinalizeResult struct {
	Summary   *model.QuizResultSummary
	Duplicate bool
}

// ResultService finalizes sessions into summaries and serves the admin result views.
type ResultService struct {
	sessions       SessionStore
	answers        AnswerStore
	results        ResultStore
	events         EventPublisher
	totalAvailable int
	log            zerolog.Logger
	now            func() time.Time
}

// NewResultService creates a new ResultService.
func NewResultService(sessions SessionStore, answers AnswerStore, results ResultStore, events EventPublisher, totalAvailable int, log zerolog.Logger) *ResultService {
	if events == nil {
		events = NopPublisher{}
	}
	return &ResultService{
		sessions:       sessions,
		answers:        answers,
		results:        results,
		events:         events,
		totalAvailable: totalAvailable,
		log:            log.With().Str("component", "result_service").Logger(),
		now:            time.Now,
	}
}

// Summarize reduces a session's answers into summary aggregates. Status,
// IDs of the row and completed_at are left for the caller.
func Summarize(sess *model.QuizSession, answers []model.QuizAnswer, totalAvailable int) model.QuizResultSummary {
	sum := model.QuizResultSummary{
		StudentID:               sess.StudentID,
		SessionID:               sess.ID,
		TotalQuestions:          len(answers),
		QuestionsAnswered:       len(answers),
		TotalAvailableQuestions: totalAvailable,
	}

	if len(answers) == 0 {
		sum.HighestLevelReached = max(sess.CurrentLevel-1, 0)
		return sum
	}

	var (
		timed   bool
		elapsed int
		first   = answers[0].AnsweredAt
		last    = answers[0].AnsweredAt
	)
	for _, a := range answers {
		if a.IsCorrect {
			sum.CorrectAnswers++
		}
		sum.TotalScore += a.PointsEarned
		if a.Level > sum.HighestLevelReached {
			sum.HighestLevelReached = a.Level
		}
		if a.TimeTaken != nil {
			timed = true
			elapsed += *a.TimeTaken
		}
		if a.AnsweredAt.Before(first) {
			first = a.AnsweredAt
		}
		if a.AnsweredAt.After(last) {
			last = a.AnsweredAt
		}
	}
	sum.WrongAnswers = sum.TotalQuestions - sum.CorrectAnswers
	sum.Percentage = percent(sum.CorrectAnswers, sum.TotalQuestions)

	if timed {
		sum.TimeSpent = elapsed
	} else {
		sum.TimeSpent = int(last.Sub(first) / time.Second)
	}

	if totalAvailable > 0 {
		sum.CompletionRate = min(percent(sum.QuestionsAnswered, totalAvailable), 100)
	}
	return sum
}

// percent returns part/whole*100 rounded half away from zero to two decimals.
func percent(part, whole int) float64 {
	if whole <= 0 {
		return 0
	}
	return decimal.NewFromInt(int64(part)).
		Mul(decimal.NewFromInt(100)).
		Div(decimal.NewFromInt(int64(whole))).
		Round(2).
		InexactFloat64()
}

// Finalize closes a session and writes its one summary. A second call returns
// the stored summary unchanged with Duplicate set, including when two calls
// race. A session closed by an earlier call that failed before the insert is
// summarized as is.
func (s *ResultService) Finalize(ctx context.Context, in FinalizeInput) (*FinalizeResult, error) {
	status, ok := model.ParseResultStatus(strings.TrimSpace(in.Status))
	if !ok {
		return nil, ErrInvalidStatus
	}

	sess, err := s.lookupSession(ctx, in)
	if err != nil {
		return nil, err
	}

	if existing, err := s.results.GetBySessionID(ctx, sess.ID); err == nil {
		metrics.Finalizations.WithLabelValues(string(existing.Status), "true").Inc()
		return &FinalizeResult{Summary: existing, Duplicate: true}, nil
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("lookup summary: %w", err)
	}

	// Closing first takes the row lock answers are recorded under, so the
	// answers read below are final.
	now := s.now().UTC()
	sess, err = s.sessions.Close(ctx, sess.ID, status.SessionStatus(), now)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("close session: %w", err)
	}
	// The terminal status of the session wins when an earlier call closed it.
	if closed, ok := model.ResultStatusFor(sess.Status); ok {
		status = closed
	}

	answers, err := s.answers.ListBySession(ctx, sess.ID)
	if err != nil {
		return nil, fmt.Errorf("load answers: %w", err)
	}

	summary := Summarize(sess, answers, s.totalAvailable)
	summary.Status = status
	summary.CompletedAt = now

	if err := s.results.Create(ctx, &summary); err != nil {
		if !errors.Is(err, repository.ErrDuplicateSummary) {
			return nil, fmt.Errorf("create summary: %w", err)
		}
		existing, gerr := s.results.GetBySessionID(ctx, sess.ID)
		if gerr != nil {
			return nil, fmt.Errorf("refetch summary after conflict: %w", gerr)
		}
		metrics.Finalizations.WithLabelValues(string(existing.Status), "true").Inc()
		return &FinalizeResult{Summary: existing, Duplicate: true}, nil
	}

	metrics.Finalizations.WithLabelValues(string(status), "false").Inc()
	s.log.Info().
		Int64("session_id", sess.ID).
		Str("status", string(status)).
		Int("total_score", summary.TotalScore).
		Int("questions", summary.TotalQuestions).
		Msg("Quiz finalized")

	s.events.Publish(ctx, NewEvent(EventQuizCompleted, &summary))

	return &FinalizeResult{Summary: &summary}, nil
}

func (s *ResultService) lookupSession(ctx context.Context, in FinalizeInput) (*model.QuizSession, error) {
	var (
		sess *model.QuizSession
		err  error
	)
	switch token := strings.TrimSpace(in.SessionToken); {
	case token != "":
		sess, err = s.sessions.GetByToken(ctx, token)
	case in.SessionID > 0:
		sess, err = s.sessions.GetByID(ctx, in.SessionID)
	default:
		return nil, fmt.Errorf("%w: session_token or session_id is required", ErrValidation)
	}
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("lookup session: %w", err)
	}
	return sess, nil
}

// Recompute re-derives a stored summary from the session's current answers.
// Status and completed_at are kept.
func (s *ResultService) Recompute(ctx context.Context, sessionID int64) (*model.QuizResultSummary, error) {
	existing, err := s.results.GetBySessionID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrResultNotFound
		}
		return nil, fmt.Errorf("lookup summary: %w", err)
	}

	sess, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("lookup session: %w", err)
	}

	answers, err := s.answers.ListBySession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("load answers: %w", err)
	}

	summary := Summarize(sess, answers, s.totalAvailable)
	summary.ID = existing.ID
	summary.Status = existing.Status
	summary.CompletedAt = existing.CompletedAt
	summary.CreatedAt = existing.CreatedAt

	if err := s.results.UpdateAggregates(ctx, &summary); err != nil {
		return nil, fmt.Errorf("update summary: %w", err)
	}
	return &summary, nil
}

// List returns one page of summaries matching f.
func (s *ResultService) List(ctx context.Context, f model.ResultFilter) ([]model.ResultRow, int, error) {
	return s.results.List(ctx, f)
}

// GetDetail returns a summary with its session and every answer.
func (s *ResultService) GetDetail(ctx context.Context, sessionID int64) (*model.ResultDetail, error) {
	row, err := s.results.GetRow(ctx, sessionID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrResultNotFound
		}
		return nil, err
	}

	sess, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("lookup session: %w", err)
	}

	answers, err := s.answers.ListBySession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("load answers: %w", err)
	}

	return &model.ResultDetail{Result: *row, Session: *sess, Answers: answers}, nil
}

// DeleteSession removes a session together with its answers and summary.
func (s *ResultService) DeleteSession(ctx context.Context, sessionID int64) error {
	err := s.sessions.Delete(ctx, sessionID)
	if errors.Is(err, repository.ErrNotFound) {
		return ErrSessionNotFound
	}
	return err
}

// SweepStale finalizes active sessions idle since before as timeout and
// returns how many summaries were written.
func (s *ResultService) SweepStale(ctx context.Context, before time.Time, limit int) (int, error) {
	stale, err := s.sessions.ListStale(ctx, before, limit)
	if err != nil {
		return 0, fmt.Errorf("list stale sessions: %w", err)
	}

	finalized := 0
	for _, sess := range stale {
		res, err := s.Finalize(ctx, FinalizeInput{SessionID: sess.ID, Status: string(model.ResultStatusTimeout)})
		if err != nil {
			s.log.Warn().Err(err).Int64("session_id", sess.ID).Msg("Failed to time out stale session")
			continue
		}
		if res.Duplicate {
			// Summary already existed but the session was left active; close it.
			if _, err := s.sessions.Close(ctx, sess.ID, res.Summary.Status.SessionStatus(), res.Summary.CompletedAt); err != nil {
				s.log.Warn().Err(err).Int64("session_id", sess.ID).Msg("Failed to mark session finished")
			}
			continue
		}
		finalized++
	}
	return finalized, nil
}
