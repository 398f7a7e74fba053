package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"github.com/ump-quiz/quiz-backend/internal/metrics"
	"github.com/ump-quiz/quiz-backend/internal/model"
	"github.com/ump-quiz/quiz-backend/internal/repository"
)

// SubmitInput is one answer to grade and record.
type SubmitInput struct {
	SessionID      int64
	Level          int
	QuestionID     string
	QuestionText   string
	SelectedAnswer string
	CorrectAnswer  string
	TimeTaken      *int
}

// AnswerService grades answers and advances session progress.
type AnswerService struct {
	sessions SessionStore
	events   EventPublisher
	log      zerolog.Logger
}

// NewAnswerService creates a new AnswerService.
func NewAnswerService(sessions SessionStore, events EventPublisher, log zerolog.Logger) *AnswerService {
	if events == nil {
		events = NopPublisher{}
	}
	return &AnswerService{
		sessions: sessions,
		events:   events,
		log:      log.With().Str("component", "answer_service").Logger(),
	}
}

// Grade reports whether the selected answer matches the correct one.
func Grade(selected, correct string) bool {
	return selected == correct
}

// Submit grades in against its session and persists the answer together
// with the new progress. The session row stays locked for the duration, so
// concurrent submissions to one session are applied one after another.
func (s *AnswerService) Submit(ctx context.Context, in SubmitInput) (*model.QuizSession, *model.QuizAnswer, error) {
	if in.Level < 0 {
		return nil, nil, fmt.Errorf("%w: level must not be negative", ErrValidation)
	}
	if strings.TrimSpace(in.QuestionID) == "" {
		return nil, nil, fmt.Errorf("%w: question_id is required", ErrValidation)
	}
	if in.TimeTaken != nil && *in.TimeTaken < 0 {
		return nil, nil, fmt.Errorf("%w: time_taken must not be negative", ErrValidation)
	}

	correct := Grade(in.SelectedAnswer, in.CorrectAnswer)
	text := in.QuestionText
	if strings.TrimSpace(text) == "" {
		text = model.PlaceholderQuestionText(in.QuestionID)
	}

	sess, ans, err := s.sessions.RecordAnswer(ctx, in.SessionID, func(sess *model.QuizSession) (*model.QuizAnswer, error) {
		if !sess.IsActive() {
			return nil, ErrSessionClosed
		}
		sess.Advance(in.Level, correct)
		return &model.QuizAnswer{
			SessionID:      sess.ID,
			StudentID:      sess.StudentID,
			Level:          in.Level,
			QuestionID:     in.QuestionID,
			QuestionText:   text,
			SelectedAnswer: in.SelectedAnswer,
			CorrectAnswer:  in.CorrectAnswer,
			IsCorrect:      correct,
			PointsEarned:   model.PointsFor(in.Level, correct),
			TimeTaken:      in.TimeTaken,
		}, nil
	})
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			return nil, nil, ErrSessionNotFound
		case errors.Is(err, ErrSessionClosed):
			return nil, nil, ErrSessionClosed
		}
		return nil, nil, fmt.Errorf("record answer: %w", err)
	}

	metrics.AnswersSubmitted.WithLabelValues(metrics.Bool(correct)).Inc()
	s.log.Debug().
		Int64("session_id", sess.ID).
		Str("question_id", ans.QuestionID).
		Bool("correct", correct).
		Int("points", ans.PointsEarned).
		Msg("Answer recorded")

	s.events.Publish(ctx, NewEvent(EventAnswerSubmitted, map[string]any{
		"session_id":       sess.ID,
		"student_id":       sess.StudentID,
		"level":            ans.Level,
		"is_correct":       ans.IsCorrect,
		"points_earned":    ans.PointsEarned,
		"current_level":    sess.CurrentLevel,
		"current_question": sess.CurrentQuestion,
		"wrong_count":      sess.WrongCount,
	}))

	return sess, ans, nil
}
