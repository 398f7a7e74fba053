package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/ump-quiz/quiz-backend/internal/model"
)

// QuizAnswerRepository reads graded answers. Answers are only ever written
// through QuizSessionRepository.RecordAnswer.
type QuizAnswerRepository struct {
	pool *pgxpool.Pool
}

// NewQuizAnswerRepository creates a new QuizAnswerRepository.
func NewQuizAnswerRepository(pool *pgxpool.Pool) *QuizAnswerRepository {
	return &QuizAnswerRepository{pool: pool}
}

// ListBySession returns every answer of a session in answer order.
func (r *QuizAnswerRepository) ListBySession(ctx context.Context, sessionID int64) ([]model.QuizAnswer, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, session_id, student_id, level, question_id, question_text, selected_answer, correct_answer,
		        is_correct, points_earned, time_taken, answered_at, created_at
		 FROM quiz_answers
		 WHERE session_id = $1
		 ORDER BY answered_at ASC, id ASC`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	answers := []model.QuizAnswer{}
	for rows.Next() {
		var a model.QuizAnswer
		if err := rows.Scan(&a.ID, &a.SessionID, &a.StudentID, &a.Level, &a.QuestionID, &a.QuestionText,
			&a.SelectedAnswer, &a.CorrectAnswer, &a.IsCorrect, &a.PointsEarned, &a.TimeTaken,
			&a.AnsweredAt, &a.CreatedAt); err != nil {
			return nil, err
		}
		answers = append(answers, a)
	}
	return answers, rows.Err()
}

// AnswerBrief is the compact answer shape used by exports.
type AnswerBrief struct {
	QuestionID string
	IsCorrect  bool
}

// ListBriefBySessions returns answers grouped by session for many sessions at once.
func (r *QuizAnswerRepository) ListBriefBySessions(ctx context.Context, sessionIDs []int64) (map[int64][]AnswerBrief, error) {
	out := make(map[int64][]AnswerBrief, len(sessionIDs))
	if len(sessionIDs) == 0 {
		return out, nil
	}

	rows, err := r.pool.Query(ctx,
		`SELECT session_id, question_id, is_correct
		 FROM quiz_answers
		 WHERE session_id = ANY($1)
		 ORDER BY session_id, answered_at ASC, id ASC`, sessionIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			sid int64
			b   AnswerBrief
		)
		if err := rows.Scan(&sid, &b.QuestionID, &b.IsCorrect); err != nil {
			return nil, err
		}
		out[sid] = append(out[sid], b)
	}
	return out, rows.Err()
}
