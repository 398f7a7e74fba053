package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/ump-quiz/quiz-backend/internal/model"
)

const sessionColumns = `id, student_id, session_token, current_level, current_question, wrong_count, status,
	token_used, ip_address, user_agent, started_at, completed_at, created_at, updated_at`

// ApplyAnswerFunc grades an answer against the locked session. It must
// update the session's counters in place and return the answer to insert.
type ApplyAnswerFunc func(sess *model.QuizSession) (*model.QuizAnswer, error)

// QuizSessionRepository handles quiz session data access.
type QuizSessionRepository struct {
	pool *pgxpool.Pool
}

// NewQuizSessionRepository creates a new QuizSessionRepository.
func NewQuizSessionRepository(pool *pgxpool.Pool) *QuizSessionRepository {
	return &QuizSessionRepository{pool: pool}
}

func scanSession(row interface{ Scan(dest ...any) error }) (*model.QuizSession, error) {
	s := &model.QuizSession{}
	err := row.Scan(&s.ID, &s.StudentID, &s.SessionToken, &s.CurrentLevel, &s.CurrentQuestion, &s.WrongCount, &s.Status,
		&s.TokenUsed, &s.IPAddress, &s.UserAgent, &s.StartedAt, &s.CompletedAt, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	return s, nil
}

// GetByID retrieves a session by ID.
func (r *QuizSessionRepository) GetByID(ctx context.Context, id int64) (*model.QuizSession, error) {
	return scanSession(r.pool.QueryRow(ctx,
		`SELECT `+sessionColumns+` FROM quiz_sessions WHERE id = $1`, id))
}

// GetByToken retrieves the session bound to a session token.
func (r *QuizSessionRepository) GetByToken(ctx context.Context, token string) (*model.QuizSession, error) {
	return scanSession(r.pool.QueryRow(ctx,
		`SELECT `+sessionColumns+` FROM quiz_sessions WHERE session_token = $1`, token))
}

// Create inserts a new session. A token that is already bound yields
// ErrDuplicateSessionToken; the caller decides whether to continue that session.
func (r *QuizSessionRepository) Create(ctx context.Context, s *model.QuizSession) error {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO quiz_sessions
			(student_id, session_token, current_level, current_question, wrong_count, status, token_used, ip_address, user_agent)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 ON CONFLICT (session_token) DO NOTHING
		 RETURNING id, started_at, created_at, updated_at`,
		s.StudentID, s.SessionToken, s.CurrentLevel, s.CurrentQuestion, s.WrongCount, s.Status,
		s.TokenUsed, s.IPAddress, s.UserAgent,
	).Scan(&s.ID, &s.StartedAt, &s.CreatedAt, &s.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrDuplicateSessionToken
	}
	return err
}

// RecordAnswer locks the session row, lets apply grade the answer, then
// writes the new progress and the answer in one transaction. Concurrent
// submissions for the same session queue on the row lock.
func (r *QuizSessionRepository) RecordAnswer(ctx context.Context, sessionID int64, apply ApplyAnswerFunc) (*model.QuizSession, *model.QuizAnswer, error) {
	var (
		sess *model.QuizSession
		ans  *model.QuizAnswer
	)

	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		s, err := scanSession(tx.QueryRow(ctx,
			`SELECT `+sessionColumns+` FROM quiz_sessions WHERE id = $1 FOR UPDATE`, sessionID))
		if err != nil {
			return err
		}

		a, err := apply(s)
		if err != nil {
			return err
		}

		if err := tx.QueryRow(ctx,
			`UPDATE quiz_sessions
			 SET current_level = $2, current_question = $3, wrong_count = $4, updated_at = NOW()
			 WHERE id = $1
			 RETURNING updated_at`,
			s.ID, s.CurrentLevel, s.CurrentQuestion, s.WrongCount,
		).Scan(&s.UpdatedAt); err != nil {
			return fmt.Errorf("update progress: %w", err)
		}

		if err := tx.QueryRow(ctx,
			`INSERT INTO quiz_answers
				(session_id, student_id, level, question_id, question_text, selected_answer, correct_answer,
				 is_correct, points_earned, time_taken)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			 RETURNING id, answered_at, created_at`,
			s.ID, s.StudentID, a.Level, a.QuestionID, a.QuestionText, a.SelectedAnswer, a.CorrectAnswer,
			a.IsCorrect, a.PointsEarned, a.TimeTaken,
		).Scan(&a.ID, &a.AnsweredAt, &a.CreatedAt); err != nil {
			return fmt.Errorf("insert answer: %w", err)
		}

		sess, ans = s, a
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return sess, ans, nil
}

// Close locks the session row and moves an active session to status. The
// lock is the one RecordAnswer takes, so once Close returns no answer can be
// added. A session that is already closed is returned unchanged.
func (r *QuizSessionRepository) Close(ctx context.Context, id int64, status model.SessionStatus, at time.Time) (*model.QuizSession, error) {
	var sess *model.QuizSession

	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		s, err := scanSession(tx.QueryRow(ctx,
			`SELECT `+sessionColumns+` FROM quiz_sessions WHERE id = $1 FOR UPDATE`, id))
		if err != nil {
			return err
		}

		if s.IsActive() {
			if err := tx.QueryRow(ctx,
				`UPDATE quiz_sessions
				 SET status = $2, completed_at = COALESCE(completed_at, $3), updated_at = NOW()
				 WHERE id = $1
				 RETURNING status, completed_at, updated_at`,
				id, status, at,
			).Scan(&s.Status, &s.CompletedAt, &s.UpdatedAt); err != nil {
				return fmt.Errorf("close session: %w", err)
			}
		}

		sess = s
		return nil
	})
	if err != nil {
		return nil, err
	}
	return sess, nil
}

// ListStale returns active sessions with no progress since before.
func (r *QuizSessionRepository) ListStale(ctx context.Context, before time.Time, limit int) ([]model.QuizSession, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+sessionColumns+`
		 FROM quiz_sessions
		 WHERE status = $1 AND updated_at < $2
		 ORDER BY updated_at ASC
		 LIMIT $3`,
		model.SessionStatusActive, before, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sessions := []model.QuizSession{}
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, *s)
	}
	return sessions, rows.Err()
}

// Delete removes a session with its answers and summary.
func (r *QuizSessionRepository) Delete(ctx context.Context, id int64) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM quiz_results_summary WHERE session_id = $1`, id); err != nil {
			return fmt.Errorf("delete summary: %w", err)
		}
		if _, err := tx.Exec(ctx, `DELETE FROM quiz_answers WHERE session_id = $1`, id); err != nil {
			return fmt.Errorf("delete answers: %w", err)
		}
		tag, err := tx.Exec(ctx, `DELETE FROM quiz_sessions WHERE id = $1`, id)
		if err != nil {
			return fmt.Errorf("delete session: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return ErrNotFound
		}
		return nil
	})
}
