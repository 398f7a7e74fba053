package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/ump-quiz/quiz-backend/internal/model"
)

const summaryColumns = `r.id, r.student_id, r.session_id, r.total_questions, r.correct_answers, r.wrong_answers,
	r.total_score, r.percentage, r.highest_level_reached, r.time_spent, r.status, r.total_available_questions,
	r.questions_answered, r.completion_rate, r.completed_at, r.created_at, r.updated_at`

// QuizResultRepository handles result summary data access.
type QuizResultRepository struct {
	pool *pgxpool.Pool
}

// NewQuizResultRepository creates a new QuizResultRepository.
func NewQuizResultRepository(pool *pgxpool.Pool) *QuizResultRepository {
	return &QuizResultRepository{pool: pool}
}

func summaryDest(r *model.QuizResultSummary) []any {
	return []any{&r.ID, &r.StudentID, &r.SessionID, &r.TotalQuestions, &r.CorrectAnswers, &r.WrongAnswers,
		&r.TotalScore, &r.Percentage, &r.HighestLevelReached, &r.TimeSpent, &r.Status, &r.TotalAvailableQuestions,
		&r.QuestionsAnswered, &r.CompletionRate, &r.CompletedAt, &r.CreatedAt, &r.UpdatedAt}
}

// GetBySessionID retrieves the summary of a session.
func (r *QuizResultRepository) GetBySessionID(ctx context.Context, sessionID int64) (*model.QuizResultSummary, error) {
	s := &model.QuizResultSummary{}
	err := r.pool.QueryRow(ctx,
		`SELECT `+summaryColumns+` FROM quiz_results_summary r WHERE r.session_id = $1`, sessionID,
	).Scan(summaryDest(s)...)
	if err != nil {
		return nil, notFound(err)
	}
	return s, nil
}

// Create inserts a summary. When a summary for the session already exists
// nothing is written and ErrDuplicateSummary is returned.
func (r *QuizResultRepository) Create(ctx context.Context, s *model.QuizResultSummary) error {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO quiz_results_summary
			(student_id, session_id, total_questions, correct_answers, wrong_answers, total_score, percentage,
			 highest_level_reached, time_spent, status, total_available_questions, questions_answered,
			 completion_rate, completed_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		 ON CONFLICT (session_id) DO NOTHING
		 RETURNING id, created_at, updated_at`,
		s.StudentID, s.SessionID, s.TotalQuestions, s.CorrectAnswers, s.WrongAnswers, s.TotalScore, s.Percentage,
		s.HighestLevelReached, s.TimeSpent, s.Status, s.TotalAvailableQuestions, s.QuestionsAnswered,
		s.CompletionRate, s.CompletedAt,
	).Scan(&s.ID, &s.CreatedAt, &s.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrDuplicateSummary
	}
	return err
}

// UpdateAggregates overwrites the computed fields of an existing summary.
// Status and completed_at are kept.
func (r *QuizResultRepository) UpdateAggregates(ctx context.Context, s *model.QuizResultSummary) error {
	err := r.pool.QueryRow(ctx,
		`UPDATE quiz_results_summary
		 SET total_questions = $2, correct_answers = $3, wrong_answers = $4, total_score = $5, percentage = $6,
		     highest_level_reached = $7, time_spent = $8, total_available_questions = $9,
		     questions_answered = $10, completion_rate = $11, updated_at = NOW()
		 WHERE session_id = $1
		 RETURNING updated_at`,
		s.SessionID, s.TotalQuestions, s.CorrectAnswers, s.WrongAnswers, s.TotalScore, s.Percentage,
		s.HighestLevelReached, s.TimeSpent, s.TotalAvailableQuestions, s.QuestionsAnswered, s.CompletionRate,
	).Scan(&s.UpdatedAt)
	return notFound(err)
}

const resultRowSelect = `SELECT ` + summaryColumns + `, st.full_name, st.class, st.school, qs.session_token, qs.token_used
	FROM quiz_results_summary r
	JOIN students st ON st.id = r.student_id
	JOIN quiz_sessions qs ON qs.id = r.session_id`

func scanResultRow(row interface{ Scan(dest ...any) error }) (*model.ResultRow, error) {
	rr := &model.ResultRow{}
	dest := append(summaryDest(&rr.QuizResultSummary), &rr.FullName, &rr.Class, &rr.School, &rr.SessionToken, &rr.TokenUsed)
	if err := row.Scan(dest...); err != nil {
		return nil, notFound(err)
	}
	return rr, nil
}

// GetRow retrieves one joined result row by session ID.
func (r *QuizResultRepository) GetRow(ctx context.Context, sessionID int64) (*model.ResultRow, error) {
	return scanResultRow(r.pool.QueryRow(ctx, resultRowSelect+` WHERE r.session_id = $1`, sessionID))
}

// likeEscaper makes user input match literally inside a LIKE pattern.
var likeEscaper = strings.NewReplacer(`\`, `\\`, "%", `\%`, "_", `\_`)

// buildResultFilter appends one placeholder per set filter; values never enter the SQL text.
func buildResultFilter(f model.ResultFilter) (string, []any) {
	var (
		conds []string
		args  []any
	)
	if f.Level != nil {
		args = append(args, *f.Level)
		conds = append(conds, fmt.Sprintf("r.highest_level_reached = $%d", len(args)))
	}
	if f.School != "" {
		args = append(args, "%"+likeEscaper.Replace(f.School)+"%")
		conds = append(conds, fmt.Sprintf(`st.school ILIKE $%d ESCAPE '\'`, len(args)))
	}
	if f.Status != "" {
		args = append(args, f.Status)
		conds = append(conds, fmt.Sprintf("r.status = $%d", len(args)))
	}
	if f.DateFrom != nil {
		args = append(args, *f.DateFrom)
		conds = append(conds, fmt.Sprintf("r.completed_at >= $%d", len(args)))
	}
	if f.DateTo != nil {
		// Inclusive of the whole end day.
		args = append(args, f.DateTo.Add(24*time.Hour))
		conds = append(conds, fmt.Sprintf("r.completed_at < $%d", len(args)))
	}
	if len(conds) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// List returns one page of joined results plus the total match count.
// A PerPage of zero returns every match.
func (r *QuizResultRepository) List(ctx context.Context, f model.ResultFilter) ([]model.ResultRow, int, error) {
	where, args := buildResultFilter(f)

	var total int
	if err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*)
		 FROM quiz_results_summary r
		 JOIN students st ON st.id = r.student_id`+where, args...,
	).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := resultRowSelect + where + ` ORDER BY r.completed_at DESC, r.id DESC`
	if f.PerPage > 0 {
		page := f.Page
		if page < 1 {
			page = 1
		}
		args = append(args, f.PerPage, (page-1)*f.PerPage)
		query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)-1, len(args))
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	results := []model.ResultRow{}
	for rows.Next() {
		rr, err := scanResultRow(rows)
		if err != nil {
			return nil, 0, err
		}
		results = append(results, *rr)
	}
	return results, total, rows.Err()
}
