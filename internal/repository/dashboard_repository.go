package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/ump-quiz/quiz-backend/internal/model"
)

// DashboardRepository runs the aggregate queries behind the admin dashboard.
type DashboardRepository struct {
	pool *pgxpool.Pool
}

// NewDashboardRepository creates a new DashboardRepository.
func NewDashboardRepository(pool *pgxpool.Pool) *DashboardRepository {
	return &DashboardRepository{pool: pool}
}

// GetOverview retrieves the headline counts for sessions started since since.
func (r *DashboardRepository) GetOverview(ctx context.Context, since time.Time) (*model.DashboardOverview, error) {
	o := &model.DashboardOverview{}
	err := r.pool.QueryRow(ctx,
		`SELECT
			COUNT(DISTINCT s.student_id),
			COUNT(*) FILTER (WHERE s.status = 'active'),
			COUNT(*) FILTER (WHERE s.status = 'completed'),
			COUNT(*) FILTER (WHERE s.status = 'stopped'),
			COUNT(*) FILTER (WHERE s.status = 'timeout')
		 FROM quiz_sessions s
		 WHERE s.started_at >= $1`, since,
	).Scan(&o.TotalParticipants, &o.ActiveSessions, &o.CompletedSessions, &o.StoppedSessions, &o.TimeoutSessions)
	if err != nil {
		return nil, err
	}

	err = r.pool.QueryRow(ctx,
		`SELECT
			COALESCE(AVG(total_score), 0)::float8,
			COALESCE(AVG(highest_level_reached), 0)::float8,
			COALESCE(AVG(percentage), 0)::float8
		 FROM quiz_results_summary
		 WHERE completed_at >= $1`, since,
	).Scan(&o.AverageScore, &o.AverageLevel, &o.AveragePercentage)
	if err != nil {
		return nil, err
	}

	err = r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM tokens
		 WHERE is_active AND usage_count < max_usage AND (expires_at IS NULL OR expires_at > NOW())`,
	).Scan(&o.ActiveTokens)
	if err != nil {
		return nil, err
	}
	return o, nil
}

// GetLevelDistribution counts summaries by highest level reached.
func (r *DashboardRepository) GetLevelDistribution(ctx context.Context, since time.Time) ([]model.LevelCount, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT highest_level_reached, COUNT(*)
		 FROM quiz_results_summary
		 WHERE completed_at >= $1
		 GROUP BY highest_level_reached
		 ORDER BY highest_level_reached`, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.LevelCount{}
	for rows.Next() {
		var lc model.LevelCount
		if err := rows.Scan(&lc.Level, &lc.Count); err != nil {
			return nil, err
		}
		out = append(out, lc)
	}
	return out, rows.Err()
}

// GetTopSchools ranks schools by average total score.
func (r *DashboardRepository) GetTopSchools(ctx context.Context, since time.Time, limit int) ([]model.SchoolRanking, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT st.school,
		        COUNT(DISTINCT r.student_id),
		        AVG(r.total_score)::float8,
		        AVG(r.percentage)::float8
		 FROM quiz_results_summary r
		 JOIN students st ON st.id = r.student_id
		 WHERE r.completed_at >= $1
		 GROUP BY st.school
		 ORDER BY AVG(r.total_score) DESC, st.school ASC
		 LIMIT $2`, since, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.SchoolRanking{}
	for rows.Next() {
		var s model.SchoolRanking
		if err := rows.Scan(&s.School, &s.Participants, &s.AverageScore, &s.AveragePercentage); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// GetDailyStats returns one row per day for the last days days, including empty days.
func (r *DashboardRepository) GetDailyStats(ctx context.Context, days int) ([]model.DailyStat, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT d,
		        (SELECT COUNT(*) FROM quiz_sessions s
		          WHERE s.started_at >= d AND s.started_at < d + INTERVAL '1 day'),
		        (SELECT COUNT(*) FROM quiz_answers a
		          WHERE a.answered_at >= d AND a.answered_at < d + INTERVAL '1 day'),
		        (SELECT COALESCE(AVG(r.total_score), 0)::float8 FROM quiz_results_summary r
		          WHERE r.completed_at >= d AND r.completed_at < d + INTERVAL '1 day')
		 FROM generate_series(
		        date_trunc('day', NOW()) - ($1::int - 1) * INTERVAL '1 day',
		        date_trunc('day', NOW()),
		        INTERVAL '1 day') AS d
		 ORDER BY d`, days)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.DailyStat{}
	for rows.Next() {
		var s model.DailyStat
		if err := rows.Scan(&s.Date, &s.Sessions, &s.Answers, &s.AverageScore); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// GetWeeklyStats groups completions by ISO week for the last weeks weeks.
func (r *DashboardRepository) GetWeeklyStats(ctx context.Context, weeks int) ([]model.WeeklyStat, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT to_char(date_trunc('week', completed_at), 'IYYY-"W"IW') AS week,
		        COUNT(*),
		        AVG(total_score)::float8
		 FROM quiz_results_summary
		 WHERE completed_at >= date_trunc('week', NOW()) - ($1::int - 1) * INTERVAL '1 week'
		 GROUP BY week
		 ORDER BY week`, weeks)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.WeeklyStat{}
	for rows.Next() {
		var s model.WeeklyStat
		if err := rows.Scan(&s.Week, &s.Completions, &s.AverageScore); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// GetLevelPerformance reports answer accuracy per level since since.
func (r *DashboardRepository) GetLevelPerformance(ctx context.Context, since time.Time) ([]model.LevelPerformance, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT level,
		        COUNT(*),
		        COUNT(*) FILTER (WHERE is_correct),
		        ROUND(100.0 * COUNT(*) FILTER (WHERE is_correct) / COUNT(*), 2)::float8,
		        AVG(points_earned)::float8
		 FROM quiz_answers
		 WHERE answered_at >= $1
		 GROUP BY level
		 ORDER BY level`, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.LevelPerformance{}
	for rows.Next() {
		var p model.LevelPerformance
		if err := rows.Scan(&p.Level, &p.TotalAnswers, &p.CorrectAnswers, &p.Accuracy, &p.AveragePoints); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// countedTables is a fixed list; names are never taken from input.
var countedTables = []string{
	"students", "quiz_sessions", "quiz_answers", "quiz_results_summary", "tokens", "admins", "admin_logs",
}

// CountRows returns the row count of every quiz table.
func (r *DashboardRepository) CountRows(ctx context.Context) (map[string]int64, error) {
	counts := make(map[string]int64, len(countedTables))
	for _, table := range countedTables {
		var n int64
		if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM "+table).Scan(&n); err != nil {
			return nil, err
		}
		counts[table] = n
	}
	return counts, nil
}
