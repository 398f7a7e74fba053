package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/ump-quiz/quiz-backend/internal/model"
)

// AdminLogRepository handles the append-only audit log.
type AdminLogRepository struct {
	pool *pgxpool.Pool
}

// NewAdminLogRepository creates a new AdminLogRepository.
func NewAdminLogRepository(pool *pgxpool.Pool) *AdminLogRepository {
	return &AdminLogRepository{pool: pool}
}

// Insert writes a single entry.
func (r *AdminLogRepository) Insert(ctx context.Context, l *model.AdminLog) error {
	return r.pool.QueryRow(ctx,
		`INSERT INTO admin_logs (admin_id, action, description, ip_address, user_agent, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id`,
		l.AdminID, l.Action, l.Description, l.IPAddress, l.UserAgent, l.CreatedAt,
	).Scan(&l.ID)
}

// BulkInsert writes many entries with the COPY protocol.
func (r *AdminLogRepository) BulkInsert(ctx context.Context, logs []model.AdminLog) (int64, error) {
	if len(logs) == 0 {
		return 0, nil
	}
	return r.pool.CopyFrom(ctx,
		pgx.Identifier{"admin_logs"},
		[]string{"admin_id", "action", "description", "ip_address", "user_agent", "created_at"},
		pgx.CopyFromSlice(len(logs), func(i int) ([]any, error) {
			l := logs[i]
			return []any{l.AdminID, l.Action, l.Description, l.IPAddress, l.UserAgent, l.CreatedAt}, nil
		}),
	)
}

// ListPaginated returns the newest entries first with the acting admin's username.
func (r *AdminLogRepository) ListPaginated(ctx context.Context, limit, offset int) ([]model.AdminLog, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM admin_logs`).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.pool.Query(ctx,
		`SELECT l.id, l.admin_id, a.username, l.action, l.description, l.ip_address, l.user_agent, l.created_at
		 FROM admin_logs l LEFT JOIN admins a ON a.id = l.admin_id
		 ORDER BY l.created_at DESC, l.id DESC
		 LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	logs := []model.AdminLog{}
	for rows.Next() {
		var l model.AdminLog
		if err := rows.Scan(&l.ID, &l.AdminID, &l.Username, &l.Action, &l.Description, &l.IPAddress,
			&l.UserAgent, &l.CreatedAt); err != nil {
			return nil, 0, err
		}
		logs = append(logs, l)
	}
	return logs, total, rows.Err()
}
