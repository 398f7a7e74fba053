package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/ump-quiz/quiz-backend/internal/model"
)

const adminColumns = `id, username, email, full_name, password_hash, role, is_active, last_login, created_at, updated_at`

// AdminRepository handles admin account data access.
type AdminRepository struct {
	pool *pgxpool.Pool
}

// NewAdminRepository creates a new AdminRepository.
func NewAdminRepository(pool *pgxpool.Pool) *AdminRepository {
	return &AdminRepository{pool: pool}
}

func scanAdmin(row interface{ Scan(dest ...any) error }) (*model.Admin, error) {
	a := &model.Admin{}
	err := row.Scan(&a.ID, &a.Username, &a.Email, &a.FullName, &a.PasswordHash, &a.Role, &a.IsActive,
		&a.LastLogin, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	return a, nil
}

// GetByID retrieves an admin by ID.
func (r *AdminRepository) GetByID(ctx context.Context, id int64) (*model.Admin, error) {
	return scanAdmin(r.pool.QueryRow(ctx, `SELECT `+adminColumns+` FROM admins WHERE id = $1`, id))
}

// GetByUsername retrieves an admin by their unique username.
func (r *AdminRepository) GetByUsername(ctx context.Context, username string) (*model.Admin, error) {
	return scanAdmin(r.pool.QueryRow(ctx, `SELECT `+adminColumns+` FROM admins WHERE username = $1`, username))
}

// Create inserts a new admin.
func (r *AdminRepository) Create(ctx context.Context, a *model.Admin) error {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO admins (username, email, full_name, password_hash, role, is_active)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id, created_at, updated_at`,
		a.Username, a.Email, a.FullName, a.PasswordHash, a.Role, a.IsActive,
	).Scan(&a.ID, &a.CreatedAt, &a.UpdatedAt)
	switch {
	case isUniqueViolation(err, "admins_username_key"):
		return ErrDuplicateUsername
	case isUniqueViolation(err, "admins_email_key"):
		return ErrDuplicateEmail
	case isUniqueViolation(err, ""):
		return ErrDuplicateUsername
	}
	return err
}

// TouchLastLogin stamps the last successful login.
func (r *AdminRepository) TouchLastLogin(ctx context.Context, id int64) error {
	_, err := r.pool.Exec(ctx, `UPDATE admins SET last_login = NOW(), updated_at = NOW() WHERE id = $1`, id)
	return err
}
