package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/ump-quiz/quiz-backend/internal/model"
)

const tokenColumns = `t.id, t.token_code, t.token_name, t.usage_count, t.max_usage, t.expires_at, t.is_active,
	t.created_by, a.full_name, t.created_at, t.updated_at`

// TokenRepository handles access token data access.
type TokenRepository struct {
	pool *pgxpool.Pool
}

// NewTokenRepository creates a new TokenRepository.
func NewTokenRepository(pool *pgxpool.Pool) *TokenRepository {
	return &TokenRepository{pool: pool}
}

func scanToken(row interface{ Scan(dest ...any) error }) (*model.Token, error) {
	t := &model.Token{}
	err := row.Scan(&t.ID, &t.TokenCode, &t.TokenName, &t.UsageCount, &t.MaxUsage, &t.ExpiresAt, &t.IsActive,
		&t.CreatedBy, &t.CreatedByName, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	return t, nil
}

// GetByCode retrieves a token regardless of its state.
func (r *TokenRepository) GetByCode(ctx context.Context, code string) (*model.Token, error) {
	return scanToken(r.pool.QueryRow(ctx,
		`SELECT `+tokenColumns+`
		 FROM tokens t LEFT JOIN admins a ON a.id = t.created_by
		 WHERE t.token_code = $1`, code))
}

// GetUsable retrieves a token only if it is active, under budget and unexpired.
func (r *TokenRepository) GetUsable(ctx context.Context, code string) (*model.Token, error) {
	return scanToken(r.pool.QueryRow(ctx,
		`SELECT `+tokenColumns+`
		 FROM tokens t LEFT JOIN admins a ON a.id = t.created_by
		 WHERE t.token_code = $1
		   AND t.is_active
		   AND t.usage_count < t.max_usage
		   AND (t.expires_at IS NULL OR t.expires_at > NOW())`, code))
}

// Use consumes one redemption. The usability check and the increment are a
// single statement, so concurrent callers can never push usage past max_usage.
// ErrNotFound means the token was not usable.
func (r *TokenRepository) Use(ctx context.Context, code string) (*model.Token, error) {
	return scanToken(r.pool.QueryRow(ctx,
		`WITH used AS (
			UPDATE tokens
			SET usage_count = usage_count + 1, updated_at = NOW()
			WHERE token_code = $1
			  AND is_active
			  AND usage_count < max_usage
			  AND (expires_at IS NULL OR expires_at > NOW())
			RETURNING *
		 )
		 SELECT `+tokenColumns+`
		 FROM used t LEFT JOIN admins a ON a.id = t.created_by`, code))
}

// Create inserts a new token.
func (r *TokenRepository) Create(ctx context.Context, t *model.Token) error {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO tokens (token_code, token_name, max_usage, expires_at, is_active, created_by)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id, usage_count, created_at, updated_at`,
		t.TokenCode, t.TokenName, t.MaxUsage, t.ExpiresAt, t.IsActive, t.CreatedBy,
	).Scan(&t.ID, &t.UsageCount, &t.CreatedAt, &t.UpdatedAt)
	if isUniqueViolation(err, "") {
		return ErrDuplicateTokenCode
	}
	return err
}

// List returns every token, newest first.
func (r *TokenRepository) List(ctx context.Context) ([]model.Token, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+tokenColumns+`
		 FROM tokens t LEFT JOIN admins a ON a.id = t.created_by
		 ORDER BY t.created_at DESC, t.id DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tokens := []model.Token{}
	for rows.Next() {
		t, err := scanToken(rows)
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, *t)
	}
	return tokens, rows.Err()
}

// Update writes the editable fields of a token.
func (r *TokenRepository) Update(ctx context.Context, t *model.Token) error {
	err := r.pool.QueryRow(ctx,
		`UPDATE tokens
		 SET token_name = $2, max_usage = $3, expires_at = $4, is_active = $5, updated_at = NOW()
		 WHERE token_code = $1
		 RETURNING updated_at`,
		t.TokenCode, t.TokenName, t.MaxUsage, t.ExpiresAt, t.IsActive,
	).Scan(&t.UpdatedAt)
	return notFound(err)
}

// Delete removes a token by code.
func (r *TokenRepository) Delete(ctx context.Context, code string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM tokens WHERE token_code = $1`, code)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
