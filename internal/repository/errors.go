package repository

import (
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	ErrNotFound              = errors.New("record not found")
	ErrDuplicateSessionToken = errors.New("session token is already bound to a session")
	ErrDuplicateSummary      = errors.New("result summary already exists for this session")
	ErrDuplicateTokenCode    = errors.New("token code already exists")
	ErrDuplicateUsername     = errors.New("admin with this username already exists")
	ErrDuplicateEmail        = errors.New("admin with this email already exists")
)

const uniqueViolation = "23505"

// isUniqueViolation reports whether err is a unique-constraint violation,
// optionally restricted to one constraint name.
func isUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != uniqueViolation {
		return false
	}
	return constraint == "" || pgErr.ConstraintName == constraint
}

// notFound translates pgx.ErrNoRows into ErrNotFound and passes anything else through.
func notFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}
