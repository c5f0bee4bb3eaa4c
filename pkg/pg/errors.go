package pg

import (
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	ErrInvalidConfig     = errors.New("pg: invalid connection config")
	ErrConnect           = errors.New("pg: database unreachable")
	ErrUnavailable       = errors.New("pg: database not answering")
	ErrMigrate           = errors.New("pg: migration failed")
	ErrMigrationsMissing = errors.New("pg: migrations not found")
)

// SQLSTATE codes the service branches on.
const (
	codeUniqueViolation = "23505"
)

// IsNotFoundError reports whether err wraps pgx.ErrNoRows.
func IsNotFoundError(err error) bool {
	return err != nil && errors.Is(err, pgx.ErrNoRows)
}

// IsDuplicateKeyError reports a unique constraint violation.
func IsDuplicateKeyError(err error) bool {
	pgErr, ok := asPgError(err)
	return ok && pgErr.Code == codeUniqueViolation
}

// ConstraintName returns the constraint a server error refers to, or "".
func ConstraintName(err error) string {
	if pgErr, ok := asPgError(err); ok {
		return pgErr.ConstraintName
	}
	return ""
}

func asPgError(err error) (*pgconn.PgError, bool) {
	if err == nil {
		return nil, false
	}
	var pgErr *pgconn.PgError
	ok := errors.As(err, &pgErr)
	return pgErr, ok
}
