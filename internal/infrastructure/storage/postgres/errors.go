package postgres

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

const (
	pgUniqueViolation = "23505"
	pgCheckViolation  = "23514"
)

func pgCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

// IsUniqueViolation reports a duplicate key error.
func IsUniqueViolation(err error) bool { return pgCode(err) == pgUniqueViolation }

// IsCheckViolation reports a failed CHECK constraint, such as a negative balance.
func IsCheckViolation(err error) bool { return pgCode(err) == pgCheckViolation }
