package repos

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
)

// isRetryablePG classifies a Postgres error code as transient (serialization
// failure, deadlock, lock timeout) as opposed to a genuine constraint
// violation or a fatal connectivity failure, following the teacher's
// errors.go MapError's pgconn.PgError.Code switch.
func isRetryablePG(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	switch strings.TrimSpace(pgErr.Code) {
	case "40001", "40P01", "55P03": // serialization_failure, deadlock_detected, lock_not_available
		return true
	default:
		return false
	}
}

// isConflictPG reports whether err is a unique/foreign-key constraint
// violation, as opposed to a transient or fatal failure.
func isConflictPG(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	switch strings.TrimSpace(pgErr.Code) {
	case "23505", "23503": // unique_violation, foreign_key_violation
		return true
	default:
		return false
	}
}
