package metrics

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

const (
	LedgerReasonDeadlineExceeded     = "deadline_exceeded"
	LedgerReasonDBLockTimeout        = "db_lock_timeout"
	LedgerReasonSerializationFailure = "serialization_failure"
	LedgerReasonUniqueViolation      = "unique_violation"
	LedgerReasonConnection           = "connection"
	LedgerReasonUnknown              = "unknown"
)

// ClassifyLedgerReason maps ledger errors to low-cardinality reasons.
func ClassifyLedgerReason(err error) string {
	switch {
	case err == nil:
		return LedgerReasonUnknown
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return LedgerReasonDeadlineExceeded
	case hasPGCode(err, "55P03"):
		return LedgerReasonDBLockTimeout
	case hasPGCode(err, "40001"):
		return LedgerReasonSerializationFailure
	case errors.Is(err, gorm.ErrDuplicatedKey), hasPGCode(err, "23505"):
		return LedgerReasonUniqueViolation
	case isConnectionError(err):
		return LedgerReasonConnection
	default:
		return LedgerReasonUnknown
	}
}

func hasPGCode(err error, code string) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == code
	}
	return false
}

func isConnectionError(err error) bool {
	var connErr *pgconn.ConnectError
	if errors.As(err, &connErr) {
		return true
	}
	return errors.Is(err, gorm.ErrInvalidDB)
}
