package postgres

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	crerr "github.com/cockroachdb/errors"
	"github.com/lib/pq"
	"github.com/palmeirasbolao-jpg/Bolao-Alviverde/internal/domain/ranking"
)

// SQLSTATE codes that mean "retry the whole transaction".
const (
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
	codeLockNotAvailable     = "55P03"
)

func isNotFound(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

func isWriteConflict(err error) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return false
	}
	switch string(pqErr.Code) {
	case codeSerializationFailure, codeDeadlockDetected, codeLockNotAvailable:
		return true
	default:
		return false
	}
}

// classify wraps err with context and marks retryable conflicts with ranking.ErrWriteConflict.
func classify(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	wrapped := crerr.Wrapf(err, format, args...)
	if isWriteConflict(err) {
		return fmt.Errorf("%w: %w", ranking.ErrWriteConflict, wrapped)
	}
	return wrapped
}

func textOrNil(value string) *string {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	return &value
}

func derefText(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}
