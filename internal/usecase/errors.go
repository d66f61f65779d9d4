package usecase

import "errors"

// Request-level errors. The HTTP layer maps each to a status code.
var (
	ErrInvalidInput          = errors.New("invalid input")
	ErrNotFound              = errors.New("resource not found")
	ErrUnauthorized          = errors.New("unauthorized")
	ErrDependencyUnavailable = errors.New("dependency unavailable")
	ErrGuessLocked           = errors.New("guess window closed")
)

// Aggregation failures. Only ErrBatchCommitFailure aborts a run; the other
// two are collected per item in the AggregationReport.
var (
	ErrInvalidGuessInput          = errors.New("invalid guess input")
	ErrAggregateRecordUnavailable = errors.New("aggregate record unavailable")
	ErrBatchCommitFailure         = errors.New("batch commit failure")
)

// isClientError is true for rejections caused by the request itself.
func isClientError(err error) bool {
	for _, target := range []error{ErrInvalidInput, ErrNotFound, ErrUnauthorized, ErrGuessLocked} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
