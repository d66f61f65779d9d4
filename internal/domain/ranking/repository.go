package ranking

import (
	"context"
	"errors"
	"time"

	"github.com/palmeirasbolao-jpg/Bolao-Alviverde/internal/domain/guess"
)

// ErrWriteConflict marks a transaction that lost a concurrent write race and may be retried.
var ErrWriteConflict = errors.New("aggregate write conflict")

type Repository interface {
	Get(ctx context.Context, userID string) (UserScore, bool, error)
	List(ctx context.Context) ([]UserScore, error)
	// Create stores a zero-initialized aggregate; it reports false when one already exists.
	Create(ctx context.Context, item UserScore) (bool, error)
}

// AggregationTx is the write surface of one atomic aggregation batch.
type AggregationTx interface {
	SaveGuessPoints(ctx context.Context, awards []guess.Award, scoredAt time.Time) error
	// WithinUser isolates fn so that a failure discards only the writes fn made.
	WithinUser(ctx context.Context, userID string, fn func(ctx context.Context) error) error
	// LockUserScore reads the aggregate and holds it until the batch ends.
	LockUserScore(ctx context.Context, userID string) (UserScore, bool, error)
	CreateUserScore(ctx context.Context, item UserScore) error
	SaveUserScore(ctx context.Context, item UserScore) error
	ListScoredGuesses(ctx context.Context, userID string) ([]guess.Scored, error)
}

// UnitOfWork commits everything fn wrote, or nothing when fn or the commit fails.
type UnitOfWork interface {
	RunAggregation(ctx context.Context, fn func(ctx context.Context, tx AggregationTx) error) error
}
