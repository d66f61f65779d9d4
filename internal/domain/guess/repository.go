package guess

import "context"

// Repository exposes guess reads and user-side writes. Points are written
// only through the aggregation unit of work.
type Repository interface {
	Get(ctx context.Context, userID, matchID string) (Guess, bool, error)
	Upsert(ctx context.Context, item Guess) error
	ListByMatch(ctx context.Context, matchID string) ([]Guess, error)
	ListByUser(ctx context.Context, userID string) ([]Guess, error)
}
