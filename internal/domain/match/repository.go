package match

import "context"

type Repository interface {
	GetByID(ctx context.Context, matchID string) (Match, bool, error)
	List(ctx context.Context) ([]Match, error)
	// Upsert stores the match and returns the previous state, if one existed.
	Upsert(ctx context.Context, item Match) (Match, bool, error)
	// UpsertFixture writes teams and kickoff only. A stored score is kept as is,
	// and the stored match is returned.
	UpsertFixture(ctx context.Context, item Match) (Match, error)
}
