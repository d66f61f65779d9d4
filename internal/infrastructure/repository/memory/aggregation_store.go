package memory

import (
	"context"
	"time"

	"github.com/palmeirasbolao-jpg/Bolao-Alviverde/internal/domain/guess"
	"github.com/palmeirasbolao-jpg/Bolao-Alviverde/internal/domain/ranking"
)

// AggregationStore runs aggregation batches one at a time under the store lock.
// Writes are staged and only copied into the store when the batch succeeds.
type AggregationStore struct {
	store *Store
}

func NewAggregationStore(store *Store) *AggregationStore {
	return &AggregationStore{store: store}
}

func (u *AggregationStore) RunAggregation(ctx context.Context, fn func(ctx context.Context, tx ranking.AggregationTx) error) error {
	u.store.mu.Lock()
	defer u.store.mu.Unlock()

	tx := &aggregationTx{
		store:   u.store,
		guesses: make(map[string]guess.Guess),
		scores:  make(map[string]ranking.UserScore),
	}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	for _, item := range tx.guesses {
		u.store.putGuess(item)
	}
	for userID, item := range tx.scores {
		u.store.scores[userID] = item
	}
	return nil
}

type aggregationTx struct {
	store   *Store
	guesses map[string]guess.Guess
	scores  map[string]ranking.UserScore
}

func (t *aggregationTx) SaveGuessPoints(_ context.Context, awards []guess.Award, scoredAt time.Time) error {
	for _, award := range awards {
		key := guessKey(award.UserID, award.MatchID)
		item, ok := t.guesses[key]
		if !ok {
			item, ok = t.store.guesses[key]
		}
		if !ok {
			continue
		}
		item = cloneGuess(item)
		item.Points = award.Points
		at := scoredAt
		item.ScoredAt = &at
		t.guesses[key] = item
	}
	return nil
}

func (t *aggregationTx) WithinUser(ctx context.Context, userID string, fn func(ctx context.Context) error) error {
	staged, hadStaged := t.scores[userID]
	if err := fn(ctx); err != nil {
		if hadStaged {
			t.scores[userID] = staged
		} else {
			delete(t.scores, userID)
		}
		return err
	}
	return nil
}

func (t *aggregationTx) LockUserScore(_ context.Context, userID string) (ranking.UserScore, bool, error) {
	if item, ok := t.scores[userID]; ok {
		return item, true, nil
	}
	item, ok := t.store.scores[userID]
	return item, ok, nil
}

func (t *aggregationTx) CreateUserScore(_ context.Context, item ranking.UserScore) error {
	item.Version = 1
	t.scores[item.UserID] = item
	return nil
}

func (t *aggregationTx) SaveUserScore(ctx context.Context, item ranking.UserScore) error {
	current, _, err := t.LockUserScore(ctx, item.UserID)
	if err != nil {
		return err
	}
	item.Version = current.Version + 1
	t.scores[item.UserID] = item
	return nil
}

func (t *aggregationTx) ListScoredGuesses(_ context.Context, userID string) ([]guess.Scored, error) {
	matchIDs := t.store.userMatches[userID]
	out := make([]guess.Scored, 0, len(matchIDs))
	for matchID := range matchIDs {
		key := guessKey(userID, matchID)
		item, ok := t.guesses[key]
		if !ok {
			item = t.store.guesses[key]
		}
		if item.ScoredAt == nil {
			continue
		}
		out = append(out, guess.Scored{
			UserID:    userID,
			MatchID:   matchID,
			Points:    item.Points,
			KickoffAt: t.store.matches[matchID].KickoffAt,
		})
	}
	return out, nil
}
