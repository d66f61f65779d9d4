package memory

import (
	"context"
	"sort"

	"github.com/palmeirasbolao-jpg/Bolao-Alviverde/internal/domain/guess"
)

type GuessRepository struct {
	store *Store
}

func NewGuessRepository(store *Store) *GuessRepository {
	return &GuessRepository{store: store}
}

func (r *GuessRepository) Get(_ context.Context, userID, matchID string) (guess.Guess, bool, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	item, ok := r.store.guesses[guessKey(userID, matchID)]
	if !ok {
		return guess.Guess{}, false, nil
	}
	return cloneGuess(item), true, nil
}

func (r *GuessRepository) Upsert(_ context.Context, item guess.Guess) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	r.store.putGuess(item)
	return nil
}

func (r *GuessRepository) ListByMatch(_ context.Context, matchID string) ([]guess.Guess, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	out := make([]guess.Guess, 0)
	for _, item := range r.store.guesses {
		if item.MatchID == matchID {
			out = append(out, cloneGuess(item))
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out, nil
}

func (r *GuessRepository) ListByUser(_ context.Context, userID string) ([]guess.Guess, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	matchIDs := r.store.userMatches[userID]
	out := make([]guess.Guess, 0, len(matchIDs))
	for matchID := range matchIDs {
		out = append(out, cloneGuess(r.store.guesses[guessKey(userID, matchID)]))
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].MatchID < out[j].MatchID })
	return out, nil
}
