package memory

import (
	"context"
	"sort"

	"github.com/palmeirasbolao-jpg/Bolao-Alviverde/internal/domain/match"
)

type MatchRepository struct {
	store *Store
}

func NewMatchRepository(store *Store) *MatchRepository {
	return &MatchRepository{store: store}
}

func (r *MatchRepository) GetByID(_ context.Context, matchID string) (match.Match, bool, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	item, ok := r.store.matches[matchID]
	if !ok {
		return match.Match{}, false, nil
	}
	return item.Clone(), true, nil
}

func (r *MatchRepository) List(_ context.Context) ([]match.Match, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	out := make([]match.Match, 0, len(r.store.matches))
	for _, item := range r.store.matches {
		out = append(out, item.Clone())
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].KickoffAt.Equal(out[j].KickoffAt) {
			return out[i].KickoffAt.Before(out[j].KickoffAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (r *MatchRepository) Upsert(_ context.Context, item match.Match) (match.Match, bool, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	previous, existed := r.store.matches[item.ID]
	r.store.matches[item.ID] = item.Clone()
	return previous, existed, nil
}

func (r *MatchRepository) UpsertFixture(_ context.Context, item match.Match) (match.Match, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	stored := item.Clone()
	stored.HomeScore, stored.AwayScore = nil, nil
	if previous, ok := r.store.matches[item.ID]; ok {
		kept := previous.Clone()
		stored.HomeScore, stored.AwayScore = kept.HomeScore, kept.AwayScore
	}
	r.store.matches[item.ID] = stored
	return stored.Clone(), nil
}
