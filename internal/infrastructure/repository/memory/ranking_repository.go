package memory

import (
	"context"
	"sort"

	"github.com/palmeirasbolao-jpg/Bolao-Alviverde/internal/domain/ranking"
)

type RankingRepository struct {
	store *Store
}

func NewRankingRepository(store *Store) *RankingRepository {
	return &RankingRepository{store: store}
}

func (r *RankingRepository) Get(_ context.Context, userID string) (ranking.UserScore, bool, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	item, ok := r.store.scores[userID]
	return item, ok, nil
}

func (r *RankingRepository) List(_ context.Context) ([]ranking.UserScore, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	out := make([]ranking.UserScore, 0, len(r.store.scores))
	for _, item := range r.store.scores {
		out = append(out, item)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out, nil
}

func (r *RankingRepository) Create(_ context.Context, item ranking.UserScore) (bool, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	if _, exists := r.store.scores[item.UserID]; exists {
		return false, nil
	}
	item.Version = 1
	r.store.scores[item.UserID] = item
	return true, nil
}
