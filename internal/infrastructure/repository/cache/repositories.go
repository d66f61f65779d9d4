package cache

import (
	"context"

	"github.com/palmeirasbolao-jpg/Bolao-Alviverde/internal/domain/match"
	basecache "github.com/palmeirasbolao-jpg/Bolao-Alviverde/internal/platform/cache"
)

const matchKeyPrefix = "match:"

// MatchRepository serves fixture reads from cache and drops every cached
// match entry on write, so a recorded result is visible on the next read.
type MatchRepository struct {
	next  match.Repository
	cache *basecache.Store
}

func NewMatchRepository(next match.Repository, cache *basecache.Store) *MatchRepository {
	return &MatchRepository{next: next, cache: cache}
}

func (r *MatchRepository) List(ctx context.Context) ([]match.Match, error) {
	v, err := r.cache.GetOrLoad(ctx, matchKeyPrefix+"list", func(ctx context.Context) (any, error) {
		items, err := r.next.List(ctx)
		if err != nil {
			return nil, err
		}
		return cloneMatches(items), nil
	})
	if err != nil {
		return nil, err
	}

	items, _ := v.([]match.Match)
	return cloneMatches(items), nil
}

func (r *MatchRepository) GetByID(ctx context.Context, matchID string) (match.Match, bool, error) {
	v, err := r.cache.GetOrLoad(ctx, matchKeyPrefix+"id:"+matchID, func(ctx context.Context) (any, error) {
		item, exists, err := r.next.GetByID(ctx, matchID)
		if err != nil {
			return nil, err
		}
		return cachedMatchByID{value: item.Clone(), exists: exists}, nil
	})
	if err != nil {
		return match.Match{}, false, err
	}

	cached, _ := v.(cachedMatchByID)
	return cached.value.Clone(), cached.exists, nil
}

func (r *MatchRepository) Upsert(ctx context.Context, item match.Match) (match.Match, bool, error) {
	before, existed, err := r.next.Upsert(ctx, item)
	r.cache.DeletePrefix(ctx, matchKeyPrefix)
	return before, existed, err
}

func (r *MatchRepository) UpsertFixture(ctx context.Context, item match.Match) (match.Match, error) {
	stored, err := r.next.UpsertFixture(ctx, item)
	r.cache.DeletePrefix(ctx, matchKeyPrefix)
	return stored, err
}

type cachedMatchByID struct {
	value  match.Match
	exists bool
}

// Score pointers would otherwise be shared between callers and the cache.
func cloneMatches(items []match.Match) []match.Match {
	out := make([]match.Match, len(items))
	for i, item := range items {
		out[i] = item.Clone()
	}
	return out
}
