package usecase

import (
	"context"
	"fmt"
	"strings"

	"github.com/palmeirasbolao-jpg/Bolao-Alviverde/internal/domain/ranking"
	"github.com/palmeirasbolao-jpg/Bolao-Alviverde/internal/platform/cache"
	"github.com/sourcegraph/conc/pool"
	"go.opentelemetry.io/otel/attribute"
)

const rankingCachePrefix = "ranking:"

// Boards holds the three leaderboards, each for its most recent bucket.
type Boards struct {
	Overall []ranking.Entry `json:"overall"`
	Monthly []ranking.Entry `json:"monthly"`
	Round   []ranking.Entry `json:"round"`
}

type RankingService struct {
	rankingRepo ranking.Repository
	cache       *cache.Store
}

// NewRankingService builds the read side. A nil store disables caching.
func NewRankingService(rankingRepo ranking.Repository, store *cache.Store) *RankingService {
	return &RankingService{rankingRepo: rankingRepo, cache: store}
}

func (s *RankingService) Leaderboard(ctx context.Context, scope ranking.Scope, key string) ([]ranking.Entry, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.RankingService.Leaderboard", attribute.String("scope", string(scope)))
	defer span.End()

	key = strings.TrimSpace(key)
	if scope == ranking.ScopeOverall {
		key = ""
	}

	cacheKey := rankingCachePrefix + string(scope) + ":" + key
	items, err := cache.Load(ctx, s.cache, cacheKey, func(ctx context.Context) ([]ranking.Entry, error) {
		return s.loadLeaderboard(ctx, scope, key)
	})
	if err != nil {
		return nil, err
	}
	return append([]ranking.Entry(nil), items...), nil
}

func (s *RankingService) loadLeaderboard(ctx context.Context, scope ranking.Scope, key string) ([]ranking.Entry, error) {
	items, err := s.rankingRepo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list user scores: %w", err)
	}
	if key == "" && scope != ranking.ScopeOverall {
		key = latestKey(items, scope)
	}
	return ranking.BuildLeaderboard(items, scope, key), nil
}

// Boards loads the overall, current-month and current-round boards concurrently.
func (s *RankingService) Boards(ctx context.Context) (Boards, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.RankingService.Boards")
	defer span.End()

	var out Boards
	p := pool.New().WithContext(ctx)
	p.Go(func(ctx context.Context) error {
		items, err := s.Leaderboard(ctx, ranking.ScopeOverall, "")
		out.Overall = items
		return err
	})
	p.Go(func(ctx context.Context) error {
		items, err := s.Leaderboard(ctx, ranking.ScopeMonthly, "")
		out.Monthly = items
		return err
	})
	p.Go(func(ctx context.Context) error {
		items, err := s.Leaderboard(ctx, ranking.ScopeRound, "")
		out.Round = items
		return err
	})
	if err := p.Wait(); err != nil {
		return Boards{}, err
	}
	return out, nil
}

func (s *RankingService) UserScore(ctx context.Context, userID string) (ranking.UserScore, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.RankingService.UserScore")
	defer span.End()

	userID = strings.TrimSpace(userID)
	if userID == "" {
		return ranking.UserScore{}, fmt.Errorf("%w: user id is required", ErrInvalidInput)
	}
	item, exists, err := s.rankingRepo.Get(ctx, userID)
	if err != nil {
		return ranking.UserScore{}, fmt.Errorf("get user score user=%s: %w", userID, err)
	}
	if !exists {
		return ranking.UserScore{}, fmt.Errorf("%w: user=%s", ErrNotFound, userID)
	}
	return item, nil
}

func (s *RankingService) Invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	s.cache.DeletePrefix(ctx, rankingCachePrefix)
}

// latestKey picks the newest bucket seen across users. Month keys sort
// lexically; round keys are ordered by the users' last update time.
func latestKey(items []ranking.UserScore, scope ranking.Scope) string {
	var (
		best     string
		bestItem ranking.UserScore
	)
	for _, item := range items {
		key := scope.Key(item)
		if key == "" {
			continue
		}
		switch scope {
		case ranking.ScopeMonthly:
			if key > best {
				best = key
			}
		default:
			if best == "" || item.UpdatedAt.After(bestItem.UpdatedAt) {
				best = key
				bestItem = item
			}
		}
	}
	return best
}
