package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/palmeirasbolao-jpg/Bolao-Alviverde/internal/domain/ranking"
)

type UserService struct {
	rankingRepo ranking.Repository
	invalidator RankingInvalidator
	now         func() time.Time
}

func NewUserService(rankingRepo ranking.Repository, invalidator RankingInvalidator) *UserService {
	return &UserService{
		rankingRepo: rankingRepo,
		invalidator: invalidator,
		now:         time.Now,
	}
}

// Register creates the user's zero aggregate. Registering twice returns the existing record.
func (s *UserService) Register(ctx context.Context, userID, displayName string) (ranking.UserScore, bool, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.UserService.Register")
	defer span.End()

	userID = strings.TrimSpace(userID)
	displayName = strings.TrimSpace(displayName)
	if userID == "" {
		return ranking.UserScore{}, false, fmt.Errorf("%w: user id is required", ErrInvalidInput)
	}
	if displayName == "" {
		displayName = userID
	}

	item := ranking.NewUserScore(userID, displayName, s.now().UTC())
	created, err := s.rankingRepo.Create(ctx, item)
	if err != nil {
		return ranking.UserScore{}, false, fmt.Errorf("create user score user=%s: %w", userID, err)
	}
	if !created {
		existing, _, err := s.rankingRepo.Get(ctx, userID)
		if err != nil {
			return ranking.UserScore{}, false, fmt.Errorf("get user score user=%s: %w", userID, err)
		}
		return existing, false, nil
	}

	if s.invalidator != nil {
		s.invalidator.Invalidate(ctx)
	}
	return item, true, nil
}
