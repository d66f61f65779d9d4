package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/palmeirasbolao-jpg/Bolao-Alviverde/internal/domain/guess"
	"github.com/palmeirasbolao-jpg/Bolao-Alviverde/internal/domain/match"
	"go.opentelemetry.io/otel/attribute"
)

type SubmitGuessInput struct {
	UserID  string
	MatchID string
	Home    int
	Away    int
}

type GuessService struct {
	guessRepo  guess.Repository
	matchRepo  match.Repository
	lockWindow time.Duration
	now        func() time.Time
}

func NewGuessService(guessRepo guess.Repository, matchRepo match.Repository, lockWindow time.Duration) *GuessService {
	if lockWindow < 0 {
		lockWindow = 0
	}
	return &GuessService{
		guessRepo:  guessRepo,
		matchRepo:  matchRepo,
		lockWindow: lockWindow,
		now:        time.Now,
	}
}

// Submit creates or replaces the user's guess while the match is still open.
// Points already awarded are kept; only aggregation changes them.
func (s *GuessService) Submit(ctx context.Context, input SubmitGuessInput) (guess.Guess, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.GuessService.Submit", attribute.String("match_id", input.MatchID))
	defer span.End()

	item := guess.Guess{
		UserID:  strings.TrimSpace(input.UserID),
		MatchID: strings.TrimSpace(input.MatchID),
		Home:    input.Home,
		Away:    input.Away,
	}
	if err := item.Validate(); err != nil {
		return guess.Guess{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	target, exists, err := s.matchRepo.GetByID(ctx, item.MatchID)
	if err != nil {
		return guess.Guess{}, fmt.Errorf("get match=%s: %w", item.MatchID, err)
	}
	if !exists {
		return guess.Guess{}, fmt.Errorf("%w: match=%s", ErrNotFound, item.MatchID)
	}

	now := s.now().UTC()
	if target.IsFinalized() {
		return guess.Guess{}, fmt.Errorf("%w: match=%s already has a result", ErrGuessLocked, item.MatchID)
	}
	if lockAt := target.LocksAt(s.lockWindow); !now.Before(lockAt) {
		return guess.Guess{}, fmt.Errorf("%w: match=%s locked at %s", ErrGuessLocked, item.MatchID, lockAt.Format(time.RFC3339))
	}

	existing, found, err := s.guessRepo.Get(ctx, item.UserID, item.MatchID)
	if err != nil {
		return guess.Guess{}, fmt.Errorf("get guess user=%s match=%s: %w", item.UserID, item.MatchID, err)
	}
	item.CreatedAt = now
	if found {
		item.CreatedAt = existing.CreatedAt
		item.Points = existing.Points
		item.ScoredAt = existing.ScoredAt
	}
	item.UpdatedAt = now

	if err := s.guessRepo.Upsert(ctx, item); err != nil {
		return guess.Guess{}, fmt.Errorf("upsert guess user=%s match=%s: %w", item.UserID, item.MatchID, err)
	}
	return item, nil
}

func (s *GuessService) ListByUser(ctx context.Context, userID string) ([]guess.Guess, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.GuessService.ListByUser")
	defer span.End()

	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, fmt.Errorf("%w: user id is required", ErrInvalidInput)
	}
	items, err := s.guessRepo.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list guesses user=%s: %w", userID, err)
	}
	return items, nil
}
