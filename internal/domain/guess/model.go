package guess

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/palmeirasbolao-jpg/Bolao-Alviverde/internal/domain/scoring"
)

var ErrInvalidGuess = errors.New("invalid guess")

// Guess is one user's predicted score for one match. (UserID, MatchID) is unique.
type Guess struct {
	UserID    string
	MatchID   string
	Home      int
	Away      int
	Points    int
	ScoredAt  *time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (g Guess) Prediction() scoring.ScorePair {
	return scoring.ScorePair{Home: g.Home, Away: g.Away}
}

func (g Guess) Validate() error {
	if strings.TrimSpace(g.UserID) == "" {
		return fmt.Errorf("%w: user id is required", ErrInvalidGuess)
	}
	if strings.TrimSpace(g.MatchID) == "" {
		return fmt.Errorf("%w: match id is required", ErrInvalidGuess)
	}
	if err := g.Prediction().Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidGuess, err)
	}
	return nil
}

// Award is the points computed for one guess during aggregation.
type Award struct {
	UserID  string
	MatchID string
	Points  int
	Rule    scoring.Rule
}

// Scored is a guess that already received points, joined with its match kickoff.
type Scored struct {
	UserID    string
	MatchID   string
	Points    int
	KickoffAt time.Time
}
