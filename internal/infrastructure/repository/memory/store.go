package memory

import (
	"sync"

	"github.com/palmeirasbolao-jpg/Bolao-Alviverde/internal/domain/guess"
	"github.com/palmeirasbolao-jpg/Bolao-Alviverde/internal/domain/jobscheduler"
	"github.com/palmeirasbolao-jpg/Bolao-Alviverde/internal/domain/match"
	"github.com/palmeirasbolao-jpg/Bolao-Alviverde/internal/domain/ranking"
)

// Store keeps every table behind one lock so an aggregation batch can read
// and write guesses and aggregates atomically.
type Store struct {
	mu          sync.RWMutex
	matches     map[string]match.Match
	guesses     map[string]guess.Guess
	userMatches map[string]map[string]struct{}
	scores      map[string]ranking.UserScore
	dispatches  map[string]jobscheduler.DispatchEvent
}

func NewStore() *Store {
	return &Store{
		matches:     make(map[string]match.Match),
		guesses:     make(map[string]guess.Guess),
		userMatches: make(map[string]map[string]struct{}),
		scores:      make(map[string]ranking.UserScore),
		dispatches:  make(map[string]jobscheduler.DispatchEvent),
	}
}

func guessKey(userID, matchID string) string {
	return userID + "::" + matchID
}

// putGuess must be called with the write lock held.
func (s *Store) putGuess(item guess.Guess) {
	s.guesses[guessKey(item.UserID, item.MatchID)] = cloneGuess(item)
	byUser, ok := s.userMatches[item.UserID]
	if !ok {
		byUser = make(map[string]struct{})
		s.userMatches[item.UserID] = byUser
	}
	byUser[item.MatchID] = struct{}{}
}

func cloneGuess(g guess.Guess) guess.Guess {
	copied := g
	if g.ScoredAt != nil {
		v := *g.ScoredAt
		copied.ScoredAt = &v
	}
	return copied
}
