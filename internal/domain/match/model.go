package match

import (
	"time"

	"github.com/palmeirasbolao-jpg/Bolao-Alviverde/internal/domain/scoring"
)

// Match represents one fixture of the pool. It is finalized once both scores are set.
type Match struct {
	ID        string
	HomeTeam  string
	AwayTeam  string
	KickoffAt time.Time
	HomeScore *int
	AwayScore *int
	UpdatedAt time.Time
}

func (m Match) IsFinalized() bool {
	return m.HomeScore != nil && m.AwayScore != nil
}

// Result returns the final score pair, if any.
func (m Match) Result() (scoring.ScorePair, bool) {
	if !m.IsFinalized() {
		return scoring.ScorePair{}, false
	}
	return scoring.ScorePair{Home: *m.HomeScore, Away: *m.AwayScore}, true
}

// LocksAt is the moment guesses stop being accepted.
func (m Match) LocksAt(window time.Duration) time.Time {
	return m.KickoffAt.Add(-window)
}

func (m Match) Clone() Match {
	out := m
	if m.HomeScore != nil {
		v := *m.HomeScore
		out.HomeScore = &v
	}
	if m.AwayScore != nil {
		v := *m.AwayScore
		out.AwayScore = &v
	}
	return out
}

// UpdateEvent carries the match state right before and right after one write.
// Before is the zero Match when the write created the record.
type UpdateEvent struct {
	EventID    string
	Before     Match
	After      Match
	OccurredAt time.Time
}
