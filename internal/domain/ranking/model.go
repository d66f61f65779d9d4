package ranking

import (
	"fmt"
	"strings"
	"time"
)

// UserScore is the per-user aggregate kept in sync with the user's guess points.
type UserScore struct {
	UserID           string
	DisplayName      string
	TotalScore       int
	MonthlyScore     int
	RoundScore       int
	LastAppliedMonth string
	LastAppliedRound string
	Version          int64
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

func NewUserScore(userID, displayName string, now time.Time) UserScore {
	return UserScore{
		UserID:      userID,
		DisplayName: displayName,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// Scope selects which total a leaderboard is ordered by.
type Scope string

const (
	ScopeOverall Scope = "overall"
	ScopeMonthly Scope = "monthly"
	ScopeRound   Scope = "round"
)

func ParseScope(v string) (Scope, error) {
	switch Scope(strings.ToLower(strings.TrimSpace(v))) {
	case "", ScopeOverall:
		return ScopeOverall, nil
	case ScopeMonthly:
		return ScopeMonthly, nil
	case ScopeRound:
		return ScopeRound, nil
	default:
		return "", fmt.Errorf("invalid ranking scope %q", v)
	}
}

func (s Scope) Points(item UserScore) int {
	switch s {
	case ScopeMonthly:
		return item.MonthlyScore
	case ScopeRound:
		return item.RoundScore
	default:
		return item.TotalScore
	}
}

// Key returns the bucket the user's scope total belongs to.
func (s Scope) Key(item UserScore) string {
	switch s {
	case ScopeMonthly:
		return item.LastAppliedMonth
	case ScopeRound:
		return item.LastAppliedRound
	default:
		return ""
	}
}

// Entry is one leaderboard row.
type Entry struct {
	Rank        int
	UserID      string
	DisplayName string
	Points      int
	Key         string
}
