package ranking

import (
	"sort"
	"time"

	"github.com/palmeirasbolao-jpg/Bolao-Alviverde/internal/domain/guess"
)

const roundKeyPrefix = "round-"

func MonthKey(at time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	return at.In(loc).Format("2006-01")
}

func RoundKey(matchID string) string {
	return roundKeyPrefix + matchID
}

// Recompute rebuilds the aggregate from every scored guess of the user.
// The current round is the latest scored match by kickoff (ties by match id)
// and the current month is that match's calendar month, so the result does
// not depend on the order matches were aggregated in.
func Recompute(base UserScore, scored []guess.Scored, loc *time.Location) UserScore {
	out := base
	out.TotalScore = 0
	out.MonthlyScore = 0
	out.RoundScore = 0
	out.LastAppliedMonth = ""
	out.LastAppliedRound = ""
	if len(scored) == 0 {
		return out
	}

	items := append([]guess.Scored(nil), scored...)
	sort.SliceStable(items, func(i, j int) bool {
		if !items[i].KickoffAt.Equal(items[j].KickoffAt) {
			return items[i].KickoffAt.Before(items[j].KickoffAt)
		}
		return items[i].MatchID < items[j].MatchID
	})

	latest := items[len(items)-1]
	out.LastAppliedRound = RoundKey(latest.MatchID)
	out.LastAppliedMonth = MonthKey(latest.KickoffAt, loc)

	for _, item := range items {
		out.TotalScore += item.Points
		if item.MatchID == latest.MatchID {
			out.RoundScore += item.Points
		}
		if MonthKey(item.KickoffAt, loc) == out.LastAppliedMonth {
			out.MonthlyScore += item.Points
		}
	}
	return out
}

// SameTotals reports whether two aggregates carry identical score fields.
func SameTotals(a, b UserScore) bool {
	return a.TotalScore == b.TotalScore &&
		a.MonthlyScore == b.MonthlyScore &&
		a.RoundScore == b.RoundScore &&
		a.LastAppliedMonth == b.LastAppliedMonth &&
		a.LastAppliedRound == b.LastAppliedRound
}

// BuildLeaderboard orders aggregates by the scope total and assigns dense ranks.
// A non-empty key keeps only users whose scope bucket equals it.
func BuildLeaderboard(items []UserScore, scope Scope, key string) []Entry {
	out := make([]Entry, 0, len(items))
	for _, item := range items {
		itemKey := scope.Key(item)
		if key != "" && itemKey != key {
			continue
		}
		out = append(out, Entry{
			UserID:      item.UserID,
			DisplayName: item.DisplayName,
			Points:      scope.Points(item),
			Key:         itemKey,
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Points != out[j].Points {
			return out[i].Points > out[j].Points
		}
		return out[i].UserID < out[j].UserID
	})

	lastPoints := 0
	rank := 0
	for idx := range out {
		if idx == 0 || out[idx].Points != lastPoints {
			rank++
			lastPoints = out[idx].Points
		}
		out[idx].Rank = rank
	}
	return out
}
