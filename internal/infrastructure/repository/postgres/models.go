package postgres

import (
	"time"

	"github.com/palmeirasbolao-jpg/Bolao-Alviverde/internal/domain/guess"
	"github.com/palmeirasbolao-jpg/Bolao-Alviverde/internal/domain/match"
	"github.com/palmeirasbolao-jpg/Bolao-Alviverde/internal/domain/ranking"
)

type matchTableModel struct {
	ID        string    `db:"id"`
	HomeTeam  string    `db:"home_team"`
	AwayTeam  string    `db:"away_team"`
	KickoffAt time.Time `db:"kickoff_at"`
	HomeScore *int      `db:"home_score"`
	AwayScore *int      `db:"away_score"`
	UpdatedAt time.Time `db:"updated_at"`
}

func matchToRow(item match.Match) matchTableModel {
	return matchTableModel{
		ID:        item.ID,
		HomeTeam:  item.HomeTeam,
		AwayTeam:  item.AwayTeam,
		KickoffAt: item.KickoffAt.UTC(),
		HomeScore: item.HomeScore,
		AwayScore: item.AwayScore,
		UpdatedAt: item.UpdatedAt.UTC(),
	}
}

func (row matchTableModel) toDomain() match.Match {
	return match.Match{
		ID:        row.ID,
		HomeTeam:  row.HomeTeam,
		AwayTeam:  row.AwayTeam,
		KickoffAt: row.KickoffAt.UTC(),
		HomeScore: row.HomeScore,
		AwayScore: row.AwayScore,
		UpdatedAt: row.UpdatedAt.UTC(),
	}
}

type guessTableModel struct {
	UserID    string     `db:"user_id"`
	MatchID   string     `db:"match_id"`
	Home      int        `db:"home"`
	Away      int        `db:"away"`
	Points    int        `db:"points"`
	ScoredAt  *time.Time `db:"scored_at"`
	CreatedAt time.Time  `db:"created_at"`
	UpdatedAt time.Time  `db:"updated_at"`
}

func guessToRow(item guess.Guess) guessTableModel {
	return guessTableModel{
		UserID:    item.UserID,
		MatchID:   item.MatchID,
		Home:      item.Home,
		Away:      item.Away,
		Points:    item.Points,
		ScoredAt:  item.ScoredAt,
		CreatedAt: item.CreatedAt.UTC(),
		UpdatedAt: item.UpdatedAt.UTC(),
	}
}

func (row guessTableModel) toDomain() guess.Guess {
	return guess.Guess{
		UserID:    row.UserID,
		MatchID:   row.MatchID,
		Home:      row.Home,
		Away:      row.Away,
		Points:    row.Points,
		ScoredAt:  row.ScoredAt,
		CreatedAt: row.CreatedAt.UTC(),
		UpdatedAt: row.UpdatedAt.UTC(),
	}
}

type scoredGuessRow struct {
	UserID    string    `db:"user_id"`
	MatchID   string    `db:"match_id"`
	Points    int       `db:"points"`
	KickoffAt time.Time `db:"kickoff_at"`
}

type userScoreTableModel struct {
	UserID           string    `db:"user_id"`
	DisplayName      string    `db:"display_name"`
	TotalScore       int       `db:"total_score"`
	MonthlyScore     int       `db:"monthly_score"`
	RoundScore       int       `db:"round_score"`
	LastAppliedMonth string    `db:"last_applied_month"`
	LastAppliedRound string    `db:"last_applied_round"`
	Version          int64     `db:"version"`
	CreatedAt        time.Time `db:"created_at"`
	UpdatedAt        time.Time `db:"updated_at"`
}

func userScoreToRow(item ranking.UserScore) userScoreTableModel {
	return userScoreTableModel{
		UserID:           item.UserID,
		DisplayName:      item.DisplayName,
		TotalScore:       item.TotalScore,
		MonthlyScore:     item.MonthlyScore,
		RoundScore:       item.RoundScore,
		LastAppliedMonth: item.LastAppliedMonth,
		LastAppliedRound: item.LastAppliedRound,
		Version:          item.Version,
		CreatedAt:        item.CreatedAt.UTC(),
		UpdatedAt:        item.UpdatedAt.UTC(),
	}
}

func (row userScoreTableModel) toDomain() ranking.UserScore {
	return ranking.UserScore{
		UserID:           row.UserID,
		DisplayName:      row.DisplayName,
		TotalScore:       row.TotalScore,
		MonthlyScore:     row.MonthlyScore,
		RoundScore:       row.RoundScore,
		LastAppliedMonth: row.LastAppliedMonth,
		LastAppliedRound: row.LastAppliedRound,
		Version:          row.Version,
		CreatedAt:        row.CreatedAt.UTC(),
		UpdatedAt:        row.UpdatedAt.UTC(),
	}
}

type jobDispatchTableModel struct {
	DispatchID  string     `db:"dispatch_id"`
	JobName     string     `db:"job_name"`
	JobPath     string     `db:"job_path"`
	MatchID     string     `db:"match_id"`
	Payload     string     `db:"payload"`
	Status      string     `db:"status"`
	SentAt      *time.Time `db:"sent_at"`
	CompletedAt *time.Time `db:"completed_at"`
	FailedAt    *time.Time `db:"failed_at"`
	LastError   *string    `db:"last_error"`
	TraceID     *string    `db:"last_trace_id"`
	SpanID      *string    `db:"last_span_id"`
	UpdatedAt   time.Time  `db:"updated_at"`
}
