package postgres

import (
	"context"
	"fmt"
	"strings"

	crerr "github.com/cockroachdb/errors"
	"github.com/jmoiron/sqlx"
	"github.com/palmeirasbolao-jpg/Bolao-Alviverde/internal/domain/match"
	qb "github.com/palmeirasbolao-jpg/Bolao-Alviverde/internal/platform/querybuilder"
)

var matchColumns = qb.Columns(matchTableModel{})

type MatchRepository struct {
	db *sqlx.DB
}

func NewMatchRepository(db *sqlx.DB) *MatchRepository {
	return &MatchRepository{db: db}
}

func (r *MatchRepository) GetByID(ctx context.Context, matchID string) (match.Match, bool, error) {
	return getMatch(ctx, r.db, matchID, false)
}

func (r *MatchRepository) List(ctx context.Context) ([]match.Match, error) {
	query, args, err := qb.Select(matchColumns...).
		From("matches").
		OrderBy("kickoff_at", "id").
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build list matches query: %w", err)
	}

	var rows []matchTableModel
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, crerr.Wrap(err, "list matches")
	}

	out := make([]match.Match, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toDomain())
	}
	return out, nil
}

// Upsert locks the existing row, writes the new state and returns the state it replaced.
func (r *MatchRepository) Upsert(ctx context.Context, item match.Match) (match.Match, bool, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return match.Match{}, false, crerr.Wrap(err, "begin upsert match tx")
	}
	defer func() {
		_ = tx.Rollback()
	}()

	previous, existed, err := getMatch(ctx, tx, item.ID, true)
	if err != nil {
		return match.Match{}, false, err
	}

	query, args, err := qb.InsertModel("matches", matchToRow(item), `ON CONFLICT (id) DO UPDATE SET
    home_team = EXCLUDED.home_team,
    away_team = EXCLUDED.away_team,
    kickoff_at = EXCLUDED.kickoff_at,
    home_score = EXCLUDED.home_score,
    away_score = EXCLUDED.away_score,
    updated_at = EXCLUDED.updated_at`)
	if err != nil {
		return match.Match{}, false, fmt.Errorf("build upsert match query: %w", err)
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return match.Match{}, false, crerr.Wrapf(err, "upsert match=%s", item.ID)
	}
	if err := tx.Commit(); err != nil {
		return match.Match{}, false, crerr.Wrapf(err, "commit upsert match=%s", item.ID)
	}
	return previous, existed, nil
}

// UpsertFixture never names the score columns in its update, so a result
// recorded concurrently survives.
func (r *MatchRepository) UpsertFixture(ctx context.Context, item match.Match) (match.Match, error) {
	row := matchToRow(item)
	row.HomeScore, row.AwayScore = nil, nil

	query, args, err := qb.InsertModel("matches", row, `ON CONFLICT (id) DO UPDATE SET
    home_team = EXCLUDED.home_team,
    away_team = EXCLUDED.away_team,
    kickoff_at = EXCLUDED.kickoff_at,
    updated_at = EXCLUDED.updated_at
RETURNING `+strings.Join(matchColumns, ", "))
	if err != nil {
		return match.Match{}, fmt.Errorf("build upsert fixture query: %w", err)
	}

	var stored matchTableModel
	if err := r.db.GetContext(ctx, &stored, query, args...); err != nil {
		return match.Match{}, crerr.Wrapf(err, "upsert fixture match=%s", item.ID)
	}
	return stored.toDomain(), nil
}

func getMatch(ctx context.Context, q sqlx.QueryerContext, matchID string, forUpdate bool) (match.Match, bool, error) {
	builder := qb.Select(matchColumns...).
		From("matches").
		Where(qb.Eq("id", matchID))
	if forUpdate {
		builder = builder.Suffix("FOR UPDATE")
	}
	query, args, err := builder.ToSQL()
	if err != nil {
		return match.Match{}, false, fmt.Errorf("build get match query: %w", err)
	}

	var row matchTableModel
	if err := sqlx.GetContext(ctx, q, &row, query, args...); err != nil {
		if isNotFound(err) {
			return match.Match{}, false, nil
		}
		return match.Match{}, false, crerr.Wrapf(err, "get match=%s", matchID)
	}
	return row.toDomain(), true, nil
}
