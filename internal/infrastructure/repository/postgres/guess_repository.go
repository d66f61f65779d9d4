package postgres

import (
	"context"
	"fmt"

	crerr "github.com/cockroachdb/errors"
	"github.com/jmoiron/sqlx"
	"github.com/palmeirasbolao-jpg/Bolao-Alviverde/internal/domain/guess"
	qb "github.com/palmeirasbolao-jpg/Bolao-Alviverde/internal/platform/querybuilder"
)

var guessColumns = qb.Columns(guessTableModel{})

type GuessRepository struct {
	db *sqlx.DB
}

func NewGuessRepository(db *sqlx.DB) *GuessRepository {
	return &GuessRepository{db: db}
}

func (r *GuessRepository) Get(ctx context.Context, userID, matchID string) (guess.Guess, bool, error) {
	query, args, err := qb.Select(guessColumns...).
		From("guesses").
		Where(qb.Eq("user_id", userID), qb.Eq("match_id", matchID)).
		ToSQL()
	if err != nil {
		return guess.Guess{}, false, fmt.Errorf("build get guess query: %w", err)
	}

	var row guessTableModel
	if err := r.db.GetContext(ctx, &row, query, args...); err != nil {
		if isNotFound(err) {
			return guess.Guess{}, false, nil
		}
		return guess.Guess{}, false, crerr.Wrapf(err, "get guess user=%s match=%s", userID, matchID)
	}
	return row.toDomain(), true, nil
}

// Upsert writes the prediction only; points and scored_at belong to aggregation.
func (r *GuessRepository) Upsert(ctx context.Context, item guess.Guess) error {
	query, args, err := qb.InsertModel("guesses", guessToRow(item), `ON CONFLICT (user_id, match_id) DO UPDATE SET
    home = EXCLUDED.home,
    away = EXCLUDED.away,
    updated_at = EXCLUDED.updated_at`)
	if err != nil {
		return fmt.Errorf("build upsert guess query: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return crerr.Wrapf(err, "upsert guess user=%s match=%s", item.UserID, item.MatchID)
	}
	return nil
}

func (r *GuessRepository) ListByMatch(ctx context.Context, matchID string) ([]guess.Guess, error) {
	return r.list(ctx, qb.Eq("match_id", matchID), "user_id")
}

func (r *GuessRepository) ListByUser(ctx context.Context, userID string) ([]guess.Guess, error) {
	return r.list(ctx, qb.Eq("user_id", userID), "match_id")
}

func (r *GuessRepository) list(ctx context.Context, cond qb.Condition, orderBy string) ([]guess.Guess, error) {
	query, args, err := qb.Select(guessColumns...).
		From("guesses").
		Where(cond).
		OrderBy(orderBy).
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build list guesses query: %w", err)
	}

	var rows []guessTableModel
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, crerr.Wrap(err, "list guesses")
	}

	out := make([]guess.Guess, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toDomain())
	}
	return out, nil
}
