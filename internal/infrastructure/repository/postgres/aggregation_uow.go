package postgres

import (
	"context"
	"fmt"
	"time"

	crerr "github.com/cockroachdb/errors"
	"github.com/jmoiron/sqlx"
	"github.com/palmeirasbolao-jpg/Bolao-Alviverde/internal/domain/guess"
	"github.com/palmeirasbolao-jpg/Bolao-Alviverde/internal/domain/ranking"
	qb "github.com/palmeirasbolao-jpg/Bolao-Alviverde/internal/platform/querybuilder"
)

const userSavepoint = "user_score"

// AggregationUnitOfWork runs one aggregation batch inside a single transaction.
type AggregationUnitOfWork struct {
	db *sqlx.DB
}

func NewAggregationUnitOfWork(db *sqlx.DB) *AggregationUnitOfWork {
	return &AggregationUnitOfWork{db: db}
}

func (u *AggregationUnitOfWork) RunAggregation(ctx context.Context, fn func(ctx context.Context, tx ranking.AggregationTx) error) error {
	sqlTx, err := u.db.BeginTxx(ctx, nil)
	if err != nil {
		return classify(err, "begin aggregation tx")
	}
	defer func() {
		_ = sqlTx.Rollback()
	}()

	if err := fn(ctx, &aggregationTx{tx: sqlTx}); err != nil {
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return classify(err, "commit aggregation tx")
	}
	return nil
}

type aggregationTx struct {
	tx *sqlx.Tx
}

func (t *aggregationTx) SaveGuessPoints(ctx context.Context, awards []guess.Award, scoredAt time.Time) error {
	scoredAt = scoredAt.UTC()
	for _, award := range awards {
		query, args, err := qb.Update("guesses").
			Set("points", award.Points).
			Set("scored_at", scoredAt).
			Where(qb.Eq("user_id", award.UserID), qb.Eq("match_id", award.MatchID)).
			ToSQL()
		if err != nil {
			return fmt.Errorf("build save guess points query: %w", err)
		}
		if _, err := t.tx.ExecContext(ctx, query, args...); err != nil {
			return classify(err, "save guess points user=%s match=%s", award.UserID, award.MatchID)
		}
	}
	return nil
}

// WithinUser wraps fn in a savepoint. Postgres aborts the whole transaction on
// any statement error, so rolling back to the savepoint is what lets the batch
// continue with the next user.
func (t *aggregationTx) WithinUser(ctx context.Context, userID string, fn func(ctx context.Context) error) error {
	if _, err := t.tx.ExecContext(ctx, "SAVEPOINT "+userSavepoint); err != nil {
		return classify(err, "savepoint user=%s", userID)
	}

	if err := fn(ctx); err != nil {
		if _, rbErr := t.tx.ExecContext(ctx, "ROLLBACK TO SAVEPOINT "+userSavepoint); rbErr != nil {
			return crerr.WithSecondaryError(classify(rbErr, "rollback savepoint user=%s", userID), err)
		}
		return err
	}

	if _, err := t.tx.ExecContext(ctx, "RELEASE SAVEPOINT "+userSavepoint); err != nil {
		return classify(err, "release savepoint user=%s", userID)
	}
	return nil
}

func (t *aggregationTx) LockUserScore(ctx context.Context, userID string) (ranking.UserScore, bool, error) {
	return getUserScore(ctx, t.tx, userID, true)
}

func (t *aggregationTx) CreateUserScore(ctx context.Context, item ranking.UserScore) error {
	created, err := createUserScore(ctx, t.tx, item)
	if err != nil {
		return err
	}
	if !created {
		// Another batch inserted the row after our lock read found nothing.
		return fmt.Errorf("%w: user score user=%s created concurrently", ranking.ErrWriteConflict, item.UserID)
	}
	return nil
}

// SaveUserScore writes the aggregate only if nobody bumped its version since it was read.
func (t *aggregationTx) SaveUserScore(ctx context.Context, item ranking.UserScore) error {
	query, args, err := qb.Update("user_scores").
		Set("total_score", item.TotalScore).
		Set("monthly_score", item.MonthlyScore).
		Set("round_score", item.RoundScore).
		Set("last_applied_month", item.LastAppliedMonth).
		Set("last_applied_round", item.LastAppliedRound).
		Set("updated_at", item.UpdatedAt.UTC()).
		SetExpr("version", "version + 1").
		Where(qb.Eq("user_id", item.UserID), qb.Eq("version", versionOrFirst(item.Version))).
		ToSQL()
	if err != nil {
		return fmt.Errorf("build save user score query: %w", err)
	}

	res, err := t.tx.ExecContext(ctx, query, args...)
	if err != nil {
		return classify(err, "save user score user=%s", item.UserID)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return crerr.Wrap(err, "save user score rows affected")
	}
	if affected != 1 {
		return fmt.Errorf("%w: user score user=%s version=%d", ranking.ErrWriteConflict, item.UserID, item.Version)
	}
	return nil
}

func (t *aggregationTx) ListScoredGuesses(ctx context.Context, userID string) ([]guess.Scored, error) {
	query, args, err := qb.Select("g.user_id", "g.match_id", "g.points", "m.kickoff_at").
		From("guesses g").
		Join("JOIN matches m ON m.id = g.match_id").
		Where(qb.Eq("g.user_id", userID), qb.IsNotNull("g.scored_at")).
		OrderBy("m.kickoff_at", "g.match_id").
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build list scored guesses query: %w", err)
	}

	var rows []scoredGuessRow
	if err := t.tx.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, classify(err, "list scored guesses user=%s", userID)
	}

	out := make([]guess.Scored, 0, len(rows))
	for _, row := range rows {
		out = append(out, guess.Scored{
			UserID:    row.UserID,
			MatchID:   row.MatchID,
			Points:    row.Points,
			KickoffAt: row.KickoffAt.UTC(),
		})
	}
	return out, nil
}

// A freshly created aggregate is stored at version 1 even if the caller passed 0.
func versionOrFirst(v int64) int64 {
	if v <= 0 {
		return 1
	}
	return v
}
