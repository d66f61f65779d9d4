package postgres

import (
	"context"
	"fmt"

	crerr "github.com/cockroachdb/errors"
	"github.com/jmoiron/sqlx"
	"github.com/palmeirasbolao-jpg/Bolao-Alviverde/internal/domain/ranking"
	qb "github.com/palmeirasbolao-jpg/Bolao-Alviverde/internal/platform/querybuilder"
)

var userScoreColumns = qb.Columns(userScoreTableModel{})

type RankingRepository struct {
	db *sqlx.DB
}

func NewRankingRepository(db *sqlx.DB) *RankingRepository {
	return &RankingRepository{db: db}
}

func (r *RankingRepository) Get(ctx context.Context, userID string) (ranking.UserScore, bool, error) {
	return getUserScore(ctx, r.db, userID, false)
}

func (r *RankingRepository) List(ctx context.Context) ([]ranking.UserScore, error) {
	query, args, err := qb.Select(userScoreColumns...).
		From("user_scores").
		OrderBy("total_score DESC", "user_id").
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build list user scores query: %w", err)
	}

	var rows []userScoreTableModel
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, crerr.Wrap(err, "list user scores")
	}

	out := make([]ranking.UserScore, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toDomain())
	}
	return out, nil
}

func (r *RankingRepository) Create(ctx context.Context, item ranking.UserScore) (bool, error) {
	return createUserScore(ctx, r.db, item)
}

func getUserScore(ctx context.Context, q sqlx.QueryerContext, userID string, forUpdate bool) (ranking.UserScore, bool, error) {
	builder := qb.Select(userScoreColumns...).
		From("user_scores").
		Where(qb.Eq("user_id", userID))
	if forUpdate {
		builder = builder.Suffix("FOR UPDATE")
	}
	query, args, err := builder.ToSQL()
	if err != nil {
		return ranking.UserScore{}, false, fmt.Errorf("build get user score query: %w", err)
	}

	var row userScoreTableModel
	if err := sqlx.GetContext(ctx, q, &row, query, args...); err != nil {
		if isNotFound(err) {
			return ranking.UserScore{}, false, nil
		}
		return ranking.UserScore{}, false, classify(err, "get user score user=%s", userID)
	}
	return row.toDomain(), true, nil
}

// createUserScore inserts a fresh aggregate at version 1 and reports whether it was new.
func createUserScore(ctx context.Context, e sqlx.ExecerContext, item ranking.UserScore) (bool, error) {
	item.Version = 1
	query, args, err := qb.InsertModel("user_scores", userScoreToRow(item), "ON CONFLICT (user_id) DO NOTHING")
	if err != nil {
		return false, fmt.Errorf("build create user score query: %w", err)
	}
	res, err := e.ExecContext(ctx, query, args...)
	if err != nil {
		return false, classify(err, "create user score user=%s", item.UserID)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, crerr.Wrap(err, "create user score rows affected")
	}
	return affected == 1, nil
}
