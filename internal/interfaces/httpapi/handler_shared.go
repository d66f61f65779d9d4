package httpapi

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	sonic "github.com/bytedance/sonic"
	"github.com/go-playground/validator/v10"
	"github.com/palmeirasbolao-jpg/Bolao-Alviverde/internal/domain/guess"
	"github.com/palmeirasbolao-jpg/Bolao-Alviverde/internal/domain/jobscheduler"
	"github.com/palmeirasbolao-jpg/Bolao-Alviverde/internal/domain/match"
	"github.com/palmeirasbolao-jpg/Bolao-Alviverde/internal/domain/ranking"
	"github.com/palmeirasbolao-jpg/Bolao-Alviverde/internal/platform/logging"
	"github.com/palmeirasbolao-jpg/Bolao-Alviverde/internal/usecase"
)

type Handler struct {
	matchService   *usecase.MatchService
	guessService   *usecase.GuessService
	userService    *usecase.UserService
	rankingService *usecase.RankingService
	aggregation    usecase.AggregationTaskHandler
	dispatchRepo   jobscheduler.Repository
	logger         *logging.Logger
	validator      *validator.Validate
}

func NewHandler(
	matchService *usecase.MatchService,
	guessService *usecase.GuessService,
	userService *usecase.UserService,
	rankingService *usecase.RankingService,
	aggregation usecase.AggregationTaskHandler,
	dispatchRepo jobscheduler.Repository,
	logger *logging.Logger,
) *Handler {
	if logger == nil {
		logger = logging.Default()
	}

	return &Handler{
		matchService:   matchService,
		guessService:   guessService,
		userService:    userService,
		rankingService: rankingService,
		aggregation:    aggregation,
		dispatchRepo:   dispatchRepo,
		logger:         logger,
		validator:      validator.New(),
	}
}

// decodeJSON rejects unknown fields. An empty body decodes to the zero value.
func decodeJSON(r *http.Request, dst any) error {
	decoder := sonic.ConfigDefault.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("%w: invalid JSON payload: %v", usecase.ErrInvalidInput, err)
	}
	return nil
}

func (h *Handler) validateRequest(ctx context.Context, payload any) error {
	if err := h.validator.StructCtx(ctx, payload); err != nil {
		return fmt.Errorf("%w: validation failed: %v", usecase.ErrInvalidInput, err)
	}
	return nil
}

func (h *Handler) decodeAndValidate(r *http.Request, dst any) error {
	if err := decodeJSON(r, dst); err != nil {
		return err
	}
	return h.validateRequest(r.Context(), dst)
}

type registerUserRequest struct {
	DisplayName string `json:"display_name" validate:"omitempty,max=80"`
}

type submitGuessRequest struct {
	Home *int `json:"home" validate:"required,gte=0"`
	Away *int `json:"away" validate:"required,gte=0"`
}

type upsertMatchRequest struct {
	HomeTeam  string    `json:"home_team" validate:"required,max=80"`
	AwayTeam  string    `json:"away_team" validate:"required,max=80"`
	KickoffAt time.Time `json:"kickoff_at"`
}

// Both scores null clears the result.
type recordResultRequest struct {
	Home *int `json:"home" validate:"omitempty,gte=0"`
	Away *int `json:"away" validate:"omitempty,gte=0"`
}

type reaggregateMatchRequest struct {
	MatchID string `json:"match_id" validate:"required"`
}

type matchDTO struct {
	ID        string    `json:"id"`
	HomeTeam  string    `json:"home_team"`
	AwayTeam  string    `json:"away_team"`
	KickoffAt time.Time `json:"kickoff_at"`
	HomeScore *int      `json:"home_score"`
	AwayScore *int      `json:"away_score"`
	Finalized bool      `json:"finalized"`
	UpdatedAt time.Time `json:"updated_at"`
}

func matchToDTO(item match.Match) matchDTO {
	return matchDTO{
		ID:        item.ID,
		HomeTeam:  item.HomeTeam,
		AwayTeam:  item.AwayTeam,
		KickoffAt: item.KickoffAt,
		HomeScore: item.HomeScore,
		AwayScore: item.AwayScore,
		Finalized: item.IsFinalized(),
		UpdatedAt: item.UpdatedAt,
	}
}

type guessDTO struct {
	MatchID   string     `json:"match_id"`
	Home      int        `json:"home"`
	Away      int        `json:"away"`
	Points    int        `json:"points"`
	ScoredAt  *time.Time `json:"scored_at,omitempty"`
	UpdatedAt time.Time  `json:"updated_at"`
}

func guessToDTO(item guess.Guess) guessDTO {
	return guessDTO{
		MatchID:   item.MatchID,
		Home:      item.Home,
		Away:      item.Away,
		Points:    item.Points,
		ScoredAt:  item.ScoredAt,
		UpdatedAt: item.UpdatedAt,
	}
}

type userScoreDTO struct {
	UserID           string    `json:"user_id"`
	DisplayName      string    `json:"display_name"`
	TotalScore       int       `json:"total_score"`
	MonthlyScore     int       `json:"monthly_score"`
	RoundScore       int       `json:"round_score"`
	LastAppliedMonth string    `json:"last_applied_month,omitempty"`
	LastAppliedRound string    `json:"last_applied_round,omitempty"`
	UpdatedAt        time.Time `json:"updated_at"`
}

func userScoreToDTO(item ranking.UserScore) userScoreDTO {
	return userScoreDTO{
		UserID:           item.UserID,
		DisplayName:      item.DisplayName,
		TotalScore:       item.TotalScore,
		MonthlyScore:     item.MonthlyScore,
		RoundScore:       item.RoundScore,
		LastAppliedMonth: item.LastAppliedMonth,
		LastAppliedRound: item.LastAppliedRound,
		UpdatedAt:        item.UpdatedAt,
	}
}

type leaderboardEntryDTO struct {
	Rank        int    `json:"rank"`
	UserID      string `json:"user_id"`
	DisplayName string `json:"display_name"`
	Points      int    `json:"points"`
	Key         string `json:"key,omitempty"`
}

func entriesToDTO(items []ranking.Entry) []leaderboardEntryDTO {
	out := make([]leaderboardEntryDTO, 0, len(items))
	for _, item := range items {
		out = append(out, leaderboardEntryDTO{
			Rank:        item.Rank,
			UserID:      item.UserID,
			DisplayName: item.DisplayName,
			Points:      item.Points,
			Key:         item.Key,
		})
	}
	return out
}

type dispatchDTO struct {
	DispatchID   string                      `json:"dispatch_id"`
	JobName      string                      `json:"job_name"`
	Status       jobscheduler.DispatchStatus `json:"status"`
	ErrorMessage string                      `json:"error_message,omitempty"`
	OccurredAt   time.Time                   `json:"occurred_at"`
	TraceID      string                      `json:"trace_id,omitempty"`
}
