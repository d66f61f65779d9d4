package httpapi

import (
	"fmt"
	"net/http"

	"github.com/palmeirasbolao-jpg/Bolao-Alviverde/internal/domain/ranking"
	"github.com/palmeirasbolao-jpg/Bolao-Alviverde/internal/usecase"
)

func (h *Handler) GetLeaderboard(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r, "GetLeaderboard")
	defer span.End()

	scope, err := ranking.ParseScope(r.URL.Query().Get("scope"))
	if err != nil {
		writeError(ctx, w, fmt.Errorf("%w: %v", usecase.ErrInvalidInput, err))
		return
	}

	items, err := h.rankingService.Leaderboard(ctx, scope, r.URL.Query().Get("key"))
	if err != nil {
		h.logger.ErrorContext(ctx, "get leaderboard failed", "scope", scope, "error", err)
		writeError(ctx, w, err)
		return
	}
	writeSuccess(ctx, w, http.StatusOK, entriesToDTO(items))
}

func (h *Handler) GetBoards(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r, "GetBoards")
	defer span.End()

	boards, err := h.rankingService.Boards(ctx)
	if err != nil {
		h.logger.ErrorContext(ctx, "get leaderboards failed", "error", err)
		writeError(ctx, w, err)
		return
	}
	writeSuccess(ctx, w, http.StatusOK, map[string][]leaderboardEntryDTO{
		"overall": entriesToDTO(boards.Overall),
		"monthly": entriesToDTO(boards.Monthly),
		"round":   entriesToDTO(boards.Round),
	})
}

func (h *Handler) GetUserScore(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r, "GetUserScore")
	defer span.End()

	item, err := h.rankingService.UserScore(ctx, r.PathValue("userID"))
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	writeSuccess(ctx, w, http.StatusOK, userScoreToDTO(item))
}
