package httpapi

import (
	"fmt"
	"net/http"

	"github.com/palmeirasbolao-jpg/Bolao-Alviverde/internal/usecase"
)

func (h *Handler) RegisterUser(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r, "RegisterUser")
	defer span.End()

	userID, ok := userIDFromContext(ctx)
	if !ok {
		writeError(ctx, w, fmt.Errorf("%w: missing user", usecase.ErrUnauthorized))
		return
	}

	var req registerUserRequest
	if err := h.decodeAndValidate(r, &req); err != nil {
		writeError(ctx, w, err)
		return
	}

	item, created, err := h.userService.Register(ctx, userID, req.DisplayName)
	if err != nil {
		h.logger.WarnContext(ctx, "register user failed", "user_id", userID, "error", err)
		writeError(ctx, w, err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeSuccess(ctx, w, status, userScoreToDTO(item))
}

func (h *Handler) SubmitGuess(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r, "SubmitGuess")
	defer span.End()

	userID, ok := userIDFromContext(ctx)
	if !ok {
		writeError(ctx, w, fmt.Errorf("%w: missing user", usecase.ErrUnauthorized))
		return
	}

	var req submitGuessRequest
	if err := h.decodeAndValidate(r, &req); err != nil {
		writeError(ctx, w, err)
		return
	}

	item, err := h.guessService.Submit(ctx, usecase.SubmitGuessInput{
		UserID:  userID,
		MatchID: r.PathValue("matchID"),
		Home:    *req.Home,
		Away:    *req.Away,
	})
	if err != nil {
		h.logger.InfoContext(ctx, "submit guess rejected", "user_id", userID, "match_id", r.PathValue("matchID"), "error", err)
		writeError(ctx, w, err)
		return
	}
	writeSuccess(ctx, w, http.StatusOK, guessToDTO(item))
}

func (h *Handler) ListMyGuesses(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r, "ListMyGuesses")
	defer span.End()

	userID, ok := userIDFromContext(ctx)
	if !ok {
		writeError(ctx, w, fmt.Errorf("%w: missing user", usecase.ErrUnauthorized))
		return
	}

	items, err := h.guessService.ListByUser(ctx, userID)
	if err != nil {
		h.logger.ErrorContext(ctx, "list guesses failed", "user_id", userID, "error", err)
		writeError(ctx, w, err)
		return
	}

	out := make([]guessDTO, 0, len(items))
	for _, item := range items {
		out = append(out, guessToDTO(item))
	}
	writeSuccess(ctx, w, http.StatusOK, out)
}
