package httpapi

import (
	"fmt"
	"net/http"

	"github.com/palmeirasbolao-jpg/Bolao-Alviverde/internal/usecase"
)

func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r, "Healthz")
	defer span.End()

	writeSuccess(ctx, w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) ListMatches(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r, "ListMatches")
	defer span.End()

	items, err := h.matchService.List(ctx)
	if err != nil {
		h.logger.ErrorContext(ctx, "list matches failed", "error", err)
		writeError(ctx, w, err)
		return
	}

	out := make([]matchDTO, 0, len(items))
	for _, item := range items {
		out = append(out, matchToDTO(item))
	}
	writeSuccess(ctx, w, http.StatusOK, out)
}

func (h *Handler) GetMatch(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r, "GetMatch")
	defer span.End()

	item, err := h.matchService.Get(ctx, r.PathValue("matchID"))
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	writeSuccess(ctx, w, http.StatusOK, matchToDTO(item))
}

func (h *Handler) UpsertMatch(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r, "UpsertMatch")
	defer span.End()

	var req upsertMatchRequest
	if err := h.decodeAndValidate(r, &req); err != nil {
		writeError(ctx, w, err)
		return
	}

	item, err := h.matchService.Upsert(ctx, usecase.UpsertMatchInput{
		MatchID:   r.PathValue("matchID"),
		HomeTeam:  req.HomeTeam,
		AwayTeam:  req.AwayTeam,
		KickoffAt: req.KickoffAt,
	})
	if err != nil {
		h.logger.WarnContext(ctx, "upsert match failed", "match_id", r.PathValue("matchID"), "error", err)
		writeError(ctx, w, err)
		return
	}
	writeSuccess(ctx, w, http.StatusOK, matchToDTO(item))
}

func (h *Handler) RecordMatchResult(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r, "RecordMatchResult")
	defer span.End()

	var req recordResultRequest
	if err := h.decodeAndValidate(r, &req); err != nil {
		writeError(ctx, w, err)
		return
	}

	matchID := r.PathValue("matchID")
	outcome, err := h.matchService.RecordResult(ctx, usecase.RecordResultInput{
		MatchID:   matchID,
		HomeScore: req.Home,
		AwayScore: req.Away,
	})
	if err != nil {
		h.logger.WarnContext(ctx, "record match result failed", "match_id", matchID, "error", err)
		writeError(ctx, w, err)
		return
	}

	writeSuccess(ctx, w, http.StatusOK, map[string]any{
		"match":       matchToDTO(outcome.Match),
		"event_id":    outcome.EventID,
		"transition":  outcome.Transition,
		"triggered":   outcome.Triggered,
		"outcome":     outcome.Outcome,
		"dispatch_id": outcome.DispatchID,
	})
}

func (h *Handler) ListMatchDispatches(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r, "ListMatchDispatches")
	defer span.End()

	if h.dispatchRepo == nil {
		writeError(ctx, w, fmt.Errorf("%w: dispatch log is not configured", usecase.ErrDependencyUnavailable))
		return
	}

	items, err := h.dispatchRepo.ListByMatch(ctx, r.PathValue("matchID"))
	if err != nil {
		h.logger.ErrorContext(ctx, "list match dispatches failed", "match_id", r.PathValue("matchID"), "error", err)
		writeError(ctx, w, err)
		return
	}

	out := make([]dispatchDTO, 0, len(items))
	for _, item := range items {
		out = append(out, dispatchDTO{
			DispatchID:   item.DispatchID,
			JobName:      item.JobName,
			Status:       item.Status,
			ErrorMessage: item.ErrorMessage,
			OccurredAt:   item.OccurredAt,
			TraceID:      item.TraceID,
		})
	}
	writeSuccess(ctx, w, http.StatusOK, out)
}
