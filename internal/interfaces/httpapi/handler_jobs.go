package httpapi

import (
	"fmt"
	"net/http"

	"github.com/palmeirasbolao-jpg/Bolao-Alviverde/internal/usecase"
)

// RunAggregateMatchJob is the delivery target of queued aggregation tasks.
// A non-2xx answer makes the queue redeliver the task.
func (h *Handler) RunAggregateMatchJob(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r, "RunAggregateMatchJob")
	defer span.End()

	if h.aggregation == nil {
		writeError(ctx, w, fmt.Errorf("%w: aggregation handler is not configured", usecase.ErrDependencyUnavailable))
		return
	}

	var task usecase.AggregationTask
	if err := h.decodeAndValidate(r, &task); err != nil {
		writeError(ctx, w, err)
		return
	}

	report, err := h.aggregation.HandleTask(ctx, task)
	if err != nil {
		h.logger.WarnContext(ctx, "run aggregate match job failed",
			"match_id", task.MatchID,
			"dispatch_id", task.DispatchID,
			"error", err,
		)
		writeError(ctx, w, err)
		return
	}
	writeSuccess(ctx, w, http.StatusOK, report)
}

func (h *Handler) RunReaggregateMatchJob(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r, "RunReaggregateMatchJob")
	defer span.End()

	var req reaggregateMatchRequest
	if err := h.decodeAndValidate(r, &req); err != nil {
		writeError(ctx, w, err)
		return
	}

	task, err := h.matchService.Reaggregate(ctx, req.MatchID)
	if err != nil {
		h.logger.WarnContext(ctx, "run reaggregate match job failed", "match_id", req.MatchID, "error", err)
		writeError(ctx, w, err)
		return
	}
	writeSuccess(ctx, w, http.StatusAccepted, task)
}
