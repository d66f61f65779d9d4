package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	crerr "github.com/cockroachdb/errors"
	"github.com/jmoiron/sqlx"
	"github.com/palmeirasbolao-jpg/Bolao-Alviverde/internal/domain/jobscheduler"
	qb "github.com/palmeirasbolao-jpg/Bolao-Alviverde/internal/platform/querybuilder"
)

type JobDispatchRepository struct {
	db *sqlx.DB
}

func NewJobDispatchRepository(db *sqlx.DB) *JobDispatchRepository {
	return &JobDispatchRepository{db: db}
}

// UpsertEvent keeps one row per dispatch id. Each lifecycle status stamps its own
// timestamp; a later success clears the last error.
func (r *JobDispatchRepository) UpsertEvent(ctx context.Context, event jobscheduler.DispatchEvent) error {
	model, err := dispatchEventToRow(event)
	if err != nil {
		return err
	}

	query, args, err := qb.InsertModel("job_dispatches", model, `ON CONFLICT (dispatch_id) DO UPDATE SET
    job_name = EXCLUDED.job_name,
    job_path = EXCLUDED.job_path,
    match_id = EXCLUDED.match_id,
    payload = EXCLUDED.payload,
    status = EXCLUDED.status,
    sent_at = COALESCE(EXCLUDED.sent_at, job_dispatches.sent_at),
    completed_at = COALESCE(EXCLUDED.completed_at, job_dispatches.completed_at),
    failed_at = CASE
        WHEN EXCLUDED.status IN ('completed', 'skipped') THEN NULL
        ELSE COALESCE(EXCLUDED.failed_at, job_dispatches.failed_at)
    END,
    last_error = EXCLUDED.last_error,
    last_trace_id = COALESCE(EXCLUDED.last_trace_id, job_dispatches.last_trace_id),
    last_span_id = COALESCE(EXCLUDED.last_span_id, job_dispatches.last_span_id),
    updated_at = EXCLUDED.updated_at`)
	if err != nil {
		return fmt.Errorf("build upsert job dispatch query: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return crerr.Wrapf(err, "upsert job dispatch dispatch_id=%s status=%s", model.DispatchID, model.Status)
	}
	return nil
}

func (r *JobDispatchRepository) ListByMatch(ctx context.Context, matchID string) ([]jobscheduler.DispatchEvent, error) {
	query, args, err := qb.Select(qb.Columns(jobDispatchTableModel{})...).
		From("job_dispatches").
		Where(qb.Eq("match_id", matchID)).
		OrderBy("updated_at", "dispatch_id").
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build list job dispatches query: %w", err)
	}

	var rows []jobDispatchTableModel
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, crerr.Wrapf(err, "list job dispatches match=%s", matchID)
	}

	out := make([]jobscheduler.DispatchEvent, 0, len(rows))
	for _, row := range rows {
		out = append(out, dispatchEventFromRow(row))
	}
	return out, nil
}

func dispatchEventToRow(event jobscheduler.DispatchEvent) (jobDispatchTableModel, error) {
	if err := event.Validate(); err != nil {
		return jobDispatchTableModel{}, err
	}
	dispatchID := strings.TrimSpace(event.DispatchID)

	occurredAt := event.OccurredAt.UTC()
	if event.OccurredAt.IsZero() {
		occurredAt = time.Now().UTC()
	}

	payload := "{}"
	if len(event.Payload) > 0 {
		raw, err := sonic.MarshalString(event.Payload)
		if err != nil {
			return jobDispatchTableModel{}, fmt.Errorf("encode job dispatch payload: %w", err)
		}
		payload = raw
	}

	row := jobDispatchTableModel{
		DispatchID: dispatchID,
		JobName:    fallback(event.JobName, "unknown"),
		JobPath:    fallback(event.JobPath, "/unknown"),
		MatchID:    fallback(event.MatchID, "unknown"),
		Payload:    payload,
		Status:     string(event.Status),
		TraceID:    textOrNil(event.TraceID),
		SpanID:     textOrNil(event.SpanID),
		UpdatedAt:  occurredAt,
	}
	switch event.Status {
	case jobscheduler.StatusSent:
		row.SentAt = &occurredAt
	case jobscheduler.StatusCompleted, jobscheduler.StatusSkipped:
		row.CompletedAt = &occurredAt
		if event.Status == jobscheduler.StatusSkipped {
			row.LastError = textOrNil(event.ErrorMessage)
		}
	case jobscheduler.StatusFailed:
		row.FailedAt = &occurredAt
		row.LastError = textOrNil(event.ErrorMessage)
	}
	return row, nil
}

func dispatchEventFromRow(row jobDispatchTableModel) jobscheduler.DispatchEvent {
	var payload map[string]any
	if row.Payload != "" {
		_ = sonic.UnmarshalString(row.Payload, &payload)
	}
	return jobscheduler.DispatchEvent{
		DispatchID:   row.DispatchID,
		JobName:      row.JobName,
		JobPath:      row.JobPath,
		MatchID:      row.MatchID,
		Status:       jobscheduler.DispatchStatus(row.Status),
		Payload:      payload,
		ErrorMessage: derefText(row.LastError),
		OccurredAt:   row.UpdatedAt.UTC(),
		TraceID:      derefText(row.TraceID),
		SpanID:       derefText(row.SpanID),
	}
}

func fallback(value, def string) string {
	if value = strings.TrimSpace(value); value == "" {
		return def
	}
	return value
}
