package usecase

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/palmeirasbolao-jpg/Bolao-Alviverde/internal/domain/jobscheduler"
	"github.com/palmeirasbolao-jpg/Bolao-Alviverde/internal/platform/logging"
)

var dedupUnsafeCharRegex = regexp.MustCompile(`[^a-zA-Z0-9_-]`)

// dispatchRecorder writes task lifecycle events. Failures are logged, never returned.
type dispatchRecorder struct {
	repo   jobscheduler.Repository
	logger *logging.Logger
	now    func() time.Time
}

func (r dispatchRecorder) record(ctx context.Context, event jobscheduler.DispatchEvent) {
	if r.repo == nil || strings.TrimSpace(event.DispatchID) == "" {
		return
	}
	traceID, spanID := traceMetaFromContext(ctx)
	event.TraceID = traceID
	event.SpanID = spanID
	if event.OccurredAt.IsZero() {
		now := time.Now
		if r.now != nil {
			now = r.now
		}
		event.OccurredAt = now().UTC()
	}
	if err := r.repo.UpsertEvent(ctx, event); err != nil && r.logger != nil {
		r.logger.WarnContext(ctx, "record job dispatch event failed",
			"dispatch_id", event.DispatchID,
			"status", event.Status,
			"error", err,
		)
	}
}

func dedupKey(prefix, matchID string, at time.Time, bucket time.Duration) string {
	if bucket <= 0 {
		bucket = time.Minute
	}
	slot := at.UTC().Truncate(bucket).Format("20060102T150405Z")
	return sanitizeDedupSegment(prefix) + "-" + sanitizeDedupSegment(matchID) + "-" + slot
}

func sanitizeDedupSegment(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return "unknown"
	}
	return dedupUnsafeCharRegex.ReplaceAllString(value, "-")
}
