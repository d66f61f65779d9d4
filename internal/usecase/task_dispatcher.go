package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/palmeirasbolao-jpg/Bolao-Alviverde/internal/domain/jobscheduler"
	"github.com/palmeirasbolao-jpg/Bolao-Alviverde/internal/domain/match"
	"github.com/palmeirasbolao-jpg/Bolao-Alviverde/internal/domain/scoring"
	"github.com/palmeirasbolao-jpg/Bolao-Alviverde/internal/platform/logging"
)

const (
	AggregateMatchJobName = "aggregate-match"
	AggregateMatchJobPath = "/v1/internal/jobs/aggregate-match"
)

// JobQueue delivers a payload to the handler registered for path, at least once.
type JobQueue interface {
	Enqueue(ctx context.Context, path string, payload any, delay time.Duration, deduplicationID string) error
}

// AggregationTask asks for one match to be aggregated against a result.
type AggregationTask struct {
	DispatchID string           `json:"dispatch_id" validate:"required"`
	MatchID    string           `json:"match_id" validate:"required"`
	Home       int              `json:"home" validate:"gte=0"`
	Away       int              `json:"away" validate:"gte=0"`
	Transition match.Transition `json:"transition,omitempty"`
	EventID    string           `json:"event_id,omitempty"`
}

func (t AggregationTask) Result() scoring.ScorePair {
	return scoring.ScorePair{Home: t.Home, Away: t.Away}
}

func (t AggregationTask) payload() map[string]any {
	return map[string]any{
		"dispatch_id": t.DispatchID,
		"match_id":    t.MatchID,
		"home":        t.Home,
		"away":        t.Away,
		"transition":  string(t.Transition),
		"event_id":    t.EventID,
	}
}

// NewAggregationTask builds a task whose dispatch id names the update event that
// triggered it. Redeliveries of one event share an id; a later event that lands
// on an earlier score gets a new one. Without an event id the result stands in.
func NewAggregationTask(matchID string, result scoring.ScorePair, transition match.Transition, eventID string) AggregationTask {
	eventID = strings.TrimSpace(eventID)
	suffix := result.String()
	if eventID != "" {
		suffix = sanitizeDedupSegment(eventID)
	}
	return AggregationTask{
		DispatchID: AggregateMatchJobName + "-" + sanitizeDedupSegment(matchID) + "-" + suffix,
		MatchID:    matchID,
		Home:       result.Home,
		Away:       result.Away,
		Transition: transition,
		EventID:    eventID,
	}
}

type TaskDispatcher interface {
	DispatchAggregation(ctx context.Context, task AggregationTask) error
}

type AggregationTaskHandler interface {
	HandleTask(ctx context.Context, task AggregationTask) (AggregationReport, error)
}

// QueueDispatcher hands tasks to a JobQueue and records the dispatch.
type QueueDispatcher struct {
	queue    JobQueue
	recorder dispatchRecorder
}

func NewQueueDispatcher(queue JobQueue, dispatchRepo jobscheduler.Repository, logger *logging.Logger) *QueueDispatcher {
	if logger == nil {
		logger = logging.Default()
	}
	return &QueueDispatcher{
		queue:    queue,
		recorder: dispatchRecorder{repo: dispatchRepo, logger: logger, now: time.Now},
	}
}

func (d *QueueDispatcher) DispatchAggregation(ctx context.Context, task AggregationTask) error {
	if strings.TrimSpace(task.MatchID) == "" || strings.TrimSpace(task.DispatchID) == "" {
		return fmt.Errorf("%w: aggregation task requires match id and dispatch id", ErrInvalidInput)
	}

	payload := task.payload()
	event := jobscheduler.DispatchEvent{
		DispatchID: task.DispatchID,
		JobName:    AggregateMatchJobName,
		JobPath:    AggregateMatchJobPath,
		MatchID:    task.MatchID,
		Status:     jobscheduler.StatusSent,
		Payload:    payload,
	}
	if err := d.queue.Enqueue(ctx, AggregateMatchJobPath, task, 0, task.DispatchID); err != nil {
		event.Status = jobscheduler.StatusFailed
		event.ErrorMessage = err.Error()
		d.recorder.record(ctx, event)
		return fmt.Errorf("enqueue %s match=%s: %w", AggregateMatchJobName, task.MatchID, err)
	}
	d.recorder.record(ctx, event)
	return nil
}

// InlineDispatcher runs the task on the caller goroutine.
type InlineDispatcher struct {
	handler AggregationTaskHandler
}

func NewInlineDispatcher(handler AggregationTaskHandler) *InlineDispatcher {
	return &InlineDispatcher{handler: handler}
}

func (d *InlineDispatcher) DispatchAggregation(ctx context.Context, task AggregationTask) error {
	_, err := d.handler.HandleTask(ctx, task)
	return err
}
