// Package jobscheduler keeps the audit trail of aggregation tasks handed to a
// transport, one row per dispatch id updated as the task moves along.
package jobscheduler

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"
)

var ErrMissingDispatchID = errors.New("dispatch id is required")

type DispatchStatus string

const (
	StatusSent      DispatchStatus = "sent"
	StatusCompleted DispatchStatus = "completed"
	StatusSkipped   DispatchStatus = "skipped"
	StatusFailed    DispatchStatus = "failed"
)

// Terminal reports whether the handler has finished with the task. A failed
// dispatch is terminal only until the transport redelivers it.
func (s DispatchStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusSkipped || s == StatusFailed
}

func (s DispatchStatus) Valid() bool {
	return s == StatusSent || s.Terminal()
}

// DispatchEvent is the latest known state of one dispatch.
type DispatchEvent struct {
	DispatchID   string
	JobName      string
	JobPath      string
	MatchID      string
	Status       DispatchStatus
	Payload      map[string]any
	ErrorMessage string
	OccurredAt   time.Time
	TraceID      string
	SpanID       string
}

func (e DispatchEvent) Validate() error {
	if strings.TrimSpace(e.DispatchID) == "" {
		return ErrMissingDispatchID
	}
	if !e.Status.Valid() {
		return fmt.Errorf("dispatch %s: unknown status %q", e.DispatchID, e.Status)
	}
	return nil
}

// Clone copies the payload so stored events never alias caller maps.
func (e DispatchEvent) Clone() DispatchEvent {
	e.Payload = maps.Clone(e.Payload)
	return e
}

// SortTimeline orders events oldest first, dispatch id breaking ties.
func SortTimeline(events []DispatchEvent) {
	slices.SortStableFunc(events, func(a, b DispatchEvent) int {
		if c := a.OccurredAt.Compare(b.OccurredAt); c != 0 {
			return c
		}
		return strings.Compare(a.DispatchID, b.DispatchID)
	})
}

type Repository interface {
	// UpsertEvent replaces the stored state for event.DispatchID.
	UpsertEvent(ctx context.Context, event DispatchEvent) error
	// ListByMatch returns the timeline of every dispatch for a match.
	ListByMatch(ctx context.Context, matchID string) ([]DispatchEvent, error)
}
