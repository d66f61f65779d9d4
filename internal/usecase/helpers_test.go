package usecase

import (
	"context"
	"sync"
	"time"

	"github.com/palmeirasbolao-jpg/Bolao-Alviverde/internal/domain/guess"
	"github.com/palmeirasbolao-jpg/Bolao-Alviverde/internal/domain/match"
	"github.com/palmeirasbolao-jpg/Bolao-Alviverde/internal/domain/ranking"
)

func intPtr(v int) *int {
	return &v
}

type recordingMetrics struct {
	mu        sync.Mutex
	reports   []AggregationReport
	decisions []match.Decision
}

func (m *recordingMetrics) ObserveAggregation(report AggregationReport) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reports = append(m.reports, report)
}

func (m *recordingMetrics) ObserveDetection(decision match.Decision) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.decisions = append(m.decisions, decision)
}

func (m *recordingMetrics) lastReport() (AggregationReport, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.reports) == 0 {
		return AggregationReport{}, false
	}
	return m.reports[len(m.reports)-1], true
}

type countingInvalidator struct {
	mu    sync.Mutex
	calls int
}

func (c *countingInvalidator) Invalidate(context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
}

func (c *countingInvalidator) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

type recordingDispatcher struct {
	mu    sync.Mutex
	tasks []AggregationTask
	err   error
}

func (d *recordingDispatcher) DispatchAggregation(_ context.Context, task AggregationTask) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.tasks = append(d.tasks, task)
	return d.err
}

// conflictingUnitOfWork fails the first conflicts batches before delegating.
type conflictingUnitOfWork struct {
	inner     ranking.UnitOfWork
	mu        sync.Mutex
	conflicts int
	err       error
	runs      int
}

func (u *conflictingUnitOfWork) RunAggregation(ctx context.Context, fn func(ctx context.Context, tx ranking.AggregationTx) error) error {
	u.mu.Lock()
	u.runs++
	if u.err != nil {
		u.mu.Unlock()
		return u.err
	}
	if u.conflicts > 0 {
		u.conflicts--
		u.mu.Unlock()
		return ranking.ErrWriteConflict
	}
	u.mu.Unlock()
	return u.inner.RunAggregation(ctx, fn)
}

// failingUserUnitOfWork makes SaveUserScore fail for the listed users.
type failingUserUnitOfWork struct {
	inner ranking.UnitOfWork
	fail  map[string]error
}

func (u *failingUserUnitOfWork) RunAggregation(ctx context.Context, fn func(ctx context.Context, tx ranking.AggregationTx) error) error {
	return u.inner.RunAggregation(ctx, func(ctx context.Context, tx ranking.AggregationTx) error {
		return fn(ctx, failingUserTx{AggregationTx: tx, fail: u.fail})
	})
}

type failingUserTx struct {
	ranking.AggregationTx
	fail map[string]error
}

func (t failingUserTx) SaveUserScore(ctx context.Context, item ranking.UserScore) error {
	if err, ok := t.fail[item.UserID]; ok {
		return err
	}
	return t.AggregationTx.SaveUserScore(ctx, item)
}

// extraGuessRepository appends guesses the real store would never accept.
type extraGuessRepository struct {
	guess.Repository
	extra []guess.Guess
}

func (r extraGuessRepository) ListByMatch(ctx context.Context, matchID string) ([]guess.Guess, error) {
	items, err := r.Repository.ListByMatch(ctx, matchID)
	if err != nil {
		return nil, err
	}
	for _, item := range r.extra {
		if item.MatchID == matchID {
			items = append(items, item)
		}
	}
	return items, nil
}

func fixedClock(at time.Time) func() time.Time {
	return func() time.Time { return at }
}
