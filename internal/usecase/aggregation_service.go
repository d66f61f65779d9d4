package usecase

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/palmeirasbolao-jpg/Bolao-Alviverde/internal/domain/guess"
	"github.com/palmeirasbolao-jpg/Bolao-Alviverde/internal/domain/jobscheduler"
	"github.com/palmeirasbolao-jpg/Bolao-Alviverde/internal/domain/match"
	"github.com/palmeirasbolao-jpg/Bolao-Alviverde/internal/domain/ranking"
	"github.com/palmeirasbolao-jpg/Bolao-Alviverde/internal/domain/scoring"
	"github.com/palmeirasbolao-jpg/Bolao-Alviverde/internal/platform/logging"
	"github.com/palmeirasbolao-jpg/Bolao-Alviverde/internal/platform/resilience"
	"github.com/panjf2000/ants/v2"
	"go.opentelemetry.io/otel/attribute"
)

type AggregationOutcome string

const (
	OutcomeApplied       AggregationOutcome = "applied"
	OutcomePartial       AggregationOutcome = "partial"
	OutcomeNoGuesses     AggregationOutcome = "no_guesses"
	OutcomeSkipped       AggregationOutcome = "skipped"
	OutcomeCommitFailure AggregationOutcome = "commit_failure"
)

type GuessFailure struct {
	UserID  string `json:"user_id"`
	MatchID string `json:"match_id"`
	Reason  string `json:"reason"`
}

type UserFailure struct {
	UserID string `json:"user_id"`
	Reason string `json:"reason"`
}

// AggregationReport summarizes one aggregation attempt for logs, metrics and callers.
type AggregationReport struct {
	MatchID        string             `json:"match_id"`
	Result         string             `json:"result,omitempty"`
	Outcome        AggregationOutcome `json:"outcome"`
	Transition     match.Transition   `json:"transition,omitempty"`
	SkipReason     string             `json:"skip_reason,omitempty"`
	GuessesScored  int                `json:"guesses_scored"`
	UsersUpdated   int                `json:"users_updated"`
	InvalidGuesses []GuessFailure     `json:"invalid_guesses,omitempty"`
	UserFailures   []UserFailure      `json:"user_failures,omitempty"`
	Attempts       int                `json:"attempts"`
	Duration       time.Duration      `json:"duration_ns"`
}

func (r AggregationReport) HasFailures() bool {
	return len(r.InvalidGuesses) > 0 || len(r.UserFailures) > 0
}

// AggregationMetrics receives every report and detector decision.
type AggregationMetrics interface {
	ObserveAggregation(report AggregationReport)
	ObserveDetection(decision match.Decision)
}

type noopAggregationMetrics struct{}

func (noopAggregationMetrics) ObserveAggregation(AggregationReport) {}
func (noopAggregationMetrics) ObserveDetection(match.Decision)      {}

// RankingInvalidator drops cached leaderboards after aggregates change.
type RankingInvalidator interface {
	Invalidate(ctx context.Context)
}

type AggregationConfig struct {
	Points        scoring.PointsTable
	Workers       int
	MaxAttempts   int
	RetryBackoff  time.Duration
	MonthLocation *time.Location
}

type AggregationService struct {
	matchRepo   match.Repository
	guessRepo   guess.Repository
	uow         ranking.UnitOfWork
	metrics     AggregationMetrics
	invalidator RankingInvalidator
	recorder    dispatchRecorder
	cfg         AggregationConfig
	logger      *logging.Logger
	now         func() time.Time
	sleep       func(ctx context.Context, d time.Duration) error
	flight      resilience.SingleFlight
}

func NewAggregationService(
	matchRepo match.Repository,
	guessRepo guess.Repository,
	uow ranking.UnitOfWork,
	dispatchRepo jobscheduler.Repository,
	metrics AggregationMetrics,
	invalidator RankingInvalidator,
	cfg AggregationConfig,
	logger *logging.Logger,
) *AggregationService {
	if metrics == nil {
		metrics = noopAggregationMetrics{}
	}
	if logger == nil {
		logger = logging.Default()
	}
	if cfg.Points == (scoring.PointsTable{}) {
		cfg.Points = scoring.DefaultPointsTable()
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 8
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.RetryBackoff < 0 {
		cfg.RetryBackoff = 0
	}
	if cfg.MonthLocation == nil {
		cfg.MonthLocation = time.UTC
	}

	return &AggregationService{
		matchRepo:   matchRepo,
		guessRepo:   guessRepo,
		uow:         uow,
		metrics:     metrics,
		invalidator: invalidator,
		recorder:    dispatchRecorder{repo: dispatchRepo, logger: logger, now: time.Now},
		cfg:         cfg,
		logger:      logger,
		now:         time.Now,
		sleep:       sleepContext,
	}
}

// Aggregate scores every guess of the match and rebuilds the affected user
// aggregates in one batch. Running it again for the same match is a no-op.
func (s *AggregationService) Aggregate(ctx context.Context, matchID string, result scoring.ScorePair) (AggregationReport, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.AggregationService.Aggregate",
		attribute.String("match_id", matchID),
		attribute.String("result", result.String()),
	)
	defer span.End()

	matchID = strings.TrimSpace(matchID)
	if matchID == "" {
		return AggregationReport{}, fmt.Errorf("%w: match id is required", ErrInvalidInput)
	}
	if err := result.Validate(); err != nil {
		return AggregationReport{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	v, err, _ := s.flight.Do("aggregate:"+matchID+":"+result.String(), func() (any, error) {
		return s.aggregate(ctx, matchID, result)
	})
	report, _ := v.(AggregationReport)
	if err != nil {
		failSpan(span, err)
		return report, err
	}
	return report, nil
}

// HandleTask runs a dispatched aggregation task and records how it ended.
func (s *AggregationService) HandleTask(ctx context.Context, task AggregationTask) (AggregationReport, error) {
	report, err := s.Aggregate(ctx, task.MatchID, task.Result())
	report.Transition = task.Transition

	event := jobscheduler.DispatchEvent{
		DispatchID: task.DispatchID,
		JobName:    AggregateMatchJobName,
		JobPath:    AggregateMatchJobPath,
		MatchID:    task.MatchID,
		Status:     jobscheduler.StatusCompleted,
		Payload:    task.payload(),
	}
	switch {
	case err != nil:
		event.Status = jobscheduler.StatusFailed
		event.ErrorMessage = err.Error()
	case report.Outcome == OutcomeSkipped:
		event.Status = jobscheduler.StatusSkipped
		event.ErrorMessage = report.SkipReason
	}
	s.recorder.record(ctx, event)
	return report, err
}

func (s *AggregationService) aggregate(ctx context.Context, matchID string, requested scoring.ScorePair) (AggregationReport, error) {
	startedAt := s.now()
	report := AggregationReport{MatchID: matchID, Result: requested.String()}

	item, exists, err := s.matchRepo.GetByID(ctx, matchID)
	if err != nil {
		return report, fmt.Errorf("get match=%s: %w", matchID, err)
	}
	if !exists {
		return report, fmt.Errorf("%w: match=%s", ErrNotFound, matchID)
	}

	// The stored score is authoritative; a stale task converges to it.
	result, finalized := item.Result()
	if !finalized {
		report.Outcome = OutcomeSkipped
		report.SkipReason = "match is not finalized"
		s.finish(ctx, &report, startedAt)
		return report, nil
	}
	if result != requested {
		s.logger.WarnContext(ctx, "aggregation task result superseded by stored result",
			"match_id", matchID,
			"requested", requested.String(),
			"stored", result.String(),
		)
		report.Result = result.String()
	}

	guesses, err := s.guessRepo.ListByMatch(ctx, matchID)
	if err != nil {
		return report, fmt.Errorf("list guesses for match=%s: %w", matchID, err)
	}
	if len(guesses) == 0 {
		report.Outcome = OutcomeNoGuesses
		s.finish(ctx, &report, startedAt)
		return report, nil
	}

	awards, invalid, err := s.scoreGuesses(guesses, result)
	if err != nil {
		return report, err
	}
	report.GuessesScored = len(awards)
	report.InvalidGuesses = invalid

	scoredAt := s.now().UTC()
	for attempt := 1; ; attempt++ {
		report.Attempts = attempt

		updated, failures, commitErr := s.commit(ctx, awards, scoredAt)
		if commitErr == nil {
			report.UsersUpdated = updated
			report.UserFailures = failures
			break
		}

		retryable := errors.Is(commitErr, ranking.ErrWriteConflict) && attempt < s.cfg.MaxAttempts
		if !retryable {
			report.Outcome = OutcomeCommitFailure
			report.Duration = s.now().Sub(startedAt)
			s.metrics.ObserveAggregation(report)
			s.logger.ErrorContext(ctx, "aggregation batch commit failed",
				"match_id", matchID,
				"attempts", attempt,
				"error", commitErr,
			)
			return report, fmt.Errorf("%w: match=%s attempts=%d: %w", ErrBatchCommitFailure, matchID, attempt, commitErr)
		}

		s.logger.WarnContext(ctx, "aggregation batch conflict, retrying",
			"match_id", matchID,
			"attempt", attempt,
			"error", commitErr,
		)
		if err := s.sleep(ctx, s.cfg.RetryBackoff*time.Duration(attempt)); err != nil {
			report.Outcome = OutcomeCommitFailure
			report.Duration = s.now().Sub(startedAt)
			s.metrics.ObserveAggregation(report)
			return report, fmt.Errorf("%w: match=%s: %w", ErrBatchCommitFailure, matchID, err)
		}
	}

	report.Outcome = OutcomeApplied
	if report.HasFailures() {
		report.Outcome = OutcomePartial
	}
	if s.invalidator != nil {
		s.invalidator.Invalidate(ctx)
	}
	s.finish(ctx, &report, startedAt)
	return report, nil
}

func (s *AggregationService) scoreGuesses(guesses []guess.Guess, result scoring.ScorePair) ([]guess.Award, []GuessFailure, error) {
	awards := make([]guess.Award, len(guesses))
	failures := make([]error, len(guesses))

	workers := s.cfg.Workers
	if workers > len(guesses) {
		workers = len(guesses)
	}
	pool, err := ants.NewPool(workers)
	if err != nil {
		return nil, nil, fmt.Errorf("create scoring pool: %w", err)
	}
	defer pool.Release()

	var wg sync.WaitGroup
	for idx := range guesses {
		idx := idx
		wg.Add(1)
		if err := pool.Submit(func() {
			defer wg.Done()
			awards[idx], failures[idx] = s.scoreGuess(guesses[idx], result)
		}); err != nil {
			wg.Done()
			wg.Wait()
			return nil, nil, fmt.Errorf("submit scoring task: %w", err)
		}
	}
	wg.Wait()

	outAwards := make([]guess.Award, 0, len(guesses))
	var outFailures []GuessFailure
	for idx, item := range guesses {
		if failures[idx] != nil {
			outFailures = append(outFailures, GuessFailure{
				UserID:  item.UserID,
				MatchID: item.MatchID,
				Reason:  failures[idx].Error(),
			})
			continue
		}
		outAwards = append(outAwards, awards[idx])
	}
	return outAwards, outFailures, nil
}

func (s *AggregationService) scoreGuess(item guess.Guess, result scoring.ScorePair) (guess.Award, error) {
	if err := item.Validate(); err != nil {
		return guess.Award{}, fmt.Errorf("%w: %v", ErrInvalidGuessInput, err)
	}
	points, rule, err := scoring.CalculatePointsChecked(item.Prediction(), result, s.cfg.Points)
	if err != nil {
		return guess.Award{}, fmt.Errorf("%w: %v", ErrInvalidGuessInput, err)
	}
	return guess.Award{
		UserID:  item.UserID,
		MatchID: item.MatchID,
		Points:  points,
		Rule:    rule,
	}, nil
}

// commit writes guess points first and then rebuilds every affected aggregate
// inside the same unit of work. A user whose aggregate fails is rolled back
// alone and reported.
func (s *AggregationService) commit(ctx context.Context, awards []guess.Award, scoredAt time.Time) (int, []UserFailure, error) {
	userIDs := distinctUsers(awards)
	var (
		updated  int
		failures []UserFailure
	)

	err := s.uow.RunAggregation(ctx, func(ctx context.Context, tx ranking.AggregationTx) error {
		updated = 0
		failures = nil

		if err := tx.SaveGuessPoints(ctx, awards, scoredAt); err != nil {
			return fmt.Errorf("save guess points: %w", err)
		}

		for _, userID := range userIDs {
			err := tx.WithinUser(ctx, userID, func(ctx context.Context) error {
				return s.rebuildUserScore(ctx, tx, userID, scoredAt)
			})
			if err == nil {
				updated++
				continue
			}
			if errors.Is(err, ranking.ErrWriteConflict) {
				return err
			}
			failures = append(failures, UserFailure{UserID: userID, Reason: err.Error()})
			s.logger.WarnContext(ctx, "skip user aggregate",
				"user_id", userID,
				"error", err,
			)
		}
		return nil
	})
	if err != nil {
		return 0, nil, err
	}
	return updated, failures, nil
}

func (s *AggregationService) rebuildUserScore(ctx context.Context, tx ranking.AggregationTx, userID string, now time.Time) error {
	current, exists, err := tx.LockUserScore(ctx, userID)
	if err != nil {
		return fmt.Errorf("%w: lock user=%s: %w", ErrAggregateRecordUnavailable, userID, err)
	}
	if !exists {
		current = ranking.NewUserScore(userID, "", now)
		if err := tx.CreateUserScore(ctx, current); err != nil {
			return fmt.Errorf("%w: create user=%s: %w", ErrAggregateRecordUnavailable, userID, err)
		}
	}

	scored, err := tx.ListScoredGuesses(ctx, userID)
	if err != nil {
		return fmt.Errorf("%w: list scored guesses user=%s: %w", ErrAggregateRecordUnavailable, userID, err)
	}

	next := ranking.Recompute(current, scored, s.cfg.MonthLocation)
	if exists && ranking.SameTotals(current, next) {
		return nil
	}
	next.UpdatedAt = now
	if err := tx.SaveUserScore(ctx, next); err != nil {
		return fmt.Errorf("%w: save user=%s: %w", ErrAggregateRecordUnavailable, userID, err)
	}
	return nil
}

func (s *AggregationService) finish(ctx context.Context, report *AggregationReport, startedAt time.Time) {
	report.Duration = s.now().Sub(startedAt)
	s.metrics.ObserveAggregation(*report)

	args := []any{
		"match_id", report.MatchID,
		"outcome", report.Outcome,
		"result", report.Result,
		"guesses_scored", report.GuessesScored,
		"users_updated", report.UsersUpdated,
		"attempts", report.Attempts,
		"duration_ms", report.Duration.Milliseconds(),
	}
	if report.SkipReason != "" {
		args = append(args, "skip_reason", report.SkipReason)
	}
	if !report.HasFailures() {
		s.logger.InfoContext(ctx, "match aggregation finished", args...)
		return
	}
	args = append(args,
		"invalid_guesses", len(report.InvalidGuesses),
		"user_failures", len(report.UserFailures),
	)
	s.logger.WarnContext(ctx, "match aggregation finished with failures", args...)
}

func distinctUsers(awards []guess.Award) []string {
	seen := make(map[string]struct{}, len(awards))
	out := make([]string, 0, len(awards))
	for _, award := range awards {
		if _, ok := seen[award.UserID]; ok {
			continue
		}
		seen[award.UserID] = struct{}{}
		out = append(out, award.UserID)
	}
	// Stable lock order keeps concurrent batches from deadlocking each other.
	sort.Strings(out)
	return out
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
