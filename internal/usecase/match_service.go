package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/palmeirasbolao-jpg/Bolao-Alviverde/internal/domain/match"
	"github.com/palmeirasbolao-jpg/Bolao-Alviverde/internal/platform/id"
	"github.com/palmeirasbolao-jpg/Bolao-Alviverde/internal/platform/logging"
	"go.opentelemetry.io/otel/attribute"
)

type UpsertMatchInput struct {
	MatchID   string
	HomeTeam  string
	AwayTeam  string
	KickoffAt time.Time
}

type RecordResultInput struct {
	MatchID   string
	HomeScore *int
	AwayScore *int
}

// UpdateOutcome tells an admin caller what the detector decided for their edit.
type UpdateOutcome struct {
	Match      match.Match        `json:"-"`
	EventID    string             `json:"event_id"`
	Transition match.Transition   `json:"transition"`
	Triggered  bool               `json:"triggered"`
	Outcome    AggregationOutcome `json:"outcome,omitempty"`
	DispatchID string             `json:"dispatch_id,omitempty"`
}

type MatchService struct {
	matchRepo  match.Repository
	dispatcher TaskDispatcher
	metrics    AggregationMetrics
	ids        id.Generator
	policy     match.RescorePolicy
	logger     *logging.Logger
	now        func() time.Time
}

func NewMatchService(
	matchRepo match.Repository,
	dispatcher TaskDispatcher,
	metrics AggregationMetrics,
	ids id.Generator,
	policy match.RescorePolicy,
	logger *logging.Logger,
) *MatchService {
	if metrics == nil {
		metrics = noopAggregationMetrics{}
	}
	if ids == nil {
		ids = id.NewUUIDGenerator()
	}
	if policy == "" {
		policy = match.PolicyFinalizeOnly
	}
	if logger == nil {
		logger = logging.Default()
	}

	return &MatchService{
		matchRepo:  matchRepo,
		dispatcher: dispatcher,
		metrics:    metrics,
		ids:        ids,
		policy:     policy,
		logger:     logger,
		now:        time.Now,
	}
}

func (s *MatchService) List(ctx context.Context) ([]match.Match, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.MatchService.List")
	defer span.End()

	items, err := s.matchRepo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list matches: %w", err)
	}
	return items, nil
}

func (s *MatchService) Get(ctx context.Context, matchID string) (match.Match, error) {
	matchID = strings.TrimSpace(matchID)
	if matchID == "" {
		return match.Match{}, fmt.Errorf("%w: match id is required", ErrInvalidInput)
	}
	item, exists, err := s.matchRepo.GetByID(ctx, matchID)
	if err != nil {
		return match.Match{}, fmt.Errorf("get match=%s: %w", matchID, err)
	}
	if !exists {
		return match.Match{}, fmt.Errorf("%w: match=%s", ErrNotFound, matchID)
	}
	return item, nil
}

// Upsert stores fixture details. Scores are untouched; use RecordResult for those.
func (s *MatchService) Upsert(ctx context.Context, input UpsertMatchInput) (match.Match, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.MatchService.Upsert", attribute.String("match_id", input.MatchID))
	defer span.End()

	input.MatchID = strings.TrimSpace(input.MatchID)
	input.HomeTeam = strings.TrimSpace(input.HomeTeam)
	input.AwayTeam = strings.TrimSpace(input.AwayTeam)
	switch {
	case input.MatchID == "":
		return match.Match{}, fmt.Errorf("%w: match id is required", ErrInvalidInput)
	case input.HomeTeam == "" || input.AwayTeam == "":
		return match.Match{}, fmt.Errorf("%w: both team names are required", ErrInvalidInput)
	case input.KickoffAt.IsZero():
		return match.Match{}, fmt.Errorf("%w: kickoff time is required", ErrInvalidInput)
	}

	item := match.Match{
		ID:        input.MatchID,
		HomeTeam:  input.HomeTeam,
		AwayTeam:  input.AwayTeam,
		KickoffAt: input.KickoffAt.UTC(),
		UpdatedAt: s.now().UTC(),
	}

	stored, err := s.matchRepo.UpsertFixture(ctx, item)
	if err != nil {
		return match.Match{}, fmt.Errorf("upsert match=%s: %w", item.ID, err)
	}
	return stored, nil
}

// RecordResult writes the score of a match and feeds the before/after pair to HandleUpdate.
func (s *MatchService) RecordResult(ctx context.Context, input RecordResultInput) (UpdateOutcome, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.MatchService.RecordResult", attribute.String("match_id", input.MatchID))
	defer span.End()

	input.MatchID = strings.TrimSpace(input.MatchID)
	if input.MatchID == "" {
		return UpdateOutcome{}, fmt.Errorf("%w: match id is required", ErrInvalidInput)
	}
	if (input.HomeScore == nil) != (input.AwayScore == nil) {
		return UpdateOutcome{}, fmt.Errorf("%w: home and away scores must be set together", ErrInvalidInput)
	}
	if (input.HomeScore != nil && *input.HomeScore < 0) || (input.AwayScore != nil && *input.AwayScore < 0) {
		return UpdateOutcome{}, fmt.Errorf("%w: scores must be >= 0", ErrInvalidInput)
	}

	current, exists, err := s.matchRepo.GetByID(ctx, input.MatchID)
	if err != nil {
		return UpdateOutcome{}, fmt.Errorf("get match=%s: %w", input.MatchID, err)
	}
	if !exists {
		return UpdateOutcome{}, fmt.Errorf("%w: match=%s", ErrNotFound, input.MatchID)
	}

	after := current.Clone()
	after.HomeScore = input.HomeScore
	after.AwayScore = input.AwayScore
	after.UpdatedAt = s.now().UTC()

	before, _, err := s.matchRepo.Upsert(ctx, after)
	if err != nil {
		err = fmt.Errorf("upsert match result=%s: %w", input.MatchID, err)
		failSpan(span, err)
		return UpdateOutcome{}, err
	}

	eventID, err := s.ids.NewID()
	if err != nil {
		return UpdateOutcome{}, fmt.Errorf("generate event id: %w", err)
	}

	return s.HandleUpdate(ctx, match.UpdateEvent{
		EventID:    eventID,
		Before:     before,
		After:      after,
		OccurredAt: after.UpdatedAt,
	})
}

// HandleUpdate runs the detector and dispatches aggregation when it triggers.
// A non-triggering update is a no-op reported with outcome "skipped".
func (s *MatchService) HandleUpdate(ctx context.Context, event match.UpdateEvent) (UpdateOutcome, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.MatchService.HandleUpdate", attribute.String("match_id", event.After.ID))
	defer span.End()

	if strings.TrimSpace(event.EventID) == "" {
		eventID, err := s.ids.NewID()
		if err != nil {
			return UpdateOutcome{}, fmt.Errorf("generate event id: %w", err)
		}
		event.EventID = eventID
	}

	decision := match.Detect(s.policy, event.Before, event.After)
	s.metrics.ObserveDetection(decision)

	out := UpdateOutcome{
		Match:      event.After,
		EventID:    event.EventID,
		Transition: decision.Transition,
		Triggered:  decision.Triggered,
	}

	if !decision.Triggered {
		out.Outcome = OutcomeSkipped
		s.metrics.ObserveAggregation(AggregationReport{
			MatchID:    event.After.ID,
			Outcome:    OutcomeSkipped,
			Transition: decision.Transition,
			SkipReason: "detector misfire",
		})
		s.logger.InfoContext(ctx, "match update did not trigger aggregation",
			"match_id", event.After.ID,
			"event_id", event.EventID,
			"transition", decision.Transition,
			"policy", s.policy,
			"outcome", OutcomeSkipped,
		)
		return out, nil
	}

	result, _ := event.After.Result()
	task := NewAggregationTask(event.After.ID, result, decision.Transition, event.EventID)
	out.DispatchID = task.DispatchID
	if err := s.dispatcher.DispatchAggregation(ctx, task); err != nil {
		err = fmt.Errorf("dispatch aggregation match=%s: %w", event.After.ID, err)
		failSpan(span, err)
		return out, err
	}

	s.logger.InfoContext(ctx, "aggregation dispatched",
		"match_id", event.After.ID,
		"event_id", event.EventID,
		"dispatch_id", task.DispatchID,
		"transition", decision.Transition,
		"result", result.String(),
	)
	return out, nil
}

// Reaggregate dispatches a fresh aggregation of a finalized match. Safe to repeat.
func (s *MatchService) Reaggregate(ctx context.Context, matchID string) (AggregationTask, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.MatchService.Reaggregate", attribute.String("match_id", matchID))
	defer span.End()

	item, err := s.Get(ctx, matchID)
	if err != nil {
		return AggregationTask{}, err
	}
	result, finalized := item.Result()
	if !finalized {
		return AggregationTask{}, fmt.Errorf("%w: match=%s has no final score", ErrInvalidInput, item.ID)
	}

	task := NewAggregationTask(item.ID, result, match.TransitionNoChange, "")
	task.DispatchID = dedupKey("reaggregate-match", item.ID, s.now(), time.Minute)
	if err := s.dispatcher.DispatchAggregation(ctx, task); err != nil {
		return AggregationTask{}, fmt.Errorf("dispatch reaggregation match=%s: %w", item.ID, err)
	}
	return task, nil
}
