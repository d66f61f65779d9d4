package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/palmeirasbolao-jpg/Bolao-Alviverde/internal/domain/guess"
	"github.com/palmeirasbolao-jpg/Bolao-Alviverde/internal/domain/jobscheduler"
	"github.com/palmeirasbolao-jpg/Bolao-Alviverde/internal/domain/match"
	"github.com/palmeirasbolao-jpg/Bolao-Alviverde/internal/domain/ranking"
)

func seedStore(t *testing.T) *Store {
	t.Helper()
	ctx := context.Background()
	store := NewStore()
	kickoff := time.Date(2026, time.April, 12, 19, 0, 0, 0, time.UTC)
	if _, _, err := NewMatchRepository(store).Upsert(ctx, match.Match{ID: "m1", HomeTeam: "Palmeiras", AwayTeam: "Santos", KickoffAt: kickoff}); err != nil {
		t.Fatalf("seed match: %v", err)
	}
	guesses := NewGuessRepository(store)
	for _, item := range []guess.Guess{
		{UserID: "ana", MatchID: "m1", Home: 2, Away: 1},
		{UserID: "bia", MatchID: "m1", Home: 0, Away: 0},
	} {
		if err := guesses.Upsert(ctx, item); err != nil {
			t.Fatalf("seed guess: %v", err)
		}
	}
	return store
}

func TestAggregationStore_CommitsOnSuccess(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := seedStore(t)
	scoredAt := time.Date(2026, time.April, 12, 21, 0, 0, 0, time.UTC)

	err := NewAggregationStore(store).RunAggregation(ctx, func(ctx context.Context, tx ranking.AggregationTx) error {
		if err := tx.SaveGuessPoints(ctx, []guess.Award{{UserID: "ana", MatchID: "m1", Points: 25}, {UserID: "ghost", MatchID: "m1", Points: 5}}, scoredAt); err != nil {
			return err
		}
		scored, err := tx.ListScoredGuesses(ctx, "ana")
		if err != nil {
			return err
		}
		if len(scored) != 1 || scored[0].Points != 25 || scored[0].KickoffAt.IsZero() {
			t.Errorf("staged guess points should be visible inside the batch: %+v", scored)
		}
		if err := tx.CreateUserScore(ctx, ranking.UserScore{UserID: "ana"}); err != nil {
			return err
		}
		return tx.SaveUserScore(ctx, ranking.UserScore{UserID: "ana", TotalScore: 25})
	})
	if err != nil {
		t.Fatalf("run aggregation: %v", err)
	}

	item, exists, _ := NewRankingRepository(store).Get(ctx, "ana")
	if !exists || item.TotalScore != 25 || item.Version != 2 {
		t.Fatalf("unexpected committed aggregate: %+v", item)
	}
	stored, _, _ := NewGuessRepository(store).Get(ctx, "ana", "m1")
	if stored.Points != 25 || stored.ScoredAt == nil || !stored.ScoredAt.Equal(scoredAt) {
		t.Fatalf("unexpected committed guess: %+v", stored)
	}
	if _, exists, _ := NewGuessRepository(store).Get(ctx, "ghost", "m1"); exists {
		t.Fatalf("awards for unknown guesses must be ignored")
	}
}

func TestAggregationStore_DiscardsOnFailure(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := seedStore(t)
	boom := errors.New("boom")

	err := NewAggregationStore(store).RunAggregation(ctx, func(ctx context.Context, tx ranking.AggregationTx) error {
		if err := tx.SaveGuessPoints(ctx, []guess.Award{{UserID: "ana", MatchID: "m1", Points: 25}}, time.Now()); err != nil {
			return err
		}
		if err := tx.CreateUserScore(ctx, ranking.UserScore{UserID: "ana", TotalScore: 25}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}

	if _, exists, _ := NewRankingRepository(store).Get(ctx, "ana"); exists {
		t.Fatalf("failed batch must not create aggregates")
	}
	stored, _, _ := NewGuessRepository(store).Get(ctx, "ana", "m1")
	if stored.Points != 0 || stored.ScoredAt != nil {
		t.Fatalf("failed batch must not score guesses: %+v", stored)
	}
}

func TestAggregationStore_WithinUserRollsBackOneUser(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := seedStore(t)
	if _, err := NewRankingRepository(store).Create(ctx, ranking.UserScore{UserID: "bia", TotalScore: 7}); err != nil {
		t.Fatalf("seed score: %v", err)
	}

	err := NewAggregationStore(store).RunAggregation(ctx, func(ctx context.Context, tx ranking.AggregationTx) error {
		if err := tx.WithinUser(ctx, "ana", func(ctx context.Context) error {
			return tx.CreateUserScore(ctx, ranking.UserScore{UserID: "ana", TotalScore: 25})
		}); err != nil {
			return err
		}
		userErr := tx.WithinUser(ctx, "bia", func(ctx context.Context) error {
			if err := tx.SaveUserScore(ctx, ranking.UserScore{UserID: "bia", TotalScore: 99}); err != nil {
				return err
			}
			return errors.New("bia failed")
		})
		if userErr == nil {
			t.Errorf("expected bia's error to be returned")
		}
		current, _, _ := tx.LockUserScore(ctx, "bia")
		if current.TotalScore != 7 {
			t.Errorf("bia's staged write should be discarded, got %+v", current)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("run aggregation: %v", err)
	}

	rankings := NewRankingRepository(store)
	ana, _, _ := rankings.Get(ctx, "ana")
	bia, _, _ := rankings.Get(ctx, "bia")
	if ana.TotalScore != 25 || bia.TotalScore != 7 || bia.Version != 1 {
		t.Fatalf("unexpected aggregates ana=%+v bia=%+v", ana, bia)
	}
}

func TestAggregationStore_CancelledContextDiscards(t *testing.T) {
	t.Parallel()

	store := seedStore(t)
	ctx, cancel := context.WithCancel(context.Background())

	err := NewAggregationStore(store).RunAggregation(ctx, func(ctx context.Context, tx ranking.AggregationTx) error {
		cancel()
		return tx.CreateUserScore(ctx, ranking.UserScore{UserID: "ana"})
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if _, exists, _ := NewRankingRepository(store).Get(context.Background(), "ana"); exists {
		t.Fatalf("cancelled batch must not commit")
	}
}

func TestDispatchRepository_UpsertAndList(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := NewDispatchRepository(NewStore())
	base := time.Date(2026, time.April, 12, 21, 0, 0, 0, time.UTC)

	if err := repo.UpsertEvent(ctx, jobscheduler.DispatchEvent{MatchID: "m1"}); err == nil {
		t.Fatalf("expected error for empty dispatch id")
	}

	payload := map[string]any{"match_id": "m1"}
	events := []jobscheduler.DispatchEvent{
		{DispatchID: "aggregate-match-m1-evt-1", MatchID: "m1", Status: jobscheduler.StatusSent, Payload: payload, OccurredAt: base},
		{DispatchID: "reaggregate-match-m1-20260412T211000Z", MatchID: "m1", Status: jobscheduler.StatusSent, OccurredAt: base.Add(10 * time.Minute)},
		{DispatchID: "aggregate-match-m2-evt-2", MatchID: "m2", Status: jobscheduler.StatusSent, OccurredAt: base},
		{DispatchID: "aggregate-match-m1-evt-1", MatchID: "m1", Status: jobscheduler.StatusCompleted, Payload: payload, OccurredAt: base.Add(time.Minute)},
	}
	for _, event := range events {
		if err := repo.UpsertEvent(ctx, event); err != nil {
			t.Fatalf("upsert event: %v", err)
		}
	}
	payload["match_id"] = "mutated"

	items, err := repo.ListByMatch(ctx, "m1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected two dispatches for m1, got %+v", items)
	}
	if items[0].DispatchID != "aggregate-match-m1-evt-1" || items[0].Status != jobscheduler.StatusCompleted {
		t.Fatalf("unexpected first dispatch: %+v", items[0])
	}
	if items[0].Payload["match_id"] != "m1" {
		t.Fatalf("stored payload must be a copy, got %v", items[0].Payload)
	}
}
