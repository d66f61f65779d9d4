package eventbus

import (
	"context"
	"testing"
	"time"

	"github.com/palmeirasbolao-jpg/Bolao-Alviverde/internal/domain/guess"
	"github.com/palmeirasbolao-jpg/Bolao-Alviverde/internal/domain/match"
	"github.com/palmeirasbolao-jpg/Bolao-Alviverde/internal/infrastructure/repository/memory"
	"github.com/palmeirasbolao-jpg/Bolao-Alviverde/internal/platform/logging"
	"github.com/palmeirasbolao-jpg/Bolao-Alviverde/internal/usecase"
)

// signallingHandler reports every finished aggregation so the test can step
// through result edits one at a time.
type signallingHandler struct {
	next usecase.AggregationTaskHandler
	done chan usecase.AggregationTask
}

func (h signallingHandler) HandleTask(ctx context.Context, task usecase.AggregationTask) (usecase.AggregationReport, error) {
	report, err := h.next.HandleTask(ctx, task)
	h.done <- task
	return report, err
}

type scoringPipeline struct {
	matches *usecase.MatchService
	guesses *memory.GuessRepository
	done    chan usecase.AggregationTask
}

func newScoringPipeline(t *testing.T, policy match.RescorePolicy) scoringPipeline {
	t.Helper()

	ctx := context.Background()
	logger := logging.NewNop()
	store := memory.NewStore()
	matchRepo := memory.NewMatchRepository(store)
	guessRepo := memory.NewGuessRepository(store)
	dispatchRepo := memory.NewDispatchRepository(store)

	kickoff := time.Date(2026, time.April, 12, 19, 0, 0, 0, time.UTC)
	if _, err := matchRepo.UpsertFixture(ctx, match.Match{ID: "m1", HomeTeam: "Palmeiras", AwayTeam: "Santos", KickoffAt: kickoff}); err != nil {
		t.Fatalf("seed match: %v", err)
	}
	if err := guessRepo.Upsert(ctx, guess.Guess{UserID: "ana", MatchID: "m1", Home: 2, Away: 1}); err != nil {
		t.Fatalf("seed guess: %v", err)
	}

	aggregation := usecase.NewAggregationService(matchRepo, guessRepo, memory.NewAggregationStore(store), dispatchRepo, nil, nil, usecase.AggregationConfig{}, logger)
	handler := signallingHandler{next: aggregation, done: make(chan usecase.AggregationTask, 8)}
	bus := startBus(t, handler, nil)

	dispatcher := usecase.NewQueueDispatcher(bus, dispatchRepo, logger)
	return scoringPipeline{
		matches: usecase.NewMatchService(matchRepo, dispatcher, nil, nil, policy, logger),
		guesses: guessRepo,
		done:    handler.done,
	}
}

func (p scoringPipeline) record(t *testing.T, home, away *int) {
	t.Helper()

	out, err := p.matches.RecordResult(context.Background(), usecase.RecordResultInput{MatchID: "m1", HomeScore: home, AwayScore: away})
	if err != nil {
		t.Fatalf("record result: %v", err)
	}
	if !out.Triggered {
		return
	}
	select {
	case task := <-p.done:
		if task.DispatchID != out.DispatchID {
			t.Fatalf("handled %s, dispatched %s", task.DispatchID, out.DispatchID)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("aggregation %s was not delivered", out.DispatchID)
	}
}

func (p scoringPipeline) points(t *testing.T) int {
	t.Helper()

	item, ok, err := p.guesses.Get(context.Background(), "ana", "m1")
	if err != nil || !ok {
		t.Fatalf("get guess: ok=%v err=%v", ok, err)
	}
	return item.Points
}

func score(v int) *int { return &v }

func TestBus_ResultRestoredToEarlierScoreIsRescored(t *testing.T) {
	t.Run("finalize only with cleared results", func(t *testing.T) {
		p := newScoringPipeline(t, match.PolicyFinalizeOnly)

		steps := []struct {
			home, away *int
			want       int
		}{
			{score(2), score(1), 25},
			{nil, nil, 25},
			{score(3), score(1), 15},
			{nil, nil, 15},
			{score(2), score(1), 25},
		}
		for i, step := range steps {
			p.record(t, step.home, step.away)
			if got := p.points(t); got != step.want {
				t.Fatalf("step %d: expected %d points, got %d", i, step.want, got)
			}
		}
	})

	t.Run("on correction", func(t *testing.T) {
		p := newScoringPipeline(t, match.PolicyOnCorrection)

		for i, step := range []struct{ home, away, want int }{
			{2, 1, 25},
			{3, 1, 15},
			{2, 1, 25},
		} {
			p.record(t, score(step.home), score(step.away))
			if got := p.points(t); got != step.want {
				t.Fatalf("step %d: expected %d points, got %d", i, step.want, got)
			}
		}
	})
}
