package resilience

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sourcegraph/conc"
)

func TestSingleFlight_CollapsesConcurrentAggregations(t *testing.T) {
	t.Parallel()

	var g SingleFlight
	var runs atomic.Int32
	var sharedSeen atomic.Int32
	gate := make(chan struct{})

	var wg conc.WaitGroup
	for range 20 {
		wg.Go(func() {
			<-gate
			v, err, shared := g.Do("aggregate:m1:2x1", func() (any, error) {
				runs.Add(1)
				time.Sleep(20 * time.Millisecond)
				return 43, nil
			})
			if err != nil || v != 43 {
				t.Errorf("unexpected result v=%v err=%v", v, err)
			}
			if shared {
				sharedSeen.Add(1)
			}
		})
	}
	close(gate)
	wg.Wait()

	if got := runs.Load(); got != 1 {
		t.Fatalf("expected one aggregation run, got %d", got)
	}
	if sharedSeen.Load() == 0 {
		t.Fatalf("expected waiters to report a shared result")
	}
}

func TestSingleFlight_PanicBecomesError(t *testing.T) {
	t.Parallel()

	var g SingleFlight
	_, err, _ := g.Do("boom", func() (any, error) {
		panic("kaboom")
	})
	if err == nil {
		t.Fatalf("expected panic to surface as error")
	}

	v, err, _ := g.Do("boom", func() (any, error) { return 1, nil })
	if err != nil || v != 1 {
		t.Fatalf("expected key to be released after panic, got v=%v err=%v", v, err)
	}
}

func TestSingleFlight_DoContextWaiterGivesUp(t *testing.T) {
	t.Parallel()

	var g SingleFlight
	release := make(chan struct{})
	started := make(chan struct{})
	go func() {
		_, _, _ = g.Do("slow", func() (any, error) {
			close(started)
			<-release
			return nil, nil
		})
	}()
	<-started

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err, shared := g.DoContext(ctx, "slow", func() (any, error) { return nil, nil })
	close(release)

	if !errors.Is(err, context.Canceled) || !shared {
		t.Fatalf("expected cancelled shared wait, got err=%v shared=%v", err, shared)
	}
}
