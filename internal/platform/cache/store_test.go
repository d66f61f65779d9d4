package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestStore_GetOrLoad_UsesSingleFlight(t *testing.T) {
	t.Parallel()

	store := NewStore(time.Minute)
	var calls atomic.Int32

	loader := func(context.Context) (any, error) {
		calls.Add(1)
		time.Sleep(20 * time.Millisecond)
		return "value", nil
	}

	const workers = 32
	start := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(workers)
	errCh := make(chan error, workers)

	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			<-start
			v, err := store.GetOrLoad(context.Background(), "ranking:overall:", loader)
			if err != nil {
				errCh <- err
				return
			}
			if got, _ := v.(string); got != "value" {
				errCh <- errors.New("unexpected loaded value")
			}
		}()
	}

	close(start)
	wg.Wait()
	close(errCh)
	for err := range errCh {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := calls.Load(); got != 1 {
		t.Fatalf("loader called %d times, want 1", got)
	}
}

func TestStore_Expiry(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	store := NewStore(time.Minute)
	store.now = func() time.Time { return now }

	store.Set(context.Background(), "k", 1)
	if _, ok := store.Get(context.Background(), "k"); !ok {
		t.Fatalf("expected fresh entry")
	}

	now = now.Add(time.Minute)
	if _, ok := store.Get(context.Background(), "k"); ok {
		t.Fatalf("expected entry to expire at ttl")
	}
	if store.Len() != 0 {
		t.Fatalf("expected expired entry to be evicted")
	}
}

func TestStore_DeletePrefix(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewStore(0)
	store.Set(ctx, "ranking:overall:", 1)
	store.Set(ctx, "ranking:monthly:2026-06", 2)
	store.Set(ctx, "match:m1", 3)

	if removed := store.DeletePrefix(ctx, "ranking:"); removed != 2 {
		t.Fatalf("expected 2 removed, got %d", removed)
	}
	if _, ok := store.Get(ctx, "match:m1"); !ok {
		t.Fatalf("expected unrelated key to survive")
	}
}

func TestLoad_Typed(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewStore(time.Minute)
	errLoad := errors.New("db down")

	if _, err := Load(ctx, store, "k", func(context.Context) ([]string, error) { return nil, errLoad }); !errors.Is(err, errLoad) {
		t.Fatalf("expected loader error, got %v", err)
	}

	got, err := Load(ctx, store, "k", func(context.Context) ([]string, error) { return []string{"a"}, nil })
	if err != nil || len(got) != 1 {
		t.Fatalf("expected loaded slice, got %v err=%v", got, err)
	}

	if _, err := Load(ctx, store, "k", func(context.Context) (int, error) { return 0, nil }); err == nil {
		t.Fatalf("expected type mismatch error")
	}

	direct, err := Load(ctx, nil, "k", func(context.Context) (int, error) { return 7, nil })
	if err != nil || direct != 7 {
		t.Fatalf("nil store should call loader, got %d err=%v", direct, err)
	}
}

func TestStore_InvalidationDuringLoadIsNotCached(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewStore(time.Minute)

	v, err := store.GetOrLoad(ctx, "match:list", func(ctx context.Context) (any, error) {
		// A write lands while the stale read is in flight.
		store.DeletePrefix(ctx, "match:")
		return "stale", nil
	})
	if err != nil || v != "stale" {
		t.Fatalf("caller still gets its load, got %v err=%v", v, err)
	}
	if _, ok := store.Get(ctx, "match:list"); ok {
		t.Fatalf("load that raced an invalidation must not be cached")
	}

	v, err = store.GetOrLoad(ctx, "match:list", func(context.Context) (any, error) { return "fresh", nil })
	if err != nil || v != "fresh" {
		t.Fatalf("unexpected reload: %v err=%v", v, err)
	}
	if cached, ok := store.Get(ctx, "match:list"); !ok || cached != "fresh" {
		t.Fatalf("expected fresh value cached, got %v ok=%v", cached, ok)
	}
}
