package memory

import (
	"context"

	"github.com/palmeirasbolao-jpg/Bolao-Alviverde/internal/domain/jobscheduler"
)

type DispatchRepository struct {
	store *Store
}

func NewDispatchRepository(store *Store) *DispatchRepository {
	return &DispatchRepository{store: store}
}

func (r *DispatchRepository) UpsertEvent(_ context.Context, event jobscheduler.DispatchEvent) error {
	if err := event.Validate(); err != nil {
		return err
	}

	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	r.store.dispatches[event.DispatchID] = event.Clone()
	return nil
}

func (r *DispatchRepository) ListByMatch(_ context.Context, matchID string) ([]jobscheduler.DispatchEvent, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	out := make([]jobscheduler.DispatchEvent, 0)
	for _, event := range r.store.dispatches {
		if event.MatchID == matchID {
			out = append(out, event.Clone())
		}
	}
	jobscheduler.SortTimeline(out)
	return out, nil
}
