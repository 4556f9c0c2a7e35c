package store

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"keohams/internal/verification/models"
	"keohams/pkg/requestcontext"
)

// MemoryStore is the in-memory Store used by unit tests and local wiring.
// Version semantics match the Postgres store so optimistic-concurrency paths
// are exercised the same way.
type MemoryStore struct {
	mu     sync.RWMutex
	states map[uuid.UUID]models.State
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{states: make(map[uuid.UUID]models.State)}
}

func (s *MemoryStore) Ensure(ctx context.Context, userID uuid.UUID) (*models.State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if state, ok := s.states[userID]; ok {
		return cloneState(state), nil
	}
	state := *models.NewState(userID, requestcontext.Now(ctx))
	s.states[userID] = state
	return cloneState(state), nil
}

func (s *MemoryStore) Get(_ context.Context, userID uuid.UUID) (*models.State, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	state, ok := s.states[userID]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneState(state), nil
}

// GetForUpdate behaves like Get; the transaction manager's per-user lock
// provides the mutual exclusion row locks give in Postgres.
func (s *MemoryStore) GetForUpdate(ctx context.Context, userID uuid.UUID) (*models.State, error) {
	return s.Get(ctx, userID)
}

func (s *MemoryStore) Update(ctx context.Context, state *models.State) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.states[state.UserID]
	if !ok {
		return ErrNotFound
	}
	if current.Version != state.Version {
		return ErrVersionConflict
	}
	updated := *state
	updated.Version++
	updated.UpdatedAt = requestcontext.Now(ctx)
	s.states[state.UserID] = updated
	state.Version = updated.Version
	return nil
}

func cloneState(state models.State) *models.State {
	clone := state
	if state.LockedFrom != nil {
		prev := *state.LockedFrom
		clone.LockedFrom = &prev
	}
	return &clone
}
