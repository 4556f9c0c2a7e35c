package store

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"keohams/internal/risk/models"
)

// MemoryStore keeps the ledger in memory for unit tests and local wiring.
type MemoryStore struct {
	mu     sync.RWMutex
	events map[uuid.UUID][]models.Event
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{events: make(map[uuid.UUID][]models.Event)}
}

func (s *MemoryStore) Append(_ context.Context, event *models.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events[event.UserID] = append(s.events[event.UserID], *event)
	return nil
}

func (s *MemoryStore) ListByUser(_ context.Context, userID uuid.UUID, page, pageSize int) ([]*models.Event, int, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	all := s.events[userID]
	total := len(all)

	// Newest first.
	start := (page - 1) * pageSize
	if start >= total {
		return nil, total, nil
	}
	end := start + pageSize
	if end > total {
		end = total
	}
	out := make([]*models.Event, 0, end-start)
	for i := total - 1 - start; i > total-1-end; i-- {
		event := all[i]
		out = append(out, &event)
	}
	return out, total, nil
}
