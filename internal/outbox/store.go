package outbox

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	txcontext "keohams/pkg/platform/tx"
)

// Store persists outbox rows. Enqueue joins the caller's transaction so an
// event commits with the state change it describes, or not at all.
type Store interface {
	Enqueue(ctx context.Context, event *Event) error
	// FetchUnpublished returns up to limit rows with no published marker,
	// oldest first.
	FetchUnpublished(ctx context.Context, limit int) ([]*Event, error)
	// MarkPublished stamps rows as handed to the publisher.
	MarkPublished(ctx context.Context, ids []uuid.UUID, at time.Time) error
}

// PostgresStore is the production outbox over the outbox table.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *PostgresStore) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

func (s *PostgresStore) Enqueue(ctx context.Context, event *Event) error {
	_, err := s.execer(ctx).ExecContext(ctx, `
		INSERT INTO outbox (id, event_type, user_id, payload, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, event.ID, event.EventType, event.UserID, event.Payload, event.CreatedAt)
	if err != nil {
		return fmt.Errorf("enqueue outbox event: %w", err)
	}
	return nil
}

func (s *PostgresStore) FetchUnpublished(ctx context.Context, limit int) ([]*Event, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, event_type, user_id, payload, created_at
		FROM outbox
		WHERE published_at IS NULL
		ORDER BY created_at ASC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("fetch outbox events: %w", err)
	}
	defer rows.Close()

	var events []*Event
	for rows.Next() {
		var event Event
		if err := rows.Scan(&event.ID, &event.EventType, &event.UserID, &event.Payload, &event.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan outbox event: %w", err)
		}
		events = append(events, &event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate outbox events: %w", err)
	}
	return events, nil
}

func (s *PostgresStore) MarkPublished(ctx context.Context, ids []uuid.UUID, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := s.db.ExecContext(ctx, `
		UPDATE outbox SET published_at = $1 WHERE id = ANY($2)
	`, at, ids)
	if err != nil {
		return fmt.Errorf("mark outbox published: %w", err)
	}
	return nil
}

// MemoryStore backs unit tests and in-memory wiring.
type MemoryStore struct {
	mu     sync.Mutex
	events []*Event
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Enqueue(_ context.Context, event *Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	clone := *event
	s.events = append(s.events, &clone)
	return nil
}

func (s *MemoryStore) FetchUnpublished(_ context.Context, limit int) ([]*Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*Event
	for _, event := range s.events {
		if event.PublishedAt == nil {
			clone := *event
			out = append(out, &clone)
			if len(out) >= limit {
				break
			}
		}
	}
	return out, nil
}

func (s *MemoryStore) MarkPublished(_ context.Context, ids []uuid.UUID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	marked := make(map[uuid.UUID]bool, len(ids))
	for _, id := range ids {
		marked[id] = true
	}
	for _, event := range s.events {
		if marked[event.ID] {
			stamped := at
			event.PublishedAt = &stamped
		}
	}
	return nil
}

// All returns every stored event, for test assertions.
func (s *MemoryStore) All() []*Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Event, 0, len(s.events))
	for _, event := range s.events {
		clone := *event
		out = append(out, &clone)
	}
	return out
}
