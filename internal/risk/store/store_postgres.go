package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"keohams/internal/risk/models"
	txcontext "keohams/pkg/platform/tx"
)

// PostgresStore persists the ledger in the risk_events table.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *PostgresStore) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

func (s *PostgresStore) Append(ctx context.Context, event *models.Event) error {
	_, err := s.execer(ctx).ExecContext(ctx, `
		INSERT INTO risk_events (id, user_id, event_type, delta, resulting_score, resulting_level, client_ip, user_agent, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`,
		event.ID,
		event.UserID,
		event.Type,
		event.Delta,
		event.ResultingScore,
		event.ResultingLevel,
		event.Context.ClientIP,
		event.Context.UserAgent,
		event.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("append risk event: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListByUser(ctx context.Context, userID uuid.UUID, page, pageSize int) ([]*models.Event, int, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}

	var total int
	err := s.execer(ctx).QueryRowContext(ctx, `
		SELECT COUNT(*) FROM risk_events WHERE user_id = $1
	`, userID).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("count risk events: %w", err)
	}

	rows, err := s.execer(ctx).QueryContext(ctx, `
		SELECT id, user_id, event_type, delta, resulting_score, resulting_level, client_ip, user_agent, created_at
		FROM risk_events
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3
	`, userID, pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, 0, fmt.Errorf("list risk events: %w", err)
	}
	defer rows.Close()

	var events []*models.Event
	for rows.Next() {
		var event models.Event
		if err := rows.Scan(
			&event.ID,
			&event.UserID,
			&event.Type,
			&event.Delta,
			&event.ResultingScore,
			&event.ResultingLevel,
			&event.Context.ClientIP,
			&event.Context.UserAgent,
			&event.CreatedAt,
		); err != nil {
			return nil, 0, fmt.Errorf("scan risk event: %w", err)
		}
		events = append(events, &event)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate risk events: %w", err)
	}
	return events, total, nil
}
