package store

import (
	"context"

	"github.com/google/uuid"

	"keohams/internal/risk/models"
)

// Store is the append-only risk event ledger. Rows are never updated or
// deleted.
type Store interface {
	Append(ctx context.Context, event *models.Event) error
	// ListByUser returns events newest first.
	ListByUser(ctx context.Context, userID uuid.UUID, page, pageSize int) ([]*models.Event, int, error)
}
