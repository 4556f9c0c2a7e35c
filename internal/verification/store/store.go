package store

import (
	"context"

	"github.com/google/uuid"

	"keohams/internal/verification/models"
	dErrors "keohams/pkg/domainerrors"
)

// ErrNotFound keeps storage-level 404s consistent across implementations.
var ErrNotFound = dErrors.New(dErrors.CodeNotFound, "verification state not found")

// ErrVersionConflict signals a lost-update race; callers retry or surface 409.
var ErrVersionConflict = dErrors.New(dErrors.CodeConflict, "verification state modified concurrently")

// Store persists the canonical verification state, one row per user.
type Store interface {
	// Ensure returns the user's row, creating the default UNVERIFIED row if
	// absent. Safe for concurrent first access: the insert relies on the
	// primary-key constraint, never on a pre-check.
	Ensure(ctx context.Context, userID uuid.UUID) (*models.State, error)
	// Get returns the row or ErrNotFound.
	Get(ctx context.Context, userID uuid.UUID) (*models.State, error)
	// GetForUpdate reads the row holding a lock for the duration of the
	// surrounding transaction.
	GetForUpdate(ctx context.Context, userID uuid.UUID) (*models.State, error)
	// Update writes the row guarded by state.Version, returning
	// ErrVersionConflict on a stale write. The stored version is incremented.
	Update(ctx context.Context, state *models.State) error
}
