package store

import (
	"context"

	"github.com/google/uuid"

	"keohams/internal/kyc/models"
	dErrors "keohams/pkg/domainerrors"
)

// ErrNotFound keeps storage-level 404s consistent across implementations.
var ErrNotFound = dErrors.New(dErrors.CodeNotFound, "submission not found")

// Store persists KYC submissions. Rows are inserted and review-updated, never
// deleted.
type Store interface {
	Insert(ctx context.Context, submission *models.Submission) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Submission, error)
	// GetForUpdate reads a submission holding a lock for the surrounding
	// transaction.
	GetForUpdate(ctx context.Context, id uuid.UUID) (*models.Submission, error)
	// LatestByUser returns the most recently submitted row or ErrNotFound.
	LatestByUser(ctx context.Context, userID uuid.UUID) (*models.Submission, error)
	// List filters by status when status != "" and paginates newest first.
	List(ctx context.Context, status models.SubmissionStatus, page, pageSize int) ([]*models.Submission, int, error)
	// UpdateReview writes the review fields of a submission.
	UpdateReview(ctx context.Context, submission *models.Submission) error
}
