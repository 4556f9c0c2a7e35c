package store

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"keohams/internal/kyc/models"
)

// MemoryStore is the in-memory Store used by unit tests and local wiring.
type MemoryStore struct {
	mu          sync.RWMutex
	submissions map[uuid.UUID]models.Submission
	order       []uuid.UUID
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{submissions: make(map[uuid.UUID]models.Submission)}
}

func (s *MemoryStore) Insert(_ context.Context, submission *models.Submission) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.submissions[submission.ID] = *submission
	s.order = append(s.order, submission.ID)
	return nil
}

func (s *MemoryStore) GetByID(_ context.Context, id uuid.UUID) (*models.Submission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	submission, ok := s.submissions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneSubmission(submission), nil
}

// GetForUpdate behaves like GetByID; the transaction manager's per-user lock
// stands in for row locks.
func (s *MemoryStore) GetForUpdate(ctx context.Context, id uuid.UUID) (*models.Submission, error) {
	return s.GetByID(ctx, id)
}

func (s *MemoryStore) LatestByUser(_ context.Context, userID uuid.UUID) (*models.Submission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for i := len(s.order) - 1; i >= 0; i-- {
		submission := s.submissions[s.order[i]]
		if submission.UserID == userID {
			return cloneSubmission(submission), nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) List(_ context.Context, status models.SubmissionStatus, page, pageSize int) ([]*models.Submission, int, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []models.Submission
	for _, id := range s.order {
		submission := s.submissions[id]
		if status == "" || submission.Status == status {
			matched = append(matched, submission)
		}
	}
	// Newest first, matching the Postgres ordering.
	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].SubmittedAt.After(matched[j].SubmittedAt)
	})

	total := len(matched)
	start := (page - 1) * pageSize
	if start >= total {
		return nil, total, nil
	}
	end := start + pageSize
	if end > total {
		end = total
	}
	out := make([]*models.Submission, 0, end-start)
	for _, submission := range matched[start:end] {
		out = append(out, cloneSubmission(submission))
	}
	return out, total, nil
}

func (s *MemoryStore) UpdateReview(_ context.Context, submission *models.Submission) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.submissions[submission.ID]; !ok {
		return ErrNotFound
	}
	s.submissions[submission.ID] = *submission
	return nil
}

func cloneSubmission(submission models.Submission) *models.Submission {
	clone := submission
	if submission.ReviewerID != nil {
		id := *submission.ReviewerID
		clone.ReviewerID = &id
	}
	if submission.ReviewedAt != nil {
		at := *submission.ReviewedAt
		clone.ReviewedAt = &at
	}
	return &clone
}
