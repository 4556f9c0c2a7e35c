// Package service implements KYC submission intake and the admin review
// gate. A review updates the submission row and cascades to the canonical
// verification state, so both writes run in a single transaction.
package service

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	kmetrics "keohams/internal/kyc/metrics"
	"keohams/internal/kyc/models"
	kstore "keohams/internal/kyc/store"
	"keohams/internal/outbox"
	riskmodels "keohams/internal/risk/models"
	vmodels "keohams/internal/verification/models"
	dErrors "keohams/pkg/domainerrors"
	txpkg "keohams/pkg/platform/tx"
	"keohams/pkg/requestcontext"
)

// StateTransitioner is the verification surface the KYC flow drives. It must
// operate inside the caller's transaction.
type StateTransitioner interface {
	TransitionTx(ctx context.Context, userID uuid.UUID, to vmodels.Status) (*vmodels.State, error)
	EvictStatus(ctx context.Context, userID uuid.UUID)
}

// RiskRecorder feeds review decisions into the risk ledger after the review
// transaction commits. May be nil to disable.
type RiskRecorder interface {
	Apply(ctx context.Context, userID uuid.UUID, eventType riskmodels.EventType, delta int) (*riskmodels.Event, error)
}

// Service handles submissions and reviews.
type Service struct {
	store   kstore.Store
	states  StateTransitioner
	risk    RiskRecorder
	outbox  outbox.Store
	txm     txpkg.Manager
	logger  *slog.Logger
	metrics *kmetrics.Metrics
	tracer  trace.Tracer
}

func New(
	store kstore.Store,
	states StateTransitioner,
	risk RiskRecorder,
	outboxStore outbox.Store,
	txm txpkg.Manager,
	logger *slog.Logger,
	metrics *kmetrics.Metrics,
) *Service {
	return &Service{
		store:   store,
		states:  states,
		risk:    risk,
		outbox:  outboxStore,
		txm:     txm,
		logger:  logger,
		metrics: metrics,
		tracer:  otel.Tracer("keohams/kyc"),
	}
}

// Submit validates the document bundle and records a PENDING submission,
// moving the canonical state to KYC_PENDING. A user may submit repeatedly;
// the most recent row is the current attempt.
func (s *Service) Submit(ctx context.Context, userID uuid.UUID, bundle models.DocumentBundle, notes string) (*models.Submission, error) {
	ctx, span := s.tracer.Start(ctx, "kyc.Submit")
	defer span.End()

	if err := bundle.Validate(); err != nil {
		return nil, err
	}

	submission := &models.Submission{
		ID:          uuid.New(),
		UserID:      userID,
		Status:      models.SubmissionPending,
		Documents:   bundle,
		Notes:       notes,
		SubmittedAt: requestcontext.Now(ctx),
	}
	err := s.txm.RunInTx(txpkg.WithUserKey(ctx, userID.String()), func(ctx context.Context) error {
		if _, err := s.states.TransitionTx(ctx, userID, vmodels.StatusKYCPending); err != nil {
			return err
		}
		if err := s.store.Insert(ctx, submission); err != nil {
			return err
		}
		return s.enqueue(ctx, outbox.EventKYCSubmitted, submission, nil)
	})
	if err != nil {
		return nil, err
	}

	s.states.EvictStatus(ctx, userID)
	s.metrics.RecordSubmission()
	s.logger.InfoContext(ctx, "kyc submission created",
		"submission_id", submission.ID.String(),
		"user_id", userID.String(),
		"request_id", requestcontext.RequestID(ctx),
	)
	return submission, nil
}

// Review applies an admin decision to a PENDING submission. The submission
// update and the verification-state cascade commit together or not at all.
// Reviewing a terminal submission fails with CodeConflict and writes nothing.
func (s *Service) Review(ctx context.Context, submissionID uuid.UUID, decision models.Decision, reviewerID uuid.UUID, notes string) (*models.Submission, error) {
	ctx, span := s.tracer.Start(ctx, "kyc.Review")
	defer span.End()

	// Load once outside the transaction to learn the owning user; re-read
	// under lock inside.
	peek, err := s.store.GetByID(ctx, submissionID)
	if err != nil {
		return nil, err
	}
	userID := peek.UserID

	var submission *models.Submission
	err = s.txm.RunInTx(txpkg.WithUserKey(ctx, userID.String()), func(ctx context.Context) error {
		var err error
		submission, err = s.store.GetForUpdate(ctx, submissionID)
		if err != nil {
			return err
		}
		if submission.Status != models.SubmissionPending {
			return dErrors.Newf(dErrors.CodeConflict, "submission already %s", submission.Status)
		}

		now := requestcontext.Now(ctx)
		submission.ReviewerID = &reviewerID
		submission.ReviewNotes = notes
		submission.ReviewedAt = &now

		var (
			target    vmodels.Status
			eventType string
		)
		switch decision {
		case models.DecisionApproved:
			submission.Status = models.SubmissionApproved
			target = vmodels.StatusKYCVerified
			eventType = outbox.EventKYCApproved
		case models.DecisionRejected:
			submission.Status = models.SubmissionRejected
			target = vmodels.StatusRejected
			eventType = outbox.EventKYCRejected
		default:
			return dErrors.Newf(dErrors.CodeBadRequest, "invalid decision %q", decision)
		}

		if err := s.store.UpdateReview(ctx, submission); err != nil {
			return err
		}
		if _, err := s.states.TransitionTx(ctx, submission.UserID, target); err != nil {
			return err
		}
		return s.enqueue(ctx, eventType, submission, &reviewerID)
	})
	if err != nil {
		return nil, err
	}

	s.states.EvictStatus(ctx, userID)
	s.metrics.RecordReview(string(decision))
	if submission.ReviewedAt != nil {
		s.metrics.ObserveReviewLatency(submission.ReviewedAt.Sub(submission.SubmittedAt).Seconds())
	}
	s.recordRiskEvent(ctx, userID, decision)
	s.logger.InfoContext(ctx, "kyc submission reviewed",
		"submission_id", submission.ID.String(),
		"user_id", userID.String(),
		"decision", string(decision),
		"reviewer_id", reviewerID.String(),
		"request_id", requestcontext.RequestID(ctx),
	)
	return submission, nil
}

// Current returns the user's most recent submission.
func (s *Service) Current(ctx context.Context, userID uuid.UUID) (*models.Submission, error) {
	return s.store.LatestByUser(ctx, userID)
}

// List pages through submissions for admin review queues.
func (s *Service) List(ctx context.Context, status models.SubmissionStatus, page, pageSize int) ([]*models.Submission, int, error) {
	if status != "" {
		switch status {
		case models.SubmissionPending, models.SubmissionApproved, models.SubmissionRejected:
		default:
			return nil, 0, dErrors.Newf(dErrors.CodeBadRequest, "invalid status filter %q", status)
		}
	}
	return s.store.List(ctx, status, page, pageSize)
}

// IsKYCApproved reports whether the user's latest submission is APPROVED.
//
// Deprecated: this scans submission history and can disagree with the
// canonical verification state. Route guards must use the verification
// service's Gate instead; this remains only for admin listing parity.
func (s *Service) IsKYCApproved(ctx context.Context, userID uuid.UUID) (bool, error) {
	latest, err := s.store.LatestByUser(ctx, userID)
	if dErrors.Is(err, dErrors.CodeNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return latest.Status == models.SubmissionApproved, nil
}

type submissionEventPayload struct {
	SubmissionID string `json:"submission_id"`
	UserID       string `json:"user_id"`
	Status       string `json:"status"`
	ReviewerID   string `json:"reviewer_id,omitempty"`
}

func (s *Service) enqueue(ctx context.Context, eventType string, submission *models.Submission, reviewerID *uuid.UUID) error {
	payload := submissionEventPayload{
		SubmissionID: submission.ID.String(),
		UserID:       submission.UserID.String(),
		Status:       string(submission.Status),
	}
	if reviewerID != nil {
		payload.ReviewerID = reviewerID.String()
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return s.outbox.Enqueue(ctx, &outbox.Event{
		ID:        uuid.New(),
		EventType: eventType,
		UserID:    submission.UserID,
		Payload:   raw,
		CreatedAt: requestcontext.Now(ctx),
	})
}

func (s *Service) recordRiskEvent(ctx context.Context, userID uuid.UUID, decision models.Decision) {
	if s.risk == nil {
		return
	}
	var (
		eventType riskmodels.EventType
		delta     int
	)
	switch decision {
	case models.DecisionApproved:
		eventType, delta = riskmodels.EventKYCApproved, riskmodels.DeltaKYCApproved
	case models.DecisionRejected:
		eventType, delta = riskmodels.EventKYCRejected, riskmodels.DeltaKYCRejected
	default:
		return
	}
	if _, err := s.risk.Apply(ctx, userID, eventType, delta); err != nil {
		// Best effort: the review itself has committed.
		s.logger.WarnContext(ctx, "risk event for review decision failed",
			"error", err,
			"user_id", userID.String(),
			"event_type", string(eventType),
		)
	}
}
