// Package service implements the verification state machine over the
// canonical state store. All gating reads and every status transition go
// through here.
package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	vmetrics "keohams/internal/verification/metrics"
	"keohams/internal/verification/models"
	"keohams/internal/verification/store"
	"keohams/pkg/cache"
	dErrors "keohams/pkg/domainerrors"
	txpkg "keohams/pkg/platform/tx"
	"keohams/pkg/requestcontext"
)

// Service coordinates verification state reads and transitions.
type Service struct {
	store   store.Store
	txm     txpkg.Manager
	cache   cache.Cache
	logger  *slog.Logger
	metrics *vmetrics.Metrics
	tracer  trace.Tracer
}

// New builds the verification service. cache may be nil to disable status
// caching; metrics may be nil in tests.
func New(st store.Store, txm txpkg.Manager, statusCache cache.Cache, logger *slog.Logger, metrics *vmetrics.Metrics) *Service {
	return &Service{
		store:   st,
		txm:     txm,
		cache:   statusCache,
		logger:  logger,
		metrics: metrics,
		tracer:  otel.Tracer("keohams/verification"),
	}
}

// Ensure returns the user's state row, creating the default row on first
// access. Idempotent and safe under concurrent first access.
func (s *Service) Ensure(ctx context.Context, userID uuid.UUID) (*models.State, error) {
	return s.store.Ensure(ctx, userID)
}

// Status returns the canonical status, serving from the cache when warm.
func (s *Service) Status(ctx context.Context, userID uuid.UUID) (models.Status, error) {
	key := userID.String()
	if s.cache != nil {
		if val, ok, err := s.cache.Get(ctx, key); err == nil && ok {
			status := models.Status(val)
			if status.Valid() {
				return status, nil
			}
		}
	}
	state, err := s.store.Ensure(ctx, userID)
	if err != nil {
		return "", err
	}
	if s.cache != nil {
		if err := s.cache.Set(ctx, key, string(state.Status)); err != nil {
			s.logger.WarnContext(ctx, "status cache set failed", "error", err, "user_id", key)
		}
	}
	return state.Status, nil
}

// Gate evaluates the access decision from the canonical state. This is the
// only check route guards may use; submission history never gates access.
func (s *Service) Gate(ctx context.Context, userID uuid.UUID) (models.GateDecision, error) {
	status, err := s.Status(ctx, userID)
	if err != nil {
		return models.GateDecision{}, err
	}
	decision := models.Decide(status)
	s.metrics.RecordGateDecision(string(decision.Reason))
	return decision, nil
}

// Transition moves a user to a new status inside its own transaction. Use
// TransitionTx when the caller already manages one.
func (s *Service) Transition(ctx context.Context, userID uuid.UUID, to models.Status) (*models.State, error) {
	ctx, span := s.tracer.Start(ctx, "verification.Transition")
	defer span.End()

	var state *models.State
	err := s.txm.RunInTx(txpkg.WithUserKey(ctx, userID.String()), func(ctx context.Context) error {
		var err error
		state, err = s.TransitionTx(ctx, userID, to)
		return err
	})
	if err != nil {
		return nil, err
	}
	return state, nil
}

// TransitionTx applies a status transition using the caller's transaction.
// Invalid moves fail with CodeConflict and write nothing.
func (s *Service) TransitionTx(ctx context.Context, userID uuid.UUID, to models.Status) (*models.State, error) {
	if !to.Valid() {
		return nil, dErrors.Newf(dErrors.CodeBadRequest, "unknown status %q", to)
	}
	if _, err := s.store.Ensure(ctx, userID); err != nil {
		return nil, err
	}
	state, err := s.store.GetForUpdate(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !models.CanTransition(state.Status, to) {
		return nil, dErrors.Newf(dErrors.CodeConflict, "cannot transition from %s to %s", state.Status, to)
	}
	if state.Status == to {
		return state, nil
	}

	now := requestcontext.Now(ctx)
	from := state.Status
	state.Status = to
	switch to {
	case models.StatusBasicVerified:
		state.BasicVerifiedAt = &now
	case models.StatusKYCPending:
		state.KYCSubmittedAt = &now
	case models.StatusKYCVerified:
		state.KYCVerifiedAt = &now
	case models.StatusRejected:
		state.RejectedAt = &now
	}
	if err := s.store.Update(ctx, state); err != nil {
		return nil, err
	}
	s.evict(ctx, userID)
	s.metrics.RecordTransition(string(to))
	s.logger.InfoContext(ctx, "verification status transition",
		"user_id", userID.String(),
		"from", string(from),
		"to", string(to),
		"request_id", requestcontext.RequestID(ctx),
	)
	return state, nil
}

// Lock places a manual admin hold on the account. Only an explicit Unlock
// exits the LOCKED status.
func (s *Service) Lock(ctx context.Context, userID uuid.UUID) (*models.State, error) {
	ctx, span := s.tracer.Start(ctx, "verification.Lock")
	defer span.End()

	var state *models.State
	err := s.txm.RunInTx(txpkg.WithUserKey(ctx, userID.String()), func(ctx context.Context) error {
		if _, err := s.store.Ensure(ctx, userID); err != nil {
			return err
		}
		var err error
		state, err = s.store.GetForUpdate(ctx, userID)
		if err != nil {
			return err
		}
		if state.Status == models.StatusLocked {
			return dErrors.New(dErrors.CodeConflict, "account already locked")
		}
		now := requestcontext.Now(ctx)
		prev := state.Status
		state.LockedFrom = &prev
		state.Status = models.StatusLocked
		state.ManualLock = true
		state.LockedAt = &now
		return s.store.Update(ctx, state)
	})
	if err != nil {
		return nil, err
	}
	s.evict(ctx, userID)
	s.metrics.RecordTransition(string(models.StatusLocked))
	return state, nil
}

// Unlock releases a manual hold, restoring the status the account held when
// it was locked.
func (s *Service) Unlock(ctx context.Context, userID uuid.UUID) (*models.State, error) {
	ctx, span := s.tracer.Start(ctx, "verification.Unlock")
	defer span.End()

	var state *models.State
	err := s.txm.RunInTx(txpkg.WithUserKey(ctx, userID.String()), func(ctx context.Context) error {
		var err error
		state, err = s.store.GetForUpdate(ctx, userID)
		if err != nil {
			return err
		}
		if state.Status != models.StatusLocked {
			return dErrors.New(dErrors.CodeConflict, "account is not locked")
		}
		restored := models.StatusUnverified
		if state.LockedFrom != nil {
			restored = *state.LockedFrom
		}
		state.Status = restored
		state.LockedFrom = nil
		state.ManualLock = false
		state.LockedAt = nil
		return s.store.Update(ctx, state)
	})
	if err != nil {
		return nil, err
	}
	s.evict(ctx, userID)
	return state, nil
}

// EvictStatus drops the cached status after an external writer commits a
// state change.
func (s *Service) EvictStatus(ctx context.Context, userID uuid.UUID) {
	s.evict(ctx, userID)
}

func (s *Service) evict(ctx context.Context, userID uuid.UUID) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Evict(ctx, userID.String()); err != nil && !errors.Is(err, context.Canceled) {
		s.logger.WarnContext(ctx, "status cache evict failed", "error", err, "user_id", userID.String())
	}
}
