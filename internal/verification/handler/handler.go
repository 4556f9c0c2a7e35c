// Package handler exposes verification state over HTTP: a self-service
// status endpoint and admin lock/unlock actions.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	platformmw "keohams/internal/platform/middleware"
	"keohams/internal/verification/models"
	dErrors "keohams/pkg/domainerrors"
	"keohams/pkg/httputil"
	"keohams/pkg/requestcontext"
)

// Service is the verification surface the handler needs.
type Service interface {
	Ensure(ctx context.Context, userID uuid.UUID) (*models.State, error)
	Lock(ctx context.Context, userID uuid.UUID) (*models.State, error)
	Unlock(ctx context.Context, userID uuid.UUID) (*models.State, error)
}

type Handler struct {
	logger    *slog.Logger
	service   Service
	validator platformmw.TokenValidator
}

func New(service Service, validator platformmw.TokenValidator, logger *slog.Logger) *Handler {
	return &Handler{logger: logger, service: service, validator: validator}
}

// Register mounts the verification routes.
func (h *Handler) Register(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(platformmw.RequireAuth(h.validator, h.logger))
		r.Get("/verification/status", h.handleStatus)

		r.Group(func(r chi.Router) {
			r.Use(platformmw.RequireAdmin(h.logger))
			r.Post("/admin/verification/{userID}/lock", h.handleLock)
			r.Post("/admin/verification/{userID}/unlock", h.handleUnlock)
		})
	})
}

// StatusResponse is the self-service view of a user's verification state.
type StatusResponse struct {
	Status        string     `json:"status"`
	RiskLevel     string     `json:"risk_level"`
	KYCVerifiedAt *time.Time `json:"kyc_verified_at,omitempty"`
	RejectedAt    *time.Time `json:"rejected_at,omitempty"`
}

func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, err := uuid.Parse(requestcontext.UserID(ctx))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return
	}
	state, err := h.service.Ensure(ctx, userID)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to load verification state",
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, StatusResponse{
		Status:        string(state.Status),
		RiskLevel:     string(state.RiskLevel),
		KYCVerifiedAt: state.KYCVerifiedAt,
		RejectedAt:    state.RejectedAt,
	})
}

func (h *Handler) handleLock(w http.ResponseWriter, r *http.Request) {
	h.handleLockAction(w, r, h.service.Lock, "account locked")
}

func (h *Handler) handleUnlock(w http.ResponseWriter, r *http.Request) {
	h.handleLockAction(w, r, h.service.Unlock, "account unlocked")
}

func (h *Handler) handleLockAction(
	w http.ResponseWriter,
	r *http.Request,
	action func(ctx context.Context, userID uuid.UUID) (*models.State, error),
	msg string,
) {
	ctx := r.Context()
	userID, err := uuid.Parse(chi.URLParam(r, "userID"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid user id"))
		return
	}
	state, err := action(ctx, userID)
	if err != nil {
		if !dErrors.Is(err, dErrors.CodeConflict) && !dErrors.Is(err, dErrors.CodeNotFound) {
			h.logger.ErrorContext(ctx, "lock action failed",
				"error", err,
				"user_id", userID.String(),
				"request_id", requestcontext.RequestID(ctx),
			)
		}
		httputil.WriteError(w, err)
		return
	}
	h.logger.InfoContext(ctx, msg,
		"user_id", userID.String(),
		"actor_id", requestcontext.UserID(ctx),
		"request_id", requestcontext.RequestID(ctx),
	)
	httputil.WriteJSON(w, http.StatusOK, StatusResponse{
		Status:    string(state.Status),
		RiskLevel: string(state.RiskLevel),
	})
}
