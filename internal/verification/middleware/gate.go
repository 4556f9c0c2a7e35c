// Package middleware provides the KYC route guard. It reads the canonical
// verification state only; gating on submission history is a correctness bug
// (status strings there are historical record).
package middleware

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"keohams/internal/verification/models"
	dErrors "keohams/pkg/domainerrors"
	"keohams/pkg/httputil"
	"keohams/pkg/requestcontext"
)

// Gate evaluates the access decision for a user.
type Gate interface {
	Gate(ctx context.Context, userID uuid.UUID) (models.GateDecision, error)
}

// KYCRequiredResponse tells the frontend why access was denied so it can
// route the user to the right screen.
type KYCRequiredResponse struct {
	Error  string `json:"error"`
	Reason string `json:"reason"`
	Status string `json:"status"`
}

// RequireKYCVerified guards a route, admitting only users whose canonical
// state is KYC_VERIFIED. Must run after authentication middleware.
func RequireKYCVerified(gate Gate, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			userID, err := uuid.Parse(requestcontext.UserID(ctx))
			if err != nil {
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
				return
			}
			decision, err := gate.Gate(ctx, userID)
			if err != nil {
				logger.ErrorContext(ctx, "kyc gate check failed",
					"error", err,
					"user_id", userID.String(),
					"request_id", requestcontext.RequestID(ctx),
				)
				httputil.WriteError(w, err)
				return
			}
			if !decision.Allowed {
				httputil.WriteJSON(w, http.StatusForbidden, KYCRequiredResponse{
					Error:  "kyc_required",
					Reason: string(decision.Reason),
					Status: string(decision.Status),
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
