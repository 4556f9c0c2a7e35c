package middleware

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"keohams/internal/verification/models"
	"keohams/pkg/requestcontext"
)

type stubGate struct {
	decision models.GateDecision
	err      error
	calls    int
}

func (s *stubGate) Gate(_ context.Context, _ uuid.UUID) (models.GateDecision, error) {
	s.calls++
	return s.decision, s.err
}

func runGate(t *testing.T, gate *stubGate, userID string) *httptest.ResponseRecorder {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	handler := RequireKYCVerified(gate, logger)(next)

	req := httptest.NewRequest(http.MethodGet, "/orders", nil)
	if userID != "" {
		req = req.WithContext(requestcontext.WithUserID(req.Context(), userID))
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestGateAllowsVerifiedUser(t *testing.T) {
	gate := &stubGate{decision: models.Decide(models.StatusKYCVerified)}
	rec := runGate(t, gate, uuid.NewString())
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, 1, gate.calls)
}

func TestGateDeniesWithStructuredBody(t *testing.T) {
	tests := []struct {
		name   string
		status models.Status
		reason models.GateReason
	}{
		{"unverified", models.StatusUnverified, models.GateNotSubmitted},
		{"pending", models.StatusKYCPending, models.GatePending},
		{"rejected", models.StatusRejected, models.GateRejected},
		{"locked", models.StatusLocked, models.GateLocked},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			gate := &stubGate{decision: models.Decide(tc.status)}
			rec := runGate(t, gate, uuid.NewString())
			require.Equal(t, http.StatusForbidden, rec.Code)

			var body KYCRequiredResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, "kyc_required", body.Error)
			assert.Equal(t, string(tc.reason), body.Reason)
			assert.Equal(t, string(tc.status), body.Status)
		})
	}
}

func TestGateRejectsMissingIdentity(t *testing.T) {
	gate := &stubGate{decision: models.Decide(models.StatusKYCVerified)}
	rec := runGate(t, gate, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, 0, gate.calls, "gate must not be consulted without a user")
}
