package service

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"keohams/internal/kyc/models"
	kstore "keohams/internal/kyc/store"
	"keohams/internal/outbox"
	vmodels "keohams/internal/verification/models"
	vservice "keohams/internal/verification/service"
	vstore "keohams/internal/verification/store"
	dErrors "keohams/pkg/domainerrors"
	txpkg "keohams/pkg/platform/tx"
)

type fixture struct {
	svc         *Service
	states      *vstore.MemoryStore
	stateSvc    *vservice.Service
	submissions *kstore.MemoryStore
	outbox      *outbox.MemoryStore
}

func newFixture() *fixture {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	txm := txpkg.NewMemoryManager()
	states := vstore.NewMemoryStore()
	stateSvc := vservice.New(states, txm, nil, logger, nil)
	submissions := kstore.NewMemoryStore()
	outboxStore := outbox.NewMemoryStore()
	svc := New(submissions, stateSvc, nil, outboxStore, txm, logger, nil)
	return &fixture{
		svc:         svc,
		states:      states,
		stateSvc:    stateSvc,
		submissions: submissions,
		outbox:      outboxStore,
	}
}

func doc(name string) *models.Document {
	return &models.Document{
		Path:        "/uploads/" + name,
		ContentType: "image/jpeg",
		SizeBytes:   1024,
		SHA256:      "abc123",
	}
}

func fullBundle() models.DocumentBundle {
	return models.DocumentBundle{
		Portrait:    doc("portrait.jpg"),
		SelfieVideo: doc("selfie.mp4"),
		IDFront:     doc("id_front.jpg"),
	}
}

func TestSubmitCreatesPendingSubmission(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	userID := uuid.New()

	submission, err := f.svc.Submit(ctx, userID, fullBundle(), "first attempt")
	require.NoError(t, err)

	assert.Equal(t, models.SubmissionPending, submission.Status)
	assert.Equal(t, userID, submission.UserID)
	assert.Nil(t, submission.ReviewerID)
	assert.Nil(t, submission.ReviewedAt)

	state, err := f.states.Get(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, vmodels.StatusKYCPending, state.Status)
	require.NotNil(t, state.KYCSubmittedAt)
}

func TestSubmitDocumentsJSONHasExactlyProvidedKeys(t *testing.T) {
	ctx := context.Background()
	f := newFixture()

	submission, err := f.svc.Submit(ctx, uuid.New(), fullBundle(), "")
	require.NoError(t, err)

	raw, err := json.Marshal(submission.Documents)
	require.NoError(t, err)
	var keys map[string]any
	require.NoError(t, json.Unmarshal(raw, &keys))

	assert.Len(t, keys, 3)
	assert.Contains(t, keys, "portrait")
	assert.Contains(t, keys, "selfie_video")
	assert.Contains(t, keys, "id_front")
	assert.NotContains(t, keys, "id_back")
}

func TestSubmitRejectsMissingRequiredDocuments(t *testing.T) {
	ctx := context.Background()
	f := newFixture()

	cases := []struct {
		name    string
		bundle  models.DocumentBundle
		missing string
	}{
		{"no portrait", models.DocumentBundle{SelfieVideo: doc("v"), IDFront: doc("f")}, "portrait"},
		{"no selfie video", models.DocumentBundle{Portrait: doc("p"), IDFront: doc("f")}, "selfie_video"},
		{"no id front", models.DocumentBundle{Portrait: doc("p"), SelfieVideo: doc("v")}, "id_front"},
		{"empty bundle", models.DocumentBundle{}, "portrait"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.svc.Submit(ctx, uuid.New(), tc.bundle, "")
			require.Error(t, err)
			assert.True(t, dErrors.Is(err, dErrors.CodeBadRequest))
			assert.Contains(t, err.Error(), tc.missing)
		})
	}
}

func TestSubmitIDBackIsOptional(t *testing.T) {
	f := newFixture()
	bundle := fullBundle()
	bundle.IDBack = doc("id_back.jpg")

	submission, err := f.svc.Submit(context.Background(), uuid.New(), bundle, "")
	require.NoError(t, err)
	assert.NotNil(t, submission.Documents.IDBack)
}

func TestReviewApproveCascadesToVerified(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	userID := uuid.New()
	reviewerID := uuid.New()

	submission, err := f.svc.Submit(ctx, userID, fullBundle(), "")
	require.NoError(t, err)

	reviewed, err := f.svc.Review(ctx, submission.ID, models.DecisionApproved, reviewerID, "looks good")
	require.NoError(t, err)

	assert.Equal(t, models.SubmissionApproved, reviewed.Status)
	require.NotNil(t, reviewed.ReviewedAt)
	require.NotNil(t, reviewed.ReviewerID)
	assert.Equal(t, reviewerID, *reviewed.ReviewerID)

	state, err := f.states.Get(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, vmodels.StatusKYCVerified, state.Status)
	require.NotNil(t, state.KYCVerifiedAt)
}

func TestReviewRejectCascadesToRejected(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	userID := uuid.New()
	reviewerID := uuid.New()

	submission, err := f.svc.Submit(ctx, userID, fullBundle(), "")
	require.NoError(t, err)

	reviewed, err := f.svc.Review(ctx, submission.ID, models.DecisionRejected, reviewerID, "blurry ID")
	require.NoError(t, err)

	assert.Equal(t, models.SubmissionRejected, reviewed.Status)
	assert.Equal(t, "blurry ID", reviewed.ReviewNotes)
	require.NotNil(t, reviewed.ReviewedAt)
	require.NotNil(t, reviewed.ReviewerID)

	state, err := f.states.Get(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, vmodels.StatusRejected, state.Status)
}

func TestReviewTerminalSubmissionConflictsAndWritesNothing(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	userID := uuid.New()

	submission, err := f.svc.Submit(ctx, userID, fullBundle(), "")
	require.NoError(t, err)
	_, err = f.svc.Review(ctx, submission.ID, models.DecisionApproved, uuid.New(), "")
	require.NoError(t, err)

	stateBefore, err := f.states.Get(ctx, userID)
	require.NoError(t, err)

	_, err = f.svc.Review(ctx, submission.ID, models.DecisionRejected, uuid.New(), "second opinion")
	require.Error(t, err)
	assert.True(t, dErrors.Is(err, dErrors.CodeConflict))

	// Both tables unchanged.
	after, err := f.submissions.GetByID(ctx, submission.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SubmissionApproved, after.Status)
	assert.NotEqual(t, "second opinion", after.ReviewNotes)

	stateAfter, err := f.states.Get(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, stateBefore.Status, stateAfter.Status)
	assert.Equal(t, stateBefore.Version, stateAfter.Version)
}

func TestReviewUnknownSubmissionNotFound(t *testing.T) {
	f := newFixture()
	_, err := f.svc.Review(context.Background(), uuid.New(), models.DecisionApproved, uuid.New(), "")
	require.Error(t, err)
	assert.True(t, dErrors.Is(err, dErrors.CodeNotFound))
}

func TestResubmissionAfterRejection(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	userID := uuid.New()

	first, err := f.svc.Submit(ctx, userID, fullBundle(), "")
	require.NoError(t, err)
	_, err = f.svc.Review(ctx, first.ID, models.DecisionRejected, uuid.New(), "blurry")
	require.NoError(t, err)

	second, err := f.svc.Submit(ctx, userID, fullBundle(), "retaken photos")
	require.NoError(t, err)

	state, err := f.states.Get(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, vmodels.StatusKYCPending, state.Status)

	current, err := f.svc.Current(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, second.ID, current.ID)
}

func TestListFiltersByStatusWithPagination(t *testing.T) {
	ctx := context.Background()
	f := newFixture()

	var pendingIDs []uuid.UUID
	for i := 0; i < 5; i++ {
		submission, err := f.svc.Submit(ctx, uuid.New(), fullBundle(), "")
		require.NoError(t, err)
		pendingIDs = append(pendingIDs, submission.ID)
		time.Sleep(time.Millisecond)
	}
	_, err := f.svc.Review(ctx, pendingIDs[0], models.DecisionApproved, uuid.New(), "")
	require.NoError(t, err)

	pending, total, err := f.svc.List(ctx, models.SubmissionPending, 1, 3)
	require.NoError(t, err)
	assert.Equal(t, 4, total)
	assert.Len(t, pending, 3)

	page2, _, err := f.svc.List(ctx, models.SubmissionPending, 2, 3)
	require.NoError(t, err)
	assert.Len(t, page2, 1)

	_, _, err = f.svc.List(ctx, models.SubmissionStatus("WEIRD"), 1, 10)
	require.Error(t, err)
	assert.True(t, dErrors.Is(err, dErrors.CodeBadRequest))
}

// The legacy latest-submission check and the canonical state can disagree;
// the canonical state must win for gating.
func TestLegacyApprovalCheckDisagreesWithCanonicalState(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	userID := uuid.New()

	submission, err := f.svc.Submit(ctx, userID, fullBundle(), "")
	require.NoError(t, err)

	// Simulate drift: the submission row says APPROVED while the canonical
	// state is still KYC_PENDING.
	submission.Status = models.SubmissionApproved
	now := time.Now()
	submission.ReviewedAt = &now
	require.NoError(t, f.submissions.UpdateReview(ctx, submission))

	approved, err := f.svc.IsKYCApproved(ctx, userID)
	require.NoError(t, err)
	assert.True(t, approved, "legacy check sees the approved submission")

	decision, err := f.stateSvc.Gate(ctx, userID)
	require.NoError(t, err)
	assert.False(t, decision.Allowed, "canonical gate must deny while state is KYC_PENDING")
	assert.Equal(t, vmodels.GatePending, decision.Reason)
}

func TestIsKYCApprovedNoSubmissions(t *testing.T) {
	f := newFixture()
	approved, err := f.svc.IsKYCApproved(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.False(t, approved)
}

func TestSubmitEnqueuesNotification(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	userID := uuid.New()

	submission, err := f.svc.Submit(ctx, userID, fullBundle(), "")
	require.NoError(t, err)
	_, err = f.svc.Review(ctx, submission.ID, models.DecisionApproved, uuid.New(), "")
	require.NoError(t, err)

	var types []string
	for _, event := range f.outbox.All() {
		types = append(types, event.EventType)
	}
	assert.Contains(t, types, outbox.EventKYCSubmitted)
	assert.Contains(t, types, outbox.EventKYCApproved)
}
